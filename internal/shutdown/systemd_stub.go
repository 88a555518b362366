//go:build !linux

package shutdown

import (
	"context"
	"errors"

	logx "shutdownd/pkg/logx"
)

var errUnsupported = errors.New("systemd driver: unsupported OS (linux only)")

func newSystemd(_ context.Context, _ string, _ logx.Logger) (Controller, error) {
	return nil, errUnsupported
}
