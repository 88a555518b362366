//go:build linux

package shutdown

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/dbus"

	logx "shutdownd/pkg/logx"
)

// Systemd stops a systemd unit after the grace delay. The exit code is
// logged only; the unit's own exit status is systemd's business.
type Systemd struct {
	armer
	log  logx.Logger
	conn *dbus.Conn
	unit string
}

func newSystemd(ctx context.Context, unit string, log logx.Logger) (Controller, error) {
	conn, err := dbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect to systemd: %w", err)
	}
	return &Systemd{log: log, conn: conn, unit: unit}, nil
}

func (s *Systemd) RequestShutdown(_ context.Context, grace time.Duration, exitCode int) error {
	s.log.Warn("unit shutdown requested",
		logx.String("unit", s.unit),
		logx.Duration("grace", grace),
		logx.Int("exit_code", exitCode))
	s.arm(grace, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		ch := make(chan string, 1)
		if _, err := s.conn.StopUnitContext(ctx, s.unit, "replace", ch); err != nil {
			s.log.Error("stop unit failed", logx.String("unit", s.unit), logx.Err(err))
			return
		}
		select {
		case result := <-ch:
			s.log.Info("unit stopped", logx.String("unit", s.unit), logx.String("result", result))
		case <-ctx.Done():
			s.log.Warn("stop unit result timed out", logx.String("unit", s.unit))
		}
	})
	return nil
}

func (s *Systemd) CancelPending(context.Context) error {
	if s.cancel() {
		s.log.Info("pending unit shutdown cancelled", logx.String("unit", s.unit))
	}
	return nil
}

func (s *Systemd) Close() error {
	s.cancel()
	if s.conn != nil {
		s.conn.Close()
	}
	return nil
}
