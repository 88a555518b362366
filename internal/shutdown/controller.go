// Package shutdown executes the host-side shutdown request.
//
// A controller arms a single pending timer per request; re-arming replaces
// the previous timer and CancelPending disarms it. Drivers:
//   - "noop":    dry-run, logs instead of acting (default)
//   - "process": terminates this process after the grace delay
//   - "systemd": stops a systemd unit over D-Bus (linux only)
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	logx "shutdownd/pkg/logx"
)

var ErrUnknownDriver = errors.New("unknown shutdown driver")

// Controller is the host-side shutdown surface consumed by the schedule.
type Controller interface {
	RequestShutdown(ctx context.Context, grace time.Duration, exitCode int) error
	CancelPending(ctx context.Context) error
	Close() error
}

// Config selects and parameterizes a driver.
type Config struct {
	Driver string // "noop", "process", "systemd"
	Unit   string // systemd only
}

// New builds the configured controller. An empty driver means "noop".
func New(ctx context.Context, cfg Config, log logx.Logger) (Controller, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "noop":
		return &Noop{log: log}, nil
	case "process":
		return &Process{log: log, exit: os.Exit}, nil
	case "systemd":
		if strings.TrimSpace(cfg.Unit) == "" {
			return nil, errors.New("shutdown.unit is required for the systemd driver")
		}
		return newSystemd(ctx, cfg.Unit, log)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

// armer holds the single pending timer shared by all drivers.
type armer struct {
	mu    sync.Mutex
	timer *time.Timer
}

// arm replaces any pending timer with one firing after grace.
// A non-positive grace fires immediately on a separate goroutine, keeping
// the caller (the schedule tick) non-blocking either way.
func (a *armer) arm(grace time.Duration, fn func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer != nil {
		a.timer.Stop()
	}
	if grace < 0 {
		grace = 0
	}
	a.timer = time.AfterFunc(grace, fn)
}

// cancel disarms the pending timer, reporting whether one was pending.
func (a *armer) cancel() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer == nil {
		return false
	}
	stopped := a.timer.Stop()
	a.timer = nil
	return stopped
}

// Noop logs what it would have done. Useful for staging a schedule before
// pointing it at a real target.
type Noop struct {
	armer
	log logx.Logger
}

func (n *Noop) RequestShutdown(_ context.Context, grace time.Duration, exitCode int) error {
	n.log.Warn("dry-run: shutdown requested",
		logx.Duration("grace", grace), logx.Int("exit_code", exitCode))
	n.arm(grace, func() {
		n.log.Warn("dry-run: shutdown would happen now", logx.Int("exit_code", exitCode))
	})
	return nil
}

func (n *Noop) CancelPending(context.Context) error {
	if n.cancel() {
		n.log.Info("pending shutdown cancelled")
	}
	return nil
}

func (n *Noop) Close() error {
	n.cancel()
	return nil
}

// Process terminates this process after the grace delay.
type Process struct {
	armer
	log  logx.Logger
	exit func(code int)
}

func (p *Process) RequestShutdown(_ context.Context, grace time.Duration, exitCode int) error {
	p.log.Warn("process shutdown requested",
		logx.Duration("grace", grace), logx.Int("exit_code", exitCode))
	p.arm(grace, func() {
		p.log.Warn("exiting", logx.Int("exit_code", exitCode))
		p.exit(exitCode)
	})
	return nil
}

func (p *Process) CancelPending(context.Context) error {
	if p.cancel() {
		p.log.Info("pending shutdown cancelled")
	}
	return nil
}

func (p *Process) Close() error {
	p.cancel()
	return nil
}
