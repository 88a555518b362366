// Package history persists schedule lifecycle events for operators.
//
// The recorder subscribes to the event bus so the schedule service never
// talks to storage directly; a cron job prunes rows past the retention
// window.
package history

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"shutdownd/internal/eventbus"
	"shutdownd/internal/schedule"
	"shutdownd/internal/storage"
	logx "shutdownd/pkg/logx"
)

const appendTimeout = 2 * time.Second

// Config controls retention.
type Config struct {
	PruneSpec string // cron expression or descriptor, e.g. "@daily"
	KeepDays  int
}

type Recorder struct {
	log   logx.Logger
	bus   eventbus.Bus
	store storage.Store
	cfg   Config
}

func NewRecorder(bus eventbus.Bus, store storage.Store, cfg Config, log logx.Logger) *Recorder {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.PruneSpec == "" {
		cfg.PruneSpec = "@daily"
	}
	if cfg.KeepDays <= 0 {
		cfg.KeepDays = 30
	}
	return &Recorder{log: log, bus: bus, store: store, cfg: cfg}
}

// Recent returns the newest events, for status surfaces.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]storage.Event, error) {
	if r.store == nil {
		return nil, storage.ErrDisabled
	}
	return r.store.RecentEvents(ctx, limit)
}

// Run consumes bus events and persists them until ctx is cancelled.
// It also owns the retention cron job. Intended for the app supervisor.
func (r *Recorder) Run(ctx context.Context) error {
	if r.store == nil || r.bus == nil {
		<-ctx.Done()
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(r.cfg.PruneSpec, func() { r.prune(ctx) }); err != nil {
		r.log.Warn("invalid history prune spec, retention disabled",
			logx.String("spec", r.cfg.PruneSpec), logx.Err(err))
	} else {
		c.Start()
		defer c.Stop()
	}

	events, unsubscribe := r.bus.Subscribe(32)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-events:
			if !ok {
				return nil
			}
			r.record(ctx, e)
		}
	}
}

func (r *Recorder) record(ctx context.Context, e eventbus.Event) {
	row, ok := toRow(e)
	if !ok {
		return
	}
	actx, cancel := context.WithTimeout(ctx, appendTimeout)
	defer cancel()
	if err := r.store.AppendEvent(actx, row); err != nil {
		r.log.Warn("history append failed", logx.String("kind", row.Kind), logx.Err(err))
	}
}

func (r *Recorder) prune(ctx context.Context) {
	cutoff := time.Now().AddDate(0, 0, -r.cfg.KeepDays)
	pctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	n, err := r.store.PruneBefore(pctx, cutoff)
	if err != nil {
		r.log.Warn("history prune failed", logx.Err(err))
		return
	}
	if n > 0 {
		r.log.Info("history pruned", logx.Int64("removed", n), logx.Time("cutoff", cutoff))
	}
}

// toRow maps a bus event to a storage row. Unknown event types are skipped.
func toRow(e eventbus.Event) (storage.Event, bool) {
	row := storage.Event{At: e.Time, Kind: e.Type}
	switch e.Type {
	case schedule.EventArmed:
		if d, ok := e.Data.(schedule.ArmedData); ok {
			row.ShutdownAt = d.ShutdownAt
			row.RemainingSec = int64(d.Remaining / time.Second)
		}
	case schedule.EventDisabled:
		if d, ok := e.Data.(schedule.DisabledData); ok {
			row.Detail = d.Reason
		}
	case schedule.EventAnnounced:
		if d, ok := e.Data.(schedule.AnnouncedData); ok {
			row.Detail = d.Message
			row.RemainingSec = int64(d.Lead / time.Second)
		}
	case schedule.EventShutdownRequested:
		if d, ok := e.Data.(schedule.ShutdownRequestedData); ok {
			row.RemainingSec = int64(d.Grace / time.Second)
		}
	default:
		return storage.Event{}, false
	}
	return row, true
}
