// Package app wires shutdownd's services together and owns their lifecycle.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"shutdownd/internal/announce"
	"shutdownd/internal/config"
	"shutdownd/internal/eventbus"
	"shutdownd/internal/history"
	"shutdownd/internal/runtime/supervisor"
	"shutdownd/internal/schedule"
	"shutdownd/internal/shutdown"
	"shutdownd/internal/storage"
	logx "shutdownd/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service

	bus   eventbus.Bus
	store storage.Store

	ann   *announce.Service
	ctl   shutdown.Controller
	sched *schedule.Service
	rec   *history.Recorder

	tickInterval time.Duration
	tickUpdates  chan time.Duration
}

func New(ctx context.Context, cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logs, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	store, err := storage.Open(storageConfig(cfg), log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	bus := eventbus.New()

	ann := announce.New(log.With(logx.String("comp", "announce")), buildSinks(cfg, log)...)

	ctl, err := shutdown.New(ctx, shutdown.Config{
		Driver: cfg.Shutdown.Driver,
		Unit:   cfg.Shutdown.Unit,
	}, log.With(logx.String("comp", "shutdown")))
	if err != nil {
		return nil, fmt.Errorf("shutdown driver: %w", err)
	}

	sched := schedule.New(ann, ctl, bus, log.With(logx.String("comp", "schedule")))

	rec := history.NewRecorder(bus, store, historyConfig(cfg), log.With(logx.String("comp", "history")))

	tick, err := config.ParseDurationOrDefault("tick_interval", cfg.TickInterval, 500*time.Millisecond)
	if err != nil {
		return nil, err
	}

	return &App{
		cfgPath:      cfgPath,
		cfgm:         cfgm,
		log:          log,
		logs:         logs,
		bus:          bus,
		store:        store,
		ann:          ann,
		ctl:          ctl,
		sched:        sched,
		rec:          rec,
		tickInterval: tick,
		tickUpdates:  make(chan time.Duration, 1),
	}, nil
}

// Schedule exposes the schedule service (tests, status surfaces).
func (a *App) Schedule() *schedule.Service { return a.sched }

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	// transactional config reload: validate before commit/publish
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(validate)

	// Arm the schedule from the boot config.
	a.sched.Initialize(a.sup.Context(), snapshot(a.cfgm.Get()), time.Now())

	a.sup.Go("announce.worker", a.ann.Run)
	a.sup.Go("history.recorder", a.rec.Run)
	a.sup.Go0("schedule.tick", a.tickLoop)

	// hot reload fan-out
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config in the channel.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				a.applyReload(c, lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.Go("config.watch", a.cfgm.Watch)

	a.log.Info("shutdownd started", logx.Duration("tick", a.tickInterval))
	return nil
}

func (a *App) applyReload(ctx context.Context, old, cfg *config.Config) {
	changed := config.SummarizeChange(old, cfg)
	if len(changed) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}

	a.logs.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})

	a.ann.SetSinks(buildSinks(cfg, a.log))

	// Shutdown driver changes need a restart; everything else is live.
	if old.Shutdown.Driver != cfg.Shutdown.Driver || old.Shutdown.Unit != cfg.Shutdown.Unit {
		a.log.Warn("shutdown driver/unit changed; restart required to take effect",
			logx.String("driver", cfg.Shutdown.Driver), logx.String("unit", cfg.Shutdown.Unit))
	}

	// Re-arm the schedule under the new config. Initialize cancels anything
	// pending first, so a reload can never double-arm.
	a.sched.Initialize(ctx, snapshot(cfg), time.Now())

	if tick, err := config.ParseDurationOrDefault("tick_interval", cfg.TickInterval, 500*time.Millisecond); err == nil {
		select {
		case a.tickUpdates <- tick:
		default:
		}
	}

	a.log.Info("config reloaded", logx.String("changed", strings.Join(changed, ",")))
}

// tickLoop drives the schedule with measured elapsed time, so a stalled or
// slow host machine can't silently lose schedule progress.
func (a *App) tickLoop(ctx context.Context) {
	t := time.NewTicker(a.tickInterval)
	defer t.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case d := <-a.tickUpdates:
			if d > 0 && d != a.tickInterval {
				a.tickInterval = d
				t.Reset(d)
				a.log.Debug("tick interval updated", logx.Duration("tick", d))
			}
		case now := <-t.C:
			elapsed := now.Sub(last)
			last = now
			a.sched.Advance(ctx, elapsed)
		}
	}
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping")

	// Cancel the run context first so background loops start unwinding.
	a.sup.Cancel()

	// Each stop step gets an upper bound so one component can't stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()
		done := make(chan error, 1)
		go func() { done <- fn(stepCtx) }()
		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name))
		}
	}

	step("supervisor", 3*time.Second, a.sup.Wait)
	step("controller", time.Second, func(context.Context) error { return a.ctl.Close() })
	if a.store != nil {
		step("storage", time.Second, func(context.Context) error { return a.store.Close() })
	}
	_ = a.logs.Close()

	a.log.Info("stopped")
	return nil
}

// validate rejects configs that would break running services. The shutdown
// time string is deliberately NOT validated here: an invalid time must reach
// Initialize so the module disables itself with an error log, per the
// schedule's contract.
func validate(_ context.Context, cfg *config.Config) error {
	if _, err := config.ParseDurationField("tick_interval", cfg.TickInterval); err != nil {
		return err
	}
	if _, err := config.ParseDurationField("shutdown.grace_delay", cfg.Shutdown.GraceDelay); err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Shutdown.Driver)) {
	case "", "noop", "process":
	case "systemd":
		if strings.TrimSpace(cfg.Shutdown.Unit) == "" {
			return fmt.Errorf("shutdown.unit is required for the systemd driver")
		}
	default:
		return fmt.Errorf("shutdown.driver: unknown driver %q", cfg.Shutdown.Driver)
	}
	if cfg.Storage != nil {
		if _, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
			return err
		}
	}
	if cfg.Telegram != nil && cfg.Telegram.Enabled {
		if strings.TrimSpace(cfg.Telegram.Token) == "" {
			return fmt.Errorf("telegram.token is required when telegram is enabled")
		}
		if cfg.Telegram.ChatID == 0 {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}
	if cfg.History != nil && cfg.History.KeepDays < 0 {
		return fmt.Errorf("history.keep_days must be >= 0")
	}
	return nil
}

// snapshot maps the on-disk config to the schedule's immutable snapshot.
func snapshot(cfg *config.Config) schedule.Snapshot {
	grace, err := config.ParseDurationOrDefault("shutdown.grace_delay", cfg.Shutdown.GraceDelay, 10*time.Second)
	if err != nil {
		// The validator keeps this from happening on reload; the boot path
		// surfaces the error via New(). Fall back to the default regardless.
		grace = 10 * time.Second
	}
	return schedule.Snapshot{
		Enabled:            cfg.Shutdown.Enabled,
		Time:               cfg.Shutdown.TimeOrDefault(),
		PreAnnounceSeconds: cfg.Shutdown.PreAnnounce.LeadSeconds(),
		PreAnnounceMessage: cfg.Shutdown.PreAnnounce.MessageOrDefault(),
		GraceDelay:         grace,
		ExitCode:           cfg.Shutdown.ExitCode,
	}
}

func storageConfig(cfg *config.Config) storage.Config {
	if cfg.Storage == nil {
		return storage.Config{}
	}
	busy, _ := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	return storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}
}

func historyConfig(cfg *config.Config) history.Config {
	hc := history.Config{PruneSpec: config.DefaultPruneSpec, KeepDays: config.DefaultKeepDays}
	if cfg.History != nil {
		if cfg.History.PruneSpec != "" {
			hc.PruneSpec = cfg.History.PruneSpec
		}
		if cfg.History.KeepDays > 0 {
			hc.KeepDays = cfg.History.KeepDays
		}
	}
	return hc
}

func buildSinks(cfg *config.Config, log logx.Logger) []announce.Sink {
	sinks := []announce.Sink{announce.LogSink{Log: log.With(logx.String("comp", "broadcast"))}}
	if cfg.Telegram != nil && cfg.Telegram.Enabled {
		ts, err := announce.NewTelegramSink(announce.TelegramConfig{
			Token:      cfg.Telegram.Token,
			ChatID:     cfg.Telegram.ChatID,
			ThreadID:   cfg.Telegram.ThreadID,
			RatePerSec: cfg.Telegram.RatePerSec,
		})
		if err != nil {
			log.Warn("telegram sink unavailable", logx.Err(err))
		} else {
			sinks = append(sinks, ts)
		}
	}
	return sinks
}
