package schedule

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"shutdownd/internal/eventbus"
	logx "shutdownd/pkg/logx"
)

const (
	day = 24 * time.Hour

	// quickRestartWindow guards a freshly (re)loaded config whose target is
	// almost due: firing an announce/shutdown pair inside the same tick burst
	// as initialization would give operators no chance to react.
	quickRestartWindow = 10 * time.Second

	maxPreAnnounceSeconds = 86400
	clampedPreAnnounce    = time.Hour
)

// Event types published on the bus. Data payloads are the *Data structs below.
const (
	EventArmed             = "schedule.armed"
	EventDisabled          = "schedule.disabled"
	EventAnnounced         = "schedule.announced"
	EventShutdownRequested = "schedule.shutdown_requested"
)

type ArmedData struct {
	ShutdownAt time.Time     `json:"shutdown_at"`
	AnnounceAt time.Time     `json:"announce_at"`
	Remaining  time.Duration `json:"remaining"`
}

type DisabledData struct {
	Reason string `json:"reason"`
}

type AnnouncedData struct {
	Message string        `json:"message"`
	Lead    time.Duration `json:"lead"`
}

type ShutdownRequestedData struct {
	Grace    time.Duration `json:"grace"`
	ExitCode int           `json:"exit_code"`
}

// Snapshot is the immutable configuration slice read once per (re)initialization.
type Snapshot struct {
	Enabled            bool
	Time               string // "HH:MM:SS"
	PreAnnounceSeconds uint32
	PreAnnounceMessage string // one %s slot for the remaining time
	GraceDelay         time.Duration
	ExitCode           int
}

// Broadcaster delivers an announcement to whoever is listening (players,
// ops channel). Delivery failures are the collaborator's concern; the
// schedule never retries.
type Broadcaster interface {
	Broadcast(ctx context.Context, message string) error
}

// Controller is the host-side shutdown surface.
type Controller interface {
	RequestShutdown(ctx context.Context, grace time.Duration, exitCode int) error
	CancelPending(ctx context.Context) error
}

// Service owns the shutdown schedule. See the package doc for the policy.
type Service struct {
	mu sync.Mutex

	log logx.Logger
	bus eventbus.Bus

	bc  Broadcaster
	ctl Controller

	enabled bool
	queue   taskQueue

	shutdownAt time.Time
	announceAt time.Time
}

func New(bc Broadcaster, ctl Controller, bus eventbus.Bus, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{log: log, bus: bus, bc: bc, ctl: ctl}
}

// Enabled reports whether a schedule is currently armed.
func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// NextShutdown returns the armed shutdown instant, if any.
func (s *Service) NextShutdown() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdownAt, s.enabled
}

// NextAnnounce returns the armed pre-announce instant, if any.
func (s *Service) NextAnnounce() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.announceAt, s.enabled
}

// Pending returns the number of queued one-shot tasks.
func (s *Service) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.pending()
}

// Initialize arms (or disarms) the schedule from a config snapshot.
// It is called once at startup and again on every config reload.
//
// Pending tasks and any host-side pending shutdown are cancelled before the
// snapshot is validated, so reloading into a disabled or broken config can
// never leave a stale task armed.
func (s *Service) Initialize(ctx context.Context, snap Snapshot, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queue.cancelAll()
	s.enabled = false
	s.shutdownAt = time.Time{}
	s.announceAt = time.Time{}

	if err := s.ctl.CancelPending(ctx); err != nil {
		s.log.Warn("cancel pending shutdown failed", logx.Err(err))
	}

	if !snap.Enabled {
		s.log.Debug("auto shutdown disabled")
		s.publish(eventbus.Event{Type: EventDisabled, Time: now, Data: DisabledData{Reason: "disabled in config"}})
		return
	}

	tod, err := ParseTimeOfDay(snap.Time)
	if err != nil {
		s.log.Error("invalid shutdown time, auto shutdown disabled",
			logx.String("time", snap.Time), logx.Err(err))
		s.publish(eventbus.Event{Type: EventDisabled, Time: now, Data: DisabledData{Reason: err.Error()}})
		return
	}

	shutdownAt := NextOccurrence(now, tod)
	if shutdownAt.Sub(now) < quickRestartWindow {
		s.log.Info("next shutdown under 10 seconds away, pushing to next day",
			logx.Time("was", shutdownAt))
		shutdownAt = shutdownAt.Add(day)
	}
	diffToShutdown := shutdownAt.Sub(now)

	lead := time.Duration(snap.PreAnnounceSeconds) * time.Second
	if snap.PreAnnounceSeconds > maxPreAnnounceSeconds {
		s.log.Warn("pre-announce lead exceeds one day, clamping to 1 hour",
			logx.Uint64("seconds", uint64(snap.PreAnnounceSeconds)))
		lead = clampedPreAnnounce
	}

	announceAt := shutdownAt.Add(-lead)
	diffToAnnounce := announceAt.Sub(now)
	if diffToShutdown < lead {
		// Too late for the configured lead. Announce almost immediately and
		// report the true remaining time, not the configured offset.
		diffToAnnounce = time.Second
		announceAt = now.Add(time.Second)
		lead = diffToShutdown
	}

	template := snap.PreAnnounceMessage
	effectiveLead := lead
	grace := snap.GraceDelay
	exitCode := snap.ExitCode

	s.queue.schedule("pre-announce", diffToAnnounce, func(ctx context.Context) {
		message := formatAnnounce(template, HumanDuration(effectiveLead))
		s.log.Info("pre-announce", logx.String("message", message))
		if err := s.bc.Broadcast(ctx, message); err != nil {
			s.log.Warn("broadcast failed", logx.Err(err))
		}
		s.publish(eventbus.Event{Type: EventAnnounced, Data: AnnouncedData{Message: message, Lead: effectiveLead}})
	})

	s.queue.schedule("shutdown", diffToShutdown, func(ctx context.Context) {
		s.log.Info("requesting shutdown",
			logx.Duration("grace", grace), logx.Int("exit_code", exitCode))
		if err := s.ctl.RequestShutdown(ctx, grace, exitCode); err != nil {
			s.log.Error("shutdown request failed", logx.Err(err))
		}
		s.publish(eventbus.Event{Type: EventShutdownRequested, Data: ShutdownRequestedData{Grace: grace, ExitCode: exitCode}})
	})

	s.enabled = true
	s.shutdownAt = shutdownAt
	s.announceAt = announceAt

	s.log.Info("shutdown schedule armed",
		logx.Time("shutdown_at", shutdownAt),
		logx.String("remaining", HumanDuration(diffToShutdown)),
		logx.Time("announce_at", announceAt),
		logx.String("announce_in", HumanDuration(diffToAnnounce)))
	s.publish(eventbus.Event{Type: EventArmed, Time: now, Data: ArmedData{
		ShutdownAt: shutdownAt,
		AnnounceAt: announceAt,
		Remaining:  diffToShutdown,
	}})
}

// Advance moves the schedule forward by the elapsed time since the previous
// tick and fires any due tasks on the caller's goroutine, FIFO among tasks
// due in the same tick. It never blocks on timers and is a no-op while
// disabled or for a non-positive elapsed duration.
func (s *Service) Advance(ctx context.Context, elapsed time.Duration) {
	s.mu.Lock()
	if !s.enabled {
		s.mu.Unlock()
		return
	}
	due := s.queue.collectDue(elapsed)
	s.mu.Unlock()

	for _, t := range due {
		t.fire(ctx)
	}
}

func (s *Service) publish(e eventbus.Event) {
	if s.bus != nil {
		s.bus.Publish(e)
	}
}

func formatAnnounce(template, remaining string) string {
	if strings.Contains(template, "%s") {
		return fmt.Sprintf(template, remaining)
	}
	// Template without a slot still gets the remaining time appended so the
	// message never lies by omission.
	return strings.TrimSpace(template + " " + remaining)
}
