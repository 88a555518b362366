package config

// Config is the full on-disk configuration. Decoding is strict: unknown
// fields are rejected so typos are caught at reload time instead of being
// silently ignored.
type Config struct {
	Logging  LoggingConfig  `json:"logging"`
	Shutdown ShutdownConfig `json:"shutdown"`

	Telegram *TelegramConfig `json:"telegram,omitempty"`
	Storage  *StorageConfig  `json:"storage,omitempty"`
	History  *HistoryConfig  `json:"history,omitempty"`

	// TickInterval is a Go duration string driving the schedule tick loop.
	// Default: "500ms".
	TickInterval string `json:"tick_interval,omitempty"`
}

// ShutdownConfig controls the daily scheduled shutdown.
type ShutdownConfig struct {
	Enabled bool `json:"enabled"`

	// Time is the daily target time-of-day, strict "HH:MM:SS" local time.
	// Default: "04:00:00".
	Time string `json:"time,omitempty"`

	PreAnnounce PreAnnounceConfig `json:"pre_announce,omitempty"`

	// GraceDelay is a Go duration string passed to the shutdown request
	// (how long the host gives clients before actually going down).
	// Default: "10s".
	GraceDelay string `json:"grace_delay,omitempty"`

	// ExitCode is reported to the shutdown driver; the process driver exits
	// with it, the systemd driver only logs it.
	ExitCode int `json:"exit_code,omitempty"`

	// Driver selects the shutdown executor: "noop" (default), "process",
	// or "systemd" (requires Unit).
	Driver string `json:"driver,omitempty"`
	Unit   string `json:"unit,omitempty"`
}

// PreAnnounceConfig controls the broadcast sent before the shutdown.
//
// Seconds and Delay are accepted as aliases for the lead time; Seconds wins
// when both are set. Default: 3600.
type PreAnnounceConfig struct {
	Seconds *uint32 `json:"seconds,omitempty"`
	Delay   *uint32 `json:"delay,omitempty"`

	// Message is the announcement template with one %s slot for the
	// human-readable remaining time.
	Message string `json:"message,omitempty"`
}

// LeadSeconds resolves the configured lead time, applying the alias rule and
// the default.
func (p PreAnnounceConfig) LeadSeconds() uint32 {
	if p.Seconds != nil {
		return *p.Seconds
	}
	if p.Delay != nil {
		return *p.Delay
	}
	return DefaultPreAnnounceSeconds
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// TelegramConfig enables the optional ops-channel announcement sink.
type TelegramConfig struct {
	Enabled    bool   `json:"enabled"`
	Token      string `json:"token"`
	ChatID     int64  `json:"chat_id"`
	ThreadID   int    `json:"thread_id,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// StorageConfig controls the optional schedule-event history store.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./shutdownd.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// HistoryConfig controls retention of the event history.
type HistoryConfig struct {
	// PruneSpec is a cron expression (or descriptor like "@daily") for the
	// retention job. Default: "@daily".
	PruneSpec string `json:"prune_spec,omitempty"`
	// KeepDays is how many days of events survive a prune. Default: 30.
	KeepDays int `json:"keep_days,omitempty"`
}

const (
	DefaultShutdownTime       = "04:00:00"
	DefaultPreAnnounceSeconds = 3600
	DefaultPreAnnounceMessage = "[SERVER]: Automated (quick) server restart in %s"
	DefaultGraceDelay         = "10s"
	DefaultTickInterval       = "500ms"
	DefaultPruneSpec          = "@daily"
	DefaultKeepDays           = 30
)

// TimeOrDefault returns the configured time-of-day string or the default.
func (c ShutdownConfig) TimeOrDefault() string {
	if c.Time == "" {
		return DefaultShutdownTime
	}
	return c.Time
}

// MessageOrDefault returns the announcement template or the default.
func (p PreAnnounceConfig) MessageOrDefault() string {
	if p.Message == "" {
		return DefaultPreAnnounceMessage
	}
	return p.Message
}
