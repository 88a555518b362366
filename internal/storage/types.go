package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free JSON Lines backend
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Event is one schedule lifecycle record (armed, announced,
// shutdown-requested, disabled). Keep it compact and schema-stable.
type Event struct {
	At           time.Time `json:"at"`
	Kind         string    `json:"kind"`
	Detail       string    `json:"detail,omitempty"`
	ShutdownAt   time.Time `json:"shutdown_at,omitempty"`
	RemainingSec int64     `json:"remaining_sec,omitempty"`
}
