package storage

// Package storage provides a minimal persistence layer for the schedule
// event history.
//
// It currently supports:
//   - Append-only lifecycle events (armed/announced/shutdown-requested/disabled)
//   - Recent-event reads, newest first
//   - Retention pruning by cutoff
