// Package schedule implements the daily shutdown schedule.
//
// # Overview
//
// The service owns a small queue of one-shot tasks. On (re)initialization it
// cancels anything pending, computes the next occurrence of the configured
// time-of-day, and arms two tasks: a pre-announce broadcast a configured lead
// time before the shutdown, and the shutdown request itself. A host-driven
// tick (Advance) decrements remaining delays and fires due tasks.
//
// # Scheduling policy
//
// One coherent policy is implemented:
//
//   - If the next occurrence is less than 10 seconds away at initialization,
//     it is pushed forward one full day. This keeps an init/reload burst from
//     announcing and shutting down in the same breath.
//   - The shutdown is an independently scheduled task; the pre-announce task
//     only broadcasts.
//   - If the configured lead time would place the pre-announce in the past,
//     the announcement fires one second after initialization and reports the
//     true remaining time instead of the configured lead.
//
// # Concurrency
//
// Initialize and Advance are expected to be driven from one goroutine (the
// app's tick loop plus its reload loop). All state is still guarded by a
// single mutex so a multi-goroutine host stays safe; task actions fire
// outside the lock and run to completion on the caller's goroutine.
package schedule
