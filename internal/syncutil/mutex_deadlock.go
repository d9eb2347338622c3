//go:build deadlock

// Package syncutil provides the bookkeeping mutex used inside the primitives.
// Build with -tags=deadlock to enable deadlock detection during development.
package syncutil

import (
	"time"

	deadlock "github.com/sasha-s/go-deadlock"
)

// DeadlockEnabled is true if the deadlock detector is enabled.
const DeadlockEnabled = true

func init() {
	// Bookkeeping sections never block; anything held this long is stuck.
	deadlock.Opts.DeadlockTimeout = 30 * time.Second
}

// A Mutex guards primitive bookkeeping (holder sets, thread state).
type Mutex struct {
	deadlock.Mutex
}
