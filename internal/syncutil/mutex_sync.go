//go:build !deadlock

// Package syncutil provides the bookkeeping mutex used inside the primitives.
// Build with -tags=deadlock to enable deadlock detection during development.
package syncutil

import "sync"

// DeadlockEnabled is true if the deadlock detector is enabled.
const DeadlockEnabled = false

// A Mutex guards primitive bookkeeping (holder sets, thread state).
type Mutex struct {
	sync.Mutex
}
