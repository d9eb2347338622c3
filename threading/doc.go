// Package threading provides synchronization primitives that detect their own
// misuse.
//
// The primitives mirror the classic POSIX set and add owner tracking, so that
// mistakes which are undefined behavior on a raw primitive become ordinary
// errors:
//
//   - [Mutex]: non-recursive, owner-checked exclusive lock
//   - [Condition]: wait/notify object with one built-in predicate
//   - [Semaphore]: bounded counting semaphore with per-goroutine holder tracking
//   - [RWLock]: reader/writer lock with live reader and writer counts
//   - [Thread]: handle to a unit of execution with join/detach/cancel/signal
//
// # Quick Start
//
//	var mu threading.Mutex
//
//	if err := mu.Lock(); err != nil {
//		return err // ErrDoubleLock: this goroutine already holds mu
//	}
//	defer mu.Unlock()
//
// # Identity
//
// The "caller" of an operation is the calling goroutine. Mutex ownership and
// Semaphore permits belong to the goroutine that took them; only that
// goroutine can give them back.
//
// # Timeouts
//
// Every blocking operation has a Try variant that never blocks and a Timed
// variant that takes a time.Duration. Both report an unavailable resource as
// a false result, never as an error:
//
//	ok, err := sem.TimedAcquire(50 * time.Millisecond)
//	switch {
//	case err != nil:
//		// misuse or system failure
//	case !ok:
//		// timed out
//	}
//
// A negative duration fails with [ErrInvalidArgument] before anything blocks.
//
// # Errors
//
// Errors fall in three groups, each matched with errors.Is:
//
//   - [ErrInvalidArgument], [ErrSystemUnavailable]: bad input, unreadable clock
//   - [ErrLogic]: misuse, e.g. [ErrDoubleLock], [ErrOwnerMismatch], [ErrNotHeld]
//   - [ErrSystem]: a [*SystemError] from the underlying resource, carrying the
//     operation and errno
//
// # Teardown
//
// Go has no destructors, so each primitive has a Destroy method for the point
// where it is discarded. Destroy never returns an error: misuse found there
// is written to the logger of the primitive kind (see [SetErrorLogger]) and a
// system failure terminates the process with exit status 71 (EX_OSERR).
package threading
