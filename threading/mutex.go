package threading

import (
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/kolkov/threading/internal/threading/deadline"
	"github.com/kolkov/threading/internal/threading/diag"
	"github.com/kolkov/threading/internal/threading/goid"
	"github.com/kolkov/threading/internal/threading/stackdepot"
)

// Mutex is a non-recursive mutual exclusion lock that knows its owner.
//
// Unlike sync.Mutex, Mutex:
//   - Rejects a second Lock from the goroutine that already holds it (ErrDoubleLock)
//   - Rejects Unlock from any goroutine but the owner (ErrOwnerMismatch)
//   - Rejects Unlock of an unlocked mutex (ErrNotLocked) instead of crashing
//   - Supports TryLock and TimedLock
//   - Reports its owner and where the lock was taken
//
// The zero value is an unlocked mutex. A Mutex must not be copied after first use.
type Mutex struct {
	once sync.Once
	// sem is the native handle: a channel with capacity 1 holds a token
	// while the mutex is locked.
	sem chan struct{}

	// owner is the goroutine id of the holder, goid.None when unlocked.
	// locked == (owner != goid.None).
	owner atomic.Int64

	// site is the stack depot hash of the Lock call that took the mutex.
	site atomic.Uint64
}

// NewMutex returns an unlocked Mutex.
func NewMutex() *Mutex {
	m := &Mutex{}
	m.native()
	return m
}

func (m *Mutex) native() chan struct{} {
	m.once.Do(func() { m.sem = make(chan struct{}, 1) })
	return m.sem
}

// Lock blocks until the mutex is acquired by the calling goroutine.
//
// Returns ErrDoubleLock if the caller already holds it.
func (m *Mutex) Lock() error {
	me := goid.Current()
	if m.owner.Load() == me {
		return opError("Mutex.Lock", ErrDoubleLock)
	}

	m.native() <- struct{}{}
	m.acquired(me)

	return nil
}

// TryLock acquires the mutex if it is free and reports whether it did.
// It never blocks.
func (m *Mutex) TryLock() (bool, error) {
	me := goid.Current()
	if m.owner.Load() == me {
		return false, opError("Mutex.TryLock", ErrDoubleLock)
	}

	select {
	case m.native() <- struct{}{}:
		m.acquired(me)
		return true, nil
	default:
		return false, nil
	}
}

// TimedLock waits at most d for the mutex. It returns false, nil on expiry.
func (m *Mutex) TimedLock(d time.Duration) (bool, error) {
	me := goid.Current()
	if m.owner.Load() == me {
		return false, opError("Mutex.TimedLock", ErrDoubleLock)
	}

	dl, err := deadline.After(d)
	if err != nil {
		return false, opError("Mutex.TimedLock", err)
	}

	sem := m.native()

	select {
	case sem <- struct{}{}:
		m.acquired(me)
		return true, nil
	default:
	}

	timer := deadline.Timer(dl)
	defer timer.Stop()

	select {
	case sem <- struct{}{}:
		m.acquired(me)
		return true, nil
	case <-timer.C:
		return false, nil
	}
}

func (m *Mutex) acquired(me int64) {
	m.owner.Store(me)
	// Skip acquired and the Lock method: record the caller's site.
	m.site.Store(stackdepot.Capture(2))
}

// Unlock releases the mutex.
//
// Returns ErrNotLocked if the mutex is not locked and ErrOwnerMismatch if the
// caller is not the owner; the lock is left untouched in both cases.
func (m *Mutex) Unlock() error {
	owner := m.owner.Load()
	if owner == goid.None {
		return opError("Mutex.Unlock", ErrNotLocked)
	}

	if owner != goid.Current() {
		return opError("Mutex.Unlock", ErrOwnerMismatch)
	}

	// Ownership is cleared before the release: once the token is gone another
	// goroutine may acquire and must not be reported as the old owner.
	site := m.site.Swap(0)
	m.owner.Store(goid.None)

	select {
	case <-m.native():
		return nil
	default:
		m.owner.Store(owner)
		m.site.Store(site)
		return &SystemError{Op: "Mutex.Unlock", Errno: syscall.EPERM}
	}
}

// IsLocked reports whether the mutex is held by any goroutine.
//
// Ownership is recorded just after the native acquire, so IsLocked can
// briefly report false for a mutex whose Lock is completing.
func (m *Mutex) IsLocked() bool {
	return m.owner.Load() != goid.None
}

// Owner returns the goroutine id of the holder.
func (m *Mutex) Owner() (int64, bool) {
	owner := m.owner.Load()
	return owner, owner != goid.None
}

// LockedAt returns the function and file:line that took the lock, or "" when
// the mutex is unlocked.
func (m *Mutex) LockedAt() string {
	hash := m.site.Load()
	if hash == 0 {
		return ""
	}

	return stackdepot.Lookup(hash).Caller()
}

// Destroy releases a mutex that is still locked.
//
// Only the owner can release it; from any other goroutine the misuse is
// logged to the mutex error logger and the lock stays held. A failing native
// release terminates the process.
func (m *Mutex) Destroy() {
	m.destroy(diag.KindMutex, "Mutex.Destroy")
}

func (m *Mutex) destroy(kind Kind, op string) {
	if !m.IsLocked() {
		return
	}

	site := m.LockedAt()

	var errs *multierror.Error
	if err := m.Unlock(); err != nil {
		errs = multierror.Append(errs, err)
	}

	teardown(kind, op, errs, "gid", goid.Current(), "site", site)
}
