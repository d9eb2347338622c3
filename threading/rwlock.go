package threading

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/semaphore"

	"github.com/kolkov/threading/internal/threading/deadline"
	"github.com/kolkov/threading/internal/threading/diag"
)

// rwMaxReaders is the weight of a write lock: a writer takes every read slot.
const rwMaxReaders = 1 << 30

// RWLock is a reader/writer lock with live reader and writer counts.
//
// Any number of readers or a single writer may hold it. Read locks are not
// tied to goroutine identity: one goroutine may take several and each is
// counted (and must be unlocked) separately. Waiters are served in arrival
// order, so a blocked writer holds back readers that arrive after it.
//
// The zero value is unlocked. An RWLock must not be copied after first use.
type RWLock struct {
	once sync.Once
	// native hands out rwMaxReaders slots; a reader takes one, a writer all.
	native *semaphore.Weighted

	readers atomic.Int64
	writer  atomic.Bool
}

// NewRWLock returns an unlocked RWLock.
func NewRWLock() *RWLock {
	l := &RWLock{}
	l.sem()
	return l
}

func (l *RWLock) sem() *semaphore.Weighted {
	l.once.Do(func() { l.native = semaphore.NewWeighted(rwMaxReaders) })
	return l.native
}

// RLock blocks until a read lock is acquired.
func (l *RWLock) RLock() error {
	if err := l.sem().Acquire(context.Background(), 1); err != nil {
		return &SystemError{Op: "RWLock.RLock", Errno: syscall.EINTR}
	}

	l.readers.Add(1)

	return nil
}

// Lock blocks until the write lock is acquired.
func (l *RWLock) Lock() error {
	if err := l.sem().Acquire(context.Background(), rwMaxReaders); err != nil {
		return &SystemError{Op: "RWLock.Lock", Errno: syscall.EINTR}
	}

	l.writer.Store(true)

	return nil
}

// TryRLock takes a read lock if no writer holds or waits for the lock.
func (l *RWLock) TryRLock() (bool, error) {
	if !l.sem().TryAcquire(1) {
		return false, nil
	}

	l.readers.Add(1)

	return true, nil
}

// TryLock takes the write lock if the lock is completely free.
func (l *RWLock) TryLock() (bool, error) {
	if !l.sem().TryAcquire(rwMaxReaders) {
		return false, nil
	}

	l.writer.Store(true)

	return true, nil
}

// TimedRLock waits at most d for a read lock. It returns false, nil on expiry.
func (l *RWLock) TimedRLock(d time.Duration) (bool, error) {
	ok, err := l.timedAcquire("RWLock.TimedRLock", d, 1)
	if ok {
		l.readers.Add(1)
	}

	return ok, err
}

// TimedLock waits at most d for the write lock. It returns false, nil on expiry.
func (l *RWLock) TimedLock(d time.Duration) (bool, error) {
	ok, err := l.timedAcquire("RWLock.TimedLock", d, rwMaxReaders)
	if ok {
		l.writer.Store(true)
	}

	return ok, err
}

func (l *RWLock) timedAcquire(op string, d time.Duration, weight int64) (bool, error) {
	dl, err := deadline.After(d)
	if err != nil {
		return false, opError(op, err)
	}

	ctx, cancel := context.WithDeadline(context.Background(), dl)
	defer cancel()

	err = l.sem().Acquire(ctx, weight)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return false, nil
	case err != nil:
		return false, &SystemError{Op: op, Errno: syscall.EINTR}
	}

	return true, nil
}

// Unlock releases the write lock if it is held, otherwise one read lock.
//
// Returns ErrNotLocked if neither is held.
func (l *RWLock) Unlock() error {
	if !l.IsLocked() {
		return opError("RWLock.Unlock", ErrNotLocked)
	}

	// The counters are updated before the native release and restored if it
	// fails, so a racing observer never sees a released lock as still held.
	if l.writer.Load() {
		l.writer.Store(false)
		if err := l.release(rwMaxReaders); err != nil {
			l.writer.Store(true)
			return err
		}
		return nil
	}

	l.readers.Add(-1)
	if err := l.release(1); err != nil {
		l.readers.Add(1)
		return err
	}

	return nil
}

func (l *RWLock) release(weight int64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &SystemError{Op: "RWLock.Unlock", Errno: syscall.EPERM}
		}
	}()

	l.sem().Release(weight)

	return nil
}

// Readers returns the number of read locks currently held.
func (l *RWLock) Readers() int {
	return int(l.readers.Load())
}

// WriteLocked reports whether the write lock is held.
func (l *RWLock) WriteLocked() bool {
	return l.writer.Load()
}

// IsLocked reports whether any read lock or the write lock is held.
func (l *RWLock) IsLocked() bool {
	return l.writer.Load() || l.readers.Load() > 0
}

// Destroy releases one still-held lock (the write lock, or one read lock).
// A failing native release terminates the process.
func (l *RWLock) Destroy() {
	if !l.IsLocked() {
		return
	}

	var errs *multierror.Error
	if err := l.Unlock(); err != nil {
		errs = multierror.Append(errs, err)
	}

	teardown(diag.KindRWLock, "RWLock.Destroy", errs, "readers", l.Readers(), "writer", l.WriteLocked())
}
