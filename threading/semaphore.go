package threading

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/semaphore"

	"github.com/kolkov/threading/internal/syncutil"
	"github.com/kolkov/threading/internal/threading/deadline"
	"github.com/kolkov/threading/internal/threading/diag"
	"github.com/kolkov/threading/internal/threading/goid"
)

// Semaphore is a bounded counting semaphore that tracks its holders.
//
// Each goroutine may hold at most one permit of a given Semaphore at a time.
// This is stricter than a raw counting semaphore, and in exchange both a
// second Acquire (ErrDoubleAcquire) and a Release without a permit
// (ErrNotHeld) are detected deterministically.
//
// Counters:
//   - Value: permits currently held, 0 <= Value <= Max
//   - Queue: goroutines currently inside an acquire call
type Semaphore struct {
	native *semaphore.Weighted
	max    int64

	current atomic.Int64
	queue   atomic.Int64

	mu      syncutil.Mutex
	holders map[int64]bool // goroutine id → holds a permit
}

// NewSemaphore returns a Semaphore with maxValue permits. maxValue must be positive.
func NewSemaphore(maxValue uint) (*Semaphore, error) {
	if maxValue == 0 {
		return nil, opError("NewSemaphore", fmt.Errorf("%w: zero capacity", ErrInvalidArgument))
	}

	return &Semaphore{
		native:  semaphore.NewWeighted(int64(maxValue)),
		max:     int64(maxValue),
		holders: make(map[int64]bool),
	}, nil
}

// Acquire blocks until a permit is available.
func (s *Semaphore) Acquire() error {
	me := goid.Current()
	if s.holds(me) {
		return opError("Semaphore.Acquire", ErrDoubleAcquire)
	}

	s.queue.Add(1)
	err := s.native.Acquire(context.Background(), 1)
	s.queue.Add(-1)

	if err != nil {
		return &SystemError{Op: "Semaphore.Acquire", Errno: syscall.EINTR}
	}

	s.acquired(me)

	return nil
}

// TryAcquire takes a permit if one is free and reports whether it did.
func (s *Semaphore) TryAcquire() (bool, error) {
	me := goid.Current()
	if s.holds(me) {
		return false, opError("Semaphore.TryAcquire", ErrDoubleAcquire)
	}

	s.queue.Add(1)
	ok := s.native.TryAcquire(1)
	s.queue.Add(-1)

	if !ok {
		return false, nil
	}

	s.acquired(me)

	return true, nil
}

// TimedAcquire waits at most d for a permit. It returns false, nil on expiry.
func (s *Semaphore) TimedAcquire(d time.Duration) (bool, error) {
	me := goid.Current()
	if s.holds(me) {
		return false, opError("Semaphore.TimedAcquire", ErrDoubleAcquire)
	}

	dl, err := deadline.After(d)
	if err != nil {
		return false, opError("Semaphore.TimedAcquire", err)
	}

	ctx, cancel := context.WithDeadline(context.Background(), dl)
	defer cancel()

	s.queue.Add(1)
	err = s.native.Acquire(ctx, 1)
	s.queue.Add(-1)

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return false, nil
	case err != nil:
		return false, &SystemError{Op: "Semaphore.TimedAcquire", Errno: syscall.EINTR}
	}

	s.acquired(me)

	return true, nil
}

func (s *Semaphore) acquired(me int64) {
	s.current.Add(1)

	s.mu.Lock()
	s.holders[me] = true
	s.mu.Unlock()
}

func (s *Semaphore) holds(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.holders[id]
}

// Release returns the caller's permit. Returns ErrNotHeld if the caller has none.
func (s *Semaphore) Release() error {
	me := goid.Current()
	if !s.holds(me) {
		return opError("Semaphore.Release", ErrNotHeld)
	}

	// Count the permit as returned before the native release: once it is
	// released another goroutine may take it, and Value must stay <= Max.
	s.current.Add(-1)
	if err := s.release(); err != nil {
		s.current.Add(1)
		return err
	}

	s.mu.Lock()
	delete(s.holders, me)
	s.mu.Unlock()

	return nil
}

// release returns one permit to the native semaphore, which panics when more
// permits are released than were acquired.
func (s *Semaphore) release() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &SystemError{Op: "Semaphore.Release", Errno: syscall.EOVERFLOW}
		}
	}()

	s.native.Release(1)

	return nil
}

// Value returns the number of permits currently held.
func (s *Semaphore) Value() int {
	return int(s.current.Load())
}

// Queue returns the number of goroutines currently inside an acquire call.
func (s *Semaphore) Queue() int {
	return int(s.queue.Load())
}

// Max returns the capacity.
func (s *Semaphore) Max() int {
	return int(s.max)
}

// Holding reports whether the calling goroutine holds a permit.
func (s *Semaphore) Holding() bool {
	return s.holds(goid.Current())
}

// Destroy tears the semaphore down. Goroutines still blocked in Acquire make
// this fatal (EBUSY); permits still held are logged.
func (s *Semaphore) Destroy() {
	var errs *multierror.Error

	if q := s.Queue(); q > 0 {
		errs = multierror.Append(errs, &SystemError{Op: "Semaphore.Destroy", Errno: syscall.EBUSY})
	}

	s.mu.Lock()
	held := len(s.holders)
	s.mu.Unlock()

	if held > 0 {
		errs = multierror.Append(errs, fmt.Errorf("%w: %d permits still held", ErrLogic, held))
	}

	teardown(diag.KindSemaphore, "Semaphore.Destroy", errs, "value", s.Value(), "queue", s.Queue())
}
