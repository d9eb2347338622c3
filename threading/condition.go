package threading

import (
	"sync/atomic"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/kolkov/threading/internal/threading/deadline"
	"github.com/kolkov/threading/internal/threading/diag"
)

// Condition is a wait/notify object with a single built-in predicate.
//
// Waiters block until a Signal or Broadcast arrives; there is no user
// predicate and no external lock. Because the predicate is internal, Signal
// and Broadcast can report whether anybody was waiting, which sync.Cond
// cannot.
//
// State (all mutated under the embedded Mutex):
//
//	signalPending     a wakeup is in flight
//	waiting           goroutines currently inside Wait/TimedWait
//	wokenByBroadcast  the pending wakeup is meant for every waiter
//
// The zero value is ready to use. A Condition must not be copied after first use.
type Condition struct {
	mu Mutex

	// waiters is the native condition variable: one channel per blocked
	// goroutine, closed to wake it.
	waiters []chan struct{}

	signalPending    atomic.Bool
	waiting          atomic.Int32
	wokenByBroadcast bool
}

// NewCondition returns a Condition with no waiters.
func NewCondition() *Condition {
	return &Condition{}
}

// Wait blocks until the condition is signaled. It always returns true unless
// the embedded lock fails.
func (c *Condition) Wait() (bool, error) {
	if err := c.mu.Lock(); err != nil {
		return false, opError("Condition.Wait", err)
	}

	c.waiting.Add(1)

	// Loop until the predicate holds; a wakeup may have been taken by
	// another goroutine before this one reacquired the lock.
	for !c.signalPending.Load() {
		ch := c.enqueue()

		if err := c.mu.Unlock(); err != nil {
			return false, opError("Condition.Wait", err)
		}

		<-ch

		if err := c.mu.Lock(); err != nil {
			return false, opError("Condition.Wait", err)
		}
	}

	c.woken()

	if err := c.mu.Unlock(); err != nil {
		return false, opError("Condition.Wait", err)
	}

	return true, nil
}

// TimedWait waits at most d for the condition to be signaled. It returns
// false, nil if the deadline passes first.
func (c *Condition) TimedWait(d time.Duration) (bool, error) {
	dl, err := deadline.After(d)
	if err != nil {
		return false, opError("Condition.TimedWait", err)
	}

	if err := c.mu.Lock(); err != nil {
		return false, opError("Condition.TimedWait", err)
	}

	c.waiting.Add(1)

	timer := deadline.Timer(dl)
	defer timer.Stop()

	expired := false
	for !c.signalPending.Load() {
		if expired {
			c.waiting.Add(-1)
			if err := c.mu.Unlock(); err != nil {
				return false, opError("Condition.TimedWait", err)
			}
			return false, nil
		}

		ch := c.enqueue()

		if err := c.mu.Unlock(); err != nil {
			return false, opError("Condition.TimedWait", err)
		}

		select {
		case <-ch:
		case <-timer.C:
			expired = true
		}

		if err := c.mu.Lock(); err != nil {
			return false, opError("Condition.TimedWait", err)
		}

		// Still queued: nobody picked this waiter, the wakeup (if any)
		// belongs to someone else.
		if expired && c.dequeue(ch) {
			c.waiting.Add(-1)
			if err := c.mu.Unlock(); err != nil {
				return false, opError("Condition.TimedWait", err)
			}
			return false, nil
		}
	}

	c.woken()

	if err := c.mu.Unlock(); err != nil {
		return false, opError("Condition.TimedWait", err)
	}

	return true, nil
}

// woken does the exit bookkeeping of a waiter that saw the predicate.
// Caller holds c.mu.
func (c *Condition) woken() {
	remaining := c.waiting.Add(-1)

	// A broadcast stays pending until the last waiter has seen it.
	if !c.wokenByBroadcast || remaining == 0 {
		c.signalPending.Store(false)
	}
}

// Signal wakes one waiter and reports whether there was any.
func (c *Condition) Signal() (bool, error) {
	return c.notify("Condition.Signal", false)
}

// Broadcast wakes every waiter and reports whether there was any.
func (c *Condition) Broadcast() (bool, error) {
	return c.notify("Condition.Broadcast", true)
}

func (c *Condition) notify(op string, all bool) (bool, error) {
	if err := c.mu.Lock(); err != nil {
		return false, opError(op, err)
	}

	pending := c.waiting.Load() != 0
	c.signalPending.Store(pending)
	c.wokenByBroadcast = all

	if all {
		for _, ch := range c.waiters {
			close(ch)
		}
		c.waiters = nil
	} else if len(c.waiters) > 0 {
		close(c.waiters[0])
		c.waiters = c.waiters[1:]
	}

	// pending was captured under the lock: the woken goroutine may clear
	// signalPending as soon as it is released.
	if err := c.mu.Unlock(); err != nil {
		return false, opError(op, err)
	}

	return pending, nil
}

// enqueue registers the caller as blocked. Caller holds c.mu.
func (c *Condition) enqueue() chan struct{} {
	ch := make(chan struct{})
	c.waiters = append(c.waiters, ch)
	return ch
}

// dequeue removes ch if it was not woken yet. Caller holds c.mu.
func (c *Condition) dequeue(ch chan struct{}) bool {
	for i, w := range c.waiters {
		if w == ch {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			return true
		}
	}
	return false
}

// Waiting returns the number of goroutines blocked in Wait or TimedWait.
func (c *Condition) Waiting() int {
	return int(c.waiting.Load())
}

// SignalPending reports whether a wakeup has been issued and not yet consumed.
func (c *Condition) SignalPending() bool {
	return c.signalPending.Load()
}

// Destroy tears the condition down. Destroying a condition that still has
// blocked waiters terminates the process (EBUSY).
func (c *Condition) Destroy() {
	var errs *multierror.Error

	if n := c.Waiting(); n > 0 {
		errs = multierror.Append(errs, &SystemError{Op: "Condition.Destroy", Errno: syscall.EBUSY})
	}

	teardown(diag.KindCondition, "Condition.Destroy", errs, "waiting", c.Waiting())

	c.mu.destroy(diag.KindCondition, "Condition.Destroy")
}
