package commands

import (
	"sync/atomic"
	"time"

	"github.com/kolkov/threading/threading"
)

// settle bounds how long a check waits for goroutines to reach a blocked state.
const settle = 5 * time.Second

var conditionGroup = group{
	name:  "condition",
	short: "Check Condition signal, broadcast and timed wait",
	checks: []check{
		{"signal without waiters", checkConditionNoWaiters},
		{"signal wakes one waiter", checkConditionSignal},
		{"broadcast wakes every waiter", checkConditionBroadcast},
		{"timed wait expires", checkConditionTimedWait},
	},
}

var semaphoreGroup = group{
	name:  "semaphore",
	short: "Check Semaphore capacity and misuse detection",
	checks: []check{
		{"capacity bound", checkSemaphoreCapacity},
		{"double acquire detected", checkSemaphoreDoubleAcquire},
		{"release without permit detected", checkSemaphoreNotHeld},
		{"timed acquire expires", checkSemaphoreTimedAcquire},
	},
}

// park blocks n goroutines in c.Wait and returns a counter of those woken.
func park(c *threading.Condition, n int) (*atomic.Int32, chan error, error) {
	var woken atomic.Int32
	errs := make(chan error, n)

	for range n {
		go func() {
			_, err := c.Wait()
			woken.Add(1)
			errs <- err
		}()
	}

	return &woken, errs, waitFor(settle, func() bool { return c.Waiting() == n })
}

func checkConditionNoWaiters(Config) error {
	c := threading.NewCondition()

	ok, err := c.Signal()
	if err != nil {
		return err
	}

	return expect(!ok, "signal reported a waiter")
}

func checkConditionSignal(cfg Config) error {
	n := max(cfg.Goroutines, 2)
	c := threading.NewCondition()

	woken, errs, err := park(c, n)
	if err != nil {
		return err
	}

	ok, err := c.Signal()
	if err != nil {
		return err
	}

	if err := expect(ok, "signal reported no waiter"); err != nil {
		return err
	}

	if err := <-errs; err != nil {
		return err
	}

	// Give any wrongly woken waiter time to show up.
	time.Sleep(cfg.Timeout)

	one := expect(woken.Load() == 1 && c.Waiting() == n-1,
		"woken = %d, still waiting = %d", woken.Load(), c.Waiting())

	if _, err := c.Broadcast(); err != nil {
		return err
	}

	for range n - 1 {
		if err := <-errs; err != nil {
			return err
		}
	}

	return one
}

func checkConditionBroadcast(cfg Config) error {
	n := cfg.Goroutines
	c := threading.NewCondition()

	woken, errs, err := park(c, n)
	if err != nil {
		return err
	}

	ok, err := c.Broadcast()
	if err != nil {
		return err
	}

	for range n {
		if err := <-errs; err != nil {
			return err
		}
	}

	return expect(ok && int(woken.Load()) == n && c.Waiting() == 0 && !c.SignalPending(),
		"woken = %d of %d, waiting = %d, pending = %t", woken.Load(), n, c.Waiting(), c.SignalPending())
}

func checkConditionTimedWait(cfg Config) error {
	return timedExpiry(cfg, threading.NewCondition().TimedWait)
}

func checkSemaphoreCapacity(cfg Config) error {
	capacity := max(cfg.Goroutines/2, 1)

	s, err := threading.NewSemaphore(uint(capacity))
	if err != nil {
		return err
	}

	var inside, peak atomic.Int32

	err = contend(cfg, func(int) error {
		for range cfg.Iterations {
			if err := s.Acquire(); err != nil {
				return err
			}

			raise(&peak, inside.Add(1))
			inside.Add(-1)

			if err := s.Release(); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	return expect(int(peak.Load()) <= capacity && s.Value() == 0,
		"peak holders = %d, capacity %d, value %d", peak.Load(), capacity, s.Value())
}

func checkSemaphoreDoubleAcquire(Config) error {
	s, err := threading.NewSemaphore(2)
	if err != nil {
		return err
	}

	if err := s.Acquire(); err != nil {
		return err
	}

	if err := expectErr(s.Acquire(), threading.ErrDoubleAcquire); err != nil {
		return err
	}

	if err := expect(s.Value() == 1, "value = %d after rejected acquire", s.Value()); err != nil {
		return err
	}

	return s.Release()
}

func checkSemaphoreNotHeld(Config) error {
	s, err := threading.NewSemaphore(1)
	if err != nil {
		return err
	}

	release, err := holdIn(s.Acquire, s.Release)
	if err != nil {
		return err
	}

	notHeld := expectErr(s.Release(), threading.ErrNotHeld)

	if err := release(); err != nil {
		return err
	}

	return notHeld
}

func checkSemaphoreTimedAcquire(cfg Config) error {
	s, err := threading.NewSemaphore(1)
	if err != nil {
		return err
	}

	release, err := holdIn(s.Acquire, s.Release)
	if err != nil {
		return err
	}

	timed := timedExpiry(cfg, s.TimedAcquire)

	if err := release(); err != nil {
		return err
	}

	return timed
}

// raise lifts peak to n if n is larger.
func raise(peak *atomic.Int32, n int32) {
	for {
		p := peak.Load()
		if n <= p || peak.CompareAndSwap(p, n) {
			return
		}
	}
}
