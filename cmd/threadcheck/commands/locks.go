package commands

import (
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"

	"github.com/kolkov/threading/threading"
)

var mutexGroup = group{
	name:  "mutex",
	short: "Check Mutex exclusion and misuse detection",
	checks: []check{
		{"mutual exclusion", checkMutexExclusion},
		{"double lock detected", checkMutexDoubleLock},
		{"owner mismatch detected", checkMutexOwnerMismatch},
		{"unlock of unlocked detected", checkMutexNotLocked},
		{"timed lock expires", checkMutexTimedLock},
	},
}

var rwlockGroup = group{
	name:  "rwlock",
	short: "Check RWLock sharing, exclusion and misuse detection",
	checks: []check{
		{"readers share", checkRWLockReadersShare},
		{"writer excludes", checkRWLockWriterExcludes},
		{"unlock of unlocked detected", checkRWLockNotLocked},
		{"timed write lock expires", checkRWLockTimedLock},
	},
}

// contend runs body in cfg.Goroutines goroutines and collects their errors.
func contend(cfg Config, body func(i int) error) error {
	var (
		mu   sync.Mutex
		errs *multierror.Error
		wg   sync.WaitGroup
	)

	for i := range cfg.Goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()

			if err := body(i); err != nil {
				mu.Lock()
				errs = multierror.Append(errs, err)
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	return errs.ErrorOrNil()
}

func checkMutexExclusion(cfg Config) error {
	mu := threading.NewMutex()
	counter := 0

	err := contend(cfg, func(int) error {
		for range cfg.Iterations {
			if err := mu.Lock(); err != nil {
				return err
			}
			counter++
			if err := mu.Unlock(); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	want := cfg.Goroutines * cfg.Iterations

	return expect(counter == want, "counter = %d, want %d", counter, want)
}

func checkMutexDoubleLock(Config) error {
	mu := threading.NewMutex()
	if err := mu.Lock(); err != nil {
		return err
	}

	if err := expectErr(mu.Lock(), threading.ErrDoubleLock); err != nil {
		return err
	}

	if err := expect(mu.IsLocked(), "lock released by the rejected call"); err != nil {
		return err
	}

	return mu.Unlock()
}

func checkMutexOwnerMismatch(Config) error {
	mu := threading.NewMutex()

	release, err := holdIn(mu.Lock, mu.Unlock)
	if err != nil {
		return err
	}

	mismatch := expectErr(mu.Unlock(), threading.ErrOwnerMismatch)

	if err := release(); err != nil {
		return err
	}

	return mismatch
}

func checkMutexNotLocked(Config) error {
	return expectErr(threading.NewMutex().Unlock(), threading.ErrNotLocked)
}

func checkMutexTimedLock(cfg Config) error {
	mu := threading.NewMutex()

	release, err := holdIn(mu.Lock, mu.Unlock)
	if err != nil {
		return err
	}

	timed := timedExpiry(cfg, mu.TimedLock)

	if err := release(); err != nil {
		return err
	}

	return timed
}

func checkRWLockReadersShare(cfg Config) error {
	l := threading.NewRWLock()

	var (
		inside   atomic.Int32
		all      = make(chan struct{})
		arrivals sync.WaitGroup
	)

	arrivals.Add(cfg.Goroutines)
	go func() {
		arrivals.Wait()
		close(all)
	}()

	// Every reader waits inside the read lock until all of them are in.
	err := contend(cfg, func(int) error {
		if err := l.RLock(); err != nil {
			arrivals.Done()
			return err
		}
		inside.Add(1)
		arrivals.Done()
		<-all
		return l.Unlock()
	})
	if err != nil {
		return err
	}

	return expect(!l.IsLocked() && int(inside.Load()) == cfg.Goroutines,
		"readers = %d, want %d", inside.Load(), cfg.Goroutines)
}

func checkRWLockWriterExcludes(cfg Config) error {
	l := threading.NewRWLock()

	var writers, readers atomic.Int32

	err := contend(cfg, func(i int) error {
		for range cfg.Iterations {
			if i%2 == 0 {
				if err := l.Lock(); err != nil {
					return err
				}
				w, r := writers.Add(1), readers.Load()
				writers.Add(-1)
				if err := l.Unlock(); err != nil {
					return err
				}
				if err := expect(w == 1 && r == 0, "writer saw %d writers, %d readers", w, r); err != nil {
					return err
				}
				continue
			}

			if err := l.RLock(); err != nil {
				return err
			}
			readers.Add(1)
			w := writers.Load()
			readers.Add(-1)
			if err := l.Unlock(); err != nil {
				return err
			}
			if err := expect(w == 0, "reader saw %d writers", w); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	return expect(!l.IsLocked(), "lock still held")
}

func checkRWLockNotLocked(Config) error {
	return expectErr(threading.NewRWLock().Unlock(), threading.ErrNotLocked)
}

func checkRWLockTimedLock(cfg Config) error {
	l := threading.NewRWLock()

	release, err := holdIn(l.RLock, l.Unlock)
	if err != nil {
		return err
	}

	timed := timedExpiry(cfg, l.TimedLock)

	if err := release(); err != nil {
		return err
	}

	return timed
}
