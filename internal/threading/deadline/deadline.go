// Package deadline converts relative timeouts into absolute deadlines.
//
// Every timed operation in the module (TimedLock, TimedWait, TimedAcquire,
// TimedRLock, TimedJoin) validates its timeout and computes the deadline here
// before any blocking call is attempted. An invalid timeout therefore never
// leaves a primitive half-acquired.
//
// Computation:
//
//	deadline.sec  = now.sec  + ts.Sec
//	deadline.nsec = now.nsec + ts.Nsec   (carry into sec on overflow)
package deadline

import (
	"errors"
	"fmt"
	"time"
)

// NanosPerSecond bounds Timespec.Nsec.
const NanosPerSecond = 1_000_000_000

var (
	// ErrInvalidArgument is returned for negative or out-of-range timeouts.
	ErrInvalidArgument = errors.New("threading: invalid argument")

	// ErrSystemUnavailable is returned when the wall clock cannot be read.
	ErrSystemUnavailable = errors.New("threading: system unavailable")
)

// Timespec is a relative duration split into whole seconds and nanoseconds.
//
// Valid values satisfy Sec >= 0 and 0 <= Nsec < NanosPerSecond.
type Timespec struct {
	Sec  int64
	Nsec int64
}

// Valid reports whether ts is within range.
func (ts Timespec) Valid() bool {
	return ts.Sec >= 0 && ts.Nsec >= 0 && ts.Nsec < NanosPerSecond
}

// Duration returns ts as a time.Duration. Only meaningful for valid values.
func (ts Timespec) Duration() time.Duration {
	return time.Duration(ts.Sec)*time.Second + time.Duration(ts.Nsec)
}

func (ts Timespec) String() string {
	return fmt.Sprintf("%d.%09ds", ts.Sec, ts.Nsec)
}

// clock reads the current wall-clock time. Replaced in tests.
var clock = wallClock

// Compute returns the absolute deadline ts from now.
//
// Returns:
//   - ErrInvalidArgument if ts is out of range
//   - ErrSystemUnavailable if the wall clock cannot be read
func Compute(ts Timespec) (time.Time, error) {
	if !ts.Valid() {
		return time.Time{}, fmt.Errorf("%w: timespec %d s %d ns out of range", ErrInvalidArgument, ts.Sec, ts.Nsec)
	}

	sec, nsec, err := clock()
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", ErrSystemUnavailable, err)
	}

	sec += ts.Sec
	nsec += ts.Nsec
	if nsec >= NanosPerSecond {
		sec++
		nsec -= NanosPerSecond
	}

	return time.Unix(sec, nsec), nil
}

// FromDuration splits d into a Timespec. Negative durations are rejected.
func FromDuration(d time.Duration) (Timespec, error) {
	if d < 0 {
		return Timespec{}, fmt.Errorf("%w: negative timeout %v", ErrInvalidArgument, d)
	}

	return Timespec{
		Sec:  int64(d / time.Second),
		Nsec: int64(d % time.Second),
	}, nil
}

// After returns the absolute deadline d from now.
func After(d time.Duration) (time.Time, error) {
	ts, err := FromDuration(d)
	if err != nil {
		return time.Time{}, err
	}

	return Compute(ts)
}

// Timer returns a timer that fires at t. A deadline already in the past fires
// immediately.
func Timer(t time.Time) *time.Timer {
	return time.NewTimer(time.Until(t))
}
