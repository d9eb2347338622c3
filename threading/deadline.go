package threading

import (
	"time"

	"github.com/kolkov/threading/internal/threading/deadline"
)

// Timespec is a relative timeout in whole seconds plus nanoseconds.
// Valid values have Sec >= 0 and 0 <= Nsec < 1e9.
type Timespec = deadline.Timespec

// Deadline converts a relative Timespec into an absolute point on the wall
// clock. It is the computation every timed operation performs before blocking.
//
// Returns ErrInvalidArgument for out-of-range input and ErrSystemUnavailable
// if the clock cannot be read.
func Deadline(ts Timespec) (time.Time, error) {
	return deadline.Compute(ts)
}
