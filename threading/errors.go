package threading

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/kolkov/threading/internal/threading/deadline"
)

var (
	// ErrInvalidArgument reports malformed input such as a zero-capacity
	// Semaphore or a negative timeout. Native state is never touched.
	ErrInvalidArgument = deadline.ErrInvalidArgument

	// ErrSystemUnavailable reports that the wall clock could not be read.
	ErrSystemUnavailable = deadline.ErrSystemUnavailable

	// ErrSystem matches every *SystemError.
	ErrSystem = errors.New("threading: system error")

	// ErrLogic matches every misuse error (*LogicError).
	ErrLogic = errors.New("threading: logic error")
)

// Misuse errors. They report programming mistakes, never transient conditions.
var (
	ErrDoubleLock      = &LogicError{Reason: "double lock"}
	ErrNotLocked       = &LogicError{Reason: "not locked"}
	ErrOwnerMismatch   = &LogicError{Reason: "owner mismatch"}
	ErrDoubleAcquire   = &LogicError{Reason: "double acquire"}
	ErrNotHeld         = &LogicError{Reason: "not held"}
	ErrAlreadyStarted  = &LogicError{Reason: "already started"}
	ErrAlreadyDetached = &LogicError{Reason: "already detached"}
	ErrNotRunning      = &LogicError{Reason: "not running"}
	ErrDetached        = &LogicError{Reason: "detached"}
)

// LogicError is misuse detected by a primitive's own bookkeeping.
type LogicError struct {
	Reason string
}

func (e *LogicError) Error() string {
	return e.Reason
}

// Is makes every LogicError match ErrLogic.
func (e *LogicError) Is(target error) bool {
	return target == ErrLogic
}

// SystemError is a failure of the underlying runtime or OS resource for a
// reason other than contention or timeout.
type SystemError struct {
	Op    string        // Native operation that failed
	Errno syscall.Errno // OS error code
}

func (e *SystemError) Error() string {
	return fmt.Sprintf("threading: %s: %v", e.Op, e.Errno)
}

// Unwrap exposes the errno to errors.Is (e.g. errors.Is(err, syscall.ESRCH)).
func (e *SystemError) Unwrap() error {
	return e.Errno
}

// Is makes every SystemError match ErrSystem.
func (e *SystemError) Is(target error) bool {
	return target == ErrSystem
}

// opError prefixes err with the public operation that detected it.
func opError(op string, err error) error {
	return fmt.Errorf("threading: %s: %w", op, err)
}
