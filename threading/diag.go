package threading

import (
	"errors"
	"log/slog"

	"github.com/hashicorp/go-multierror"

	"github.com/kolkov/threading/internal/threading/diag"
)

// Kind names a primitive type for diagnostic routing.
type Kind = diag.Kind

// Primitive kinds accepted by SetErrorLogger.
const (
	KindMutex     = diag.KindMutex
	KindCondition = diag.KindCondition
	KindSemaphore = diag.KindSemaphore
	KindRWLock    = diag.KindRWLock
	KindThread    = diag.KindThread
)

// SetErrorLogger sets the logger receiving teardown failures of one primitive
// kind. A nil logger restores the default stderr logger, which is configured
// from THREADING_LOG_LEVEL and THREADING_LOG_FORMAT.
func SetErrorLogger(kind Kind, l *slog.Logger) {
	diag.SetLogger(kind, l)
}

// teardown routes the failures collected on a Destroy path: any system error
// terminates the process, logic errors are logged and dropped.
func teardown(kind Kind, op string, errs *multierror.Error, attrs ...any) {
	if errs.ErrorOrNil() == nil {
		return
	}

	for _, err := range errs.Errors {
		if errors.Is(err, ErrSystem) {
			diag.Fatal(kind, op, errs, attrs...)
			return
		}
	}

	diag.Report(kind, op, errs, attrs...)
}
