// Package diag is the diagnostic sink for failures that cannot be returned.
//
// Teardown paths (Destroy on a still-held lock, a running thread) have no
// caller to hand an error to. Logic errors found there are written to the
// logger of the primitive kind and swallowed; system errors are written and
// then terminate the process with EX_OSERR, because a primitive whose
// runtime resource cannot be released leaves the process in a state it cannot
// safely continue from.
//
// Each primitive kind has its own logger so that applications can route, say,
// thread teardown noise separately from lock misuse. All kinds default to a
// stderr handler configured from THREADING_LOG_LEVEL and THREADING_LOG_FORMAT.
package diag

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// ExitOSErr is the process exit status for fatal teardown failures (sysexits.h EX_OSERR).
const ExitOSErr = 71

const (
	JSONFormat = "json"
	TextFormat = "text"

	// EnvLogLevel selects the default handler level.
	EnvLogLevel = "THREADING_LOG_LEVEL"
	// EnvLogFormat selects the default handler format (text or json).
	EnvLogFormat = "THREADING_LOG_FORMAT"
)

// Kind names a primitive type. Every kind has its own logger.
type Kind string

const (
	KindMutex     Kind = "mutex"
	KindCondition Kind = "condition"
	KindSemaphore Kind = "semaphore"
	KindRWLock    Kind = "rwlock"
	KindThread    Kind = "thread"
)

// Kinds lists every primitive kind.
var Kinds = []Kind{KindMutex, KindCondition, KindSemaphore, KindRWLock, KindThread}

var (
	loggers sync.Map // Kind → *atomic.Pointer[slog.Logger]

	defaultOnce   sync.Once
	defaultLogger *slog.Logger

	exitFunc atomic.Pointer[func(int)]
)

func init() {
	exit := os.Exit
	exitFunc.Store(&exit)
}

// NewWithCurrentConfig creates a [slog.Logger] from the environment.
func NewWithCurrentConfig() *slog.Logger {
	return slog.New(CreateHandler(os.Getenv(EnvLogLevel), os.Getenv(EnvLogFormat)))
}

// CreateHandler creates a stderr [slog.Handler] from level and format strings.
func CreateHandler(logLevel, logFormat string) slog.Handler {
	return NewHandler(os.Stderr, logLevel, logFormat)
}

// NewHandler creates a [slog.Handler] writing to w. Unknown formats fall back
// to text.
func NewHandler(w io.Writer, logLevel, logFormat string) slog.Handler {
	opts := &slog.HandlerOptions{Level: GetLevel(logLevel)}

	switch strings.ToLower(logFormat) {
	case JSONFormat:
		return slog.NewJSONHandler(w, opts)
	default:
		return slog.NewTextHandler(w, opts)
	}
}

// GetLevel parses a level name. Unknown names map to info.
func GetLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "error", "fatal", "panic":
		return slog.LevelError
	case "warn", "warning":
		return slog.LevelWarn
	case "debug", "trace":
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

func slot(k Kind) *atomic.Pointer[slog.Logger] {
	if p, ok := loggers.Load(k); ok {
		return p.(*atomic.Pointer[slog.Logger])
	}

	p, _ := loggers.LoadOrStore(k, &atomic.Pointer[slog.Logger]{})

	return p.(*atomic.Pointer[slog.Logger])
}

// Logger returns the logger for kind k.
func Logger(k Kind) *slog.Logger {
	if l := slot(k).Load(); l != nil {
		return l
	}

	defaultOnce.Do(func() { defaultLogger = NewWithCurrentConfig() })

	return defaultLogger.With("kind", string(k))
}

// SetLogger replaces the logger for kind k. A nil logger restores the default.
func SetLogger(k Kind, l *slog.Logger) {
	if l != nil {
		l = l.With("kind", string(k))
	}

	slot(k).Store(l)
}

// Report logs a teardown failure that is swallowed.
func Report(k Kind, op string, err error, attrs ...any) {
	args := append([]any{"op", op, "error", err}, attrs...)
	Logger(k).Error("teardown failure ignored", args...)
}

// Fatal logs a teardown failure and terminates the process with ExitOSErr.
func Fatal(k Kind, op string, err error, attrs ...any) {
	args := append([]any{"op", op, "error", err}, attrs...)
	Logger(k).Error("fatal teardown failure", args...)

	(*exitFunc.Load())(ExitOSErr)
}

// SetExitFunc replaces the function Fatal uses to terminate the process and
// returns a func restoring the previous one. Tests only.
func SetExitFunc(f func(int)) (restore func()) {
	prev := exitFunc.Swap(&f)

	return func() { exitFunc.Store(prev) }
}
