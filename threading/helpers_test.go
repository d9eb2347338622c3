package threading

import (
	"bytes"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kolkov/threading/internal/threading/diag"
)

// Upper bound on how late a timed operation may return after its deadline.
const timeoutMargin = 2 * time.Second

// Polling bounds for require.Eventually.
const (
	eventuallyWait = 2 * time.Second
	eventuallyTick = time.Millisecond
)

// captureErrors routes the error logger of kind into a buffer for the test.
func captureErrors(t *testing.T, kind Kind) *syncBuffer {
	t.Helper()

	buf := &syncBuffer{}
	SetErrorLogger(kind, slog.New(slog.NewTextHandler(buf, nil)))
	t.Cleanup(func() { SetErrorLogger(kind, nil) })

	return buf
}

// captureExit replaces process termination with a recorder.
func captureExit(t *testing.T) *atomic.Int32 {
	t.Helper()

	var code atomic.Int32
	restore := diag.SetExitFunc(func(c int) { code.Store(int32(c)) })
	t.Cleanup(restore)

	return &code
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

// holder runs lock and unlock in a goroutine of its own, for primitives whose
// release must come from the acquiring goroutine.
type holder struct {
	locked  chan struct{}
	release chan struct{}
	done    chan error
}

func hold(t *testing.T, lock, unlock func() error) *holder {
	t.Helper()

	h := &holder{
		locked:  make(chan struct{}),
		release: make(chan struct{}),
		done:    make(chan error, 1),
	}

	go func() {
		if err := lock(); err != nil {
			h.done <- err
			close(h.locked)
			return
		}
		close(h.locked)
		<-h.release
		h.done <- unlock()
	}()

	<-h.locked

	return h
}

// Release lets the holder unlock and waits for it. Safe to call from any goroutine.
func (h *holder) Release(t *testing.T) {
	t.Helper()

	close(h.release)
	if err := <-h.done; err != nil {
		t.Errorf("holder unlock: %v", err)
	}
}
