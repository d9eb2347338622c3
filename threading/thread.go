package threading

import (
	"context"
	"runtime"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/kolkov/threading/internal/syncutil"
	"github.com/kolkov/threading/internal/threading/deadline"
	"github.com/kolkov/threading/internal/threading/diag"
	"github.com/kolkov/threading/internal/threading/goid"
)

// EntryFunc is the body of a Thread. ctx is cancelled by Thread.Cancel; arg is
// the value set with WithArgument. The return value is handed to the joiner.
type EntryFunc func(ctx context.Context, arg any) any

// DetachState selects whether a Thread can be joined.
type DetachState int

const (
	// Joinable threads must be joined (or cancelled) to release them.
	Joinable DetachState = iota
	// Detached threads release themselves when they finish and cannot be joined.
	Detached
)

func (s DetachState) String() string {
	switch s {
	case Joinable:
		return "joinable"
	case Detached:
		return "detached"
	default:
		return "unknown"
	}
}

// Attributes configure how a Thread runs.
type Attributes struct {
	// DetachState is the initial detach state.
	DetachState DetachState

	// LockOSThread pins the unit to an OS thread of its own for its whole
	// life. The thread is torn down when the entry point returns. Without
	// it the unit has no OS thread id and SendSignal fails with ESRCH.
	LockOSThread bool

	// Name labels the unit in diagnostics.
	Name string
}

// DefaultAttributes returns joinable, OS-thread-pinned attributes.
func DefaultAttributes() Attributes {
	return Attributes{
		DetachState:  Joinable,
		LockOSThread: true,
	}
}

// ThreadOption configures NewThread.
type ThreadOption func(*Thread)

// WithDetachState overrides the detach state of the default attributes.
func WithDetachState(s DetachState) ThreadOption {
	return func(t *Thread) { t.attrs.DetachState = s }
}

// WithAttributes replaces the attributes wholesale.
func WithAttributes(a Attributes) ThreadOption {
	return func(t *Thread) { t.attrs = a }
}

// WithArgument sets the value passed to the entry point. It is referenced,
// not copied.
func WithArgument(arg any) ThreadOption {
	return func(t *Thread) { t.arg = arg }
}

// Thread is a handle to a unit of execution with an explicit lifecycle:
//
//	NotStarted --Start--> Running --Join/TryJoin/TimedJoin--> Joined
//	                              --Detach-------------------> Detached
//	                              --Cancel-------------------> Cancelled
//
// A joined or cancelled Thread may be started again.
type Thread struct {
	fn    EntryFunc
	arg   any
	attrs Attributes

	mu      syncutil.Mutex
	running bool
	joining bool // a Join or TimedJoin has claimed run
	detach  DetachState
	run     *execution
}

// execution is one started run of a Thread.
type execution struct {
	done   chan struct{}
	cancel context.CancelFunc
	result any
	tid    int   // OS thread id, 0 unless pinned
	gid    int64 // goroutine id
}

// NewThread returns a Thread that will run fn. It does not start it.
func NewThread(fn EntryFunc, opts ...ThreadOption) *Thread {
	t := &Thread{
		fn:    fn,
		attrs: DefaultAttributes(),
	}

	for _, opt := range opts {
		opt(t)
	}

	t.detach = t.attrs.DetachState

	return t
}

// Start launches the entry point. Returns ErrAlreadyStarted if the thread is
// running.
func (t *Thread) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return opError("Thread.Start", ErrAlreadyStarted)
	}

	ctx, cancel := context.WithCancel(context.Background())
	run := &execution{
		done:   make(chan struct{}),
		cancel: cancel,
	}

	ready := make(chan struct{})
	go t.main(ctx, run, ready)
	<-ready

	t.run = run
	t.running = true
	t.joining = false

	return nil
}

func (t *Thread) main(ctx context.Context, run *execution, ready chan<- struct{}) {
	if t.attrs.LockOSThread {
		// Never unlocked: the OS thread exits together with the unit.
		runtime.LockOSThread()
		run.tid = osThreadID()
	}
	run.gid = goid.Current()
	close(ready)

	defer close(run.done)
	defer run.cancel()

	run.result = t.fn(ctx, t.arg)
}

// Detach makes the thread unjoinable. Returns ErrAlreadyDetached if it is
// detached already and ErrNotRunning if it is not running.
func (t *Thread) Detach() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.detach == Detached {
		return opError("Thread.Detach", ErrAlreadyDetached)
	}

	if !t.running {
		return opError("Thread.Detach", ErrNotRunning)
	}

	t.detach = Detached

	return nil
}

// joinable returns the current run if it may be joined. With claim set the
// run is reserved for the caller until finish or unclaim; other joiners get
// ErrNotRunning meanwhile.
func (t *Thread) joinable(op string, claim bool) (*execution, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.detach == Detached {
		return nil, opError(op, ErrDetached)
	}

	if !t.running || t.joining {
		return nil, opError(op, ErrNotRunning)
	}

	if claim {
		t.joining = true
	}

	return t.run, nil
}

func (t *Thread) unclaim(run *execution) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.run == run {
		t.joining = false
	}
}

// finish marks run joined and returns its result. Returns ErrNotRunning if
// run was cancelled or joined by somebody else meanwhile.
func (t *Thread) finish(op string, run *execution) (any, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.run != run || !t.running {
		return nil, opError(op, ErrNotRunning)
	}

	t.running = false
	t.joining = false

	return run.result, nil
}

// Join blocks until the entry point returns and yields its return value.
// A concurrent second Join fails with ErrNotRunning.
func (t *Thread) Join() (any, error) {
	run, err := t.joinable("Thread.Join", true)
	if err != nil {
		return nil, err
	}

	<-run.done

	return t.finish("Thread.Join", run)
}

// TryJoin joins the thread if it has finished. It never blocks.
func (t *Thread) TryJoin() (any, bool, error) {
	run, err := t.joinable("Thread.TryJoin", false)
	if err != nil {
		return nil, false, err
	}

	select {
	case <-run.done:
		res, err := t.finish("Thread.TryJoin", run)
		return res, err == nil, err
	default:
		return nil, false, nil
	}
}

// TimedJoin waits at most d for the thread to finish. It returns false, nil
// on expiry.
func (t *Thread) TimedJoin(d time.Duration) (any, bool, error) {
	dl, err := deadline.After(d)
	if err != nil {
		return nil, false, opError("Thread.TimedJoin", err)
	}

	run, err := t.joinable("Thread.TimedJoin", true)
	if err != nil {
		return nil, false, err
	}

	timer := deadline.Timer(dl)
	defer timer.Stop()

	select {
	case <-run.done:
		res, err := t.finish("Thread.TimedJoin", run)
		return res, err == nil, err
	case <-timer.C:
		t.unclaim(run)
		return nil, false, nil
	}
}

// Cancel abandons the running unit. Its context is cancelled and the handle
// stops tracking it immediately; the entry point is not waited for and its
// result is discarded. Returns ErrNotRunning if the thread is not running.
func (t *Thread) Cancel() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		return opError("Thread.Cancel", ErrNotRunning)
	}

	t.run.cancel()
	t.running = false
	t.joining = false

	return nil
}

// SendSignal delivers sig to the unit's OS thread, not to the process.
// Signals without a handler take their default disposition.
func (t *Thread) SendSignal(sig syscall.Signal) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		return opError("Thread.SendSignal", ErrNotRunning)
	}

	if t.run.tid == 0 {
		return &SystemError{Op: "Thread.SendSignal", Errno: syscall.ESRCH}
	}

	return signalThread(t.run.tid, sig)
}

// Kill is SendSignal under its POSIX name.
func (t *Thread) Kill(sig syscall.Signal) error {
	return t.SendSignal(sig)
}

// IsSelf reports whether the caller is the unit of the current run.
func (t *Thread) IsSelf() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.running && t.run.gid == goid.Current()
}

// Running reports whether the thread was started and not yet joined or cancelled.
func (t *Thread) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.running
}

// DetachState returns the current detach state.
func (t *Thread) DetachState() DetachState {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.detach
}

// ThreadID returns the OS thread id of the current run, 0 if it is not
// running or not pinned.
func (t *Thread) ThreadID() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		return 0
	}

	return t.run.tid
}

// GoroutineID returns the goroutine id of the current run, goid.None if the
// thread is not running.
func (t *Thread) GoroutineID() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		return goid.None
	}

	return t.run.gid
}

// Destroy cancels a running joinable thread as a last resort; it never blocks.
func (t *Thread) Destroy() {
	t.mu.Lock()
	abandon := t.running && t.detach == Joinable
	t.mu.Unlock()

	if !abandon {
		return
	}

	var errs *multierror.Error
	if err := t.Cancel(); err != nil {
		errs = multierror.Append(errs, err)
	}

	teardown(diag.KindThread, "Thread.Destroy", errs, "name", t.attrs.Name)
}
