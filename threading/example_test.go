package threading_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kolkov/threading/threading"
)

func ExampleMutex() {
	mu := threading.NewMutex()

	if err := mu.Lock(); err != nil {
		panic(err)
	}

	err := mu.Lock()
	fmt.Println(errors.Is(err, threading.ErrDoubleLock))

	if err := mu.Unlock(); err != nil {
		panic(err)
	}

	fmt.Println(mu.IsLocked())
	// Output:
	// true
	// false
}

func ExampleSemaphore() {
	sem, err := threading.NewSemaphore(2)
	if err != nil {
		panic(err)
	}

	if err := sem.Acquire(); err != nil {
		panic(err)
	}
	fmt.Println(sem.Value(), sem.Max())

	err = sem.Acquire()
	fmt.Println(errors.Is(err, threading.ErrDoubleAcquire))

	if err := sem.Release(); err != nil {
		panic(err)
	}
	fmt.Println(sem.Value())
	// Output:
	// 1 2
	// true
	// 0
}

func ExampleCondition_TimedWait() {
	c := threading.NewCondition()

	ok, err := c.TimedWait(10 * time.Millisecond)
	fmt.Println(ok, err)

	ok, _ = c.Signal()
	fmt.Println(ok)
	// Output:
	// false <nil>
	// false
}

func ExampleThread() {
	th := threading.NewThread(func(_ context.Context, arg any) any {
		return fmt.Sprintf("hello, %s", arg)
	}, threading.WithArgument("unit"))

	if err := th.Start(); err != nil {
		panic(err)
	}

	res, err := th.Join()
	if err != nil {
		panic(err)
	}
	fmt.Println(res)

	_, err = th.Join()
	fmt.Println(errors.Is(err, threading.ErrNotRunning))
	// Output:
	// hello, unit
	// true
}

func ExampleRWLock() {
	var l threading.RWLock

	_ = l.RLock()
	_ = l.RLock()

	ok, _ := l.TryLock()
	fmt.Println(l.Readers(), ok)

	_ = l.Unlock()
	_ = l.Unlock()
	fmt.Println(l.IsLocked())
	// Output:
	// 2 false
	// false
}

func ExampleDeadline() {
	_, err := threading.Deadline(threading.Timespec{Sec: 1, Nsec: 2_000_000_000})
	fmt.Println(errors.Is(err, threading.ErrInvalidArgument))
	// Output:
	// true
}
