package commands

import (
	"context"

	"github.com/kolkov/threading/threading"
)

var threadGroup = group{
	name:  "thread",
	short: "Check the Thread join and detach state machine",
	checks: []check{
		{"join yields result", checkThreadJoin},
		{"second join rejected", checkThreadJoinTwice},
		{"join of detached rejected", checkThreadDetachedJoin},
		{"try join does not block", checkThreadTryJoin},
		{"cancel abandons unit", checkThreadCancel},
	},
}

func checkThreadJoin(cfg Config) error {
	th := threading.NewThread(func(_ context.Context, arg any) any {
		return arg.(int) + 1
	}, threading.WithArgument(cfg.Iterations))

	if err := th.Start(); err != nil {
		return err
	}

	res, err := th.Join()
	if err != nil {
		return err
	}

	return expect(res == cfg.Iterations+1 && !th.Running(), "result = %v, running = %t", res, th.Running())
}

func checkThreadJoinTwice(Config) error {
	th := threading.NewThread(func(context.Context, any) any { return nil })

	if err := th.Start(); err != nil {
		return err
	}

	if _, err := th.Join(); err != nil {
		return err
	}

	_, err := th.Join()

	return expectErr(err, threading.ErrNotRunning)
}

func checkThreadDetachedJoin(Config) error {
	release := make(chan struct{})
	defer close(release)

	th := threading.NewThread(func(context.Context, any) any {
		<-release
		return nil
	})

	if err := th.Start(); err != nil {
		return err
	}

	if err := th.Detach(); err != nil {
		return err
	}

	_, err := th.Join()

	return expectErr(err, threading.ErrDetached)
}

func checkThreadTryJoin(cfg Config) error {
	release := make(chan struct{})

	th := threading.NewThread(func(context.Context, any) any {
		<-release
		return nil
	})

	if err := th.Start(); err != nil {
		return err
	}

	_, ok, err := th.TryJoin()
	if err != nil {
		return err
	}

	early := expect(!ok && th.Running(), "joined a blocked unit")

	close(release)

	_, ok, err = th.TimedJoin(settle)
	if err != nil {
		return err
	}

	if err := expect(ok, "unit did not finish within %s", settle); err != nil {
		return err
	}

	return early
}

func checkThreadCancel(Config) error {
	exited := make(chan error, 1)

	th := threading.NewThread(func(ctx context.Context, _ any) any {
		<-ctx.Done()
		exited <- ctx.Err()
		return nil
	})

	if err := th.Start(); err != nil {
		return err
	}

	if err := th.Cancel(); err != nil {
		return err
	}

	if err := expect(!th.Running(), "running after cancel"); err != nil {
		return err
	}

	if err := expectErr(<-exited, context.Canceled); err != nil {
		return err
	}

	_, err := th.Join()

	return expectErr(err, threading.ErrNotRunning)
}
