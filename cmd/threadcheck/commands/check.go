package commands

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
)

// Config parameterizes a check run.
type Config struct {
	Goroutines int
	Iterations int
	Timeout    time.Duration
}

type check struct {
	name string
	run  func(cfg Config) error
}

type group struct {
	name   string
	short  string
	checks []check
}

var groups = []group{
	mutexGroup,
	conditionGroup,
	semaphoreGroup,
	rwlockGroup,
	threadGroup,
}

func configFrom(args *RootArgs) Config {
	return Config{
		Goroutines: args.GetGoroutines(),
		Iterations: args.GetIterations(),
		Timeout:    args.GetTimeout(),
	}
}

// NewGroupCmd returns the command running the checks of one primitive.
func NewGroupCmd(args *RootArgs, g group) *cobra.Command {
	return &cobra.Command{
		Use:   g.name,
		Short: g.short,
		Args:  cobra.NoArgs,
		RunE: func(cc *cobra.Command, _ []string) error {
			return runChecks(cc.OutOrStdout(), configFrom(args), g)
		},
	}
}

// NewAllCmd returns the command running every check.
func NewAllCmd(args *RootArgs) *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Run the checks of every primitive",
		Args:  cobra.NoArgs,
		RunE: func(cc *cobra.Command, _ []string) error {
			return runChecks(cc.OutOrStdout(), configFrom(args), groups...)
		},
	}
}

func runChecks(w io.Writer, cfg Config, gs ...group) error {
	var (
		errs  *multierror.Error
		total int
	)

	for _, g := range gs {
		for _, c := range g.checks {
			total++

			slog.Debug("running check", slog.String("group", g.name), slog.String("check", c.name))

			start := time.Now()
			err := c.run(cfg)
			elapsed := time.Since(start).Round(time.Microsecond)

			if err != nil {
				fmt.Fprintf(w, "FAIL  %s/%s (%s): %v\n", g.name, c.name, elapsed, err)
				errs = multierror.Append(errs, fmt.Errorf("%s/%s: %w", g.name, c.name, err))

				continue
			}

			fmt.Fprintf(w, "PASS  %s/%s (%s)\n", g.name, c.name, elapsed)
		}
	}

	if err := errs.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %d of %d: %w", ErrChecksFailed, errs.Len(), total, err)
	}

	fmt.Fprintf(w, "ok  %d checks\n", total)

	return nil
}

var errUnexpected = errors.New("unexpected result")

// expect returns an error describing the mismatch unless ok.
func expect(ok bool, format string, args ...any) error {
	if ok {
		return nil
	}

	return fmt.Errorf("%w: %s", errUnexpected, fmt.Sprintf(format, args...))
}

// expectErr checks that err matches target.
func expectErr(err, target error) error {
	if errors.Is(err, target) {
		return nil
	}

	return fmt.Errorf("%w: got %v, want %v", errUnexpected, err, target)
}

// waitFor polls cond until it holds or limit passes.
func waitFor(limit time.Duration, cond func() bool) error {
	deadline := time.Now().Add(limit)
	for !cond() {
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: condition not reached within %s", errUnexpected, limit)
		}
		time.Sleep(time.Millisecond)
	}

	return nil
}

// holdIn acquires with lock in a goroutine of its own and keeps it until the
// returned release func is called, which then runs unlock in that goroutine.
func holdIn(lock, unlock func() error) (release func() error, err error) {
	locked := make(chan error, 1)
	proceed := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		if err := lock(); err != nil {
			locked <- err
			return
		}
		locked <- nil

		<-proceed
		done <- unlock()
	}()

	if err := <-locked; err != nil {
		return nil, err
	}

	return func() error {
		close(proceed)
		return <-done
	}, nil
}

// timedExpiry checks that a timed acquisition against a held resource
// returns false no earlier than cfg.Timeout.
func timedExpiry(cfg Config, timed func(time.Duration) (bool, error)) error {
	start := time.Now()
	ok, err := timed(cfg.Timeout)
	elapsed := time.Since(start)

	if err != nil {
		return err
	}

	if err := expect(!ok, "acquired a held resource"); err != nil {
		return err
	}

	// Deadlines are on the wall clock; allow for its granularity.
	return expect(elapsed >= cfg.Timeout-time.Millisecond, "returned after %s, before the %s timeout", elapsed, cfg.Timeout)
}
