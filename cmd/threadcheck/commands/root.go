package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/kolkov/threading/internal/threading/diag"
	"github.com/kolkov/threading/threading"
)

var (
	ErrInvalidFlag  = errors.New("invalid flag")
	ErrChecksFailed = errors.New("checks failed")
)

// NewRootCmd returns the threadcheck command tree.
func NewRootCmd(name, shortDesc, longDesc string) *cobra.Command {
	args := NewRootArgs()

	cmd := &cobra.Command{
		Use:           name,
		Short:         shortDesc,
		Long:          longDesc,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       GetVersionString(),
	}

	cmd.PersistentFlags().StringVar(args.logLevel, "log-level", "warn", "Set the log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(args.logFormat, "log-format", "text", "Set the log format (text, json)")
	cmd.PersistentFlags().IntVar(args.goroutines, "goroutines", 8, "Number of contending goroutines")
	cmd.PersistentFlags().IntVar(args.iterations, "iterations", 1000, "Iterations per goroutine")
	cmd.PersistentFlags().DurationVar(args.timeout, "timeout", 50*time.Millisecond, "Timeout used by timed checks")

	cmd.PersistentPreRunE = func(cc *cobra.Command, _ []string) error {
		if args.GetGoroutines() < 1 {
			return fmt.Errorf("%w: --goroutines must be positive", ErrInvalidFlag)
		}

		if args.GetIterations() < 1 {
			return fmt.Errorf("%w: --iterations must be positive", ErrInvalidFlag)
		}

		if args.GetTimeout() <= 0 {
			return fmt.Errorf("%w: --timeout must be positive", ErrInvalidFlag)
		}

		logger := slog.New(diag.NewHandler(cc.ErrOrStderr(), args.GetLogLevel(), args.GetLogFormat()))
		slog.SetDefault(logger)

		for _, k := range diag.Kinds {
			threading.SetErrorLogger(k, logger)
		}

		slog.Debug("ready to go",
			slog.Int("goroutines", args.GetGoroutines()),
			slog.Int("iterations", args.GetIterations()),
			slog.Duration("timeout", args.GetTimeout()),
		)

		return nil
	}

	for _, g := range groups {
		cmd.AddCommand(NewGroupCmd(args, g))
	}

	cmd.AddCommand(NewAllCmd(args))
	cmd.AddCommand(NewVersionCmd())

	return cmd
}
