// Package main implements the threadcheck CLI tool.
//
// threadcheck runs live self-checks of the threading primitives on the
// current platform: mutual exclusion, misuse detection, timeout behavior and
// the thread join state machine. Each check prints one PASS or FAIL line.
//
// Usage:
//
//	threadcheck all                      # Run every check
//	threadcheck mutex --goroutines 16    # Run the mutex checks
//	threadcheck thread --timeout 100ms   # Run the thread checks
//	threadcheck version                  # Show version information
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/kolkov/threading/cmd/threadcheck/commands"
)

const (
	cmdName = "threadcheck"

	shortDesc = "Self-checks for the threading primitives."
	longDesc  = `threadcheck exercises Mutex, Condition, Semaphore, RWLock and Thread
against their documented guarantees and reports a PASS or FAIL line per check.

It exits non-zero if any check fails.
`
)

func main() {
	cmd := commands.NewRootCmd(cmdName, shortDesc, longDesc)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, strings.TrimLeft(err.Error(), "\n"))
		os.Exit(1)
	}
}
