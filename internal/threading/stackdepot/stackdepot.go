// Copyright 2025 The threading Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package stackdepot records where locks were acquired.
//
// When a lock is misused (unlocked by a goroutine that does not own it, torn
// down while still held) the diagnostic is much more useful if it names the
// place that took the lock. Lock paths capture their call site here and keep
// only the 64-bit hash; the full trace is looked up when a diagnostic is
// actually written.
//
// Design:
//   - Fixed-size stack traces (8 frames, 64 bytes per stack)
//   - Hash-based deduplication (FNV-1a hash)
//   - Global sync.Map storage (thread-safe)
//
// Usage:
//
//	hash := stackdepot.Capture(1) // skip the lock method itself
//	...
//	if st := stackdepot.Lookup(hash); st != nil {
//	    fmt.Print(st.Format())
//	}
package stackdepot

import (
	"fmt"
	"hash/fnv"
	"runtime"
	"strings"
	"sync"
	"unsafe"
)

// MaxFrames is the maximum number of stack frames to capture.
const MaxFrames = 8

// StackTrace represents a captured stack trace with fixed size.
type StackTrace struct {
	PC [MaxFrames]uintptr
}

var depot sync.Map // uint64 (hash) → *StackTrace

// Capture records the current call stack and returns its hash.
//
// skip is the number of frames above Capture's caller to omit: 0 starts the
// trace at the caller of Capture, 1 at its caller, and so on.
//
// Returns 0 if no stack is available.
func Capture(skip int) uint64 {
	var pcs [MaxFrames]uintptr
	// +2: runtime.Callers and Capture itself.
	n := runtime.Callers(skip+2, pcs[:])
	if n == 0 {
		return 0
	}

	hash := hashStack(pcs[:n])

	if _, exists := depot.Load(hash); exists {
		return hash
	}

	depot.Store(hash, &StackTrace{PC: pcs})

	return hash
}

// Lookup returns the stack trace recorded under hash, or nil.
func Lookup(hash uint64) *StackTrace {
	if hash == 0 {
		return nil
	}

	val, ok := depot.Load(hash)
	if !ok {
		return nil
	}

	return val.(*StackTrace)
}

func hashStack(pcs []uintptr) uint64 {
	h := fnv.New64a()

	for _, pc := range pcs {
		//nolint:gosec // G103: Safe use of unsafe to convert uintptr to bytes for hashing
		pcBytes := (*[8]byte)(unsafe.Pointer(&pc))[:]
		_, _ = h.Write(pcBytes) // Write never returns error for hash.Hash.
	}

	return h.Sum64()
}

// Caller returns "function file:line" for the innermost non-runtime frame.
func (st *StackTrace) Caller() string {
	if st == nil {
		return "<unknown>"
	}

	frames := runtime.CallersFrames(st.PC[:])
	for {
		frame, more := frames.Next()
		if frame.PC == 0 {
			break
		}

		if !strings.HasPrefix(frame.Function, "runtime.") {
			return fmt.Sprintf("%s %s:%d", frame.Function, frame.File, frame.Line)
		}

		if !more {
			break
		}
	}

	return "<runtime internal>"
}

// Format renders the whole trace, one function and location per frame pair:
//
//	main.worker()
//	    /path/to/file.go:45
func (st *StackTrace) Format() string {
	if st == nil {
		return "  <unknown>\n"
	}

	frames := runtime.CallersFrames(st.PC[:])

	var buf strings.Builder
	for {
		frame, more := frames.Next()
		if frame.PC == 0 {
			break
		}

		if strings.HasPrefix(frame.Function, "runtime.") {
			if !more {
				break
			}
			continue
		}

		fmt.Fprintf(&buf, "  %s()\n", frame.Function)
		fmt.Fprintf(&buf, "      %s:%d\n", frame.File, frame.Line)

		if !more {
			break
		}
	}

	result := buf.String()
	if result == "" {
		return "  <runtime internal>\n"
	}

	return result
}

// Reset clears the depot. Tests only.
func Reset() {
	depot = sync.Map{}
}

// Len returns the number of unique stacks stored.
func Len() int {
	n := 0
	depot.Range(func(_, _ any) bool {
		n++
		return true
	})

	return n
}
