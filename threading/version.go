package threading

import (
	"strconv"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/kolkov/threading/internal/syncutil"
)

// Version is the semantic version of the library.
const Version = "v1.0.0"

// Info provides build information about the library.
type Info struct {
	// Version is the library version string.
	Version string

	// Identity describes how the calling goroutine is identified.
	Identity string

	// DeadlockDetection is true when built with -tags=deadlock.
	DeadlockDetection bool
}

// GetInfo returns information about this build.
func GetInfo() Info {
	return Info{
		Version:           Version,
		Identity:          "goroutine id (runtime.Stack)",
		DeadlockDetection: syncutil.DeadlockEnabled,
	}
}

// SourceVersion returns Version encoded as major*1_000_000 + minor*1_000 + patch,
// so that builds can be compared numerically. It returns 0 if Version is not a
// valid semantic version.
func SourceVersion() uint64 {
	return encodeVersion(Version)
}

func encodeVersion(v string) uint64 {
	if !semver.IsValid(v) {
		return 0
	}

	core := strings.TrimPrefix(semver.Canonical(v), "v")
	core = strings.TrimSuffix(core, semver.Prerelease(v))

	var out uint64
	for _, part := range strings.SplitN(core, ".", 3) {
		n, err := strconv.ParseUint(part, 10, 64)
		if err != nil || n > 999 {
			return 0
		}
		out = out*1_000 + n
	}

	return out
}
