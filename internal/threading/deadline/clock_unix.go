//go:build linux || darwin || freebsd

package deadline

import "golang.org/x/sys/unix"

// wallClock reads CLOCK_REALTIME, the clock POSIX timed waits are measured against.
func wallClock() (sec, nsec int64, err error) {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_REALTIME, &ts); err != nil {
		return 0, 0, err
	}

	sec, nsec = ts.Unix()

	return sec, nsec, nil
}
