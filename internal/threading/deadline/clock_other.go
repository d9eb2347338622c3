//go:build !(linux || darwin || freebsd)

package deadline

import "time"

func wallClock() (sec, nsec int64, err error) {
	now := time.Now()

	return now.Unix(), int64(now.Nanosecond()), nil
}
