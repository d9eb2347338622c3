// Copyright 2025 The threading Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package threading

import (
	"errors"
	"syscall"

	"golang.org/x/sys/unix"
)

func osThreadID() int {
	return unix.Gettid()
}

func signalThread(tid int, sig syscall.Signal) error {
	err := unix.Tgkill(unix.Getpid(), tid, sig)
	if err == nil {
		return nil
	}

	var errno syscall.Errno
	if !errors.As(err, &errno) {
		errno = syscall.EINVAL
	}

	return &SystemError{Op: "Thread.SendSignal", Errno: errno}
}
