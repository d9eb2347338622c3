//go:build !linux

package threading

import "syscall"

// Units have no addressable OS thread outside Linux.
func osThreadID() int {
	return 0
}

func signalThread(int, syscall.Signal) error {
	return &SystemError{Op: "Thread.SendSignal", Errno: syscall.ENOTSUP}
}
