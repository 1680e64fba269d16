package goroutineid

import (
	"golang.org/x/sys/unix"
)

// osThreadID is only stable while the goroutine is locked to its thread.
func osThreadID() int { return unix.Gettid() }
