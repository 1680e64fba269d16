//go:build !linux

package goroutineid

func osThreadID() int { return 0 }
