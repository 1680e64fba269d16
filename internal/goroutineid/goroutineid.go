// Package goroutineid identifies the calling goroutine, and where the
// platform allows it, the OS thread it is running on.
package goroutineid

import (
	"runtime"
)

// Current returns the current goroutine's ID, parsed from the header of
// runtime.Stack. It returns 0 only if the header cannot be parsed.
func Current() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}

// Token records the goroutine (and OS thread, if known) that some state is
// bound to. The zero value is unbound.
type Token struct {
	Goroutine uint64
	Thread    int
}

// Bind returns a Token for the calling goroutine.
func Bind() Token {
	return Token{
		Goroutine: Current(),
		Thread:    osThreadID(),
	}
}

// Bound reports whether the token has been bound.
func (x Token) Bound() bool { return x.Goroutine != 0 }

// Held reports whether the calling goroutine is the one the token is bound
// to. An unbound token is never held.
func (x Token) Held() bool {
	return x.Bound() && Current() == x.Goroutine
}
