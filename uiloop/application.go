package uiloop

import (
	"sync/atomic"
)

// Application is the lifecycle container passed to [Loop.RunUntilExit].
// It implements hostloop.AppContext.
type Application struct {
	loop    atomic.Pointer[Loop]
	exiting atomic.Bool
}

// NewApplication returns an application that isn't yet bound to a loop.
func NewApplication() *Application { return &Application{} }

// IsExiting reports whether Exit has been called.
func (x *Application) IsExiting() bool { return x.exiting.Load() }

// Exit marks the application as exiting, and asks the loop it runs on to
// quit, once the messages already queued have been processed.
// It is safe to call from any goroutine.
func (x *Application) Exit() {
	x.exiting.Store(true)
	if l := x.loop.Load(); l != nil {
		l.Quit()
	}
}

func (x *Application) bind(l *Loop) {
	x.loop.Store(l)
	if x.exiting.Load() {
		l.Quit()
	}
}
