// Package uiloop is a native-style UI message loop, used as the host for
// hostloop adapters in tests and examples.
//
// It behaves like the message loops of desktop toolkits: [Loop.RunUntilExit]
// binds the calling goroutine (and its OS thread) as the UI thread, then
// pumps messages in FIFO order until the application exits.
// [Loop.DispatchToUIThread] is a synchronous invoke, [Loop.Post] an
// asynchronous one, [Loop.PostDelayed] fires its continuation from a runtime
// timer goroutine (i.e. not the UI thread), and [Loop.RunModal] runs a nested
// pump, in the way a modal dialog blocks its caller while keeping the UI
// responsive.
package uiloop
