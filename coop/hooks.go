package coop

import (
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
)

// TaskHooks is the process-wide instrumentation installed while a loop is
// being driven. Values are treated as immutable once installed.
type TaskHooks struct {
	// Owner is the loop that asked for these hooks, if any.
	Owner *Loop
	// OriginDepth is the number of stack frames recorded for each scheduled
	// callback. Zero disables origin tracking.
	OriginDepth int
}

var taskHooks atomic.Pointer[TaskHooks]

// CurrentTaskHooks returns the installed hooks, or nil.
func CurrentTaskHooks() *TaskHooks { return taskHooks.Load() }

// SetTaskHooks installs h (which may be nil), returning the previous value.
func SetTaskHooks(h *TaskHooks) (previous *TaskHooks) { return taskHooks.Swap(h) }

// captureOrigin formats up to depth frames, starting at the caller skip
// frames above captureOrigin.
func captureOrigin(skip, depth int) string {
	if depth <= 0 {
		return ""
	}
	pcs := make([]uintptr, depth)
	n := runtime.Callers(skip+2, pcs)
	if n == 0 {
		return ""
	}
	frames := runtime.CallersFrames(pcs[:n])
	var b strings.Builder
	for {
		frame, more := frames.Next()
		if b.Len() != 0 {
			b.WriteString(" <- ")
		}
		b.WriteString(frame.Function)
		b.WriteByte(' ')
		b.WriteString(frame.File)
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(frame.Line))
		if !more {
			break
		}
	}
	return b.String()
}
