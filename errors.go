package hostloop

import (
	"errors"
	"fmt"
)

// Standard errors.
var (
	// ErrAlreadyRunning is returned by Start if the adapter is running.
	ErrAlreadyRunning = errors.New("hostloop: adapter is already running")

	// ErrNestedLoop is returned by Start if another adapter holds the guard.
	ErrNestedLoop = errors.New("hostloop: cannot start while another scheduler is running")

	// ErrOverlappingInnerLoopRequest is the panic value of RequestInnerLoop,
	// if a request is already pending.
	ErrOverlappingInnerLoopRequest = errors.New("hostloop: an inner loop request is already pending")

	// ErrWrongThread indicates an operation was attempted off the UI thread.
	ErrWrongThread = errors.New("hostloop: not called on the thread the scheduler was started on")

	// ErrNilInnerLoop is the panic value of RequestInnerLoop, if given a
	// nil callback.
	ErrNilInnerLoop = errors.New("hostloop: nil inner loop callback")

	// ErrNotRunning is the panic value of RequestInnerLoop, if the adapter
	// isn't running.
	ErrNotRunning = errors.New("hostloop: adapter is not running")

	// ErrSchedulerClosed is returned by Start if the core has been closed.
	ErrSchedulerClosed = errors.New("hostloop: scheduler core is closed")

	ErrNilCore = errors.New("hostloop: nil core")
	ErrNilHost = errors.New("hostloop: nil host")
	ErrNilApp  = errors.New("hostloop: nil app context")

	// ErrInvalidTickInterval is returned by New for non-positive intervals.
	ErrInvalidTickInterval = errors.New("hostloop: tick interval must be positive")
)

// Tick phases, see TickError.
const (
	PhaseExitCheck = "exit-check"
	PhaseStop      = "stop"
	PhaseRun       = "run"
	PhaseArm       = "arm"
	PhaseWake      = "wake"
	PhaseInnerLoop = "inner-loop"
)

// TickError is a failure that occurred during a tick. It is reported, via
// the logger and the error handler, then discarded.
type TickError struct {
	Cause error
	Phase string
	Tick  uint64
}

// Error implements the error interface.
func (e *TickError) Error() string {
	return fmt.Sprintf("hostloop: tick %d failed during %s: %v", e.Tick, e.Phase, e.Cause)
}

// Unwrap returns the underlying cause for use with [errors.Is] and [errors.As].
func (e *TickError) Unwrap() error {
	return e.Cause
}

// PanicError wraps a value recovered from a panic.
type PanicError struct {
	Value any
}

// Error implements the error interface.
func (e PanicError) Error() string {
	return fmt.Sprintf("hostloop: panic: %v", e.Value)
}

// Unwrap returns the underlying error if the panic value is an error type.
func (e PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
