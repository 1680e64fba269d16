package coop

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned when a closed loop is used.
	ErrClosed = errors.New("coop: loop is closed")
)

// CallbackError wraps a value recovered from a panicking callback.
type CallbackError struct {
	// Value is the value passed to panic.
	Value any
	// Origin is the call site the callback was scheduled from, which is only
	// recorded while [TaskHooks.OriginDepth] is positive.
	Origin string
}

// Error implements the error interface.
func (e *CallbackError) Error() string {
	if e.Origin == "" {
		return fmt.Sprintf("coop: callback panicked: %v", e.Value)
	}
	return fmt.Sprintf("coop: callback panicked: %v (scheduled at %s)", e.Value, e.Origin)
}

// Unwrap returns the panic value if it is an error.
func (e *CallbackError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
