package uiloop

import (
	"errors"
)

var (
	// ErrAlreadyRunning is returned by RunUntilExit if the loop is running.
	ErrAlreadyRunning = errors.New("uiloop: loop is already running")

	// ErrTerminated is returned by RunUntilExit if the loop already ran.
	ErrTerminated = errors.New("uiloop: loop has terminated")

	// ErrNotUIThread is returned by operations that must be called on the UI thread.
	ErrNotUIThread = errors.New("uiloop: not called on the UI thread")
)
