package hostloop

import (
	"sync/atomic"
)

// SchedulerState is the lifecycle state of an [Adapter].
//
//	StateCreated  → StateRunning   [Start]
//	StateStopped  → StateRunning   [Start, restart]
//	StateRunning  → StateStopping  [tick observes the app exiting]
//	StateRunning  → StateStopped   [application exit]
//	StateStopping → StateStopped   [application exit]
//
// Transitions only happen on the UI thread. The state may be read from any
// goroutine.
type SchedulerState uint32

const (
	// StateCreated indicates the adapter has not been started.
	StateCreated SchedulerState = iota
	// StateRunning indicates the host loop is driving the scheduler.
	StateRunning
	// StateStopping indicates the app is exiting, and the scheduler has been
	// asked to stop. No further ticks are armed.
	StateStopping
	// StateStopped indicates the shutdown sequence has completed.
	StateStopped
)

// String returns a human-readable representation of the state.
func (s SchedulerState) String() string {
	switch s {
	case StateCreated:
		return "Created"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// stateCell is a single-writer state holder, readable from any goroutine.
type stateCell struct {
	v atomic.Uint32
}

func (s *stateCell) Load() SchedulerState { return SchedulerState(s.v.Load()) }

func (s *stateCell) Store(state SchedulerState) { s.v.Store(uint32(state)) }
