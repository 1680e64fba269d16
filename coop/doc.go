// Package coop implements a small single-threaded cooperative scheduler core:
// a ready queue, a timer heap, a thread-safe inbox, and a readiness wait that
// parks the calling goroutine when there is nothing to do.
//
// The core never runs a loop of its own. Each call to
// [Loop.RunReadyWorkNonBlocking] performs exactly one iteration, which makes
// it suitable for being driven by a foreign event loop, e.g. via the
// hostloop package. Note that the readiness wait only returns immediately if
// at least one callback is ready, so a foreign driver must keep some work
// queued (see hostloop's wake source) to avoid parking its thread.
//
// # Instrumentation hooks
//
// [TaskHooks] are process-wide, mirroring how a scheduler that owns its
// thread would install and later restore hooks around its run loop. Whoever
// drives a [Loop] is expected to install [Loop.RunningHooks] while it runs,
// and restore the previous value afterwards.
package coop
