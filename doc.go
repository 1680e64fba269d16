// Package hostloop runs a cooperative, single-threaded scheduler on a
// native UI message loop that owns the thread.
//
// Normally, such a scheduler owns its thread, and blocks waiting for work.
// An [Adapter] instead hands the thread to the [Host], and drives the [Core]
// via short periodic ticks, each of which is posted to the host, hops onto
// the UI thread, then runs one non-blocking pass of the core. A no-op item
// is kept queued on the core, so the pass never waits.
//
// Work running on the core must not block the UI thread. Blocking host
// calls, such as modal dialogs, are instead requested via
// [Adapter.RequestInnerLoop], and run immediately after the tick, once the
// next tick is armed. The nested host loop then keeps the core running.
//
// See the uiloop and coop packages for a reference host and core.
package hostloop
