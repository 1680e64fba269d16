package hostloop

import (
	"sync/atomic"
)

// wakeSource keeps a no-op callback queued on the core, so the readiness
// wait inside RunReadyWorkNonBlocking always has something ready, and never
// parks the UI thread. It is re-posted by every tick.
type wakeSource struct {
	core     Core
	posted   atomic.Uint64
	consumed atomic.Uint64
}

func (w *wakeSource) post() {
	w.core.CallSoon(w.selfRead)
	w.posted.Add(1)
}

func (w *wakeSource) selfRead() {
	w.consumed.Add(1)
}

// outstanding returns the number of posted items that haven't run.
func (w *wakeSource) outstanding() uint64 {
	return w.posted.Load() - w.consumed.Load()
}
