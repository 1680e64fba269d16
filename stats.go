package hostloop

import (
	"sync/atomic"
)

// Stats is a snapshot of an adapter's counters.
type Stats struct {
	// TicksRun counts ticks that reached the running state checks.
	TicksRun uint64
	// TicksArmed counts continuations posted to the host.
	TicksArmed uint64
	// StaleTicks counts fired continuations that were no longer current.
	StaleTicks uint64
	// TickFailures counts reported [TickError] values.
	TickFailures uint64
	// ReportsSuppressed counts failure logs dropped by rate limiting.
	ReportsSuppressed uint64
	// InnerLoopsRun counts flushed inner loop requests.
	InnerLoopsRun uint64
	// WakesPosted counts wake items posted to the core.
	WakesPosted uint64
}

type adapterStats struct {
	ticksRun          atomic.Uint64
	ticksArmed        atomic.Uint64
	staleTicks        atomic.Uint64
	tickFailures      atomic.Uint64
	reportsSuppressed atomic.Uint64
	innerLoopsRun     atomic.Uint64
}

// Stats returns a snapshot of the adapter's counters. It is safe to call
// from any goroutine.
func (a *Adapter) Stats() Stats {
	return Stats{
		TicksRun:          a.stats.ticksRun.Load(),
		TicksArmed:        a.stats.ticksArmed.Load(),
		StaleTicks:        a.stats.staleTicks.Load(),
		TickFailures:      a.stats.tickFailures.Load(),
		ReportsSuppressed: a.stats.reportsSuppressed.Load(),
		InnerLoopsRun:     a.stats.innerLoopsRun.Load(),
		WakesPosted:       a.wake.posted.Load(),
	}
}
