package hostloop

import (
	"time"
)

// TickHandle identifies an armed tick: a continuation posted to the host,
// which has yet to run. At most one is outstanding per adapter.
type TickHandle struct {
	// ArmedAt is when the continuation was posted.
	ArmedAt time.Time
	// ID increases monotonically, per adapter.
	ID uint64
}

// TickPending returns the outstanding tick, if any. It is safe to call from
// any goroutine.
func (a *Adapter) TickPending() (TickHandle, bool) {
	if h := a.tick.Load(); h != nil {
		return *h, true
	}
	return TickHandle{}, false
}

// armNextTick posts a continuation that will run the next tick, unless one
// is already outstanding.
func (a *Adapter) armNextTick() {
	if h := a.tick.Load(); h != nil {
		a.logDebug("hostloop: tick already armed", h)
		return
	}
	h := &TickHandle{ID: a.tickSeq.Add(1), ArmedAt: time.Now()}
	a.tick.Store(h)
	var posted bool
	defer func() {
		if !posted {
			// never posted, so the next call must arm again
			a.tick.CompareAndSwap(h, nil)
		}
	}()
	host := a.host
	host.PostDelayed(a.interval, func() { a.onTickFired(h, host) })
	posted = true
	a.stats.ticksArmed.Add(1)
}

// onTickFired is the continuation posted by armNextTick. It may be called on
// any goroutine, so it does nothing but hop onto the UI thread.
func (a *Adapter) onTickFired(h *TickHandle, host Host) {
	defer func() {
		if r := recover(); r != nil {
			a.logCritical("hostloop: dispatch to UI thread panicked", PanicError{Value: r})
		}
	}()
	host.DispatchToUIThread(func() { a.runTick(h) })
}

// RunOnce runs a single tick, on the UI thread, as if an armed tick had
// fired: it advances the core by one non-blocking pass, ensures the next
// tick is armed, then runs any pending inner loop request. If the
// application is exiting, it stops the core instead, and arms nothing.
//
// RunOnce never panics, and returns nothing: failures are reported to the
// logger and the handler configured [WithErrorHandler]. Calls before Start,
// after shutdown, or off the UI thread, do nothing.
func (a *Adapter) RunOnce() {
	a.runTick(nil)
}

// runTick implements RunOnce. A fired tick is only run if it is still the
// outstanding one.
func (a *Adapter) runTick(fired *TickHandle) {
	defer a.recoverLogger()

	state := a.state.Load()
	if state != StateRunning && state != StateStopping {
		if fired != nil {
			a.stats.staleTicks.Add(1)
		}
		return
	}

	if !a.affinity.Held() {
		a.logCritical("hostloop: tick ran off the UI thread", ErrWrongThread)
		return
	}

	if fired != nil && !a.tick.CompareAndSwap(fired, nil) {
		a.stats.staleTicks.Add(1)
		a.logDebug("hostloop: ignoring stale tick", fired)
		return
	}

	if state == StateStopping {
		return
	}

	tick := a.stats.ticksRun.Add(1)

	var exiting bool
	a.step(tick, PhaseExitCheck, func() error {
		exiting = a.app.IsExiting()
		return nil
	})
	if exiting {
		a.state.Store(StateStopping)
		a.step(tick, PhaseStop, func() error {
			a.core.Stop()
			return nil
		})
		if a.innerLoop != nil {
			a.innerLoop = nil
			a.logWarning("hostloop: discarded inner loop request, application is exiting")
		}
		a.logLifecycle("hostloop: stopping", StateStopping)
		return
	}

	a.step(tick, PhaseRun, a.core.RunReadyWorkNonBlocking)

	// the next tick must be armed before the inner loop blocks
	a.step(tick, PhaseArm, func() error {
		a.armNextTick()
		return nil
	})
	a.step(tick, PhaseWake, func() error {
		a.wake.post()
		return nil
	})

	if fn := a.innerLoop; fn != nil {
		a.innerLoop = nil
		a.stats.innerLoopsRun.Add(1)
		a.step(tick, PhaseInnerLoop, func() error {
			fn()
			return nil
		})
	}
}

// step runs one phase of a tick, reporting any error or panic.
func (a *Adapter) step(tick uint64, phase string, fn func() error) {
	if err := safeCall(fn); err != nil {
		a.reportTickError(&TickError{Cause: err, Phase: phase, Tick: tick})
	}
}

// safeCall executes fn with panic recovery.
func safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = PanicError{Value: r}
		}
	}()
	return fn()
}
