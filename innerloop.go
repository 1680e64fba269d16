package hostloop

// RequestInnerLoop defers fn, a call that runs a nested, blocking host loop
// (e.g. a modal dialog), until just after the current tick. By the time fn
// runs, the next tick is armed, so the scheduler keeps making progress,
// driven by the nested loop.
//
// It must be called on the UI thread, while the adapter is running, i.e.
// from within scheduled work. It panics with [ErrWrongThread] or
// [ErrNotRunning] otherwise, with [ErrNilInnerLoop] if fn is nil, and with
// [ErrOverlappingInnerLoopRequest] if a request is already pending. While
// the application is exiting, requests are discarded.
func (a *Adapter) RequestInnerLoop(fn func()) {
	switch a.state.Load() {
	case StateRunning:
	case StateStopping:
		if a.affinity.Held() {
			a.logWarning("hostloop: discarded inner loop request, application is exiting")
			return
		}
		panic(ErrWrongThread)
	default:
		panic(ErrNotRunning)
	}
	if !a.affinity.Held() {
		panic(ErrWrongThread)
	}
	if fn == nil {
		panic(ErrNilInnerLoop)
	}
	if a.innerLoop != nil {
		panic(ErrOverlappingInnerLoopRequest)
	}
	a.innerLoop = fn
}

// InnerLoopPending reports whether a request is waiting to be run. It must be
// called on the UI thread.
func (a *Adapter) InnerLoopPending() bool {
	return a.innerLoop != nil
}
