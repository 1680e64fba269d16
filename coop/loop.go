package coop

import (
	"container/heap"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// loopTestHooks provides injection points for deterministic testing.
type loopTestHooks struct {
	// PreWait is called before the readiness wait, with the computed
	// timeout (negative means forever).
	PreWait func(timeout time.Duration)
}

// Loop is a single-threaded cooperative scheduler core.
//
// Apart from [Loop.CallSoonThreadSafe], [Loop.Stop], [Loop.IsStopping] and
// [Loop.IsClosed], methods must be called from the goroutine driving the
// loop.
type Loop struct {
	// Prevent copying
	_ [0]func()

	testHooks *loopTestHooks

	now func() time.Time

	ready  []*callback
	timers timerHeap

	// thread-safe inbox, see CallSoonThreadSafe
	inboxMu sync.Mutex
	inbox   []*callback
	wake    chan struct{}

	stopping atomic.Bool
	closed   atomic.Bool

	originDepth int
	debug       bool
}

// callback is a scheduled function.
type callback struct {
	fn        func()
	origin    string
	cancelled bool
}

// Timer is a callback scheduled by [Loop.CallLater].
type Timer struct {
	cb    *callback
	when  time.Time
	index int
}

// Cancel prevents the timer from firing, if it hasn't already. It must be
// called from the goroutine driving the loop.
func (t *Timer) Cancel() {
	if t != nil {
		t.cb.cancelled = true
	}
}

// When returns the time the timer is due.
func (t *Timer) When() time.Time { return t.when }

// timerHeap is a min-heap of timers
type timerHeap []*Timer

func (h timerHeap) Len() int           { return len(h) }
func (h timerHeap) Less(i, j int) bool { return h[i].when.Before(h[j].when) }
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*Timer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	x.index = -1
	return x
}

// New creates a new Loop.
func New(opts ...LoopOption) (*Loop, error) {
	cfg, err := resolveLoopOptions(opts)
	if err != nil {
		return nil, err
	}
	return &Loop{
		now:         time.Now,
		wake:        make(chan struct{}, 1),
		originDepth: cfg.originDepth,
		debug:       cfg.debug,
	}, nil
}

// CallSoon schedules fn to run on the next iteration.
func (l *Loop) CallSoon(fn func()) {
	if fn == nil || l.closed.Load() {
		return
	}
	l.ready = append(l.ready, l.newCallback(fn))
}

// CallLater schedules fn to run once delay has elapsed, returning nil if
// the loop is closed.
func (l *Loop) CallLater(delay time.Duration, fn func()) *Timer {
	if fn == nil || l.closed.Load() {
		return nil
	}
	t := &Timer{
		cb:   l.newCallback(fn),
		when: l.now().Add(delay),
	}
	heap.Push(&l.timers, t)
	return t
}

// CallSoonThreadSafe schedules fn from any goroutine, waking the loop if it
// is parked in its readiness wait.
func (l *Loop) CallSoonThreadSafe(fn func()) error {
	if l.closed.Load() {
		return ErrClosed
	}
	if fn == nil {
		return nil
	}
	cb := l.newCallback(fn)
	l.inboxMu.Lock()
	l.inbox = append(l.inbox, cb)
	l.inboxMu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
	return nil
}

// RunReadyWorkNonBlocking performs one iteration of the loop: it waits for
// readiness, moves due timers onto the ready queue, then runs every callback
// that was ready at that point. Callbacks scheduled while it runs are left
// for the next iteration.
//
// The readiness wait returns immediately only if a callback is ready or the
// loop is stopping. Otherwise it waits for the next timer, or for
// [Loop.CallSoonThreadSafe], however long that takes.
//
// Panicking callbacks don't stop the iteration, instead they are joined into
// the returned error, as [CallbackError] values.
func (l *Loop) RunReadyWorkNonBlocking() error {
	if l.closed.Load() {
		return ErrClosed
	}

	timeout := l.waitTimeout()
	if l.testHooks != nil && l.testHooks.PreWait != nil {
		l.testHooks.PreWait(timeout)
	}
	l.waitReady(timeout)
	l.drainInbox()

	now := l.now()
	for len(l.timers) != 0 && !l.timers[0].when.After(now) {
		t := heap.Pop(&l.timers).(*Timer)
		if !t.cb.cancelled {
			l.ready = append(l.ready, t.cb)
		}
	}

	var errs []error
	for n := len(l.ready); n > 0; n-- {
		cb := l.ready[0]
		l.ready[0] = nil
		l.ready = l.ready[1:]
		if cb.cancelled {
			continue
		}
		if err := runCallback(cb); err != nil {
			errs = append(errs, err)
		}
	}
	if len(l.ready) == 0 {
		l.ready = nil
	}

	return errors.Join(errs...)
}

// Pending returns the number of ready callbacks plus timers.
func (l *Loop) Pending() int {
	l.inboxMu.Lock()
	n := len(l.inbox)
	l.inboxMu.Unlock()
	return n + len(l.ready) + len(l.timers)
}

// Stop asks the loop to stop, which makes the readiness wait non-blocking.
func (l *Loop) Stop() { l.stopping.Store(true) }

// IsStopping reports whether Stop has been called since the last reset.
func (l *Loop) IsStopping() bool { return l.stopping.Load() }

// ResetStopping clears the stopping flag, as is done once a run completes.
func (l *Loop) ResetStopping() { l.stopping.Store(false) }

// Close discards all scheduled work. A closed loop can't be reused.
func (l *Loop) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	l.ready = nil
	l.timers = nil
	l.inboxMu.Lock()
	l.inbox = nil
	l.inboxMu.Unlock()
	return nil
}

// IsClosed reports whether Close has been called.
func (l *Loop) IsClosed() bool { return l.closed.Load() }

// Hooks returns the process-wide hooks, as a *TaskHooks.
func (l *Loop) Hooks() any { return CurrentTaskHooks() }

// SetHooks installs h, which must be a *TaskHooks (or nil).
func (l *Loop) SetHooks(h any) {
	v, _ := h.(*TaskHooks)
	SetTaskHooks(v)
}

// RunningHooks returns the hooks this loop needs installed while it is
// being driven.
func (l *Loop) RunningHooks() any {
	h := &TaskHooks{Owner: l}
	if l.debug {
		h.OriginDepth = l.originDepth
	}
	return h
}

func (l *Loop) newCallback(fn func()) *callback {
	cb := &callback{fn: fn}
	if h := CurrentTaskHooks(); h != nil && h.OriginDepth > 0 {
		// skip newCallback and the exported method
		cb.origin = captureOrigin(2, h.OriginDepth)
	}
	return cb
}

func (l *Loop) waitTimeout() time.Duration {
	if len(l.ready) != 0 || l.stopping.Load() {
		return 0
	}
	if len(l.timers) != 0 {
		return max(l.timers[0].when.Sub(l.now()), 0)
	}
	return -1
}

func (l *Loop) waitReady(timeout time.Duration) {
	switch {
	case timeout == 0:
		select {
		case <-l.wake:
		default:
		}
	case timeout < 0:
		<-l.wake
	default:
		t := time.NewTimer(timeout)
		defer t.Stop()
		select {
		case <-l.wake:
		case <-t.C:
		}
	}
}

func (l *Loop) drainInbox() {
	l.inboxMu.Lock()
	inbox := l.inbox
	l.inbox = nil
	l.inboxMu.Unlock()
	l.ready = append(l.ready, inbox...)
}

// runCallback executes a callback with panic recovery.
func runCallback(cb *callback) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &CallbackError{Value: r, Origin: cb.origin}
		}
	}()
	cb.fn()
	return nil
}
