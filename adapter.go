package hostloop

import (
	"sync/atomic"
	"time"

	catrate "github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"

	"github.com/joeycumines/go-hostloop/internal/goroutineid"
)

type (
	// Host is a native UI message loop, which owns the UI thread.
	Host interface {
		// RunUntilExit runs the loop on the calling goroutine, returning
		// only once the application has terminated.
		RunUntilExit(app AppContext) error

		// PostDelayed calls continuation once, after delay, on any
		// goroutine.
		PostDelayed(delay time.Duration, continuation func())

		// DispatchToUIThread runs action on the UI thread.
		DispatchToUIThread(action func())

		// SubscribeApplicationExit registers handler, which must be called
		// on the UI thread, once, as the loop exits.
		SubscribeApplicationExit(handler func()) (token uint64)

		// UnsubscribeApplicationExit removes a handler, ignoring unknown
		// tokens.
		UnsubscribeApplicationExit(token uint64)
	}

	// AppContext is the application lifecycle container, passed through to
	// the host.
	AppContext interface {
		IsExiting() bool
	}

	// Hooks is the core's opaque instrumentation state, e.g. origin
	// tracking. It is saved and restored verbatim.
	Hooks = any

	// Core is a cooperative, single-threaded scheduler.
	Core interface {
		// RunReadyWorkNonBlocking runs every callback that is ready, and
		// returns. It may wait for readiness, but won't if there is
		// anything ready.
		RunReadyWorkNonBlocking() error

		// Stop asks the core to stop.
		Stop()

		// CallSoon schedules fn for the next pass. It is only called on the
		// UI thread.
		CallSoon(fn func())

		// Hooks returns the currently installed hooks.
		Hooks() Hooks

		// SetHooks installs h.
		SetHooks(h Hooks)

		// RunningHooks returns the hooks to install while running.
		RunningHooks() Hooks
	}

	// Closer may be implemented by a Core, to prevent a closed core from
	// being started.
	Closer interface {
		IsClosed() bool
	}

	// StopResetter may be implemented by a Core, to clear its stopping flag
	// once the application has exited.
	StopResetter interface {
		ResetStopping()
	}
)

var adapterIDs atomic.Uint64

// Adapter drives a [Core] from a [Host], in place of the core's own run
// loop. See [Adapter.Start].
type Adapter struct {
	// Prevent copying
	_ [0]func()

	core           Core
	logger         *logiface.Logger[logiface.Event]
	failureLimiter *catrate.Limiter
	onError        func(error)
	guard          *Guard

	// set by Start, UI thread only
	host       Host
	app        AppContext
	savedHooks Hooks
	exitHook   *exitHook
	innerLoop  func()
	affinity   goroutineid.Token

	tick  atomic.Pointer[TickHandle]
	wake  wakeSource
	stats adapterStats

	state stateCell

	tickSeq  atomic.Uint64
	interval time.Duration
	id       uint64
}

// New creates an Adapter for core.
func New(core Core, opts ...Option) (*Adapter, error) {
	if core == nil {
		return nil, ErrNilCore
	}
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	a := &Adapter{
		core:           core,
		logger:         cfg.logger,
		failureLimiter: cfg.failureLimiter,
		onError:        cfg.onError,
		guard:          cfg.guard,
		interval:       cfg.tickInterval,
		id:             adapterIDs.Add(1),
	}
	a.wake.core = core
	return a, nil
}

// ID uniquely identifies the adapter within the process.
func (a *Adapter) ID() uint64 { return a.id }

// State returns the current state. It is safe to call from any goroutine.
func (a *Adapter) State() SchedulerState { return a.state.Load() }

// Start performs the bookkeeping the core's own run loop would, binds the
// calling goroutine as the UI thread, arms the first tick, then runs host,
// until the application exits. It returns the error from
// [Host.RunUntilExit], if any.
//
// Start fails without side effects if the adapter is already running
// ([ErrAlreadyRunning]), another adapter sharing its [Guard] is running
// ([ErrNestedLoop]), or the core is closed ([ErrSchedulerClosed]). Once
// stopped, an adapter may be started again. If the host panics, the adapter
// is stopped before the panic continues.
func (a *Adapter) Start(host Host, app AppContext) error {
	if host == nil {
		return ErrNilHost
	}
	if app == nil {
		return ErrNilApp
	}
	if c, ok := a.core.(Closer); ok && c.IsClosed() {
		return ErrSchedulerClosed
	}
	switch a.state.Load() {
	case StateRunning, StateStopping:
		return ErrAlreadyRunning
	}
	if !a.guard.acquire(a.id) {
		return ErrNestedLoop
	}

	a.affinity = goroutineid.Bind()
	a.host = host
	a.app = app
	a.innerLoop = nil

	a.savedHooks = a.core.Hooks()
	a.core.SetHooks(a.core.RunningHooks())

	a.exitHook = subscribeExitHook(host, a)

	a.state.Store(StateRunning)
	defer func() {
		if s := a.state.Load(); s == StateRunning || s == StateStopping {
			// the host returned (or panicked) without firing the exit event
			a.onApplicationExit()
		}
	}()

	a.wake.post()
	a.armNextTick()

	a.logLifecycle("hostloop: started", StateRunning)

	return host.RunUntilExit(app)
}

// onApplicationExit restores the state the core had before Start. It is
// called via the exit hook, or by Start.
func (a *Adapter) onApplicationExit() {
	switch a.state.Load() {
	case StateRunning, StateStopping:
	default:
		return
	}
	if !a.affinity.Held() {
		a.logCritical("hostloop: application exit fired off the UI thread", ErrWrongThread)
		return
	}

	a.shutdownStep("hostloop: failed to restore hooks", func() {
		a.core.SetHooks(a.savedHooks)
	})
	if r, ok := a.core.(StopResetter); ok {
		a.shutdownStep("hostloop: failed to reset stopping flag", r.ResetStopping)
	}

	a.exitHook.unsubscribe()
	a.exitHook = nil
	a.tick.Store(nil)
	if a.innerLoop != nil {
		a.innerLoop = nil
		a.logWarning("hostloop: discarded inner loop request, application exited")
	}
	a.savedHooks = nil
	a.host = nil
	a.app = nil
	a.affinity = goroutineid.Token{}
	a.guard.release(a.id)

	a.state.Store(StateStopped)
	a.logLifecycle("hostloop: stopped", StateStopped)
}

func (a *Adapter) shutdownStep(msg string, fn func()) {
	if err := safeCall(func() error {
		fn()
		return nil
	}); err != nil {
		a.logCritical(msg, err)
	}
}
