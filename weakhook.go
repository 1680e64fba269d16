package hostloop

import (
	"runtime"
	"weak"

	"github.com/joeycumines/logiface"
)

// weakCallback returns a func that calls method on target, for as long as
// target is reachable elsewhere. The returned func doesn't keep target
// alive, so it can be handed to long-lived event sources without creating an
// ownership cycle.
func weakCallback[T any](target *T, method func(*T)) func() {
	wp := weak.Make(target)
	return func() {
		if t := wp.Value(); t != nil {
			method(t)
		}
	}
}

// exitHook is the adapter's subscription to the host's exit event.
type exitHook struct {
	host    Host
	logger  *logiface.Logger[logiface.Event]
	cleanup runtime.Cleanup
	token   uint64
	adapter uint64
}

// subscribeExitHook subscribes a weak handler for the application exit
// event. If the adapter is collected while still subscribed, the
// subscription is removed on a best-effort basis.
func subscribeExitHook(host Host, a *Adapter) *exitHook {
	// must not reference a, or the cleanup would never run
	h := &exitHook{host: host, logger: a.logger, adapter: a.id}
	h.token = host.SubscribeApplicationExit(weakCallback(a, (*Adapter).onApplicationExit))
	h.cleanup = runtime.AddCleanup(a, (*exitHook).remove, h)
	return h
}

// unsubscribe removes the subscription, and cancels the cleanup.
func (h *exitHook) unsubscribe() {
	if h == nil {
		return
	}
	h.cleanup.Stop()
	h.remove()
}

func (h *exitHook) remove() {
	defer func() {
		if r := recover(); r != nil {
			h.logPanic(r)
		}
	}()
	h.host.UnsubscribeApplicationExit(h.token)
}

func (h *exitHook) logPanic(r any) {
	defer func() { _ = recover() }()
	h.logger.Crit().
		Err(PanicError{Value: r}).
		Uint64("adapter", h.adapter).
		Uint64("token", h.token).
		Log("hostloop: failed to unsubscribe from application exit")
}
