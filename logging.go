package hostloop

import (
	"fmt"
	"os"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// defaultLogger returns a JSON logger, writing to stderr.
func defaultLogger() *logiface.Logger[logiface.Event] {
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(os.Stderr)),
	).Logger()
}

// failureCategory groups tick failures for rate limiting.
type failureCategory struct {
	phase string
	cause string
}

// reportTickError is the sink for every failure swallowed by a tick.
func (a *Adapter) reportTickError(err *TickError) {
	a.stats.tickFailures.Add(1)

	if a.onError != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					a.logCritical("hostloop: error handler panicked", PanicError{Value: r})
				}
			}()
			a.onError(err)
		}()
	}

	category := failureCategory{phase: err.Phase, cause: fmt.Sprintf("%T", err.Cause)}
	if _, ok := a.failureLimiter.Allow(category); !ok {
		a.stats.reportsSuppressed.Add(1)
		return
	}

	defer a.recoverLogger()
	a.logger.Err().
		Err(err).
		Uint64("adapter", a.id).
		Uint64("tick", err.Tick).
		Str("phase", err.Phase).
		Log("hostloop: tick failed")
}

// logCritical logs programming errors, e.g. thread affinity violations.
func (a *Adapter) logCritical(msg string, err error) {
	defer a.recoverLogger()
	a.logger.Crit().
		Err(err).
		Uint64("adapter", a.id).
		Log(msg)
}

func (a *Adapter) logWarning(msg string) {
	defer a.recoverLogger()
	a.logger.Warning().
		Uint64("adapter", a.id).
		Log(msg)
}

func (a *Adapter) logDebug(msg string, tick *TickHandle) {
	defer a.recoverLogger()
	b := a.logger.Debug()
	if tick != nil {
		b = b.Uint64("tick_handle", tick.ID)
	}
	b.Uint64("adapter", a.id).Log(msg)
}

func (a *Adapter) logLifecycle(msg string, state SchedulerState) {
	defer a.recoverLogger()
	a.logger.Info().
		Uint64("adapter", a.id).
		Stringer("state", state).
		Dur("tick_interval", a.interval).
		Log(msg)
}

// recoverLogger prevents a misbehaving logger from unwinding into the host.
func (a *Adapter) recoverLogger() {
	_ = recover()
}
