package hostloop

import (
	"testing"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunOnce_ArmsBeforeInnerLoop(t *testing.T) {
	rec := &recorder{}
	core := newFakeCore(rec)
	a, _ := newTestAdapter(t, core)
	app := &fakeApp{}

	var innerCalls int
	host := newFakeHost(rec, func(h *fakeHost, app AppContext) error {
		core.CallSoon(func() {
			a.RequestInnerLoop(func() {
				innerCalls++
				rec.record("inner")
				_, ok := a.TickPending()
				assert.True(t, ok, "next tick should be armed")
				assert.Equal(t, 1, h.pending())
				assert.Equal(t, uint64(1), a.wake.outstanding(), "wake item should be queued")
			})
			core.CallSoon(func() { rec.record("after") })
		})

		require.True(t, h.fire())
		require.True(t, h.fire())

		app.(*fakeApp).exiting = true
		require.True(t, h.fire())
		assert.Zero(t, h.pending())
		return nil
	})

	require.NoError(t, a.Start(host, app))
	assert.Equal(t, 1, innerCalls)
	assert.Equal(t, []string{"arm", "run", "arm", "inner", "run", "after", "arm", "stop"}, rec.calls)

	stats := a.Stats()
	assert.Equal(t, uint64(3), stats.TicksRun)
	assert.Equal(t, uint64(3), stats.TicksArmed)
	assert.Equal(t, uint64(1), stats.InnerLoopsRun)
	assert.Equal(t, uint64(3), stats.WakesPosted)
	assert.Zero(t, stats.TickFailures)
	assert.Equal(t, 3, host.dispatches)
}

func TestRunOnce_FailingPassStillArms(t *testing.T) {
	core := newFakeCore(nil)
	var reported []error
	a, writer := newTestAdapter(t, core, WithErrorHandler(func(err error) { reported = append(reported, err) }))

	host := newFakeHost(nil, func(h *fakeHost, app AppContext) error {
		core.onRun = func() error { return errTestBoom }
		require.NotPanics(t, func() { require.True(t, h.fire()) })
		_, ok := a.TickPending()
		assert.True(t, ok)
		assert.Equal(t, 1, h.pending())

		core.onRun = nil
		core.CallSoon(func() { panic("task panicked") })
		require.NotPanics(t, func() { require.True(t, h.fire()) })
		_, ok = a.TickPending()
		assert.True(t, ok)
		assert.Equal(t, 1, h.pending())
		return nil
	})
	require.NoError(t, a.Start(host, &fakeApp{}))

	require.Len(t, reported, 2)

	var tickErr *TickError
	require.ErrorAs(t, reported[0], &tickErr)
	assert.Equal(t, PhaseRun, tickErr.Phase)
	assert.Equal(t, uint64(1), tickErr.Tick)
	assert.ErrorIs(t, reported[0], errTestBoom)

	require.ErrorAs(t, reported[1], &tickErr)
	assert.Equal(t, uint64(2), tickErr.Tick)
	var panicErr PanicError
	require.ErrorAs(t, reported[1], &panicErr)
	assert.Equal(t, "task panicked", panicErr.Value)

	assert.Equal(t, []string{"hostloop: tick failed", "hostloop: tick failed"}, writer.messages(logiface.LevelError))
	assert.Equal(t, uint64(2), a.Stats().TickFailures)
}

func TestRunOnce_ExitingStopsWithoutArming(t *testing.T) {
	rec := &recorder{}
	core := newFakeCore(rec)
	a, writer := newTestAdapter(t, core)
	app := &fakeApp{exiting: true}

	host := newFakeHost(rec, func(h *fakeHost, app AppContext) error {
		require.True(t, h.fire())
		assert.Equal(t, StateStopping, a.State())
		assert.Equal(t, 1, core.stops)
		assert.Zero(t, core.runs)
		assert.Zero(t, h.pending())
		_, ok := a.TickPending()
		assert.False(t, ok)

		// further ticks are a no-op
		a.RunOnce()
		assert.Equal(t, 1, core.stops)
		assert.Zero(t, h.pending())
		return nil
	})

	require.NoError(t, a.Start(host, app))
	assert.Equal(t, StateStopped, a.State())
	assert.Equal(t, []string{"arm", "stop"}, rec.calls)
	assert.Equal(t, []string{"hostloop: started", "hostloop: stopping", "hostloop: stopped"}, writer.messages(logiface.LevelInformational))
}

func TestRunOnce_ExitingDiscardsInnerLoop(t *testing.T) {
	core := newFakeCore(nil)
	a, writer := newTestAdapter(t, core)
	app := &fakeApp{}

	host := newFakeHost(nil, func(h *fakeHost, app AppContext) error {
		a.RequestInnerLoop(func() { t.Error("inner loop should not run") })
		app.(*fakeApp).exiting = true
		require.True(t, h.fire())
		assert.False(t, a.InnerLoopPending())
		return nil
	})

	require.NoError(t, a.Start(host, app))
	assert.Zero(t, a.Stats().InnerLoopsRun)
	assert.Contains(t, writer.messages(logiface.LevelWarning), "hostloop: discarded inner loop request, application is exiting")
}

func TestRunOnce_BeforeStart(t *testing.T) {
	core := newFakeCore(nil)
	a, _ := newTestAdapter(t, core)
	require.NotPanics(t, a.RunOnce)
	assert.Zero(t, core.runs)
	assert.Zero(t, a.Stats().TicksRun)
}

func TestRunOnce_WrongThread(t *testing.T) {
	core := newFakeCore(nil)
	a, writer := newTestAdapter(t, core)

	host := newFakeHost(nil, func(h *fakeHost, app AppContext) error {
		done := make(chan struct{})
		go func() {
			defer close(done)
			a.RunOnce()
		}()
		<-done
		assert.Zero(t, core.runs)
		assert.Equal(t, 1, h.pending())
		assert.Zero(t, a.Stats().TicksRun)
		return nil
	})

	require.NoError(t, a.Start(host, &fakeApp{}))
	assert.Equal(t, []string{"hostloop: tick ran off the UI thread"}, writer.messages(logiface.LevelCritical))
}

func TestRunOnce_ManualDoesNotArmTwice(t *testing.T) {
	core := newFakeCore(nil)
	a, writer := newTestAdapter(t, core)

	host := newFakeHost(nil, func(h *fakeHost, app AppContext) error {
		armed, _ := a.TickPending()
		a.RunOnce()
		assert.Equal(t, 1, core.runs)
		assert.Equal(t, 1, h.pending())
		current, _ := a.TickPending()
		assert.Equal(t, armed, current)

		// the armed tick is still current
		require.True(t, h.fire())
		assert.Equal(t, 2, core.runs)
		assert.Equal(t, 1, h.pending())
		current, _ = a.TickPending()
		assert.NotEqual(t, armed.ID, current.ID)
		return nil
	})

	require.NoError(t, a.Start(host, &fakeApp{}))
	assert.Contains(t, writer.messages(logiface.LevelDebug), "hostloop: tick already armed")
}

func TestRunOnce_ChainContinues(t *testing.T) {
	core := newFakeCore(nil)
	a, _ := newTestAdapter(t, core, WithFailureReportRates(nil))

	host := newFakeHost(nil, func(h *fakeHost, app AppContext) error {
		core.onRun = func() error {
			if core.runs%2 == 0 {
				return errTestBoom
			}
			return nil
		}
		for i := 0; i < 50; i++ {
			require.True(t, h.fire(), "tick chain lapsed at %d", i)
			assert.Equal(t, 1, h.pending())
			assert.Equal(t, uint64(1), a.wake.outstanding())
		}
		return nil
	})

	require.NoError(t, a.Start(host, &fakeApp{}))
	assert.Equal(t, 50, core.runs)
	assert.Equal(t, uint64(25), a.Stats().TickFailures)
	assert.Zero(t, a.Stats().ReportsSuppressed)
}

// panickingDispatchHost panics instead of dispatching.
type panickingDispatchHost struct {
	*fakeHost
}

func (h *panickingDispatchHost) DispatchToUIThread(func()) { panic("dispatch failed") }

func TestOnTickFired_DispatchPanics(t *testing.T) {
	core := newFakeCore(nil)
	a, writer := newTestAdapter(t, core)
	host := &panickingDispatchHost{fakeHost: newFakeHost(nil, nil)}

	host.script = func(h *fakeHost, app AppContext) error {
		require.NotPanics(t, func() { require.True(t, h.fire()) })
		assert.Zero(t, core.runs)
		return nil
	}

	require.NoError(t, a.Start(host, &fakeApp{}))
	assert.Equal(t, []string{"hostloop: dispatch to UI thread panicked"}, writer.messages(logiface.LevelCritical))
}

func TestReportTickError_RateLimited(t *testing.T) {
	core := newFakeCore(nil)
	var handled int
	a, writer := newTestAdapter(t, core,
		WithFailureReportRates(map[time.Duration]int{time.Minute: 2}),
		WithErrorHandler(func(error) { handled++ }),
	)

	host := newFakeHost(nil, func(h *fakeHost, app AppContext) error {
		core.onRun = func() error { return errTestBoom }
		for i := 0; i < 5; i++ {
			require.True(t, h.fire())
		}
		return nil
	})

	require.NoError(t, a.Start(host, &fakeApp{}))
	assert.Equal(t, 5, handled)
	assert.Len(t, writer.messages(logiface.LevelError), 2)
	stats := a.Stats()
	assert.Equal(t, uint64(5), stats.TickFailures)
	assert.Equal(t, uint64(3), stats.ReportsSuppressed)
}

func TestReportTickError_HandlerPanics(t *testing.T) {
	core := newFakeCore(nil)
	a, writer := newTestAdapter(t, core, WithErrorHandler(func(error) { panic("handler panicked") }))

	host := newFakeHost(nil, func(h *fakeHost, app AppContext) error {
		core.onRun = func() error { return errTestBoom }
		require.NotPanics(t, func() { require.True(t, h.fire()) })
		assert.Equal(t, 1, h.pending())
		return nil
	})

	require.NoError(t, a.Start(host, &fakeApp{}))
	assert.Equal(t, []string{"hostloop: error handler panicked"}, writer.messages(logiface.LevelCritical))
	assert.Equal(t, []string{"hostloop: tick failed"}, writer.messages(logiface.LevelError))
}

func TestRunOnce_PanickingLogger(t *testing.T) {
	core := newFakeCore(nil)
	a, writer := newTestAdapter(t, core)
	writer.panics = true

	host := newFakeHost(nil, func(h *fakeHost, app AppContext) error {
		core.onRun = func() error { return errTestBoom }
		require.NotPanics(t, func() { require.True(t, h.fire()) })
		assert.Equal(t, 1, h.pending())
		assert.Equal(t, uint64(1), a.wake.outstanding())
		return nil
	})

	require.NotPanics(t, func() { require.NoError(t, a.Start(host, &fakeApp{})) })
	assert.Equal(t, StateStopped, a.State())
}

// flakyPostHost panics instead of posting, while failPosts is positive.
type flakyPostHost struct {
	*fakeHost
	failPosts int
}

func (h *flakyPostHost) PostDelayed(delay time.Duration, continuation func()) {
	if h.failPosts > 0 {
		h.failPosts--
		panic("post failed")
	}
	h.fakeHost.PostDelayed(delay, continuation)
}

func TestArmNextTick_PostPanicDoesNotLapse(t *testing.T) {
	core := newFakeCore(nil)
	var reported []error
	a, _ := newTestAdapter(t, core, WithErrorHandler(func(err error) { reported = append(reported, err) }))
	host := &flakyPostHost{fakeHost: newFakeHost(nil, nil)}

	host.script = func(h *fakeHost, app AppContext) error {
		host.failPosts = 1
		require.NotPanics(t, func() { require.True(t, h.fire()) })

		// the failed post left nothing outstanding
		assert.Zero(t, h.pending())
		_, ok := a.TickPending()
		assert.False(t, ok)

		a.RunOnce()
		assert.Equal(t, 1, h.pending())
		_, ok = a.TickPending()
		assert.True(t, ok)

		// and the chain continues from there
		for i := 0; i < 3; i++ {
			require.True(t, h.fire())
			assert.Equal(t, 1, h.pending())
		}
		return nil
	}

	require.NoError(t, a.Start(host, &fakeApp{}))

	require.Len(t, reported, 1)
	var tickErr *TickError
	require.ErrorAs(t, reported[0], &tickErr)
	assert.Equal(t, PhaseArm, tickErr.Phase)
	assert.Equal(t, uint64(5), a.Stats().TicksArmed)
	assert.Equal(t, 5, core.runs)
}
