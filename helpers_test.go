package hostloop

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/stretchr/testify/require"
)

// testEvent is a minimal logiface.Event implementation, which records
// everything it is given.
type testEvent struct {
	logiface.UnimplementedEvent
	fields map[string]any
	level  logiface.Level
}

func (e *testEvent) Level() logiface.Level { return e.level }

func (e *testEvent) AddField(key string, val any) {
	if e.fields == nil {
		e.fields = make(map[string]any)
	}
	e.fields[key] = val
}

// testEventFactory creates testEvent instances.
type testEventFactory struct{}

func (f *testEventFactory) NewEvent(level logiface.Level) *testEvent {
	return &testEvent{level: level}
}

// testEventWriter writes testEvent instances.
type testEventWriter struct {
	mu     sync.Mutex
	events []*testEvent
	panics bool
}

func (w *testEventWriter) Write(event *testEvent) error {
	if w.panics {
		panic("logger panic")
	}
	w.mu.Lock()
	w.events = append(w.events, event)
	w.mu.Unlock()
	return nil
}

// messages returns the message of each event logged at level.
func (w *testEventWriter) messages(level logiface.Level) []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	var msgs []string
	for _, e := range w.events {
		if e.level == level {
			msg, _ := e.fields["msg"].(string)
			msgs = append(msgs, msg)
		}
	}
	return msgs
}

func newTestLogger(level logiface.Level) (*logiface.Logger[logiface.Event], *testEventWriter) {
	writer := &testEventWriter{}
	typedLogger := logiface.New[*testEvent](
		logiface.WithEventFactory[*testEvent](&testEventFactory{}),
		logiface.WithWriter[*testEvent](writer),
		logiface.WithLevel[*testEvent](level),
	)
	return typedLogger.Logger(), writer
}

// recorder tracks the order of interesting calls, across the fakes.
type recorder struct {
	calls []string
}

func (r *recorder) record(call string) {
	if r != nil {
		r.calls = append(r.calls, call)
	}
}

// fakeHost is a Host that runs everything on the calling goroutine. Delayed
// continuations are queued until fired by the test.
type fakeHost struct {
	mu        sync.Mutex
	rec       *recorder
	script    func(h *fakeHost, app AppContext) error
	delayed   []func()
	delays    []time.Duration
	handlers  map[uint64]func()
	nextToken uint64
	// when true, RunUntilExit returns without firing the exit event
	skipExit       bool
	dispatches     int
	unsubscribed   []uint64
	runUntilExitCt int
}

func newFakeHost(rec *recorder, script func(h *fakeHost, app AppContext) error) *fakeHost {
	return &fakeHost{rec: rec, script: script, handlers: make(map[uint64]func())}
}

func (h *fakeHost) RunUntilExit(app AppContext) error {
	h.runUntilExitCt++
	var err error
	if h.script != nil {
		err = h.script(h, app)
	}
	if !h.skipExit {
		h.fireExit()
	}
	return err
}

func (h *fakeHost) PostDelayed(delay time.Duration, continuation func()) {
	h.rec.record("arm")
	h.mu.Lock()
	h.delays = append(h.delays, delay)
	h.delayed = append(h.delayed, continuation)
	h.mu.Unlock()
}

func (h *fakeHost) DispatchToUIThread(action func()) {
	h.dispatches++
	action()
}

func (h *fakeHost) SubscribeApplicationExit(handler func()) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextToken++
	h.handlers[h.nextToken] = handler
	return h.nextToken
}

func (h *fakeHost) UnsubscribeApplicationExit(token uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.handlers, token)
	h.unsubscribed = append(h.unsubscribed, token)
}

func (h *fakeHost) subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handlers)
}

// pending returns the number of continuations not yet fired.
func (h *fakeHost) pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.delayed)
}

// fire runs the oldest delayed continuation, returning false if there were
// none.
func (h *fakeHost) fire() bool {
	h.mu.Lock()
	if len(h.delayed) == 0 {
		h.mu.Unlock()
		return false
	}
	fn := h.delayed[0]
	h.delayed = h.delayed[1:]
	h.mu.Unlock()
	fn()
	return true
}

func (h *fakeHost) fireExit() {
	h.mu.Lock()
	handlers := make([]func(), 0, len(h.handlers))
	for _, fn := range h.handlers {
		handlers = append(handlers, fn)
	}
	h.mu.Unlock()
	for _, fn := range handlers {
		fn()
	}
}

// fakeApp is an AppContext with a settable exiting flag.
type fakeApp struct {
	exiting bool
}

func (a *fakeApp) IsExiting() bool { return a.exiting }

// fakeCore is a Core that records calls, and runs CallSoon callbacks as a
// snapshot, like a real scheduler would.
type fakeCore struct {
	rec     *recorder
	hooks   Hooks
	running Hooks
	soon    []func()
	onRun   func() error
	runs    int
	stops   int
	resets  int
	closed  bool
}

func (c *fakeCore) RunReadyWorkNonBlocking() error {
	c.runs++
	c.rec.record("run")
	ready := c.soon
	c.soon = nil
	for _, fn := range ready {
		fn()
	}
	if c.onRun != nil {
		return c.onRun()
	}
	return nil
}

func (c *fakeCore) Stop() {
	c.stops++
	c.rec.record("stop")
}

func (c *fakeCore) CallSoon(fn func()) { c.soon = append(c.soon, fn) }

func (c *fakeCore) Hooks() Hooks { return c.hooks }

func (c *fakeCore) SetHooks(h Hooks) { c.hooks = h }

func (c *fakeCore) RunningHooks() Hooks { return c.running }

func (c *fakeCore) IsClosed() bool { return c.closed }

func (c *fakeCore) ResetStopping() { c.resets++ }

// originalHooks is the value a fakeCore starts with.
type originalHooks struct{ name string }

func newFakeCore(rec *recorder) *fakeCore {
	return &fakeCore{
		rec:     rec,
		hooks:   &originalHooks{name: "original"},
		running: &originalHooks{name: "running"},
	}
}

// newTestAdapter creates an adapter with its own guard, and a logger
// capturing debug and above.
func newTestAdapter(t *testing.T, core Core, opts ...Option) (*Adapter, *testEventWriter) {
	t.Helper()
	logger, writer := newTestLogger(logiface.LevelDebug)
	a, err := New(core, append([]Option{WithLogger(logger), WithGuard(&Guard{})}, opts...)...)
	require.NoError(t, err)
	return a, writer
}

var errTestBoom = errors.New("boom")
