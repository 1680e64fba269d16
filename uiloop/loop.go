package uiloop

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"
	"github.com/joeycumines/logiface"

	hostloop "github.com/joeycumines/go-hostloop"
	"github.com/joeycumines/go-hostloop/internal/goroutineid"
)

// message is a unit of work for the UI thread.
type message struct {
	fn   func()
	done chan struct{} // non-nil for synchronous invokes
	quit bool
}

// exitHandler is a subscription to the application exit event.
type exitHandler struct {
	fn    func()
	token uint64
}

// Loop is a native-style UI message loop. It runs at most once.
type Loop struct {
	// Prevent copying
	_ [0]func()

	logger *logiface.Logger[logiface.Event]

	// FIFO of *message, guarded by mu
	mu     sync.Mutex
	queue  *queue.Queue
	notify chan struct{}

	// closed once RunUntilExit is done, after which nothing is processed
	done chan struct{}

	handlersMu sync.Mutex
	handlers   []exitHandler
	nextToken  uint64

	uiGoroutine atomic.Uint64
	running     atomic.Bool

	// UI thread only
	quit       bool
	modalDepth int
}

var _ hostloop.Host = (*Loop)(nil)

// New creates a new Loop.
func New(opts ...LoopOption) (*Loop, error) {
	cfg, err := resolveLoopOptions(opts)
	if err != nil {
		return nil, err
	}
	return &Loop{
		logger: cfg.logger,
		queue:  queue.New(),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}, nil
}

// RunUntilExit binds the calling goroutine as the UI thread, then processes
// messages until the loop quits, e.g. via [Application.Exit]. Before
// returning, it fires the application exit event, on the UI thread.
//
// If app is an [*Application], it is bound to this loop.
func (l *Loop) RunUntilExit(app hostloop.AppContext) error {
	select {
	case <-l.done:
		return ErrTerminated
	default:
	}
	if !l.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	l.uiGoroutine.Store(goroutineid.Current())
	defer l.uiGoroutine.Store(0)

	if a, ok := app.(*Application); ok {
		a.bind(l)
	}

	l.pump(func() bool { return l.quit })

	l.fireApplicationExit()

	l.mu.Lock()
	close(l.done)
	l.queue = queue.New()
	l.mu.Unlock()

	return nil
}

// Done is closed once RunUntilExit has returned.
func (l *Loop) Done() <-chan struct{} { return l.done }

// Quit asks the loop to exit, after the messages already queued.
func (l *Loop) Quit() {
	l.enqueue(&message{quit: true})
}

// PostDelayed calls continuation once, after delay, on a runtime timer
// goroutine.
func (l *Loop) PostDelayed(delay time.Duration, continuation func()) {
	time.AfterFunc(delay, continuation)
}

// Post queues action to run on the UI thread, without waiting for it.
// It returns false if the loop has terminated.
func (l *Loop) Post(action func()) bool {
	return l.enqueue(&message{fn: action})
}

// DispatchToUIThread runs action on the UI thread, returning once it has
// run. Called on the UI thread, action runs immediately. If the loop
// terminates before action runs, action is dropped, and the call returns.
func (l *Loop) DispatchToUIThread(action func()) {
	if l.OnUIThread() {
		l.execute(action)
		return
	}
	msg := &message{fn: action, done: make(chan struct{})}
	if !l.enqueue(msg) {
		return
	}
	select {
	case <-msg.done:
	case <-l.done:
	}
}

// RunModal shows a modal: it calls show, then pumps messages until the
// provided close function is called (from any goroutine), or the loop
// quits. It must be called on the UI thread.
func (l *Loop) RunModal(show func(close func())) error {
	if !l.OnUIThread() {
		return ErrNotUIThread
	}

	var closed bool
	l.modalDepth++
	defer func() { l.modalDepth-- }()

	show(func() {
		l.Post(func() { closed = true })
	})

	l.pump(func() bool { return closed || l.quit })
	return nil
}

// ModalDepth returns the number of nested modals currently running. It must
// be called on the UI thread.
func (l *Loop) ModalDepth() int { return l.modalDepth }

// OnUIThread reports whether the caller is running on the UI thread.
func (l *Loop) OnUIThread() bool {
	id := l.uiGoroutine.Load()
	return id != 0 && id == goroutineid.Current()
}

// SubscribeApplicationExit registers handler to be called when the loop
// exits, returning a token for UnsubscribeApplicationExit.
func (l *Loop) SubscribeApplicationExit(handler func()) uint64 {
	l.handlersMu.Lock()
	defer l.handlersMu.Unlock()
	l.nextToken++
	l.handlers = append(l.handlers, exitHandler{fn: handler, token: l.nextToken})
	return l.nextToken
}

// UnsubscribeApplicationExit removes a handler. Unknown tokens are ignored.
func (l *Loop) UnsubscribeApplicationExit(token uint64) {
	l.handlersMu.Lock()
	defer l.handlersMu.Unlock()
	for i, h := range l.handlers {
		if h.token == token {
			l.handlers = append(l.handlers[:i:i], l.handlers[i+1:]...)
			return
		}
	}
}

func (l *Loop) fireApplicationExit() {
	l.handlersMu.Lock()
	handlers := append([]exitHandler(nil), l.handlers...)
	l.handlersMu.Unlock()
	for _, h := range handlers {
		l.execute(h.fn)
	}
}

func (l *Loop) enqueue(msg *message) bool {
	l.mu.Lock()
	select {
	case <-l.done:
		l.mu.Unlock()
		return false
	default:
	}
	l.queue.Add(msg)
	l.mu.Unlock()
	select {
	case l.notify <- struct{}{}:
	default:
	}
	return true
}

func (l *Loop) next() *message {
	for {
		l.mu.Lock()
		if l.queue.Length() != 0 {
			msg := l.queue.Remove().(*message)
			l.mu.Unlock()
			return msg
		}
		l.mu.Unlock()
		<-l.notify
	}
}

// pump processes messages until done returns true.
func (l *Loop) pump(done func() bool) {
	for !done() {
		msg := l.next()
		if msg.quit {
			l.quit = true
			continue
		}
		l.execute(msg.fn)
		if msg.done != nil {
			close(msg.done)
		}
	}
}

// execute runs fn with panic recovery, as a native loop would report an
// unhandled exception then carry on.
func (l *Loop) execute(fn func()) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			l.logger.Err().
				Interface("panic", r).
				Log("uiloop: message panicked")
		}
	}()
	fn()
}
