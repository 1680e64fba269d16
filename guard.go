package hostloop

import (
	"sync"
)

// Guard enforces that at most one adapter is running at a time. Adapters
// use [DefaultGuard] unless configured [WithGuard].
type Guard struct {
	mu    sync.Mutex
	owner uint64
}

// DefaultGuard is the process-wide guard.
var DefaultGuard = &Guard{}

// Owner returns the ID of the adapter holding the guard, or 0.
func (g *Guard) Owner() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.owner
}

// Reset forcibly releases the guard. It exists to re-initialize state
// between tests, and must not be used while an adapter is running.
func (g *Guard) Reset() {
	g.mu.Lock()
	g.owner = 0
	g.mu.Unlock()
}

func (g *Guard) acquire(id uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.owner != 0 {
		return false
	}
	g.owner = id
	return true
}

func (g *Guard) release(id uint64) {
	g.mu.Lock()
	if g.owner == id {
		g.owner = 0
	}
	g.mu.Unlock()
}
