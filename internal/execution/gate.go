package execution

import (
	"context"
	"sync"
)

// pauseGate blocks task routines while a run is paused. The open channel is
// closed whenever the gate is open and replaced when it closes again.
type pauseGate struct {
	mu     sync.Mutex
	paused bool
	open   chan struct{}
}

func newPauseGate() *pauseGate {
	open := make(chan struct{})
	close(open)
	return &pauseGate{open: open}
}

// pause closes the gate. It reports false if the gate was already closed.
func (g *pauseGate) pause() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.paused {
		return false
	}
	g.paused = true
	g.open = make(chan struct{})
	return true
}

// resume opens the gate. It reports false if the gate was already open.
func (g *pauseGate) resume() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.paused {
		return false
	}
	g.paused = false
	close(g.open)
	return true
}

func (g *pauseGate) isPaused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused
}

// wait returns once the gate is open, or with ctx.Err() when ctx is done.
// A canceled ctx wins even when the gate is open.
func (g *pauseGate) wait(ctx context.Context) error {
	g.mu.Lock()
	open := g.open
	g.mu.Unlock()

	select {
	case <-open:
		return ctx.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}
