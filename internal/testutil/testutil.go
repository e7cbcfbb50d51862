// Package testutil provides testing utilities for buildagent tests.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/buildagent/buildagent/internal/event"
)

// WriteFile writes content to name inside dir and returns the full path.
// Parent directories are created as needed.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

// Recorder captures every event published on a bus.
type Recorder struct {
	mu     sync.Mutex
	events []event.Event
}

// NewRecorder subscribes a Recorder to all events on bus.
func NewRecorder(bus *event.Bus) *Recorder {
	r := &Recorder{}
	bus.SubscribeAll(func(e event.Event) {
		r.mu.Lock()
		r.events = append(r.events, e)
		r.mu.Unlock()
	})
	return r
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event.Event(nil), r.events...)
}

// OfType returns the recorded events with the given type, in order.
func (r *Recorder) OfType(eventType string) []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []event.Event
	for _, e := range r.events {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

// Count returns how many events of eventType were recorded.
func (r *Recorder) Count(eventType string) int {
	return len(r.OfType(eventType))
}

// Sleeper is an instant util.Sleeper replacement that records requested
// delays. It still honors cancellation.
type Sleeper struct {
	mu    sync.Mutex
	calls []time.Duration
	hook  func(n int)
}

// NewSleeper returns a Sleeper. hook, if non-nil, runs before each call
// returns with the 1-based call number.
func NewSleeper(hook func(n int)) *Sleeper {
	return &Sleeper{hook: hook}
}

// Sleep records d and returns immediately.
func (s *Sleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.calls = append(s.calls, d)
	n := len(s.calls)
	hook := s.hook
	s.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	return ctx.Err()
}

// Calls returns the recorded delays.
func (s *Sleeper) Calls() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.calls...)
}
