package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/buildagent/buildagent/internal/event"
)

// eventMsg wraps a bus event delivered to a program.
type eventMsg struct {
	event event.Event
}

// Sender is the part of *tea.Program the bridge needs.
type Sender interface {
	Send(msg tea.Msg)
}

// Bridge forwards bus events to a running program as messages. Bus handlers
// run on the publisher's goroutine; Send hands them to the program's loop.
type Bridge struct {
	bus *event.Bus
	id  string
}

// NewBridge subscribes to every event on bus and forwards it to target.
func NewBridge(bus *event.Bus, target Sender) *Bridge {
	b := &Bridge{bus: bus}
	b.id = bus.SubscribeAll(func(e event.Event) {
		target.Send(eventMsg{event: e})
	})
	return b
}

// Close stops forwarding.
func (b *Bridge) Close() {
	b.bus.Unsubscribe(b.id)
}
