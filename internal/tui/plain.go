package tui

import (
	"fmt"
	"io"
	"sync"

	"github.com/buildagent/buildagent/internal/event"
)

// LinePrinter renders bus events as plain text lines, for output that is
// not a terminal.
type LinePrinter struct {
	mu  sync.Mutex
	w   io.Writer
	bus *event.Bus
	ids []string
}

// NewLinePrinter subscribes to the events worth printing on bus.
func NewLinePrinter(w io.Writer, bus *event.Bus) *LinePrinter {
	p := &LinePrinter{w: w, bus: bus}
	for _, t := range []string{
		event.TypeExecutionLog,
		event.TypeTaskStatus,
		event.TypeExecutionFinished,
		event.TypeChatMessage,
		event.TypeBankReloaded,
		event.TypeNotice,
	} {
		p.ids = append(p.ids, bus.Subscribe(t, p.print))
	}
	return p
}

// Close unsubscribes the printer.
func (p *LinePrinter) Close() {
	for _, id := range p.ids {
		p.bus.Unsubscribe(id)
	}
}

func (p *LinePrinter) print(e event.Event) {
	line := FormatEvent(e)
	if line == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintln(p.w, line)
}

// FormatEvent returns the plain-text line for e, or "" for events that have
// no line of their own.
func FormatEvent(e event.Event) string {
	switch e := e.(type) {
	case event.ExecutionLogEvent:
		if e.TaskID != nil {
			return fmt.Sprintf("[task %d] %s", *e.TaskID, e.Content)
		}
		return e.Content
	case event.TaskStatusEvent:
		return fmt.Sprintf("[task %d] %s: %s -> %s", e.TaskID, e.TaskName, e.From, e.To)
	case event.ExecutionFinishedEvent:
		switch {
		case e.Err != nil:
			return fmt.Sprintf("run failed: %v", e.Err)
		case e.Stopped:
			return fmt.Sprintf("run stopped: %d/%d tasks completed", e.Completed, e.Total)
		default:
			return fmt.Sprintf("run completed: %d/%d tasks", e.Completed, e.Total)
		}
	case event.ChatMessageEvent:
		return e.Content
	case event.BankReloadedEvent:
		if e.Err != nil {
			return fmt.Sprintf("bank reload failed (%s): %v", e.Path, e.Err)
		}
		return fmt.Sprintf("bank reloaded (%s): %d questions", e.Path, e.Count)
	case event.NoticeEvent:
		return fmt.Sprintf("%s: %s", e.Level, e.Message)
	}
	return ""
}
