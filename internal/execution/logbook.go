package execution

import (
	"slices"
	"sync"
	"time"

	"github.com/buildagent/buildagent/internal/plan"
)

// LogBook is the append-only log of one run. Entry ids increase
// monotonically from 1.
type LogBook struct {
	mu      sync.RWMutex
	entries []plan.ExecutionLog
	now     func() time.Time
}

// NewLogBook creates an empty LogBook.
func NewLogBook() *LogBook {
	return &LogBook{now: time.Now}
}

// Append records an entry and returns it. taskID is nil for run-level entries.
func (b *LogBook) Append(taskID *int, logType plan.LogType, content string) plan.ExecutionLog {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry := plan.ExecutionLog{
		ID:        len(b.entries) + 1,
		LogType:   logType,
		Content:   content,
		CreatedAt: b.now(),
	}
	if taskID != nil {
		id := *taskID
		entry.TaskID = &id
	}
	b.entries = append(b.entries, entry)
	return detach(entry)
}

// All returns every entry in append order.
func (b *LogBook) All() []plan.ExecutionLog {
	return b.Filter(LogFilter{})
}

// Len returns the number of entries.
func (b *LogBook) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// LogFilter narrows a log listing. Zero fields match everything.
type LogFilter struct {
	TaskID *int
	Types  []plan.LogType
}

// Matches reports whether entry passes the filter.
func (f LogFilter) Matches(entry plan.ExecutionLog) bool {
	if f.TaskID != nil && (entry.TaskID == nil || *entry.TaskID != *f.TaskID) {
		return false
	}
	if len(f.Types) > 0 && !slices.Contains(f.Types, entry.LogType) {
		return false
	}
	return true
}

// Filter returns the entries matching f, in append order.
func (b *LogBook) Filter(f LogFilter) []plan.ExecutionLog {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []plan.ExecutionLog
	for _, e := range b.entries {
		if f.Matches(e) {
			out = append(out, detach(e))
		}
	}
	return out
}

// detach copies the task id so callers cannot reach stored entries.
func detach(e plan.ExecutionLog) plan.ExecutionLog {
	if e.TaskID != nil {
		id := *e.TaskID
		e.TaskID = &id
	}
	return e
}

// ForTask returns the entries for one task.
func (b *LogBook) ForTask(taskID int) []plan.ExecutionLog {
	return b.Filter(LogFilter{TaskID: &taskID})
}
