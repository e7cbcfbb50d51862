package plan

import (
	"strconv"
	"sync"

	"github.com/buildagent/buildagent/internal/errors"
)

// Board is the locally rendered phase list shared by the execution engine,
// the backend poller and the UI. All methods are safe for concurrent use.
type Board struct {
	mu     sync.RWMutex
	phases []Phase
	index  map[int][2]int // taskID -> (phase index, task index)
}

// NewBoard creates a Board seeded with phases.
func NewBoard(phases []Phase) *Board {
	b := &Board{}
	b.Reconcile(phases)
	return b
}

// Reconcile merges a fetched phase list into the board and returns a copy of
// the result. See [Reconcile] for the merge rules.
func (b *Board) Reconcile(fetched []Phase) []Phase {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.phases = Reconcile(b.phases, fetched)
	b.reindex()
	return b.snapshot()
}

// reindex rebuilds the task lookup. Must be called with mu held.
func (b *Board) reindex() {
	b.index = make(map[int][2]int)
	for pi, p := range b.phases {
		for ti, t := range p.Tasks {
			if _, dup := b.index[t.ID]; !dup {
				b.index[t.ID] = [2]int{pi, ti}
			}
		}
	}
}

// snapshot deep-copies the phase list. Must be called with mu held.
func (b *Board) snapshot() []Phase {
	out := make([]Phase, len(b.phases))
	for i, p := range b.phases {
		out[i] = p.clone()
	}
	return out
}

// SetTaskStatus updates one task's status and returns the previous status.
func (b *Board) SetTaskStatus(taskID int, status TaskStatus) (TaskStatus, error) {
	if !status.Valid() {
		return "", errors.NewValidationError("unknown task status").WithField("status").WithValue(string(status))
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	loc, ok := b.index[taskID]
	if !ok {
		return "", errors.NewNotFoundError("task", strconv.Itoa(taskID))
	}
	task := &b.phases[loc[0]].Tasks[loc[1]]
	prev := task.Status
	task.Status = status
	return prev, nil
}

// Task returns a copy of the task with the given id.
func (b *Board) Task(taskID int) (Task, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	loc, ok := b.index[taskID]
	if !ok {
		return Task{}, false
	}
	return b.phases[loc[0]].Tasks[loc[1]], true
}

// Phases returns a copy of the current phase list.
func (b *Board) Phases() []Phase {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snapshot()
}

// PendingTasks returns the pending tasks in phase order, the order in which
// the execution engine schedules them.
func (b *Board) PendingTasks() []Task {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []Task
	for _, p := range b.phases {
		for _, t := range p.Tasks {
			if t.Status == TaskPending {
				out = append(out, t)
			}
		}
	}
	return out
}

// Counts tallies the task statuses currently on the board.
func (b *Board) Counts() StatusCounts {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return CountTasks(b.phases)
}

// FirstCompletedFile returns the file of the first completed task that has one.
func (b *Board) FirstCompletedFile() (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return FirstCompletedFile(b.phases)
}
