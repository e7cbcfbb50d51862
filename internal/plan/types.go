package plan

import "time"

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskPending indicates the task has not started, or was reverted by a stop.
	TaskPending TaskStatus = "pending"

	// TaskInProgress indicates the task is being executed.
	TaskInProgress TaskStatus = "in_progress"

	// TaskCompleted indicates the task finished.
	TaskCompleted TaskStatus = "completed"

	// TaskFailed is only ever reported by the backend; local execution never produces it.
	TaskFailed TaskStatus = "failed"
)

// String returns the string representation of the task status.
func (s TaskStatus) String() string {
	return string(s)
}

// IsTerminal returns true if this status represents a final state.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskPending, TaskInProgress, TaskCompleted, TaskFailed:
		return true
	}
	return false
}

// Task is a unit of work with a status and an optional target file.
type Task struct {
	ID          int        `json:"id" yaml:"id"`
	TaskNumber  int        `json:"task_number,omitempty" yaml:"task_number,omitempty"`
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description" yaml:"description"`
	FilePath    *string    `json:"file_path" yaml:"file_path,omitempty"`
	Status      TaskStatus `json:"status" yaml:"status"`
}

// HasFile reports whether the task targets a file.
func (t Task) HasFile() bool {
	return t.FilePath != nil && *t.FilePath != ""
}

// File returns the target file path, or "" when there is none.
func (t Task) File() string {
	if t.FilePath == nil {
		return ""
	}
	return *t.FilePath
}

// Phase is a named group of tasks in the implementation plan.
type Phase struct {
	ID          int    `json:"id" yaml:"id"`
	PhaseNumber int    `json:"phase_number,omitempty" yaml:"phase_number,omitempty"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Status      string `json:"status,omitempty" yaml:"status,omitempty"`
	Tasks       []Task `json:"tasks" yaml:"tasks"`
}

// sortKey orders phases by phase number, falling back to id when the
// number is absent.
func (p Phase) sortKey() int {
	if p.PhaseNumber != 0 {
		return p.PhaseNumber
	}
	return p.ID
}

// clone returns a deep copy so callers can mutate tasks freely.
func (p Phase) clone() Phase {
	out := p
	out.Tasks = make([]Task, len(p.Tasks))
	copy(out.Tasks, p.Tasks)
	return out
}

// LogType classifies an execution log entry.
type LogType string

const (
	LogAgentMessage LogType = "agent_message"
	LogCodeChange   LogType = "code_change"
	LogError        LogType = "error"
	LogTestResult   LogType = "test_result"
)

// ExecutionLog is an append-only record of execution progress.
type ExecutionLog struct {
	ID        int       `json:"id" yaml:"id"`
	TaskID    *int      `json:"task_id" yaml:"task_id,omitempty"`
	LogType   LogType   `json:"log_type" yaml:"log_type"`
	Content   string    `json:"content" yaml:"content"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// StatusCounts summarizes how many tasks are in each status.
type StatusCounts struct {
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// Total returns the number of tasks counted.
func (c StatusCounts) Total() int {
	return c.Pending + c.InProgress + c.Completed + c.Failed
}

// CountTasks tallies task statuses across phases. Unknown statuses count as pending.
func CountTasks(phases []Phase) StatusCounts {
	var c StatusCounts
	for _, p := range phases {
		for _, t := range p.Tasks {
			switch t.Status {
			case TaskInProgress:
				c.InProgress++
			case TaskCompleted:
				c.Completed++
			case TaskFailed:
				c.Failed++
			default:
				c.Pending++
			}
		}
	}
	return c
}

// ExecutionStatus is the backend's view of a project's execution.
type ExecutionStatus struct {
	Running       bool         `json:"running"`
	CurrentTask   *int         `json:"current_task"`
	ProjectStatus string       `json:"project_status"`
	TaskStatuses  StatusCounts `json:"task_statuses"`
}
