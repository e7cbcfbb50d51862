package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "task.status", "execution.log")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event type identifiers
const (
	TypeTaskStatus        = "task.status"
	TypeExecutionLog      = "execution.log"
	TypeExecutionState    = "execution.state"
	TypeExecutionFinished = "execution.finished"
	TypeQuestionsRevealed = "questions.revealed"
	TypeChatMessage       = "chat.message"
	TypeBankReloaded      = "questions.bank_reloaded"
	TypeNotice            = "notice"
)

// baseEvent provides common fields for all events.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Execution Events
// -----------------------------------------------------------------------------

// TaskStatusEvent is emitted whenever the engine moves a task between statuses.
type TaskStatusEvent struct {
	baseEvent
	RunID    string
	TaskID   int
	TaskName string
	From     string
	To       string
}

// NewTaskStatusEvent creates a TaskStatusEvent.
func NewTaskStatusEvent(runID string, taskID int, taskName, from, to string) TaskStatusEvent {
	return TaskStatusEvent{
		baseEvent: newBaseEvent(TypeTaskStatus),
		RunID:     runID,
		TaskID:    taskID,
		TaskName:  taskName,
		From:      from,
		To:        to,
	}
}

// ExecutionLogEvent carries one appended execution log entry.
type ExecutionLogEvent struct {
	baseEvent
	RunID   string
	LogID   int
	TaskID  *int // nil for run-level entries
	LogType string
	Content string
}

// NewExecutionLogEvent creates an ExecutionLogEvent.
func NewExecutionLogEvent(runID string, logID int, taskID *int, logType, content string) ExecutionLogEvent {
	return ExecutionLogEvent{
		baseEvent: newBaseEvent(TypeExecutionLog),
		RunID:     runID,
		LogID:     logID,
		TaskID:    taskID,
		LogType:   logType,
		Content:   content,
	}
}

// Execution state transitions reported by ExecutionStateEvent.
const (
	StateStarted = "started"
	StatePaused  = "paused"
	StateResumed = "resumed"
	StateStopped = "stopped"
)

// ExecutionStateEvent is emitted when a run changes its running or paused flag.
type ExecutionStateEvent struct {
	baseEvent
	RunID   string
	State   string
	Running bool
	Paused  bool
}

// NewExecutionStateEvent creates an ExecutionStateEvent.
func NewExecutionStateEvent(runID, state string, running, paused bool) ExecutionStateEvent {
	return ExecutionStateEvent{
		baseEvent: newBaseEvent(TypeExecutionState),
		RunID:     runID,
		State:     state,
		Running:   running,
		Paused:    paused,
	}
}

// ExecutionFinishedEvent is emitted once per run when its scheduler exits.
type ExecutionFinishedEvent struct {
	baseEvent
	RunID     string
	Completed int
	Total     int
	Stopped   bool
	Err       error // set when the run was aborted, e.g. by a rejected start
}

// NewExecutionFinishedEvent creates an ExecutionFinishedEvent.
func NewExecutionFinishedEvent(runID string, completed, total int, stopped bool, err error) ExecutionFinishedEvent {
	return ExecutionFinishedEvent{
		baseEvent: newBaseEvent(TypeExecutionFinished),
		RunID:     runID,
		Completed: completed,
		Total:     total,
		Stopped:   stopped,
		Err:       err,
	}
}

// -----------------------------------------------------------------------------
// Question Events
// -----------------------------------------------------------------------------

// QuestionsRevealedEvent is emitted after each reveal batch.
type QuestionsRevealedEvent struct {
	baseEvent
	IDs     []string // ids made visible by this batch
	Visible int
	Total   int
	Done    bool
}

// NewQuestionsRevealedEvent creates a QuestionsRevealedEvent.
func NewQuestionsRevealedEvent(ids []string, visible, total int, done bool) QuestionsRevealedEvent {
	return QuestionsRevealedEvent{
		baseEvent: newBaseEvent(TypeQuestionsRevealed),
		IDs:       ids,
		Visible:   visible,
		Total:     total,
		Done:      done,
	}
}

// ChatMessageEvent is a line for the companion chat panel.
type ChatMessageEvent struct {
	baseEvent
	Sender  string
	Content string
}

// NewChatMessageEvent creates a ChatMessageEvent.
func NewChatMessageEvent(sender, content string) ChatMessageEvent {
	return ChatMessageEvent{
		baseEvent: newBaseEvent(TypeChatMessage),
		Sender:    sender,
		Content:   content,
	}
}

// BankReloadedEvent is emitted when a watched question bank is re-read.
type BankReloadedEvent struct {
	baseEvent
	Path  string
	Count int
	Err   error
}

// NewBankReloadedEvent creates a BankReloadedEvent.
func NewBankReloadedEvent(path string, count int, err error) BankReloadedEvent {
	return BankReloadedEvent{
		baseEvent: newBaseEvent(TypeBankReloaded),
		Path:      path,
		Count:     count,
		Err:       err,
	}
}

// -----------------------------------------------------------------------------
// Notifications
// -----------------------------------------------------------------------------

// Notice levels
const (
	NoticeInfo    = "info"
	NoticeSuccess = "success"
	NoticeWarning = "warning"
	NoticeError   = "error"
)

// NoticeEvent is a transient user notification.
type NoticeEvent struct {
	baseEvent
	Level   string
	Message string
	Err     error
}

// NewNoticeEvent creates a NoticeEvent.
func NewNoticeEvent(level, message string, err error) NoticeEvent {
	return NoticeEvent{
		baseEvent: newBaseEvent(TypeNotice),
		Level:     level,
		Message:   message,
		Err:       err,
	}
}
