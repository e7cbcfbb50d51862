// Package event provides a pub-sub event bus for decoupled communication
// between the execution engine, the question pipeline and the terminal UI.
//
// # Main Types
//
//   - [Event]: Interface that all events must implement, providing EventType() and Timestamp()
//   - [Bus]: Synchronous pub-sub event dispatcher with thread-safe operations
//   - [Handler]: Function type for event handlers (func(Event))
//
// # Event Categories
//
// Execution:
//   - [TaskStatusEvent]: a task moved between pending, in_progress and completed
//   - [ExecutionLogEvent]: a log entry was appended to the run's log book
//   - [ExecutionStateEvent]: a run started, paused, resumed or stopped
//   - [ExecutionFinishedEvent]: a run ended, naturally or by stop
//
// Questions:
//   - [QuestionsRevealedEvent]: a batch of questions became visible
//   - [ChatMessageEvent]: a companion chat line produced during reveal
//   - [BankReloadedEvent]: the question bank file changed on disk
//
// Notifications:
//   - [NoticeEvent]: a transient, non-fatal message for the user
//
// # Usage
//
//	bus := event.NewBus(logger)
//	bus.Subscribe(event.TypeTaskStatus, func(e event.Event) {
//	    ev := e.(event.TaskStatusEvent)
//	    ...
//	})
//	bus.Publish(event.NewNoticeEvent(event.NoticeWarning, "pause not acknowledged", err))
//
// # Thread Safety
//
// Publish may be called from any goroutine. Handlers run synchronously on the
// publishing goroutine and must not block.
package event
