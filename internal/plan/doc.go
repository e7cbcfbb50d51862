// Package plan holds the implementation plan as the backend reports it:
// phases, their tasks, and the execution log entries produced while tasks run.
//
// The backend may return the same phase more than once across repeated
// fetches, and its periodic status poll lags behind the local execution
// engine. [Reconcile] folds a fresh fetch into the locally known list so that
// phases stay unique and ordered, and a task's locally known status is never
// overwritten by a stale poll. [Board] wraps that list for concurrent use by
// the engine, the poller and the UI.
package plan
