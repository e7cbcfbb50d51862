// Package logging provides structured logging for buildagent.
//
// This package wraps go.uber.org/zap to provide JSON-formatted logs with
// context propagation (project, run, phase, component). The terminal is
// owned by the TUI while it runs, so logs go to a file under the configured
// log directory rather than to stderr.
//
// # Thread Safety
//
// All types in this package are safe for concurrent use. Child loggers
// created via With* methods share the underlying core and file.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger("/path/to/logs", "INFO")
//	if err != nil { ... }
//	defer logger.Close()
//
//	runLog := logger.WithProject(7).WithRun(runID)
//	runLog.Info("batch admitted", "task_ids", ids)
//
// # Testing
//
// [NewObserved] returns a logger backed by zaptest/observer so tests can
// assert on emitted entries without touching the filesystem.
package logging
