// Package execution runs the local task simulation that drives a project's
// implementation phase.
//
// An [Engine] takes the tasks that are pending when a run starts and moves
// them through pending, in_progress and completed with bounded concurrency.
// Each task emits a fixed script of log entries separated by randomized
// delays. Runs can be paused, resumed and stopped; a stop reverts every task
// still in flight to pending.
//
// The real backend is only told about the run. Its start call must succeed
// for the run to proceed, while pause, resume and stop commands are sent
// best-effort and a failure is reported as a notice without affecting local
// state.
//
// A [Poller] keeps a [plan.Board] in sync with the backend while a run is
// active, merging fetched phases so that local task status is never
// overwritten by a stale poll.
package execution
