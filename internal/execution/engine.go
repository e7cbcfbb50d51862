package execution

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/buildagent/buildagent/internal/config"
	"github.com/buildagent/buildagent/internal/errors"
	"github.com/buildagent/buildagent/internal/event"
	"github.com/buildagent/buildagent/internal/logging"
	"github.com/buildagent/buildagent/internal/plan"
	"github.com/buildagent/buildagent/internal/util"
)

// Engine schedules simulated task execution. One Engine owns at most one
// active run at a time; all run state is guarded by mu.
type Engine struct {
	opts    Options
	backend Backend
	sink    StatusSink
	bus     *event.Bus
	logger  *logging.Logger
	sleep   util.Sleeper
	randN   func(n int64) int64

	mu  sync.Mutex
	cur *run
}

// run is the state of one execution session.
type run struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	logger *logging.Logger
	gate   *pauseGate
	logs   *LogBook

	queue     []plan.Task
	next      int
	current   map[int]plan.Task
	status    map[int]plan.TaskStatus
	completed int
	running   bool
	stopped   bool
	err       error
	done      chan struct{}
}

// RunState is a point-in-time view of the current run.
type RunState struct {
	RunID     string
	Running   bool
	Paused    bool
	Stopped   bool
	Total     int
	Completed int
	Current   []int // ids of tasks in progress, ascending
	Next      int   // index of the next task to admit
}

// NewEngine creates an Engine. backend, sink, bus and logger may be nil.
func NewEngine(opts Options, backend Backend, sink StatusSink, bus *event.Bus, logger *logging.Logger) *Engine {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	opts.MaxConcurrent = min(opts.MaxConcurrent, config.MaxConcurrentLimit)
	if backend == nil {
		backend = NopBackend{}
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Engine{
		opts:    opts,
		backend: backend,
		sink:    sink,
		bus:     bus,
		logger:  logger.WithPhase("execution"),
		sleep:   util.Sleep,
		randN:   rand.Int64N,
	}
}

// SetSleeper replaces the delay function, for tests.
func (e *Engine) SetSleeper(s util.Sleeper) {
	e.sleep = s
}

// SetRand replaces the source of step jitter, for tests. f must return a
// value in [0, n).
func (e *Engine) SetRand(f func(n int64) int64) {
	e.randN = f
}

// Start begins a run over the tasks that are pending. It returns immediately;
// the run proceeds in the background until it completes, Stop is called or
// ctx is canceled. Tasks in any other status are ignored and tasks cannot be
// added to a run once it has started.
func (e *Engine) Start(ctx context.Context, tasks []plan.Task) error {
	var queue []plan.Task
	for _, t := range tasks {
		if t.Status == plan.TaskPending {
			queue = append(queue, t)
		}
	}

	e.mu.Lock()
	if e.cur != nil && e.cur.running {
		id := e.cur.id
		e.mu.Unlock()
		return errors.NewExecutionError("cannot start", errors.ErrRunInProgress).WithRunID(id)
	}
	if len(queue) == 0 {
		e.mu.Unlock()
		return errors.ErrNoPendingTasks
	}

	runCtx, cancel := context.WithCancel(ctx)
	r := &run{
		id:      uuid.NewString(),
		ctx:     runCtx,
		cancel:  cancel,
		gate:    newPauseGate(),
		logs:    NewLogBook(),
		queue:   queue,
		current: make(map[int]plan.Task),
		status:  make(map[int]plan.TaskStatus, len(queue)),
		running: true,
		done:    make(chan struct{}),
	}
	r.logger = e.logger.WithRun(r.id)
	for _, t := range queue {
		r.status[t.ID] = plan.TaskPending
	}
	e.cur = r

	events := []event.Event{
		event.NewExecutionStateEvent(r.id, event.StateStarted, true, false),
		e.appendLocked(r, nil, plan.LogAgentMessage, LogRunStarting),
		e.appendLocked(r, nil, plan.LogAgentMessage, initializingLine(len(queue))),
	}
	e.mu.Unlock()

	r.logger.Info("execution started", "tasks", len(queue), "max_concurrent", e.opts.MaxConcurrent)
	e.publish(events...)

	go e.loop(r)
	return nil
}

// loop is the scheduler for one run.
func (e *Engine) loop(r *run) {
	defer close(r.done)
	defer r.cancel()

	if err := e.sleep(r.ctx, e.opts.StartupDelay); err != nil {
		e.finish(r)
		return
	}

	if err := e.backend.Start(r.ctx); err != nil {
		if r.ctx.Err() != nil {
			e.finish(r)
			return
		}
		e.abort(r, err)
		return
	}

	for {
		if err := r.gate.wait(r.ctx); err != nil {
			break
		}

		batch := e.admit(r)
		if len(batch) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(r.ctx)
		g.SetLimit(e.opts.MaxConcurrent)
		for _, t := range batch {
			g.Go(func() error {
				return e.executeTask(gctx, r, t)
			})
		}
		_ = g.Wait()

		if err := r.gate.wait(r.ctx); err != nil {
			break
		}
		if err := e.sleep(r.ctx, e.opts.BatchDelay); err != nil {
			break
		}
	}

	e.finish(r)
}

// admit takes the next batch off the queue.
func (e *Engine) admit(r *run) []plan.Task {
	e.mu.Lock()
	defer e.mu.Unlock()

	if r.stopped {
		return nil
	}
	var batch []plan.Task
	for len(batch) < e.opts.MaxConcurrent &&
		r.next < len(r.queue) &&
		len(r.current)+len(batch) < e.opts.MaxConcurrent {
		batch = append(batch, r.queue[r.next])
		r.next++
	}
	return batch
}

// executeTask plays one task's script. It returns errors.ErrCanceled when
// the run is stopped before the task completes.
func (e *Engine) executeTask(ctx context.Context, r *run, t plan.Task) error {
	e.mu.Lock()
	if r.stopped {
		e.mu.Unlock()
		return errors.ErrCanceled
	}
	r.current[t.ID] = t
	ev := e.setStatusLocked(r, t, plan.TaskInProgress)
	e.mu.Unlock()
	e.publish(ev)

	taskID := t.ID
	for _, step := range TaskScript(t) {
		if err := e.pace(ctx, r, e.stepDelay()); err != nil {
			return e.abandon(r, t)
		}

		e.mu.Lock()
		if r.stopped {
			e.mu.Unlock()
			return e.abandon(r, t)
		}
		ev := e.appendLocked(r, &taskID, step.Type, step.Content)
		e.mu.Unlock()
		e.publish(ev)
	}

	if err := r.gate.wait(ctx); err != nil {
		return e.abandon(r, t)
	}
	if err := e.sleep(ctx, e.opts.CompletionDelay); err != nil {
		return e.abandon(r, t)
	}

	e.mu.Lock()
	if r.stopped {
		e.mu.Unlock()
		return e.abandon(r, t)
	}
	delete(r.current, t.ID)
	r.completed++
	ev = e.setStatusLocked(r, t, plan.TaskCompleted)
	e.mu.Unlock()
	e.publish(ev)
	return nil
}

// pace waits out a step delay, holding at the pause gate before and after.
func (e *Engine) pace(ctx context.Context, r *run, d time.Duration) error {
	if err := r.gate.wait(ctx); err != nil {
		return err
	}
	if err := e.sleep(ctx, d); err != nil {
		return err
	}
	return r.gate.wait(ctx)
}

// abandon reverts an unfinished task to pending.
func (e *Engine) abandon(r *run, t plan.Task) error {
	e.mu.Lock()
	delete(r.current, t.ID)
	var ev event.Event
	if r.status[t.ID] == plan.TaskInProgress {
		ev = e.setStatusLocked(r, t, plan.TaskPending)
	}
	e.mu.Unlock()

	if ev != nil {
		e.publish(ev)
	}
	return errors.ErrCanceled
}

func (e *Engine) stepDelay() time.Duration {
	span := e.opts.StepDelayMax - e.opts.StepDelayMin
	if span <= 0 {
		return e.opts.StepDelayMin
	}
	return e.opts.StepDelayMin + time.Duration(e.randN(int64(span)))
}

// finish closes out a run that left the scheduling loop.
func (e *Engine) finish(r *run) {
	e.mu.Lock()
	var events []event.Event
	stopped := r.stopped
	switch {
	case !stopped && r.ctx.Err() != nil:
		events = e.haltLocked(r, LogRunCanceled)
		stopped = true
	case !stopped:
		r.running = false
		events = append(events, e.appendLocked(r, nil, plan.LogAgentMessage, LogRunCompleted))
	}
	completed, total := r.completed, len(r.queue)
	e.mu.Unlock()

	e.publish(events...)
	if stopped {
		r.logger.Info("execution stopped", "completed", completed, "total", total)
	} else {
		r.logger.Info("execution completed", "completed", completed, "total", total)
	}
	e.publish(event.NewExecutionFinishedEvent(r.id, completed, total, stopped, nil))
}

// abort ends a run whose backend start call failed.
func (e *Engine) abort(r *run, cause error) {
	err := errors.NewExecutionError("failed to start execution", errors.Join(errors.ErrStartRejected, cause)).
		WithRunID(r.id)

	e.mu.Lock()
	r.running = false
	r.stopped = true
	r.err = err
	ev := e.appendLocked(r, nil, plan.LogError, "❌ Failed to start execution: "+errors.UserMessage(cause))
	total := len(r.queue)
	e.mu.Unlock()

	r.logger.Error("execution start rejected", "error", cause)
	e.publish(
		ev,
		event.NewNoticeEvent(noticeLevel(err), "Failed to start execution", err),
		event.NewExecutionFinishedEvent(r.id, 0, total, false, err),
	)
}

// Pause holds every task at its next pause point. Pausing a paused run is a
// no-op. The backend is notified best-effort.
func (e *Engine) Pause(ctx context.Context) error {
	e.mu.Lock()
	r := e.cur
	if r == nil || !r.running {
		e.mu.Unlock()
		return errors.NewExecutionError("cannot pause", errors.ErrRunNotActive)
	}
	changed := r.gate.pause()
	e.mu.Unlock()

	if !changed {
		return nil
	}
	r.logger.Info("execution paused")
	e.publish(event.NewExecutionStateEvent(r.id, event.StatePaused, true, true))
	e.command(ctx, r, CommandPause)
	return nil
}

// Resume releases a paused run. Tasks continue exactly where they stopped.
func (e *Engine) Resume(ctx context.Context) error {
	e.mu.Lock()
	r := e.cur
	if r == nil || !r.running {
		e.mu.Unlock()
		return errors.NewExecutionError("cannot resume", errors.ErrRunNotActive)
	}
	changed := r.gate.resume()
	e.mu.Unlock()

	if !changed {
		return nil
	}
	r.logger.Info("execution resumed")
	e.publish(event.NewExecutionStateEvent(r.id, event.StateResumed, true, false))
	e.command(ctx, r, CommandPlay)
	return nil
}

// Stop ends the run. Every task in progress is reverted to pending before
// Stop returns, and no task completes or logs afterwards.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	r := e.cur
	if r == nil || !r.running {
		e.mu.Unlock()
		return errors.NewExecutionError("cannot stop", errors.ErrRunNotActive)
	}
	events := e.haltLocked(r, LogRunStopped)
	e.mu.Unlock()

	r.logger.Info("execution stop requested")
	e.publish(events...)
	e.command(ctx, r, CommandStop)
	return nil
}

// haltLocked marks r stopped and reverts in-flight tasks. It returns the
// events to publish once mu is released. Must be called with mu held.
func (e *Engine) haltLocked(r *run, line string) []event.Event {
	r.stopped = true
	r.running = false
	r.cancel()
	r.gate.resume()

	events := []event.Event{
		event.NewExecutionStateEvent(r.id, event.StateStopped, false, false),
		e.appendLocked(r, nil, plan.LogAgentMessage, line),
	}

	ids := make([]int, 0, len(r.current))
	for id := range r.current {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		events = append(events, e.setStatusLocked(r, r.current[id], plan.TaskPending))
		delete(r.current, id)
	}
	return events
}

// setStatusLocked records a task transition and mirrors it to the sink.
// Must be called with mu held.
func (e *Engine) setStatusLocked(r *run, t plan.Task, to plan.TaskStatus) event.Event {
	from := r.status[t.ID]
	r.status[t.ID] = to
	if e.sink != nil {
		if _, err := e.sink.SetTaskStatus(t.ID, to); err != nil {
			rejected := errors.NewExecutionError("status update rejected", err).
				WithRunID(r.id).
				WithTaskID(t.ID).
				WithSeverity(errors.SeverityDebug)
			r.logger.Debug("status sink rejected update", "task_id", t.ID, "error", rejected)
		}
	}
	r.logger.Debug("task status changed", "task_id", t.ID, "task", t.Name, "from", from, "to", to)
	return event.NewTaskStatusEvent(r.id, t.ID, t.Name, string(from), string(to))
}

// appendLocked adds a log entry to the run. Must be called with mu held.
func (e *Engine) appendLocked(r *run, taskID *int, logType plan.LogType, content string) event.Event {
	entry := r.logs.Append(taskID, logType, content)
	return event.NewExecutionLogEvent(r.id, entry.ID, entry.TaskID, string(entry.LogType), entry.Content)
}

// command sends cmd to the backend. Failures become a warning notice.
func (e *Engine) command(ctx context.Context, r *run, cmd string) {
	if err := e.backend.Command(ctx, cmd); err != nil {
		failed := errors.NewExecutionError("backend "+cmd+" failed", err).
			WithRunID(r.id).
			WithSeverity(errors.SeverityWarning)
		r.logger.Warn("backend command failed", "command", cmd, "error", err)
		e.publish(event.NewNoticeEvent(noticeLevel(failed),
			fmt.Sprintf("Failed to %s: %s", commandVerb(cmd), errors.UserMessage(err)), failed))
	}
}

// noticeLevel maps an error's severity onto a notice level.
func noticeLevel(err error) string {
	switch errors.GetSeverity(err) {
	case errors.SeverityDebug, errors.SeverityInfo:
		return event.NoticeInfo
	case errors.SeverityWarning:
		return event.NoticeWarning
	default:
		return event.NoticeError
	}
}

func commandVerb(cmd string) string {
	if cmd == CommandPlay {
		return "resume"
	}
	return cmd
}

func (e *Engine) publish(events ...event.Event) {
	if e.bus == nil {
		return
	}
	for _, ev := range events {
		e.bus.Publish(ev)
	}
}

// Wait blocks until the current run's scheduler exits. It returns the error
// that aborted the run, if any.
func (e *Engine) Wait() error {
	e.mu.Lock()
	r := e.cur
	e.mu.Unlock()
	if r == nil {
		return nil
	}
	<-r.done
	return r.err
}

// Running reports whether a run is active. A run is active from Start until
// it completes, is stopped or fails to start.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cur != nil && e.cur.running
}

// Paused reports whether the active run is paused.
func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cur != nil && e.cur.running && e.cur.gate.isPaused()
}

// RunID returns the id of the current or most recent run.
func (e *Engine) RunID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cur == nil {
		return ""
	}
	return e.cur.id
}

// Logs returns the current run's log entries.
func (e *Engine) Logs() []plan.ExecutionLog {
	return e.FilterLogs(LogFilter{})
}

// FilterLogs returns the current run's log entries matching f.
func (e *Engine) FilterLogs(f LogFilter) []plan.ExecutionLog {
	e.mu.Lock()
	r := e.cur
	e.mu.Unlock()
	if r == nil {
		return nil
	}
	return r.logs.Filter(f)
}

// State returns a snapshot of the current run.
func (e *Engine) State() RunState {
	e.mu.Lock()
	defer e.mu.Unlock()

	r := e.cur
	if r == nil {
		return RunState{}
	}
	current := make([]int, 0, len(r.current))
	for id := range r.current {
		current = append(current, id)
	}
	slices.Sort(current)
	return RunState{
		RunID:     r.id,
		Running:   r.running,
		Paused:    r.running && r.gate.isPaused(),
		Stopped:   r.stopped,
		Total:     len(r.queue),
		Completed: r.completed,
		Current:   current,
		Next:      r.next,
	}
}
