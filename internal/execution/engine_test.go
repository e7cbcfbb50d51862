package execution

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildagent/buildagent/internal/errors"
	"github.com/buildagent/buildagent/internal/event"
	"github.com/buildagent/buildagent/internal/logging"
	"github.com/buildagent/buildagent/internal/plan"
	"github.com/buildagent/buildagent/internal/testutil"
)

// Distinct delays let test sleepers tell the pause points apart.
const (
	testStartup    = 1 * time.Nanosecond
	testBatch      = 2 * time.Nanosecond
	testCompletion = 3 * time.Nanosecond
	testStep       = 10 * time.Nanosecond
)

func testOptions() Options {
	return Options{
		MaxConcurrent:   2,
		StepDelayMin:    testStep,
		StepDelayMax:    testStep,
		CompletionDelay: testCompletion,
		BatchDelay:      testBatch,
		StartupDelay:    testStartup,
	}
}

type fakeBackend struct {
	mu       sync.Mutex
	startErr error
	cmdErr   error
	starts   int
	commands []string
}

func (f *fakeBackend) Start(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	return f.startErr
}

func (f *fakeBackend) Command(_ context.Context, cmd string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, cmd)
	return f.cmdErr
}

func (f *fakeBackend) Commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commands...)
}

// countingSink forwards to a Board and tracks the peak number of tasks in
// progress. The engine calls it while holding its lock, so the count is exact.
type countingSink struct {
	board *plan.Board

	mu         sync.Mutex
	inProgress map[int]bool
	peak       int
}

func newCountingSink(board *plan.Board) *countingSink {
	return &countingSink{board: board, inProgress: make(map[int]bool)}
}

func (s *countingSink) SetTaskStatus(id int, status plan.TaskStatus) (plan.TaskStatus, error) {
	s.mu.Lock()
	if status == plan.TaskInProgress {
		s.inProgress[id] = true
	} else {
		delete(s.inProgress, id)
	}
	s.peak = max(s.peak, len(s.inProgress))
	s.mu.Unlock()
	return s.board.SetTaskStatus(id, status)
}

func (s *countingSink) Peak() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peak
}

func testPhases(n int, withFiles bool) []plan.Phase {
	p := plan.Phase{ID: 1, PhaseNumber: 1, Name: "Core"}
	for i := 1; i <= n; i++ {
		t := plan.Task{ID: i, Name: fmt.Sprintf("Task %d", i), Status: plan.TaskPending}
		if withFiles {
			path := fmt.Sprintf("src/file%d.go", i)
			t.FilePath = &path
		}
		p.Tasks = append(p.Tasks, t)
	}
	return []plan.Phase{p}
}

// blockingSleeper returns instantly except for step delays, which signal on
// stepping and then block until the run is canceled.
func blockingSleeper(stepping chan<- int) func(context.Context, time.Duration) error {
	return func(ctx context.Context, d time.Duration) error {
		if d == testStep {
			select {
			case stepping <- 1:
			default:
			}
			<-ctx.Done()
		}
		return ctx.Err()
	}
}

func waitDone(t *testing.T, e *Engine) error {
	t.Helper()
	errc := make(chan error, 1)
	go func() { errc <- e.Wait() }()
	select {
	case err := <-errc:
		return err
	case <-time.After(10 * time.Second):
		t.Fatal("run did not finish")
		return nil
	}
}

func contents(logs []plan.ExecutionLog) []string {
	out := make([]string, len(logs))
	for i, l := range logs {
		out[i] = l.Content
	}
	return out
}

func TestTaskScript(t *testing.T) {
	t.Run("without file", func(t *testing.T) {
		steps := TaskScript(plan.Task{Name: "Build API"})
		require.Len(t, steps, 4)
		assert.Equal(t, "🚀 Starting task: Build API", steps[0].Content)
		assert.Equal(t, "📋 Analyzing requirements for: Build API", steps[1].Content)
		assert.Equal(t, "💻 Generating code implementation...", steps[2].Content)
		assert.Equal(t, "✨ Task completed: Build API", steps[3].Content)
		for _, s := range steps {
			assert.Equal(t, plan.LogAgentMessage, s.Type)
		}
	})

	t.Run("with file", func(t *testing.T) {
		path := "svc/score.go"
		steps := TaskScript(plan.Task{Name: "Score", FilePath: &path})
		require.Len(t, steps, 7)
		assert.Equal(t, "📁 Preparing file: svc/score.go", steps[3].Content)
		assert.Equal(t, "✍️ Writing code to svc/score.go...", steps[4].Content)
		assert.Equal(t, Step{plan.LogCodeChange, "✅ Code written successfully to svc/score.go"}, steps[5])
	})

	t.Run("empty file path counts as none", func(t *testing.T) {
		empty := ""
		assert.Len(t, TaskScript(plan.Task{Name: "x", FilePath: &empty}), 4)
	})
}

func TestEngine_FullRun(t *testing.T) {
	bus := event.NewBus(nil)
	rec := testutil.NewRecorder(bus)
	board := plan.NewBoard(testPhases(4, false))
	sink := newCountingSink(board)
	backend := &fakeBackend{}
	logger, logs := logging.NewObserved(logging.LevelDebug)

	e := NewEngine(testOptions(), backend, sink, bus, logger)
	e.SetSleeper(testutil.NewSleeper(nil).Sleep)

	require.NoError(t, e.Start(context.Background(), board.PendingTasks()))
	require.NoError(t, waitDone(t, e))

	assert.False(t, e.Running())
	assert.Equal(t, plan.StatusCounts{Completed: 4}, board.Counts())
	assert.LessOrEqual(t, sink.Peak(), 2)
	assert.Equal(t, 1, backend.starts)

	all := e.Logs()
	require.Len(t, all, 2+4*4+1)
	assert.Equal(t, LogRunStarting, all[0].Content)
	assert.Equal(t, "📋 Initializing pipeline (4 tasks)", all[1].Content)
	assert.Equal(t, LogRunCompleted, all[len(all)-1].Content)
	for i, l := range all {
		assert.Equal(t, i+1, l.ID, "log ids are sequential")
	}

	for id := 1; id <= 4; id++ {
		task, _ := board.Task(id)
		assert.Equal(t, contents(stepsAsLogs(TaskScript(task))), contents(e.FilterLogs(LogFilter{TaskID: &id})))
	}

	finished := rec.OfType(event.TypeExecutionFinished)
	require.Len(t, finished, 1)
	fe := finished[0].(event.ExecutionFinishedEvent)
	assert.Equal(t, 4, fe.Completed)
	assert.Equal(t, 4, fe.Total)
	assert.False(t, fe.Stopped)
	assert.NoError(t, fe.Err)
	assert.Equal(t, e.RunID(), fe.RunID)

	assert.Equal(t, 8, rec.Count(event.TypeTaskStatus), "each task goes in_progress then completed")
	assert.Equal(t, 1, logs.FilterMessage("execution started").Len())
	assert.Equal(t, 1, logs.FilterMessage("execution completed").Len())
}

func stepsAsLogs(steps []Step) []plan.ExecutionLog {
	out := make([]plan.ExecutionLog, len(steps))
	for i, s := range steps {
		out[i] = plan.ExecutionLog{LogType: s.Type, Content: s.Content}
	}
	return out
}

func TestEngine_BatchesRespectOrderAndBound(t *testing.T) {
	board := plan.NewBoard(testPhases(5, true))
	sink := newCountingSink(board)

	var mu sync.Mutex
	var started []int
	bus := event.NewBus(nil)
	bus.Subscribe(event.TypeTaskStatus, func(ev event.Event) {
		ts := ev.(event.TaskStatusEvent)
		if ts.To == string(plan.TaskInProgress) {
			mu.Lock()
			started = append(started, ts.TaskID)
			mu.Unlock()
		}
	})

	e := NewEngine(testOptions(), nil, sink, bus, nil)
	e.SetSleeper(testutil.NewSleeper(nil).Sleep)
	require.NoError(t, e.Start(context.Background(), board.PendingTasks()))
	require.NoError(t, waitDone(t, e))

	assert.LessOrEqual(t, sink.Peak(), 2)
	assert.Equal(t, plan.StatusCounts{Completed: 5}, board.Counts())

	// Batches are admitted in queue order: {1,2}, {3,4}, {5}.
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, started, 5)
	assert.ElementsMatch(t, []int{1, 2}, started[:2])
	assert.ElementsMatch(t, []int{3, 4}, started[2:4])
	assert.Equal(t, 5, started[4])
}

func TestEngine_ConcurrencyCappedAtLimit(t *testing.T) {
	board := plan.NewBoard(testPhases(6, false))

	opts := testOptions()
	opts.MaxConcurrent = 5
	e := NewEngine(opts, nil, board, nil, nil)
	stepping := make(chan int, 6)
	e.SetSleeper(blockingSleeper(stepping))

	require.NoError(t, e.Start(context.Background(), board.PendingTasks()))
	<-stepping
	<-stepping

	assert.Equal(t, []int{1, 2}, e.State().Current)
	assert.Equal(t, 2, board.Counts().InProgress)

	require.NoError(t, e.Stop(context.Background()))
	require.NoError(t, waitDone(t, e))
	assert.Empty(t, stepping, "no third task was admitted")
}

func TestEngine_OnlyPendingTasksAreQueued(t *testing.T) {
	tasks := []plan.Task{
		{ID: 1, Name: "done", Status: plan.TaskCompleted},
		{ID: 2, Name: "todo", Status: plan.TaskPending},
		{ID: 3, Name: "broken", Status: plan.TaskFailed},
	}
	e := NewEngine(testOptions(), nil, nil, nil, nil)
	e.SetSleeper(testutil.NewSleeper(nil).Sleep)

	require.NoError(t, e.Start(context.Background(), tasks))
	require.NoError(t, waitDone(t, e))

	assert.Equal(t, "📋 Initializing pipeline (1 tasks)", e.Logs()[1].Content)
	st := e.State()
	assert.Equal(t, 1, st.Total)
	assert.Equal(t, 1, st.Completed)
}

func TestEngine_StartGuards(t *testing.T) {
	e := NewEngine(testOptions(), nil, nil, nil, nil)

	err := e.Start(context.Background(), []plan.Task{{ID: 1, Status: plan.TaskCompleted}})
	assert.ErrorIs(t, err, errors.ErrNoPendingTasks)
	assert.False(t, e.Running())

	stepping := make(chan int, 1)
	e.SetSleeper(blockingSleeper(stepping))
	tasks := testPhases(2, false)[0].Tasks
	require.NoError(t, e.Start(context.Background(), tasks))
	<-stepping

	err = e.Start(context.Background(), tasks)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrRunInProgress))
	var execErr *errors.ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, e.RunID(), execErr.RunID)

	require.NoError(t, e.Stop(context.Background()))
	require.NoError(t, waitDone(t, e))

	// A stopped engine accepts a new run with a new id.
	first := e.RunID()
	e.SetSleeper(testutil.NewSleeper(nil).Sleep)
	require.NoError(t, e.Start(context.Background(), tasks))
	require.NoError(t, waitDone(t, e))
	assert.NotEqual(t, first, e.RunID())
}

func TestEngine_StopRevertsInFlightTasks(t *testing.T) {
	bus := event.NewBus(nil)
	rec := testutil.NewRecorder(bus)
	board := plan.NewBoard(testPhases(4, true))
	backend := &fakeBackend{}

	e := NewEngine(testOptions(), backend, board, bus, nil)
	stepping := make(chan int, 2)
	e.SetSleeper(blockingSleeper(stepping))

	require.NoError(t, e.Start(context.Background(), board.PendingTasks()))
	<-stepping
	<-stepping

	assert.Equal(t, 2, board.Counts().InProgress)
	assert.Equal(t, []int{1, 2}, e.State().Current)

	require.NoError(t, e.Stop(context.Background()))

	// Reverted synchronously, before the task routines even wake up.
	assert.Equal(t, plan.StatusCounts{Pending: 4}, board.Counts())
	assert.False(t, e.Running())
	assert.Empty(t, e.State().Current)

	require.NoError(t, waitDone(t, e))

	assert.Equal(t, []string{
		LogRunStarting,
		"📋 Initializing pipeline (4 tasks)",
		LogRunStopped,
	}, contents(e.Logs()), "no task logs after stop")
	assert.Equal(t, plan.StatusCounts{Pending: 4}, board.Counts())
	assert.Equal(t, []string{CommandStop}, backend.Commands())

	finished := rec.OfType(event.TypeExecutionFinished)
	require.Len(t, finished, 1)
	assert.True(t, finished[0].(event.ExecutionFinishedEvent).Stopped)

	assert.ErrorIs(t, e.Stop(context.Background()), errors.ErrRunNotActive)
	assert.ErrorIs(t, e.Pause(context.Background()), errors.ErrRunNotActive)
	assert.ErrorIs(t, e.Resume(context.Background()), errors.ErrRunNotActive)
}

func TestEngine_StopDuringStartup(t *testing.T) {
	backend := &fakeBackend{}
	e := NewEngine(testOptions(), backend, nil, nil, nil)

	sleeping := make(chan struct{})
	e.SetSleeper(func(ctx context.Context, d time.Duration) error {
		if d == testStartup {
			close(sleeping)
			<-ctx.Done()
		}
		return ctx.Err()
	})

	require.NoError(t, e.Start(context.Background(), testPhases(2, false)[0].Tasks))
	<-sleeping
	require.NoError(t, e.Stop(context.Background()))
	require.NoError(t, waitDone(t, e))

	assert.Zero(t, backend.starts, "backend start is only called after the startup delay")
	assert.Equal(t, LogRunStopped, e.Logs()[len(e.Logs())-1].Content)
}

func TestEngine_PauseResumeFidelity(t *testing.T) {
	board := plan.NewBoard(testPhases(3, true))
	backend := &fakeBackend{}

	e := NewEngine(testOptions(), backend, board, nil, nil)

	paused := make(chan struct{})
	e.SetSleeper(testutil.NewSleeper(func(n int) {
		if n == 6 {
			assert.NoError(t, e.Pause(context.Background()))
			close(paused)
		}
	}).Sleep)

	require.NoError(t, e.Start(context.Background(), board.PendingTasks()))
	<-paused

	assert.True(t, e.Paused())
	assert.True(t, e.Running())
	assert.NoError(t, e.Pause(context.Background()), "pausing twice is a no-op")
	assert.Less(t, board.Counts().Completed, 3)

	require.NoError(t, e.Resume(context.Background()))
	assert.False(t, e.Paused())
	require.NoError(t, waitDone(t, e))

	assert.Equal(t, plan.StatusCounts{Completed: 3}, board.Counts())
	for id := 1; id <= 3; id++ {
		task, _ := board.Task(id)
		assert.Equal(t,
			contents(stepsAsLogs(TaskScript(task))),
			contents(e.FilterLogs(LogFilter{TaskID: &id})),
			"task %d log sequence must match an unpaused run", id)
	}
	assert.Equal(t, []string{CommandPause, CommandPlay}, backend.Commands())
}

func TestEngine_StartRejected(t *testing.T) {
	bus := event.NewBus(nil)
	rec := testutil.NewRecorder(bus)
	board := plan.NewBoard(testPhases(2, false))
	backend := &fakeBackend{startErr: errors.NewAPIError("start execution", "POST", "/api/execution/start", 500)}

	e := NewEngine(testOptions(), backend, board, bus, nil)
	e.SetSleeper(testutil.NewSleeper(nil).Sleep)

	require.NoError(t, e.Start(context.Background(), board.PendingTasks()))
	err := waitDone(t, e)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrStartRejected))

	assert.False(t, e.Running())
	assert.Equal(t, plan.StatusCounts{Pending: 2}, board.Counts())

	last := e.Logs()[len(e.Logs())-1]
	assert.Equal(t, plan.LogError, last.LogType)
	assert.Contains(t, last.Content, "Failed to start execution")

	notices := rec.OfType(event.TypeNotice)
	require.Len(t, notices, 1)
	assert.Equal(t, event.NoticeError, notices[0].(event.NoticeEvent).Level)
}

func TestEngine_CommandFailuresAreNonFatal(t *testing.T) {
	bus := event.NewBus(nil)
	rec := testutil.NewRecorder(bus)
	backend := &fakeBackend{cmdErr: errors.NewTransportError("send command", "POST", "/api/execution/command", context.DeadlineExceeded)}

	e := NewEngine(testOptions(), backend, nil, bus, nil)
	stepping := make(chan int, 1)
	e.SetSleeper(blockingSleeper(stepping))
	require.NoError(t, e.Start(context.Background(), testPhases(2, false)[0].Tasks))
	<-stepping

	require.NoError(t, e.Pause(context.Background()))
	assert.True(t, e.Paused(), "local pause holds even when the backend fails")

	require.NoError(t, e.Stop(context.Background()))
	assert.False(t, e.Running())
	require.NoError(t, waitDone(t, e))

	notices := rec.OfType(event.TypeNotice)
	require.Len(t, notices, 2)
	for _, n := range notices {
		assert.Equal(t, event.NoticeWarning, n.(event.NoticeEvent).Level)
	}
	assert.Contains(t, notices[0].(event.NoticeEvent).Message, "Failed to pause")
	assert.Contains(t, notices[1].(event.NoticeEvent).Message, "Failed to stop")

	var execErr *errors.ExecutionError
	require.ErrorAs(t, notices[0].(event.NoticeEvent).Err, &execErr)
	assert.Equal(t, e.RunID(), execErr.RunID)
	assert.Equal(t, errors.SeverityWarning, errors.GetSeverity(execErr))
	assert.ErrorIs(t, execErr, context.DeadlineExceeded)
}

func TestNoticeLevel(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"canceled", errors.ErrCanceled, event.NoticeInfo},
		{"warning", errors.NewExecutionError("x", nil).WithSeverity(errors.SeverityWarning), event.NoticeWarning},
		{"plain error", errors.New("boom"), event.NoticeError},
		{"critical", errors.NewExecutionError("x", nil).WithSeverity(errors.SeverityCritical), event.NoticeError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, noticeLevel(tt.err))
		})
	}
}

type rejectingSink struct{}

func (rejectingSink) SetTaskStatus(int, plan.TaskStatus) (plan.TaskStatus, error) {
	return "", errors.New("unknown task")
}

func TestEngine_SinkRejectionIsNotFatal(t *testing.T) {
	logger, logs := logging.NewObserved(logging.LevelDebug)
	e := NewEngine(testOptions(), nil, rejectingSink{}, nil, logger)
	e.SetSleeper(testutil.NewSleeper(nil).Sleep)

	require.NoError(t, e.Start(context.Background(), testPhases(1, false)[0].Tasks))
	require.NoError(t, waitDone(t, e))

	assert.Equal(t, 1, e.State().Completed)
	rejected := logs.FilterMessage("status sink rejected update").All()
	require.Len(t, rejected, 2, "in_progress and completed")
	assert.Contains(t, fmt.Sprint(rejected[0].ContextMap()["error"]), "task=1")
}

func TestEngine_ParentContextCanceled(t *testing.T) {
	board := plan.NewBoard(testPhases(2, false))
	e := NewEngine(testOptions(), nil, board, nil, nil)
	stepping := make(chan int, 2)
	e.SetSleeper(blockingSleeper(stepping))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, e.Start(ctx, board.PendingTasks()))
	<-stepping
	cancel()

	require.NoError(t, waitDone(t, e))
	assert.False(t, e.Running())
	assert.Equal(t, plan.StatusCounts{Pending: 2}, board.Counts())
	assert.Equal(t, LogRunCanceled, e.Logs()[len(e.Logs())-1].Content)
}

func TestEngine_StepDelayJitter(t *testing.T) {
	e := NewEngine(DefaultOptions(), nil, nil, nil, nil)

	e.SetRand(func(int64) int64 { return 0 })
	assert.Equal(t, 1200*time.Millisecond, e.stepDelay())

	e.SetRand(func(n int64) int64 { return n - 1 })
	assert.Less(t, e.stepDelay(), 2000*time.Millisecond)

	e.SetRand(nil)
	e.opts.StepDelayMax = e.opts.StepDelayMin
	assert.Equal(t, 1200*time.Millisecond, e.stepDelay(), "no jitter when the range is empty")
}

func TestEngine_NoRun(t *testing.T) {
	e := NewEngine(testOptions(), nil, nil, nil, nil)
	assert.NoError(t, e.Wait())
	assert.False(t, e.Running())
	assert.False(t, e.Paused())
	assert.Empty(t, e.RunID())
	assert.Nil(t, e.Logs())
	assert.Equal(t, RunState{}, e.State())
}
