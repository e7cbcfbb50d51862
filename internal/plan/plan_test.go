package plan

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildagent/buildagent/internal/errors"
)

func strPtr(s string) *string { return &s }

func phase(id, number int, name string, tasks ...Task) Phase {
	return Phase{ID: id, PhaseNumber: number, Name: name, Tasks: tasks}
}

func task(id int, status TaskStatus) Task {
	return Task{ID: id, Name: "task", Status: status}
}

func phaseIDs(phases []Phase) []int {
	ids := make([]int, len(phases))
	for i, p := range phases {
		ids[i] = p.ID
	}
	return ids
}

// -----------------------------------------------------------------------------
// Dedupe / Sort Tests
// -----------------------------------------------------------------------------

func TestDedupe_KeepsFirst(t *testing.T) {
	in := []Phase{
		phase(2, 0, "first two"),
		phase(1, 0, "one"),
		phase(2, 0, "second two"),
	}

	out := Dedupe(in)
	require.Len(t, out, 2)
	assert.Equal(t, []int{2, 1}, phaseIDs(out))
	assert.Equal(t, "first two", out[0].Name)
}

func TestDedupe_DoesNotAliasTasks(t *testing.T) {
	in := []Phase{phase(1, 1, "p", task(10, TaskPending))}
	out := Dedupe(in)
	out[0].Tasks[0].Status = TaskCompleted
	assert.Equal(t, TaskPending, in[0].Tasks[0].Status)
}

func TestDedupeByNumber(t *testing.T) {
	in := []Phase{
		phase(5, 1, "setup"),
		phase(6, 1, "setup again"),
		phase(7, 0, "unnumbered"),
		phase(8, 0, "also unnumbered"),
		phase(7, 0, "unnumbered dup"),
	}

	out := DedupeByNumber(in)
	assert.Equal(t, []int{5, 7, 8}, phaseIDs(out))
}

func TestSortPhases(t *testing.T) {
	tests := []struct {
		name string
		in   []Phase
		want []int
	}{
		{
			name: "by phase number",
			in:   []Phase{phase(10, 3, "c"), phase(11, 1, "a"), phase(12, 2, "b")},
			want: []int{11, 12, 10},
		},
		{
			name: "falls back to id",
			in:   []Phase{phase(3, 0, "c"), phase(1, 0, "a"), phase(2, 0, "b")},
			want: []int{1, 2, 3},
		},
		{
			name: "mixed keys",
			in:   []Phase{phase(40, 0, "id 40"), phase(41, 2, "n2"), phase(1, 0, "id 1")},
			want: []int{1, 41, 40},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SortPhases(tt.in)
			assert.Equal(t, tt.want, phaseIDs(tt.in))
		})
	}
}

// -----------------------------------------------------------------------------
// Reconcile Tests
// -----------------------------------------------------------------------------

func TestReconcile_FirstLoad(t *testing.T) {
	fetched := []Phase{
		phase(2, 2, "two", task(3, TaskPending)),
		phase(1, 1, "one", task(1, TaskCompleted), task(2, TaskPending)),
		phase(2, 2, "two dup"),
	}

	out := Reconcile(nil, fetched)
	assert.Equal(t, []int{1, 2}, phaseIDs(out))
	assert.Equal(t, TaskCompleted, out[0].Tasks[0].Status)
	assert.Len(t, out[1].Tasks, 1)
}

func TestReconcile_PreservesLocalStatus(t *testing.T) {
	local := []Phase{
		phase(1, 1, "one", task(1, TaskCompleted), task(2, TaskInProgress)),
		phase(9, 9, "dropped", task(90, TaskCompleted)),
	}
	fetched := []Phase{
		{
			ID: 1, PhaseNumber: 1, Name: "one renamed", Description: "new",
			Tasks: []Task{
				{ID: 1, Name: "renamed", Status: TaskPending},
				{ID: 2, Name: "b", Status: TaskPending},
				{ID: 3, Name: "new task", Status: TaskFailed},
			},
		},
		phase(1, 1, "one dup"),
		phase(4, 2, "new phase", task(40, TaskPending)),
	}

	out := Reconcile(local, fetched)

	require.Equal(t, []int{1, 4}, phaseIDs(out))
	assert.Equal(t, "one renamed", out[0].Name)
	assert.Equal(t, "new", out[0].Description)
	require.Len(t, out[0].Tasks, 3)
	assert.Equal(t, "renamed", out[0].Tasks[0].Name)
	assert.Equal(t, TaskCompleted, out[0].Tasks[0].Status, "local status wins")
	assert.Equal(t, TaskInProgress, out[0].Tasks[1].Status, "local status wins")
	assert.Equal(t, TaskFailed, out[0].Tasks[2].Status, "new task takes fetched status")
	assert.Equal(t, TaskPending, out[1].Tasks[0].Status)
}

func TestReconcile_NoDuplicateIDs(t *testing.T) {
	local := []Phase{phase(1, 0, "a"), phase(1, 0, "a dup"), phase(2, 0, "b")}
	fetched := []Phase{phase(2, 0, "b"), phase(1, 0, "a"), phase(2, 0, "b again"), phase(1, 0, "a again")}

	out := Reconcile(local, fetched)
	assert.Equal(t, []int{1, 2}, phaseIDs(out))
}

func TestAllTasksAndFirstCompletedFile(t *testing.T) {
	phases := []Phase{
		phase(1, 1, "one",
			Task{ID: 1, Status: TaskCompleted},
			Task{ID: 2, Status: TaskPending, FilePath: strPtr("a.go")},
		),
		phase(2, 2, "two",
			Task{ID: 3, Status: TaskCompleted, FilePath: strPtr("")},
			Task{ID: 4, Status: TaskCompleted, FilePath: strPtr("b.go")},
		),
	}

	assert.Len(t, AllTasks(phases), 4)

	file, ok := FirstCompletedFile(phases)
	assert.True(t, ok)
	assert.Equal(t, "b.go", file)

	_, ok = FirstCompletedFile(phases[:1])
	assert.False(t, ok)
}

func TestCountTasks(t *testing.T) {
	phases := []Phase{
		phase(1, 1, "one", task(1, TaskCompleted), task(2, TaskInProgress), task(3, "weird")),
		phase(2, 2, "two", task(4, TaskFailed), task(5, TaskPending)),
	}

	c := CountTasks(phases)
	assert.Equal(t, StatusCounts{Pending: 2, InProgress: 1, Completed: 1, Failed: 1}, c)
	assert.Equal(t, 5, c.Total())
}

func TestTaskStatus(t *testing.T) {
	assert.True(t, TaskCompleted.IsTerminal())
	assert.True(t, TaskFailed.IsTerminal())
	assert.False(t, TaskInProgress.IsTerminal())
	assert.True(t, TaskPending.Valid())
	assert.False(t, TaskStatus("running").Valid())
	assert.Equal(t, "in_progress", TaskInProgress.String())
}

// -----------------------------------------------------------------------------
// Board Tests
// -----------------------------------------------------------------------------

func TestBoard_SetTaskStatus(t *testing.T) {
	b := NewBoard([]Phase{phase(1, 1, "one", task(1, TaskPending), task(2, TaskPending))})

	prev, err := b.SetTaskStatus(2, TaskInProgress)
	require.NoError(t, err)
	assert.Equal(t, TaskPending, prev)

	got, ok := b.Task(2)
	require.True(t, ok)
	assert.Equal(t, TaskInProgress, got.Status)

	_, err = b.SetTaskStatus(99, TaskCompleted)
	assert.True(t, errors.Is(err, &errors.NotFoundError{}))

	_, err = b.SetTaskStatus(1, "running")
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}

func TestBoard_ReconcileKeepsEngineStatus(t *testing.T) {
	b := NewBoard([]Phase{phase(1, 1, "one", task(1, TaskPending), task(2, TaskPending))})
	_, err := b.SetTaskStatus(1, TaskCompleted)
	require.NoError(t, err)

	// A stale poll still reports everything pending.
	b.Reconcile([]Phase{phase(1, 1, "one", task(1, TaskPending), task(2, TaskPending))})

	got, _ := b.Task(1)
	assert.Equal(t, TaskCompleted, got.Status)
	assert.Equal(t, StatusCounts{Pending: 1, Completed: 1}, b.Counts())
}

func TestBoard_PendingTasksInPhaseOrder(t *testing.T) {
	b := NewBoard([]Phase{
		phase(2, 2, "two", task(20, TaskPending), task(21, TaskCompleted)),
		phase(1, 1, "one", task(10, TaskPending), task(11, TaskPending)),
	})

	var ids []int
	for _, tk := range b.PendingTasks() {
		ids = append(ids, tk.ID)
	}
	assert.Equal(t, []int{10, 11, 20}, ids)
}

func TestBoard_PhasesIsACopy(t *testing.T) {
	b := NewBoard([]Phase{phase(1, 1, "one", task(1, TaskPending))})

	snap := b.Phases()
	snap[0].Tasks[0].Status = TaskCompleted

	got, _ := b.Task(1)
	assert.Equal(t, TaskPending, got.Status)
}

func TestBoard_FirstCompletedFile(t *testing.T) {
	b := NewBoard([]Phase{phase(1, 1, "one", Task{ID: 1, Status: TaskPending, FilePath: strPtr("x.go")})})
	_, ok := b.FirstCompletedFile()
	assert.False(t, ok)

	_, err := b.SetTaskStatus(1, TaskCompleted)
	require.NoError(t, err)
	file, ok := b.FirstCompletedFile()
	assert.True(t, ok)
	assert.Equal(t, "x.go", file)
}

func TestBoard_ConcurrentAccess(t *testing.T) {
	b := NewBoard([]Phase{phase(1, 1, "one", task(1, TaskPending), task(2, TaskPending))})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			_, _ = b.SetTaskStatus(1, TaskInProgress)
		}()
		go func() {
			defer wg.Done()
			b.Reconcile([]Phase{phase(1, 1, "one", task(1, TaskPending), task(2, TaskPending))})
		}()
		go func() {
			defer wg.Done()
			_ = b.Counts()
		}()
	}
	wg.Wait()

	got, _ := b.Task(1)
	assert.Equal(t, TaskInProgress, got.Status)
}

// -----------------------------------------------------------------------------
// SelectTasks Tests
// -----------------------------------------------------------------------------

func TestSelectTasks(t *testing.T) {
	tasks := []Task{
		{ID: 1, Name: "Add velocity check", FilePath: strPtr("services/heuristics/velocity_check.py")},
		{ID: 2, Name: "Wire decision engine", FilePath: strPtr("services/decision_engine.py")},
		{ID: 3, Name: "Write docs"},
		{ID: 4, Name: "Update API", FilePath: strPtr("api/fraud_detection.py")},
	}

	tests := []struct {
		pattern string
		want    []int
	}{
		{"", []int{1, 2, 3, 4}},
		{"services/*.py", []int{2}},
		{"services/**", []int{1, 2}},
		{"*.py", nil},
		{"Write*", []int{3}},
		{"{api,services}/*.py", []int{2, 4}},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			got, err := SelectTasks(tasks, tt.pattern)
			require.NoError(t, err)
			var ids []int
			for _, tk := range got {
				ids = append(ids, tk.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestSelectTasks_InvalidPattern(t *testing.T) {
	_, err := SelectTasks([]Task{task(1, TaskPending)}, "[")
	require.Error(t, err)

	var verr *errors.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "only", verr.Field)
}
