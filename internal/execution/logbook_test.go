package execution

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildagent/buildagent/internal/plan"
)

func TestLogBook_AppendAndFilter(t *testing.T) {
	b := NewLogBook()
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	b.now = func() time.Time { return fixed }

	one, two := 1, 2
	b.Append(nil, plan.LogAgentMessage, "run")
	b.Append(&one, plan.LogAgentMessage, "t1 start")
	b.Append(&two, plan.LogAgentMessage, "t2 start")
	b.Append(&one, plan.LogCodeChange, "t1 wrote")
	b.Append(&one, plan.LogError, "t1 oops")

	require.Equal(t, 5, b.Len())
	all := b.All()
	for i, e := range all {
		assert.Equal(t, i+1, e.ID)
		assert.Equal(t, fixed, e.CreatedAt)
	}
	assert.Nil(t, all[0].TaskID)

	tests := []struct {
		name   string
		filter LogFilter
		want   []string
	}{
		{"everything", LogFilter{}, []string{"run", "t1 start", "t2 start", "t1 wrote", "t1 oops"}},
		{"by task", LogFilter{TaskID: &one}, []string{"t1 start", "t1 wrote", "t1 oops"}},
		{"by type", LogFilter{Types: []plan.LogType{plan.LogCodeChange, plan.LogError}}, []string{"t1 wrote", "t1 oops"}},
		{"by task and type", LogFilter{TaskID: &two, Types: []plan.LogType{plan.LogCodeChange}}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := b.Filter(tt.filter)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, contents(got))
		})
	}

	assert.Equal(t, []string{"t2 start"}, contents(b.ForTask(2)))
}

func TestLogBook_DoesNotAliasTaskID(t *testing.T) {
	b := NewLogBook()
	id := 7
	b.Append(&id, plan.LogAgentMessage, "x")
	id = 8

	entry := b.All()[0]
	require.NotNil(t, entry.TaskID)
	assert.Equal(t, 7, *entry.TaskID)

	*entry.TaskID = 9
	assert.Equal(t, 7, *b.All()[0].TaskID, "All returns entries the caller may not mutate through")
}

func TestPauseGate(t *testing.T) {
	g := newPauseGate()
	ctx := context.Background()

	assert.NoError(t, g.wait(ctx), "a new gate is open")
	assert.False(t, g.resume(), "resuming an open gate is a no-op")

	require.True(t, g.pause())
	assert.False(t, g.pause())
	assert.True(t, g.isPaused())

	released := make(chan error, 1)
	go func() { released <- g.wait(ctx) }()

	select {
	case <-released:
		t.Fatal("wait returned while paused")
	case <-time.After(20 * time.Millisecond):
	}

	require.True(t, g.resume())
	select {
	case err := <-released:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("wait did not return after resume")
	}
}

func TestPauseGate_CancelWins(t *testing.T) {
	g := newPauseGate()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, g.wait(ctx), context.Canceled, "open gate still reports cancellation")

	g.pause()
	assert.ErrorIs(t, g.wait(ctx), context.Canceled)
}

func TestCommands(t *testing.T) {
	for _, c := range Commands() {
		assert.True(t, ValidCommand(c))
	}
	assert.False(t, ValidCommand("restart"))
	assert.False(t, ValidCommand(""))
}
