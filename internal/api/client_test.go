package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildagent/buildagent/internal/config"
	"github.com/buildagent/buildagent/internal/errors"
	"github.com/buildagent/buildagent/internal/execution"
	"github.com/buildagent/buildagent/internal/plan"
	"github.com/buildagent/buildagent/internal/testutil"
)

func strPtr(s string) *string { return &s }

func samplePhases() []plan.Phase {
	return []plan.Phase{{
		ID: 1, PhaseNumber: 1, Name: "Core",
		Tasks: []plan.Task{
			{ID: 1, Name: "Model", FilePath: strPtr("src/model.go"), Status: plan.TaskPending},
			{ID: 2, Name: "Docs", Status: plan.TaskCompleted},
		},
	}}
}

func TestClient_ProjectLifecycle(t *testing.T) {
	backend := testutil.NewFakeBackend(t)
	c := NewClient(backend.URL())
	ctx := context.Background()

	created, err := c.CreateProject(ctx, "  keyboard shortcuts  ")
	require.NoError(t, err)
	assert.Equal(t, 1, created.ID)
	assert.Equal(t, "keyboard shortcuts", created.Idea)
	assert.Equal(t, "created", created.Status)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), created.CreatedAt.Time)

	reqs := backend.Requests()
	require.Len(t, reqs, 1)
	var body map[string]string
	reqs[0].Decode(t, &body)
	assert.Equal(t, map[string]string{"idea": "keyboard shortcuts"}, body)

	got, err := c.GetProject(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Idea, got.Idea)

	updated, err := c.UpdateProject(ctx, created.ID, ProjectUpdate{
		Status:  strPtr("repo_selected"),
		RepoURL: strPtr("https://github.com/acme/demo"),
	})
	require.NoError(t, err)
	assert.Equal(t, "repo_selected", updated.Status)
	assert.Equal(t, "https://github.com/acme/demo", updated.RepoURL)

	patch := backend.Requests()[2]
	var patchBody map[string]any
	patch.Decode(t, &patchBody)
	assert.NotContains(t, patchBody, "repo_path", "nil fields are omitted")
}

func TestClient_CreateProjectRejectsEmptyIdea(t *testing.T) {
	backend := testutil.NewFakeBackend(t)
	c := NewClient(backend.URL())

	_, err := c.CreateProject(context.Background(), "   ")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
	assert.Empty(t, backend.Requests())
}

func TestClient_ErrorMapping(t *testing.T) {
	backend := testutil.NewFakeBackend(t)
	backend.Fail(http.MethodGet, "/api/tasks/3", http.StatusInternalServerError, "database is locked")
	c := NewClient(backend.URL())
	ctx := context.Background()

	t.Run("missing project", func(t *testing.T) {
		_, err := c.GetProject(ctx, 42)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrProjectNotFound))

		var apiErr *errors.APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
		assert.Equal(t, "Project not found", apiErr.Detail)
		assert.Equal(t, "/api/projects/42", apiErr.Path)
		assert.False(t, errors.IsRetryable(err))
	})

	t.Run("server error", func(t *testing.T) {
		_, err := c.GetTasks(ctx, 3)
		require.Error(t, err)

		var apiErr *errors.APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
		assert.Equal(t, "database is locked", apiErr.Detail)
		assert.True(t, errors.IsRetryable(err))
		assert.False(t, errors.Is(err, errors.ErrProjectNotFound))
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		_, err := NewClient(url).ExecutionStatus(ctx, 1)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrBackendUnavailable))
		assert.True(t, errors.IsRetryable(err))
	})
}

func TestErrorDetail(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"string detail", `{"detail":"Project not found"}`, "Project not found"},
		{"validation detail", `{"detail":[{"msg":"field required"}]}`, `[{"msg":"field required"}]`},
		{"plain text", "Internal Server Error\n", "Internal Server Error"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errorDetail([]byte(tt.body)))
		})
	}
}

func TestClient_UnexpectedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).GetPlan(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnexpectedResponse))
}

func TestClient_SendCommandValidates(t *testing.T) {
	backend := testutil.NewFakeBackend(t)
	c := NewClient(backend.URL())

	_, err := c.SendCommand(context.Background(), 1, "restart")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidCommand))
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
	assert.Empty(t, backend.Requests())

	res, err := c.SendCommand(context.Background(), 1, execution.CommandPause)
	require.NoError(t, err)
	assert.Equal(t, "Execution paused", res.Message)
	assert.Equal(t, []string{"pause"}, backend.Commands())
}

func TestClient_ExecutionBackend(t *testing.T) {
	backend := testutil.NewFakeBackend(t)
	backend.SetPhases(samplePhases())
	current := 1
	backend.SetStatus(plan.ExecutionStatus{
		Running:       true,
		CurrentTask:   &current,
		ProjectStatus: "executing",
		TaskStatuses:  plan.StatusCounts{Pending: 1, Completed: 1},
	})

	c := NewClient(backend.URL())
	exec := c.ExecutionBackend(5)
	ctx := context.Background()
	assert.Equal(t, 5, exec.ProjectID())

	require.NoError(t, exec.Start(ctx))
	require.NoError(t, exec.Command(ctx, execution.CommandStop))
	assert.Error(t, exec.Command(ctx, "rewind"))

	phases, err := exec.Phases(ctx)
	require.NoError(t, err)
	require.Len(t, phases, 1)
	require.Len(t, phases[0].Tasks, 2)
	assert.Equal(t, "src/model.go", phases[0].Tasks[0].File())
	assert.False(t, phases[0].Tasks[1].HasFile())

	status, err := exec.Status(ctx)
	require.NoError(t, err)
	require.NotNil(t, status.CurrentTask)
	assert.Equal(t, 1, *status.CurrentTask)
	assert.Equal(t, 2, status.TaskStatuses.Total())

	var start testutil.Request
	for _, r := range backend.Requests() {
		if r.Path == "/api/execution/start" {
			start = r
		}
	}
	assert.Equal(t, "project_id=5", start.Query)
	assert.Equal(t, []string{"stop"}, backend.Commands())
}

func TestClient_ExecutionLogs(t *testing.T) {
	backend := testutil.NewFakeBackend(t)
	c := NewClient(backend.URL())
	ctx := context.Background()

	_, err := c.StartExecution(ctx, 1)
	require.NoError(t, err)

	logs, err := c.ExecutionLogs(ctx, 1, nil)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, plan.LogAgentMessage, logs[0].LogType)
	assert.Nil(t, logs[0].TaskID)
	assert.Equal(t, 123456000, logs[0].CreatedAt.Nanosecond())

	task := 4
	_, err = c.ExecutionLogs(ctx, 1, &task)
	require.NoError(t, err)
	reqs := backend.Requests()
	assert.Equal(t, "task_id=4", reqs[len(reqs)-1].Query)
}

func TestClient_WorkflowEndpoints(t *testing.T) {
	backend := testutil.NewFakeBackend(t)
	backend.SetPhases(samplePhases())
	c := NewClient(backend.URL())
	ctx := context.Background()

	sel, err := c.SelectRepo(ctx, 2, "https://github.com/acme/demo", "")
	require.NoError(t, err)
	assert.Equal(t, "cloned", sel.Status)
	var selBody map[string]any
	backend.Requests()[0].Decode(t, &selBody)
	assert.NotContains(t, selBody, "github_token")

	analysis, err := c.AnalyzeRepo(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"Go"}, analysis.TechStack)

	_, err = c.GenerateQuestions(ctx, 2)
	require.NoError(t, err)

	gp, err := c.GeneratePlan(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "# Plan", gp.PlanDocument)

	approval, err := c.ApproveSection(ctx, 2, "overview", true)
	require.NoError(t, err)
	assert.Equal(t, SectionApproval{Section: "overview", Approved: true}, *approval)

	_, err = c.ApproveSection(ctx, 2, "", true)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))

	p, err := c.GetPlan(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, p.ID)

	phases, err := c.GenerateTasks(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, phases, 1)

	d, err := c.GenerateDesign(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, 9, d.PhaseID)
	d, err = c.GetDesign(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, "graph TD; A-->B", d.Architecture)

	approved := true
	d, err = c.UpdateDesign(ctx, 9, DesignUpdate{Approved: &approved})
	require.NoError(t, err)
	assert.True(t, d.Approved)

	all, err := c.ApproveAllDesigns(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "Approved 1 design(s)", all.Message)

	res, err := c.RunTestCommand(ctx, 2, TestCommand{Command: "go", Args: []string{"test", "./..."}})
	require.NoError(t, err)
	assert.True(t, res.Passed())
	_, err = c.RunTestCommand(ctx, 2, TestCommand{})
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))

	testLogs, err := c.TestLogs(ctx, 2)
	require.NoError(t, err)
	require.Len(t, testLogs, 1)
	assert.Equal(t, 2026, testLogs[0].CreatedAt.Year())

	pr, err := c.CreatePullRequest(ctx, 2, PullRequestRequest{GitHubToken: "tok"})
	require.NoError(t, err)
	assert.Equal(t, 7, pr.PRNumber)

	reqs := backend.Requests()
	var prBody PullRequestRequest
	reqs[len(reqs)-1].Decode(t, &prBody)
	assert.Equal(t, "main", prBody.BaseBranch, "base branch defaults to main")

	stored, err := c.GetPullRequest(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "open", stored.Status)
}

func TestClient_DedupesConcurrentGets(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		<-release
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"phases":[{"id":1,"name":"Core","tasks":[]}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	const callers = 5
	var wg sync.WaitGroup
	results := make([][]plan.Phase, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			phases, err := c.GetTasks(context.Background(), 1)
			assert.NoError(t, err)
			results[i] = phases
		}()
	}

	require.Eventually(t, func() bool { return hits.Load() == 1 }, 5*time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), hits.Load())
	for _, phases := range results {
		require.Len(t, phases, 1)
		assert.Equal(t, "Core", phases[0].Name)
	}
}

func TestClient_RateLimitHonorsContext(t *testing.T) {
	backend := testutil.NewFakeBackend(t)
	c := NewClient(backend.URL(), WithRateLimit(0.001, 1))

	_, err := c.ExecutionStatus(context.Background(), 1)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.ExecutionStatus(ctx, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrBackendUnavailable))
	assert.Equal(t, 1, backend.Count(http.MethodGet, "/api/execution/status/1"))
}

func TestNewClientFromConfig(t *testing.T) {
	cfg := config.Default().API
	c := NewClientFromConfig(cfg, nil)
	assert.Equal(t, "http://localhost:8000", c.BaseURL())
	assert.Equal(t, cfg.Timeout, c.httpClient.Timeout)
	require.NotNil(t, c.limiter)

	c = NewClient("http://example.test/", WithRateLimit(0, 0))
	assert.Equal(t, "http://example.test", c.BaseURL())
	assert.Nil(t, c.limiter)
}

func TestTimestamp_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{`null`, time.Time{}},
		{`""`, time.Time{}},
		{`"2026-01-02T03:04:05"`, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)},
		{`"2026-01-02T03:04:05.5"`, time.Date(2026, 1, 2, 3, 4, 5, 500000000, time.UTC)},
		{`"2026-01-02T03:04:05Z"`, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var ts Timestamp
			require.NoError(t, ts.UnmarshalJSON([]byte(tt.in)))
			assert.True(t, tt.want.Equal(ts.Time), "got %v", ts.Time)
		})
	}

	var ts Timestamp
	assert.Error(t, ts.UnmarshalJSON([]byte(`"yesterday"`)))
}
