package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/buildagent/buildagent/internal/errors"
	"github.com/buildagent/buildagent/internal/execution"
	"github.com/buildagent/buildagent/internal/plan"
)

// Projects

// CreateProject registers a new idea and returns the created project.
func (c *Client) CreateProject(ctx context.Context, idea string) (*Project, error) {
	idea = strings.TrimSpace(idea)
	if idea == "" {
		return nil, errors.NewValidationError("idea must not be empty").WithField("idea")
	}
	var p Project
	body := map[string]string{"idea": idea}
	if err := c.send(ctx, "create project", http.MethodPost, "/api/projects/", nil, body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProject fetches a project by id.
func (c *Client) GetProject(ctx context.Context, projectID int) (*Project, error) {
	var p Project
	if err := c.get(ctx, "get project", projectPath(projectID), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProject applies a partial update and returns the project's new state.
func (c *Client) UpdateProject(ctx context.Context, projectID int, update ProjectUpdate) (*Project, error) {
	var p Project
	if err := c.send(ctx, "update project", http.MethodPatch, projectPath(projectID), nil, update, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func projectPath(projectID int) string {
	return "/api/projects/" + strconv.Itoa(projectID)
}

// Repositories

// SelectRepo attaches a repository to the project. token may be empty for
// public repositories.
func (c *Client) SelectRepo(ctx context.Context, projectID int, repoURL, token string) (*RepoSelection, error) {
	body := struct {
		RepoURL     string `json:"repo_url"`
		GitHubToken string `json:"github_token,omitempty"`
	}{RepoURL: repoURL, GitHubToken: token}

	var sel RepoSelection
	if err := c.send(ctx, "select repository", http.MethodPost, "/api/repos/select", projectQuery(projectID), body, &sel); err != nil {
		return nil, err
	}
	return &sel, nil
}

// AnalyzeRepo returns the structure of the project's repository.
func (c *Client) AnalyzeRepo(ctx context.Context, projectID int) (*RepoAnalysis, error) {
	var a RepoAnalysis
	if err := c.send(ctx, "analyze repository", http.MethodPost, "/api/repos/analyze", projectQuery(projectID), nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// Plan

// GenerateQuestions asks the backend for plan questions. The local question
// pipeline is authoritative; this records the request with the backend.
func (c *Client) GenerateQuestions(ctx context.Context, projectID int) ([]PlanQuestion, error) {
	var resp struct {
		Questions []PlanQuestion `json:"questions"`
	}
	if err := c.send(ctx, "generate questions", http.MethodPost, "/api/plan/questions", projectQuery(projectID), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Questions, nil
}

// GeneratePlan generates the plan document for the project.
func (c *Client) GeneratePlan(ctx context.Context, projectID int) (*GeneratedPlan, error) {
	var gp GeneratedPlan
	if err := c.send(ctx, "generate plan", http.MethodPost, "/api/plan/generate", projectQuery(projectID), nil, &gp); err != nil {
		return nil, err
	}
	return &gp, nil
}

// ApproveSection marks one plan section approved or rejected.
func (c *Client) ApproveSection(ctx context.Context, projectID int, section string, approved bool) (*SectionApproval, error) {
	if strings.TrimSpace(section) == "" {
		return nil, errors.NewValidationError("section must not be empty").WithField("section")
	}
	body := SectionApproval{Section: section, Approved: approved}
	var out SectionApproval
	if err := c.send(ctx, "approve plan section", http.MethodPost, "/api/plan/approve-section", projectQuery(projectID), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetPlan fetches the latest plan for the project.
func (c *Client) GetPlan(ctx context.Context, projectID int) (*Plan, error) {
	var p Plan
	if err := c.get(ctx, "get plan", "/api/plan/"+strconv.Itoa(projectID), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Tasks

type phasesResponse struct {
	Phases []plan.Phase `json:"phases"`
}

// GenerateTasks generates the phased task list for the project.
func (c *Client) GenerateTasks(ctx context.Context, projectID int) ([]plan.Phase, error) {
	var resp phasesResponse
	if err := c.send(ctx, "generate tasks", http.MethodPost, "/api/tasks/generate", projectQuery(projectID), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Phases, nil
}

// GetTasks fetches the project's phases with their nested tasks.
func (c *Client) GetTasks(ctx context.Context, projectID int) ([]plan.Phase, error) {
	var resp phasesResponse
	if err := c.get(ctx, "get tasks", "/api/tasks/"+strconv.Itoa(projectID), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Phases, nil
}

// Design

// GenerateDesign generates the technical design for a phase.
func (c *Client) GenerateDesign(ctx context.Context, phaseID int) (*Design, error) {
	var d Design
	path := "/api/design/generate/" + strconv.Itoa(phaseID)
	if err := c.send(ctx, "generate design", http.MethodPost, path, nil, nil, &d); err != nil {
		return nil, err
	}
	d.PhaseID = phaseID
	return &d, nil
}

// GetDesign fetches the design of a phase.
func (c *Client) GetDesign(ctx context.Context, phaseID int) (*Design, error) {
	var d Design
	if err := c.get(ctx, "get design", "/api/design/phase/"+strconv.Itoa(phaseID), nil, &d); err != nil {
		return nil, err
	}
	d.PhaseID = phaseID
	return &d, nil
}

// UpdateDesign applies a partial design update. The backend replies with the
// design id and approval flag only.
func (c *Client) UpdateDesign(ctx context.Context, designID int, update DesignUpdate) (*Design, error) {
	var d Design
	path := "/api/design/" + strconv.Itoa(designID)
	if err := c.send(ctx, "update design", http.MethodPatch, path, nil, update, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// ApproveAllDesigns approves the designs of every phase in the project.
func (c *Client) ApproveAllDesigns(ctx context.Context, projectID int) (*ApproveAllResult, error) {
	var r ApproveAllResult
	path := "/api/design/approve-all/" + strconv.Itoa(projectID)
	if err := c.send(ctx, "approve all designs", http.MethodPost, path, nil, nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Execution

// StartExecution asks the backend to start executing the project's tasks.
func (c *Client) StartExecution(ctx context.Context, projectID int) (*StartResult, error) {
	var r StartResult
	if err := c.send(ctx, "start execution", http.MethodPost, "/api/execution/start", projectQuery(projectID), nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// SendCommand sends play, pause or stop to the backend.
func (c *Client) SendCommand(ctx context.Context, projectID int, command string) (*CommandResult, error) {
	if !execution.ValidCommand(command) {
		return nil, errors.NewValidationError(fmt.Sprintf("command must be one of %s", strings.Join(execution.Commands(), ", "))).
			WithField("command").
			WithValue(command).
			WithCause(errors.ErrInvalidCommand)
	}
	body := map[string]string{"command": command}
	var r CommandResult
	if err := c.send(ctx, "send execution command", http.MethodPost, "/api/execution/command", projectQuery(projectID), body, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// ExecutionLogs fetches the backend's execution log, optionally for one task.
func (c *Client) ExecutionLogs(ctx context.Context, projectID int, taskID *int) ([]plan.ExecutionLog, error) {
	var query url.Values
	if taskID != nil {
		query = url.Values{"task_id": []string{strconv.Itoa(*taskID)}}
	}
	var resp struct {
		Logs []executionLog `json:"logs"`
	}
	if err := c.get(ctx, "get execution logs", "/api/execution/logs/"+strconv.Itoa(projectID), query, &resp); err != nil {
		return nil, err
	}
	out := make([]plan.ExecutionLog, 0, len(resp.Logs))
	for _, l := range resp.Logs {
		out = append(out, l.toPlan())
	}
	return out, nil
}

// ExecutionStatus fetches the backend's view of the run.
func (c *Client) ExecutionStatus(ctx context.Context, projectID int) (plan.ExecutionStatus, error) {
	var s plan.ExecutionStatus
	if err := c.get(ctx, "get execution status", "/api/execution/status/"+strconv.Itoa(projectID), nil, &s); err != nil {
		return plan.ExecutionStatus{}, err
	}
	return s, nil
}

// Testing

// RunTestCommand runs a test command in the project's repository.
func (c *Client) RunTestCommand(ctx context.Context, projectID int, cmd TestCommand) (*TestResult, error) {
	if strings.TrimSpace(cmd.Command) == "" {
		return nil, errors.NewValidationError("test command must not be empty").WithField("command")
	}
	var r TestResult
	if err := c.send(ctx, "run test command", http.MethodPost, "/api/testing/run-command", projectQuery(projectID), cmd, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// TestLogs fetches the recorded test runs of the project.
func (c *Client) TestLogs(ctx context.Context, projectID int) ([]TestLog, error) {
	var resp struct {
		Logs []TestLog `json:"logs"`
	}
	if err := c.get(ctx, "get test logs", "/api/testing/test-logs/"+strconv.Itoa(projectID), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Logs, nil
}

// Pull requests

// CreatePullRequest opens a pull request for the project's changes. An empty
// base branch defaults to main.
func (c *Client) CreatePullRequest(ctx context.Context, projectID int, req PullRequestRequest) (*CreatedPullRequest, error) {
	if req.BaseBranch == "" {
		req.BaseBranch = "main"
	}
	var pr CreatedPullRequest
	if err := c.send(ctx, "create pull request", http.MethodPost, "/api/pr/create", projectQuery(projectID), req, &pr); err != nil {
		return nil, err
	}
	return &pr, nil
}

// GetPullRequest fetches the project's latest pull request.
func (c *Client) GetPullRequest(ctx context.Context, projectID int) (*PullRequest, error) {
	var pr PullRequest
	if err := c.get(ctx, "get pull request", "/api/pr/"+strconv.Itoa(projectID), nil, &pr); err != nil {
		return nil, err
	}
	return &pr, nil
}
