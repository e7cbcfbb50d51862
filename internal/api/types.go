package api

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/buildagent/buildagent/internal/plan"
)

// timeLayouts are the timestamp formats the backend emits. Python's
// isoformat omits the zone for naive datetimes, which are UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

// Timestamp decodes backend timestamps with or without a zone offset.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON accepts null, RFC 3339 and zone-less ISO 8601 values.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	var lastErr error
	for _, layout := range timeLayouts {
		parsed, err := time.ParseInLocation(layout, s, time.UTC)
		if err == nil {
			t.Time = parsed
			return nil
		}
		lastErr = err
	}
	return lastErr
}

// MarshalJSON writes RFC 3339, or null for the zero time.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}

// Project is one idea moving through the workflow.
type Project struct {
	ID        int       `json:"id" yaml:"id"`
	Idea      string    `json:"idea" yaml:"idea"`
	RepoURL   string    `json:"repo_url,omitempty" yaml:"repo_url,omitempty"`
	RepoPath  string    `json:"repo_path,omitempty" yaml:"repo_path,omitempty"`
	Status    string    `json:"status" yaml:"status"`
	CreatedAt Timestamp `json:"created_at" yaml:"-"`
	UpdatedAt Timestamp `json:"updated_at" yaml:"-"`
}

// ProjectUpdate carries the fields of a partial project update. Nil fields
// are left unchanged.
type ProjectUpdate struct {
	Status   *string `json:"status,omitempty"`
	RepoURL  *string `json:"repo_url,omitempty"`
	RepoPath *string `json:"repo_path,omitempty"`
}

// RepoSelection is the result of attaching a repository to a project.
type RepoSelection struct {
	RepoPath string `json:"repo_path"`
	Status   string `json:"status"`
}

// RepoAnalysis describes the structure of the selected repository.
type RepoAnalysis struct {
	DirectoryStructure map[string]any `json:"directory_structure" yaml:"directory_structure"`
	TechStack          []string       `json:"tech_stack" yaml:"tech_stack"`
	Routing            []string       `json:"routing" yaml:"routing"`
	Components         []string       `json:"components" yaml:"components"`
	APIs               []string       `json:"apis" yaml:"apis"`
	Models             []string       `json:"models" yaml:"models"`
	DBSchema           map[string]any `json:"db_schema" yaml:"db_schema"`
}

// PlanQuestion is a question stored with a plan.
type PlanQuestion struct {
	Question string  `json:"question"`
	Answer   *string `json:"answer,omitempty"`
}

// GeneratedPlan is the result of plan generation.
type GeneratedPlan struct {
	PlanID       int    `json:"plan_id"`
	PlanDocument string `json:"plan_document"`
}

// Plan is the stored plan document with the questions that shaped it.
type Plan struct {
	ID           int            `json:"id"`
	Questions    []PlanQuestion `json:"questions"`
	Answers      map[string]any `json:"answers"`
	PlanDocument string         `json:"plan_document"`
}

// SectionApproval records approval of one plan section.
type SectionApproval struct {
	Section  string `json:"section"`
	Approved bool   `json:"approved"`
}

// Design is the technical design of one phase.
type Design struct {
	ID              int    `json:"id" yaml:"id"`
	PhaseID         int    `json:"phase_id,omitempty" yaml:"phase_id,omitempty"`
	Architecture    string `json:"architecture" yaml:"architecture"`
	SequenceDiagram string `json:"sequence_diagram" yaml:"sequence_diagram"`
	APIStructure    any    `json:"api_structure" yaml:"api_structure"`
	DBChanges       any    `json:"db_changes" yaml:"db_changes"`
	DataFlow        string `json:"data_flow" yaml:"data_flow"`
	Approved        bool   `json:"approved" yaml:"approved"`
}

// DesignUpdate carries the fields of a partial design update.
type DesignUpdate struct {
	Architecture    *string        `json:"architecture,omitempty"`
	SequenceDiagram *string        `json:"sequence_diagram,omitempty"`
	APIStructure    map[string]any `json:"api_structure,omitempty"`
	DBChanges       map[string]any `json:"db_changes,omitempty"`
	DataFlow        *string        `json:"data_flow,omitempty"`
	Approved        *bool          `json:"approved,omitempty"`
}

// ApproveAllResult summarizes a bulk design approval.
type ApproveAllResult struct {
	ApprovedCount int    `json:"approved_count"`
	TotalPhases   int    `json:"total_phases"`
	Message       string `json:"message"`
}

// StartResult is the backend's reply to an execution start.
type StartResult struct {
	Message    string `json:"message"`
	TasksCount int    `json:"tasks_count"`
}

// CommandResult is the backend's reply to an execution command.
type CommandResult struct {
	Message string `json:"message"`
}

// executionLog is the wire form of an execution log entry.
type executionLog struct {
	ID        int          `json:"id"`
	TaskID    *int         `json:"task_id"`
	LogType   plan.LogType `json:"log_type"`
	Content   string       `json:"content"`
	CreatedAt Timestamp    `json:"created_at"`
}

func (l executionLog) toPlan() plan.ExecutionLog {
	return plan.ExecutionLog{
		ID:        l.ID,
		TaskID:    l.TaskID,
		LogType:   l.LogType,
		Content:   l.Content,
		CreatedAt: l.CreatedAt.Time,
	}
}

// TestCommand is a test invocation run in the project's repository.
type TestCommand struct {
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
}

// TestResult is the outcome of a test command.
type TestResult struct {
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	ReturnCode int    `json:"returncode"`
}

// Passed reports whether the command exited successfully.
func (r TestResult) Passed() bool {
	return r.ReturnCode == 0
}

// TestLog is a recorded test run.
type TestLog struct {
	ID        int       `json:"id"`
	Content   string    `json:"content"`
	CreatedAt Timestamp `json:"created_at"`
}

// PullRequestRequest asks the backend to open a pull request.
type PullRequestRequest struct {
	GitHubToken string `json:"github_token"`
	BaseBranch  string `json:"base_branch"`
}

// CreatedPullRequest is the backend's reply to a pull request creation.
type CreatedPullRequest struct {
	PRID       int    `json:"pr_id"`
	BranchName string `json:"branch_name"`
	PRURL      string `json:"pr_url"`
	PRNumber   int    `json:"pr_number"`
}

// PullRequest is a stored pull request record.
type PullRequest struct {
	ID         int       `json:"id"`
	BranchName string    `json:"branch_name"`
	PRURL      string    `json:"pr_url"`
	PRNumber   int       `json:"pr_number"`
	Status     string    `json:"status"`
	CreatedAt  Timestamp `json:"created_at"`
}
