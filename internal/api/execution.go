package api

import (
	"context"

	"github.com/buildagent/buildagent/internal/execution"
	"github.com/buildagent/buildagent/internal/plan"
)

var (
	_ execution.Backend      = (*ProjectExecution)(nil)
	_ execution.StatusSource = (*ProjectExecution)(nil)
)

// ProjectExecution binds the execution endpoints to one project so the
// engine and the status poller can drive it.
type ProjectExecution struct {
	client    *Client
	projectID int
}

// ExecutionBackend returns the execution view of a project.
func (c *Client) ExecutionBackend(projectID int) *ProjectExecution {
	return &ProjectExecution{client: c, projectID: projectID}
}

// ProjectID returns the bound project id.
func (p *ProjectExecution) ProjectID() int {
	return p.projectID
}

// Start implements execution.Backend.
func (p *ProjectExecution) Start(ctx context.Context) error {
	_, err := p.client.StartExecution(ctx, p.projectID)
	return err
}

// Command implements execution.Backend.
func (p *ProjectExecution) Command(ctx context.Context, cmd string) error {
	_, err := p.client.SendCommand(ctx, p.projectID, cmd)
	return err
}

// Phases implements execution.StatusSource.
func (p *ProjectExecution) Phases(ctx context.Context) ([]plan.Phase, error) {
	return p.client.GetTasks(ctx, p.projectID)
}

// Status implements execution.StatusSource.
func (p *ProjectExecution) Status(ctx context.Context) (plan.ExecutionStatus, error) {
	return p.client.ExecutionStatus(ctx, p.projectID)
}
