package execution

import (
	"context"
	"slices"
	"time"

	"github.com/buildagent/buildagent/internal/config"
	"github.com/buildagent/buildagent/internal/plan"
)

// Execution commands understood by the backend.
const (
	CommandPlay  = "play"
	CommandPause = "pause"
	CommandStop  = "stop"
)

// Commands lists the valid execution commands.
func Commands() []string {
	return []string{CommandPlay, CommandPause, CommandStop}
}

// ValidCommand reports whether cmd is an execution command.
func ValidCommand(cmd string) bool {
	return slices.Contains(Commands(), cmd)
}

// Backend is the remote side of a run. Start must succeed for a run to
// proceed; Command failures are reported but never change local state.
type Backend interface {
	Start(ctx context.Context) error
	Command(ctx context.Context, cmd string) error
}

// NopBackend accepts everything. It is used for offline runs.
type NopBackend struct{}

// Start implements Backend.
func (NopBackend) Start(context.Context) error { return nil }

// Command implements Backend.
func (NopBackend) Command(context.Context, string) error { return nil }

// StatusSink receives every task status change the engine makes.
// *plan.Board satisfies it.
type StatusSink interface {
	SetTaskStatus(taskID int, status plan.TaskStatus) (plan.TaskStatus, error)
}

// Options controls run pacing.
type Options struct {
	MaxConcurrent   int
	StepDelayMin    time.Duration
	StepDelayMax    time.Duration
	CompletionDelay time.Duration
	BatchDelay      time.Duration
	StartupDelay    time.Duration
}

// OptionsFrom builds Options from the execution config section.
func OptionsFrom(cfg config.ExecutionConfig) Options {
	return Options{
		MaxConcurrent:   cfg.MaxConcurrent,
		StepDelayMin:    cfg.StepDelayMin,
		StepDelayMax:    cfg.StepDelayMax,
		CompletionDelay: cfg.CompletionDelay,
		BatchDelay:      cfg.BatchDelay,
		StartupDelay:    cfg.StartupDelay,
	}
}

// DefaultOptions returns the pacing of the default configuration.
func DefaultOptions() Options {
	return OptionsFrom(config.Default().Execution)
}
