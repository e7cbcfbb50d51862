package execution

import (
	"fmt"

	"github.com/buildagent/buildagent/internal/plan"
)

// Run-level log lines.
const (
	LogRunStarting  = "🚀 Starting execution..."
	LogRunStopped   = "⏹️ Execution stopped by user"
	LogRunCanceled  = "⏹️ Execution canceled"
	LogRunCompleted = "✅ All tasks completed successfully!"
)

func initializingLine(n int) string {
	return fmt.Sprintf("📋 Initializing pipeline (%d tasks)", n)
}

// Step is one scripted log entry of a task.
type Step struct {
	Type    plan.LogType
	Content string
}

// TaskScript returns the log entries a task emits, in order. File entries
// are only included when the task targets a file.
func TaskScript(t plan.Task) []Step {
	steps := []Step{
		{plan.LogAgentMessage, "🚀 Starting task: " + t.Name},
		{plan.LogAgentMessage, "📋 Analyzing requirements for: " + t.Name},
		{plan.LogAgentMessage, "💻 Generating code implementation..."},
	}
	if t.HasFile() {
		path := t.File()
		steps = append(steps,
			Step{plan.LogAgentMessage, "📁 Preparing file: " + path},
			Step{plan.LogAgentMessage, "✍️ Writing code to " + path + "..."},
			Step{plan.LogCodeChange, "✅ Code written successfully to " + path},
		)
	}
	return append(steps, Step{plan.LogAgentMessage, "✨ Task completed: " + t.Name})
}
