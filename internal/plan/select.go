package plan

import (
	"github.com/gobwas/glob"

	"github.com/buildagent/buildagent/internal/errors"
)

// SelectTasks returns the tasks whose file path or name matches pattern, in
// input order. The pattern uses glob syntax with '/' as the separator, so
// "internal/**" matches nested paths and "*" stays within one segment.
// An empty pattern selects every task.
func SelectTasks(tasks []Task, pattern string) ([]Task, error) {
	if pattern == "" {
		return tasks, nil
	}

	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, errors.NewValidationError("invalid task pattern").
			WithField("only").
			WithValue(pattern).
			WithCause(err)
	}

	var out []Task
	for _, t := range tasks {
		if (t.HasFile() && g.Match(*t.FilePath)) || g.Match(t.Name) {
			out = append(out, t)
		}
	}
	return out, nil
}
