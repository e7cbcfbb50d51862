package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/buildagent/buildagent/internal/plan"
	"github.com/buildagent/buildagent/internal/tui/styles"
)

// Output formats accepted by --output.
const (
	outputText = "text"
	outputYAML = "yaml"
)

// wantYAML reports whether --output yaml was requested. Unknown formats are
// rejected so typos do not silently fall back to text.
func wantYAML() (bool, error) {
	switch f := viper.GetString("output"); f {
	case "", outputText:
		return false, nil
	case outputYAML:
		return true, nil
	default:
		return false, fmt.Errorf("unknown output format %q (want %s or %s)", f, outputText, outputYAML)
	}
}

func printYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode yaml: %w", err)
	}
	return enc.Close()
}

// printPhases writes the phased task list with a status icon per task.
func printPhases(w io.Writer, phases []plan.Phase) {
	if len(phases) == 0 {
		fmt.Fprintln(w, "No tasks yet")
		return
	}
	for _, p := range phases {
		fmt.Fprintf(w, "Phase %d: %s\n", p.PhaseNumber, p.Name)
		for _, t := range p.Tasks {
			line := fmt.Sprintf("  %s [%d] %s", styles.StatusIcon(string(t.Status)), t.ID, t.Name)
			if t.HasFile() {
				line += " (" + t.File() + ")"
			}
			fmt.Fprintln(w, line)
		}
	}
	c := plan.CountTasks(phases)
	fmt.Fprintf(w, "\n%s\n", formatCounts(c))
}

func formatCounts(c plan.StatusCounts) string {
	return fmt.Sprintf("%d task(s): %d pending, %d in progress, %d completed, %d failed",
		c.Total(), c.Pending, c.InProgress, c.Completed, c.Failed)
}

func printList(w io.Writer, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "%s: %s\n", label, strings.Join(items, ", "))
}
