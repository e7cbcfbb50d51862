package cmd

import (
	"context"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/buildagent/buildagent/internal/errors"
	"github.com/buildagent/buildagent/internal/event"
	"github.com/buildagent/buildagent/internal/execution"
	"github.com/buildagent/buildagent/internal/plan"
	"github.com/buildagent/buildagent/internal/tui"
)

var executeCmd = &cobra.Command{
	Use:   "execute",
	Short: "Run the project's pending tasks",
	Long: `Run the project's pending tasks with live progress.

In a terminal this opens the execution dashboard (enter starts, p pauses or
resumes, s stops, q quits). When output is piped the run starts at once and
each log line and status change is printed.

Examples:
  # Run every pending task
  buildagent execute --project 3

  # Only tasks whose file path or name matches a glob
  buildagent execute --project 3 --only 'internal/**'`,
	RunE: runExecute,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Compare local task counts with the backend's execution status",
	RunE:  runStatus,
}

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show the project's execution logs",
	RunE:  runLogs,
}

var (
	executeOnly  string
	executePlain bool

	logsTask  int
	logsTypes []string
)

func init() {
	rootCmd.AddCommand(executeCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(logsCmd)

	executeCmd.Flags().StringVar(&executeOnly, "only", "", "glob selecting tasks by file path or name")
	executeCmd.Flags().BoolVar(&executePlain, "plain", false, "print lines instead of the dashboard")

	logsCmd.Flags().IntVarP(&logsTask, "task", "t", 0, "only logs of this task id")
	logsCmd.Flags().StringSliceVar(&logsTypes, "type", nil, "only these log types (agent_message, code_change, error, test_result)")
}

func runExecute(cmd *cobra.Command, args []string) error {
	id, err := projectID()
	if err != nil {
		return err
	}
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	phases, err := s.client.GetTasks(ctx, id)
	if err != nil {
		return err
	}
	board := plan.NewBoard(phases)

	tasks, err := plan.SelectTasks(board.PendingTasks(), executeOnly)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		return errors.ErrNoPendingTasks
	}

	logger := s.logger.WithProject(id)
	backend := s.client.ExecutionBackend(id)
	bus := event.NewBus(logger)
	engine := execution.NewEngine(execution.OptionsFrom(s.cfg.Execution), backend, board, bus, logger)

	var poller *execution.Poller
	if interval := s.cfg.Execution.PollInterval; interval > 0 {
		poller = execution.NewPoller(backend, board, interval, logger)
		go func() { _ = poller.Run(ctx) }()
	}

	out := cmd.OutOrStdout()
	if useTUI(s.cfg, executePlain) {
		err = runDashboard(ctx, engine, board, tasks, bus, s.cfg.TUI.MaxLogLines)
	} else {
		err = runPlain(ctx, out, engine, tasks, bus)
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(out, formatCounts(board.Counts()))
	if poller != nil {
		printBackendStatus(ctx, out, poller)
	}
	return nil
}

// printBackendStatus polls once more so the summary reflects the backend
// after the run, then prints its counts.
func printBackendStatus(ctx context.Context, out io.Writer, poller *execution.Poller) {
	_ = poller.Poll(ctx)
	last, ok := poller.Last()
	if !ok {
		return
	}
	fmt.Fprintf(out, "Backend: %s (%d poll(s))\n", formatCounts(last.TaskStatuses), poller.Polls())
}

func runDashboard(ctx context.Context, engine *execution.Engine, board *plan.Board, tasks []plan.Task, bus *event.Bus, maxLogLines int) error {
	model := tui.NewDashboardModel(ctx, engine, board, tasks, maxLogLines)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	bridge := tui.NewBridge(bus, p)
	defer bridge.Close()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("dashboard failed: %w", err)
	}

	// The dashboard stops a run on quit; this covers a program killed by ctx.
	if engine.Running() {
		_ = engine.Stop(context.WithoutCancel(ctx))
		_ = engine.Wait()
	}
	return nil
}

func runPlain(ctx context.Context, out io.Writer, engine *execution.Engine, tasks []plan.Task, bus *event.Bus) error {
	printer := tui.NewLinePrinter(out, bus)
	defer printer.Close()

	if err := engine.Start(ctx, tasks); err != nil {
		return err
	}
	err := engine.Wait()
	if err != nil && ctx.Err() != nil {
		// Interrupted; the canceled log line was already printed.
		return nil
	}
	return err
}

func runStatus(cmd *cobra.Command, args []string) error {
	id, err := projectID()
	if err != nil {
		return err
	}
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.Close()

	backend := s.client.ExecutionBackend(id)
	phases, err := backend.Phases(cmd.Context())
	if err != nil {
		return err
	}
	status, err := backend.Status(cmd.Context())
	if err != nil {
		return err
	}

	local := plan.CountTasks(plan.Dedupe(phases))
	out := cmd.OutOrStdout()

	state := "idle"
	if status.Running {
		state = "running"
	}
	fmt.Fprintf(out, "Project %d: %s (%s)\n", id, orDefault(status.ProjectStatus, "unknown"), state)
	if status.CurrentTask != nil {
		fmt.Fprintf(out, "Current task: %d\n", *status.CurrentTask)
	}
	fmt.Fprintf(out, "Tasks:   %s\n", formatCounts(local))
	fmt.Fprintf(out, "Backend: %s\n", formatCounts(status.TaskStatuses))
	if local != status.TaskStatuses {
		fmt.Fprintln(out, "Task lists disagree; the backend may still be updating")
	}
	return nil
}

func runLogs(cmd *cobra.Command, args []string) error {
	id, err := projectID()
	if err != nil {
		return err
	}
	asYAML, err := wantYAML()
	if err != nil {
		return err
	}
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.Close()

	var filter execution.LogFilter
	if logsTask > 0 {
		filter.TaskID = &logsTask
	}
	for _, t := range logsTypes {
		filter.Types = append(filter.Types, plan.LogType(t))
	}

	entries, err := s.client.ExecutionLogs(cmd.Context(), id, filter.TaskID)
	if err != nil {
		return err
	}

	var shown []plan.ExecutionLog
	for _, e := range entries {
		if filter.Matches(e) {
			shown = append(shown, e)
		}
	}

	out := cmd.OutOrStdout()
	if asYAML {
		return printYAML(out, shown)
	}
	if len(shown) == 0 {
		fmt.Fprintln(out, "No logs")
		return nil
	}
	for _, e := range shown {
		line := fmt.Sprintf("%s %-13s %s", e.CreatedAt.Format("15:04:05"), e.LogType, e.Content)
		if e.TaskID != nil {
			line = fmt.Sprintf("%s %-13s [task %d] %s", e.CreatedAt.Format("15:04:05"), e.LogType, *e.TaskID, e.Content)
		}
		fmt.Fprintln(out, line)
	}
	return nil
}
