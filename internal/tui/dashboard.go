package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/buildagent/buildagent/internal/event"
	"github.com/buildagent/buildagent/internal/plan"
	"github.com/buildagent/buildagent/internal/tui/styles"
	"github.com/buildagent/buildagent/internal/util"
)

// defaultMaxLogLines bounds the log tail when no limit is configured.
const defaultMaxLogLines = 200

// Controller is the run control surface the dashboard drives.
// *execution.Engine satisfies it.
type Controller interface {
	Start(ctx context.Context, tasks []plan.Task) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Stop(ctx context.Context) error
	Running() bool
	Paused() bool
}

// controlMsg reports the outcome of a control action run off the UI loop.
type controlMsg struct {
	action string
	err    error
}

type logLine struct {
	logType string
	content string
}

// DashboardModel shows a run's task board, progress and log tail, and maps
// keys onto run control.
type DashboardModel struct {
	ctx     context.Context
	ctrl    Controller
	board   *plan.Board
	taskIDs []int

	spinner spinner.Model

	logs     []logLine
	maxLogs  int
	viewLogs int
	running  bool
	paused   bool
	finished *event.ExecutionFinishedEvent
	notice   string

	width    int
	height   int
	quitting bool
}

// NewDashboardModel creates a dashboard for the given task selection. The
// selection is re-read from board whenever a run starts.
func NewDashboardModel(ctx context.Context, ctrl Controller, board *plan.Board, tasks []plan.Task, maxLogLines int) DashboardModel {
	if maxLogLines <= 0 {
		maxLogLines = defaultMaxLogLines
	}
	ids := make([]int, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = styles.Secondary

	return DashboardModel{
		ctx:      ctx,
		ctrl:     ctrl,
		board:    board,
		taskIDs:  ids,
		spinner:  sp,
		maxLogs:  maxLogLines,
		viewLogs: 12,
		width:    100,
		height:   40,
	}
}

// Init starts the spinner.
func (m DashboardModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// selection returns the current board state of the selected tasks.
func (m DashboardModel) selection() []plan.Task {
	out := make([]plan.Task, 0, len(m.taskIDs))
	for _, id := range m.taskIDs {
		if t, ok := m.board.Task(id); ok {
			out = append(out, t)
		}
	}
	return out
}

// control runs fn off the UI loop and reports the result.
func (m DashboardModel) control(action string, fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return controlMsg{action: action, err: fn(m.ctx)}
	}
}

// Update handles messages.
func (m DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewLogs = max(msg.Height-m.boardHeight()-10, 3)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case controlMsg:
		if msg.err != nil {
			m.notice = styles.ErrorMsg.Render(fmt.Sprintf("Failed to %s: %v", msg.action, msg.err))
		}
		return m, nil

	case eventMsg:
		return m.handleEvent(msg.event), nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m DashboardModel) handleEvent(e event.Event) DashboardModel {
	switch e := e.(type) {
	case event.ExecutionLogEvent:
		m.logs = append(m.logs, logLine{logType: e.LogType, content: e.Content})
		if len(m.logs) > m.maxLogs {
			m.logs = m.logs[len(m.logs)-m.maxLogs:]
		}
	case event.ExecutionStateEvent:
		m.running = e.Running
		m.paused = e.Paused
		if e.State == event.StateStarted {
			m.finished = nil
			m.logs = nil
		}
	case event.ExecutionFinishedEvent:
		m.running = false
		m.paused = false
		m.finished = &e
	case event.NoticeEvent:
		switch e.Level {
		case event.NoticeError:
			m.notice = styles.ErrorMsg.Render(e.Message)
		case event.NoticeWarning:
			m.notice = styles.WarningMsg.Render(e.Message)
		case event.NoticeSuccess:
			m.notice = styles.SuccessMsg.Render(e.Message)
		default:
			m.notice = e.Message
		}
	}
	return m
}

func (m DashboardModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		m.quitting = true
		if m.ctrl.Running() {
			return m, tea.Sequence(m.control("stop", m.ctrl.Stop), tea.Quit)
		}
		return m, tea.Quit

	case "enter", "r":
		if m.ctrl.Running() {
			return m, nil
		}
		tasks := m.selection()
		m.notice = ""
		return m, m.control("start", func(ctx context.Context) error {
			return m.ctrl.Start(ctx, tasks)
		})

	case "p", " ":
		if !m.ctrl.Running() {
			return m, nil
		}
		if m.ctrl.Paused() {
			return m, m.control("resume", m.ctrl.Resume)
		}
		return m, m.control("pause", m.ctrl.Pause)

	case "s":
		if !m.ctrl.Running() {
			return m, nil
		}
		return m, m.control("stop", m.ctrl.Stop)
	}
	return m, nil
}

// View renders the model.
func (m DashboardModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(styles.Header.Render("Execution " + m.stateBadge()))
	b.WriteString("\n")

	counts := m.board.Counts()
	b.WriteString(renderProgressBar(counts.Completed, counts.Total(), 20))
	fmt.Fprintf(&b, "  %s\n", styles.Muted.Render(fmt.Sprintf(
		"%d pending · %d in progress · %d completed", counts.Pending, counts.InProgress, counts.Completed)))
	if file, ok := m.board.FirstCompletedFile(); ok {
		b.WriteString(styles.Muted.Render("Focus: ") + styles.Text.Render(file) + "\n")
	}
	b.WriteString("\n")

	b.WriteString(m.renderBoard())
	b.WriteString("\n")
	b.WriteString(styles.ContentBox.Width(max(m.width-4, 20)).Render(m.renderLogs()))
	b.WriteString("\n")

	if m.notice != "" {
		b.WriteString(m.notice)
		b.WriteString("\n")
	}
	b.WriteString(m.helpBar())
	return b.String()
}

func (m DashboardModel) stateBadge() string {
	var label string
	var color lipgloss.Color
	switch {
	case m.running && m.paused:
		label, color = "PAUSED", styles.StatusPaused
	case m.running:
		label, color = m.spinner.View()+" RUNNING", styles.StatusInProgress
	case m.finished != nil && m.finished.Err != nil:
		label, color = "FAILED", styles.StatusFailed
	case m.finished != nil && m.finished.Stopped:
		label, color = "STOPPED", styles.WarningColor
	case m.finished != nil:
		label, color = "COMPLETED", styles.StatusCompleted
	default:
		label, color = "IDLE", styles.MutedColor
	}
	return styles.StatusBadge.Foreground(color).Bold(true).Render(label)
}

func (m DashboardModel) boardHeight() int {
	n := 0
	for _, p := range m.board.Phases() {
		n += 1 + len(p.Tasks)
	}
	return n
}

func (m DashboardModel) renderBoard() string {
	var b strings.Builder
	for _, p := range m.board.Phases() {
		b.WriteString(styles.SectionTitle.Render(fmt.Sprintf("Phase %d: %s", p.PhaseNumber, p.Name)))
		b.WriteString("\n")
		for _, t := range p.Tasks {
			status := string(t.Status)
			icon := lipgloss.NewStyle().Foreground(styles.StatusColor(status)).Render(styles.StatusIcon(status))
			line := fmt.Sprintf("  %s %s", icon, t.Name)
			if t.HasFile() {
				line += " " + styles.Muted.Render(t.File())
			}
			b.WriteString(util.TruncateANSI(line, max(m.width-2, 20)))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m DashboardModel) renderLogs() string {
	if len(m.logs) == 0 {
		return styles.Muted.Render("No logs yet. Press enter to start.")
	}
	width := max(m.width-8, 20)
	lines := make([]string, 0, m.viewLogs)
	for _, l := range util.Tail(m.logs, m.viewLogs) {
		lines = append(lines, util.TruncateANSI(styles.LogStyle(l.logType).Render(l.content), width))
	}
	return strings.Join(lines, "\n")
}

func (m DashboardModel) helpBar() string {
	keys := [][2]string{{"enter", "start"}, {"q", "quit"}}
	if m.running {
		pause := "pause"
		if m.paused {
			pause = "resume"
		}
		keys = [][2]string{{"p", pause}, {"s", "stop"}, {"q", "stop & quit"}}
	}
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, styles.HelpKey.Render(k[0])+" "+k[1])
	}
	return styles.HelpBar.Render(strings.Join(parts, "  "))
}

// renderProgressBar renders a compact progress indicator.
// Example: [███░░] 3/5
func renderProgressBar(completed, total, barWidth int) string {
	if total == 0 {
		return "[" + strings.Repeat("░", barWidth) + "] 0/0"
	}
	filled := (completed * barWidth) / total
	bar := styles.Secondary.Render(strings.Repeat("█", filled)) + styles.Muted.Render(strings.Repeat("░", barWidth-filled))
	return fmt.Sprintf("[%s] %d/%d", bar, completed, total)
}
