// Package styles holds the lipgloss palette and styles shared by the
// terminal views.
package styles

import "github.com/charmbracelet/lipgloss"

var (
	// Colors - all colors meet WCAG AA contrast (4.5:1) on both black and dark surfaces
	PrimaryColor   = lipgloss.Color("#A78BFA") // Purple
	SecondaryColor = lipgloss.Color("#10B981") // Green
	WarningColor   = lipgloss.Color("#F59E0B") // Amber
	ErrorColor     = lipgloss.Color("#F87171") // Red
	MutedColor     = lipgloss.Color("#9CA3AF") // Gray
	SurfaceColor   = lipgloss.Color("#1F2937") // Dark surface
	TextColor      = lipgloss.Color("#F9FAFB") // Light text
	BorderColor    = lipgloss.Color("#6B7280") // Gray
	BlueColor      = lipgloss.Color("#60A5FA") // Blue

	// Convenience styles for colors
	Primary   = lipgloss.NewStyle().Foreground(PrimaryColor)
	Secondary = lipgloss.NewStyle().Foreground(SecondaryColor)
	Warning   = lipgloss.NewStyle().Foreground(WarningColor)
	Error     = lipgloss.NewStyle().Foreground(ErrorColor)
	Muted     = lipgloss.NewStyle().Foreground(MutedColor)
	Text      = lipgloss.NewStyle().Foreground(TextColor)

	// Task status colors
	StatusPending    = lipgloss.Color("#9CA3AF") // Gray
	StatusInProgress = lipgloss.Color("#10B981") // Green
	StatusCompleted  = lipgloss.Color("#A78BFA") // Purple
	StatusFailed     = lipgloss.Color("#F87171") // Red
	StatusPaused     = lipgloss.Color("#60A5FA") // Blue

	// Base styles
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(PrimaryColor).
		MarginBottom(1)

	Subtitle = lipgloss.NewStyle().
			Foreground(MutedColor).
			Italic(true)

	// Section header inside a list
	SectionTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(BlueColor)

	// Status badge styles
	StatusBadge = lipgloss.NewStyle().
			Padding(0, 1).
			MarginRight(1)

	// Content area
	ContentBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(BorderColor).
			Padding(0, 1)

	// Help bar
	HelpBar = lipgloss.NewStyle().
		Foreground(MutedColor).
		MarginTop(1)

	HelpKey = lipgloss.NewStyle().
		Bold(true).
		Foreground(SecondaryColor)

	// Header
	Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(PrimaryColor).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(BorderColor).
		MarginBottom(1)

	// Selected list row
	ItemActive = lipgloss.NewStyle().
			Bold(true).
			Foreground(TextColor).
			Background(PrimaryColor)

	// Question that needs the user's input
	ItemInputNeeded = lipgloss.NewStyle().
			Bold(true).
			Foreground(WarningColor)

	// Error message
	ErrorMsg = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)

	// Success message
	SuccessMsg = lipgloss.NewStyle().
			Foreground(SecondaryColor).
			Bold(true)

	// Warning message
	WarningMsg = lipgloss.NewStyle().
			Foreground(WarningColor).
			Bold(true)

	// Log entry styles
	LogCodeChange = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#22C55E"))

	LogError = lipgloss.NewStyle().
			Foreground(ErrorColor)

	LogTestResult = lipgloss.NewStyle().
			Foreground(BlueColor)
)

// StatusColor returns the color for a task status.
func StatusColor(status string) lipgloss.Color {
	switch status {
	case "pending":
		return StatusPending
	case "in_progress":
		return StatusInProgress
	case "completed":
		return StatusCompleted
	case "failed":
		return StatusFailed
	case "paused":
		return StatusPaused
	default:
		return MutedColor
	}
}

// StatusIcon returns an icon for a task status.
func StatusIcon(status string) string {
	switch status {
	case "pending":
		return "○"
	case "in_progress":
		return "●"
	case "completed":
		return "✓"
	case "failed":
		return "✗"
	case "paused":
		return "⏸"
	default:
		return "●"
	}
}

// LogStyle returns the style for an execution log type.
func LogStyle(logType string) lipgloss.Style {
	switch logType {
	case "code_change":
		return LogCodeChange
	case "error":
		return LogError
	case "test_result":
		return LogTestResult
	default:
		return Text
	}
}
