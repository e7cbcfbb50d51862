package styles

import "testing"

func TestStatusColor(t *testing.T) {
	tests := []struct {
		status   string
		expected string // Expected color hex value
	}{
		{"pending", "#9CA3AF"},
		{"in_progress", "#10B981"},
		{"completed", "#A78BFA"},
		{"failed", "#F87171"},
		{"paused", "#60A5FA"},
		{"unknown", "#9CA3AF"}, // Should fall back to MutedColor
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			got := StatusColor(tt.status)
			if string(got) != tt.expected {
				t.Errorf("StatusColor(%q) = %q, want %q", tt.status, got, tt.expected)
			}
		})
	}
}

func TestStatusIcon(t *testing.T) {
	tests := []struct {
		status   string
		expected string
	}{
		{"pending", "○"},
		{"in_progress", "●"},
		{"completed", "✓"},
		{"failed", "✗"},
		{"paused", "⏸"},
		{"unknown", "●"}, // Should fall back to default
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			got := StatusIcon(tt.status)
			if got != tt.expected {
				t.Errorf("StatusIcon(%q) = %q, want %q", tt.status, got, tt.expected)
			}
		})
	}
}

func TestLogStyle(t *testing.T) {
	if LogStyle("error").GetForeground() != ErrorColor {
		t.Error("error logs should use the error color")
	}
	if LogStyle("agent_message").GetForeground() != TextColor {
		t.Error("agent messages should use the text color")
	}
}
