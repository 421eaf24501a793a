// Package styles contains Lip Gloss style definitions.
package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
)

var (
	// Text hierarchy
	TextPrimaryColor     = lipgloss.AdaptiveColor{Light: "#2D3436", Dark: "#CCCCCC"}
	TextMutedColor       = lipgloss.AdaptiveColor{Light: "#9CA0B0", Dark: "#696969"} // Hints, help text, footers
	TextDescriptionColor = lipgloss.AdaptiveColor{Light: "#666666", Dark: "#999999"}

	BorderDefaultColor = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#696969"}
	BorderFocusColor   = lipgloss.AdaptiveColor{Light: "#1E66F5", Dark: "#89B4FA"}

	// Status
	StatusSuccessColor = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	StatusWarningColor = lipgloss.AdaptiveColor{Light: "#DF8E1D", Dark: "#FECA57"}
	StatusErrorColor   = lipgloss.AdaptiveColor{Light: "#D20F39", Dark: "#FF8787"}

	// Roles
	UserColor      = lipgloss.AdaptiveColor{Light: "#FB923C", Dark: "#FB923C"}
	AssistantColor = lipgloss.AdaptiveColor{Light: "#179299", Dark: "#179299"}
	ThinkingColor  = lipgloss.AdaptiveColor{Light: "#8839EF", Dark: "#CBA6F7"}
	ToolColor      = lipgloss.AdaptiveColor{Light: "#999999", Dark: "#666666"}
	PlanColor      = lipgloss.AdaptiveColor{Light: "#1E66F5", Dark: "#89B4FA"}

	// Toast borders
	ToastBorderSuccessColor = StatusSuccessColor
	ToastBorderErrorColor   = StatusErrorColor
	ToastBorderInfoColor    = lipgloss.AdaptiveColor{Light: "#1E66F5", Dark: "#89B4FA"}
)

var (
	RoleStyle     = lipgloss.NewStyle().Bold(true)
	MutedStyle    = lipgloss.NewStyle().Foreground(TextMutedColor)
	ThinkingStyle = lipgloss.NewStyle().Foreground(ThinkingColor).Italic(true)
	ToolStyle     = lipgloss.NewStyle().Foreground(ToolColor)
	ErrorStyle    = lipgloss.NewStyle().Foreground(StatusErrorColor)

	PlanBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(PlanColor).
			Padding(0, 1)

	InputBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(BorderDefaultColor)

	InputBorderFocusStyle = InputBorderStyle.BorderForeground(BorderFocusColor)

	StatusBarStyle = lipgloss.NewStyle().Foreground(TextDescriptionColor).Padding(0, 1)
)

// ConnectionBadge renders the connectivity indicator.
func ConnectionBadge(connected bool) string {
	if connected {
		return lipgloss.NewStyle().Foreground(StatusSuccessColor).Render("● connected")
	}
	return lipgloss.NewStyle().Foreground(StatusErrorColor).Render("○ disconnected")
}

// TruncateString truncates a string to fit within maxWidth, adding ellipsis if needed.
func TruncateString(s string, maxWidth int) string {
	if maxWidth < 1 {
		return ""
	}
	if lipgloss.Width(s) <= maxWidth {
		return s
	}
	if maxWidth <= 3 {
		return truncate.String("...", uint(maxWidth))
	}
	return truncate.StringWithTail(s, uint(maxWidth), "...")
}
