// Package toaster shows transient notifications over the chat view.
package toaster

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/zjrosen/sleuth/internal/stream"
	"github.com/zjrosen/sleuth/internal/ui/styles"
)

// DefaultDuration is how long a toast stays up.
const DefaultDuration = 3 * time.Second

// Model holds the toaster state.
type Model struct {
	message string
	level   stream.Level
	visible bool
	seq     int
}

// New creates a new toaster model.
func New() Model {
	return Model{}
}

// Show displays n and returns the command that dismisses it.
func (m Model) Show(n stream.Notification, d time.Duration) (Model, tea.Cmd) {
	m.message = n.Message
	m.level = n.Level
	m.visible = n.Message != ""
	m.seq++
	seq := m.seq
	return m, tea.Tick(d, func(time.Time) tea.Msg { return DismissMsg{seq: seq} })
}

// Update handles dismissal. A stale DismissMsg for an earlier toast is
// ignored.
func (m Model) Update(msg tea.Msg) Model {
	if d, ok := msg.(DismissMsg); ok && d.seq == m.seq {
		m.visible = false
		m.message = ""
	}
	return m
}

// Visible returns whether the toast is currently showing.
func (m Model) Visible() bool {
	return m.visible
}

// Message returns the text of the visible toast.
func (m Model) Message() string {
	return m.message
}

// View renders the toast box.
func (m Model) View() string {
	if !m.visible {
		return ""
	}

	style := lipgloss.NewStyle().
		Padding(0, 1).
		Border(lipgloss.RoundedBorder())

	var content string
	switch m.level {
	case stream.LevelError:
		style = style.BorderForeground(styles.ToastBorderErrorColor)
		content = "✗ " + m.message
	case stream.LevelSuccess:
		style = style.BorderForeground(styles.ToastBorderSuccessColor)
		content = "✓ " + m.message
	default:
		style = style.BorderForeground(styles.ToastBorderInfoColor)
		content = "i " + m.message
	}
	return style.Render(content)
}

// Overlay draws the toast bottom-center over bg, one line above the
// bottom edge.
func (m Model) Overlay(bg string, width, height int) string {
	if !m.visible {
		return bg
	}
	return place(m.View(), bg, width, height, 1)
}

// DismissMsg hides the toast it was scheduled for.
type DismissMsg struct {
	seq int
}

// place writes fg over bg with ANSI-aware splicing so styling on both sides
// survives.
func place(fg, bg string, width, height, padY int) string {
	fgLines := strings.Split(fg, "\n")
	bgLines := strings.Split(bg, "\n")
	for len(bgLines) < height {
		bgLines = append(bgLines, strings.Repeat(" ", width))
	}

	x := max((width-lipgloss.Width(fg))/2, 0)
	y := max(height-len(fgLines)-padY, 0)

	for i, line := range fgLines {
		row := y + i
		if row >= len(bgLines) {
			break
		}
		bgLine := bgLines[row]

		left := ansi.Truncate(bgLine, x, "")
		if w := ansi.StringWidth(left); w < x {
			left += strings.Repeat(" ", x-w)
		}
		var right string
		if end := x + ansi.StringWidth(line); end < ansi.StringWidth(bgLine) {
			right = ansi.TruncateLeft(bgLine, end, "")
		}
		bgLines[row] = left + line + right
	}
	return strings.Join(bgLines, "\n")
}
