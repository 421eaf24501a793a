package toaster

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/sleuth/internal/stream"
)

func TestShowAndDismiss(t *testing.T) {
	m := New()
	require.False(t, m.Visible())
	require.Empty(t, m.View())

	m, cmd := m.Show(stream.Notification{Level: stream.LevelError, Message: "Failed to get response"}, time.Millisecond)
	require.NotNil(t, cmd)
	require.True(t, m.Visible())
	require.Contains(t, m.View(), "Failed to get response")

	m = m.Update(cmd())
	require.False(t, m.Visible())
}

func TestStaleDismissIgnored(t *testing.T) {
	m := New()
	m, first := m.Show(stream.Notification{Level: stream.LevelInfo, Message: "one"}, time.Millisecond)
	m, _ = m.Show(stream.Notification{Level: stream.LevelSuccess, Message: "two"}, time.Hour)

	m = m.Update(first())
	require.True(t, m.Visible())
	require.Equal(t, "two", m.Message())
}

func TestOverlay(t *testing.T) {
	bg := strings.Repeat(strings.Repeat(".", 40)+"\n", 9) + strings.Repeat(".", 40)

	m := New()
	require.Equal(t, bg, m.Overlay(bg, 40, 10))

	m, _ = m.Show(stream.Notification{Level: stream.LevelSuccess, Message: "ok"}, time.Second)
	out := m.Overlay(bg, 40, 10)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 10)
	require.Contains(t, ansi.Strip(lines[7]), "ok")
	require.Equal(t, strings.Repeat(".", 40), lines[0])
	for _, l := range lines {
		require.Equal(t, 40, ansi.StringWidth(l))
	}
}

func TestPlace_PadsShortBackground(t *testing.T) {
	out := place("X", "", 5, 3, 0)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 3)
	require.Equal(t, "  X  ", lines[2])
}
