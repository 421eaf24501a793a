package chatrender

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/sleuth/internal/conversation"
)

type fakeMarkdown struct {
	err error
}

func (f fakeMarkdown) Render(md string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "MD:" + md, nil
}

func plain(s string) string { return ansi.Strip(s) }

func TestRender_Turn(t *testing.T) {
	msgs := []conversation.Message{
		{Role: conversation.RoleUser, Content: "How did revenue change?"},
		{Role: conversation.RoleAssistant, Content: "It grew.", Thinking: "Looking at Q3",
			ToolUse: &conversation.ToolUse{Tool: "run_sql"}},
	}
	out := plain(Render(msgs, Config{Width: 60, ShowThinking: true}))

	require.Contains(t, out, "You\nHow did revenue change?")
	require.Contains(t, out, "Sleuth\n")
	require.Contains(t, out, "Looking at Q3")
	require.Contains(t, out, "╰╴ run_sql")
	require.True(t, strings.HasSuffix(out, "It grew."))
}

func TestRender_HidesThinkingByDefault(t *testing.T) {
	msgs := []conversation.Message{{Role: conversation.RoleAssistant, Content: "x", Thinking: "secret"}}
	require.NotContains(t, plain(Render(msgs, Config{Width: 40})), "secret")
}

func TestRenderAssistant_Markdown(t *testing.T) {
	msg := conversation.Message{Role: conversation.RoleAssistant, Content: "**bold**"}
	require.Contains(t, RenderAssistant(msg, Config{Width: 40, Markdown: fakeMarkdown{}}), "MD:**bold**")

	// Renderer failure falls back to plain text.
	out := RenderAssistant(msg, Config{Width: 40, Markdown: fakeMarkdown{err: errors.New("boom")}})
	require.Contains(t, plain(out), "**bold**")
	require.NotContains(t, out, "MD:")
}

func TestRenderAssistant_LoadingAndError(t *testing.T) {
	loading := RenderAssistant(conversation.Message{Role: conversation.RoleAssistant, IsLoading: true}, Config{Width: 40})
	require.Contains(t, plain(loading), "…")

	failed := RenderAssistant(conversation.Message{
		Role: conversation.RoleAssistant, Content: "Error: boom", Error: true,
	}, Config{Width: 40, Markdown: fakeMarkdown{}})
	require.Contains(t, plain(failed), "Error: boom")
	require.NotContains(t, failed, "MD:")
}

func TestRenderAssistant_Attachments(t *testing.T) {
	msg := conversation.Message{
		Role:          conversation.RoleAssistant,
		Content:       "done",
		Data:          json.RawMessage(`[1,2]`),
		Charts:        []json.RawMessage{json.RawMessage(`{}`), json.RawMessage(`{}`)},
		DashboardFile: "sales.html",
		WidgetFile:    "kpi.html",
		Report:        &conversation.Report{Title: "Q3"},
	}
	out := plain(RenderAssistant(msg, Config{Width: 80}))
	require.Contains(t, out, "[data]")
	require.Contains(t, out, "[2 chart(s)]")
	require.Contains(t, out, "[dashboard sales.html]")
	require.Contains(t, out, "[widget kpi.html]")
	require.Contains(t, out, "[report: Q3]")
}

func TestRenderAssistant_PendingPlan(t *testing.T) {
	msg := conversation.Message{
		Role:              conversation.RoleAssistant,
		Content:           "Please confirm",
		NeedsConfirmation: true,
		Plan: conversation.Plan{
			{StepNumber: 1, AgentName: "sql_agent"},
			{StepNumber: 2, AgentName: "chart_agent", ClarificationMessage: "bar chart"},
		},
	}
	out := plain(RenderAssistant(msg, Config{Width: 60}))
	require.Contains(t, out, "Proposed plan")
	require.Contains(t, out, "1. sql_agent")
	require.Contains(t, out, "2. chart_agent")
	require.Contains(t, out, "bar chart")
	require.Contains(t, out, "[y] approve")
}

func TestRenderPlan_Empty(t *testing.T) {
	require.Contains(t, plain(RenderPlan(nil, 40)), "(no steps)")
}

func TestWordWrap(t *testing.T) {
	require.Equal(t, "one two\nthree", WordWrap("one two three", 8))
	require.Equal(t, "keep\n\nbreaks", WordWrap("keep\n\nbreaks", 20))
	require.Equal(t, "untouched", WordWrap("untouched", 0))
}
