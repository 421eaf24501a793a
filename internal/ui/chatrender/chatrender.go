// Package chatrender renders the conversation log as terminal text.
package chatrender

import (
	"fmt"
	"strings"

	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"

	"github.com/zjrosen/sleuth/internal/conversation"
	"github.com/zjrosen/sleuth/internal/ui/styles"
)

// Markdown renders assistant content. Nil falls back to plain wrapping.
type Markdown interface {
	Render(markdown string) (string, error)
}

// Config configures how messages are rendered.
type Config struct {
	Width        int
	UserLabel    string // default "You"
	AgentLabel   string // default "Sleuth"
	ShowThinking bool
	Markdown     Markdown
}

// Render renders every message of the log.
func Render(messages []conversation.Message, cfg Config) string {
	if cfg.UserLabel == "" {
		cfg.UserLabel = "You"
	}
	if cfg.AgentLabel == "" {
		cfg.AgentLabel = "Sleuth"
	}

	var b strings.Builder
	for i, msg := range messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if msg.Role == conversation.RoleUser {
			b.WriteString(styles.RoleStyle.Foreground(styles.UserColor).Render(cfg.UserLabel) + "\n")
			b.WriteString(WordWrap(msg.Content, cfg.Width-4))
			continue
		}
		b.WriteString(RenderAssistant(msg, cfg))
	}
	return b.String()
}

// RenderAssistant renders one assistant message: label, thinking, tool
// use, content, attachments, and a pending plan.
func RenderAssistant(msg conversation.Message, cfg Config) string {
	var b strings.Builder
	b.WriteString(styles.RoleStyle.Foreground(styles.AssistantColor).Render(cfg.AgentLabel) + "\n")

	if cfg.ShowThinking && msg.Thinking != "" {
		b.WriteString(styles.ThinkingStyle.Render(WordWrap(msg.Thinking, cfg.Width-4)) + "\n")
	}

	if msg.ToolUse != nil {
		b.WriteString(styles.ToolStyle.Render("╰╴ "+msg.ToolUse.Tool) + "\n")
	}

	switch {
	case msg.Error:
		b.WriteString(styles.ErrorStyle.Render(WordWrap(msg.Content, cfg.Width-4)))
	case msg.Content != "":
		b.WriteString(renderContent(msg.Content, cfg))
	case msg.IsLoading:
		b.WriteString(styles.MutedStyle.Render("…"))
	}

	if att := attachments(msg); len(att) > 0 {
		b.WriteString("\n" + styles.MutedStyle.Render(strings.Join(att, "  ")))
	}

	if msg.NeedsConfirmation {
		b.WriteString("\n" + RenderPlan(msg.Plan, cfg.Width))
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderPlan renders a proposed plan with its confirmation hint.
func RenderPlan(p conversation.Plan, width int) string {
	var b strings.Builder
	b.WriteString(styles.RoleStyle.Render("Proposed plan") + "\n")
	if len(p) == 0 {
		b.WriteString(styles.MutedStyle.Render("(no steps)") + "\n")
	}
	for _, step := range p {
		line := fmt.Sprintf("%d. %s", step.StepNumber, step.AgentName)
		b.WriteString(WordWrap(line, width-8) + "\n")
		if step.ClarificationMessage != "" {
			b.WriteString(indent.String(WordWrap(step.ClarificationMessage, width-11), 3) + "\n")
		}
	}
	b.WriteString(styles.MutedStyle.Render("[y] approve  [w] approve as widget  [n] reject"))
	box := styles.PlanBoxStyle
	if width > 4 {
		box = box.Width(width - 4)
	}
	return box.Render(b.String())
}

func renderContent(content string, cfg Config) string {
	if cfg.Markdown != nil {
		if out, err := cfg.Markdown.Render(content); err == nil {
			return out
		}
	}
	return WordWrap(content, cfg.Width-4)
}

func attachments(msg conversation.Message) []string {
	var out []string
	if msg.Data != nil {
		out = append(out, "[data]")
	}
	if n := len(msg.Charts); n > 0 {
		out = append(out, fmt.Sprintf("[%d chart(s)]", n))
	}
	if msg.Dashboard != "" || msg.DashboardFile != "" {
		out = append(out, "[dashboard "+msg.DashboardFile+"]")
	}
	if msg.WidgetFile != "" {
		out = append(out, "[widget "+msg.WidgetFile+"]")
	}
	if msg.Report != nil {
		out = append(out, "[report: "+msg.Report.Title+"]")
	}
	return out
}

// WordWrap wraps text at the given width, preserving explicit newlines.
func WordWrap(text string, width int) string {
	if width <= 0 {
		return text
	}
	return wordwrap.String(text, width)
}
