package stream

import (
	"encoding/json"

	"github.com/zjrosen/sleuth/internal/conversation"
)

const (
	defaultToolName    = "Unknown Tool"
	defaultReportTitle = "Analysis Report"
	errorPrefix        = "Error: "
)

// Actions maps one event to the store transitions it causes. ok is false
// for kinds the client does not understand. Actions never reads the clock:
// e.Timestamp must already be set.
func Actions(e Event) (actions []conversation.Action, ok bool) {
	update := func(p conversation.Patch) conversation.Action {
		return conversation.UpdateLastMessage{Patch: p}
	}
	// Closing the message also clears the global loading flag.
	closeWith := func(p conversation.Patch) []conversation.Action {
		p.IsLoading = conversation.Ptr(false)
		return []conversation.Action{update(p), conversation.SetLoading{Loading: false}}
	}

	switch e.Type {
	case KindStart, KindStatus:
		return nil, true

	case KindThinking:
		return []conversation.Action{update(conversation.Patch{
			Thinking:      e.Content,
			ThinkingSteps: []conversation.ThinkingStep{{Content: e.Content, Timestamp: e.Timestamp.Time}},
			IsLoading:     conversation.Ptr(true),
		})}, true

	case KindToolUse:
		tool := e.Tool
		if tool == "" {
			tool = defaultToolName
		}
		return []conversation.Action{update(conversation.Patch{
			ToolUse:   &conversation.ToolUse{Tool: tool, Input: e.Input, Timestamp: e.Timestamp.Time},
			IsLoading: conversation.Ptr(true),
		})}, true

	case KindContent:
		if e.IsPartial {
			return []conversation.Action{update(conversation.Patch{
				Content:   conversation.Ptr(e.Content),
				Partial:   true,
				IsLoading: conversation.Ptr(true),
			})}, true
		}
		return closeWith(conversation.Patch{Content: conversation.Ptr(e.Content)}), true

	case KindData:
		data := e.Data
		if data == nil {
			data = json.RawMessage("null")
		}
		return closeWith(conversation.Patch{Data: data}), true

	case KindChart:
		if e.Chart == nil {
			return nil, true
		}
		return []conversation.Action{update(conversation.Patch{
			Charts: []json.RawMessage{e.Chart},
		})}, true

	case KindDashboard:
		return closeWith(conversation.Patch{
			Dashboard:         conversation.Ptr(e.Content),
			DashboardMetadata: e.Metadata,
		}), true

	case KindHTMLContent:
		title := e.Title
		if title == "" {
			title = defaultReportTitle
		}
		return closeWith(conversation.Patch{
			Report:   &conversation.Report{HTML: e.Content, Title: title},
			Metadata: e.Metadata,
		}), true

	case KindDashboardFile:
		return closeWith(conversation.Patch{
			DashboardFile:     conversation.Ptr(e.Content),
			DashboardMetadata: e.Metadata,
		}), true

	case KindWidgetFile:
		return closeWith(conversation.Patch{
			WidgetFile:     conversation.Ptr(e.Content),
			WidgetMetadata: e.Metadata,
		}), true

	case KindConfirmationNeeded:
		plan := e.Plan
		if plan == nil {
			plan = conversation.Plan{}
		}
		return closeWith(conversation.Patch{
			NeedsConfirmation: conversation.Ptr(true),
			Plan:              plan,
			OriginalQuery:     conversation.Ptr(e.OriginalQuery),
		}), true

	case KindError:
		return closeWith(conversation.Patch{
			Content: conversation.Ptr(errorPrefix + e.Content),
			Error:   conversation.Ptr(true),
		}), true

	case KindEnd:
		return closeWith(conversation.Patch{}), true

	default:
		return nil, false
	}
}
