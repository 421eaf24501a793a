// Package stream decodes the agent's chat_response events and folds each
// one into the conversation store.
package stream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/zjrosen/sleuth/internal/conversation"
)

// Kind is the "type" discriminator of a chat_response payload.
type Kind string

const (
	KindStart              Kind = "start"
	KindStatus             Kind = "status"
	KindThinking           Kind = "thinking"
	KindToolUse            Kind = "tool_use"
	KindContent            Kind = "content"
	KindData               Kind = "data"
	KindChart              Kind = "chart"
	KindDashboard          Kind = "dashboard"
	KindHTMLContent        Kind = "html_content"
	KindDashboardFile      Kind = "dashboard_file"
	KindWidgetFile         Kind = "widget_file"
	KindConfirmationNeeded Kind = "confirmation_needed"
	KindError              Kind = "error"
	KindEnd                Kind = "end"
)

// Event is one decoded chat_response payload. Only the fields relevant to
// Type are populated by the server.
type Event struct {
	Type          Kind              `json:"type"`
	Content       string            `json:"content,omitempty"`
	IsPartial     bool              `json:"is_partial,omitempty"`
	Tool          string            `json:"tool,omitempty"`
	Input         json.RawMessage   `json:"input,omitempty"`
	Data          json.RawMessage   `json:"data,omitempty"`
	Chart         json.RawMessage   `json:"chart,omitempty"`
	Metadata      json.RawMessage   `json:"metadata,omitempty"`
	Plan          conversation.Plan `json:"plan,omitempty"`
	OriginalQuery string            `json:"original_query,omitempty"`
	Title         string            `json:"title,omitempty"`
	Timestamp     Timestamp         `json:"timestamp"`
}

// Decode parses a chat_response payload.
func Decode(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("decode chat_response: %w", err)
	}
	if e.Type == "" {
		return Event{}, fmt.Errorf("decode chat_response: missing type")
	}
	return e, nil
}

// Terminal reports whether the event closes the open assistant message.
func (e Event) Terminal() bool {
	switch e.Type {
	case KindData, KindDashboard, KindHTMLContent, KindDashboardFile, KindWidgetFile,
		KindConfirmationNeeded, KindError, KindEnd:
		return true
	case KindContent:
		return !e.IsPartial
	default:
		return false
	}
}

// Timestamp accepts RFC 3339 as well as the zone-less ISO 8601 form the
// agent emits ("2024-05-01T10:20:30.123456"), read as local time.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
		t.Time = parsed
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("timestamp: unrecognized format %q", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}
