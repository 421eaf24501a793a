// Package conversation holds the message log and the pure transitions that
// fold user actions and stream events into it.
package conversation

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ThinkingStep is one discrete entry of the agent's reasoning trace.
type ThinkingStep struct {
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ToolUse describes the last tool the agent invoked.
type ToolUse struct {
	Tool      string          `json:"tool"`
	Input     json.RawMessage `json:"input,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Report is an inline generated HTML document.
type Report struct {
	HTML  string `json:"html"`
	Title string `json:"title"`
}

// PlanStep is one proposed execution step.
type PlanStep struct {
	StepNumber           int    `json:"step_number"`
	AgentName            string `json:"agent_name"`
	ClarificationMessage string `json:"clarification_message,omitempty"`
}

// Plan is an ordered list of steps awaiting approval.
type Plan []PlanStep

// Tool is one entry of the server's tool catalogue.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ErrorInfo is the conversation-level error shown outside any message.
type ErrorInfo struct {
	Message string `json:"message"`
}

// Message is one entry of the log. User messages never change after
// creation; an assistant message is mutated while IsLoading is true.
type Message struct {
	ID        string    `json:"id"`
	TurnID    string    `json:"turn_id,omitempty"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`

	Thinking      string            `json:"thinking,omitempty"`
	ThinkingSteps []ThinkingStep    `json:"thinking_steps,omitempty"`
	ToolUse       *ToolUse          `json:"tool_use,omitempty"`
	Data          json.RawMessage   `json:"data,omitempty"`
	Charts        []json.RawMessage `json:"charts,omitempty"`

	// Each document kind keeps its own metadata: a later widget must not
	// overwrite the dashboard's.
	Dashboard         string          `json:"dashboard,omitempty"`
	DashboardFile     string          `json:"dashboard_file,omitempty"`
	DashboardMetadata json.RawMessage `json:"dashboard_metadata,omitempty"`
	WidgetFile        string          `json:"widget_file,omitempty"`
	WidgetMetadata    json.RawMessage `json:"widget_metadata,omitempty"`
	Report            *Report         `json:"report,omitempty"`
	Metadata          json.RawMessage `json:"metadata,omitempty"` // report metadata

	NeedsConfirmation bool   `json:"needs_confirmation,omitempty"`
	Plan              Plan   `json:"plan,omitempty"`
	OriginalQuery     string `json:"original_query,omitempty"`

	IsLoading bool `json:"is_loading,omitempty"`
	Error     bool `json:"error,omitempty"`
}

// State is the whole conversation. Treat values as immutable: Reduce
// always returns fresh slices for anything it changes.
type State struct {
	Messages    []Message
	IsLoading   bool
	IsConnected bool
	Error       *ErrorInfo
	Tools       []Tool
}

// LastMessage returns the newest message, if any.
func (s State) LastMessage() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// NewTurnID returns a fresh turn correlation id.
func NewTurnID() string {
	return uuid.NewString()
}

// NewUserMessage creates the user half of a turn.
func NewUserMessage(turnID, content string, now time.Time) Message {
	return Message{
		ID:        uuid.NewString(),
		TurnID:    turnID,
		Role:      RoleUser,
		Content:   content,
		Timestamp: now,
	}
}

// NewAssistantPlaceholder creates the open assistant message that stream
// events fold into.
func NewAssistantPlaceholder(turnID string, now time.Time) Message {
	return Message{
		ID:        uuid.NewString(),
		TurnID:    turnID,
		Role:      RoleAssistant,
		Timestamp: now,
		IsLoading: true,
	}
}
