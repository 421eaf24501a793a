package conversation

import (
	"encoding/json"
)

// ActionType names a transition, mainly for logs.
type ActionType string

const (
	ActionAddMessage        ActionType = "ADD_MESSAGE"
	ActionUpdateLastMessage ActionType = "UPDATE_LAST_MESSAGE"
	ActionSetLoading        ActionType = "SET_LOADING"
	ActionSetConnected      ActionType = "SET_CONNECTED"
	ActionClearMessages     ActionType = "CLEAR_MESSAGES"
	ActionSetError          ActionType = "SET_ERROR"
	ActionSetTools          ActionType = "SET_TOOLS"
)

// Action is the closed set of transitions Reduce understands.
type Action interface {
	Type() ActionType
	action()
}

// AddMessage appends a message and clears the conversation error.
type AddMessage struct {
	Message Message
}

// UpdateLastMessage merges Patch into the newest message.
type UpdateLastMessage struct {
	Patch Patch
}

// SetLoading sets the global loading flag.
type SetLoading struct {
	Loading bool
}

// SetConnected sets the connectivity flag. It never touches messages.
type SetConnected struct {
	Connected bool
}

// ClearMessages empties the log and clears the conversation error.
type ClearMessages struct{}

// SetError sets (or with nil, clears) the conversation error.
type SetError struct {
	Error *ErrorInfo
}

// SetTools replaces the tool catalogue.
type SetTools struct {
	Tools []Tool
}

func (AddMessage) Type() ActionType        { return ActionAddMessage }
func (UpdateLastMessage) Type() ActionType { return ActionUpdateLastMessage }
func (SetLoading) Type() ActionType        { return ActionSetLoading }
func (SetConnected) Type() ActionType      { return ActionSetConnected }
func (ClearMessages) Type() ActionType     { return ActionClearMessages }
func (SetError) Type() ActionType          { return ActionSetError }
func (SetTools) Type() ActionType          { return ActionSetTools }

func (AddMessage) action()        {}
func (UpdateLastMessage) action() {}
func (SetLoading) action()        {}
func (SetConnected) action()      {}
func (ClearMessages) action()     {}
func (SetError) action()          {}
func (SetTools) action()          {}

// Patch is a partial update of an assistant message. Nil fields are left
// alone. Thinking, ThinkingSteps and Charts accumulate; Content accumulates
// when Partial is set and replaces otherwise; everything else replaces.
type Patch struct {
	Content *string
	Partial bool

	Thinking      string
	ThinkingSteps []ThinkingStep
	ToolUse       *ToolUse
	Data          json.RawMessage
	Charts        []json.RawMessage

	Dashboard         *string
	DashboardFile     *string
	DashboardMetadata json.RawMessage
	WidgetFile        *string
	WidgetMetadata    json.RawMessage
	Report            *Report
	Metadata          json.RawMessage

	NeedsConfirmation *bool
	Plan              Plan
	OriginalQuery     *string

	IsLoading *bool
	Error     *bool
}

// Ptr returns a pointer to v, for filling Patch fields.
func Ptr[T any](v T) *T {
	return &v
}
