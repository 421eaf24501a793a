// Package keys contains keybinding definitions.
package keys

import "github.com/charmbracelet/bubbles/key"

// ChatKeys defines the keybindings of the chat view.
type ChatKeys struct {
	// Input
	Send  key.Binding
	Clear key.Binding

	// Plan decisions, active only while a plan is pending and the input
	// is empty.
	Approve       key.Binding
	ApproveWidget key.Binding
	Reject        key.Binding

	// View
	ScrollUp       key.Binding
	ScrollDown     key.Binding
	ToggleThinking key.Binding

	// General
	Help key.Binding
	Quit key.Binding
}

// Chat is the default chat keymap.
var Chat = ChatKeys{
	Send: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "send"),
	),
	Clear: key.NewBinding(
		key.WithKeys("ctrl+l"),
		key.WithHelp("ctrl+l", "new chat"),
	),
	Approve: key.NewBinding(
		key.WithKeys("y"),
		key.WithHelp("y", "approve plan"),
	),
	ApproveWidget: key.NewBinding(
		key.WithKeys("w"),
		key.WithHelp("w", "approve as widget"),
	),
	Reject: key.NewBinding(
		key.WithKeys("n"),
		key.WithHelp("n", "reject plan"),
	),
	ScrollUp: key.NewBinding(
		key.WithKeys("pgup"),
		key.WithHelp("pgup", "scroll up"),
	),
	ScrollDown: key.NewBinding(
		key.WithKeys("pgdown"),
		key.WithHelp("pgdn", "scroll down"),
	),
	ToggleThinking: key.NewBinding(
		key.WithKeys("ctrl+t"),
		key.WithHelp("ctrl+t", "thinking"),
	),
	Help: key.NewBinding(
		key.WithKeys("f1"),
		key.WithHelp("f1", "more keys"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c", "esc"),
		key.WithHelp("esc", "quit"),
	),
}

// PlanKeys returns the plan decision bindings.
func (k ChatKeys) PlanKeys() []key.Binding {
	return []key.Binding{k.Approve, k.ApproveWidget, k.Reject}
}

// ShortHelp implements help.KeyMap.
func (k ChatKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Send, k.Clear, k.ToggleThinking, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k ChatKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Send, k.Clear, k.ToggleThinking},
		k.PlanKeys(),
		{k.ScrollUp, k.ScrollDown},
		{k.Help, k.Quit},
	}
}
