// Package chat is the interactive terminal view of a conversation.
package chat

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	chatsvc "github.com/zjrosen/sleuth/internal/chat"
	"github.com/zjrosen/sleuth/internal/conversation"
	"github.com/zjrosen/sleuth/internal/keys"
	"github.com/zjrosen/sleuth/internal/log"
	"github.com/zjrosen/sleuth/internal/plan"
	"github.com/zjrosen/sleuth/internal/pubsub"
	"github.com/zjrosen/sleuth/internal/stream"
	"github.com/zjrosen/sleuth/internal/ui/chatrender"
	"github.com/zjrosen/sleuth/internal/ui/markdown"
	"github.com/zjrosen/sleuth/internal/ui/styles"
	"github.com/zjrosen/sleuth/internal/ui/toaster"
)

// Conversation is the facade the view drives.
type Conversation interface {
	SendMessage(ctx context.Context, text string) error
	ApprovePlan(p conversation.Plan, originalQuery string) error
	ApproveSingleWidget(p conversation.Plan, originalQuery string) error
	RejectPlan(p conversation.Plan, originalQuery string) error
	Clear()
	State() conversation.State
	Subscribe(ctx context.Context) <-chan pubsub.Event[conversation.State]
	Notifications(ctx context.Context) <-chan pubsub.Event[stream.Notification]
}

const inputHeight = 3

// Model is the bubbletea model of the chat view.
type Model struct {
	ctx  context.Context
	conv Conversation

	state         conversation.State
	states        *pubsub.ContinuousListener[conversation.State]
	notifications *pubsub.ContinuousListener[stream.Notification]

	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model
	toaster  toaster.Model
	help     help.Model
	md       *markdown.Renderer
	mdStyle  string

	showThinking bool
	width        int
	height       int
	ready        bool
}

// New creates the view. ctx bounds the store and notification listeners.
func New(ctx context.Context, conv Conversation, markdownStyle string) Model {
	ta := textarea.New()
	ta.Placeholder = "Ask about your data…"
	ta.ShowLineNumbers = false
	ta.CharLimit = 4000
	ta.SetHeight(inputHeight)
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(styles.AssistantColor)

	return Model{
		ctx:           ctx,
		conv:          conv,
		state:         conv.State(),
		states:        pubsub.NewContinuousListener[conversation.State](ctx, conv),
		notifications: pubsub.NewContinuousListener(ctx, pubsub.SubscriberFunc[stream.Notification](conv.Notifications)),
		input:         ta,
		spinner:       sp,
		toaster:       toaster.New(),
		help:          newHelp(),
		mdStyle:       markdownStyle,
	}
}

// Init starts listening and the spinner.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick, m.states.Listen(), m.notifications.Listen())
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m = m.resize(msg.Width, msg.Height)
		return m, nil

	case pubsub.Event[conversation.State]:
		m.state = msg.Payload
		m = m.refresh()
		return m, m.states.Listen()

	case pubsub.Event[stream.Notification]:
		var cmd tea.Cmd
		m.toaster, cmd = m.toaster.Show(msg.Payload, toaster.DefaultDuration)
		return m, tea.Batch(cmd, m.notifications.Listen())

	case toaster.DismissMsg:
		m.toaster = m.toaster.Update(msg)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if cmd, handled := m.handleKey(msg); handled {
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// pendingPlan returns the last message when it awaits confirmation.
func (m Model) pendingPlan() (conversation.Message, bool) {
	last, ok := m.state.LastMessage()
	if !ok || !last.NeedsConfirmation {
		return conversation.Message{}, false
	}
	return last, true
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch {
	case key.Matches(msg, keys.Chat.Quit):
		return tea.Quit, true
	case key.Matches(msg, keys.Chat.Clear):
		m.conv.Clear()
		return nil, true
	case key.Matches(msg, keys.Chat.ToggleThinking):
		m.showThinking = !m.showThinking
		*m = m.refresh()
		return nil, true
	case key.Matches(msg, keys.Chat.Help):
		m.help.ShowAll = !m.help.ShowAll
		if m.ready {
			*m = m.resize(m.width, m.height)
		}
		return nil, true
	case key.Matches(msg, keys.Chat.Send):
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return nil, true
		}
		if !m.state.IsConnected {
			return m.toast(stream.LevelError, "Not connected to server"), true
		}
		if err := m.conv.SendMessage(m.ctx, text); err != nil {
			return m.failed(err), true
		}
		m.input.Reset()
		return nil, true
	}

	// Plan decisions only apply while the input is empty.
	if plan, ok := m.pendingPlan(); ok && m.input.Value() == "" {
		var err error
		switch {
		case key.Matches(msg, keys.Chat.Approve):
			err = m.conv.ApprovePlan(plan.Plan, plan.OriginalQuery)
		case key.Matches(msg, keys.Chat.ApproveWidget):
			err = m.conv.ApproveSingleWidget(plan.Plan, plan.OriginalQuery)
		case key.Matches(msg, keys.Chat.Reject):
			err = m.conv.RejectPlan(plan.Plan, plan.OriginalQuery)
		default:
			return nil, false
		}
		if err != nil {
			return m.failed(err), true
		}
		return nil, true
	}
	return nil, false
}

// failed surfaces errors the conversation does not announce itself.
func (m *Model) failed(err error) tea.Cmd {
	log.Warn(log.CatUI, "Action failed", "error", err)
	var text string
	switch {
	case errors.Is(err, chatsvc.ErrTurnInProgress):
		text = "Wait for the current answer to finish"
	case errors.Is(err, plan.ErrNoPendingPlan):
		text = "No plan is waiting for approval"
	default:
		return nil
	}
	return m.toast(stream.LevelInfo, text)
}

func (m *Model) toast(level stream.Level, text string) tea.Cmd {
	var cmd tea.Cmd
	m.toaster, cmd = m.toaster.Show(stream.Notification{Level: level, Message: text}, toaster.DefaultDuration)
	return cmd
}

func (m Model) resize(width, height int) Model {
	m.width, m.height = width, height
	m.input.SetWidth(max(width-2, 10))

	m.help.Width = width
	vpHeight := max(height-inputHeight-3-lipgloss.Height(m.help.View(keys.Chat)), 1)
	if !m.ready {
		m.viewport = viewport.New(width, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = vpHeight
	}

	if mdWidth := max(width-4, 20); m.md == nil || m.md.Width() != mdWidth {
		r, err := markdown.New(mdWidth, m.mdStyle)
		if err != nil {
			log.Warn(log.CatUI, "Markdown renderer unavailable", "error", err)
		} else {
			m.md = r
		}
	}
	return m.refresh()
}

func (m Model) refresh() Model {
	if !m.ready {
		return m
	}
	cfg := chatrender.Config{Width: m.width, ShowThinking: m.showThinking}
	if m.md != nil {
		cfg.Markdown = m.md
	}
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(chatrender.Render(m.state.Messages, cfg))
	if atBottom || m.state.IsLoading {
		m.viewport.GotoBottom()
	}
	return m
}

// View renders the view.
func (m Model) View() string {
	if !m.ready {
		return "Connecting…"
	}

	status := styles.ConnectionBadge(m.state.IsConnected)
	if m.state.IsLoading {
		status += "  " + m.spinner.View() + " thinking"
	}
	if _, ok := m.pendingPlan(); ok {
		status += "  " + lipgloss.NewStyle().Foreground(styles.PlanColor).Render("plan awaiting approval")
	}
	if n := len(m.state.Tools); n > 0 {
		status += styles.MutedStyle.Render("  · " + pluralTools(n))
	}
	bar := styles.StatusBarStyle.Render(styles.TruncateString(status, max(m.width-2, 1)))

	body := lipgloss.JoinVertical(lipgloss.Left,
		m.viewport.View(),
		bar,
		styles.InputBorderFocusStyle.Width(max(m.width-2, 10)).Render(m.input.View()),
		styles.StatusBarStyle.Render(m.help.View(keys.Chat)),
	)
	return m.toaster.Overlay(body, m.width, m.height)
}

func newHelp() help.Model {
	h := help.New()
	h.Styles.ShortKey = lipgloss.NewStyle().Foreground(styles.TextDescriptionColor)
	h.Styles.ShortDesc = styles.MutedStyle
	h.Styles.ShortSeparator = styles.MutedStyle
	h.Styles.FullKey = h.Styles.ShortKey
	h.Styles.FullDesc = h.Styles.ShortDesc
	h.Styles.FullSeparator = h.Styles.ShortSeparator
	return h
}

func pluralTools(n int) string {
	if n == 1 {
		return "1 tool"
	}
	return strconv.Itoa(n) + " tools"
}
