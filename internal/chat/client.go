// Package chat is the conversation facade: it wires the session identity,
// the event channel, the stream router, the conversation store and the plan
// gate, and exposes the user operations.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zjrosen/sleuth/internal/channel"
	"github.com/zjrosen/sleuth/internal/conversation"
	"github.com/zjrosen/sleuth/internal/docstore"
	"github.com/zjrosen/sleuth/internal/flags"
	"github.com/zjrosen/sleuth/internal/log"
	"github.com/zjrosen/sleuth/internal/plan"
	"github.com/zjrosen/sleuth/internal/pubsub"
	"github.com/zjrosen/sleuth/internal/stream"
	"github.com/zjrosen/sleuth/internal/tracing"
)

// Channel events exchanged with the agent.
const (
	EventChatMessage    = "chat_message"
	EventChatResponse   = "chat_response"
	EventPing           = "ping"
	EventPong           = "pong"
	EventConnected      = "connected"
	EventDisconnected   = "disconnected"
	EventBuildWidget    = "build_widget"
	EventWidgetUpdate   = "widget_update"
	EventWidgetResponse = "widget_response"
)

const (
	sendFailedContent     = "Sorry, I encountered an error processing your request. Please try again."
	defaultReconnectDelay = 500 * time.Millisecond
)

var (
	// ErrEmptyMessage is returned for blank input.
	ErrEmptyMessage = errors.New("chat: empty message")
	// ErrTurnInProgress is returned by SendMessage while a turn is loading.
	ErrTurnInProgress = errors.New("chat: a turn is already in progress")
)

// Channel is the event channel the client drives.
type Channel interface {
	On(event string, h channel.Handler)
	Connect(ctx context.Context) error
	Disconnect()
	Emit(event string, payload any) error
	Connected() bool
	Close() error
}

// Documents is the subset of the document store used for probes.
type Documents interface {
	Health(ctx context.Context) (docstore.Health, error)
	Tools(ctx context.Context) ([]conversation.Tool, error)
	Invalidate(ctx context.Context, kind docstore.Kind)
}

// Identity supplies the tab id.
type Identity interface {
	Get() string
}

// Options tunes a Client. The zero value is usable.
type Options struct {
	Flags  *flags.Registry
	Tracer trace.Tracer
	// ReconnectDelay is the pause between Clear's disconnect and reconnect.
	ReconnectDelay time.Duration
}

// Client runs one conversation against the agent.
type Client struct {
	identity Identity
	ch       Channel
	docs     Documents
	store    *conversation.Store
	router   *stream.Router
	gate     *plan.Gate
	flags    *flags.Registry
	tracer   trace.Tracer
	delay    time.Duration
	now      func() time.Time

	mu        sync.Mutex
	baseCtx   context.Context
	turnCtx   context.Context
	turnSpan  trace.Span
	reconnect *time.Timer
	closed    bool
}

// New wires a Client. Call Start to probe the agent and connect.
func New(identity Identity, ch Channel, docs Documents, opts Options) *Client {
	tracer := opts.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer(tracing.DefaultServiceName)
	}
	delay := opts.ReconnectDelay
	if delay <= 0 {
		delay = defaultReconnectDelay
	}

	store := conversation.NewStore()
	c := &Client{
		identity: identity,
		ch:       ch,
		docs:     docs,
		store:    store,
		router:   stream.NewRouter(store),
		gate:     plan.NewGate(ch, store),
		flags:    opts.Flags,
		tracer:   tracer,
		delay:    delay,
		now:      time.Now,
		baseCtx:  context.Background(),
	}
	c.router.Observe(c.gate.Observe)
	c.router.Observe(c.traceEvent)
	c.registerHandlers()
	return c
}

// Start probes the agent, loads its tool catalogue and opens the channel.
// A failed connect is returned but the channel keeps retrying when
// reconnection is enabled.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	c.baseCtx = context.WithoutCancel(ctx)
	c.mu.Unlock()

	c.CheckConnection(ctx)
	if err := c.RefreshTools(ctx); err != nil {
		log.Warn(log.CatDocs, "Error fetching tools", "error", err)
	}
	if err := c.ch.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	return nil
}

// SendMessage opens a new turn and sends text to the agent.
func (c *Client) SendMessage(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}

	turnID := conversation.NewTurnID()
	now := c.now()
	busy := false
	c.store.Update(func(s conversation.State) []conversation.Action {
		if s.IsLoading {
			busy = true
			return nil
		}
		return []conversation.Action{
			conversation.AddMessage{Message: conversation.NewUserMessage(turnID, text, now)},
			conversation.AddMessage{Message: conversation.NewAssistantPlaceholder(turnID, now)},
			conversation.SetLoading{Loading: true},
		}
	})
	if busy {
		return ErrTurnInProgress
	}

	c.gate.Reset()
	c.beginTurn(ctx, turnID, len(text))
	log.Info(log.CatStore, "Turn started", "turn", turnID, "length", len(text))

	if err := c.ch.Emit(EventChatMessage, map[string]string{"message": text}); err != nil {
		c.store.Update(func(conversation.State) []conversation.Action {
			return []conversation.Action{
				conversation.UpdateLastMessage{Patch: conversation.Patch{
					Content:   conversation.Ptr(sendFailedContent),
					IsLoading: conversation.Ptr(false),
					Error:     conversation.Ptr(true),
				}},
				conversation.SetLoading{Loading: false},
			}
		})
		c.router.Notify(stream.LevelError, "Failed to get response")
		c.endTurn("send_failed", err)
		log.ErrorErr(log.CatConn, "Error sending message", err, "turn", turnID)
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// ApprovePlan confirms the pending plan of the current turn.
func (c *Client) ApprovePlan(p conversation.Plan, originalQuery string) error {
	return c.approve(p, originalQuery, false)
}

// ApproveSingleWidget confirms the pending plan as a single-widget build.
func (c *Client) ApproveSingleWidget(p conversation.Plan, originalQuery string) error {
	return c.approve(p, originalQuery, true)
}

func (c *Client) approve(p conversation.Plan, originalQuery string, singleWidget bool) error {
	_, span := c.tracer.Start(c.turnContext(), tracing.SpanPlanApprove, trace.WithAttributes(
		attribute.Int(tracing.AttrPlanSteps, len(p)),
		attribute.Bool(tracing.AttrSingleWidget, singleWidget),
	))

	var err error
	if singleWidget {
		err = c.gate.ApproveSingleWidget(p, originalQuery)
	} else {
		err = c.gate.Approve(p, originalQuery)
	}
	if err != nil && !errors.Is(err, plan.ErrNoPendingPlan) {
		c.router.Notify(stream.LevelError, "Failed to confirm plan")
	}
	tracing.EndTurn(span, "approve", err)
	return err
}

// RejectPlan declines the pending plan without contacting the agent.
func (c *Client) RejectPlan(p conversation.Plan, originalQuery string) error {
	if err := c.gate.Reject(p, originalQuery); err != nil {
		return err
	}
	c.mu.Lock()
	if c.turnSpan != nil {
		c.turnSpan.AddEvent(tracing.EventPlanRejected)
	}
	c.mu.Unlock()
	c.endTurn("rejected", nil)
	return nil
}

// Clear empties the conversation and restarts the channel after a short
// delay, then probes connectivity again.
func (c *Client) Clear() {
	c.store.Update(func(conversation.State) []conversation.Action {
		return []conversation.Action{
			conversation.ClearMessages{},
			conversation.SetLoading{Loading: false},
		}
	})
	c.gate.Reset()
	c.mu.Lock()
	if c.turnSpan != nil {
		c.turnSpan.AddEvent(tracing.EventTurnCancelled)
	}
	c.mu.Unlock()
	c.endTurn("cleared", nil)
	log.Info(log.CatStore, "Conversation cleared")

	c.ch.Disconnect()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if c.reconnect != nil {
		c.reconnect.Stop()
	}
	ctx := c.baseCtx
	c.reconnect = time.AfterFunc(c.delay, func() {
		if err := c.ch.Connect(ctx); err != nil {
			log.Warn(log.CatConn, "Reconnect after clear failed", "error", err)
		}
		c.CheckConnection(ctx)
	})
}

// BuildWidget asks the agent to generate a single widget. Progress arrives
// as notifications.
func (c *Client) BuildWidget(ctx context.Context, request string) error {
	if strings.TrimSpace(request) == "" {
		return ErrEmptyMessage
	}
	_, span := c.tracer.Start(ctx, tracing.SpanBuildWidget,
		trace.WithAttributes(attribute.Int(tracing.AttrWidgetQuery, len(request))))

	err := c.ch.Emit(EventBuildWidget, map[string]string{"message": request})
	if err != nil {
		c.router.Notify(stream.LevelError, "Not connected to server")
		err = fmt.Errorf("build widget: %w", err)
	}
	tracing.EndTurn(span, "requested", err)
	return err
}

// CheckConnection probes the health endpoint and records connectivity.
// An open channel counts as connected even when the probe fails.
func (c *Client) CheckConnection(ctx context.Context) bool {
	ok := false
	h, err := c.docs.Health(ctx)
	if err != nil {
		log.Warn(log.CatDocs, "Connection check failed", "error", err)
	} else {
		ok = h.OK()
	}
	connected := ok || c.ch.Connected()
	c.store.Dispatch(conversation.SetConnected{Connected: connected})
	return connected
}

// RefreshTools reloads the agent's tool catalogue into the state.
func (c *Client) RefreshTools(ctx context.Context) error {
	tools, err := c.docs.Tools(ctx)
	if err != nil {
		return err
	}
	c.store.Dispatch(conversation.SetTools{Tools: tools})
	return nil
}

// State returns the current conversation snapshot.
func (c *Client) State() conversation.State {
	return c.store.State()
}

// Subscribe streams conversation snapshots.
func (c *Client) Subscribe(ctx context.Context) <-chan pubsub.Event[conversation.State] {
	return c.store.Subscribe(ctx)
}

// Notifications streams transient notices.
func (c *Client) Notifications(ctx context.Context) <-chan pubsub.Event[stream.Notification] {
	return c.router.Subscribe(ctx)
}

// PlanState reports the plan gate position for the current turn.
func (c *Client) PlanState() plan.State {
	return c.gate.State()
}

// Close shuts the channel and releases subscribers. The tab identity is
// kept for the next run.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.reconnect != nil {
		c.reconnect.Stop()
	}
	c.mu.Unlock()

	c.endTurn("closed", nil)
	err := c.ch.Close()
	c.router.Close()
	c.store.Close()
	return err
}

func (c *Client) registerHandlers() {
	c.ch.On(channel.EventConnect, func(json.RawMessage) {
		log.Info(log.CatConn, "Connected to server")
		c.store.Dispatch(conversation.SetConnected{Connected: true})
		if c.flags.EnabledOr(flags.FlagPingOnConnect, true) {
			if err := c.ch.Emit(EventPing, nil); err != nil {
				log.Warn(log.CatConn, "Ping failed", "error", err)
			}
		}
	})
	c.ch.On(channel.EventDisconnect, func(data json.RawMessage) {
		log.Info(log.CatConn, "Disconnected from server", "detail", string(data))
		c.store.Dispatch(conversation.SetConnected{Connected: false})
		c.mu.Lock()
		if c.turnSpan != nil {
			c.turnSpan.AddEvent(tracing.EventDisconnected)
		}
		c.mu.Unlock()
	})
	c.ch.On(channel.EventConnectError, func(data json.RawMessage) {
		log.Warn(log.CatConn, "WebSocket connection error", "detail", string(data))
		c.store.Dispatch(conversation.SetConnected{Connected: false})
	})
	c.ch.On(channel.EventReconnectFailed, func(json.RawMessage) {
		c.router.Notify(stream.LevelError, "Unable to reach the server")
	})
	c.ch.On(EventConnected, c.handleConnected)
	c.ch.On(EventPong, func(data json.RawMessage) {
		log.Debug(log.CatConn, "WebSocket ping successful", "detail", string(data))
	})
	c.ch.On(EventDisconnected, func(data json.RawMessage) {
		log.Info(log.CatConn, "Server closed session", "detail", string(data))
	})
	c.ch.On(EventChatResponse, c.router.HandleFrame)
	c.ch.On(EventWidgetUpdate, c.handleWidgetUpdate)
	c.ch.On(EventWidgetResponse, c.handleWidgetResponse)
}

type connectedPayload struct {
	Status string `json:"status"`
	SID    string `json:"sid"`
	TabID  string `json:"tabId"`
	Error  string `json:"error"`
}

func (c *Client) handleConnected(data json.RawMessage) {
	var p connectedPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn(log.CatConn, "Malformed connected event", "error", err)
		return
	}
	if p.Status == "error" {
		log.Warn(log.CatConn, "Server reported connection error", "error", p.Error)
		return
	}
	local := c.identity.Get()
	if p.TabID != "" && p.TabID != local {
		log.Warn(log.CatSession, "Server tab id differs", "server", p.TabID, "local", local)
	}
	log.Info(log.CatConn, "Server confirmed connection", "status", p.Status, "sid", p.SID, "tab", p.TabID)
}

type widgetPayload struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	Type        string `json:"type"`
	WidgetPath  string `json:"widget_path"`
	WidgetTitle string `json:"widget_title"`
}

func (c *Client) handleWidgetUpdate(data json.RawMessage) {
	var p widgetPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn(log.CatConn, "Malformed widget update", "error", err)
		return
	}
	if p.Status == "processing" && p.Message != "" {
		c.router.Notify(stream.LevelInfo, p.Message)
	}
	log.Debug(log.CatConn, "Widget update", "status", p.Status, "type", p.Type)
}

func (c *Client) handleWidgetResponse(data json.RawMessage) {
	var p widgetPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn(log.CatConn, "Malformed widget response", "error", err)
		return
	}
	switch p.Status {
	case "success":
		title := p.WidgetTitle
		if title == "" {
			title = "New Widget"
		}
		c.docs.Invalidate(c.baseCtx, docstore.KindWidget)
		c.router.Notify(stream.LevelSuccess, "Widget ready: "+title)
	case "error":
		c.router.Notify(stream.LevelError, p.Message)
	}
}

func (c *Client) beginTurn(ctx context.Context, turnID string, queryLen int) {
	c.endTurn("superseded", nil)
	tctx, span := tracing.StartTurn(ctx, c.tracer, turnID, c.identity.Get(), queryLen)
	c.mu.Lock()
	c.turnCtx = tctx
	c.turnSpan = span
	c.mu.Unlock()
}

func (c *Client) endTurn(outcome string, err error) {
	c.mu.Lock()
	span := c.turnSpan
	c.turnSpan = nil
	c.turnCtx = nil
	c.mu.Unlock()
	if span != nil {
		tracing.EndTurn(span, outcome, err)
	}
}

func (c *Client) turnContext() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.turnCtx != nil {
		return c.turnCtx
	}
	return c.baseCtx
}

// traceEvent records routed events on the turn span and ends it when the
// agent closes the turn. A plan proposal leaves the turn open.
func (c *Client) traceEvent(e stream.Event) {
	c.mu.Lock()
	span := c.turnSpan
	c.mu.Unlock()
	if span == nil {
		return
	}
	tracing.RecordStreamEvent(span, string(e.Type), e.IsPartial, e.Tool)

	switch e.Type {
	case stream.KindConfirmationNeeded:
		span.AddEvent(tracing.EventPlanProposed, trace.WithAttributes(attribute.Int(tracing.AttrPlanSteps, len(e.Plan))))
	case stream.KindError:
		c.endTurn("error", errors.New(e.Content))
	case stream.KindEnd:
		c.endTurn("completed", nil)
	}
}
