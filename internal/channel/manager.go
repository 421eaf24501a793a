// Package channel owns the bidirectional event channel to the agent: one
// WebSocket carrying named JSON events, with automatic reconnection.
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"

	"github.com/zjrosen/sleuth/internal/log"
	"github.com/zjrosen/sleuth/internal/pubsub"
)

// Reserved events raised locally rather than by the server.
const (
	EventConnect         = "connect"
	EventDisconnect      = "disconnect"
	EventConnectError    = "connect_error"
	EventReconnectFailed = "reconnect_failed"
)

var (
	// ErrNotConnected is returned by Emit while the channel is down.
	ErrNotConnected = errors.New("channel: not connected")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("channel: closed")
)

const (
	writeTimeout = 10 * time.Second
	queueSize    = 256
)

// Frame is the wire envelope of one named event.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Handler receives the payload of one event.
type Handler func(data json.RawMessage)

// Manager owns one channel. Handlers run on a single dispatch goroutine,
// in arrival order.
type Manager struct {
	endpoint string
	opts     Options

	mu              sync.Mutex
	conn            *websocket.Conn
	manual          bool // user Disconnect; suppresses reconnection
	closed          bool
	reconnecting    bool
	cancelReconnect context.CancelFunc

	writeMu sync.Mutex

	hmu      sync.RWMutex
	handlers map[string][]Handler

	stateMu   sync.Mutex
	published bool
	broker    *pubsub.Broker[bool]

	queue chan Frame
	done  chan struct{}
	wg    sync.WaitGroup
}

// New creates a Manager for endpoint without dialing. Register handlers
// with On, then call Connect.
func New(endpoint string, opts Options) (*Manager, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	if _, err := opts.handshakeURL(endpoint); err != nil {
		return nil, err
	}

	m := &Manager{
		endpoint: endpoint,
		opts:     opts,
		handlers: make(map[string][]Handler),
		broker:   pubsub.NewSnapshotBroker[bool](1),
		queue:    make(chan Frame, queueSize),
		done:     make(chan struct{}),
	}
	go m.dispatchLoop()
	return m, nil
}

// On registers h for event. Several handlers per event run in
// registration order.
func (m *Manager) On(event string, h Handler) {
	m.hmu.Lock()
	defer m.hmu.Unlock()
	m.handlers[event] = append(m.handlers[event], h)
}

// Connect dials the endpoint, bounded by the handshake timeout. It clears
// a previous Disconnect. A failed dial raises connect_error and, with
// reconnection enabled, starts retrying in the background.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.conn != nil {
		m.mu.Unlock()
		return nil
	}
	m.manual = false
	m.mu.Unlock()

	if err := m.dial(ctx); err != nil {
		m.raiseConnectError(err)
		if m.opts.Reconnection && !errors.Is(err, ErrClosed) {
			m.startReconnect()
		}
		return err
	}
	return nil
}

// Reconnect drops any current connection and dials again.
func (m *Manager) Reconnect(ctx context.Context) error {
	m.Disconnect()
	return m.Connect(ctx)
}

// Disconnect closes the connection and suppresses automatic reconnection
// until Connect or Reconnect.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.manual = true
	if m.cancelReconnect != nil {
		m.cancelReconnect()
	}
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()

	if conn != nil {
		log.Info(log.CatConn, "Disconnecting")
		m.closeConn(conn)
	}
}

// Close disconnects for good and releases subscribers. The Manager cannot
// be reused.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.manual = true
	if m.cancelReconnect != nil {
		m.cancelReconnect()
	}
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()

	if conn != nil {
		m.closeConn(conn)
	}
	m.wg.Wait()
	close(m.done)
	m.broker.Close()
	return nil
}

// Connected reports whether the channel is currently up.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn != nil
}

// Subscribe returns a channel of connectivity changes.
func (m *Manager) Subscribe(ctx context.Context) <-chan pubsub.Event[bool] {
	return m.broker.Subscribe(ctx)
}

// Emit sends event with payload marshaled as JSON. A nil payload sends
// no data.
func (m *Manager) Emit(event string, payload any) error {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	frame := Frame{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("emit %s: %w", event, err)
		}
		frame.Data = data
	}
	msg, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("emit %s: %w", event, err)
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		return fmt.Errorf("emit %s: %w: %w", event, ErrNotConnected, err)
	}
	log.Debug(log.CatConn, "emit", "event", event, "bytes", len(msg))
	return nil
}

func (m *Manager) dial(ctx context.Context) error {
	target, err := m.opts.handshakeURL(m.endpoint)
	if err != nil {
		return err
	}

	dctx, cancel := context.WithTimeout(ctx, m.opts.HandshakeTimeout)
	defer cancel()

	log.Debug(log.CatConn, "Dialing", "url", target)
	conn, resp, err := m.opts.Dialer.DialContext(dctx, target, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	m.mu.Lock()
	switch {
	case m.closed:
		m.mu.Unlock()
		_ = conn.Close()
		return ErrClosed
	case m.manual:
		m.mu.Unlock()
		_ = conn.Close()
		return fmt.Errorf("dial: %w", ErrNotConnected)
	case m.conn != nil:
		m.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	m.conn = conn
	m.wg.Add(1)
	m.mu.Unlock()

	log.Info(log.CatConn, "Connected", "url", target)
	go m.readLoop(conn)
	return nil
}

func (m *Manager) readLoop(conn *websocket.Conn) {
	defer m.wg.Done()

	m.setConnected(true)
	m.enqueue(Frame{Event: EventConnect})

	var readErr error
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			readErr = err
			break
		}
		var frame Frame
		if err := json.Unmarshal(msg, &frame); err != nil || frame.Event == "" {
			log.Warn(log.CatConn, "Dropping malformed frame", "bytes", len(msg))
			continue
		}
		m.enqueue(frame)
	}

	m.mu.Lock()
	unexpected := m.conn == conn
	if unexpected {
		m.conn = nil
	}
	reconnect := unexpected && !m.manual && !m.closed && m.opts.Reconnection
	m.mu.Unlock()
	_ = conn.Close()

	reason := "io client disconnect"
	if unexpected {
		reason = "transport close"
		log.Warn(log.CatConn, "Connection lost", "error", readErr)
	}
	m.setConnected(false)
	m.enqueue(Frame{Event: EventDisconnect, Data: mustJSON(map[string]string{"reason": reason})})

	if reconnect {
		m.startReconnect()
	}
}

func (m *Manager) startReconnect() {
	m.mu.Lock()
	if m.reconnecting || m.closed || m.manual {
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.reconnecting = true
	m.cancelReconnect = cancel
	m.wg.Add(1)
	m.mu.Unlock()

	go m.reconnectLoop(ctx, cancel)
}

func (m *Manager) reconnectLoop(ctx context.Context, cancel context.CancelFunc) {
	defer m.wg.Done()
	defer func() {
		cancel()
		m.mu.Lock()
		m.reconnecting = false
		m.cancelReconnect = nil
		m.mu.Unlock()
	}()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.opts.ReconnectionDelay
	b.MaxInterval = m.opts.ReconnectionDelayMax

	// First attempt waits one delay, like every later one.
	select {
	case <-time.After(m.opts.ReconnectionDelay):
	case <-ctx.Done():
		return
	}

	attempt := 0
	op := func() (struct{}, error) {
		attempt++
		log.Info(log.CatConn, "Reconnecting", "attempt", attempt)
		err := m.dial(ctx)
		if errors.Is(err, ErrClosed) || ctx.Err() != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		if err != nil {
			m.raiseConnectError(err)
		}
		return struct{}{}, err
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(0),
	}
	if m.opts.ReconnectionAttempts > 0 {
		opts = append(opts, backoff.WithMaxTries(uint(m.opts.ReconnectionAttempts)))
	}

	if _, err := backoff.Retry(ctx, op, opts...); err != nil {
		if ctx.Err() != nil {
			log.Debug(log.CatConn, "Reconnection cancelled")
			return
		}
		log.Warn(log.CatConn, "Reconnection gave up", "attempts", attempt, "error", err)
		m.enqueue(Frame{Event: EventReconnectFailed, Data: mustJSON(map[string]int{"attempts": attempt})})
	}
}

func (m *Manager) raiseConnectError(err error) {
	log.Warn(log.CatConn, "Connect error", "error", err)
	m.setConnected(false)
	m.enqueue(Frame{Event: EventConnectError, Data: mustJSON(map[string]string{"error": err.Error()})})
}

// setConnected publishes a connectivity change, deduplicated.
func (m *Manager) setConnected(connected bool) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	if m.published == connected {
		return
	}
	m.published = connected
	eventType := pubsub.DisconnectedEvent
	if connected {
		eventType = pubsub.ConnectedEvent
	}
	m.broker.Publish(eventType, connected)
}

func (m *Manager) closeConn(conn *websocket.Conn) {
	m.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	m.writeMu.Unlock()
	_ = conn.Close()
}

func (m *Manager) enqueue(f Frame) {
	select {
	case m.queue <- f:
	case <-m.done:
	}
}

func (m *Manager) dispatchLoop() {
	for {
		select {
		case f := <-m.queue:
			m.dispatch(f)
		case <-m.done:
			return
		}
	}
}

func (m *Manager) dispatch(f Frame) {
	m.hmu.RLock()
	handlers := m.handlers[f.Event]
	m.hmu.RUnlock()

	if len(handlers) == 0 {
		log.Debug(log.CatConn, "No handler", "event", f.Event)
		return
	}
	for _, h := range handlers {
		h(f.Data)
	}
}

func mustJSON(v any) json.RawMessage {
	data, _ := json.Marshal(v)
	return data
}
