// Package testutil provides a scriptable fake agent for tests: a WebSocket
// event channel plus the HTTP document endpoints, on an httptest server.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// Frame is one named event on the wire.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Decode unmarshals the frame payload into v.
func (f Frame) Decode(t *testing.T, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(f.Data, v), "decode %s payload", f.Event)
}

// Reply computes frames to push back when a client emits an event.
type Reply func(in Frame) []Frame

// AgentServer is a fake agent. The zero value is not usable; use NewAgentServer.
type AgentServer struct {
	t        *testing.T
	server   *httptest.Server
	upgrader websocket.Upgrader

	mu       sync.Mutex
	conns    []*websocket.Conn
	received []Frame
	tabIDs   []string
	connects int
	rejects  int
	replies  map[string]Reply
	routes   map[string]http.HandlerFunc
	notify   chan struct{}
}

// NewAgentServer starts a fake agent and stops it on test cleanup.
func NewAgentServer(t *testing.T, opts ...Option) *AgentServer {
	t.Helper()
	s := &AgentServer{
		t:       t,
		replies: make(map[string]Reply),
		routes:  make(map[string]http.HandlerFunc),
		notify:  make(chan struct{}, 1),
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	for _, opt := range opts {
		opt(s)
	}
	s.server = httptest.NewServer(http.HandlerFunc(s.serveHTTP))
	t.Cleanup(s.Close)
	return s
}

// URL is the HTTP base URL.
func (s *AgentServer) URL() string { return s.server.URL }

// WebSocketURL is the channel endpoint.
func (s *AgentServer) WebSocketURL() string {
	return "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws"
}

// Close drops every connection and stops the server.
func (s *AgentServer) Close() {
	s.Drop()
	s.server.Close()
}

// Send pushes a frame to every open connection.
func (s *AgentServer) Send(event string, data any) {
	s.t.Helper()
	f := Frame{Event: event}
	if data != nil {
		raw, err := json.Marshal(data)
		require.NoError(s.t, err)
		f.Data = raw
	}
	s.mu.Lock()
	conns := append([]*websocket.Conn(nil), s.conns...)
	s.mu.Unlock()
	for _, c := range conns {
		s.write(c, f)
	}
}

// Drop closes every open connection from the server side.
func (s *AgentServer) Drop() {
	s.mu.Lock()
	conns := s.conns
	s.conns = nil
	s.mu.Unlock()
	for _, c := range conns {
		_ = c.Close()
	}
}

// RejectNext makes the next n handshakes fail with 503.
func (s *AgentServer) RejectNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejects = n
}

// Received returns a copy of every frame clients have sent.
func (s *AgentServer) Received() []Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Frame(nil), s.received...)
}

// ReceivedEvents returns the names of the received frames, in order.
func (s *AgentServer) ReceivedEvents() []string {
	frames := s.Received()
	names := make([]string, len(frames))
	for i, f := range frames {
		names[i] = f.Event
	}
	return names
}

// TabIDs returns the tabId of every accepted handshake.
func (s *AgentServer) TabIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.tabIDs...)
}

// Connects counts accepted handshakes.
func (s *AgentServer) Connects() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connects
}

// OpenConns counts connections the server still holds.
func (s *AgentServer) OpenConns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// WaitFor blocks until a client has sent event and returns the latest such
// frame.
func (s *AgentServer) WaitFor(event string) Frame {
	s.t.Helper()
	var found Frame
	require.Eventually(s.t, func() bool {
		frames := s.Received()
		for i := len(frames) - 1; i >= 0; i-- {
			if frames[i].Event == event {
				found = frames[i]
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond, "never received %q", event)
	return found
}

// WaitConnects blocks until n handshakes have been accepted.
func (s *AgentServer) WaitConnects(n int) {
	s.t.Helper()
	require.Eventually(s.t, func() bool { return s.Connects() >= n },
		3*time.Second, 5*time.Millisecond, "expected %d connects", n)
}

func (s *AgentServer) serveHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/ws" {
		s.serveChannel(w, r)
		return
	}
	s.mu.Lock()
	h, ok := s.routes[r.URL.Path]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	h(w, r)
}

func (s *AgentServer) serveChannel(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.rejects > 0 {
		s.rejects--
		s.mu.Unlock()
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	s.mu.Unlock()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.conns = append(s.conns, conn)
	s.tabIDs = append(s.tabIDs, r.URL.Query().Get("tabId"))
	s.connects++
	s.mu.Unlock()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var f Frame
		if err := json.Unmarshal(msg, &f); err != nil {
			continue
		}
		s.mu.Lock()
		s.received = append(s.received, f)
		reply := s.replies[f.Event]
		s.mu.Unlock()

		if reply != nil {
			for _, out := range reply(f) {
				s.write(conn, out)
			}
		}
	}

	s.mu.Lock()
	for i, c := range s.conns {
		if c == conn {
			s.conns = append(s.conns[:i], s.conns[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	_ = conn.Close()
}

func (s *AgentServer) write(conn *websocket.Conn, f Frame) {
	msg, err := json.Marshal(f)
	if err != nil {
		return
	}
	// Writes from Send and from replies may race on one conn.
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = conn.WriteMessage(websocket.TextMessage, msg)
}
