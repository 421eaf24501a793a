package testutil

import (
	"encoding/json"
	"net/http"
)

// Option configures an AgentServer.
type Option func(*AgentServer)

// WithReply answers every client frame named event.
func WithReply(event string, reply Reply) Option {
	return func(s *AgentServer) {
		s.replies[event] = reply
	}
}

// WithRoute serves path with h.
func WithRoute(path string, h http.HandlerFunc) Option {
	return func(s *AgentServer) {
		s.routes[path] = h
	}
}

// WithJSON serves path with a fixed JSON body and status.
func WithJSON(path string, status int, body any) Option {
	return WithRoute(path, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	})
}

// WithHealth serves /api/health with the given status string.
func WithHealth(status string) Option {
	return WithJSON("/api/health", http.StatusOK, map[string]string{"status": status})
}

// WithTools serves /api/tools with name/description pairs.
func WithTools(tools ...map[string]string) Option {
	return WithJSON("/api/tools", http.StatusOK, map[string]any{"tools": tools})
}
