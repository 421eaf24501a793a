package docstore

import (
	"fmt"

	"github.com/zjrosen/sleuth/internal/stream"
)

// Kind is a generated document type.
type Kind string

const (
	KindDashboard Kind = "dashboard"
	KindReport    Kind = "report"
	KindWidget    Kind = "widget"
)

// Kinds lists every document kind.
func Kinds() []Kind {
	return []Kind{KindDashboard, KindReport, KindWidget}
}

// ParseKind accepts singular or plural kind names.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "dashboard", "dashboards":
		return KindDashboard, nil
	case "report", "reports":
		return KindReport, nil
	case "widget", "widgets":
		return KindWidget, nil
	}
	return "", fmt.Errorf("unknown document kind %q (want dashboard, report or widget)", s)
}

func (k Kind) validate() error {
	switch k {
	case KindDashboard, KindReport, KindWidget:
		return nil
	}
	return fmt.Errorf("unknown document kind %q", string(k))
}

// The widget listing lives under the singular path.
func (k Kind) historyPath() string {
	switch k {
	case KindDashboard:
		return "/api/dashboards/history"
	case KindReport:
		return "/api/reports/history"
	default:
		return "/api/widget/history"
	}
}

func (k Kind) historyKey() string {
	return string(k) + "s"
}

// Entry is one listed document.
type Entry struct {
	Filename  string           `json:"filename"`
	CreatedAt stream.Timestamp `json:"created_at"`
	Size      int64            `json:"size"`
}

// Health is the connectivity probe result.
type Health struct {
	Status string `json:"status"`
}

// OK reports whether the agent declared itself healthy.
func (h Health) OK() bool {
	return h.Status == "ok"
}

// MCPServer is one MCP server the agent is connected to.
type MCPServer struct {
	Name       string   `json:"name"`
	Status     string   `json:"status"`
	MCPURL     string   `json:"mcp_url,omitempty"`
	MCPCommand string   `json:"mcp_command,omitempty"`
	MCPArgs    []string `json:"mcp_args,omitempty"`
}

// MCPStatus is the agent's MCP connection report.
type MCPStatus struct {
	Timestamp stream.Timestamp     `json:"timestamp"`
	Servers   map[string]MCPServer `json:"servers"`
}
