package docstore

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/sleuth/internal/config"
	"github.com/zjrosen/sleuth/internal/testutil"
)

func newClient(t *testing.T, s *testutil.AgentServer, cache bool) *Client {
	t.Helper()
	c, err := New(Options{BaseURL: s.URL(), Timeout: time.Second, CacheTTL: time.Minute, Cache: cache})
	require.NoError(t, err)
	return c
}

// counting serves body as HTML and counts hits.
func counting(hits *atomic.Int32, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(body))
	}
}

func TestNew_RejectsBadBaseURL(t *testing.T) {
	_, err := New(Options{BaseURL: "ftp://example.com"})
	require.Error(t, err)
	_, err = New(Options{BaseURL: "://"})
	require.Error(t, err)
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Defaults()
	opts := OptionsFromConfig(cfg, true)
	require.Equal(t, cfg.Server.URL, opts.BaseURL)
	require.Equal(t, cfg.Documents.CacheTTL, opts.CacheTTL)
	require.Equal(t, cfg.Documents.RequestTimeout, opts.Timeout)
	require.True(t, opts.Cache)
}

func TestHealth(t *testing.T) {
	s := testutil.NewAgentServer(t, testutil.WithHealth("ok"))
	h, err := newClient(t, s, false).Health(context.Background())
	require.NoError(t, err)
	require.True(t, h.OK())

	down := testutil.NewAgentServer(t, testutil.WithHealth("degraded"))
	h, err = newClient(t, down, false).Health(context.Background())
	require.NoError(t, err)
	require.False(t, h.OK())
}

func TestHealth_Unreachable(t *testing.T) {
	s := testutil.NewAgentServer(t)
	c := newClient(t, s, false)
	s.Close()

	_, err := c.Health(context.Background())
	require.Error(t, err)
}

func TestTools(t *testing.T) {
	s := testutil.NewAgentServer(t, testutil.WithTools(
		map[string]string{"name": "run_sql", "description": "Run a query"},
		map[string]string{"name": "make_chart"},
	))
	tools, err := newClient(t, s, false).Tools(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 2)
	require.Equal(t, "run_sql", tools[0].Name)
	require.Equal(t, "Run a query", tools[0].Description)
	require.Equal(t, "make_chart", tools[1].Name)
}

func TestMCPStatus(t *testing.T) {
	s := testutil.NewAgentServer(t, testutil.WithJSON("/api/mcp-status", http.StatusOK, map[string]any{
		"timestamp": "2026-03-04T05:06:07.123456",
		"servers": map[string]any{
			"warehouse": map[string]any{
				"name": "warehouse", "status": "connected",
				"mcp_url": "http://mcp:8000", "mcp_command": "uvx", "mcp_args": []string{"warehouse-mcp"},
			},
		},
	}))
	status, err := newClient(t, s, false).MCPStatus(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2026, status.Timestamp.Year())
	require.Equal(t, MCPServer{
		Name: "warehouse", Status: "connected",
		MCPURL: "http://mcp:8000", MCPCommand: "uvx", MCPArgs: []string{"warehouse-mcp"},
	}, status.Servers["warehouse"])
}

func TestDocument_Paths(t *testing.T) {
	var hits atomic.Int32
	s := testutil.NewAgentServer(t,
		testutil.WithRoute("/api/dashboard/sales.html", counting(&hits, "<h1>dashboard</h1>")),
		testutil.WithRoute("/api/report/q1.html", counting(&hits, "<h1>report</h1>")),
		testutil.WithRoute("/api/widget/kpi.html", counting(&hits, "<h1>widget</h1>")),
	)
	c := newClient(t, s, false)
	ctx := context.Background()

	for kind, name := range map[Kind]string{KindDashboard: "sales.html", KindReport: "q1.html", KindWidget: "kpi.html"} {
		html, err := c.Document(ctx, kind, name)
		require.NoError(t, err)
		require.Equal(t, "<h1>"+string(kind)+"</h1>", html)
	}
	require.EqualValues(t, 3, hits.Load())
}

func TestDocument_NotFound(t *testing.T) {
	s := testutil.NewAgentServer(t, testutil.WithJSON("/api/report/gone.html",
		http.StatusNotFound, map[string]string{"error": "Report not found"}))

	_, err := newClient(t, s, true).Document(context.Background(), KindReport, "gone.html")
	require.ErrorIs(t, err, ErrNotFound)

	var serr *StatusError
	require.True(t, errors.As(err, &serr))
	require.Equal(t, "Report not found", serr.Message)
}

func TestDocument_ServerErrorIsNotNotFound(t *testing.T) {
	s := testutil.NewAgentServer(t, testutil.WithJSON("/api/dashboard/x.html",
		http.StatusInternalServerError, map[string]string{"error": "Failed to serve dashboard"}))

	_, err := newClient(t, s, false).Document(context.Background(), KindDashboard, "x.html")
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrNotFound))
}

func TestDocument_InvalidInput(t *testing.T) {
	s := testutil.NewAgentServer(t)
	c := newClient(t, s, false)
	ctx := context.Background()

	_, err := c.Document(ctx, KindDashboard, "")
	require.Error(t, err)
	_, err = c.Document(ctx, KindDashboard, "../etc/passwd")
	require.Error(t, err)
	_, err = c.Document(ctx, Kind("spreadsheet"), "a.html")
	require.Error(t, err)
}

func TestDocument_CachedWhenEnabled(t *testing.T) {
	var hits atomic.Int32
	s := testutil.NewAgentServer(t, testutil.WithRoute("/api/widget/kpi.html", counting(&hits, "kpi")))
	c := newClient(t, s, true)
	ctx := context.Background()

	for range 3 {
		html, err := c.Document(ctx, KindWidget, "kpi.html")
		require.NoError(t, err)
		require.Equal(t, "kpi", html)
	}
	require.EqualValues(t, 1, hits.Load())

	c.Invalidate(ctx, KindWidget)
	_, err := c.Document(ctx, KindWidget, "kpi.html")
	require.NoError(t, err)
	require.EqualValues(t, 2, hits.Load())
}

func TestDocument_ReadsExtendCacheLifetime(t *testing.T) {
	var hits atomic.Int32
	s := testutil.NewAgentServer(t, testutil.WithRoute("/api/dashboard/sales.html", counting(&hits, "sales")))
	c, err := New(Options{BaseURL: s.URL(), Timeout: time.Second, CacheTTL: 300 * time.Millisecond, Cache: true})
	require.NoError(t, err)
	ctx := context.Background()

	// Each read lands inside the previous lifetime; together they outlast it.
	for range 3 {
		_, err := c.Document(ctx, KindDashboard, "sales.html")
		require.NoError(t, err)
		time.Sleep(150 * time.Millisecond)
	}
	require.EqualValues(t, 1, hits.Load())
}

func TestDocument_NotCachedWhenDisabled(t *testing.T) {
	var hits atomic.Int32
	s := testutil.NewAgentServer(t, testutil.WithRoute("/api/widget/kpi.html", counting(&hits, "kpi")))
	c := newClient(t, s, false)

	for range 3 {
		_, err := c.Document(context.Background(), KindWidget, "kpi.html")
		require.NoError(t, err)
	}
	require.EqualValues(t, 3, hits.Load())
}

func TestDocument_ErrorsAreNotCached(t *testing.T) {
	var calls atomic.Int32
	s := testutil.NewAgentServer(t, testutil.WithRoute("/api/report/flaky.html", func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	c := newClient(t, s, true)
	ctx := context.Background()

	_, err := c.Document(ctx, KindReport, "flaky.html")
	require.Error(t, err)
	html, err := c.Document(ctx, KindReport, "flaky.html")
	require.NoError(t, err)
	require.Equal(t, "ok", html)
}

func TestHistory(t *testing.T) {
	s := testutil.NewAgentServer(t,
		testutil.WithJSON("/api/dashboards/history", http.StatusOK, map[string]any{
			"dashboards": []map[string]any{
				{"filename": "b.html", "created_at": "2026-02-02T10:00:00.5", "size": 2048},
				{"filename": "a.html", "created_at": "2026-01-01T09:00:00", "size": 1024},
			},
		}),
		testutil.WithJSON("/api/reports/history", http.StatusOK, map[string]any{"reports": []any{}}),
		testutil.WithJSON("/api/widget/history", http.StatusOK, map[string]any{
			"widgets":    []map[string]any{{"filename": "w.html", "created_at": "2026-01-01T00:00:00", "size": 1}},
			"dashboards": []map[string]any{{"filename": "w.html", "created_at": "2026-01-01T00:00:00", "size": 1}},
		}),
	)
	c := newClient(t, s, false)
	ctx := context.Background()

	dashboards, err := c.History(ctx, KindDashboard)
	require.NoError(t, err)
	require.Len(t, dashboards, 2)
	require.Equal(t, "b.html", dashboards[0].Filename)
	require.EqualValues(t, 2048, dashboards[0].Size)
	require.Equal(t, time.February, dashboards[0].CreatedAt.Month())

	reports, err := c.History(ctx, KindReport)
	require.NoError(t, err)
	require.Empty(t, reports)

	widgets, err := c.History(ctx, KindWidget)
	require.NoError(t, err)
	require.Len(t, widgets, 1)
	require.Equal(t, "w.html", widgets[0].Filename)
}

func TestHistory_MissingKeyIsEmpty(t *testing.T) {
	s := testutil.NewAgentServer(t, testutil.WithJSON("/api/reports/history", http.StatusOK, map[string]any{}))
	entries, err := newClient(t, s, false).History(context.Background(), KindReport)
	require.NoError(t, err)
	require.NotNil(t, entries)
	require.Empty(t, entries)
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{
		"dashboard": KindDashboard, "dashboards": KindDashboard,
		"report": KindReport, "reports": KindReport,
		"widget": KindWidget, "widgets": KindWidget,
	} {
		got, err := ParseKind(in)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	_, err := ParseKind("chart")
	require.Error(t, err)
	require.Len(t, Kinds(), 3)
}
