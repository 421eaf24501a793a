// Package docstore is the HTTP client for the agent's document store:
// generated dashboards, reports and widgets, plus health and tool probes.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zjrosen/sleuth/internal/cachemanager"
	"github.com/zjrosen/sleuth/internal/config"
	"github.com/zjrosen/sleuth/internal/conversation"
	"github.com/zjrosen/sleuth/internal/log"
)

// ErrNotFound is matched by errors for missing documents.
var ErrNotFound = errors.New("docstore: not found")

// maxBodySize bounds a single response body.
const maxBodySize = 32 << 20

// StatusError is a non-2xx response.
type StatusError struct {
	Path    string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("GET %s: %d: %s", e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("GET %s: %d %s", e.Path, e.Code, http.StatusText(e.Code))
}

// Is reports a 404 as ErrNotFound.
func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.Code == http.StatusNotFound
}

// Options configures a Client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	// CacheTTL is how long documents and listings stay cached.
	CacheTTL time.Duration
	// Cache enables the read-through cache.
	Cache bool
	// HTTPClient overrides the default client. Timeout is ignored when set.
	HTTPClient *http.Client
}

// OptionsFromConfig maps the application config.
func OptionsFromConfig(cfg config.Config, cache bool) Options {
	return Options{
		BaseURL:  cfg.Server.URL,
		Timeout:  cfg.Documents.RequestTimeout,
		CacheTTL: cfg.Documents.CacheTTL,
		Cache:    cache,
	}
}

type docRequest struct {
	kind     Kind
	filename string
}

// Client talks to the document store.
type Client struct {
	base *url.URL
	http *http.Client
	ttl  time.Duration

	docCache  *cachemanager.InMemoryCacheManager[string]
	listCache *cachemanager.InMemoryCacheManager[[]Entry]
	docs      *cachemanager.ReadThroughCache[string, docRequest]
	lists     *cachemanager.ReadThroughCache[[]Entry, Kind]
}

// New creates a Client for opts.BaseURL.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https, got %q", opts.BaseURL)
	}
	base.Path = strings.TrimSuffix(base.Path, "/")
	base.RawPath = ""
	base.RawQuery = ""
	base.Fragment = ""

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = cachemanager.DefaultExpiration
	}

	c := &Client{
		base:      base,
		http:      httpClient,
		ttl:       ttl,
		docCache:  cachemanager.NewInMemoryCacheManager[string]("documents", ttl, cachemanager.DefaultCleanupInterval),
		listCache: cachemanager.NewInMemoryCacheManager[[]Entry]("history", ttl, cachemanager.DefaultCleanupInterval),
	}
	c.docs = cachemanager.NewReadThroughCache(c.docCache, c.fetchDocument, !opts.Cache)
	c.lists = cachemanager.NewReadThroughCache(c.listCache, c.fetchHistory, !opts.Cache)
	return c, nil
}

// Health probes GET /api/health.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var h Health
	if err := c.getJSON(ctx, "/api/health", &h); err != nil {
		return Health{}, err
	}
	return h, nil
}

// Tools lists the agent's tools.
func (c *Client) Tools(ctx context.Context) ([]conversation.Tool, error) {
	var body struct {
		Tools []conversation.Tool `json:"tools"`
	}
	if err := c.getJSON(ctx, "/api/tools", &body); err != nil {
		return nil, err
	}
	return body.Tools, nil
}

// MCPStatus reports the agent's MCP server connections.
func (c *Client) MCPStatus(ctx context.Context) (MCPStatus, error) {
	var s MCPStatus
	if err := c.getJSON(ctx, "/api/mcp-status", &s); err != nil {
		return MCPStatus{}, err
	}
	return s, nil
}

// Document returns the HTML of one generated document. Documents never
// change once written, so each read extends the cached copy's lifetime.
func (c *Client) Document(ctx context.Context, kind Kind, filename string) (string, error) {
	if err := kind.validate(); err != nil {
		return "", err
	}
	if filename == "" || strings.ContainsAny(filename, `/\`) {
		return "", fmt.Errorf("invalid document name %q", filename)
	}
	return c.docs.GetWithRefresh(ctx, docKey(kind, filename), docRequest{kind: kind, filename: filename}, c.ttl)
}

// History lists generated documents of kind, newest first.
func (c *Client) History(ctx context.Context, kind Kind) ([]Entry, error) {
	if err := kind.validate(); err != nil {
		return nil, err
	}
	return c.lists.Get(ctx, string(kind), kind, c.ttl)
}

// Invalidate drops every cached listing and document of kind.
func (c *Client) Invalidate(ctx context.Context, kind Kind) {
	if err := c.lists.Invalidate(ctx, string(kind)); err != nil {
		log.Warn(log.CatDocs, "Failed to invalidate history", "kind", kind, "error", err)
	}
	n := c.docCache.DeletePrefix(ctx, string(kind)+"/")
	log.Debug(log.CatDocs, "Invalidated", "kind", kind, "documents", n)
}

func (c *Client) fetchDocument(ctx context.Context, req docRequest) (string, error) {
	path := "/api/" + string(req.kind) + "/" + url.PathEscape(req.filename)
	body, err := c.get(ctx, path)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (c *Client) fetchHistory(ctx context.Context, kind Kind) ([]Entry, error) {
	var body map[string]json.RawMessage
	if err := c.getJSON(ctx, kind.historyPath(), &body); err != nil {
		return nil, err
	}
	raw, ok := body[kind.historyKey()]
	if !ok {
		return []Entry{}, nil
	}
	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode %s history: %w", kind, err)
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	body, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base.String()+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		log.Warn(log.CatDocs, "Request failed", "path", path, "error", err)
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	log.Debug(log.CatDocs, "GET", "path", path, "status", resp.StatusCode,
		"bytes", len(body), "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		serr := &StatusError{Path: path, Code: resp.StatusCode}
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil {
			serr.Message = apiErr.Error
		}
		return nil, serr
	}
	return body, nil
}

func docKey(kind Kind, filename string) string {
	return string(kind) + "/" + filename
}
