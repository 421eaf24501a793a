// Package config provides configuration types and defaults for sleuth.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/zjrosen/sleuth/internal/flags"
	"github.com/zjrosen/sleuth/internal/log"
)

// Config holds all configuration options for sleuth.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Channel   ChannelConfig   `mapstructure:"channel" yaml:"channel"`
	Session   SessionConfig   `mapstructure:"session" yaml:"session"`
	Documents DocumentsConfig `mapstructure:"documents" yaml:"documents"`
	UI        UIConfig        `mapstructure:"ui" yaml:"ui"`
	Tracing   TracingConfig   `mapstructure:"tracing" yaml:"tracing"`
	Flags     map[string]bool `mapstructure:"flags" yaml:"flags"`
}

// ServerConfig locates the analysis agent.
type ServerConfig struct {
	// URL is the agent's HTTP base URL, e.g. "http://localhost:5000".
	// The channel endpoint is derived from it.
	URL string `mapstructure:"url" yaml:"url"`
}

// ChannelConfig configures the bidirectional event channel.
type ChannelConfig struct {
	Path                 string        `mapstructure:"path" yaml:"path"`                                     // Channel path appended to server.url (default "/ws")
	Transports           []string      `mapstructure:"transports" yaml:"transports"`                         // Preference order; "websocket" must be present
	HandshakeTimeout     time.Duration `mapstructure:"handshake_timeout" yaml:"handshake_timeout"`           // Bounded handshake wait
	Reconnection         bool          `mapstructure:"reconnection" yaml:"reconnection"`                     // Reconnect automatically after a drop
	ReconnectionAttempts int           `mapstructure:"reconnection_attempts" yaml:"reconnection_attempts"`   // Max attempts per outage
	ReconnectionDelay    time.Duration `mapstructure:"reconnection_delay" yaml:"reconnection_delay"`         // First retry delay
	ReconnectionDelayMax time.Duration `mapstructure:"reconnection_delay_max" yaml:"reconnection_delay_max"` // Backoff cap
}

// SessionConfig configures the tab identity.
type SessionConfig struct {
	// TabEnv lists environment variables that identify the terminal tab,
	// checked in order. The first non-empty one scopes the identity.
	TabEnv []string `mapstructure:"tab_env" yaml:"tab_env"`

	// DBPath is the SQLite file holding persisted tab identities.
	// Default: ~/.config/sleuth/sessions.db
	DBPath string `mapstructure:"db_path" yaml:"db_path"`
}

// DocumentsConfig configures the document store client.
type DocumentsConfig struct {
	CacheTTL       time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// UIConfig holds terminal view options.
type UIConfig struct {
	MarkdownStyle string `mapstructure:"markdown_style" yaml:"markdown_style"` // "dark" (default), "light" or "notty"
}

// TracingConfig holds distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	// Default: false
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Exporter selects the trace export backend.
	// Options: "none", "file", "stdout", "otlp"
	// Default: "file"
	Exporter string `mapstructure:"exporter" yaml:"exporter"`

	// FilePath is the output file for "file" exporter.
	// Default: ~/.config/sleuth/traces/traces.jsonl
	FilePath string `mapstructure:"file_path" yaml:"file_path"`

	// OTLPEndpoint is the collector endpoint for "otlp" exporter.
	// Default: "localhost:4317"
	OTLPEndpoint string `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint"`

	// SampleRate controls trace sampling (0.0 to 1.0).
	// Default: 1.0
	SampleRate float64 `mapstructure:"sample_rate" yaml:"sample_rate"`
}

// Transport names recognized in channel.transports.
const (
	TransportWebSocket = "websocket"
	TransportPolling   = "polling"
)

// DefaultTabEnv is the default lookup order for the terminal tab key.
func DefaultTabEnv() []string {
	return []string{"SLEUTH_TAB", "TMUX_PANE", "TERM_SESSION_ID", "WT_SESSION", "KITTY_WINDOW_ID", "WINDOWID"}
}

// configDir returns ~/.config/sleuth, or ".sleuth" when the home directory
// cannot be resolved.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".sleuth"
	}
	return filepath.Join(home, ".config", "sleuth")
}

// DefaultTracesFilePath returns the default trace output path.
func DefaultTracesFilePath() string {
	return filepath.Join(configDir(), "traces", "traces.jsonl")
}

// DefaultSessionDBPath returns the default tab identity database path.
func DefaultSessionDBPath() string {
	return filepath.Join(configDir(), "sessions.db")
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			URL: "http://localhost:5000",
		},
		Channel: ChannelConfig{
			Path:                 "/ws",
			Transports:           []string{TransportWebSocket, TransportPolling},
			HandshakeTimeout:     20 * time.Second,
			Reconnection:         true,
			ReconnectionAttempts: 5,
			ReconnectionDelay:    time.Second,
			ReconnectionDelayMax: 5 * time.Second,
		},
		Session: SessionConfig{
			TabEnv: DefaultTabEnv(),
			DBPath: DefaultSessionDBPath(),
		},
		Documents: DocumentsConfig{
			CacheTTL:       5 * time.Minute,
			RequestTimeout: 15 * time.Second,
		},
		UI: UIConfig{
			MarkdownStyle: "dark",
		},
		Tracing: TracingConfig{
			Enabled:      false,
			Exporter:     "file",
			FilePath:     DefaultTracesFilePath(),
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
		},
		Flags: flags.Defaults(),
	}
}

// Validate checks the whole configuration.
func Validate(cfg Config) error {
	if err := ValidateServer(cfg.Server); err != nil {
		return err
	}
	if err := ValidateChannel(cfg.Channel); err != nil {
		return err
	}
	if err := ValidateDocuments(cfg.Documents); err != nil {
		return err
	}
	if err := ValidateUI(cfg.UI); err != nil {
		return err
	}
	return ValidateTracing(cfg.Tracing)
}

// ValidateServer checks that server.url is an absolute http(s) URL.
func ValidateServer(server ServerConfig) error {
	if server.URL == "" {
		return fmt.Errorf("server.url is required")
	}
	u, err := url.Parse(server.URL)
	if err != nil {
		return fmt.Errorf("server.url is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server.url must use http or https, got %q", server.URL)
	}
	if u.Host == "" {
		return fmt.Errorf("server.url must include a host, got %q", server.URL)
	}
	return nil
}

// ValidateChannel checks channel configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateChannel(ch ChannelConfig) error {
	for _, t := range ch.Transports {
		switch t {
		case TransportWebSocket, TransportPolling:
			// Valid
		default:
			return fmt.Errorf("channel.transports entries must be \"websocket\" or \"polling\", got %q", t)
		}
	}
	if len(ch.Transports) > 0 && !slices.Contains(ch.Transports, TransportWebSocket) {
		return fmt.Errorf("channel.transports must include \"websocket\"")
	}
	if ch.Path != "" && !strings.HasPrefix(ch.Path, "/") {
		return fmt.Errorf("channel.path must start with \"/\", got %q", ch.Path)
	}
	if ch.HandshakeTimeout < 0 {
		return fmt.Errorf("channel.handshake_timeout must not be negative")
	}
	if ch.ReconnectionAttempts < 0 {
		return fmt.Errorf("channel.reconnection_attempts must not be negative, got %d", ch.ReconnectionAttempts)
	}
	if ch.ReconnectionDelay < 0 || ch.ReconnectionDelayMax < 0 {
		return fmt.Errorf("channel reconnection delays must not be negative")
	}
	if ch.ReconnectionDelayMax > 0 && ch.ReconnectionDelay > ch.ReconnectionDelayMax {
		return fmt.Errorf("channel.reconnection_delay (%s) exceeds channel.reconnection_delay_max (%s)",
			ch.ReconnectionDelay, ch.ReconnectionDelayMax)
	}
	return nil
}

// ValidateDocuments checks document store configuration for errors.
func ValidateDocuments(docs DocumentsConfig) error {
	if docs.CacheTTL < 0 {
		return fmt.Errorf("documents.cache_ttl must not be negative")
	}
	if docs.RequestTimeout < 0 {
		return fmt.Errorf("documents.request_timeout must not be negative")
	}
	return nil
}

// ValidateUI checks view configuration for errors.
func ValidateUI(ui UIConfig) error {
	switch ui.MarkdownStyle {
	case "", "dark", "light", "notty":
		return nil
	default:
		return fmt.Errorf("ui.markdown_style must be \"dark\", \"light\", or \"notty\", got %q", ui.MarkdownStyle)
	}
}

// ValidateTracing checks tracing configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateTracing(tracing TracingConfig) error {
	if tracing.SampleRate < 0.0 || tracing.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", tracing.SampleRate)
	}

	if tracing.Exporter != "" {
		switch tracing.Exporter {
		case "none", "file", "stdout", "otlp":
			// Valid
		default:
			return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", tracing.Exporter)
		}
	}

	if tracing.Enabled {
		if tracing.Exporter == "file" && tracing.FilePath == "" {
			return fmt.Errorf("tracing.file_path is required when exporter is \"file\"")
		}
		if tracing.Exporter == "otlp" && tracing.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
		}
	}

	return nil
}

// ChannelURL derives the channel endpoint from server.url and channel.path:
// http becomes ws and https becomes wss.
func (c Config) ChannelURL() (string, error) {
	u, err := url.Parse(c.Server.URL)
	if err != nil {
		return "", fmt.Errorf("parsing server.url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported server.url scheme %q", u.Scheme)
	}
	path := c.Channel.Path
	if path == "" {
		path = "/ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	u.RawQuery = ""
	return u.String(), nil
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# sleuth configuration

# Analysis agent location
server:
  url: http://localhost:5000

# Event channel
channel:
  path: /ws
  transports: [websocket, polling]   # preference order; only websocket is dialed
  handshake_timeout: 20s
  reconnection: true
  reconnection_attempts: 5
  reconnection_delay: 1s
  reconnection_delay_max: 5s

# Tab identity
session:
  # Environment variables that identify the terminal tab, checked in order
  # tab_env: [SLEUTH_TAB, TMUX_PANE, TERM_SESSION_ID, WT_SESSION, KITTY_WINDOW_ID, WINDOWID]
  # db_path: ~/.config/sleuth/sessions.db

# Dashboards, reports and widgets
documents:
  cache_ttl: 5m
  request_timeout: 15s

ui:
  markdown_style: dark   # dark, light, or notty

# Distributed tracing (one span per conversation turn)
# tracing:
#   enabled: false
#   exporter: file                 # none, file, stdout, otlp
#   file_path: ~/.config/sleuth/traces/traces.jsonl
#   otlp_endpoint: localhost:4317
#   sample_rate: 1.0

flags:
  session-persistence: true
  document-cache: true
  ping-on-connect: true
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
