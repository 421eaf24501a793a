package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRender_RoundTrip(t *testing.T) {
	cfg := Defaults()
	cfg.Server.URL = "https://agent.example.com"
	cfg.Channel.ReconnectionAttempts = 9
	cfg.Documents.CacheTTL = 90 * time.Second

	data, err := Render(cfg)
	require.NoError(t, err)
	require.Contains(t, string(data), "url: https://agent.example.com")
	require.Contains(t, string(data), "reconnection_attempts: 9")

	parsed, err := Parse(data)
	require.NoError(t, err)
	require.Equal(t, cfg.Server, parsed.Server)
	require.Equal(t, cfg.Channel, parsed.Channel)
	require.Equal(t, cfg.Documents, parsed.Documents)
}

func TestParse_PartialKeepsDefaults(t *testing.T) {
	cfg, err := Parse([]byte("server:\n  url: http://10.0.0.2:5000\n"))
	require.NoError(t, err)

	require.Equal(t, "http://10.0.0.2:5000", cfg.Server.URL)
	require.Equal(t, Defaults().Channel, cfg.Channel)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("server: [unterminated"))
	require.Error(t, err)
}
