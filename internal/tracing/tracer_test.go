package tracing

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/sleuth/internal/config"
)

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(config.TracingConfig{
		Enabled:      true,
		Exporter:     "otlp",
		FilePath:     "/tmp/x.jsonl",
		OTLPEndpoint: "collector:4317",
		SampleRate:   0.5,
	})

	require.True(t, cfg.Enabled)
	require.Equal(t, ExporterOTLP, cfg.Exporter)
	require.Equal(t, "/tmp/x.jsonl", cfg.FilePath)
	require.Equal(t, "collector:4317", cfg.OTLPEndpoint)
	require.Equal(t, 0.5, cfg.SampleRate)
	require.Equal(t, DefaultServiceName, cfg.ServiceName)
}

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(Config{Enabled: false})
	require.NoError(t, err)
	require.False(t, provider.Enabled())

	ctx, span := provider.Tracer().Start(context.Background(), "test-span")
	require.NotNil(t, ctx)
	require.False(t, span.SpanContext().IsValid(), "no-op spans carry no ids")
	span.End()

	require.NoError(t, provider.Shutdown(context.Background()))
}

func TestNewProvider_FileExporter(t *testing.T) {
	tracePath := filepath.Join(t.TempDir(), "traces.jsonl")

	provider, err := NewProvider(Config{
		Enabled:    true,
		Exporter:   ExporterFile,
		FilePath:   tracePath,
		SampleRate: 1.0,
	})
	require.NoError(t, err)
	require.True(t, provider.Enabled())

	_, span := StartTurn(context.Background(), provider.Tracer(), "turn-1", "tab_1_abcdef", 15)
	require.True(t, span.SpanContext().IsValid())
	EndTurn(span, "complete", nil)

	require.NoError(t, provider.Shutdown(context.Background()))

	content, err := os.ReadFile(tracePath)
	require.NoError(t, err)
	require.Contains(t, string(content), SpanTurn)
	require.Contains(t, string(content), "turn-1")
}

func TestNewProvider_FileExporterRequiresPath(t *testing.T) {
	_, err := NewProvider(Config{Enabled: true, Exporter: ExporterFile})
	require.ErrorContains(t, err, "file_path required")
}

func TestNewProvider_NoneExporter(t *testing.T) {
	provider, err := NewProvider(Config{Enabled: true, Exporter: ExporterNone})
	require.NoError(t, err)
	require.True(t, provider.Enabled())

	_, span := provider.Tracer().Start(context.Background(), "correlation-only")
	require.True(t, span.SpanContext().TraceID().IsValid())
	span.End()
	require.NoError(t, provider.Shutdown(context.Background()))
}

func TestNewProvider_StdoutExporter(t *testing.T) {
	provider, err := NewProvider(Config{Enabled: true, Exporter: ExporterStdout})
	require.NoError(t, err)
	require.NoError(t, provider.Shutdown(context.Background()))
}

func TestNewProvider_UnsupportedExporter(t *testing.T) {
	_, err := NewProvider(Config{Enabled: true, Exporter: "zipkin"})
	require.ErrorContains(t, err, "unsupported exporter type: zipkin")
}
