package log

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLog_FormatsFields(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, LevelDebug)
	t.Cleanup(func() { defaultLogger = nil })

	Info(CatConn, "connected", "tab", "tab_1", "attempt", 2)

	line := buf.String()
	require.Contains(t, line, "[INFO] [conn] connected tab=tab_1 attempt=2")
	require.True(t, strings.HasSuffix(line, "\n"))
}

func TestLog_OddFieldCount(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, LevelDebug)
	t.Cleanup(func() { defaultLogger = nil })

	Warn(CatStream, "dangling", "kind")

	require.Contains(t, buf.String(), "kind=<missing>")
}

func TestLog_MinLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, LevelWarn)
	t.Cleanup(func() { defaultLogger = nil })

	Debug(CatStore, "hidden")
	Info(CatStore, "hidden too")
	ErrorErr(CatStore, "visible", errors.New("boom"))

	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, "[ERROR] [store] visible error=boom")
}

func TestLog_Disabled(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, LevelDebug)
	t.Cleanup(func() { defaultLogger = nil })

	SetEnabled(false)
	Error(CatPlan, "nothing")
	require.Empty(t, buf.String())
}

func TestLog_NilLoggerIsSafe(t *testing.T) {
	defaultLogger = nil
	require.NotPanics(t, func() { Info(CatUI, "no logger installed") })
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, LevelInfo, ParseLevel("INFO"))
	require.Equal(t, LevelWarn, ParseLevel("warning"))
	require.Equal(t, LevelError, ParseLevel(" error "))
	require.Equal(t, LevelDebug, ParseLevel("whatever"))
}
