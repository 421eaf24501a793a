package stream

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDecode_FullEnvelope(t *testing.T) {
	raw := `{
		"type": "confirmation_needed",
		"plan": [{"step_number": 1, "agent_name": "mysql_agent", "clarification_message": "which db?"}],
		"original_query": "Q",
		"timestamp": "2024-05-01T10:20:30.123456"
	}`

	e, err := Decode([]byte(raw))
	require.NoError(t, err)
	require.Equal(t, KindConfirmationNeeded, e.Type)
	require.Len(t, e.Plan, 1)
	require.Equal(t, 1, e.Plan[0].StepNumber)
	require.Equal(t, "mysql_agent", e.Plan[0].AgentName)
	require.Equal(t, "which db?", e.Plan[0].ClarificationMessage)
	require.Equal(t, "Q", e.OriginalQuery)
	require.True(t, time.Date(2024, 5, 1, 10, 20, 30, 123456000, time.Local).Equal(e.Timestamp.Time))
}

func TestDecode_RawFieldsPreserved(t *testing.T) {
	e, err := Decode([]byte(`{"type":"tool_use","tool":"sql","input":{"query":"SELECT 1"}}`))
	require.NoError(t, err)
	require.JSONEq(t, `{"query":"SELECT 1"}`, string(e.Input))
	require.True(t, e.Timestamp.IsZero())
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode([]byte(`{"content":"x"}`))
	require.ErrorContains(t, err, "missing type")

	_, err = Decode([]byte(`not json`))
	require.Error(t, err)

	_, err = Decode([]byte(`{"type":"end","timestamp":"yesterday"}`))
	require.ErrorContains(t, err, "unrecognized format")
}

func TestTimestamp_Formats(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{"rfc3339", `"2024-05-01T10:20:30Z"`, time.Date(2024, 5, 1, 10, 20, 30, 0, time.UTC)},
		{"iso without zone", `"2024-05-01T10:20:30"`, time.Date(2024, 5, 1, 10, 20, 30, 0, time.Local)},
		{"null", `null`, time.Time{}},
		{"empty", `""`, time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts Timestamp
			require.NoError(t, json.Unmarshal([]byte(tt.in), &ts))
			require.True(t, tt.want.Equal(ts.Time), "got %v", ts.Time)
		})
	}
}

func TestTimestamp_Marshal(t *testing.T) {
	out, err := json.Marshal(Timestamp{})
	require.NoError(t, err)
	require.Equal(t, "null", string(out))

	out, err = json.Marshal(Timestamp{time.Date(2024, 5, 1, 10, 20, 30, 0, time.UTC)})
	require.NoError(t, err)
	require.Equal(t, `"2024-05-01T10:20:30Z"`, string(out))
}

func TestEvent_Terminal(t *testing.T) {
	terminal := []Event{
		{Type: KindContent}, {Type: KindData}, {Type: KindDashboard}, {Type: KindHTMLContent},
		{Type: KindDashboardFile}, {Type: KindWidgetFile}, {Type: KindConfirmationNeeded},
		{Type: KindError}, {Type: KindEnd},
	}
	for _, e := range terminal {
		require.True(t, e.Terminal(), "%s should be terminal", e.Type)
	}

	open := []Event{
		{Type: KindStart}, {Type: KindStatus}, {Type: KindThinking}, {Type: KindToolUse},
		{Type: KindContent, IsPartial: true}, {Type: KindChart}, {Type: "mystery"},
	}
	for _, e := range open {
		require.False(t, e.Terminal(), "%s should not be terminal", e.Type)
	}
}
