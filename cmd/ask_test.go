package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/sleuth/internal/config"
	"github.com/zjrosen/sleuth/internal/conversation"
	"github.com/zjrosen/sleuth/internal/flags"
	"github.com/zjrosen/sleuth/internal/testutil"
)

func testConfig(server *testutil.AgentServer) config.Config {
	c := config.Defaults()
	c.Server.URL = server.URL()
	c.Channel.ReconnectionDelay = 10 * time.Millisecond
	c.Channel.ReconnectionDelayMax = 20 * time.Millisecond
	c.Tracing.Enabled = false
	c.Flags = map[string]bool{
		flags.FlagSessionPersistence: false,
		flags.FlagDocumentCache:      false,
		flags.FlagPingOnConnect:      true,
	}
	return c
}

func startRuntime(t *testing.T, opts ...testutil.Option) (*runtime, *testutil.AgentServer) {
	t.Helper()
	opts = append([]testutil.Option{testutil.WithHealth("ok")}, opts...)
	server := testutil.NewAgentServer(t, opts...)

	rt, err := newRuntime(context.Background(), testConfig(server))
	require.NoError(t, err)
	t.Cleanup(rt.Close)

	require.NoError(t, rt.client.Start(context.Background()))
	return rt, server
}

func askCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestAsk_ReturnsFinalAnswer(t *testing.T) {
	rt, server := startRuntime(t, testutil.AnswerTurn("There were 42 late orders."))

	msg, err := ask(askCtx(t), rt.client, "how many orders shipped late?", askOptions{})
	require.NoError(t, err)
	require.Equal(t, conversation.RoleAssistant, msg.Role)
	require.Equal(t, "There were 42 late orders.", msg.Content)
	require.False(t, msg.IsLoading)

	sent := server.WaitFor("chat_message")
	var payload struct {
		Message string `json:"message"`
	}
	sent.Decode(t, &payload)
	require.Equal(t, "how many orders shipped late?", payload.Message)
}

func TestAsk_ApprovesPlanWithYes(t *testing.T) {
	steps := []map[string]any{{"step_number": 1, "agent_name": "sql_agent"}}
	rt, server := startRuntime(t, testutil.ProposePlan(steps, "Dashboard ready.")...)

	msg, err := ask(askCtx(t), rt.client, "build a sales dashboard", askOptions{approve: true})
	require.NoError(t, err)
	require.Equal(t, "Dashboard ready.", msg.Content)

	confirm := server.WaitFor("confirm_plan")
	var payload struct {
		OriginalQuery  string `json:"original_query"`
		IsSingleWidget bool   `json:"is_single_widget"`
	}
	confirm.Decode(t, &payload)
	require.Equal(t, "build a sales dashboard", payload.OriginalQuery)
	require.False(t, payload.IsSingleWidget)
}

func TestAsk_ApprovesSingleWidget(t *testing.T) {
	steps := []map[string]any{{"step_number": 1, "agent_name": "widget_agent"}}
	rt, server := startRuntime(t, testutil.ProposePlan(steps, "Widget ready.")...)

	msg, err := ask(askCtx(t), rt.client, "chart revenue", askOptions{singleWidget: true})
	require.NoError(t, err)
	require.Equal(t, "Widget ready.", msg.Content)

	var payload struct {
		IsSingleWidget bool `json:"is_single_widget"`
	}
	server.WaitFor("confirm_plan").Decode(t, &payload)
	require.True(t, payload.IsSingleWidget)
}

func TestAsk_RejectsPlanWithoutApproval(t *testing.T) {
	steps := []map[string]any{{"step_number": 1, "agent_name": "sql_agent"}}
	rt, server := startRuntime(t, testutil.ProposePlan(steps, "unused")...)

	msg, err := ask(askCtx(t), rt.client, "build a sales dashboard", askOptions{})
	require.ErrorIs(t, err, errPlanNeedsApproval)
	require.Contains(t, msg.Content, "Plan rejected")
	require.NotContains(t, server.ReceivedEvents(), "confirm_plan")
}

func TestAsk_DecidesEveryProposal(t *testing.T) {
	steps := []map[string]any{{"step_number": 1, "agent_name": "sql_agent"}}
	var confirms atomic.Int32
	rt, server := startRuntime(t,
		testutil.WithReply("chat_message", func(testutil.Frame) []testutil.Frame {
			return []testutil.Frame{
				testutil.Stream("confirmation_needed", map[string]any{"plan": steps, "original_query": "q"}),
			}
		}),
		testutil.WithReply("confirm_plan", func(testutil.Frame) []testutil.Frame {
			if confirms.Add(1) == 1 {
				return []testutil.Frame{
					testutil.Stream("confirmation_needed", map[string]any{"plan": steps, "original_query": "q"}),
				}
			}
			return []testutil.Frame{
				testutil.Stream("content", map[string]any{"content": "Done."}),
				testutil.Stream("end", nil),
			}
		}),
	)

	msg, err := ask(askCtx(t), rt.client, "q", askOptions{approve: true})
	require.NoError(t, err)
	require.Equal(t, "Done.", msg.Content)
	require.EqualValues(t, 2, confirms.Load())
	require.Equal(t, []string{"confirm_plan", "confirm_plan"}, filterEvents(server.ReceivedEvents(), "confirm_plan"))
}

func filterEvents(events []string, name string) []string {
	var out []string
	for _, e := range events {
		if e == name {
			out = append(out, e)
		}
	}
	return out
}

func TestAsk_ServerErrorFails(t *testing.T) {
	rt, _ := startRuntime(t, testutil.WithReply("chat_message", func(testutil.Frame) []testutil.Frame {
		return []testutil.Frame{testutil.Stream("error", map[string]any{"content": "warehouse offline"})}
	}))

	msg, err := ask(askCtx(t), rt.client, "anything", askOptions{})
	require.Error(t, err)
	require.True(t, msg.Error)
}

func TestAsk_TimesOut(t *testing.T) {
	rt, _ := startRuntime(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := ask(ctx, rt.client, "no reply is coming", askOptions{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPrintAnswer(t *testing.T) {
	msg := conversation.Message{Role: conversation.RoleAssistant, Content: "**42** rows"}

	var raw bytes.Buffer
	require.NoError(t, printAnswer(&raw, msg, askOptions{raw: true}))
	require.Equal(t, "**42** rows\n", raw.String())

	var js bytes.Buffer
	require.NoError(t, printAnswer(&js, msg, askOptions{json: true}))
	var decoded conversation.Message
	require.NoError(t, json.Unmarshal(js.Bytes(), &decoded))
	require.Equal(t, msg.Content, decoded.Content)

	var rendered bytes.Buffer
	require.NoError(t, printAnswer(&rendered, msg, askOptions{width: 80}))
	require.Contains(t, rendered.String(), "Sleuth")
	require.Contains(t, rendered.String(), "42")
}
