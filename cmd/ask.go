package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/zjrosen/sleuth/internal/conversation"
	"github.com/zjrosen/sleuth/internal/plan"
	"github.com/zjrosen/sleuth/internal/pubsub"
	"github.com/zjrosen/sleuth/internal/ui/chatrender"
	"github.com/zjrosen/sleuth/internal/ui/markdown"
)

// errPlanNeedsApproval is returned when the agent proposes a plan and the
// caller did not opt into approving it.
var errPlanNeedsApproval = errors.New("the agent proposed a plan; rerun with --yes or --widget to approve it")

type askOptions struct {
	approve      bool
	singleWidget bool
	raw          bool
	json         bool
	thinking     bool
	width        int
	timeout      time.Duration
}

var askOpts askOptions

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a single question and print the answer",
	Long: `Ask the agent one question, wait for the turn to finish, and print the answer.

If the agent proposes a plan, it is rejected unless --yes (run the full plan)
or --widget (build a single widget) is given.`,
	Example: `  sleuth ask "top 10 customers by revenue last quarter"
  sleuth ask --yes "build a sales dashboard for 2024"
  sleuth ask --json "how many orders shipped late?" | jq .content`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVarP(&askOpts.approve, "yes", "y", false, "approve a proposed plan")
	askCmd.Flags().BoolVarP(&askOpts.singleWidget, "widget", "w", false, "approve a proposed plan as a single widget")
	askCmd.Flags().BoolVar(&askOpts.raw, "raw", false, "print the answer as unrendered markdown")
	askCmd.Flags().BoolVar(&askOpts.json, "json", false, "print the final assistant message as JSON")
	askCmd.Flags().BoolVar(&askOpts.thinking, "thinking", false, "include the agent's reasoning")
	askCmd.Flags().IntVar(&askOpts.width, "width", 100, "render width")
	askCmd.Flags().DurationVar(&askOpts.timeout, "timeout", 5*time.Minute, "give up after this long")
	askCmd.MarkFlagsMutuallyExclusive("yes", "widget")
	askCmd.MarkFlagsMutuallyExclusive("raw", "json")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), askOpts.timeout)
	defer cancel()

	rt, err := newRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	stop := releaseOnHangup(ctx, rt.identity, cancel)
	defer stop()

	if err := rt.client.Start(ctx); err != nil {
		return fmt.Errorf("connecting to %s: %w", cfg.Server.URL, err)
	}
	warnEphemeral(cmd.ErrOrStderr(), rt.identity)

	question := strings.Join(args, " ")
	msg, askErr := ask(ctx, rt.client, question, askOpts)
	if msg.Role == conversation.RoleAssistant {
		if err := printAnswer(cmd.OutOrStdout(), msg, askOpts); err != nil {
			return err
		}
	}
	return askErr
}

// asker is the part of the chat client a one-shot turn needs.
type asker interface {
	SendMessage(ctx context.Context, text string) error
	ApprovePlan(p conversation.Plan, originalQuery string) error
	ApproveSingleWidget(p conversation.Plan, originalQuery string) error
	RejectPlan(p conversation.Plan, originalQuery string) error
	Subscribe(ctx context.Context) <-chan pubsub.Event[conversation.State]
	PlanState() plan.State
}

// ask sends one question and waits until the turn closes. A proposed plan
// is approved or rejected according to opts. The closing assistant message
// is returned even when err is non-nil.
func ask(ctx context.Context, conv asker, question string, opts askOptions) (conversation.Message, error) {
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	states := conv.Subscribe(subCtx)

	if err := conv.SendMessage(ctx, question); err != nil {
		return conversation.Message{}, err
	}

	var last conversation.Message
	for {
		select {
		case <-ctx.Done():
			return last, fmt.Errorf("waiting for answer: %w", ctx.Err())
		case ev, ok := <-states:
			if !ok {
				return last, errors.New("conversation closed before the answer finished")
			}
			s := ev.Payload
			msg, ok := s.LastMessage()
			if !ok || msg.Role != conversation.RoleAssistant {
				continue
			}
			last = msg

			if msg.NeedsConfirmation {
				// Every proposal is decided, including a second one in the
				// same turn. A stale snapshot finds nothing pending.
				if err := decide(conv, msg, opts); err != nil && !errors.Is(err, plan.ErrNoPendingPlan) {
					return last, err
				}
				continue
			}

			if !s.IsLoading && !msg.IsLoading {
				switch {
				case conv.PlanState() == plan.StateRejected:
					return last, errPlanNeedsApproval
				case msg.Error:
					return last, errors.New("the agent reported an error")
				}
				return last, nil
			}
		}
	}
}

func decide(conv asker, msg conversation.Message, opts askOptions) error {
	switch {
	case opts.approve:
		return conv.ApprovePlan(msg.Plan, msg.OriginalQuery)
	case opts.singleWidget:
		return conv.ApproveSingleWidget(msg.Plan, msg.OriginalQuery)
	default:
		return conv.RejectPlan(msg.Plan, msg.OriginalQuery)
	}
}

func printAnswer(w io.Writer, msg conversation.Message, opts askOptions) error {
	switch {
	case opts.json:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(msg)
	case opts.raw:
		_, err := fmt.Fprintln(w, msg.Content)
		return err
	}

	rcfg := chatrender.Config{
		Width:        opts.width,
		AgentLabel:   "Sleuth",
		ShowThinking: opts.thinking,
	}
	// Fall back to wrapped plain text when glamour cannot build a renderer.
	if md, err := markdown.New(opts.width, cfg.UI.MarkdownStyle); err == nil {
		rcfg.Markdown = md
	}
	_, err := fmt.Fprintln(w, chatrender.RenderAssistant(msg, rcfg))
	return err
}
