// Package plan implements the confirmation gate for agent-proposed plans.
package plan

import (
	"errors"
	"fmt"
	"sync"

	"github.com/zjrosen/sleuth/internal/conversation"
	"github.com/zjrosen/sleuth/internal/log"
	"github.com/zjrosen/sleuth/internal/stream"
)

// ConfirmEvent is the outbound event that approves a plan.
const ConfirmEvent = "confirm_plan"

const (
	executingThinking = "Executing confirmed plan..."
	rejectedContent   = "Plan rejected. Please try a different query or approach."
)

// ErrNoPendingPlan is returned by Approve and Reject when no plan awaits
// confirmation.
var ErrNoPendingPlan = errors.New("plan: no plan awaiting confirmation")

// State is the gate's position for the current turn.
type State int

const (
	StateNone State = iota
	StateProposed
	StateApproved
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateProposed:
		return "proposed"
	case StateApproved:
		return "approved"
	case StateRejected:
		return "rejected"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Emitter sends one named event to the agent.
type Emitter interface {
	Emit(event string, payload any) error
}

// Store applies conversation transitions atomically.
type Store interface {
	Update(fn func(conversation.State) []conversation.Action) conversation.State
	State() conversation.State
}

// Confirmation is the confirm_plan payload.
type Confirmation struct {
	Plan           conversation.Plan `json:"plan"`
	OriginalQuery  string            `json:"original_query"`
	IsSingleWidget bool              `json:"is_single_widget"`
}

// Gate decides plans proposed by the agent. A plan is pending exactly
// while the last message of the log awaits confirmation, so a plan is
// decidable as soon as any snapshot shows it.
type Gate struct {
	emitter Emitter
	store   Store

	mu    sync.Mutex
	state State // last decision of the turn
}

// NewGate creates a gate in StateNone.
func NewGate(emitter Emitter, store Store) *Gate {
	return &Gate{emitter: emitter, store: store}
}

// State returns the current gate state.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	if pending(g.store.State()) {
		return StateProposed
	}
	return g.state
}

// Observe logs proposals as they are routed.
func (g *Gate) Observe(e stream.Event) {
	if e.Type != stream.KindConfirmationNeeded {
		return
	}
	log.Info(log.CatPlan, "Plan proposed", "steps", len(e.Plan))
}

func pending(s conversation.State) bool {
	last, ok := s.LastMessage()
	return ok && last.Role == conversation.RoleAssistant && last.NeedsConfirmation
}

// Reset forgets the last decision for a new turn.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = StateNone
}

// Approve confirms the pending plan. The message is only updated once the
// confirmation has been sent; on emit failure the plan stays pending.
func (g *Gate) Approve(p conversation.Plan, originalQuery string) error {
	return g.approve(Confirmation{Plan: p, OriginalQuery: originalQuery})
}

// ApproveSingleWidget confirms the pending plan as a single-widget build.
func (g *Gate) ApproveSingleWidget(p conversation.Plan, originalQuery string) error {
	return g.approve(Confirmation{Plan: p, OriginalQuery: originalQuery, IsSingleWidget: true})
}

func (g *Gate) approve(c Confirmation) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c.Plan == nil {
		c.Plan = conversation.Plan{}
	}

	// Emit under the store lock: replies to the confirmation cannot be
	// routed before the approval is applied.
	var err error
	g.store.Update(func(s conversation.State) []conversation.Action {
		if !pending(s) {
			err = ErrNoPendingPlan
			return nil
		}
		if err = g.emitter.Emit(ConfirmEvent, c); err != nil {
			err = fmt.Errorf("confirm plan: %w", err)
			return nil
		}
		return []conversation.Action{
			conversation.UpdateLastMessage{Patch: conversation.Patch{
				NeedsConfirmation: conversation.Ptr(false),
				IsLoading:         conversation.Ptr(true),
				Thinking:          executingThinking,
			}},
			conversation.SetLoading{Loading: true},
		}
	})
	if errors.Is(err, ErrNoPendingPlan) {
		return err
	}
	if err != nil {
		log.Warn(log.CatPlan, "Plan confirmation failed", "error", err)
		return err
	}
	g.state = StateApproved
	log.Info(log.CatPlan, "Plan approved", "steps", len(c.Plan), "single_widget", c.IsSingleWidget)
	return nil
}

// Reject declines the pending plan locally. The agent is not contacted,
// so unlike Approve it works while disconnected.
func (g *Gate) Reject(p conversation.Plan, originalQuery string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	found := false
	g.store.Update(func(s conversation.State) []conversation.Action {
		if found = pending(s); !found {
			return nil
		}
		return []conversation.Action{
			conversation.UpdateLastMessage{Patch: conversation.Patch{
				NeedsConfirmation: conversation.Ptr(false),
				Content:           conversation.Ptr(rejectedContent),
				IsLoading:         conversation.Ptr(false),
			}},
			conversation.SetLoading{Loading: false},
		}
	})
	if !found {
		return ErrNoPendingPlan
	}
	g.state = StateRejected
	log.Info(log.CatPlan, "Plan rejected", "steps", len(p), "query_len", len(originalQuery))
	return nil
}
