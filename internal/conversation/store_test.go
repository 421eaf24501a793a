package conversation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/sleuth/internal/pubsub"
)

func TestStore_DispatchUpdatesState(t *testing.T) {
	store := NewStore()
	defer store.Close()

	got := store.Dispatch(SetConnected{Connected: true})
	require.True(t, got.IsConnected)
	require.True(t, store.State().IsConnected)
}

func TestStore_SubscribeReceivesLatestSnapshot(t *testing.T) {
	store := NewStore()
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := store.Subscribe(ctx)

	store.Dispatch(AddMessage{Message: NewUserMessage("t", "one", t0)})
	store.Dispatch(AddMessage{Message: NewUserMessage("t", "two", t0)})
	store.Dispatch(AddMessage{Message: NewUserMessage("t", "three", t0)})

	var latest pubsub.Event[State]
	require.Eventually(t, func() bool {
		select {
		case latest = <-ch:
		default:
		}
		return len(latest.Payload.Messages) == 3
	}, time.Second, time.Millisecond, "a slow subscriber still sees the newest snapshot")
	require.Equal(t, pubsub.UpdatedEvent, latest.Type)
}

func TestStore_UpdateIsAtomic(t *testing.T) {
	store := NewStore()
	defer store.Close()

	// Only the first caller may open a turn.
	open := func(s State) []Action {
		if s.IsLoading {
			return nil
		}
		turn := NewTurnID()
		return []Action{
			AddMessage{Message: NewUserMessage(turn, "q", t0)},
			AddMessage{Message: NewAssistantPlaceholder(turn, t0)},
			SetLoading{Loading: true},
		}
	}

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Update(open)
		}()
	}
	wg.Wait()

	require.Len(t, store.State().Messages, 2)
}

func TestStore_UpdateWithNoActionsDoesNotPublish(t *testing.T) {
	store := NewStore()
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := store.Subscribe(ctx)

	store.Update(func(State) []Action { return nil })

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %v", ev.Type)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestStore_ConcurrentDispatch(t *testing.T) {
	store := NewStore()
	defer store.Close()
	store.Dispatch(AddMessage{Message: NewAssistantPlaceholder("t", t0)})

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Dispatch(UpdateLastMessage{Patch: Patch{Thinking: "x"}})
		}()
	}
	wg.Wait()

	m, ok := store.State().LastMessage()
	require.True(t, ok)
	require.Len(t, m.Thinking, 50)
}
