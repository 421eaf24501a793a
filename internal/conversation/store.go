package conversation

import (
	"context"
	"sync"

	"github.com/zjrosen/sleuth/internal/log"
	"github.com/zjrosen/sleuth/internal/pubsub"
)

// Store is the system of record for one conversation. Dispatch is
// serialized, so every transition is observed whole.
type Store struct {
	mu     sync.Mutex
	state  State
	broker *pubsub.Broker[State]
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{broker: pubsub.NewSnapshotBroker[State](1)}
}

// Dispatch applies a and publishes the resulting state.
func (s *Store) Dispatch(a Action) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = Reduce(s.state, a)
	log.Debug(log.CatStore, "dispatch", "action", a.Type(), "messages", len(s.state.Messages),
		"loading", s.state.IsLoading, "connected", s.state.IsConnected)
	s.broker.Publish(pubsub.UpdatedEvent, s.state)
	return s.state
}

// Update applies fn to the current state under the store lock and
// dispatches the actions it returns. fn must not call back into the store.
func (s *Store) Update(fn func(State) []Action) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	actions := fn(s.state)
	if len(actions) == 0 {
		return s.state
	}
	s.state = ReduceAll(s.state, actions...)
	log.Debug(log.CatStore, "update", "actions", len(actions), "messages", len(s.state.Messages))
	s.broker.Publish(pubsub.UpdatedEvent, s.state)
	return s.state
}

// State returns the current snapshot. Callers must not modify it.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe returns a channel of state snapshots. A slow subscriber only
// misses intermediate snapshots, never the latest one.
func (s *Store) Subscribe(ctx context.Context) <-chan pubsub.Event[State] {
	return s.broker.Subscribe(ctx)
}

// Close closes all subscriber channels.
func (s *Store) Close() {
	s.broker.Close()
}
