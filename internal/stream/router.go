package stream

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/zjrosen/sleuth/internal/conversation"
	"github.com/zjrosen/sleuth/internal/log"
	"github.com/zjrosen/sleuth/internal/pubsub"
)

// Store is the part of the conversation store the router drives.
type Store interface {
	Update(fn func(conversation.State) []conversation.Action) conversation.State
}

// Observer is told about every routed event after the store has applied it.
type Observer func(Event)

// Router folds chat_response events into the open assistant message.
// Events must be routed in arrival order from a single goroutine.
type Router struct {
	store         Store
	notifications *pubsub.Broker[Notification]
	now           func() time.Time

	mu        sync.RWMutex
	observers []Observer
}

// NewRouter creates a router applying transitions to store.
func NewRouter(store Store) *Router {
	return &Router{
		store:         store,
		notifications: pubsub.NewBroker[Notification](),
		now:           time.Now,
	}
}

// Observe registers fn to run after every routed event.
func (r *Router) Observe(fn Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, fn)
}

// Route applies the transitions for e as one atomic store update.
// Unknown kinds are logged and dropped.
func (r *Router) Route(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = Timestamp{r.now()}
	}

	actions, ok := Actions(e)
	if !ok {
		log.Warn(log.CatStream, "Unknown response type", "type", e.Type)
		return
	}

	if len(actions) > 0 {
		r.store.Update(func(conversation.State) []conversation.Action { return actions })
	}
	log.Debug(log.CatStream, "routed", "type", e.Type, "partial", e.IsPartial, "actions", len(actions))

	if e.Type == KindError {
		r.Notify(LevelError, e.Content)
	}

	r.mu.RLock()
	observers := r.observers
	r.mu.RUnlock()
	for _, fn := range observers {
		fn(e)
	}
}

// HandleFrame decodes and routes one raw chat_response payload.
func (r *Router) HandleFrame(data json.RawMessage) {
	e, err := Decode(data)
	if err != nil {
		log.Warn(log.CatStream, "Dropping malformed event", "error", err)
		return
	}
	r.Route(e)
}

// Notify publishes a transient notification.
func (r *Router) Notify(level Level, message string) {
	r.notifications.Publish(pubsub.CreatedEvent, Notification{
		Level:     level,
		Message:   message,
		Timestamp: r.now(),
	})
}

// Subscribe returns a channel of notifications.
func (r *Router) Subscribe(ctx context.Context) <-chan pubsub.Event[Notification] {
	return r.notifications.Subscribe(ctx)
}

// Close closes all notification subscribers.
func (r *Router) Close() {
	r.notifications.Close()
}
