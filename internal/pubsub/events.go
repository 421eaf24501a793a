// Package pubsub provides a generic publish/subscribe event system used to
// fan out conversation snapshots, connectivity changes and notifications.
package pubsub

import (
	"context"
	"time"
)

// EventType represents the type of event being published.
type EventType string

const (
	// CreatedEvent announces a new item (log entry, notification).
	CreatedEvent EventType = "created"
	// UpdatedEvent announces a new snapshot of some piece of state.
	UpdatedEvent EventType = "updated"
	// DeletedEvent announces that state was cleared.
	DeletedEvent EventType = "deleted"
	// ConnectedEvent announces that a channel came up.
	ConnectedEvent EventType = "connected"
	// DisconnectedEvent announces that a channel went down.
	DisconnectedEvent EventType = "disconnected"
)

// Event represents a published event with a typed payload.
type Event[T any] struct {
	Type      EventType
	Payload   T
	Timestamp time.Time
}

// Subscriber provides a subscription channel for events.
type Subscriber[T any] interface {
	Subscribe(ctx context.Context) <-chan Event[T]
}

// SubscriberFunc adapts a subscribe method with another name to Subscriber.
type SubscriberFunc[T any] func(ctx context.Context) <-chan Event[T]

// Subscribe calls f(ctx).
func (f SubscriberFunc[T]) Subscribe(ctx context.Context) <-chan Event[T] {
	return f(ctx)
}

// Publisher allows publishing events with a typed payload.
type Publisher[T any] interface {
	Publish(eventType EventType, payload T)
}
