package pubsub

import (
	"context"
	"sync"
	"time"
)

const defaultBufferSize = 64

// OverflowPolicy decides what happens when a subscriber's buffer is full.
type OverflowPolicy int

const (
	// DropNewest discards the event being published. Suits append-only
	// streams such as log entries where a gap is tolerable.
	DropNewest OverflowPolicy = iota
	// DropOldest evicts the oldest buffered event to make room. Suits
	// snapshot streams where only the latest value matters.
	DropOldest
)

// Broker is a generic pub/sub event broker.
// It allows multiple subscribers to receive events published by publishers.
type Broker[T any] struct {
	subs       map[chan Event[T]]struct{}
	mu         sync.RWMutex
	done       chan struct{}
	bufferSize int
	policy     OverflowPolicy
	now        func() time.Time
}

// NewBroker creates a new broker with the default buffer size (64) that
// drops new events for slow subscribers.
func NewBroker[T any]() *Broker[T] {
	return NewBrokerWithBuffer[T](defaultBufferSize)
}

// NewBrokerWithBuffer creates a new broker with a custom buffer size.
func NewBrokerWithBuffer[T any](size int) *Broker[T] {
	return newBroker[T](size, DropNewest)
}

// NewSnapshotBroker creates a broker for snapshot payloads. A slow subscriber
// never misses the most recent snapshot: stale ones are evicted first.
func NewSnapshotBroker[T any](size int) *Broker[T] {
	return newBroker[T](size, DropOldest)
}

func newBroker[T any](size int, policy OverflowPolicy) *Broker[T] {
	if size < 1 {
		size = 1
	}
	return &Broker[T]{
		subs:       make(map[chan Event[T]]struct{}),
		done:       make(chan struct{}),
		bufferSize: size,
		policy:     policy,
		now:        time.Now,
	}
}

// Subscribe creates a new subscription channel.
// The channel is automatically closed when ctx is cancelled.
func (b *Broker[T]) Subscribe(ctx context.Context) <-chan Event[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	select {
	case <-b.done:
		ch := make(chan Event[T])
		close(ch)
		return ch
	default:
	}

	sub := make(chan Event[T], b.bufferSize)
	b.subs[sub] = struct{}{}

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()

		select {
		case <-b.done:
			return // Already closed
		default:
		}

		delete(b.subs, sub)
		close(sub)
	}()

	return sub
}

// Publish sends an event to all subscribers without blocking.
// A full subscriber is handled according to the broker's OverflowPolicy.
func (b *Broker[T]) Publish(eventType EventType, payload T) {
	// Write lock: DropOldest drains then sends, which must not interleave.
	b.mu.Lock()
	defer b.mu.Unlock()

	select {
	case <-b.done:
		return
	default:
	}

	event := Event[T]{
		Type:      eventType,
		Payload:   payload,
		Timestamp: b.now(),
	}

	for sub := range b.subs {
		select {
		case sub <- event:
			continue
		default:
		}
		if b.policy != DropOldest {
			continue
		}
		select {
		case <-sub:
		default:
		}
		select {
		case sub <- event:
		default:
		}
	}
}

// Close shuts down the broker and all subscriber channels.
func (b *Broker[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	select {
	case <-b.done:
		return // Already closed
	default:
	}

	close(b.done)
	for sub := range b.subs {
		close(sub)
	}
	b.subs = nil
}

// SubscriberCount returns the number of active subscribers.
func (b *Broker[T]) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
