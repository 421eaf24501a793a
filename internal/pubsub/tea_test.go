package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestListenCmd_ReceivesEvent(t *testing.T) {
	broker := NewBroker[string]()
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := broker.Subscribe(ctx)
	broker.Publish(UpdatedEvent, "hello world")

	msg := ListenCmd(ctx, ch)()

	event, ok := msg.(Event[string])
	require.True(t, ok, "msg should be Event[string]")
	require.Equal(t, "hello world", event.Payload)
	require.Equal(t, UpdatedEvent, event.Type)
}

func TestListenCmd_ContextCancelled(t *testing.T) {
	broker := NewBroker[string]()
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch := broker.Subscribe(ctx)

	cancel()
	time.Sleep(20 * time.Millisecond) // Wait for cleanup

	require.Nil(t, ListenCmd(ctx, ch)(), "should return nil when context cancelled")
}

func TestListenCmd_ChannelClosed(t *testing.T) {
	ch := make(chan Event[string])
	close(ch)

	require.Nil(t, ListenCmd(context.Background(), ch)(), "should return nil when channel closed")
}

func TestContinuousListener_Listen(t *testing.T) {
	broker := NewBroker[int]()
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	listener := NewContinuousListener[int](ctx, broker)

	broker.Publish(ConnectedEvent, 1)
	broker.Publish(UpdatedEvent, 2)
	broker.Publish(DisconnectedEvent, 3)

	want := []struct {
		payload int
		typ     EventType
	}{
		{1, ConnectedEvent},
		{2, UpdatedEvent},
		{3, DisconnectedEvent},
	}
	for _, w := range want {
		event, ok := listener.Listen()().(Event[int])
		require.True(t, ok, "msg should be Event[int]")
		require.Equal(t, w.payload, event.Payload)
		require.Equal(t, w.typ, event.Type)
	}
}

func TestContinuousListener_NilListen(t *testing.T) {
	var listener *ContinuousListener[int]
	require.Nil(t, listener.Listen())
}
