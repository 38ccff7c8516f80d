package mq

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tutorhub/apiserver/config"
)

func (b *MemoryBus) subscribed(channel string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.queues[channel]
	return ok
}

// subscribeAsync starts handler on channel and waits until the queue exists.
func subscribeAsync(t *testing.T, bus *MemoryBus, channel string, handler Handler) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- bus.Subscribe(ctx, channel, handler) }()
	require.Eventually(t, func() bool { return bus.subscribed(channel) }, 2*time.Second, 5*time.Millisecond)
	return cancel, errCh
}

func TestMemoryBusDeliversToSubscriber(t *testing.T) {
	bus := NewMemoryBus()
	received := make(chan Message, 1)
	cancel, errCh := subscribeAsync(t, bus, "review.created", func(_ context.Context, msg Message) error {
		received <- msg
		return nil
	})

	attrs := map[string]string{"event-type": "review.created"}
	id, err := bus.Publish(context.Background(), "review.created", []byte("payload"), attrs)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	attrs["event-type"] = "mutated"

	select {
	case msg := <-received:
		assert.Equal(t, id, msg.ID)
		assert.Equal(t, []byte("payload"), msg.Data)
		assert.Equal(t, "review.created", msg.Attributes["event-type"])
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
}

func TestMemoryBusDropsUnsubscribedChannels(t *testing.T) {
	bus := NewMemoryBus()
	for i := 0; i < memoryQueueSize+10; i++ {
		_, err := bus.Publish(context.Background(), "session.created", []byte("x"), nil)
		require.NoError(t, err, "publish #%d", i+1)
	}
	assert.False(t, bus.subscribed("session.created"))
}

func TestMemoryBusDropsFailedMessages(t *testing.T) {
	bus := NewMemoryBus()
	seen := make(chan string, 4)
	cancel, _ := subscribeAsync(t, bus, "jobs", func(_ context.Context, msg Message) error {
		seen <- string(msg.Data)
		return errors.New("handler failed")
	})
	defer cancel()

	for _, body := range []string{"first", "second"} {
		_, err := bus.Publish(context.Background(), "jobs", []byte(body), nil)
		require.NoError(t, err)
	}

	assert.Equal(t, "first", <-seen)
	assert.Equal(t, "second", <-seen)
	select {
	case body := <-seen:
		t.Fatalf("unexpected redelivery of %q", body)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryBusRejectsInvalidUse(t *testing.T) {
	bus := NewMemoryBus()
	_, err := bus.Publish(context.Background(), "", nil, nil)
	assert.Error(t, err)
	assert.Error(t, bus.Subscribe(context.Background(), "", nil))

	require.NoError(t, bus.Close())
	_, err = bus.Publish(context.Background(), "jobs", nil, nil)
	assert.Error(t, err)
	assert.Error(t, bus.Subscribe(context.Background(), "jobs", nil))
}

func TestMemoryBusFull(t *testing.T) {
	bus := NewMemoryBus()
	block := make(chan struct{})
	cancel, _ := subscribeAsync(t, bus, "jobs", func(ctx context.Context, _ Message) error {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return nil
	})
	defer cancel()
	defer close(block)

	// One message is held by the blocked handler, the rest fill the queue.
	var err error
	for i := 0; i < memoryQueueSize+2 && err == nil; i++ {
		_, err = bus.Publish(context.Background(), "jobs", nil, nil)
	}
	assert.EqualError(t, err, "memory channel full")
}

func TestNewFromConfig(t *testing.T) {
	broker, err := NewFromConfig(context.Background(), config.MQConfig{Backend: BackendNone})
	require.NoError(t, err)
	assert.Nil(t, broker)

	broker, err = NewFromConfig(context.Background(), config.MQConfig{Backend: BackendMemory})
	require.NoError(t, err)
	require.NotNil(t, broker)
	assert.NoError(t, broker.Close())

	_, err = NewFromConfig(context.Background(), config.MQConfig{Backend: "kafka"})
	assert.Error(t, err)
}
