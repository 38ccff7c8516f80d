package mq

import (
	"context"
	"errors"
	"maps"
	"sync"

	"github.com/google/uuid"
)

// MemoryBus delivers messages in-process. A channel's queue exists once
// somebody subscribes to it; like a Pub/Sub topic without subscriptions,
// messages published to a channel nobody listens on are dropped.
type MemoryBus struct {
	mu     sync.Mutex
	queues map[string]chan Message
	closed bool
}

const memoryQueueSize = 256

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{queues: make(map[string]chan Message)}
}

func (b *MemoryBus) subscribe(channel string) (chan Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, errors.New("memory bus closed")
	}
	q, ok := b.queues[channel]
	if !ok {
		q = make(chan Message, memoryQueueSize)
		b.queues[channel] = q
	}
	return q, nil
}

func (b *MemoryBus) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if channel == "" {
		return "", errors.New("memory channel is required")
	}
	b.mu.Lock()
	closed := b.closed
	q, ok := b.queues[channel]
	b.mu.Unlock()
	if closed {
		return "", errors.New("memory bus closed")
	}

	msg := Message{
		ID:         uuid.NewString(),
		Data:       append([]byte(nil), data...),
		Attributes: maps.Clone(attrs),
	}
	if !ok {
		return msg.ID, nil
	}
	select {
	case q <- msg:
		return msg.ID, nil
	case <-ctx.Done():
		return "", ctx.Err()
	default:
		return "", errors.New("memory channel full")
	}
}

// Subscribe blocks until ctx is done. Messages whose handler fails are
// dropped; there is no redelivery in-process.
func (b *MemoryBus) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if channel == "" {
		return errors.New("memory channel is required")
	}
	q, err := b.subscribe(channel)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-q:
			_ = handler(ctx, msg)
		}
	}
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}
