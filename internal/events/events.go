// Package events serializes domain events onto the message queue and
// consumes them in the background worker.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tutorhub/apiserver/types"
)

const contentTypeJSON = "application/json"

// Broker is the subset of mq.MQ used to move events.
type Broker interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// Publisher encodes events as JSON, one channel per event type.
type Publisher struct {
	broker Broker
}

func NewPublisher(broker Broker) *Publisher {
	return &Publisher{broker: broker}
}

// Publish implements services.EventPublisher.
func (p *Publisher) Publish(ctx context.Context, event types.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	attrs := map[string]string{
		"content-type": contentTypeJSON,
		"event-type":   string(event.Type),
	}
	if _, err := p.broker.Publish(ctx, string(event.Type), data, attrs); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

// Decode parses a message body produced by Publisher.
func Decode(data []byte) (types.Event, error) {
	var event types.Event
	if err := json.Unmarshal(data, &event); err != nil {
		return types.Event{}, fmt.Errorf("decode event: %w", err)
	}
	if event.Type == "" {
		return types.Event{}, fmt.Errorf("decode event: missing type")
	}
	return event, nil
}
