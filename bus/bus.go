// Package bus defines the ordered event bus contract the pipeline depends on
// and provides two implementations: NATS JetStream for deployments and an
// in-memory bus for tests and DEV_MODE.
//
// Delivery is at-least-once: a subscription starts from the earliest retained
// message and redelivers anything not acknowledged, so consumers must be
// idempotent. Ordering is guaranteed per routing key only.
package bus

import (
	"context"
	"errors"
)

// Topics, one logical stream per entity type, keyed by the business
// identifier (flight number, baggage tag).
const (
	TopicFlightEvents  = "flight-events"
	TopicBaggageEvents = "baggage-events"
)

// ErrClosed is returned when publishing on a closed bus.
var ErrClosed = errors.New("bus closed")

// Message is one delivery from a subscription. Ack must be called only after
// the message has been fully handed off downstream; unacked messages are
// redelivered rather than lost.
type Message struct {
	Topic      string
	RoutingKey string
	Data       []byte

	ack func()
}

// Ack acknowledges consumption. Safe to call on a zero Message.
func (m Message) Ack() {
	if m.ack != nil {
		m.ack()
	}
}

// Publisher is the producer half of the bus.
type Publisher interface {
	Publish(ctx context.Context, topic, routingKey string, data []byte) error
}

// Subscriber is the consumer half. Subscribe delivers from the earliest
// retained message and closes the channel when ctx is cancelled or the
// underlying subscription dies; callers are expected to resubscribe.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string) (<-chan Message, error)
}

// Bus is a full bus client.
type Bus interface {
	Publisher
	Subscriber
	Close() error
}
