package bus

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// JetStream is the NATS-backed bus. Each topic maps to one stream whose
// subjects are "<topic>.<routingKey>"; JetStream preserves publish order per
// stream, which gives per-routing-key ordering, and explicit acks give
// at-least-once delivery.
type JetStream struct {
	nc *nats.Conn
	js nats.JetStreamContext
}

// ConnectJetStream connects to NATS and ensures a stream per topic exists.
func ConnectJetStream(url string, topics ...string) (*JetStream, error) {
	nc, err := nats.Connect(url,
		nats.Name("airline-ops"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream context: %w", err)
	}

	for _, topic := range topics {
		if _, err := js.StreamInfo(topic); err == nil {
			continue
		} else if !errors.Is(err, nats.ErrStreamNotFound) {
			nc.Close()
			return nil, fmt.Errorf("stream info %s: %w", topic, err)
		}
		_, err := js.AddStream(&nats.StreamConfig{
			Name:     topic,
			Subjects: []string{topic + ".>"},
		})
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("create stream %s: %w", topic, err)
		}
	}
	return &JetStream{nc: nc, js: js}, nil
}

// Publish appends the message to the topic's stream under a subject derived
// from the routing key, preserving per-key commit order.
func (b *JetStream) Publish(ctx context.Context, topic, routingKey string, data []byte) error {
	if b.nc.IsClosed() {
		return ErrClosed
	}
	subject := topic + "." + sanitizeKey(routingKey)
	if _, err := b.js.Publish(subject, data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Subscribe consumes the whole topic from the earliest retained message with
// manual acks. The returned channel closes when ctx is cancelled.
func (b *JetStream) Subscribe(ctx context.Context, topic string) (<-chan Message, error) {
	ch := make(chan Message, 64)
	sub, err := b.js.Subscribe(topic+".>", func(m *nats.Msg) {
		msg := Message{
			Topic:      topic,
			RoutingKey: routingKeyFromSubject(topic, m.Subject),
			Data:       m.Data,
			ack: func() {
				if err := m.Ack(); err != nil {
					log.WithError(err).WithField("topic", topic).Warn("ack failed, message will be redelivered")
				}
			},
		}
		select {
		case ch <- msg:
		case <-ctx.Done():
		}
	}, nats.DeliverAll(), nats.ManualAck())
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}

	go func() {
		<-ctx.Done()
		if err := sub.Unsubscribe(); err != nil {
			log.WithError(err).WithField("topic", topic).Debug("unsubscribe failed")
		}
		close(ch)
	}()
	return ch, nil
}

// Close drains the connection, flushing pending publishes.
func (b *JetStream) Close() error {
	return b.nc.Drain()
}

// sanitizeKey makes a routing key safe for use as a subject token.
func sanitizeKey(key string) string {
	if key == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ':
			return '_'
		}
		return r
	}, key)
}

func routingKeyFromSubject(topic, subject string) string {
	return strings.TrimPrefix(subject, topic+".")
}
