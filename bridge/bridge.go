// Package bridge runs the bus-to-viewer side of the pipeline: one long-lived
// subscriber per topic that decodes domain events and hands them to the live
// notification fan-out.
package bridge

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"github.com/Varun-CA-08/Airline/bus"
	"github.com/Varun-CA-08/Airline/domain"
	"github.com/Varun-CA-08/Airline/metrics"
)

const defaultResubscribeDelay = time.Second

// Broadcaster receives the serialized notification for every decoded event.
type Broadcaster interface {
	Broadcast(data []byte)
}

// Bridge subscribes to the event topics from the earliest retained offset and
// forwards each event to the fan-out. Messages are acked only after the
// hand-off, so a crash in between causes redelivery, never loss; the fan-out
// side is idempotent-tolerant by design (duplicate notifications are
// acceptable, omissions are not).
type Bridge struct {
	bus    bus.Subscriber
	hub    Broadcaster
	topics []string
	delay  time.Duration
}

// New creates a bridge over the given topics. With no topics it covers both
// entity streams.
func New(b bus.Subscriber, hub Broadcaster, topics ...string) *Bridge {
	if len(topics) == 0 {
		topics = []string{bus.TopicFlightEvents, bus.TopicBaggageEvents}
	}
	return &Bridge{bus: b, hub: hub, topics: topics, delay: defaultResubscribeDelay}
}

// Run consumes all topics until ctx is cancelled. Each topic gets its own
// consumer loop that resubscribes from earliest after any subscription
// failure, trading duplicate delivery for no loss.
func (b *Bridge) Run(ctx context.Context) {
	done := make(chan struct{}, len(b.topics))
	for _, topic := range b.topics {
		go func(topic string) {
			b.consume(ctx, topic)
			done <- struct{}{}
		}(topic)
	}
	for range b.topics {
		<-done
	}
}

func (b *Bridge) consume(ctx context.Context, topic string) {
	for {
		ch, err := b.bus.Subscribe(ctx, topic)
		if err != nil {
			log.WithError(err).WithField("topic", topic).Error("subscribe failed, retrying")
			if !sleepCtx(ctx, b.delay) {
				return
			}
			continue
		}
		log.WithField("topic", topic).Info("bridge consuming")

		for msg := range ch {
			b.handle(msg)
		}
		if ctx.Err() != nil {
			return
		}
		log.WithField("topic", topic).Warn("subscription closed, resubscribing")
		if !sleepCtx(ctx, b.delay) {
			return
		}
	}
}

func (b *Bridge) handle(msg bus.Message) {
	ev, err := domain.DecodeEvent(msg.Data)
	if err != nil {
		// A malformed message is a per-message defect. Redelivery cannot
		// repair it, so it is acked and skipped rather than poisoning the
		// subscription.
		metrics.BridgeDecodeFailures.WithLabelValues(msg.Topic).Inc()
		log.WithError(err).WithFields(log.Fields{
			"topic": msg.Topic,
			"key":   msg.RoutingKey,
		}).Warn("skipping undecodable event")
		msg.Ack()
		return
	}

	data, err := sonic.Marshal(domain.NotificationFromEvent(ev))
	if err != nil {
		log.WithError(err).WithField("event", ev.ID).Error("marshal notification")
		msg.Ack()
		return
	}

	b.hub.Broadcast(data)
	msg.Ack()
	metrics.BridgeEvents.WithLabelValues(msg.Topic).Inc()
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
