package pipeline

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"github.com/Varun-CA-08/Airline/domain"
	"github.com/Varun-CA-08/Airline/metrics"
)

// publish attempts the event once inline, then hands failures to a bounded
// background retry loop. The durable write already succeeded by the time this
// runs, so nothing here ever reaches the caller.
func (c *Coordinator) publish(topic string, ev domain.Event) {
	data, err := ev.Encode()
	if err != nil {
		log.WithError(err).WithField("event", ev.ID).Error("encode event, not publishing")
		return
	}

	err = c.tryPublish(topic, ev.RoutingKey, data)
	if err == nil {
		metrics.EventsPublished.WithLabelValues(topic).Inc()
		return
	}
	metrics.PublishFailures.WithLabelValues(topic).Inc()
	log.WithError(err).WithFields(log.Fields{
		"topic": topic,
		"key":   ev.RoutingKey,
		"event": ev.ID,
	}).Error("event publish failed, scheduling retries")

	c.retryWG.Add(1)
	go c.retryPublish(topic, ev, data)
}

func (c *Coordinator) retryPublish(topic string, ev domain.Event, data []byte) {
	defer c.retryWG.Done()
	for attempt := 1; attempt <= c.cfg.PublishRetries; attempt++ {
		delay := exponentialBackoff(attempt, c.cfg.RetryInitial, c.cfg.RetryMax)
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-c.closing:
			timer.Stop()
			return
		}

		err := c.tryPublish(topic, ev.RoutingKey, data)
		if err == nil {
			metrics.EventsPublished.WithLabelValues(topic).Inc()
			log.WithFields(log.Fields{"event": ev.ID, "attempt": attempt}).Info("event published after retry")
			return
		}
		metrics.PublishFailures.WithLabelValues(topic).Inc()
		log.WithError(err).WithFields(log.Fields{"event": ev.ID, "attempt": attempt}).Warn("event publish retry failed")
	}
	metrics.PublishAbandoned.WithLabelValues(topic).Inc()
	log.WithFields(log.Fields{"event": ev.ID, "key": ev.RoutingKey}).
		Error("event abandoned after exhausting publish retries")
}

func (c *Coordinator) tryPublish(topic, key string, data []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.PublishTimeout)
	defer cancel()
	return c.bus.Publish(ctx, topic, key, data)
}

// cachePutJSON writes a derived snapshot best-effort. Writing the same value
// twice is a no-op in effect, so redelivered events are safe to reapply.
func (c *Coordinator) cachePutJSON(key string, value any) {
	if c.cache == nil {
		return
	}
	data, err := sonic.Marshal(value)
	if err != nil {
		log.WithError(err).WithField("key", key).Error("marshal cache entry")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c.cache.Put(ctx, key, data, c.cfg.CacheTTL)
}

func (c *Coordinator) cacheInvalidate(key string) {
	if c.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c.cache.Invalidate(ctx, key)
}

// exponentialBackoff doubles the delay per attempt up to max, with ±20%
// jitter to avoid retry thundering.
func exponentialBackoff(attempt int, initial, max time.Duration) time.Duration {
	if attempt <= 0 {
		if initial <= 0 {
			return time.Second
		}
		return initial
	}
	if initial <= 0 {
		initial = time.Second
	}
	if max <= 0 {
		max = 10 * time.Second
	}
	backoff := float64(initial) * math.Pow(2, float64(attempt-1))
	if backoff > float64(max) {
		backoff = float64(max)
	}
	jitter := 0.2 * backoff
	return time.Duration(backoff + (rand.Float64()-0.5)*2*jitter)
}
