// Package pipeline contains the mutation coordinator: the write-path sequence
// persist -> publish event -> update cache. Durability is strict, propagation
// is eventual: once the store commit succeeds the caller sees success, and
// publish/cache failures are logged, retried where useful, never surfaced.
package pipeline

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Varun-CA-08/Airline/bus"
	"github.com/Varun-CA-08/Airline/domain"
	"github.com/Varun-CA-08/Airline/storage"
)

// Store is the durable writer-of-record. A failed store call aborts the
// mutation with nothing observable changed.
type Store interface {
	CreateFlight(ctx context.Context, f domain.Flight) (domain.Flight, error)
	UpdateFlight(ctx context.Context, id string, ch domain.FlightChanges) (domain.Flight, error)
	DeleteFlight(ctx context.Context, id string) (domain.Flight, error)
	CreateBaggage(ctx context.Context, b domain.Baggage) (domain.Baggage, error)
	UpdateBaggage(ctx context.Context, id string, ch domain.BaggageChanges) (domain.Baggage, error)
	DeleteBaggage(ctx context.Context, id string) (domain.Baggage, error)
}

// CacheWriter is the best-effort cache side of propagation.
type CacheWriter interface {
	Put(ctx context.Context, key string, val []byte, ttl time.Duration)
	Invalidate(ctx context.Context, key string)
}

// Config tunes propagation behavior. Zero values fall back to defaults.
type Config struct {
	// PublishTimeout bounds each publish attempt.
	PublishTimeout time.Duration
	// PublishRetries is how many times a failed publish is retried in the
	// background before the event is abandoned. Publish is the only
	// propagation path without a self-healing fallback, so it gets retries;
	// the cache has its TTL as backstop.
	PublishRetries int
	RetryInitial   time.Duration
	RetryMax       time.Duration
	// CacheTTL bounds staleness of entity status entries.
	CacheTTL time.Duration
}

func (c Config) withDefaults() Config {
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = 10 * time.Second
	}
	if c.PublishRetries <= 0 {
		c.PublishRetries = 5
	}
	if c.RetryInitial <= 0 {
		c.RetryInitial = 250 * time.Millisecond
	}
	if c.RetryMax <= 0 {
		c.RetryMax = 30 * time.Second
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = storage.DefaultTTL
	}
	return c
}

// Coordinator orchestrates the write path for flights and baggage.
type Coordinator struct {
	store Store
	bus   bus.Publisher
	cache CacheWriter
	cfg   Config

	retryWG sync.WaitGroup
	closing chan struct{}
}

// New creates a coordinator. Ownership is explicit: one store handle, one bus
// client, one cache accessor, all passed by reference.
func New(store Store, publisher bus.Publisher, cache CacheWriter, cfg Config) *Coordinator {
	return &Coordinator{
		store:   store,
		bus:     publisher,
		cache:   cache,
		cfg:     cfg.withDefaults(),
		closing: make(chan struct{}),
	}
}

// Close stops background publish retries and waits for them to drain.
func (c *Coordinator) Close() {
	close(c.closing)
	c.retryWG.Wait()
}

// CreateFlight persists a new flight, then propagates a created event and a
// status cache entry.
func (c *Coordinator) CreateFlight(ctx context.Context, f domain.Flight) (domain.Flight, error) {
	created, err := c.store.CreateFlight(ctx, f)
	if err != nil {
		return domain.Flight{}, err
	}
	c.propagateFlight(created, domain.EventCreated, map[string]any{
		"flightNo":    created.FlightNo,
		"origin":      created.Origin,
		"destination": created.Destination,
		"status":      created.Status,
	})
	return created, nil
}

// UpdateFlight applies a patch, then propagates an updated event carrying the
// changed fields only.
func (c *Coordinator) UpdateFlight(ctx context.Context, id string, ch domain.FlightChanges) (domain.Flight, error) {
	updated, err := c.store.UpdateFlight(ctx, id, ch)
	if err != nil {
		return domain.Flight{}, err
	}
	c.propagateFlight(updated, domain.EventUpdated, ch.Fields())
	return updated, nil
}

// DeleteFlight removes a flight, publishes a deleted event and invalidates
// the status cache entry.
func (c *Coordinator) DeleteFlight(ctx context.Context, id string) (domain.Flight, error) {
	deleted, err := c.store.DeleteFlight(ctx, id)
	if err != nil {
		return domain.Flight{}, err
	}
	ev, err := domain.NewEvent(domain.EntityFlight, domain.EventDeleted, deleted.ID, deleted.FlightNo, nil)
	if err != nil {
		log.WithError(err).Error("build flight deleted event")
		return deleted, nil
	}
	c.publish(bus.TopicFlightEvents, ev)
	c.cacheInvalidate(storage.FlightStatusKey(deleted.ID))
	return deleted, nil
}

// DelayFlight marks a flight delayed, publishes a delayed event with the
// reason, refreshes the status cache entry and invalidates the analytics
// snapshot (a delay changes today's aggregate).
func (c *Coordinator) DelayFlight(ctx context.Context, id, reason string, newTime *time.Time) (domain.Flight, error) {
	status := domain.FlightDelayed
	ch := domain.FlightChanges{Status: &status, ScheduledDep: newTime}
	updated, err := c.store.UpdateFlight(ctx, id, ch)
	if err != nil {
		return domain.Flight{}, err
	}

	payload := map[string]any{"status": domain.FlightDelayed}
	if reason != "" {
		payload["reason"] = reason
	}
	if newTime != nil {
		payload["newTime"] = newTime.UTC().Format(time.RFC3339)
	}
	ev, err := domain.NewEvent(domain.EntityFlight, domain.EventDelayed, updated.ID, updated.FlightNo, payload)
	if err != nil {
		log.WithError(err).Error("build flight delayed event")
		return updated, nil
	}
	c.publish(bus.TopicFlightEvents, ev)
	c.cachePutJSON(storage.FlightStatusKey(updated.ID), updated.StatusEntry())
	c.cacheInvalidate(storage.AnalyticsKey("today"))
	return updated, nil
}

// CreateBaggage persists a new baggage record and propagates it.
func (c *Coordinator) CreateBaggage(ctx context.Context, b domain.Baggage) (domain.Baggage, error) {
	created, err := c.store.CreateBaggage(ctx, b)
	if err != nil {
		return domain.Baggage{}, err
	}
	c.propagateBaggage(created, domain.EventCreated, map[string]any{
		"tagId":    created.TagID,
		"flightNo": created.FlightNo,
		"status":   created.Status,
	})
	return created, nil
}

// UpdateBaggage applies a patch and propagates the changed fields.
func (c *Coordinator) UpdateBaggage(ctx context.Context, id string, ch domain.BaggageChanges) (domain.Baggage, error) {
	updated, err := c.store.UpdateBaggage(ctx, id, ch)
	if err != nil {
		return domain.Baggage{}, err
	}
	c.propagateBaggage(updated, domain.EventUpdated, ch.Fields())
	return updated, nil
}

// DeleteBaggage removes a baggage record, publishes a deleted event and
// invalidates its cache entry.
func (c *Coordinator) DeleteBaggage(ctx context.Context, id string) (domain.Baggage, error) {
	deleted, err := c.store.DeleteBaggage(ctx, id)
	if err != nil {
		return domain.Baggage{}, err
	}
	ev, err := domain.NewEvent(domain.EntityBaggage, domain.EventDeleted, deleted.ID, deleted.TagID, nil)
	if err != nil {
		log.WithError(err).Error("build baggage deleted event")
		return deleted, nil
	}
	c.publish(bus.TopicBaggageEvents, ev)
	c.cacheInvalidate(storage.BaggageStatusKey(deleted.ID))
	return deleted, nil
}

func (c *Coordinator) propagateFlight(f domain.Flight, subtype string, payload map[string]any) {
	ev, err := domain.NewEvent(domain.EntityFlight, subtype, f.ID, f.FlightNo, payload)
	if err != nil {
		log.WithError(err).Error("build flight event")
		return
	}
	c.publish(bus.TopicFlightEvents, ev)
	c.cachePutJSON(storage.FlightStatusKey(f.ID), f.StatusEntry())
}

func (c *Coordinator) propagateBaggage(b domain.Baggage, subtype string, payload map[string]any) {
	ev, err := domain.NewEvent(domain.EntityBaggage, subtype, b.ID, b.TagID, payload)
	if err != nil {
		log.WithError(err).Error("build baggage event")
		return
	}
	c.publish(bus.TopicBaggageEvents, ev)
	c.cachePutJSON(storage.BaggageStatusKey(b.ID), b.StatusEntry())
}
