// Package metrics exposes prometheus counters for the write-path pipeline.
// HTTP-level metrics come from the echoprometheus middleware; these cover the
// parts a request trace cannot see (async publish retries, the bridge loop,
// fan-out drops).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "airline_events_published_total",
		Help: "Domain events successfully published to the bus, labelled by topic.",
	}, []string{"topic"})

	PublishFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "airline_event_publish_failures_total",
		Help: "Publish attempts that failed, labelled by topic. Retries count separately.",
	}, []string{"topic"})

	PublishAbandoned = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "airline_event_publish_abandoned_total",
		Help: "Events dropped after exhausting publish retries, labelled by topic.",
	}, []string{"topic"})

	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "airline_cache_hits_total",
		Help: "Cache-aside reads answered from Redis.",
	})

	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "airline_cache_misses_total",
		Help: "Cache-aside reads that fell through to the store, including Redis outages.",
	})

	CacheWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "airline_cache_write_failures_total",
		Help: "Best-effort cache writes and invalidations that failed.",
	})

	BridgeEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "airline_bridge_events_total",
		Help: "Events the bridge handed to the fan-out, labelled by topic.",
	}, []string{"topic"})

	BridgeDecodeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "airline_bridge_decode_failures_total",
		Help: "Bus messages skipped because they could not be decoded.",
	}, []string{"topic"})

	FanoutSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "airline_fanout_sessions",
		Help: "Currently connected live viewers.",
	})

	FanoutDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "airline_fanout_dropped_total",
		Help: "Notifications dropped for slow viewers (oldest-first, per session).",
	})
)
