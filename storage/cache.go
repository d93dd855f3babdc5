package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/Varun-CA-08/Airline/metrics"
)

// DefaultTTL bounds how stale a cache entry may get if an explicit
// invalidation is lost. Every entry carries a TTL no longer than this.
const DefaultTTL = time.Hour

// Cache is a best-effort accessor around Redis. The cache is an optimization,
// never a correctness dependency: any failure degrades to a miss (reads) or a
// logged no-op (writes), and callers always have the store as fallback.
type Cache struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewCache wraps the given Redis client. A nil client yields a cache where
// every read misses, which keeps a cacheless deployment working. ttl <= 0
// falls back to DefaultTTL.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 || ttl > DefaultTTL {
		ttl = DefaultTTL
	}
	return &Cache{redis: client, ttl: ttl}
}

// Get returns the cached value for key, or ok=false on a miss. Redis errors
// are treated as misses so a cache outage never fails a read.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c == nil || c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.WithError(err).WithField("key", key).Debug("cache read failed, treating as miss")
		}
		metrics.CacheMisses.Inc()
		return nil, false
	}
	metrics.CacheHits.Inc()
	return data, true
}

// Put stores a value best-effort. The TTL is clamped to the configured bound
// so a lost invalidation cannot leave the entry stale forever.
func (c *Cache) Put(ctx context.Context, key string, val []byte, ttl time.Duration) {
	if c == nil || c.redis == nil {
		return
	}
	if ttl <= 0 || ttl > c.ttl {
		ttl = c.ttl
	}
	if err := c.redis.Set(ctx, key, val, ttl).Err(); err != nil {
		metrics.CacheWriteFailures.Inc()
		log.WithError(err).WithField("key", key).Warn("cache write failed")
	}
}

// Invalidate deletes a key best-effort. A failed delete is logged, not
// propagated; the TTL bound self-heals it.
func (c *Cache) Invalidate(ctx context.Context, key string) {
	if c == nil || c.redis == nil {
		return
	}
	if err := c.redis.Del(ctx, key).Err(); err != nil {
		metrics.CacheWriteFailures.Inc()
		log.WithError(err).WithField("key", key).Warn("cache invalidation failed")
	}
}

// TTL reports the staleness bound this cache applies to writes.
func (c *Cache) TTL() time.Duration { return c.ttl }

// FlightStatusKey is the cache key for a flight's status snapshot.
func FlightStatusKey(id string) string { return "flight:" + id + ":status" }

// BaggageStatusKey is the cache key for a bag's status snapshot.
func BaggageStatusKey(id string) string { return "baggage:" + id + ":status" }

// AnalyticsKey is the cache key for an analytics window, e.g. "today".
func AnalyticsKey(window string) string { return "analytics:" + window }
