package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"

	"github.com/Varun-CA-08/Airline/bridge"
	"github.com/Varun-CA-08/Airline/bus"
	"github.com/Varun-CA-08/Airline/domain"
	"github.com/Varun-CA-08/Airline/fanout"
	"github.com/Varun-CA-08/Airline/storage"
)

type failingStore struct {
	err error
}

func (f *failingStore) CreateFlight(context.Context, domain.Flight) (domain.Flight, error) {
	return domain.Flight{}, f.err
}
func (f *failingStore) UpdateFlight(context.Context, string, domain.FlightChanges) (domain.Flight, error) {
	return domain.Flight{}, f.err
}
func (f *failingStore) DeleteFlight(context.Context, string) (domain.Flight, error) {
	return domain.Flight{}, f.err
}
func (f *failingStore) CreateBaggage(context.Context, domain.Baggage) (domain.Baggage, error) {
	return domain.Baggage{}, f.err
}
func (f *failingStore) UpdateBaggage(context.Context, string, domain.BaggageChanges) (domain.Baggage, error) {
	return domain.Baggage{}, f.err
}
func (f *failingStore) DeleteBaggage(context.Context, string) (domain.Baggage, error) {
	return domain.Baggage{}, f.err
}

type countingPublisher struct {
	mu       sync.Mutex
	failures int // fail this many leading attempts
	attempts int
	success  int
	lastKey  string
}

func (p *countingPublisher) Publish(_ context.Context, _, key string, _ []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts++
	p.lastKey = key
	if p.attempts <= p.failures {
		return errors.New("bus unavailable")
	}
	p.success++
	return nil
}

func (p *countingPublisher) stats() (attempts, success int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts, p.success
}

func (p *countingPublisher) key() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastKey
}

type recordingCache struct {
	mu          sync.Mutex
	entries     map[string][]byte
	invalidated []string
}

func newRecordingCache() *recordingCache {
	return &recordingCache{entries: map[string][]byte{}}
}

func (r *recordingCache) Put(_ context.Context, key string, val []byte, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[key] = append([]byte(nil), val...)
}

func (r *recordingCache) Invalidate(_ context.Context, key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, key)
	r.invalidated = append(r.invalidated, key)
}

func (r *recordingCache) get(key string) ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.entries[key]
	return v, ok
}

func (r *recordingCache) wasInvalidated(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range r.invalidated {
		if k == key {
			return true
		}
	}
	return false
}

func fastConfig() Config {
	return Config{
		PublishTimeout: time.Second,
		PublishRetries: 3,
		RetryInitial:   time.Millisecond,
		RetryMax:       5 * time.Millisecond,
	}
}

func TestStoreFailureAbortsWithNoSideEffects(t *testing.T) {
	pub := &countingPublisher{}
	cache := newRecordingCache()
	co := New(&failingStore{err: errors.New("disk on fire")}, pub, cache, fastConfig())
	defer co.Close()

	if _, err := co.CreateFlight(context.Background(), domain.Flight{FlightNo: "AB123"}); err == nil {
		t.Fatal("expected store failure to surface")
	}
	if attempts, _ := pub.stats(); attempts != 0 {
		t.Fatalf("no event may be published after a failed durable write, got %d attempts", attempts)
	}
	if len(cache.entries) != 0 || len(cache.invalidated) != 0 {
		t.Fatal("cache must be untouched after a failed durable write")
	}
}

func TestMutationSucceedsDespitePropagationFailures(t *testing.T) {
	store := storage.NewMemStore()
	// Publisher that never recovers, and a nil cache.
	pub := &countingPublisher{failures: 1 << 30}
	co := New(store, pub, nil, fastConfig())

	created, err := co.CreateFlight(context.Background(), domain.Flight{FlightNo: "AB123", Origin: "DEL", Destination: "BLR"})
	if err != nil {
		t.Fatalf("mutation must succeed once the durable write commits: %v", err)
	}
	co.Close() // drain the doomed retries

	// Durability-first: a direct store read returns the new state.
	got, err := store.GetFlight(context.Background(), created.ID)
	if err != nil || got.FlightNo != "AB123" {
		t.Fatalf("store read after success: %+v, %v", got, err)
	}
}

func TestPublishRetriesUntilSuccess(t *testing.T) {
	store := storage.NewMemStore()
	pub := &countingPublisher{failures: 2}
	co := New(store, pub, nil, fastConfig())
	defer co.Close()

	if _, err := co.CreateFlight(context.Background(), domain.Flight{FlightNo: "AB123"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, success := pub.stats(); success == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	attempts, success := pub.stats()
	if success != 1 {
		t.Fatalf("expected publish to eventually succeed, attempts=%d success=%d", attempts, success)
	}
	if attempts != 3 {
		t.Fatalf("expected 2 failures + 1 success, got %d attempts", attempts)
	}
	if got := pub.key(); got != "AB123" {
		t.Fatalf("events must be keyed by the routing key, got %q", got)
	}
}

func TestUpdateFlightCacheNeverAheadOfStore(t *testing.T) {
	store := storage.NewMemStore()
	cache := newRecordingCache()
	co := New(store, &countingPublisher{}, cache, fastConfig())
	defer co.Close()

	created, err := co.CreateFlight(context.Background(), domain.Flight{FlightNo: "AB123"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	gate := "C7"
	if _, err := co.UpdateFlight(context.Background(), created.ID, domain.FlightChanges{Gate: &gate}); err != nil {
		t.Fatalf("update: %v", err)
	}

	raw, ok := cache.get(storage.FlightStatusKey(created.ID))
	if !ok {
		t.Fatal("status cache entry should be present after update")
	}
	var entry domain.FlightStatusEntry
	if err := sonic.Unmarshal(raw, &entry); err != nil {
		t.Fatalf("decode cache entry: %v", err)
	}
	// The cached snapshot must equal committed state, never anything newer.
	stored, _ := store.GetFlight(context.Background(), created.ID)
	if entry.Gate != stored.Gate || entry.Status != stored.Status || entry.FlightNo != stored.FlightNo {
		t.Fatalf("cache diverged from store: cache=%+v store=%+v", entry, stored)
	}
}

func TestDeleteFlightInvalidatesCache(t *testing.T) {
	store := storage.NewMemStore()
	cache := newRecordingCache()
	pub := &countingPublisher{}
	co := New(store, pub, cache, fastConfig())
	defer co.Close()

	created, err := co.CreateFlight(context.Background(), domain.Flight{FlightNo: "AB123"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := co.DeleteFlight(context.Background(), created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	key := storage.FlightStatusKey(created.ID)
	if !cache.wasInvalidated(key) {
		t.Fatalf("delete must invalidate %s", key)
	}
	if _, ok := cache.get(key); ok {
		t.Fatal("status entry should be gone after delete")
	}
}

func TestDelayFlightScenarioEndToEnd(t *testing.T) {
	// The full pipeline: coordinator -> memory bus -> bridge -> fan-out.
	store := storage.NewMemStore()
	memBus := bus.NewMemory()
	cache := newRecordingCache()
	co := New(store, memBus, cache, fastConfig())
	defer co.Close()

	hub := fanout.NewHub(8)
	viewer := hub.Register()
	defer hub.Unregister(viewer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bridge.New(memBus, hub, bus.TopicFlightEvents).Run(ctx)

	created, err := co.CreateFlight(context.Background(), domain.Flight{FlightNo: "AB123", Origin: "DEL", Destination: "BLR"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := co.DelayFlight(context.Background(), created.ID, "weather", nil); err != nil {
		t.Fatalf("delay: %v", err)
	}

	// (1) The store reflects the delay.
	stored, _ := store.GetFlight(context.Background(), created.ID)
	if stored.Status != domain.FlightDelayed {
		t.Fatalf("store status = %s, want delayed", stored.Status)
	}

	// (2) A delayed event keyed AB123 is observable on the bus.
	if memBus.Retained(bus.TopicFlightEvents) != 2 {
		t.Fatalf("expected created + delayed events, got %d", memBus.Retained(bus.TopicFlightEvents))
	}

	// (3) The cache entry equals the new status.
	raw, ok := cache.get(storage.FlightStatusKey(created.ID))
	if !ok {
		t.Fatal("expected status cache entry")
	}
	var entry domain.FlightStatusEntry
	if err := sonic.Unmarshal(raw, &entry); err != nil {
		t.Fatalf("decode cache entry: %v", err)
	}
	if entry.Status != domain.FlightDelayed {
		t.Fatalf("cached status = %s, want delayed", entry.Status)
	}
	// The delay also drops the analytics snapshot.
	if !cache.wasInvalidated(storage.AnalyticsKey("today")) {
		t.Fatal("delay must invalidate the analytics cache")
	}

	// (4) The viewer receives a notification referencing AB123.
	deadline := time.After(2 * time.Second)
	seen := 0
	for seen < 2 {
		select {
		case msg := <-viewer.C():
			if strings.Contains(string(msg), "AB123") {
				seen++
			}
		case <-deadline:
			t.Fatalf("viewer received %d AB123 notifications, want at least 2 (created, delayed)", seen)
		}
	}
}
