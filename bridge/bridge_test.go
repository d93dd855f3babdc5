package bridge

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Varun-CA-08/Airline/bus"
	"github.com/Varun-CA-08/Airline/domain"
)

type collectingHub struct {
	mu   sync.Mutex
	msgs []string
}

func (h *collectingHub) Broadcast(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs = append(h.msgs, string(data))
}

func (h *collectingHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.msgs)
}

func (h *collectingHub) all() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.msgs...)
}

func publishEvent(t *testing.T, m *bus.Memory, topic, entityType, subtype, id, key string) {
	t.Helper()
	ev, err := domain.NewEvent(entityType, subtype, id, key, map[string]any{"status": "delayed"})
	if err != nil {
		t.Fatalf("new event: %v", err)
	}
	data, err := ev.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := m.Publish(context.Background(), topic, key, data); err != nil {
		t.Fatalf("publish: %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestBridgeForwardsEventsAndAcksAfterHandoff(t *testing.T) {
	m := bus.NewMemory()
	hub := &collectingHub{}

	publishEvent(t, m, bus.TopicFlightEvents, domain.EntityFlight, domain.EventDelayed, "f-1", "AB123")

	ctx, cancel := context.WithCancel(context.Background())
	br := New(m, hub, bus.TopicFlightEvents)
	go br.Run(ctx)
	defer cancel()

	waitFor(t, func() bool { return hub.count() == 1 })
	if !strings.Contains(hub.all()[0], "AB123") {
		t.Fatalf("notification should reference the flight: %s", hub.all()[0])
	}
	waitFor(t, func() bool { return m.Acked(bus.TopicFlightEvents) == 1 })

	// Live event after startup.
	publishEvent(t, m, bus.TopicFlightEvents, domain.EntityFlight, domain.EventUpdated, "f-2", "CD456")
	waitFor(t, func() bool { return hub.count() == 2 })
}

func TestBridgeSkipsUndecodableMessages(t *testing.T) {
	m := bus.NewMemory()
	hub := &collectingHub{}

	if err := m.Publish(context.Background(), bus.TopicFlightEvents, "junk", []byte("not-json{")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	publishEvent(t, m, bus.TopicFlightEvents, domain.EntityFlight, domain.EventCreated, "f-1", "AB123")

	ctx, cancel := context.WithCancel(context.Background())
	go New(m, hub, bus.TopicFlightEvents).Run(ctx)
	defer cancel()

	// The bad message is skipped (and acked), the good one still flows.
	waitFor(t, func() bool { return hub.count() == 1 })
	waitFor(t, func() bool { return m.Acked(bus.TopicFlightEvents) == 2 })
	if !strings.Contains(hub.all()[0], "AB123") {
		t.Fatalf("wrong message survived: %s", hub.all()[0])
	}
}

func TestBridgeRestartLosesNothing(t *testing.T) {
	m := bus.NewMemory()
	hub := &collectingHub{}

	for i, key := range []string{"AB123", "CD456", "EF789"} {
		publishEvent(t, m, bus.TopicFlightEvents, domain.EntityFlight, domain.EventUpdated, string(rune('a'+i)), key)
	}

	// First incarnation consumes everything, then "crashes".
	ctx1, cancel1 := context.WithCancel(context.Background())
	go New(m, hub, bus.TopicFlightEvents).Run(ctx1)
	waitFor(t, func() bool { return hub.count() == 3 })
	cancel1()

	// Restarted bridge resubscribes from earliest: duplicates are fine,
	// loss is not.
	publishEvent(t, m, bus.TopicFlightEvents, domain.EntityFlight, domain.EventDelayed, "d", "GH012")
	ctx2, cancel2 := context.WithCancel(context.Background())
	go New(m, hub, bus.TopicFlightEvents).Run(ctx2)
	defer cancel2()

	waitFor(t, func() bool { return hub.count() >= 7 })
	var gh int
	for _, msg := range hub.all() {
		if strings.Contains(msg, "GH012") {
			gh++
		}
	}
	if gh == 0 {
		t.Fatal("event published across the restart window was lost")
	}
}

func TestBridgeCoversBothTopicsByDefault(t *testing.T) {
	m := bus.NewMemory()
	hub := &collectingHub{}

	publishEvent(t, m, bus.TopicFlightEvents, domain.EntityFlight, domain.EventCreated, "f-1", "AB123")
	publishEvent(t, m, bus.TopicBaggageEvents, domain.EntityBaggage, domain.EventUpdated, "b-1", "TAG42")

	ctx, cancel := context.WithCancel(context.Background())
	go New(m, hub).Run(ctx)
	defer cancel()

	waitFor(t, func() bool { return hub.count() == 2 })
	all := strings.Join(hub.all(), "\n")
	if !strings.Contains(all, "AB123") || !strings.Contains(all, "TAG42") {
		t.Fatalf("expected both topics bridged, got:\n%s", all)
	}
}
