package bus

import (
	"context"
	"sync"
)

// Memory is an in-process bus with the same observable contract as the
// JetStream client: retained ordered messages, replay from earliest on every
// subscribe, explicit acks. Tests and DEV_MODE use it; replay-on-resubscribe
// is what makes bridge restarts lose nothing (at the cost of duplicates).
type Memory struct {
	mu       sync.Mutex
	closed   bool
	retained map[string][]retainedMsg
	subs     map[string][]*memSub

	// acks use their own lock so a consumer acking never contends with a
	// publisher blocked on that consumer's channel.
	ackMu sync.Mutex
	acked map[string]int
}

type retainedMsg struct {
	routingKey string
	data       []byte
}

type memSub struct {
	ch   chan Message
	done <-chan struct{}
}

// NewMemory returns an empty in-memory bus.
func NewMemory() *Memory {
	return &Memory{
		retained: make(map[string][]retainedMsg),
		subs:     make(map[string][]*memSub),
		acked:    make(map[string]int),
	}
}

// Publish retains the message and delivers it to live subscribers.
func (m *Memory) Publish(_ context.Context, topic, routingKey string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	cp := append([]byte(nil), data...)
	m.retained[topic] = append(m.retained[topic], retainedMsg{routingKey: routingKey, data: cp})
	for _, sub := range m.subs[topic] {
		m.deliverLocked(sub, topic, routingKey, cp)
	}
	return nil
}

// Subscribe replays every retained message for the topic, then streams live
// publishes until ctx is cancelled.
func (m *Memory) Subscribe(ctx context.Context, topic string) (<-chan Message, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	sub := &memSub{ch: make(chan Message, 1024), done: ctx.Done()}
	for _, r := range m.retained[topic] {
		m.deliverLocked(sub, topic, r.routingKey, r.data)
	}
	m.subs[topic] = append(m.subs[topic], sub)
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		live := m.subs[topic]
		for i, s := range live {
			if s == sub {
				m.subs[topic] = append(live[:i], live[i+1:]...)
				break
			}
		}
		m.mu.Unlock()
		close(sub.ch)
	}()
	return sub.ch, nil
}

func (m *Memory) deliverLocked(sub *memSub, topic, routingKey string, data []byte) {
	msg := Message{
		Topic:      topic,
		RoutingKey: routingKey,
		Data:       data,
		ack: func() {
			m.ackMu.Lock()
			m.acked[topic]++
			m.ackMu.Unlock()
		},
	}
	select {
	case sub.ch <- msg:
	case <-sub.done:
	}
}

// Acked reports how many messages on the topic have been acknowledged,
// counting redeliveries. Used by tests.
func (m *Memory) Acked(topic string) int {
	m.ackMu.Lock()
	defer m.ackMu.Unlock()
	return m.acked[topic]
}

// Retained reports how many messages the topic has retained. Used by tests.
func (m *Memory) Retained(topic string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.retained[topic])
}

// Close rejects further publishes and subscriptions.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
