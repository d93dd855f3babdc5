// Package fanout maintains the set of connected live viewers and delivers
// notifications to all of them. Each session's outbound path is isolated: one
// slow viewer drops its own oldest messages instead of stalling the rest.
package fanout

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/Varun-CA-08/Airline/metrics"
)

const defaultSessionBuffer = 16

// Session is one live viewer connection. It holds no durable state; a viewer
// that reconnects starts blank and sees only events emitted afterwards.
type Session struct {
	id       string
	ch       chan []byte
	degraded atomic.Bool
	dropped  atomic.Uint64
}

// ID returns the session's identifier, used for logging only.
func (s *Session) ID() string { return s.id }

// C is the session's outbound delivery channel. It is closed on unregister.
func (s *Session) C() <-chan []byte { return s.ch }

// Degraded reports whether this viewer has ever fallen behind far enough to
// lose a message.
func (s *Session) Degraded() bool { return s.degraded.Load() }

// Dropped reports how many messages this viewer lost.
func (s *Session) Dropped() uint64 { return s.dropped.Load() }

// Hub is the viewer registry. Register/Unregister race freely with Broadcast;
// the session set is guarded by one mutex and broadcast sends never block.
type Hub struct {
	mu       sync.Mutex
	sessions map[*Session]struct{}
	buffer   int
}

// NewHub creates a hub whose sessions buffer up to buffer messages each.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultSessionBuffer
	}
	return &Hub{sessions: make(map[*Session]struct{}), buffer: buffer}
}

// Register adds a viewer and returns its session.
func (h *Hub) Register() *Session {
	s := &Session{id: uuid.NewString(), ch: make(chan []byte, h.buffer)}
	h.mu.Lock()
	h.sessions[s] = struct{}{}
	n := len(h.sessions)
	h.mu.Unlock()
	metrics.FanoutSessions.Set(float64(n))
	log.WithField("session", s.id).Debug("viewer registered")
	return s
}

// Unregister removes a viewer and closes its channel. Idempotent; called on
// disconnect so sessions never leak.
func (h *Hub) Unregister(s *Session) {
	if s == nil {
		return
	}
	h.mu.Lock()
	_, ok := h.sessions[s]
	if ok {
		delete(h.sessions, s)
		close(s.ch)
	}
	n := len(h.sessions)
	h.mu.Unlock()
	if ok {
		metrics.FanoutSessions.Set(float64(n))
		log.WithField("session", s.id).Debug("viewer unregistered")
	}
}

// Len reports the number of connected viewers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Broadcast delivers data to every registered session. A session whose buffer
// is full loses its oldest message, oldest-first, and is marked degraded;
// other sessions are unaffected and the broadcast loop never stalls.
func (h *Hub) Broadcast(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.sessions {
		h.offer(s, data)
	}
}

func (h *Hub) offer(s *Session, data []byte) {
	select {
	case s.ch <- data:
		return
	default:
	}

	// Buffer full: shed the oldest entry for this viewer only.
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- data:
	default:
		// Still full; the viewer loses the new message instead.
	}
	s.dropped.Add(1)
	metrics.FanoutDropped.Inc()
	if !s.degraded.Swap(true) {
		log.WithField("session", s.id).Warn("viewer falling behind, dropping oldest notifications")
	}
}
