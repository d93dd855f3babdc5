package domain

import (
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
)

// Entity types carried in event envelopes.
const (
	EntityFlight  = "flight"
	EntityBaggage = "baggage"
)

// Event subtypes. Consumers must tolerate subtypes they do not know about;
// newer producers may add more.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
	EventDelayed = "delayed"
)

// Event is the immutable fact describing one committed mutation. It is
// append-only: published once, never mutated or retracted. Ordering is
// guaranteed only within the same routing key.
type Event struct {
	ID         string                 `json:"id,omitempty"`
	EntityType string                 `json:"entityType"`
	Subtype    string                 `json:"subtype"`
	EntityID   string                 `json:"entityId"`
	RoutingKey string                 `json:"routingKey"`
	Payload    sonic.NoCopyRawMessage `json:"payload,omitempty"`
	EmittedAt  time.Time              `json:"emittedAt"`
}

// NewEvent builds an envelope for a committed mutation. The payload must be
// the changed fields only, never a fleet-wide snapshot.
func NewEvent(entityType, subtype, entityID, routingKey string, payload any) (Event, error) {
	ev := Event{
		ID:         uuid.NewString(),
		EntityType: entityType,
		Subtype:    subtype,
		EntityID:   entityID,
		RoutingKey: routingKey,
		EmittedAt:  time.Now().UTC(),
	}
	if payload != nil {
		data, err := sonic.Marshal(payload)
		if err != nil {
			return Event{}, fmt.Errorf("marshal event payload: %w", err)
		}
		ev.Payload = data
	}
	return ev, nil
}

// Encode serializes the envelope for the bus.
func (e Event) Encode() ([]byte, error) {
	return sonic.Marshal(e)
}

// DecodeError indicates that bytes received from the bus could not be turned
// into a valid event. It is a per-message defect: consumers log it and move
// on rather than halting the subscription.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode event: %s: %v", e.Reason, e.Err)
	}
	return "decode event: " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Err }

// DecodeEvent parses an envelope. Unknown fields are ignored and absent
// optional fields are defaulted, so events from older producers stay
// decodable. It fails closed when the input is not valid JSON or the
// identifying fields are missing.
func DecodeEvent(data []byte) (Event, error) {
	var ev Event
	if err := sonic.Unmarshal(data, &ev); err != nil {
		return Event{}, &DecodeError{Reason: "malformed envelope", Err: err}
	}
	switch ev.EntityType {
	case EntityFlight, EntityBaggage:
	default:
		return Event{}, &DecodeError{Reason: fmt.Sprintf("unknown entity type %q", ev.EntityType)}
	}
	if ev.EntityID == "" {
		return Event{}, &DecodeError{Reason: "missing entityId"}
	}
	if ev.RoutingKey == "" {
		return Event{}, &DecodeError{Reason: "missing routingKey"}
	}
	if ev.Subtype == "" {
		return Event{}, &DecodeError{Reason: "missing subtype"}
	}
	return ev, nil
}
