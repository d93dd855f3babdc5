package domain

import "time"

// Flight statuses as used across the API, the event payloads and the cache.
const (
	FlightScheduled = "scheduled"
	FlightBoarding  = "boarding"
	FlightDeparted  = "departed"
	FlightArrived   = "arrived"
	FlightDelayed   = "delayed"
	FlightCancelled = "cancelled"
)

// ValidFlightStatus reports whether s is one of the known flight statuses.
func ValidFlightStatus(s string) bool {
	switch s {
	case FlightScheduled, FlightBoarding, FlightDeparted, FlightArrived, FlightDelayed, FlightCancelled:
		return true
	}
	return false
}

// Flight is a durable record owned by the store. The pipeline only ever
// carries derived copies of it.
type Flight struct {
	ID           string     `json:"id" bson:"_id,omitempty"`
	FlightNo     string     `json:"flightNo" bson:"flightNo"`
	Origin       string     `json:"origin" bson:"origin"`
	Destination  string     `json:"destination" bson:"destination"`
	Status       string     `json:"status" bson:"status"`
	Gate         string     `json:"gate,omitempty" bson:"gate,omitempty"`
	ScheduledDep *time.Time `json:"scheduledDep,omitempty" bson:"scheduledDep,omitempty"`
	ScheduledArr *time.Time `json:"scheduledArr,omitempty" bson:"scheduledArr,omitempty"`
	CreatedBy    string     `json:"createdBy,omitempty" bson:"createdBy,omitempty"`
	CreatedAt    time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt" bson:"updatedAt"`
}

// FlightChanges carries the subset of mutable flight fields a PATCH may touch.
// Nil pointers mean "leave unchanged".
type FlightChanges struct {
	Status       *string    `json:"status,omitempty"`
	Gate         *string    `json:"gate,omitempty"`
	ScheduledDep *time.Time `json:"scheduledDep,omitempty"`
	ScheduledArr *time.Time `json:"scheduledArr,omitempty"`
}

// Fields returns only the fields that are actually set, keyed by their wire
// names. This is what ends up in the event payload: changed fields only.
func (c FlightChanges) Fields() map[string]any {
	out := map[string]any{}
	if c.Status != nil {
		out["status"] = *c.Status
	}
	if c.Gate != nil {
		out["gate"] = *c.Gate
	}
	if c.ScheduledDep != nil {
		out["scheduledDep"] = c.ScheduledDep.UTC().Format(time.RFC3339)
	}
	if c.ScheduledArr != nil {
		out["scheduledArr"] = c.ScheduledArr.UTC().Format(time.RFC3339)
	}
	return out
}

// Empty reports whether the patch carries no changes at all.
func (c FlightChanges) Empty() bool {
	return c.Status == nil && c.Gate == nil && c.ScheduledDep == nil && c.ScheduledArr == nil
}

// FlightStatusEntry is the derived, expendable copy of a flight kept in the
// status cache. It mirrors a subset of the durable record and is never a
// source of truth.
type FlightStatusEntry struct {
	FlightNo     string     `json:"flightNo"`
	Gate         string     `json:"gate,omitempty"`
	Status       string     `json:"status"`
	ScheduledDep *time.Time `json:"scheduledDep,omitempty"`
	ScheduledArr *time.Time `json:"scheduledArr,omitempty"`
	LastUpdated  time.Time  `json:"lastUpdated"`
}

// StatusEntry derives the cacheable status snapshot from a flight record.
func (f Flight) StatusEntry() FlightStatusEntry {
	return FlightStatusEntry{
		FlightNo:     f.FlightNo,
		Gate:         f.Gate,
		Status:       f.Status,
		ScheduledDep: f.ScheduledDep,
		ScheduledArr: f.ScheduledArr,
		LastUpdated:  f.UpdatedAt,
	}
}
