package domain

import "time"

// Baggage statuses, in rough lifecycle order.
const (
	BaggageCheckin   = "checkin"
	BaggageLoaded    = "loaded"
	BaggageInTransit = "inTransit"
	BaggageAtBelt    = "atBelt"
	BaggageUnloaded  = "unloaded"
	BaggageDelivered = "delivered"
	BaggageLost      = "lost"
)

// ValidBaggageStatus reports whether s is one of the known baggage statuses.
func ValidBaggageStatus(s string) bool {
	switch s {
	case BaggageCheckin, BaggageLoaded, BaggageInTransit, BaggageAtBelt, BaggageUnloaded, BaggageDelivered, BaggageLost:
		return true
	}
	return false
}

// Baggage is a durable record for a single tagged bag.
type Baggage struct {
	ID        string    `json:"id" bson:"_id,omitempty"`
	TagID     string    `json:"tagId" bson:"tagId"`
	FlightID  string    `json:"flightId,omitempty" bson:"flightId,omitempty"`
	FlightNo  string    `json:"flightNo,omitempty" bson:"flightNo,omitempty"`
	Status    string    `json:"status" bson:"status"`
	Location  string    `json:"location,omitempty" bson:"location,omitempty"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// BaggageChanges carries the mutable baggage fields a PATCH may touch.
type BaggageChanges struct {
	Status   *string `json:"status,omitempty"`
	Location *string `json:"location,omitempty"`
}

// Fields returns only the fields that are set, keyed by their wire names.
func (c BaggageChanges) Fields() map[string]any {
	out := map[string]any{}
	if c.Status != nil {
		out["status"] = *c.Status
	}
	if c.Location != nil {
		out["location"] = *c.Location
	}
	return out
}

// Empty reports whether the patch carries no changes at all.
func (c BaggageChanges) Empty() bool {
	return c.Status == nil && c.Location == nil
}

// BaggageStatusEntry is the cacheable status snapshot of a bag.
type BaggageStatusEntry struct {
	TagID       string    `json:"tagId"`
	FlightNo    string    `json:"flightNo,omitempty"`
	Status      string    `json:"status"`
	Location    string    `json:"location,omitempty"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// StatusEntry derives the cacheable status snapshot from a baggage record.
func (b Baggage) StatusEntry() BaggageStatusEntry {
	return BaggageStatusEntry{
		TagID:       b.TagID,
		FlightNo:    b.FlightNo,
		Status:      b.Status,
		Location:    b.Location,
		LastUpdated: b.UpdatedAt,
	}
}
