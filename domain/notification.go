package domain

import (
	"fmt"
	"time"

	"github.com/bytedance/sonic"
)

// Notification severities.
const (
	SeverityInfo     = "info"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Notification is the derived object pushed to live viewers and shown on the
// dashboard. It references the entity by its business key, not by payload.
type Notification struct {
	Type      string    `json:"type"`
	Severity  string    `json:"severity"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// NotificationFromEvent derives the viewer-facing notification for a domain
// event. Unknown subtypes still produce a generic notification so viewers
// keep working against newer producers.
func NotificationFromEvent(ev Event) Notification {
	n := Notification{
		Type:      ev.EntityType,
		Severity:  SeverityInfo,
		Timestamp: ev.EmittedAt,
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now().UTC()
	}

	switch ev.EntityType {
	case EntityFlight:
		switch ev.Subtype {
		case EventCreated:
			n.Title = "Flight Created - " + ev.RoutingKey
			n.Message = fmt.Sprintf("Flight %s has been scheduled.", ev.RoutingKey)
		case EventDelayed:
			n.Severity = SeverityHigh
			n.Title = "Flight Delayed - " + ev.RoutingKey
			n.Message = fmt.Sprintf("Flight %s has been delayed.", ev.RoutingKey)
		case EventDeleted:
			n.Title = "Flight Removed - " + ev.RoutingKey
			n.Message = fmt.Sprintf("Flight %s has been removed from the schedule.", ev.RoutingKey)
		default:
			if status := payloadStatus(ev.Payload); status != "" {
				if status == FlightDelayed || status == FlightCancelled {
					n.Severity = SeverityHigh
				}
				n.Title = "Flight Update - " + ev.RoutingKey
				n.Message = fmt.Sprintf("Flight %s is now %s.", ev.RoutingKey, status)
			} else {
				n.Title = "Flight Update - " + ev.RoutingKey
				n.Message = fmt.Sprintf("Flight %s has been updated.", ev.RoutingKey)
			}
		}
	case EntityBaggage:
		switch status := payloadStatus(ev.Payload); {
		case status == BaggageLost:
			n.Severity = SeverityCritical
			n.Title = "Baggage Lost - " + ev.RoutingKey
			n.Message = fmt.Sprintf("Baggage %s has been reported lost.", ev.RoutingKey)
		case ev.Subtype == EventDeleted:
			n.Title = "Baggage Removed - " + ev.RoutingKey
			n.Message = fmt.Sprintf("Baggage %s has been removed.", ev.RoutingKey)
		case status != "":
			n.Title = "Baggage Update - " + ev.RoutingKey
			n.Message = fmt.Sprintf("Baggage %s is now %s.", ev.RoutingKey, status)
		default:
			n.Title = "Baggage Update - " + ev.RoutingKey
			n.Message = fmt.Sprintf("Baggage %s has been updated.", ev.RoutingKey)
		}
	default:
		n.Title = "Update - " + ev.RoutingKey
		n.Message = fmt.Sprintf("%s %s has been updated.", ev.EntityType, ev.RoutingKey)
	}
	return n
}

func payloadStatus(payload sonic.NoCopyRawMessage) string {
	if len(payload) == 0 {
		return ""
	}
	var p struct {
		Status string `json:"status"`
	}
	if err := sonic.Unmarshal(payload, &p); err != nil {
		return ""
	}
	return p.Status
}
