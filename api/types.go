package api

import (
	"context"
	"time"

	"github.com/Varun-CA-08/Airline/domain"
)

// Mutator is the write path. Every mutation persists first and then
// propagates through the event pipeline.
type Mutator interface {
	CreateFlight(ctx context.Context, f domain.Flight) (domain.Flight, error)
	UpdateFlight(ctx context.Context, id string, ch domain.FlightChanges) (domain.Flight, error)
	DeleteFlight(ctx context.Context, id string) (domain.Flight, error)
	DelayFlight(ctx context.Context, id, reason string, newTime *time.Time) (domain.Flight, error)
	CreateBaggage(ctx context.Context, b domain.Baggage) (domain.Baggage, error)
	UpdateBaggage(ctx context.Context, id string, ch domain.BaggageChanges) (domain.Baggage, error)
	DeleteBaggage(ctx context.Context, id string) (domain.Baggage, error)
}

// Reader is the read path, served straight from the durable store.
type Reader interface {
	GetFlight(ctx context.Context, id string) (domain.Flight, error)
	ListFlights(ctx context.Context) ([]domain.Flight, error)
	GetBaggage(ctx context.Context, id string) (domain.Baggage, error)
	ListBaggage(ctx context.Context) ([]domain.Baggage, error)
	AnalyticsToday(ctx context.Context) (domain.AnalyticsSnapshot, error)
	Overview(ctx context.Context) (domain.Overview, error)
}

// Cache is the cache-aside accessor used by the analytics endpoint.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Put(ctx context.Context, key string, val []byte, ttl time.Duration)
}

type createFlightRequest struct {
	FlightNo     string     `json:"flightNo"`
	Origin       string     `json:"origin"`
	Destination  string     `json:"destination"`
	Status       string     `json:"status"`
	Gate         string     `json:"gate"`
	ScheduledDep *time.Time `json:"scheduledDep"`
	ScheduledArr *time.Time `json:"scheduledArr"`
}

type updateFlightRequest struct {
	Status       *string    `json:"status"`
	Gate         *string    `json:"gate"`
	ScheduledDep *time.Time `json:"scheduledDep"`
	ScheduledArr *time.Time `json:"scheduledArr"`
}

type delayFlightRequest struct {
	Reason  string     `json:"reason"`
	NewTime *time.Time `json:"newTime"`
}

type createBaggageRequest struct {
	TagID    string `json:"tagId"`
	FlightID string `json:"flightId"`
	FlightNo string `json:"flightNo"`
	Status   string `json:"status"`
	Location string `json:"location"`
}

type updateBaggageRequest struct {
	Status   *string `json:"status"`
	Location *string `json:"location"`
}

// analyticsResponse reports where the snapshot came from so operators can
// see cache behavior from the outside.
type analyticsResponse struct {
	Source string                   `json:"source"`
	Data   domain.AnalyticsSnapshot `json:"data"`
}

type errorResponse struct {
	Error string `json:"error"`
}
