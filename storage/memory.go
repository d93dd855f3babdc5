package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Varun-CA-08/Airline/domain"
)

// MemStore implements the same contract as Store entirely in memory. It backs
// tests and DEV_MODE deployments where no MongoDB is available, with the same
// last-write-wins update semantics.
type MemStore struct {
	mu      sync.Mutex
	flights map[string]domain.Flight
	baggage map[string]domain.Baggage
	users   map[string]domain.User
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		flights: make(map[string]domain.Flight),
		baggage: make(map[string]domain.Baggage),
		users:   make(map[string]domain.User),
	}
}

func (m *MemStore) CreateFlight(_ context.Context, f domain.Flight) (domain.Flight, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	f.ID = uuid.NewString()
	f.CreatedAt = now
	f.UpdatedAt = now
	if f.Status == "" {
		f.Status = domain.FlightScheduled
	}
	m.flights[f.ID] = f
	return f, nil
}

func (m *MemStore) GetFlight(_ context.Context, id string) (domain.Flight, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.flights[id]
	if !ok {
		return domain.Flight{}, ErrNotFound
	}
	return f, nil
}

func (m *MemStore) ListFlights(_ context.Context) ([]domain.Flight, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Flight, 0, len(m.flights))
	for _, f := range m.flights {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemStore) UpdateFlight(_ context.Context, id string, ch domain.FlightChanges) (domain.Flight, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.flights[id]
	if !ok {
		return domain.Flight{}, ErrNotFound
	}
	if ch.Status != nil {
		f.Status = *ch.Status
	}
	if ch.Gate != nil {
		f.Gate = *ch.Gate
	}
	if ch.ScheduledDep != nil {
		f.ScheduledDep = ch.ScheduledDep
	}
	if ch.ScheduledArr != nil {
		f.ScheduledArr = ch.ScheduledArr
	}
	f.UpdatedAt = time.Now().UTC()
	m.flights[id] = f
	return f, nil
}

func (m *MemStore) DeleteFlight(_ context.Context, id string) (domain.Flight, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.flights[id]
	if !ok {
		return domain.Flight{}, ErrNotFound
	}
	delete(m.flights, id)
	return f, nil
}

func (m *MemStore) CreateBaggage(_ context.Context, b domain.Baggage) (domain.Baggage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	b.ID = uuid.NewString()
	b.CreatedAt = now
	b.UpdatedAt = now
	if b.Status == "" {
		b.Status = domain.BaggageCheckin
	}
	m.baggage[b.ID] = b
	return b, nil
}

func (m *MemStore) GetBaggage(_ context.Context, id string) (domain.Baggage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.baggage[id]
	if !ok {
		return domain.Baggage{}, ErrNotFound
	}
	return b, nil
}

func (m *MemStore) ListBaggage(_ context.Context) ([]domain.Baggage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Baggage, 0, len(m.baggage))
	for _, b := range m.baggage {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemStore) UpdateBaggage(_ context.Context, id string, ch domain.BaggageChanges) (domain.Baggage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.baggage[id]
	if !ok {
		return domain.Baggage{}, ErrNotFound
	}
	if ch.Status != nil {
		b.Status = *ch.Status
	}
	if ch.Location != nil {
		b.Location = *ch.Location
	}
	b.UpdatedAt = time.Now().UTC()
	m.baggage[id] = b
	return b, nil
}

func (m *MemStore) DeleteBaggage(_ context.Context, id string) (domain.Baggage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.baggage[id]
	if !ok {
		return domain.Baggage{}, ErrNotFound
	}
	delete(m.baggage, id)
	return b, nil
}

// AddUser seeds a user for dashboard role counts.
func (m *MemStore) AddUser(u domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	m.users[u.ID] = u
}

func (m *MemStore) AnalyticsToday(_ context.Context) (domain.AnalyticsSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	start, end := dayBounds(time.Now())
	var snap domain.AnalyticsSnapshot
	for _, f := range m.flights {
		if !f.CreatedAt.Before(start) && !f.CreatedAt.After(end) {
			snap.TotalFlightsToday++
		}
	}
	for _, b := range m.baggage {
		switch b.Status {
		case domain.BaggageLoaded, domain.BaggageUnloaded, domain.BaggageAtBelt:
			if !b.UpdatedAt.Before(start) && !b.UpdatedAt.After(end) {
				snap.TotalBaggageProcessed++
			}
		}
	}
	return snap, nil
}

func (m *MemStore) Overview(_ context.Context) (domain.Overview, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	start, end := dayBounds(time.Now())

	ov := domain.Overview{
		Baggage: domain.BaggageCounts{ByStatus: map[string]int64{}},
		Users:   domain.UserCounts{ByRole: map[string]int64{}},
	}

	var delayed []domain.Flight
	for _, f := range m.flights {
		ov.Flights.Total++
		if !f.CreatedAt.Before(start) && !f.CreatedAt.After(end) {
			ov.Flights.Today++
		}
		switch f.Status {
		case domain.FlightDelayed:
			ov.Flights.Delayed++
			delayed = append(delayed, f)
		case domain.FlightScheduled, domain.FlightBoarding, domain.FlightDeparted:
			ov.Flights.Active++
		}
	}

	var lost []domain.Baggage
	for _, b := range m.baggage {
		ov.Baggage.Total++
		if !b.CreatedAt.Before(start) && !b.CreatedAt.After(end) {
			ov.Baggage.Today++
		}
		ov.Baggage.ByStatus[b.Status]++
		if b.Status == domain.BaggageLost {
			lost = append(lost, b)
		}
	}

	for _, u := range m.users {
		ov.Users.ByRole[u.Role]++
	}
	ov.Users.Staff = ov.Users.ByRole[domain.RoleAdmin] + ov.Users.ByRole[domain.RoleAirline] + ov.Users.ByRole[domain.RoleBaggage]
	ov.Users.Passengers = ov.Users.ByRole[domain.RoleUser]

	sort.Slice(delayed, func(i, j int) bool { return delayed[i].UpdatedAt.After(delayed[j].UpdatedAt) })
	if len(delayed) > 5 {
		delayed = delayed[:5]
	}
	sort.Slice(lost, func(i, j int) bool { return lost[i].UpdatedAt.After(lost[j].UpdatedAt) })
	if len(lost) > 5 {
		lost = lost[:5]
	}
	ov.Notifications = overviewNotifications(delayed, lost)
	return ov, nil
}
