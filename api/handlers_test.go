package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/Varun-CA-08/Airline/bus"
	"github.com/Varun-CA-08/Airline/domain"
	"github.com/Varun-CA-08/Airline/fanout"
	"github.com/Varun-CA-08/Airline/pipeline"
	"github.com/Varun-CA-08/Airline/storage"
)

type mapCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	puts    int
}

func newMapCache() *mapCache {
	return &mapCache{entries: map[string][]byte{}}
}

func (m *mapCache) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[key]
	return v, ok
}

func (m *mapCache) Put(_ context.Context, key string, val []byte, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = append([]byte(nil), val...)
	m.puts++
}

type testAPI struct {
	e     *echo.Echo
	store *storage.MemStore
	cache *mapCache
	hub   *fanout.Hub
	auth  *Auth
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	store := storage.NewMemStore()
	cache := newMapCache()
	hub := fanout.NewHub(8)
	auth := NewAuth(testSecret, time.Hour)

	co := pipeline.New(store, bus.NewMemory(), nil, pipeline.Config{})
	t.Cleanup(co.Close)

	logger := log.New()
	logger.SetOutput(io.Discard)

	e := echo.New()
	Register(e, co, store, cache, hub, auth, logger)
	return &testAPI{e: e, store: store, cache: cache, hub: hub, auth: auth}
}

func (a *testAPI) request(t *testing.T, method, path, role, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if role != "" {
		token, err := a.auth.IssueToken("tester", role)
		if err != nil {
			t.Fatalf("issue token: %v", err)
		}
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func TestCreateFlight(t *testing.T) {
	a := newTestAPI(t)

	rec := a.request(t, http.MethodPost, "/api/flights", domain.RoleAirline,
		`{"flightNo":"AB123","origin":"DEL","destination":"BLR"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var created domain.Flight
	if err := sonic.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.ID == "" || created.Status != domain.FlightScheduled {
		t.Fatalf("created = %+v", created)
	}
	if created.CreatedBy != "tester" {
		t.Errorf("createdBy = %q, want tester", created.CreatedBy)
	}
}

func TestCreateFlightValidation(t *testing.T) {
	a := newTestAPI(t)

	tests := []struct {
		name string
		body string
	}{
		{"missing fields", `{"flightNo":"AB123"}`},
		{"bad status", `{"flightNo":"AB123","origin":"DEL","destination":"BLR","status":"vanished"}`},
		{"unknown field", `{"flightNo":"AB123","origin":"DEL","destination":"BLR","gateway":"C1"}`},
		{"not json", `flight please`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.request(t, http.MethodPost, "/api/flights", domain.RoleAdmin, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestFlightRoleGates(t *testing.T) {
	a := newTestAPI(t)
	body := `{"flightNo":"AB123","origin":"DEL","destination":"BLR"}`

	if rec := a.request(t, http.MethodPost, "/api/flights", domain.RoleUser, body); rec.Code != http.StatusForbidden {
		t.Errorf("passenger create: status = %d, want 403", rec.Code)
	}
	if rec := a.request(t, http.MethodPost, "/api/flights", "", body); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous create: status = %d, want 401", rec.Code)
	}
	if rec := a.request(t, http.MethodGet, "/api/flights", domain.RoleUser, ""); rec.Code != http.StatusOK {
		t.Errorf("passenger list: status = %d, want 200", rec.Code)
	}
	// Deletes are admin only.
	created := a.mustCreateFlight(t, "AB123")
	if rec := a.request(t, http.MethodDelete, "/api/flights/"+created.ID, domain.RoleAirline, ""); rec.Code != http.StatusForbidden {
		t.Errorf("airline delete: status = %d, want 403", rec.Code)
	}
	if rec := a.request(t, http.MethodDelete, "/api/flights/"+created.ID, domain.RoleAdmin, ""); rec.Code != http.StatusNoContent {
		t.Errorf("admin delete: status = %d, want 204", rec.Code)
	}
}

func (a *testAPI) mustCreateFlight(t *testing.T, flightNo string) domain.Flight {
	t.Helper()
	rec := a.request(t, http.MethodPost, "/api/flights", domain.RoleAdmin,
		`{"flightNo":"`+flightNo+`","origin":"DEL","destination":"BLR"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create flight: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var f domain.Flight
	if err := sonic.Unmarshal(rec.Body.Bytes(), &f); err != nil {
		t.Fatalf("decode flight: %v", err)
	}
	return f
}

func TestUpdateFlight(t *testing.T) {
	a := newTestAPI(t)
	created := a.mustCreateFlight(t, "AB123")

	rec := a.request(t, http.MethodPatch, "/api/flights/"+created.ID, domain.RoleAirline,
		`{"status":"boarding","gate":"C7"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var updated domain.Flight
	if err := sonic.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if updated.Status != domain.FlightBoarding || updated.Gate != "C7" {
		t.Fatalf("updated = %+v", updated)
	}

	if rec := a.request(t, http.MethodPatch, "/api/flights/"+created.ID, domain.RoleAirline, `{}`); rec.Code != http.StatusBadRequest {
		t.Errorf("empty patch: status = %d, want 400", rec.Code)
	}
	if rec := a.request(t, http.MethodPatch, "/api/flights/nope", domain.RoleAirline, `{"gate":"C1"}`); rec.Code != http.StatusNotFound {
		t.Errorf("missing flight: status = %d, want 404", rec.Code)
	}
}

func TestDelayFlight(t *testing.T) {
	a := newTestAPI(t)
	created := a.mustCreateFlight(t, "AB123")

	rec := a.request(t, http.MethodPost, "/api/operations/flights/"+created.ID+"/delay",
		domain.RoleAirline, `{"reason":"weather"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var delayed domain.Flight
	if err := sonic.Unmarshal(rec.Body.Bytes(), &delayed); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if delayed.Status != domain.FlightDelayed {
		t.Fatalf("status = %s, want delayed", delayed.Status)
	}

	if rec := a.request(t, http.MethodPost, "/api/operations/flights/"+created.ID+"/delay",
		domain.RoleAirline, `{}`); rec.Code != http.StatusBadRequest {
		t.Errorf("missing reason: status = %d, want 400", rec.Code)
	}
}

func TestBaggageLifecycle(t *testing.T) {
	a := newTestAPI(t)
	flight := a.mustCreateFlight(t, "AB123")

	rec := a.request(t, http.MethodPost, "/api/baggage", domain.RoleBaggage,
		`{"tagId":"BG-9","flightId":"`+flight.ID+`","flightNo":"AB123"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var bag domain.Baggage
	if err := sonic.Unmarshal(rec.Body.Bytes(), &bag); err != nil {
		t.Fatalf("decode baggage: %v", err)
	}
	if bag.Status != domain.BaggageCheckin {
		t.Fatalf("default status = %s, want checkin", bag.Status)
	}

	if rec := a.request(t, http.MethodPatch, "/api/baggage/"+bag.ID, domain.RoleBaggage,
		`{"status":"loaded","location":"cart 4"}`); rec.Code != http.StatusOK {
		t.Fatalf("update: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if rec := a.request(t, http.MethodPatch, "/api/baggage/"+bag.ID, domain.RoleAirline,
		`{"status":"loaded"}`); rec.Code != http.StatusForbidden {
		t.Errorf("airline baggage write: status = %d, want 403", rec.Code)
	}
	if rec := a.request(t, http.MethodDelete, "/api/baggage/"+bag.ID, domain.RoleBaggage, ""); rec.Code != http.StatusNoContent {
		t.Errorf("delete: status = %d, want 204", rec.Code)
	}
	if rec := a.request(t, http.MethodGet, "/api/baggage/"+bag.ID, domain.RoleUser, ""); rec.Code != http.StatusNotFound {
		t.Errorf("get after delete: status = %d, want 404", rec.Code)
	}
}

func TestAnalyticsCacheAside(t *testing.T) {
	a := newTestAPI(t)
	a.mustCreateFlight(t, "AB123")

	// First read misses and fills the cache from the store.
	rec := a.request(t, http.MethodGet, "/api/operations/analytics", domain.RoleAirline, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var first analyticsResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &first); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if first.Source != "mongodb" {
		t.Fatalf("first source = %q, want mongodb", first.Source)
	}
	if first.Data.TotalFlightsToday != 1 {
		t.Fatalf("totalFlightsToday = %d, want 1", first.Data.TotalFlightsToday)
	}
	if a.cache.puts != 1 {
		t.Fatalf("cache puts = %d, want 1", a.cache.puts)
	}

	// Second read is served from the cache.
	rec = a.request(t, http.MethodGet, "/api/operations/analytics", domain.RoleAirline, "")
	var second analyticsResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &second); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if second.Source != "redis" {
		t.Fatalf("second source = %q, want redis", second.Source)
	}
	if second.Data != first.Data {
		t.Fatalf("cached data %+v != stored data %+v", second.Data, first.Data)
	}

	if rec := a.request(t, http.MethodGet, "/api/operations/analytics", domain.RoleUser, ""); rec.Code != http.StatusForbidden {
		t.Errorf("passenger analytics: status = %d, want 403", rec.Code)
	}
}

func TestDashboardOverview(t *testing.T) {
	a := newTestAPI(t)
	a.mustCreateFlight(t, "AB123")
	created := a.mustCreateFlight(t, "CD456")
	if rec := a.request(t, http.MethodPost, "/api/operations/flights/"+created.ID+"/delay",
		domain.RoleAdmin, `{"reason":"crew"}`); rec.Code != http.StatusOK {
		t.Fatalf("delay: status = %d", rec.Code)
	}

	rec := a.request(t, http.MethodGet, "/api/dashboard/overview", domain.RoleUser, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var ov domain.Overview
	if err := sonic.Unmarshal(rec.Body.Bytes(), &ov); err != nil {
		t.Fatalf("decode overview: %v", err)
	}
	if ov.Flights.Total != 2 || ov.Flights.Delayed != 1 {
		t.Fatalf("flight counts = %+v", ov.Flights)
	}
	if len(ov.Notifications) == 0 {
		t.Fatal("expected a delayed-flight notification on the overview")
	}
}

func TestHealthz(t *testing.T) {
	a := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
