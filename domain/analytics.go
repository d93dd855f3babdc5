package domain

// User roles recognized by the API.
const (
	RoleAdmin   = "admin"
	RoleAirline = "airline"
	RoleBaggage = "baggage"
	RoleUser    = "user"
)

// User is kept only for the dashboard role breakdown; session and credential
// handling live outside this service.
type User struct {
	ID    string `json:"id" bson:"_id,omitempty"`
	Name  string `json:"name" bson:"name"`
	Email string `json:"email" bson:"email"`
	Role  string `json:"role" bson:"role"`
}

// AnalyticsSnapshot is the cached "today" aggregate served by the operations
// analytics endpoint.
type AnalyticsSnapshot struct {
	TotalFlightsToday     int64 `json:"totalFlightsToday"`
	TotalBaggageProcessed int64 `json:"totalBaggageProcessed"`
}

// FlightCounts summarizes the flight fleet for the dashboard.
type FlightCounts struct {
	Total   int64 `json:"total"`
	Today   int64 `json:"today"`
	Delayed int64 `json:"delayed"`
	Active  int64 `json:"active"`
}

// BaggageCounts summarizes baggage for the dashboard.
type BaggageCounts struct {
	Total    int64            `json:"total"`
	Today    int64            `json:"today"`
	ByStatus map[string]int64 `json:"byStatus"`
}

// UserCounts summarizes registered users for the dashboard.
type UserCounts struct {
	Staff      int64            `json:"staff"`
	Passengers int64            `json:"passengers"`
	ByRole     map[string]int64 `json:"byRole"`
}

// Overview is the dashboard aggregate: counts plus the most recent
// delayed-flight and lost-baggage notifications.
type Overview struct {
	Flights       FlightCounts   `json:"flights"`
	Baggage       BaggageCounts  `json:"baggage"`
	Users         UserCounts     `json:"users"`
	Notifications []Notification `json:"notifications"`
}
