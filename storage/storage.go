package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Varun-CA-08/Airline/domain"
)

// ErrNotFound is returned when a record does not exist. Callers map it to a
// 404; the pipeline treats it as a failed durable write (nothing propagates).
var ErrNotFound = errors.New("record not found")

// Store is the durable writer-of-record, backed by MongoDB. Every mutation is
// a single atomic document operation; concurrent updates to the same record
// resolve last-write-wins, matching the store's own semantics.
type Store struct {
	client  *mongo.Client
	flights *mongo.Collection
	baggage *mongo.Collection
	users   *mongo.Collection
}

// NewStore connects to MongoDB and prepares the collections.
func NewStore(ctx context.Context, uri, dbName, username, password string) (*Store, error) {
	opts := options.Client().ApplyURI(uri)
	if username != "" && password != "" {
		opts.SetAuth(options.Credential{Username: username, Password: password})
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(dbName)
	s := &Store{
		client:  client,
		flights: db.Collection("flights"),
		baggage: db.Collection("baggage"),
		users:   db.Collection("users"),
	}
	s.ensureIndexes(ctx)
	return s, nil
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) ensureIndexes(ctx context.Context) {
	// Lookup indexes only. flightNo is deliberately not unique: the same
	// number recurs across days.
	s.flights.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.M{"flightNo": 1}})
	s.flights.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.M{"createdAt": -1}})
	s.baggage.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.M{"tagId": 1}})
	s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.M{"email": 1},
		Options: options.Index().SetUnique(true),
	})
}

// CreateFlight persists a new flight and returns it with identifiers and
// timestamps assigned.
func (s *Store) CreateFlight(ctx context.Context, f domain.Flight) (domain.Flight, error) {
	now := time.Now().UTC()
	f.ID = primitive.NewObjectID().Hex()
	f.CreatedAt = now
	f.UpdatedAt = now
	if f.Status == "" {
		f.Status = domain.FlightScheduled
	}
	if _, err := s.flights.InsertOne(ctx, f); err != nil {
		return domain.Flight{}, fmt.Errorf("insert flight: %w", err)
	}
	return f, nil
}

// GetFlight loads one flight by id.
func (s *Store) GetFlight(ctx context.Context, id string) (domain.Flight, error) {
	var f domain.Flight
	err := s.flights.FindOne(ctx, bson.M{"_id": id}).Decode(&f)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Flight{}, ErrNotFound
		}
		return domain.Flight{}, fmt.Errorf("find flight: %w", err)
	}
	return f, nil
}

// ListFlights returns all flights, newest first.
func (s *Store) ListFlights(ctx context.Context) ([]domain.Flight, error) {
	cur, err := s.flights.Find(ctx, bson.M{}, options.Find().SetSort(bson.M{"createdAt": -1}))
	if err != nil {
		return nil, fmt.Errorf("list flights: %w", err)
	}
	flights := []domain.Flight{}
	if err := cur.All(ctx, &flights); err != nil {
		return nil, fmt.Errorf("decode flights: %w", err)
	}
	return flights, nil
}

// UpdateFlight applies the whitelisted changes atomically and returns the
// updated record.
func (s *Store) UpdateFlight(ctx context.Context, id string, ch domain.FlightChanges) (domain.Flight, error) {
	set := bson.M{"updatedAt": time.Now().UTC()}
	if ch.Status != nil {
		set["status"] = *ch.Status
	}
	if ch.Gate != nil {
		set["gate"] = *ch.Gate
	}
	if ch.ScheduledDep != nil {
		set["scheduledDep"] = *ch.ScheduledDep
	}
	if ch.ScheduledArr != nil {
		set["scheduledArr"] = *ch.ScheduledArr
	}

	var f domain.Flight
	err := s.flights.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&f)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Flight{}, ErrNotFound
		}
		return domain.Flight{}, fmt.Errorf("update flight: %w", err)
	}
	return f, nil
}

// DeleteFlight removes a flight and returns the deleted record.
func (s *Store) DeleteFlight(ctx context.Context, id string) (domain.Flight, error) {
	var f domain.Flight
	err := s.flights.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&f)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Flight{}, ErrNotFound
		}
		return domain.Flight{}, fmt.Errorf("delete flight: %w", err)
	}
	return f, nil
}

// CreateBaggage persists a new baggage record.
func (s *Store) CreateBaggage(ctx context.Context, b domain.Baggage) (domain.Baggage, error) {
	now := time.Now().UTC()
	b.ID = primitive.NewObjectID().Hex()
	b.CreatedAt = now
	b.UpdatedAt = now
	if b.Status == "" {
		b.Status = domain.BaggageCheckin
	}
	if _, err := s.baggage.InsertOne(ctx, b); err != nil {
		return domain.Baggage{}, fmt.Errorf("insert baggage: %w", err)
	}
	return b, nil
}

// GetBaggage loads one baggage record by id.
func (s *Store) GetBaggage(ctx context.Context, id string) (domain.Baggage, error) {
	var b domain.Baggage
	err := s.baggage.FindOne(ctx, bson.M{"_id": id}).Decode(&b)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Baggage{}, ErrNotFound
		}
		return domain.Baggage{}, fmt.Errorf("find baggage: %w", err)
	}
	return b, nil
}

// ListBaggage returns all baggage records, newest first.
func (s *Store) ListBaggage(ctx context.Context) ([]domain.Baggage, error) {
	cur, err := s.baggage.Find(ctx, bson.M{}, options.Find().SetSort(bson.M{"createdAt": -1}))
	if err != nil {
		return nil, fmt.Errorf("list baggage: %w", err)
	}
	bags := []domain.Baggage{}
	if err := cur.All(ctx, &bags); err != nil {
		return nil, fmt.Errorf("decode baggage: %w", err)
	}
	return bags, nil
}

// UpdateBaggage applies the whitelisted changes atomically.
func (s *Store) UpdateBaggage(ctx context.Context, id string, ch domain.BaggageChanges) (domain.Baggage, error) {
	set := bson.M{"updatedAt": time.Now().UTC()}
	if ch.Status != nil {
		set["status"] = *ch.Status
	}
	if ch.Location != nil {
		set["location"] = *ch.Location
	}

	var b domain.Baggage
	err := s.baggage.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&b)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Baggage{}, ErrNotFound
		}
		return domain.Baggage{}, fmt.Errorf("update baggage: %w", err)
	}
	return b, nil
}

// DeleteBaggage removes a baggage record and returns it.
func (s *Store) DeleteBaggage(ctx context.Context, id string) (domain.Baggage, error) {
	var b domain.Baggage
	err := s.baggage.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&b)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Baggage{}, ErrNotFound
		}
		return domain.Baggage{}, fmt.Errorf("delete baggage: %w", err)
	}
	return b, nil
}

// CreateUser registers a user. Emails are unique.
func (s *Store) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	u.ID = primitive.NewObjectID().Hex()
	if _, err := s.users.InsertOne(ctx, u); err != nil {
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

// UserByEmail looks up a user by email.
func (s *Store) UserByEmail(ctx context.Context, email string) (domain.User, error) {
	var u domain.User
	err := s.users.FindOne(ctx, bson.M{"email": email}).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.User{}, ErrNotFound
		}
		return domain.User{}, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

// AnalyticsToday computes the "today" aggregate directly from the store. The
// cache-aside layer around it lives in the analytics handler.
func (s *Store) AnalyticsToday(ctx context.Context) (domain.AnalyticsSnapshot, error) {
	start, end := dayBounds(time.Now())

	flights, err := s.flights.CountDocuments(ctx, bson.M{"createdAt": bson.M{"$gte": start, "$lte": end}})
	if err != nil {
		return domain.AnalyticsSnapshot{}, fmt.Errorf("count flights today: %w", err)
	}
	processed, err := s.baggage.CountDocuments(ctx, bson.M{
		"updatedAt": bson.M{"$gte": start, "$lte": end},
		"status":    bson.M{"$in": []string{domain.BaggageLoaded, domain.BaggageUnloaded, domain.BaggageAtBelt}},
	})
	if err != nil {
		return domain.AnalyticsSnapshot{}, fmt.Errorf("count baggage processed: %w", err)
	}
	return domain.AnalyticsSnapshot{TotalFlightsToday: flights, TotalBaggageProcessed: processed}, nil
}

// Overview computes the dashboard aggregate: fleet counts, baggage and user
// breakdowns, and the most recent high-severity notifications.
func (s *Store) Overview(ctx context.Context) (domain.Overview, error) {
	start, end := dayBounds(time.Now())
	var ov domain.Overview
	var err error

	if ov.Flights.Total, err = s.flights.CountDocuments(ctx, bson.M{}); err != nil {
		return ov, fmt.Errorf("count flights: %w", err)
	}
	if ov.Flights.Today, err = s.flights.CountDocuments(ctx, bson.M{"createdAt": bson.M{"$gte": start, "$lte": end}}); err != nil {
		return ov, fmt.Errorf("count flights today: %w", err)
	}
	if ov.Flights.Delayed, err = s.flights.CountDocuments(ctx, bson.M{"status": domain.FlightDelayed}); err != nil {
		return ov, fmt.Errorf("count delayed flights: %w", err)
	}
	active := []string{domain.FlightScheduled, domain.FlightBoarding, domain.FlightDeparted}
	if ov.Flights.Active, err = s.flights.CountDocuments(ctx, bson.M{"status": bson.M{"$in": active}}); err != nil {
		return ov, fmt.Errorf("count active flights: %w", err)
	}

	if ov.Baggage.Total, err = s.baggage.CountDocuments(ctx, bson.M{}); err != nil {
		return ov, fmt.Errorf("count baggage: %w", err)
	}
	if ov.Baggage.Today, err = s.baggage.CountDocuments(ctx, bson.M{"createdAt": bson.M{"$gte": start, "$lte": end}}); err != nil {
		return ov, fmt.Errorf("count baggage today: %w", err)
	}
	if ov.Baggage.ByStatus, err = s.countByField(ctx, s.baggage, "status"); err != nil {
		return ov, fmt.Errorf("group baggage by status: %w", err)
	}

	byRole, err := s.countByField(ctx, s.users, "role")
	if err != nil {
		return ov, fmt.Errorf("group users by role: %w", err)
	}
	ov.Users.ByRole = byRole
	ov.Users.Staff = byRole[domain.RoleAdmin] + byRole[domain.RoleAirline] + byRole[domain.RoleBaggage]
	ov.Users.Passengers = byRole[domain.RoleUser]

	delayed, err := s.recentFlightsByStatus(ctx, domain.FlightDelayed, 5)
	if err != nil {
		return ov, err
	}
	lost, err := s.recentBaggageByStatus(ctx, domain.BaggageLost, 5)
	if err != nil {
		return ov, err
	}
	ov.Notifications = overviewNotifications(delayed, lost)
	return ov, nil
}

func (s *Store) countByField(ctx context.Context, coll *mongo.Collection, field string) (map[string]int64, error) {
	cur, err := coll.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$" + field, "count": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return nil, err
	}
	var rows []struct {
		ID    string `bson:"_id"`
		Count int64  `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	out := map[string]int64{}
	for _, r := range rows {
		out[r.ID] = r.Count
	}
	return out, nil
}

func (s *Store) recentFlightsByStatus(ctx context.Context, status string, limit int64) ([]domain.Flight, error) {
	cur, err := s.flights.Find(ctx, bson.M{"status": status},
		options.Find().SetSort(bson.M{"updatedAt": -1}).SetLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list %s flights: %w", status, err)
	}
	var flights []domain.Flight
	if err := cur.All(ctx, &flights); err != nil {
		return nil, fmt.Errorf("decode %s flights: %w", status, err)
	}
	return flights, nil
}

func (s *Store) recentBaggageByStatus(ctx context.Context, status string, limit int64) ([]domain.Baggage, error) {
	cur, err := s.baggage.Find(ctx, bson.M{"status": status},
		options.Find().SetSort(bson.M{"updatedAt": -1}).SetLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list %s baggage: %w", status, err)
	}
	var bags []domain.Baggage
	if err := cur.All(ctx, &bags); err != nil {
		return nil, fmt.Errorf("decode %s baggage: %w", status, err)
	}
	return bags, nil
}

// overviewNotifications folds delayed flights and lost baggage into the
// dashboard notification feed, newest first, capped at ten.
func overviewNotifications(delayed []domain.Flight, lost []domain.Baggage) []domain.Notification {
	notes := make([]domain.Notification, 0, len(delayed)+len(lost))
	for _, f := range delayed {
		notes = append(notes, domain.Notification{
			Type:      domain.EntityFlight,
			Severity:  domain.SeverityHigh,
			Title:     "Flight Delayed - " + f.FlightNo,
			Message:   fmt.Sprintf("Flight %s from %s to %s has been delayed.", f.FlightNo, f.Origin, f.Destination),
			Timestamp: f.UpdatedAt,
		})
	}
	for _, b := range lost {
		msg := fmt.Sprintf("Baggage %s lost.", b.TagID)
		if b.FlightNo != "" {
			msg = fmt.Sprintf("Baggage %s lost on Flight %s.", b.TagID, b.FlightNo)
		}
		notes = append(notes, domain.Notification{
			Type:      domain.EntityBaggage,
			Severity:  domain.SeverityCritical,
			Title:     "Baggage Lost - " + b.TagID,
			Message:   msg,
			Timestamp: b.UpdatedAt,
		})
	}
	sort.Slice(notes, func(i, j int) bool { return notes[i].Timestamp.After(notes[j].Timestamp) })
	if len(notes) > 10 {
		notes = notes[:10]
	}
	return notes
}

func dayBounds(now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24*time.Hour - time.Nanosecond)
}
