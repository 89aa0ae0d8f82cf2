package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/eringen/touradmin/booking"
)

// DefaultPollInterval is used by subscriptions that fall back to polling.
const DefaultPollInterval = 2 * time.Second

// Bookings is a booking.Database over a Mongo collection.
type Bookings struct {
	coll *mongo.Collection
	poll time.Duration
	log  booking.Logger
	now  func() time.Time
}

// BookingsOption configures Bookings.
type BookingsOption func(*Bookings)

// WithPollInterval sets the polling interval used when change streams are
// unavailable.
func WithPollInterval(d time.Duration) BookingsOption {
	return func(b *Bookings) {
		if d > 0 {
			b.poll = d
		}
	}
}

// WithLogger sets where change stream fallbacks are reported.
func WithLogger(l booking.Logger) BookingsOption {
	return func(b *Bookings) { b.log = l }
}

// NewBookings returns a store over coll.
func NewBookings(coll *mongo.Collection, opts ...BookingsOption) *Bookings {
	b := &Bookings{coll: coll, poll: DefaultPollInterval, log: nopLogger{}, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Count implements booking.Reader.
func (b *Bookings) Count(ctx context.Context, q booking.Query) (int64, error) {
	n, err := b.coll.CountDocuments(ctx, queryFilter(q))
	if err != nil {
		return 0, fmt.Errorf("count bookings: %w", err)
	}
	return n, nil
}

// GetAll implements booking.Reader.
func (b *Bookings) GetAll(ctx context.Context, q booking.Query) ([]booking.Booking, error) {
	cursor, err := b.coll.Find(ctx, queryFilter(q))
	if err != nil {
		return nil, fmt.Errorf("find bookings: %w", err)
	}
	defer cursor.Close(ctx)

	list := []booking.Booking{}
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode booking: %w", err)
		}
		list = append(list, fromDocument(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("find bookings: %w", err)
	}
	return list, nil
}

// Insert adds a booking and returns its id.
func (b *Bookings) Insert(ctx context.Context, bk booking.Booking) (string, error) {
	if bk.CreatedAt.IsZero() {
		bk.CreatedAt = b.now()
	}
	res, err := b.coll.InsertOne(ctx, toDocument(bk))
	if err != nil {
		return "", fmt.Errorf("insert booking: %w", err)
	}
	return idString(res.InsertedID), nil
}

// Delete implements booking.Database. A missing id is booking.ErrNotFound.
func (b *Bookings) Delete(ctx context.Context, id string) error {
	res, err := b.coll.DeleteOne(ctx, idFilter(id))
	if err != nil {
		return fmt.Errorf("delete booking %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return booking.ErrNotFound
	}
	return nil
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
