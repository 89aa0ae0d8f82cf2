// Package booking holds the tour booking model and the logic that sits on top
// of the document database: live list sync, search, and dashboard statistics.
package booking

import (
	"context"
	"errors"
	"time"
)

// CollectionName is the name of the bookings collection in every backend.
const CollectionName = "bookings"

var (
	// ErrNotFound is returned when a booking id does not exist.
	ErrNotFound = errors.New("booking not found")
	// ErrNotConfirmed is returned when a delete is attempted without confirmation.
	ErrNotConfirmed = errors.New("delete not confirmed")
)

// Booking is a single booking document. The app never writes these; they are
// created by the public booking flow and only ever deleted from here.
type Booking struct {
	ID              string    `json:"id"`
	FullName        string    `json:"fullName"`
	TourTitle       string    `json:"tourTitle"`
	WhatsApp        string    `json:"whatsapp"`
	Email           string    `json:"email"`
	StartDate       time.Time `json:"startDate"`
	NumberOfPersons int       `json:"numberOfPersons"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Query selects bookings. The zero Query selects the whole collection; a
// non-zero CreatedFrom adds the single createdAt >= filter backends support.
type Query struct {
	CreatedFrom time.Time
}

// All selects every booking.
func All() Query { return Query{} }

// CreatedSince selects bookings created at or after t.
func CreatedSince(t time.Time) Query { return Query{CreatedFrom: t} }

// Filtered reports whether q carries a createdAt filter.
func (q Query) Filtered() bool { return !q.CreatedFrom.IsZero() }

// Snapshot is one delivered state of the bookings collection.
type Snapshot struct {
	Bookings []Booking
	At       time.Time
}

// Subscription is a standing live query. Snapshots are delivered on the
// channel until Close is called or the backend fails, after which the channel
// is closed and Err reports the cause (nil after a clean Close).
type Subscription interface {
	Snapshots() <-chan Snapshot
	Err() error
	Close() error
}

// Reader is the read side of the database used by the stats aggregator.
type Reader interface {
	Count(ctx context.Context, q Query) (int64, error)
	GetAll(ctx context.Context, q Query) ([]Booking, error)
}

// Database is everything the admin app needs from a booking backend.
type Database interface {
	Reader
	Subscribe(ctx context.Context) (Subscription, error)
	Delete(ctx context.Context, id string) error
}

// Logger is the subset of echo.Logger used by this package.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
