package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/eringen/touradmin/booking"
)

const selectBookings = `SELECT id, full_name, tour_title, whatsapp, email, start_date, number_of_persons, created_at FROM bookings`

// Count implements booking.Reader.
func (s *Store) Count(ctx context.Context, q booking.Query) (int64, error) {
	var n int64
	var err error
	if q.Filtered() {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings WHERE created_at >= ?`, q.CreatedFrom.UnixMilli()).Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings`).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("count bookings: %w", err)
	}
	return n, nil
}

// GetAll implements booking.Reader. Rows come back in insertion order.
func (s *Store) GetAll(ctx context.Context, q booking.Query) ([]booking.Booking, error) {
	var rows *sql.Rows
	var err error
	if q.Filtered() {
		rows, err = s.db.QueryContext(ctx, selectBookings+` WHERE created_at >= ? ORDER BY rowid`, q.CreatedFrom.UnixMilli())
	} else {
		rows, err = s.db.QueryContext(ctx, selectBookings+` ORDER BY rowid`)
	}
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	list := []booking.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		list = append(list, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return list, nil
}

func scanBooking(rows *sql.Rows) (booking.Booking, error) {
	var (
		id                                     string
		name, tour, whatsapp, email, startDate sql.NullString
		persons, createdAt                     sql.NullInt64
	)
	if err := rows.Scan(&id, &name, &tour, &whatsapp, &email, &startDate, &persons, &createdAt); err != nil {
		return booking.Booking{}, err
	}
	b := booking.Booking{
		ID:              id,
		FullName:        name.String,
		TourTitle:       tour.String,
		WhatsApp:        whatsapp.String,
		Email:           email.String,
		StartDate:       parseDate(startDate.String),
		NumberOfPersons: int(persons.Int64),
	}
	if createdAt.Valid {
		b.CreatedAt = time.UnixMilli(createdAt.Int64)
	}
	return b, nil
}

// parseDate accepts RFC 3339 timestamps and plain dates. Anything else is
// the zero time.
func parseDate(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Insert adds a booking and returns its id. An empty ID gets a UUID and a
// zero CreatedAt gets the current time.
func (s *Store) Insert(ctx context.Context, b booking.Booking) (string, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = s.now()
	}
	var startDate sql.NullString
	if !b.StartDate.IsZero() {
		startDate = sql.NullString{String: b.StartDate.Format(time.RFC3339), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO bookings (id, full_name, tour_title, whatsapp, email, start_date, number_of_persons, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.FullName, b.TourTitle, b.WhatsApp, b.Email, startDate, b.NumberOfPersons, b.CreatedAt.UnixMilli())
	if err != nil {
		return "", fmt.Errorf("insert booking: %w", err)
	}
	s.announce(ctx)
	return b.ID, nil
}

// Delete implements booking.Database. A missing id is booking.ErrNotFound.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete booking %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete booking %s: %w", id, err)
	}
	if n == 0 {
		return booking.ErrNotFound
	}
	s.announce(ctx)
	return nil
}
