package sqlitestore

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/touradmin/booking"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func TestCountWrapsDriverError(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM bookings`)).
		WillReturnError(errors.New("database is locked"))

	_, err := s.Count(context.Background(), booking.All())
	assert.ErrorContains(t, err, "count bookings: database is locked")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountPassesThresholdInMillis(t *testing.T) {
	s, mock := newMock(t)
	from := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM bookings WHERE created_at >= ?`)).
		WithArgs(from.UnixMilli()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	n, err := s.Count(context.Background(), booking.CreatedSince(from))
	require.NoError(t, err)
	assert.EqualValues(t, 7, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAllToleratesNulls(t *testing.T) {
	s, mock := newMock(t)
	rows := sqlmock.NewRows([]string{"id", "full_name", "tour_title", "whatsapp", "email", "start_date", "number_of_persons", "created_at"}).
		AddRow("a", nil, nil, nil, nil, nil, nil, nil).
		AddRow("b", "Bob", "Dhow Cruise", "+1", "bob@example.com", "not-a-date", 2, int64(1700000000000))
	mock.ExpectQuery(regexp.QuoteMeta(selectBookings + ` ORDER BY rowid`)).WillReturnRows(rows)

	list, err := s.GetAll(context.Background(), booking.All())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, booking.Booking{ID: "a"}, list[0])
	assert.Equal(t, "Bob", list[1].FullName)
	assert.True(t, list[1].StartDate.IsZero())
	assert.Equal(t, int64(1700000000000), list[1].CreatedAt.UnixMilli())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteMissingIsNotFound(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM bookings WHERE id = ?`)).
		WithArgs("nope").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.Delete(context.Background(), "nope")
	assert.ErrorIs(t, err, booking.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteWrapsDriverError(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM bookings WHERE id = ?`)).
		WithArgs("x").
		WillReturnError(errors.New("disk I/O error"))

	err := s.Delete(context.Background(), "x")
	assert.ErrorContains(t, err, "disk I/O error")
	assert.False(t, errors.Is(err, booking.ErrNotFound))
}

func TestSubscribeFailsWhenFirstReadFails(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(selectBookings)).WillReturnError(errors.New("no such table: bookings"))

	_, err := s.Subscribe(context.Background())
	assert.ErrorContains(t, err, "no such table")
}
