// Package sqlitestore is the SQLite backend: bookings, admin users, and live
// booking snapshots driven by change signals and polling.
package sqlitestore

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/eringen/touradmin/booking"
	"github.com/eringen/touradmin/notify"
)

// DefaultPollInterval is how often a subscription re-reads the table when no
// change signal arrives.
const DefaultPollInterval = 2 * time.Second

// Store wraps a SQLite database.
type Store struct {
	db       *sql.DB
	notifier notify.Notifier
	poll     time.Duration
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithNotifier sets where writes are announced and where subscriptions
// listen for them. Without one, subscriptions rely on polling alone.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Store) { s.notifier = n }
}

// WithPollInterval sets the subscription polling interval.
func WithPollInterval(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.poll = d
		}
	}
}

// WithClock overrides the time source used for created_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open opens (or creates) the SQLite database at path, ensures the data
// directory exists, and runs schema migrations.
func Open(path string, opts ...Option) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL lets the subscription readers run alongside writers; the busy
	// timeout makes writers wait instead of failing with SQLITE_BUSY.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
		PRAGMA cache_size=-8000;
	`); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := New(db, opts...)
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database without touching its schema.
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{db: db, poll: DefaultPollInterval, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS bookings (
    id TEXT PRIMARY KEY,
    full_name TEXT,
    tour_title TEXT,
    whatsapp TEXT,
    email TEXT,
    start_date TEXT,
    number_of_persons INTEGER,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_bookings_created_at ON bookings (created_at);
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    created_at INTEGER NOT NULL
);
`)
	return err
}

func (s *Store) announce(ctx context.Context) {
	if s.notifier != nil {
		// A lost signal only delays subscribers until the next poll.
		_ = s.notifier.Notify(ctx, booking.CollectionName)
	}
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
