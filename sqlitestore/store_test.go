package sqlitestore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/eringen/touradmin/auth"
	"github.com/eringen/touradmin/booking"
	"github.com/eringen/touradmin/notify"
)

func setupTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "test_admin.db")
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen(t *testing.T) {
	s := setupTestStore(t)
	if s.db == nil {
		t.Fatal("db should not be nil")
	}
	if err := s.ensureSchema(); err != nil {
		t.Fatalf("ensureSchema should be idempotent: %v", err)
	}
}

func TestInsertAndGetAll(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	start := time.Date(2026, time.May, 1, 9, 0, 0, 0, time.UTC)
	id, err := s.Insert(ctx, booking.Booking{
		FullName:        "Alice Moreau",
		TourTitle:       "Desert Safari",
		WhatsApp:        "+971500000001",
		Email:           "alice@example.com",
		StartDate:       start,
		NumberOfPersons: 3,
	})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if id == "" {
		t.Fatal("Insert should assign an id")
	}
	if _, err := s.Insert(ctx, booking.Booking{}); err != nil {
		t.Fatalf("Insert of empty booking failed: %v", err)
	}

	got, err := s.GetAll(ctx, booking.All())
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	b := got[0]
	if b.ID != id {
		t.Errorf("ID = %q, want %q", b.ID, id)
	}
	if b.FullName != "Alice Moreau" || b.TourTitle != "Desert Safari" || b.WhatsApp != "+971500000001" {
		t.Errorf("unexpected fields: %+v", b)
	}
	if !b.StartDate.Equal(start) {
		t.Errorf("StartDate = %v, want %v", b.StartDate, start)
	}
	if b.NumberOfPersons != 3 {
		t.Errorf("NumberOfPersons = %d, want 3", b.NumberOfPersons)
	}
	if b.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
	if empty := got[1]; empty.FullName != "" || !empty.StartDate.IsZero() {
		t.Errorf("empty booking decoded with values: %+v", empty)
	}
}

func TestCountByCreatedAt(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC)

	for _, at := range []time.Time{base.Add(-time.Hour), base, base.Add(time.Hour)} {
		if _, err := s.Insert(ctx, booking.Booking{CreatedAt: at}); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	total, err := s.Count(ctx, booking.All())
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	since, err := s.Count(ctx, booking.CreatedSince(base))
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if since != 2 {
		t.Errorf("since = %d, want 2 (boundary is inclusive)", since)
	}
	list, err := s.GetAll(ctx, booking.CreatedSince(base))
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("filtered list = %d, want 2", len(list))
	}
}

func TestDelete(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	keep, _ := s.Insert(ctx, booking.Booking{FullName: "Keep"})
	drop, _ := s.Insert(ctx, booking.Booking{FullName: "Drop"})

	if err := s.Delete(ctx, drop); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := s.Delete(ctx, drop); !errors.Is(err, booking.ErrNotFound) {
		t.Fatalf("second Delete = %v, want ErrNotFound", err)
	}

	list, _ := s.GetAll(ctx, booking.All())
	if len(list) != 1 || list[0].ID != keep {
		t.Fatalf("unexpected list after delete: %+v", list)
	}
}

func TestSubscribeDeliversChanges(t *testing.T) {
	hub := notify.NewHub()
	s := setupTestStore(t, WithNotifier(hub), WithPollInterval(time.Hour))
	ctx := context.Background()

	if _, err := s.Insert(ctx, booking.Booking{FullName: "First"}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	sub, err := s.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Close()

	snap := <-sub.Snapshots()
	if len(snap.Bookings) != 1 {
		t.Fatalf("initial snapshot = %d bookings, want 1", len(snap.Bookings))
	}

	if _, err := s.Insert(ctx, booking.Booking{FullName: "Second"}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	select {
	case snap = <-sub.Snapshots():
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot after insert")
	}
	if len(snap.Bookings) != 2 {
		t.Fatalf("snapshot = %d bookings, want 2", len(snap.Bookings))
	}
}

func TestSubscribePollsWithoutNotifier(t *testing.T) {
	s := setupTestStore(t, WithPollInterval(10*time.Millisecond))
	ctx := context.Background()

	sub, err := s.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Close()
	<-sub.Snapshots()

	if _, err := s.Insert(ctx, booking.Booking{FullName: "Polled"}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	select {
	case snap := <-sub.Snapshots():
		if len(snap.Bookings) != 1 {
			t.Fatalf("snapshot = %d bookings, want 1", len(snap.Bookings))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("poll did not pick up the insert")
	}
}

func TestSubscriptionCloseEndsChannel(t *testing.T) {
	hub := notify.NewHub()
	s := setupTestStore(t, WithNotifier(hub))

	sub, err := s.Subscribe(context.Background())
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	<-sub.Snapshots()
	if err := sub.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, open := <-sub.Snapshots(); open {
		t.Fatal("channel should be closed")
	}
	if n := hub.Listeners(booking.CollectionName); n != 0 {
		t.Fatalf("listeners = %d, want 0", n)
	}
}

func TestUsers(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if _, err := s.GetUserByEmail(ctx, "admin@example.com"); !errors.Is(err, auth.ErrUserNotFound) {
		t.Fatalf("GetUserByEmail = %v, want ErrUserNotFound", err)
	}
	u, err := s.CreateUser(ctx, "admin@example.com", "hash-1")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if _, err := s.CreateUser(ctx, "admin@example.com", "hash-2"); !errors.Is(err, auth.ErrUserExists) {
		t.Fatalf("duplicate CreateUser = %v, want ErrUserExists", err)
	}
	if err := s.UpdatePassword(ctx, u.ID, "hash-3"); err != nil {
		t.Fatalf("UpdatePassword failed: %v", err)
	}
	got, err := s.GetUserByEmail(ctx, "admin@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if got.ID != u.ID || got.PasswordHash != "hash-3" {
		t.Fatalf("unexpected user: %+v", got)
	}
	if err := s.UpdatePassword(ctx, "missing", "x"); !errors.Is(err, auth.ErrUserNotFound) {
		t.Fatalf("UpdatePassword of missing user = %v, want ErrUserNotFound", err)
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"", time.Time{}},
		{"garbage", time.Time{}},
		{"2026-05-01", time.Date(2026, time.May, 1, 0, 0, 0, 0, time.UTC)},
		{"2026-05-01T09:00:00Z", time.Date(2026, time.May, 1, 9, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		if got := parseDate(tt.in); !got.Equal(tt.want) {
			t.Errorf("parseDate(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLocalProviderOnSQLite(t *testing.T) {
	s := setupTestStore(t)
	p := auth.NewLocalProvider(s, auth.NewJWTManager("k", time.Hour))
	ctx := context.Background()

	if _, err := p.CreateUser(ctx, "Admin@Example.com", "secret1"); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if _, err := p.SignIn(ctx, "admin@example.com", "secret1"); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
}
