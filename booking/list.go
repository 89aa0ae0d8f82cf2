package booking

import (
	"context"
	"fmt"
	"sync"
)

// Toast texts shown after a delete. The backend error is never shown.
const (
	MsgDeleted      = "Booking deleted successfully"
	MsgDeleteFailed = "Error deleting booking"
)

// List keeps an in-memory copy of the bookings collection in sync with a live
// subscription. Every snapshot replaces the whole list.
type List struct {
	db  Database
	sub Subscription
	log Logger

	mu       sync.Mutex
	bookings []Booking
	loaded   bool
	closed   bool

	ready   chan struct{}
	changed chan struct{}
	done    chan struct{}
}

// Open subscribes to db and starts applying snapshots. The caller must Close
// the list when done with it.
func Open(ctx context.Context, db Database, log Logger) (*List, error) {
	if log == nil {
		log = nopLogger{}
	}
	sub, err := db.Subscribe(ctx)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", CollectionName, err)
	}
	l := &List{
		db:      db,
		sub:     sub,
		log:     log,
		ready:   make(chan struct{}),
		changed: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go l.run()
	return l, nil
}

func (l *List) run() {
	defer close(l.done)
	for snap := range l.sub.Snapshots() {
		if !l.apply(snap) {
			return
		}
	}
	if err := l.sub.Err(); err != nil {
		l.log.Errorf("bookings subscription ended: %v", err)
	}
}

// apply replaces the list with snap. It reports false once the list is
// closed, in which case nothing is modified.
func (l *List) apply(snap Snapshot) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return false
	}
	l.bookings = snap.Bookings
	if !l.loaded {
		l.loaded = true
		close(l.ready)
	}
	select {
	case l.changed <- struct{}{}:
	default:
	}
	return true
}

// Close releases the subscription. No snapshot is applied after Close returns.
func (l *List) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()
	return l.sub.Close()
}

// Ready is closed once the first snapshot has been applied.
func (l *List) Ready() <-chan struct{} { return l.ready }

// Changed receives a value after each applied snapshot. Bursts are coalesced.
func (l *List) Changed() <-chan struct{} { return l.changed }

// Done is closed when the subscription has ended.
func (l *List) Done() <-chan struct{} { return l.done }

// Loaded reports whether a snapshot has been applied yet.
func (l *List) Loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loaded
}

// Bookings returns a copy of the current list.
func (l *List) Bookings() []Booking {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Booking, len(l.bookings))
	copy(out, l.bookings)
	return out
}

// Search returns the current list filtered by term.
func (l *List) Search(term string) []Booking {
	return Filter(l.Bookings(), term)
}

// Wait blocks until the first snapshot arrives and returns it.
func (l *List) Wait(ctx context.Context) ([]Booking, error) {
	select {
	case <-l.ready:
		return l.Bookings(), nil
	case <-l.done:
		select {
		case <-l.ready:
			return l.Bookings(), nil
		default:
		}
		if err := l.sub.Err(); err != nil {
			return nil, err
		}
		return nil, context.Canceled
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Delete removes the booking with id from the backend. The list itself is
// only updated by the snapshot that follows.
func (l *List) Delete(ctx context.Context, id string, confirmed bool) error {
	return Delete(ctx, l.db, id, confirmed)
}

// Delete removes one booking after the caller has confirmed the action.
func Delete(ctx context.Context, db Database, id string, confirmed bool) error {
	if !confirmed {
		return ErrNotConfirmed
	}
	if id == "" {
		return ErrNotFound
	}
	return db.Delete(ctx, id)
}
