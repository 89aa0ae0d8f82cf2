// Package bookingtest provides an in-memory booking.Database for tests.
package bookingtest

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/eringen/touradmin/booking"
)

// DB is an in-memory booking.Database. The exported error fields make the
// corresponding operation fail when set.
type DB struct {
	mu      sync.Mutex
	docs    []booking.Booking
	subs    map[int]*subscription
	nextSub int
	nextID  int

	CountErr     error
	GetAllErr    error
	DeleteErr    error
	SubscribeErr error

	// Counts records every query passed to Count.
	Counts []booking.Query
}

// New returns a DB holding docs in order.
func New(docs ...booking.Booking) *DB {
	d := &DB{subs: make(map[int]*subscription)}
	for _, b := range docs {
		d.insert(b)
	}
	return d
}

func (d *DB) insert(b booking.Booking) string {
	if b.ID == "" {
		d.nextID++
		b.ID = "b" + strconv.Itoa(d.nextID)
	}
	d.docs = append(d.docs, b)
	return b.ID
}

// Insert adds a booking and notifies subscribers.
func (d *DB) Insert(b booking.Booking) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.insert(b)
	d.broadcast()
	return id
}

// Count implements booking.Reader.
func (d *DB) Count(ctx context.Context, q booking.Query) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Counts = append(d.Counts, q)
	if d.CountErr != nil {
		return 0, d.CountErr
	}
	var n int64
	for _, b := range d.docs {
		if !q.Filtered() || !b.CreatedAt.Before(q.CreatedFrom) {
			n++
		}
	}
	return n, nil
}

// GetAll implements booking.Reader.
func (d *DB) GetAll(ctx context.Context, q booking.Query) ([]booking.Booking, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.GetAllErr != nil {
		return nil, d.GetAllErr
	}
	out := []booking.Booking{}
	for _, b := range d.docs {
		if !q.Filtered() || !b.CreatedAt.Before(q.CreatedFrom) {
			out = append(out, b)
		}
	}
	return out, nil
}

// Delete implements booking.Database.
func (d *DB) Delete(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.DeleteErr != nil {
		return d.DeleteErr
	}
	for i, b := range d.docs {
		if b.ID == id {
			d.docs = append(d.docs[:i:i], d.docs[i+1:]...)
			d.broadcast()
			return nil
		}
	}
	return booking.ErrNotFound
}

// Subscribe implements booking.Database. The current state is delivered
// immediately.
func (d *DB) Subscribe(ctx context.Context) (booking.Subscription, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.SubscribeErr != nil {
		return nil, d.SubscribeErr
	}
	d.nextSub++
	s := &subscription{db: d, id: d.nextSub, ch: make(chan booking.Snapshot, 1)}
	d.subs[s.id] = s
	s.send(d.snapshot())
	return s, nil
}

// Subscribers returns the number of open subscriptions.
func (d *DB) Subscribers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.subs)
}

// Fail ends every open subscription with err.
func (d *DB) Fail(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, s := range d.subs {
		s.err = err
		close(s.ch)
		delete(d.subs, id)
	}
}

func (d *DB) snapshot() booking.Snapshot {
	docs := make([]booking.Booking, len(d.docs))
	copy(docs, d.docs)
	return booking.Snapshot{Bookings: docs, At: time.Now()}
}

// broadcast must be called with d.mu held.
func (d *DB) broadcast() {
	snap := d.snapshot()
	for _, s := range d.subs {
		s.send(snap)
	}
}

type subscription struct {
	db  *DB
	id  int
	ch  chan booking.Snapshot
	err error
}

// send keeps only the newest snapshot when the reader falls behind.
func (s *subscription) send(snap booking.Snapshot) {
	select {
	case s.ch <- snap:
		return
	default:
	}
	select {
	case <-s.ch:
	default:
	}
	s.ch <- snap
}

func (s *subscription) Snapshots() <-chan booking.Snapshot { return s.ch }

func (s *subscription) Err() error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return s.err
}

func (s *subscription) Close() error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.subs[s.id]; !ok {
		return nil
	}
	delete(s.db.subs, s.id)
	close(s.ch)
	return nil
}
