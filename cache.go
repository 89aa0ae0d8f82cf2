package touradmin

import (
	"context"
	"errors"
	"sync"

	"github.com/eringen/touradmin/booking"
)

var errCacheClosed = errors.New("list cache closed")

// ListCache shares one live booking list between requests that only need a
// read, such as the JSON API and the delete confirmation page. The list is
// opened on first use and reopened after its subscription ends.
type ListCache struct {
	db  booking.Database
	log booking.Logger

	mu     sync.Mutex
	list   *booking.List
	closed bool
}

// NewListCache creates a ListCache backed by db.
func NewListCache(db booking.Database, log booking.Logger) *ListCache {
	return &ListCache{db: db, log: log}
}

// current returns the open list, replacing one whose subscription has ended.
func (c *ListCache) current() (*booking.List, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errCacheClosed
	}
	if c.list != nil {
		select {
		case <-c.list.Done():
			c.list.Close()
			c.list = nil
		default:
			return c.list, nil
		}
	}
	// The subscription outlives the request that opened it.
	l, err := booking.Open(context.Background(), c.db, c.log)
	if err != nil {
		return nil, err
	}
	c.list = l
	return l, nil
}

// Bookings returns the current snapshot, waiting for the first one if the
// list was just opened.
func (c *ListCache) Bookings(ctx context.Context) ([]booking.Booking, error) {
	l, err := c.current()
	if err != nil {
		return nil, err
	}
	return l.Wait(ctx)
}

// Search returns the current snapshot filtered by term.
func (c *ListCache) Search(ctx context.Context, term string) ([]booking.Booking, error) {
	all, err := c.Bookings(ctx)
	if err != nil {
		return nil, err
	}
	return booking.Filter(all, term), nil
}

// Get returns the booking with id from the current snapshot.
func (c *ListCache) Get(ctx context.Context, id string) (booking.Booking, error) {
	all, err := c.Bookings(ctx)
	if err != nil {
		return booking.Booking{}, err
	}
	for _, b := range all {
		if b.ID == id {
			return b, nil
		}
	}
	return booking.Booking{}, booking.ErrNotFound
}

// Invalidate closes the shared list so the next read opens a fresh one.
// Handlers call it after a write so their next read sees the change without
// waiting for the subscription.
func (c *ListCache) Invalidate() {
	c.mu.Lock()
	l := c.list
	c.list = nil
	c.mu.Unlock()
	if l != nil {
		l.Close()
	}
}

// Close releases the shared list. Reads after Close fail.
func (c *ListCache) Close() error {
	c.mu.Lock()
	l := c.list
	c.list = nil
	c.closed = true
	c.mu.Unlock()
	if l != nil {
		return l.Close()
	}
	return nil
}
