package mongostore

import (
	"context"
	"slices"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/eringen/touradmin/booking"
)

// Subscribe implements booking.Database. It opens a change stream on the
// collection and re-reads the whole collection after every change event.
// Servers without change streams get polling instead.
func (b *Bookings) Subscribe(ctx context.Context) (booking.Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)

	stream, err := b.coll.Watch(ctx, mongo.Pipeline{})
	if err != nil {
		b.log.Infof("bookings change stream unavailable, polling every %s: %v", b.poll, err)
	}

	first, err := b.GetAll(ctx, booking.All())
	if err != nil {
		if stream != nil {
			stream.Close(context.Background())
		}
		cancel()
		return nil, err
	}

	sub := &subscription{
		ch:     make(chan booking.Snapshot, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	sub.last = first
	sub.ch <- booking.Snapshot{Bookings: first, At: time.Now()}

	if stream != nil {
		go b.follow(ctx, sub, stream)
	} else {
		go b.pollLoop(ctx, sub)
	}
	return sub, nil
}

func (b *Bookings) follow(ctx context.Context, sub *subscription, stream *mongo.ChangeStream) {
	defer close(sub.done)
	defer close(sub.ch)
	defer stream.Close(context.Background())

	for stream.Next(ctx) {
		// Drain events that are already buffered so a burst costs one read.
		for stream.RemainingBatchLength() > 0 {
			if !stream.Next(ctx) {
				break
			}
		}
		list, err := b.GetAll(ctx, booking.All())
		if err != nil {
			if ctx.Err() == nil {
				sub.fail(err)
			}
			return
		}
		sub.sendChanged(ctx, list)
	}
	if err := stream.Err(); err != nil && ctx.Err() == nil {
		sub.fail(err)
	}
}

func (b *Bookings) pollLoop(ctx context.Context, sub *subscription) {
	defer close(sub.done)
	defer close(sub.ch)

	ticker := time.NewTicker(b.poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		list, err := b.GetAll(ctx, booking.All())
		if err != nil {
			if ctx.Err() == nil {
				sub.fail(err)
			}
			return
		}
		sub.sendChanged(ctx, list)
	}
}

type subscription struct {
	ch     chan booking.Snapshot
	cancel context.CancelFunc
	done   chan struct{}

	// last is only touched by the goroutine feeding ch.
	last []booking.Booking

	mu  sync.Mutex
	err error
}

// sendChanged sends list unless it equals the last snapshot sent. Updates
// that leave the bookings as they were, and idle polls, send nothing.
func (s *subscription) sendChanged(ctx context.Context, list []booking.Booking) bool {
	if slices.Equal(list, s.last) {
		return false
	}
	s.last = list
	s.send(ctx, booking.Snapshot{Bookings: list, At: time.Now()})
	return true
}

func (s *subscription) send(ctx context.Context, snap booking.Snapshot) {
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- snap:
	case <-ctx.Done():
	}
}

func (s *subscription) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *subscription) Snapshots() <-chan booking.Snapshot { return s.ch }

func (s *subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *subscription) Close() error {
	s.cancel()
	<-s.done
	return nil
}
