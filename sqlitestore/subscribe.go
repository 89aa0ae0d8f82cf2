package sqlitestore

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/eringen/touradmin/booking"
)

// Subscribe implements booking.Database. The first snapshot is read before
// Subscribe returns; later ones follow change signals and polling, and are
// only sent when the table content changed.
func (s *Store) Subscribe(ctx context.Context) (booking.Subscription, error) {
	first, err := s.GetAll(ctx, booking.All())
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := &subscription{
		ch:     make(chan booking.Snapshot, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	sub.ch <- booking.Snapshot{Bookings: first, At: time.Now()}

	var signals <-chan struct{}
	stop := func() {}
	if s.notifier != nil {
		signals, stop = s.notifier.Listen(booking.CollectionName)
	}
	go func() {
		defer stop()
		s.watch(ctx, sub, first, signals)
	}()
	return sub, nil
}

func (s *Store) watch(ctx context.Context, sub *subscription, last []booking.Booking, signals <-chan struct{}) {
	defer close(sub.done)
	defer close(sub.ch)

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-signals:
			if !ok {
				signals = nil
				continue
			}
		case <-ticker.C:
		}

		list, err := s.GetAll(ctx, booking.All())
		if err != nil {
			if ctx.Err() == nil {
				sub.fail(err)
			}
			return
		}
		if slices.Equal(list, last) {
			continue
		}
		last = list
		sub.send(ctx, booking.Snapshot{Bookings: list, At: time.Now()})
	}
}

type subscription struct {
	ch     chan booking.Snapshot
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// send replaces a snapshot the reader has not taken yet.
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

// Close stops the subscription and waits for its goroutine to exit.
func (s *subscription) Close() error {
	s.cancel()
	<-s.done
	return nil
}
