package booking

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// UnknownTour labels bookings without a tour title in the histogram.
const UnknownTour = "Unknown Tour"

// TourStat is the number of bookings for one tour.
type TourStat struct {
	Tour  string `json:"tour"`
	Count int    `json:"count"`
}

// Stats holds the dashboard numbers.
type Stats struct {
	TotalBookings     int64      `json:"totalBookings"`
	TodayBookings     int64      `json:"todayBookings"`
	ThisMonthBookings int64      `json:"thisMonthBookings"`
	TourStats         []TourStat `json:"tourStats"`
}

// emptyStats is what the dashboard shows when any read fails.
func emptyStats() Stats {
	return Stats{TourStats: []TourStat{}}
}

// Histogram counts bookings per tour title, sorted by count descending. Ties
// keep the order in which tours were first seen.
func Histogram(bookings []Booking) []TourStat {
	index := make(map[string]int)
	stats := []TourStat{}
	for _, b := range bookings {
		tour := b.TourTitle
		if tour == "" {
			tour = UnknownTour
		}
		i, ok := index[tour]
		if !ok {
			i = len(stats)
			index[tour] = i
			stats = append(stats, TourStat{Tour: tour})
		}
		stats[i].Count++
	}
	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].Count > stats[j].Count
	})
	return stats
}

// Aggregator computes dashboard statistics from a Reader.
type Aggregator struct {
	db      Reader
	now     func() time.Time
	log     Logger
	onFetch func(error)
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithClock overrides the time source used for the today/month thresholds.
func WithClock(now func() time.Time) AggregatorOption {
	return func(a *Aggregator) { a.now = now }
}

// WithLogger sets where fetch failures are logged.
func WithLogger(l Logger) AggregatorOption {
	return func(a *Aggregator) { a.log = l }
}

// WithOnFetch registers fn to be called after every Fetch with the error the
// reads failed with, or nil.
func WithOnFetch(fn func(err error)) AggregatorOption {
	return func(a *Aggregator) { a.onFetch = fn }
}

// NewAggregator returns an Aggregator reading from db.
func NewAggregator(db Reader, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{db: db, now: time.Now, log: nopLogger{}}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Fetch returns the current statistics. It never fails: if any of the reads
// fails the error is logged and zeroed stats are returned.
func (a *Aggregator) Fetch(ctx context.Context) Stats {
	stats, err := a.fetch(ctx)
	if a.onFetch != nil {
		a.onFetch(err)
	}
	if err != nil {
		a.log.Errorf("error fetching stats: %v", err)
		return emptyStats()
	}
	return stats
}

// fetch runs the three counts and the full read concurrently and waits for
// all of them.
func (a *Aggregator) fetch(ctx context.Context) (Stats, error) {
	now := a.now()
	today := StartOfDay(now)
	month := StartOfMonth(now)

	stats := emptyStats()

	var mu sync.Mutex
	var wg sync.WaitGroup
	var firstErr error

	setErr := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	count := func(name string, q Query, dst *int64) {
		defer wg.Done()
		n, err := a.db.Count(ctx, q)
		if err != nil {
			setErr(fmt.Errorf("count %s: %w", name, err))
			return
		}
		mu.Lock()
		*dst = n
		mu.Unlock()
	}

	wg.Add(4)
	go count("total", All(), &stats.TotalBookings)
	go count("today", CreatedSince(today), &stats.TodayBookings)
	go count("month", CreatedSince(month), &stats.ThisMonthBookings)

	go func() {
		defer wg.Done()
		all, err := a.db.GetAll(ctx, All())
		if err != nil {
			setErr(fmt.Errorf("get bookings: %w", err))
			return
		}
		tours := Histogram(all)
		mu.Lock()
		stats.TourStats = tours
		mu.Unlock()
	}()

	wg.Wait()

	if firstErr != nil {
		return Stats{}, firstErr
	}
	return stats, nil
}
