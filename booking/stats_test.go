package booking_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/touradmin/booking"
	"github.com/eringen/touradmin/booking/bookingtest"
)

type recordingLogger struct {
	mu     sync.Mutex
	errors []string
}

func (l *recordingLogger) Infof(string, ...interface{}) {}

func (l *recordingLogger) Errorf(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, fmt.Sprintf(format, args...))
}

func TestHistogramSortsDescendingAndStable(t *testing.T) {
	got := booking.Histogram([]booking.Booking{
		{TourTitle: "A"},
		{TourTitle: "A"},
		{TourTitle: "B"},
		{TourTitle: ""},
	})
	want := []booking.TourStat{
		{Tour: "A", Count: 2},
		{Tour: "B", Count: 1},
		{Tour: booking.UnknownTour, Count: 1},
	}
	assert.Equal(t, want, got)
}

func TestHistogramTiesKeepFirstSeenOrder(t *testing.T) {
	got := booking.Histogram([]booking.Booking{
		{TourTitle: "C"},
		{TourTitle: "B"},
		{TourTitle: "A"},
		{TourTitle: "A"},
		{TourTitle: ""},
	})
	want := []booking.TourStat{
		{Tour: "A", Count: 2},
		{Tour: "C", Count: 1},
		{Tour: "B", Count: 1},
		{Tour: booking.UnknownTour, Count: 1},
	}
	assert.Equal(t, want, got)
}

func TestHistogramEmpty(t *testing.T) {
	got := booking.Histogram(nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestAggregatorFetch(t *testing.T) {
	loc := time.FixedZone("GST", 4*3600)
	now := time.Date(2026, time.March, 15, 10, 30, 0, 0, loc)

	db := bookingtest.New(
		booking.Booking{TourTitle: "Desert Safari", CreatedAt: now.Add(-time.Hour)},
		booking.Booking{TourTitle: "Desert Safari", CreatedAt: time.Date(2026, time.March, 2, 9, 0, 0, 0, loc)},
		booking.Booking{TourTitle: "Dhow Cruise", CreatedAt: time.Date(2026, time.February, 27, 9, 0, 0, 0, loc)},
		booking.Booking{CreatedAt: time.Date(2026, time.March, 15, 0, 0, 0, 0, loc)},
	)

	agg := booking.NewAggregator(db, booking.WithClock(func() time.Time { return now }))
	stats := agg.Fetch(context.Background())

	assert.EqualValues(t, 4, stats.TotalBookings)
	assert.EqualValues(t, 2, stats.TodayBookings, "midnight itself counts as today")
	assert.EqualValues(t, 3, stats.ThisMonthBookings)
	assert.Equal(t, []booking.TourStat{
		{Tour: "Desert Safari", Count: 2},
		{Tour: "Dhow Cruise", Count: 1},
		{Tour: booking.UnknownTour, Count: 1},
	}, stats.TourStats)

	require.Len(t, db.Counts, 3)
	var thresholds []time.Time
	for _, q := range db.Counts {
		thresholds = append(thresholds, q.CreatedFrom)
	}
	assert.Contains(t, thresholds, time.Time{})
	assert.Contains(t, thresholds, time.Date(2026, time.March, 15, 0, 0, 0, 0, loc))
	assert.Contains(t, thresholds, time.Date(2026, time.March, 1, 0, 0, 0, 0, loc))
}

func TestAggregatorDegradesOnCountFailure(t *testing.T) {
	db := bookingtest.New(booking.Booking{TourTitle: "A", CreatedAt: time.Now()})
	db.CountErr = errors.New("quota exceeded")
	log := &recordingLogger{}

	stats := booking.NewAggregator(db, booking.WithLogger(log)).Fetch(context.Background())

	assert.Zero(t, stats.TotalBookings)
	assert.Zero(t, stats.TodayBookings)
	assert.Zero(t, stats.ThisMonthBookings)
	assert.NotNil(t, stats.TourStats)
	assert.Empty(t, stats.TourStats)
	require.Len(t, log.errors, 1)
	assert.Contains(t, log.errors[0], "quota exceeded")
}

func TestAggregatorDegradesOnFetchFailure(t *testing.T) {
	db := bookingtest.New(booking.Booking{TourTitle: "A", CreatedAt: time.Now()})
	db.GetAllErr = errors.New("permission denied")

	stats := booking.NewAggregator(db).Fetch(context.Background())

	assert.Equal(t, booking.Stats{TourStats: []booking.TourStat{}}, stats)
}

func TestAggregatorReportsFetchOutcome(t *testing.T) {
	db := bookingtest.New(booking.Booking{TourTitle: "A", CreatedAt: time.Now()})
	var outcomes []error
	agg := booking.NewAggregator(db, booking.WithOnFetch(func(err error) {
		outcomes = append(outcomes, err)
	}))

	agg.Fetch(context.Background())
	db.CountErr = errors.New("quota exceeded")
	agg.Fetch(context.Background())

	require.Len(t, outcomes, 2)
	assert.NoError(t, outcomes[0])
	assert.ErrorContains(t, outcomes[1], "quota exceeded")
}

func TestChartColorsEvenlySpaced(t *testing.T) {
	colors := booking.ChartColors(3)
	require.Len(t, colors, 3)
	assert.Equal(t, "hsla(0, 70%, 50%, 0.7)", colors[0].Fill)
	assert.Equal(t, "hsla(0, 70%, 50%, 1)", colors[0].Stroke)
	assert.Equal(t, "hsla(120, 70%, 50%, 0.7)", colors[1].Fill)
	assert.Equal(t, "hsla(240, 70%, 50%, 1)", colors[2].Stroke)

	assert.Nil(t, booking.ChartColors(0))

	seen := map[float64]bool{}
	for _, c := range booking.ChartColors(7) {
		assert.False(t, seen[c.Hue], "hue %v repeated", c.Hue)
		seen[c.Hue] = true
		assert.Less(t, c.Hue, 360.0)
	}
}

func TestPeriodBoundaries(t *testing.T) {
	loc := time.FixedZone("X", -5*3600)
	ts := time.Date(2026, time.December, 31, 23, 59, 59, 0, loc)
	assert.Equal(t, time.Date(2026, time.December, 31, 0, 0, 0, 0, loc), booking.StartOfDay(ts))
	assert.Equal(t, time.Date(2026, time.December, 1, 0, 0, 0, 0, loc), booking.StartOfMonth(ts))
}
