// Package metrics holds the Prometheus collectors of the admin app. HTTP
// request metrics come from echoprometheus; these cover the domain.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingDeletes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "touradmin_booking_deletes_total",
			Help: "Booking delete attempts by outcome",
		},
		[]string{"status"},
	)

	StatsFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "touradmin_stats_fetches_total",
			Help: "Dashboard stats fetches by outcome",
		},
		[]string{"status"},
	)

	StatsFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "touradmin_stats_fetch_duration_seconds",
			Help:    "Time spent on the four dashboard reads",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
	)

	LiveStreams = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "touradmin_live_streams",
			Help: "Open live booking streams",
		},
	)

	LoginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "touradmin_login_attempts_total",
			Help: "Sign-in attempts by outcome",
		},
		[]string{"status"},
	)

	PasswordChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "touradmin_password_changes_total",
			Help: "Password change submissions by outcome",
		},
		[]string{"status"},
	)
)

// Outcome label values.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusLimited = "limited"
	StatusInvalid = "invalid"
)

// Status maps an error to the success or failure label.
func Status(err error) string {
	if err != nil {
		return StatusFailure
	}
	return StatusSuccess
}
