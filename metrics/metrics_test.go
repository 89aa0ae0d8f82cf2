package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	assert.Equal(t, StatusSuccess, Status(nil))
	assert.Equal(t, StatusFailure, Status(errors.New("boom")))
}

func TestCountersIncrementPerLabel(t *testing.T) {
	before := testutil.ToFloat64(BookingDeletes.WithLabelValues(StatusSuccess))
	BookingDeletes.WithLabelValues(Status(nil)).Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(BookingDeletes.WithLabelValues(StatusSuccess)))

	failBefore := testutil.ToFloat64(LoginAttempts.WithLabelValues(StatusLimited))
	LoginAttempts.WithLabelValues(StatusLimited).Inc()
	assert.Equal(t, failBefore+1, testutil.ToFloat64(LoginAttempts.WithLabelValues(StatusLimited)))
}

func TestLiveStreamsGauge(t *testing.T) {
	start := testutil.ToFloat64(LiveStreams)
	LiveStreams.Inc()
	LiveStreams.Inc()
	LiveStreams.Dec()
	assert.Equal(t, start+1, testutil.ToFloat64(LiveStreams))
	LiveStreams.Dec()
}

func TestCollectorsRegistered(t *testing.T) {
	StatsFetchDuration.Observe(0.01)
	assert.Equal(t, 1, testutil.CollectAndCount(StatsFetchDuration))
	assert.GreaterOrEqual(t, testutil.CollectAndCount(PasswordChanges), 0)
}
