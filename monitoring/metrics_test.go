package monitoring

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTrackRequest(t *testing.T) {
	before := testutil.ToFloat64(apiRequests.WithLabelValues("reservations_active", "ok"))

	TrackRequest("reservations_active", "ok", 120*time.Millisecond)
	TrackRequest("reservations_active", "ok", 80*time.Millisecond)

	after := testutil.ToFloat64(apiRequests.WithLabelValues("reservations_active", "ok"))
	assert.Equal(t, before+2, after)
}

func TestCountersAndGauges(t *testing.T) {
	refreshBefore := testutil.ToFloat64(tokenRefreshes.WithLabelValues("failure"))
	TrackRefresh("failure")
	assert.Equal(t, refreshBefore+1, testutil.ToFloat64(tokenRefreshes.WithLabelValues("failure")))

	cancelBefore := testutil.ToFloat64(cancellations.WithLabelValues("success"))
	TrackCancellation("success")
	assert.Equal(t, cancelBefore+1, testutil.ToFloat64(cancellations.WithLabelValues("success")))

	SetActiveReservations(3)
	assert.Equal(t, float64(3), testutil.ToFloat64(activeReservations))

	SetBreakerState("api", 2)
	assert.Equal(t, float64(2), testutil.ToFloat64(breakerState.WithLabelValues("api")))
}
