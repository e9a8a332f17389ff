package monitoring

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	apiRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bikemetro_api_requests_total",
			Help: "Total API requests by endpoint and outcome",
		},
		[]string{"endpoint", "outcome"},
	)

	apiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bikemetro_api_request_duration_seconds",
			Help:    "Duration of API requests",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 8),
		},
		[]string{"endpoint"},
	)

	tokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bikemetro_token_refresh_total",
			Help: "Access token refresh attempts",
		},
		[]string{"result"},
	)

	cancellations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bikemetro_reservation_cancellations_total",
			Help: "Reservation cancellation requests",
		},
		[]string{"result"},
	)

	activeReservations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bikemetro_active_reservations",
			Help: "Active reservations reported by the last poll",
		},
	)

	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bikemetro_circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)
)

// Track API request outcome and latency
func TrackRequest(endpoint, outcome string, duration time.Duration) {
	apiRequests.WithLabelValues(endpoint, outcome).Inc()
	apiRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func TrackRefresh(result string) {
	tokenRefreshes.WithLabelValues(result).Inc()
}

func TrackCancellation(result string) {
	cancellations.WithLabelValues(result).Inc()
}

func SetActiveReservations(n int) {
	activeReservations.Set(float64(n))
}

func SetBreakerState(name string, state int) {
	breakerState.WithLabelValues(name).Set(float64(state))
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("metrics server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
