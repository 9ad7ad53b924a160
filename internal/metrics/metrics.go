package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pollCycles = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "apilo_notifier_poll_cycles_total",
			Help: "Total poller cycles completed (including failed ones)",
		},
	)

	cycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "apilo_notifier_cycle_duration_seconds",
			Help:    "Poller cycle duration distribution",
			Buckets: []float64{.1, .5, 1, 2, 5, 10, 30, 60, 120},
		},
	)

	ordersProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "apilo_notifier_orders_processed_total",
			Help: "Orders taken through the processing state machine",
		},
	)

	notificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apilo_notifier_notifications_sent_total",
			Help: "Notifications sent by channel and outcome",
		},
		[]string{"channel", "outcome"},
	)

	notificationsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apilo_notifier_notifications_skipped_total",
			Help: "Sends skipped because the ledger already had a record",
		},
		[]string{"channel"},
	)

	statusUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apilo_notifier_status_updates_total",
			Help: "Order status advancement attempts by outcome",
		},
		[]string{"outcome"},
	)

	tokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apilo_notifier_token_refreshes_total",
			Help: "OAuth token refresh attempts by outcome",
		},
		[]string{"outcome"},
	)

	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apilo_notifier_http_requests_total",
			Help: "Admin HTTP requests by method, path and status",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "apilo_notifier_http_request_duration_seconds",
			Help:    "Admin HTTP request duration distribution",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	apiRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apilo_notifier_api_requests_total",
			Help: "Order API requests by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)
)

// RecordPollCycle increments the cycle counter and observes its duration.
func RecordPollCycle(seconds float64) {
	pollCycles.Inc()
	cycleDuration.Observe(seconds)
}

// RecordOrderProcessed increments the processed-orders counter.
func RecordOrderProcessed() {
	ordersProcessed.Inc()
}

// RecordNotificationSent tracks a send attempt outcome ("success" or "failure").
func RecordNotificationSent(channel, outcome string) {
	notificationsSent.WithLabelValues(channel, outcome).Inc()
}

// RecordNotificationSkipped tracks a ledger dedupe skip.
func RecordNotificationSkipped(channel string) {
	notificationsSkipped.WithLabelValues(channel).Inc()
}

// RecordStatusUpdate tracks a status advancement outcome.
func RecordStatusUpdate(outcome string) {
	statusUpdates.WithLabelValues(outcome).Inc()
}

// RecordTokenRefresh tracks a token refresh outcome.
func RecordTokenRefresh(outcome string) {
	tokenRefreshes.WithLabelValues(outcome).Inc()
}

// RecordAPIRequest tracks an order API request outcome.
func RecordAPIRequest(operation, outcome string) {
	apiRequests.WithLabelValues(operation, outcome).Inc()
}

// RecordRequest tracks one admin HTTP request.
func RecordRequest(method, path string, status int, duration time.Duration) {
	httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

// Middleware returns HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		RecordRequest(r.Method, r.URL.Path, wrapped.status, time.Since(start))
	})
}
