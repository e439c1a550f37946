package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "spacectl"

var (
	registerOnce sync.Once

	reconcileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "controller",
			Name:      "reconcile_total",
			Help:      "Reconcile passes by controller and result.",
		},
		[]string{"controller", "result"},
	)
	reconcileErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "controller",
			Name:      "reconcile_errors_total",
			Help:      "Failed reconcile passes by controller and error kind.",
		},
		[]string{"controller", "error_kind"},
	)
	reconcileDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "controller",
			Name:      "reconcile_duration_seconds",
			Help:      "Reconcile pass duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"controller"},
	)
	gameRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "game",
			Name:      "requests_total",
			Help:      "Game API requests by endpoint and HTTP status.",
		},
		[]string{"endpoint", "status"},
	)
	gameDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "game",
			Name:      "request_duration_seconds",
			Help:      "Game API request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)
	travelTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "travel",
			Name:      "transitions_total",
			Help:      "Travel machine state transitions.",
		},
		[]string{"from", "to"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Admin HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			reconcileTotal, reconcileErrors, reconcileDuration,
			gameRequests, gameDuration,
			travelTransitions,
			httpRequests, httpDuration,
		)
	})
}

// Reconciles records controller samples; it satisfies controller.Metrics.
type Reconciles struct{}

func (Reconciles) ObserveReconcile(controller, result string, elapsed time.Duration) {
	RegisterMetrics()
	reconcileTotal.WithLabelValues(controller, result).Inc()
	reconcileDuration.WithLabelValues(controller).Observe(elapsed.Seconds())
}

func (Reconciles) ObserveReconcileError(controller, errorKind string) {
	RegisterMetrics()
	reconcileErrors.WithLabelValues(controller, errorKind).Inc()
}

// ObserveGameCall has the game.Observer signature.
func ObserveGameCall(endpoint, status string, elapsed time.Duration) {
	RegisterMetrics()
	gameRequests.WithLabelValues(endpoint, status).Inc()
	gameDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

func RecordTravelTransition(from, to string) {
	RegisterMetrics()
	travelTransitions.WithLabelValues(from, to).Inc()
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}
