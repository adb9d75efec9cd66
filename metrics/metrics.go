// Package metrics provides Prometheus metrics for the MediaWiki bot.
// It tracks the request scheduler, protocol flows, and MCP tool calls.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics
const (
	Namespace = "mediawiki_bot"
)

var (
	// RequestsTotal counts total MCP tool calls by tool name and status
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "requests_total",
		Help:      "Total number of MCP tool calls",
	}, []string{"tool", "status"})

	// RequestDuration measures tool call latency distribution. Tool calls include
	// throttle waits, so the buckets reach well past the default interval.
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "request_duration_seconds",
		Help:      "Request latency distribution by tool",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"tool"})

	// RequestInFlight tracks currently executing tool calls
	RequestInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "requests_in_flight",
		Help:      "Number of requests currently being processed",
	}, []string{"tool"})

	// SchedulerQueueDepth tracks requests waiting for dispatch
	SchedulerQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: "scheduler",
		Name:      "queue_depth",
		Help:      "Requests queued and not yet dispatched",
	})

	// SchedulerThrottleWait measures how long dispatches waited on the throttle clock
	SchedulerThrottleWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Subsystem: "scheduler",
		Name:      "throttle_wait_seconds",
		Help:      "Time spent waiting for the throttle interval before a dispatch",
		Buckets:   []float64{.01, .1, .5, 1, 2, 4, 6, 10, 30},
	})

	// SchedulerCancellations counts queued requests withdrawn before dispatch
	SchedulerCancellations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "scheduler",
		Name:      "cancellations_total",
		Help:      "Queued requests canceled before dispatch",
	})

	// APIRequestsTotal counts dispatched wiki API requests
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "api_requests_total",
		Help:      "Total wiki API requests by action and status",
	}, []string{"action", "status"})

	// APILatency measures wiki API round trips (transport plus decode)
	APILatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "api_latency_seconds",
		Help:      "Wiki API call latency by action",
		Buckets:   prometheus.DefBuckets,
	}, []string{"action"})

	// APIErrors counts wiki API errors by error code
	APIErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "api_errors_total",
		Help:      "Wiki API errors by action and error code",
	}, []string{"action", "error_code"})

	// HTTPRequestsTotal counts HTTP transport requests
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method and status",
	}, []string{"method", "status"})

	// LoginAttempts counts login flow outcomes by result code
	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "login_attempts_total",
		Help:      "Login flow outcomes by result",
	}, []string{"result"})

	// PaginationPages counts continuation requests issued by paginated flows
	PaginationPages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "pagination_pages_total",
		Help:      "Pages fetched by paginated flows",
	}, []string{"kind"})

	// EditOperations counts write operations by mode
	EditOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "edit_operations_total",
		Help:      "Edit operations by mode and status",
	}, []string{"mode", "status"})

	// ContentSize tracks content sizes written
	ContentSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "content_size_bytes",
		Help:      "Content size distribution in bytes",
		Buckets:   []float64{100, 1000, 10000, 50000, 100000, 250000, 500000, 1000000},
	}, []string{"operation"})

	// PanicsRecovered counts recovered panics
	PanicsRecovered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "panics_recovered_total",
		Help:      "Number of panics recovered in handlers and continuations",
	}, []string{"component"})
)

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordRequest records a completed tool call with its duration and status
func RecordRequest(tool string, duration float64, success bool) {
	RequestsTotal.WithLabelValues(tool, status(success)).Inc()
	RequestDuration.WithLabelValues(tool).Observe(duration)
}

// RecordDispatch records one scheduled wiki API call
func RecordDispatch(action string, duration float64, success bool, errorCode string) {
	if action == "" {
		action = "unknown"
	}
	APIRequestsTotal.WithLabelValues(action, status(success)).Inc()
	APILatency.WithLabelValues(action).Observe(duration)
	if errorCode != "" {
		APIErrors.WithLabelValues(action, errorCode).Inc()
	}
}

// RecordEdit records a finished edit flow
func RecordEdit(mode string, size int, success bool) {
	EditOperations.WithLabelValues(mode, status(success)).Inc()
	if success {
		ContentSize.WithLabelValues("edit").Observe(float64(size))
	}
}
