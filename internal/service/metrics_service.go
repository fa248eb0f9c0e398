package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsSnapshot is a lightweight summary of process counters.
type MetricsSnapshot struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	OrdersCreated            uint64    `json:"orders_created"`
	OrdersCancelled          uint64    `json:"orders_cancelled"`
	SweepDeleted             uint64    `json:"sweep_deleted"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}

// MetricsService encapsulates Prometheus instrumentation. All methods are safe
// on a nil receiver so services can run without metrics.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	ordersCreated   *prometheus.CounterVec
	ordersCancelled *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	paymentsTotal   *prometheus.CounterVec
	sweepDeleted    *prometheus.CounterVec
	sweepFailures   prometheus.Counter
	storageDuration *prometheus.HistogramVec
	loginsThrottled prometheus.Counter

	requestCount         uint64
	requestDurationTotal uint64
	createdCount         uint64
	cancelledCount       uint64
	sweepDeletedCount    uint64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	ordersCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "print_orders_created_total",
		Help: "Orders submitted, by submitter type",
	}, []string{"submitter_type"})

	ordersCancelled := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "print_orders_cancelled_total",
		Help: "Orders cancelled by their submitter, by submitter type",
	}, []string{"submitter_type"})

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "print_order_status_transitions_total",
		Help: "Admin status changes",
	}, []string{"from", "to"})

	paymentsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "print_payments_total",
		Help: "Recorded payments, by method",
	}, []string{"method"})

	sweepDeleted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "print_cleanup_deleted_total",
		Help: "Objects removed by the cleanup sweep",
	}, []string{"kind"})

	sweepFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "print_cleanup_failures_total",
		Help: "Per-order failures during cleanup sweeps",
	})

	storageDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "print_storage_operation_seconds",
		Help:    "Duration of file storage operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"op", "result"})

	loginsThrottled := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_logins_throttled_total",
		Help: "Login attempts rejected by the rate limiter",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, ordersCreated, ordersCancelled, transitions, paymentsTotal,
		sweepDeleted, sweepFailures, storageDuration, loginsThrottled, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		ordersCreated:   ordersCreated,
		ordersCancelled: ordersCancelled,
		transitions:     transitions,
		paymentsTotal:   paymentsTotal,
		sweepDeleted:    sweepDeleted,
		sweepFailures:   sweepFailures,
		storageDuration: storageDuration,
		loginsThrottled: loginsThrottled,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// OrderCreated counts a submitted order.
func (m *MetricsService) OrderCreated(submitterType string) {
	if m == nil {
		return
	}
	m.ordersCreated.WithLabelValues(submitterType).Inc()
	atomic.AddUint64(&m.createdCount, 1)
}

// OrderCancelled counts a submitter cancellation.
func (m *MetricsService) OrderCancelled(submitterType string) {
	if m == nil {
		return
	}
	m.ordersCancelled.WithLabelValues(submitterType).Inc()
	atomic.AddUint64(&m.cancelledCount, 1)
}

// StatusTransition counts an admin status change.
func (m *MetricsService) StatusTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

// PaymentRecorded counts a completed payment.
func (m *MetricsService) PaymentRecorded(method string) {
	if m == nil {
		return
	}
	m.paymentsTotal.WithLabelValues(method).Inc()
}

// SweepDeleted counts objects removed by the cleanup sweep; kind is "order", "file" or "orphan".
func (m *MetricsService) SweepDeleted(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sweepDeleted.WithLabelValues(kind).Add(float64(n))
	atomic.AddUint64(&m.sweepDeletedCount, uint64(n))
}

// SweepFailures counts per-order sweep failures.
func (m *MetricsService) SweepFailures(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sweepFailures.Add(float64(n))
}

// ObserveStorage records a storage operation timing.
func (m *MetricsService) ObserveStorage(op string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.storageDuration.WithLabelValues(op, result).Observe(duration.Seconds())
}

// LoginThrottled counts a rate limited login.
func (m *MetricsService) LoginThrottled() {
	if m == nil {
		return
	}
	m.loginsThrottled.Inc()
}

// Snapshot returns aggregated counters for the admin metrics endpoint.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return MetricsSnapshot{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		OrdersCreated:            atomic.LoadUint64(&m.createdCount),
		OrdersCancelled:          atomic.LoadUint64(&m.cancelledCount),
		SweepDeleted:             atomic.LoadUint64(&m.sweepDeletedCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
