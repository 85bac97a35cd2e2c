package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// AllocationMetrics counts ledger operations by kind and outcome so stock
// pressure and rejection rates are visible without reading the database.
type AllocationMetrics struct {
	operations *prometheus.CounterVec
	quantities *prometheus.CounterVec
}

// NewAllocationMetrics registers the allocation metrics on the provided
// registerer. A nil registerer yields a no-op recorder, which tests rely on.
func NewAllocationMetrics(reg prometheus.Registerer) *AllocationMetrics {
	if reg == nil {
		return &AllocationMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lot_ledger_operations_total",
		Help: "Ledger operations by kind and outcome.",
	}, []string{"op", "outcome"})
	quantities := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lot_ledger_quantity_total",
		Help: "Units moved by successful ledger operations.",
	}, []string{"op"})
	reg.MustRegister(operations, quantities)
	return &AllocationMetrics{operations: operations, quantities: quantities}
}

// ObserveSuccess records a completed ledger operation and the units it moved.
func (m *AllocationMetrics) ObserveSuccess(op string, qty int) {
	if m == nil || m.operations == nil {
		return
	}
	m.operations.WithLabelValues(normalizeLabel(op), "success").Inc()
	m.quantities.WithLabelValues(normalizeLabel(op)).Add(float64(qty))
}

// ObserveRejected records a ledger operation refused by a business rule
// (insufficient stock, wrong lot state).
func (m *AllocationMetrics) ObserveRejected(op string) {
	if m == nil || m.operations == nil {
		return
	}
	m.operations.WithLabelValues(normalizeLabel(op), "rejected").Inc()
}

// RequestMetrics times HTTP requests by route and status class.
type RequestMetrics struct {
	duration *prometheus.HistogramVec
}

// NewRequestMetrics registers the HTTP metrics on the provided registerer.
func NewRequestMetrics(reg prometheus.Registerer) *RequestMetrics {
	if reg == nil {
		return &RequestMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "status"})
	reg.MustRegister(duration)
	return &RequestMetrics{duration: duration}
}

// Observe records one request.
func (m *RequestMetrics) Observe(method string, status int, elapsed time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(method), statusClass(status)).Observe(elapsed.Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
