// Package metrics exposes Prometheus collectors for allocations and HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Option configures a Manager.
type Option func(*Manager)

// WithNamespace sets the namespace for all metrics.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithRegistry registers collectors on registry instead of a private one.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}

// WithHistogramBuckets overrides the latency buckets, in seconds.
func WithHistogramBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.buckets = buckets
		}
	}
}

// Manager owns the collectors of the service.
type Manager struct {
	namespace string
	buckets   []float64
	registry  *prometheus.Registry

	allocations        *prometheus.CounterVec
	allocationErrors   *prometheus.CounterVec
	allocationDuration prometheus.Histogram
	allocatedSeats     prometheus.Counter

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewManager creates a Manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "dhondt",
		buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		registry:  prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}

	auto := promauto.With(m.registry)

	m.allocations = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "allocations_total",
		Help:      "Allocations computed, by kind (allocate, simulate) and whether the result was degenerate.",
	}, []string{"kind", "degenerate"})

	m.allocationErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "allocation_errors_total",
		Help:      "Allocation requests rejected, by kind and reason.",
	}, []string{"kind", "reason"})

	m.allocationDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "allocation_duration_seconds",
		Help:      "Time spent computing an allocation.",
		Buckets:   m.buckets,
	})

	m.allocatedSeats = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "allocated_seats_total",
		Help:      "Seats handed out across all allocations.",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route, method and status code.",
	}, []string{"route", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route and method.",
		Buckets:   m.buckets,
	}, []string{"route", "method"})

	return m
}

// ObserveAllocation records a successful allocation.
func (m *Manager) ObserveAllocation(kind string, seats int, degenerate bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.allocations.WithLabelValues(kind, strconv.FormatBool(degenerate)).Inc()
	m.allocatedSeats.Add(float64(seats))
	m.allocationDuration.Observe(elapsed.Seconds())
}

// ObserveAllocationError records a rejected allocation request.
func (m *Manager) ObserveAllocationError(kind, reason string) {
	if m == nil {
		return
	}
	m.allocationErrors.WithLabelValues(kind, reason).Inc()
}

// ObserveRequest records a served HTTP request.
func (m *Manager) ObserveRequest(route, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// Registry returns the registry the collectors are registered on.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
