// Package metric provides Prometheus metrics for the phonebook service.
package metric

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains all service-level metrics
type Metrics struct {
	registry *prometheus.Registry

	// GraphQL operation metrics
	OperationsTotal   *prometheus.CounterVec
	OperationsFailed  *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec

	// Subscription metrics
	ActiveSubscribers prometheus.Gauge
	EventsPublished   prometheus.Counter
}

// New creates a Metrics instance backed by its own registry, with Go runtime
// and process collectors pre-registered
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,

		OperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "phonebook",
				Subsystem: "graphql",
				Name:      "operations_total",
				Help:      "Total number of GraphQL operations executed",
			},
			[]string{"operation"},
		),

		OperationsFailed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "phonebook",
				Subsystem: "graphql",
				Name:      "operations_failed_total",
				Help:      "Total number of failed GraphQL operations by error class",
			},
			[]string{"operation", "class"},
		),

		OperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "phonebook",
				Subsystem: "graphql",
				Name:      "operation_duration_seconds",
				Help:      "GraphQL operation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		ActiveSubscribers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "phonebook",
				Subsystem: "subscriptions",
				Name:      "active_subscribers",
				Help:      "Number of live personAdded subscribers",
			},
		),

		EventsPublished: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "phonebook",
				Subsystem: "subscriptions",
				Name:      "events_published_total",
				Help:      "Total number of personAdded events published",
			},
		),
	}

	registry.MustRegister(
		m.OperationsTotal,
		m.OperationsFailed,
		m.OperationDuration,
		m.ActiveSubscribers,
		m.EventsPublished,
	)

	return m
}

// RecordOperation observes one GraphQL operation execution
func (m *Metrics) RecordOperation(operation string, start time.Time, errClass string) {
	m.OperationsTotal.WithLabelValues(operation).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if errClass != "" {
		m.OperationsFailed.WithLabelValues(operation, errClass).Inc()
	}
}

// Handler returns the HTTP handler exposing the registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying Prometheus registry for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
