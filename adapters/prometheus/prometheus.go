// Package prometheus implements es.StoreMetrics with Prometheus collectors.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/codewandler/esc-go/core/es"
	"github.com/codewandler/esc-go/core/metrics"
)

// Default histogram buckets for latency metrics (in seconds).
var defaultBuckets = []float64{
	.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5,
}

const categoryLabel = "category"

type storeMetrics struct {
	appendDuration       *prometheus.HistogramVec
	readDuration         *prometheus.HistogramVec
	eventsAppended       *prometheus.CounterVec
	eventsRead           *prometheus.CounterVec
	concurrencyConflicts *prometheus.CounterVec
	idempotentAppends    *prometheus.CounterVec
	asyncInFlight        prometheus.Gauge
}

// NewStoreMetrics creates the store collectors and registers them with reg.
func NewStoreMetrics(reg prometheus.Registerer) es.StoreMetrics {
	m := &storeMetrics{
		appendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "esc_store_append_duration_seconds",
			Help:    "Event store append latency in seconds",
			Buckets: defaultBuckets,
		}, []string{categoryLabel}),

		readDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "esc_store_read_duration_seconds",
			Help:    "Event store read latency in seconds",
			Buckets: defaultBuckets,
		}, []string{categoryLabel}),

		eventsAppended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "esc_events_appended_total",
			Help: "Total number of events appended",
		}, []string{categoryLabel}),

		eventsRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "esc_events_read_total",
			Help: "Total number of events read",
		}, []string{categoryLabel}),

		concurrencyConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "esc_concurrency_conflicts_total",
			Help: "Total number of writes rejected for a wrong expected version",
		}, []string{categoryLabel}),

		idempotentAppends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "esc_idempotent_appends_total",
			Help: "Total number of appends that were already applied",
		}, []string{categoryLabel}),

		asyncInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "esc_async_in_flight",
			Help: "Number of submitted, unfinished async store operations",
		}),
	}

	reg.MustRegister(
		m.appendDuration,
		m.readDuration,
		m.eventsAppended,
		m.eventsRead,
		m.concurrencyConflicts,
		m.idempotentAppends,
		m.asyncInFlight,
	)

	return m
}

func (m *storeMetrics) AppendDuration(category string) metrics.Timer {
	return metrics.NewTimer(m.appendDuration.WithLabelValues(category))
}

func (m *storeMetrics) ReadDuration(category string) metrics.Timer {
	return metrics.NewTimer(m.readDuration.WithLabelValues(category))
}

func (m *storeMetrics) EventsAppended(category string, count int) {
	m.eventsAppended.WithLabelValues(category).Add(float64(count))
}

func (m *storeMetrics) EventsRead(category string, count int) {
	m.eventsRead.WithLabelValues(category).Add(float64(count))
}

func (m *storeMetrics) ConcurrencyConflict(category string) {
	m.concurrencyConflicts.WithLabelValues(category).Inc()
}

func (m *storeMetrics) IdempotentAppend(category string) {
	m.idempotentAppends.WithLabelValues(category).Inc()
}

func (m *storeMetrics) AsyncInFlight(delta int) { m.asyncInFlight.Add(float64(delta)) }

var _ es.StoreMetrics = (*storeMetrics)(nil)
