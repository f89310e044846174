// Package metrics exposes Prometheus collectors for the HTTP API, the
// consistency engine and the outbox relay.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stockledger"

// Metrics holds all collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Engine metrics
	EngineOperations        *prometheus.CounterVec
	EngineOperationDuration *prometheus.HistogramVec
	ReversalClampedTotal    *prometheus.CounterVec

	// Outbox metrics
	OutboxPublished     prometheus.Counter
	OutboxFailed        prometheus.Counter
	OutboxPending       prometheus.Gauge
	OutboxDeadLettered  prometheus.Counter
	KafkaPublishSeconds prometheus.Histogram

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec
}

// New creates and registers all collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{registry: registry}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	m.HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)
	m.HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Number of HTTP requests currently being processed",
		},
	)

	m.EngineOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_operations_total",
			Help:      "Consistency engine operations by outcome",
		},
		[]string{"operation", "outcome"},
	)
	m.EngineOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "engine_operation_duration_seconds",
			Help:      "Consistency engine operation duration including retries",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)
	m.ReversalClampedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reversal_clamped_total",
			Help:      "Receipt reversals or edits cut short by the zero floor",
		},
		[]string{"operation"},
	)

	m.OutboxPublished = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outbox_published_total",
		Help:      "Outbox messages delivered",
	})
	m.OutboxFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outbox_failed_total",
		Help:      "Outbox delivery attempts that failed",
	})
	m.OutboxPending = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "outbox_pending",
		Help:      "Outbox messages waiting for delivery",
	})
	m.OutboxDeadLettered = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outbox_dead_lettered_total",
		Help:      "Outbox messages moved to the dead letter table",
	})
	m.KafkaPublishSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "kafka_publish_duration_seconds",
		Help:      "Kafka publish duration in seconds",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	})

	m.CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.EngineOperations,
		m.EngineOperationDuration,
		m.ReversalClampedTotal,
		m.OutboxPublished,
		m.OutboxFailed,
		m.OutboxPending,
		m.OutboxDeadLettered,
		m.KafkaPublishSeconds,
		m.CircuitBreakerState,
	)

	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveOperation records one engine operation.
func (m *Metrics) ObserveOperation(op, outcome string, elapsed time.Duration) {
	m.EngineOperations.WithLabelValues(op, outcome).Inc()
	m.EngineOperationDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ReversalClamped counts a receipt correction cut short at zero.
func (m *Metrics) ReversalClamped(op string) {
	m.ReversalClampedTotal.WithLabelValues(op).Inc()
}

// RecordHTTPRequest records a completed HTTP request. path is the route
// template, not the raw URL.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, elapsed time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

// RecordOutboxBatch records one relay batch.
func (m *Metrics) RecordOutboxBatch(published, failed int) {
	m.OutboxPublished.Add(float64(published))
	m.OutboxFailed.Add(float64(failed))
}

// SetOutboxPending publishes the undelivered message count.
func (m *Metrics) SetOutboxPending(n int64) {
	m.OutboxPending.Set(float64(n))
}

// RecordDeadLettered counts messages moved to sys_outbox_dlq.
func (m *Metrics) RecordDeadLettered(n int64) {
	m.OutboxDeadLettered.Add(float64(n))
}

// SetCircuitBreakerState publishes a breaker state as 0, 1 or 2.
func (m *Metrics) SetCircuitBreakerState(name string, state int) {
	m.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// ObservePublish records one Kafka write.
func (m *Metrics) ObservePublish(elapsed time.Duration) {
	m.KafkaPublishSeconds.Observe(elapsed.Seconds())
}
