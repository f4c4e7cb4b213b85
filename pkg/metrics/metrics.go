package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config holds metrics configuration.
type Config struct {
	ServiceName string
	Namespace   string
}

// DefaultConfig returns the standard configuration under the oms namespace.
func DefaultConfig(serviceName string) *Config {
	return &Config{
		ServiceName: serviceName,
		Namespace:   "oms",
	}
}

// Bucket boundaries in seconds, tuned per subsystem latency profile.
var (
	httpBuckets  = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	kafkaBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1}
	mongoBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5}
	sweepBuckets = []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}
)

// Metrics exposes the service's Prometheus instrumentation. All recording
// goes through the Record*/Set* methods so label sets stay consistent.
type Metrics struct {
	serviceName string
	registry    *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	httpInFlight prometheus.Gauge

	kafkaPublished       *prometheus.CounterVec
	kafkaPublishDuration *prometheus.HistogramVec

	mongoOperations *prometheus.CounterVec
	mongoDuration   *prometheus.HistogramVec

	stockMutations   *prometheus.CounterVec
	versionConflicts *prometheus.CounterVec
	lowStockAlerts   *prometheus.CounterVec

	sweepRuns         *prometheus.CounterVec
	sweepReservations *prometheus.CounterVec
	sweepDuration     *prometheus.HistogramVec

	outboxPublished *prometheus.CounterVec
	outboxPending   prometheus.Gauge

	breakerState *prometheus.GaugeVec
	breakerTrips *prometheus.CounterVec
}

// builder constructs and registers metrics in one step.
type builder struct {
	namespace string
	service   string
	registry  *prometheus.Registry
}

func (b builder) counter(name, help string, labels ...string) *prometheus.CounterVec {
	c := prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: b.namespace, Name: name, Help: help},
		labels,
	)
	b.registry.MustRegister(c)
	return c
}

func (b builder) histogram(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	h := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: b.namespace, Name: name, Help: help, Buckets: buckets},
		labels,
	)
	b.registry.MustRegister(h)
	return h
}

func (b builder) gauge(name, help string) prometheus.Gauge {
	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   b.namespace,
		Name:        name,
		Help:        help,
		ConstLabels: prometheus.Labels{"service": b.service},
	})
	b.registry.MustRegister(g)
	return g
}

func (b builder) gaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	g := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: b.namespace, Name: name, Help: help},
		labels,
	)
	b.registry.MustRegister(g)
	return g
}

// New creates a Metrics instance backed by its own registry, with the Go
// runtime and process collectors already attached.
func New(config *Config) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	b := builder{namespace: config.Namespace, service: config.ServiceName, registry: registry}

	return &Metrics{
		serviceName: config.ServiceName,
		registry:    registry,

		httpRequests: b.counter("http_requests_total",
			"HTTP requests served",
			"service", "method", "path", "status"),
		httpDuration: b.histogram("http_request_duration_seconds",
			"HTTP request latency in seconds",
			httpBuckets, "service", "method", "path"),
		httpInFlight: b.gauge("http_requests_in_flight",
			"HTTP requests currently in flight"),

		kafkaPublished: b.counter("kafka_events_published_total",
			"Kafka events published",
			"service", "topic", "event_type", "status"),
		kafkaPublishDuration: b.histogram("kafka_publish_duration_seconds",
			"Kafka publish latency in seconds",
			kafkaBuckets, "service", "topic"),

		mongoOperations: b.counter("mongodb_operations_total",
			"MongoDB operations executed",
			"service", "collection", "operation", "status"),
		mongoDuration: b.histogram("mongodb_operation_duration_seconds",
			"MongoDB operation latency in seconds",
			mongoBuckets, "service", "collection", "operation"),

		stockMutations: b.counter("stock_mutations_total",
			"Stock mutations by history action",
			"service", "action", "status"),
		versionConflicts: b.counter("version_conflicts_total",
			"Optimistic concurrency conflicts",
			"service", "operation"),
		lowStockAlerts: b.counter("low_stock_alerts_total",
			"Low stock alerts raised",
			"service", "status"),

		sweepRuns: b.counter("expiration_sweep_runs_total",
			"Expiration sweep runs",
			"service", "status"),
		sweepReservations: b.counter("expiration_sweep_reservations_total",
			"Reservations handled by expiration sweeps",
			"service", "outcome"),
		sweepDuration: b.histogram("expiration_sweep_duration_seconds",
			"Expiration sweep duration in seconds",
			sweepBuckets, "service"),

		outboxPublished: b.counter("outbox_events_published_total",
			"Outbox events published",
			"service", "status"),
		outboxPending: b.gauge("outbox_events_pending",
			"Outbox events awaiting publication"),

		breakerState: b.gaugeVec("circuit_breaker_state",
			"Circuit breaker state (0=closed, 1=half-open, 2=open)",
			"service", "name"),
		breakerTrips: b.counter("circuit_breaker_trips_total",
			"Circuit breaker trips",
			"service", "name"),
	}
}

// Handler returns the HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordHTTPRequest records one served HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.httpRequests.WithLabelValues(m.serviceName, method, path, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(m.serviceName, method, path).Observe(duration.Seconds())
}

// IncrementHTTPRequestsInFlight increments the in-flight gauge.
func (m *Metrics) IncrementHTTPRequestsInFlight() {
	m.httpInFlight.Inc()
}

// DecrementHTTPRequestsInFlight decrements the in-flight gauge.
func (m *Metrics) DecrementHTTPRequestsInFlight() {
	m.httpInFlight.Dec()
}

// RecordKafkaPublish records one publish attempt against a topic.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, success bool, duration time.Duration) {
	m.kafkaPublished.WithLabelValues(m.serviceName, topic, eventType, outcome(success)).Inc()
	m.kafkaPublishDuration.WithLabelValues(m.serviceName, topic).Observe(duration.Seconds())
}

// RecordMongoDBOperation records one store operation against a collection.
func (m *Metrics) RecordMongoDBOperation(collection, operation string, success bool, duration time.Duration) {
	m.mongoOperations.WithLabelValues(m.serviceName, collection, operation, outcome(success)).Inc()
	m.mongoDuration.WithLabelValues(m.serviceName, collection, operation).Observe(duration.Seconds())
}

// RecordStockMutation records one stock mutation by its history action.
func (m *Metrics) RecordStockMutation(action string, success bool) {
	m.stockMutations.WithLabelValues(m.serviceName, action, outcome(success)).Inc()
}

// RecordVersionConflict records one optimistic concurrency conflict.
func (m *Metrics) RecordVersionConflict(operation string) {
	m.versionConflicts.WithLabelValues(m.serviceName, operation).Inc()
}

// RecordLowStockAlert records one low stock alert attempt.
func (m *Metrics) RecordLowStockAlert(sent bool) {
	status := "sent"
	if !sent {
		status = "failed"
	}
	m.lowStockAlerts.WithLabelValues(m.serviceName, status).Inc()
}

// RecordSweepRun records one expiration sweep with its per-reservation tallies.
func (m *Metrics) RecordSweepRun(success bool, released, failed int, duration time.Duration) {
	m.sweepRuns.WithLabelValues(m.serviceName, outcome(success)).Inc()
	m.sweepReservations.WithLabelValues(m.serviceName, "released").Add(float64(released))
	m.sweepReservations.WithLabelValues(m.serviceName, "failed").Add(float64(failed))
	m.sweepDuration.WithLabelValues(m.serviceName).Observe(duration.Seconds())
}

// RecordOutboxPublished records one outbox publish attempt.
func (m *Metrics) RecordOutboxPublished(success bool) {
	m.outboxPublished.WithLabelValues(m.serviceName, outcome(success)).Inc()
}

// SetOutboxPending sets the gauge of events awaiting publication.
func (m *Metrics) SetOutboxPending(count int) {
	m.outboxPending.Set(float64(count))
}

// SetCircuitBreakerState sets the state gauge for a named breaker.
func (m *Metrics) SetCircuitBreakerState(name string, state int) {
	m.breakerState.WithLabelValues(m.serviceName, name).Set(float64(state))
}

// RecordCircuitBreakerTrip records a breaker opening.
func (m *Metrics) RecordCircuitBreakerTrip(name string) {
	m.breakerTrips.WithLabelValues(m.serviceName, name).Inc()
}
