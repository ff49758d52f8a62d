package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the production service
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	StageTransitions      *prometheus.CounterVec
	ReservationsCommitted prometheus.Counter
	ReservationsReleased  prometheus.Counter
	QCVerdicts            *prometheus.CounterVec
	NotificationFailures  prometheus.Counter
	EventPublishFailures  prometheus.Counter
}

// New creates and registers all service metrics on a fresh registry
func New(serviceName string) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	labels := prometheus.Labels{"service": serviceName}

	m := &Metrics{
		registry: registry,

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "http_requests_total",
			Help:        "Total number of HTTP requests",
			ConstLabels: labels,
		}, []string{"method", "path", "status"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request latency in seconds",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"method", "path"}),

		HTTPRequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "http_requests_in_flight",
			Help:        "Current number of in-flight HTTP requests",
			ConstLabels: labels,
		}),

		StageTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "stage_transitions_total",
			Help:        "Total number of stage execution status transitions",
			ConstLabels: labels,
		}, []string{"from", "to"}),

		ReservationsCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "machine_reservations_committed_total",
			Help:        "Total number of machine reservations committed",
			ConstLabels: labels,
		}),

		ReservationsReleased: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "machine_reservations_released_total",
			Help:        "Total number of machine reservations released",
			ConstLabels: labels,
		}),

		QCVerdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "qc_verdicts_total",
			Help:        "Total number of QC session verdicts by result",
			ConstLabels: labels,
		}, []string{"result"}),

		NotificationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "notification_publish_failures_total",
			Help:        "Total number of failed notification publishes",
			ConstLabels: labels,
		}),

		EventPublishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "domain_event_publish_failures_total",
			Help:        "Total number of failed domain event publishes",
			ConstLabels: labels,
		}),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.StageTransitions,
		m.ReservationsCommitted,
		m.ReservationsReleased,
		m.QCVerdicts,
		m.NotificationFailures,
		m.EventPublishFailures,
	)

	return m
}

// Handler returns an HTTP handler exposing the registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records a completed HTTP request
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// IncrementHTTPRequestsInFlight increments the in-flight gauge
func (m *Metrics) IncrementHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Inc()
}

// DecrementHTTPRequestsInFlight decrements the in-flight gauge
func (m *Metrics) DecrementHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Dec()
}

// RecordStageTransition records a stage execution status transition
func (m *Metrics) RecordStageTransition(from, to string) {
	m.StageTransitions.WithLabelValues(from, to).Inc()
}

// RecordReservationCommitted records a committed machine reservation
func (m *Metrics) RecordReservationCommitted() {
	m.ReservationsCommitted.Inc()
}

// RecordReservationReleased records a released machine reservation
func (m *Metrics) RecordReservationReleased() {
	m.ReservationsReleased.Inc()
}

// RecordQCVerdict records a QC session verdict
func (m *Metrics) RecordQCVerdict(result string) {
	m.QCVerdicts.WithLabelValues(result).Inc()
}

// RecordNotificationFailure records a failed notification publish
func (m *Metrics) RecordNotificationFailure() {
	m.NotificationFailures.Inc()
}

// RecordEventPublishFailure records a failed domain event publish
func (m *Metrics) RecordEventPublishFailure() {
	m.EventPublishFailures.Inc()
}
