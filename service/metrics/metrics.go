package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Websocket session metrics
	wsActiveSessions *prometheus.GaugeVec
	wsSessionsTotal  *prometheus.CounterVec
	wsMessagesTotal  *prometheus.CounterVec

	// Upload decoding metrics
	decodeDuration      *prometheus.HistogramVec
	decodedTransactions *prometheus.HistogramVec
	uploadBytes         *prometheus.HistogramVec
	submissionsTotal    *prometheus.CounterVec

	// Database Metrics
	dbQueryDuration   *prometheus.HistogramVec
	dbOperationsTotal *prometheus.CounterVec

	// HTTP Metrics
	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec

	// NATS Metrics
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		// Websocket session metrics
		wsActiveSessions: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ws_active_sessions",
				Help: "Number of open review websocket sessions",
			},
			[]string{"endpoint"},
		),
		wsSessionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ws_sessions_total",
				Help: "Total number of review websocket sessions by how they ended",
			},
			[]string{"endpoint", "close_reason"},
		),
		wsMessagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ws_messages_total",
				Help: "Total number of websocket messages by direction and kind",
			},
			[]string{"direction", "kind"},
		),

		// Upload decoding metrics
		decodeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "upload_decode_duration_seconds",
				Help:    "Duration of decoding an uploaded file into a batch",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
			},
			[]string{"status"},
		),
		decodedTransactions: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "upload_decoded_transactions",
				Help:    "Number of transactions decoded per upload",
				Buckets: []float64{1, 10, 50, 100, 250, 500, 1000},
			},
			[]string{},
		),
		uploadBytes: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "upload_bytes",
				Help:    "Size of uploaded file contents in bytes",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
			},
			[]string{},
		),
		submissionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "submissions_total",
				Help: "Total number of submitted transactions by outcome",
			},
			[]string{"outcome"},
		),

		// Database Metrics
		dbQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "db_query_duration_seconds",
				Help:    "Duration of database queries in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"operation", "table"},
		),
		dbOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "db_operations_total",
				Help: "Total number of database operations",
			},
			[]string{"operation", "status"},
		),

		// HTTP Metrics
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),

		// NATS Metrics
		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"subject", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"subject"},
		),
	}
}

// Websocket metric helpers

// RecordSessionChange records a change in open session count.
func (m *Metrics) RecordSessionChange(endpoint string, delta float64) {
	m.wsActiveSessions.WithLabelValues(endpoint).Add(delta)
}

// RecordSessionEnded records a finished session and why it ended.
func (m *Metrics) RecordSessionEnded(endpoint, closeReason string) {
	m.wsSessionsTotal.WithLabelValues(endpoint, closeReason).Inc()
}

// RecordMessage records a websocket message. direction is "in" or "out".
func (m *Metrics) RecordMessage(direction, kind string) {
	m.wsMessagesTotal.WithLabelValues(direction, kind).Inc()
}

// Upload metric helpers

// RecordDecode records one upload decode with its size and result count.
func (m *Metrics) RecordDecode(bytes int, transactions int, duration float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.decodeDuration.WithLabelValues(status).Observe(duration)
	m.uploadBytes.WithLabelValues().Observe(float64(bytes))
	if err == nil {
		m.decodedTransactions.WithLabelValues().Observe(float64(transactions))
	}
}

// RecordSubmission records the outcome of a submitted transaction
// ("stored", "duplicate", "invalid", "error").
func (m *Metrics) RecordSubmission(outcome string) {
	m.submissionsTotal.WithLabelValues(outcome).Inc()
}

// Database metric helpers

// RecordDBQuery records a database query with duration.
func (m *Metrics) RecordDBQuery(operation, table string, duration float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.dbQueryDuration.WithLabelValues(operation, table).Observe(duration)
	m.dbOperationsTotal.WithLabelValues(operation, status).Inc()
}

// HTTP metric helpers

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(subject, status string, duration float64) {
	m.natsMessagesPublished.WithLabelValues(subject, status).Inc()
	m.natsPublishDuration.WithLabelValues(subject).Observe(duration)
}

// Helper functions

func statusCodeToString(code int) string {
	// Group status codes by class
	switch {
	case code >= 100 && code < 200:
		return "1xx"
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
