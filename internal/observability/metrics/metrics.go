// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ai_speech_upload"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Session metrics
	SessionsOpened prometheus.Counter
	SessionsClosed prometheus.Counter
	SessionsFailed *prometheus.CounterVec

	// Ledger metrics
	UploadGrants       *prometheus.CounterVec
	ChunkConfirmations *prometheus.CounterVec

	// Assembly metrics
	AssembliesInFlight    prometheus.Gauge
	AssemblyDuration      prometheus.Histogram
	AssemblyBytes         prometheus.Histogram
	AssemblyChunks        prometheus.Histogram
	AssemblyFailures      *prometheus.CounterVec
	AssemblyLimitExceeded *prometheus.CounterVec

	// STT metrics
	STTLatency  *prometheus.HistogramVec
	STTErrors   *prometheus.CounterVec
	STTRequests *prometheus.CounterVec

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec

	// Transport metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
	GRPCRequests *prometheus.CounterVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		// Session metrics
		SessionsOpened: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_opened_total",
			Help:      "Total number of upload sessions opened",
		}),
		SessionsClosed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_closed_total",
			Help:      "Total number of upload sessions closed after assembly",
		}),
		SessionsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_failed_total",
			Help:      "Total number of upload sessions marked failed",
		}, []string{"reason"}),

		// Ledger metrics
		UploadGrants: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_grants_total",
			Help:      "Total number of presigned upload slot requests",
		}, []string{"result"}),
		ChunkConfirmations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunk_confirmations_total",
			Help:      "Total number of chunk upload confirmations",
		}, []string{"result"}),

		// Assembly metrics
		AssembliesInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "assemblies_in_flight",
			Help:      "Number of assemblies currently running in this process",
		}),
		AssemblyDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "assembly_duration_seconds",
			Help:      "Duration of session assembly in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		AssemblyBytes: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "assembly_artifact_bytes",
			Help:      "Size of assembled artifacts in bytes",
			Buckets:   prometheus.ExponentialBuckets(64*1024, 4, 8),
		}),
		AssemblyChunks: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "assembly_chunks",
			Help:      "Number of chunks per assembled artifact",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}),
		AssemblyFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assembly_failures_total",
			Help:      "Total number of failed assembly attempts",
		}, []string{"reason"}),
		AssemblyLimitExceeded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assembly_limit_exceeded_total",
			Help:      "Total number of times assembly limits were exceeded",
		}, []string{"limit_type"}),

		// STT metrics
		STTLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stt_latency_seconds",
			Help:      "Speech-to-text request latency in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"provider"}),
		STTErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stt_errors_total",
			Help:      "Total number of STT errors",
		}, []string{"provider", "error_type"}),
		STTRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stt_requests_total",
			Help:      "Total number of STT requests",
		}, []string{"provider"}),

		// Kafka publish metrics
		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),

		// Transport metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		GRPCRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_requests_total",
			Help:      "Total number of gRPC unary calls",
		}, []string{"method", "code"}),
	}
}

// RecordSessionOpened records a new upload session.
func (m *Metrics) RecordSessionOpened() {
	m.SessionsOpened.Inc()
}

// RecordSessionClosed records a session closed after assembly.
func (m *Metrics) RecordSessionClosed() {
	m.SessionsClosed.Inc()
}

// RecordSessionFailed records a session marked failed.
func (m *Metrics) RecordSessionFailed(reason string) {
	m.SessionsFailed.WithLabelValues(reason).Inc()
}

// RecordUploadGrant records the result of a presigned URL request.
func (m *Metrics) RecordUploadGrant(result string) {
	m.UploadGrants.WithLabelValues(result).Inc()
}

// RecordChunkConfirmation records the result of a chunk confirmation.
// result is one of new, duplicate, rejected.
func (m *Metrics) RecordChunkConfirmation(result string) {
	m.ChunkConfirmations.WithLabelValues(result).Inc()
}

// RecordAssemblyStart records an assembly starting.
func (m *Metrics) RecordAssemblyStart() {
	m.AssembliesInFlight.Inc()
}

// RecordAssemblyEnd records an assembly ending. chunks and bytes are only
// observed on success.
func (m *Metrics) RecordAssemblyEnd(success bool, durationSeconds float64, chunks int, bytes int) {
	m.AssembliesInFlight.Dec()
	m.AssemblyDuration.Observe(durationSeconds)
	if success {
		m.AssemblyChunks.Observe(float64(chunks))
		m.AssemblyBytes.Observe(float64(bytes))
	}
}

// RecordAssemblyFailure records a failed assembly.
func (m *Metrics) RecordAssemblyFailure(reason string) {
	m.AssemblyFailures.WithLabelValues(reason).Inc()
}

// RecordLimitExceeded records when an assembly limit is exceeded.
func (m *Metrics) RecordLimitExceeded(limitType string) {
	m.AssemblyLimitExceeded.WithLabelValues(limitType).Inc()
}

// RecordSTTRequest records a completed STT request.
func (m *Metrics) RecordSTTRequest(provider string, latencySeconds float64) {
	m.STTRequests.WithLabelValues(provider).Inc()
	m.STTLatency.WithLabelValues(provider).Observe(latencySeconds)
}

// RecordSTTError records an STT error.
func (m *Metrics) RecordSTTError(provider, errorType string) {
	m.STTErrors.WithLabelValues(provider, errorType).Inc()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordHTTPRequest records a served HTTP request.
func (m *Metrics) RecordHTTPRequest(method, route string, status int, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, route, statusLabel(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(durationSeconds)
}

// RecordGRPCRequest records a served gRPC unary call.
func (m *Metrics) RecordGRPCRequest(method, code string) {
	m.GRPCRequests.WithLabelValues(method, code).Inc()
}

func statusLabel(status int) string {
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
