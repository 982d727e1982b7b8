package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "audio_recorder"

// Connection close reasons used as label values
const (
	ReasonCloseToken = "close_token"
	ReasonUnexpected = "unexpected_message"
	ReasonPeerClosed = "peer_closed"
	ReasonError      = "transport_error"
	ReasonIdle       = "idle_limit"
	ReasonShutdown   = "shutdown"
)

// Metrics contains all Prometheus metrics for the audio recorder service.
// Every Record method is safe to call on a nil *Metrics.
type Metrics struct {
	// Connection metrics
	ActiveConnections  prometheus.Gauge
	ConnectionsOpened  prometheus.Counter
	ConnectionsClosed  *prometheus.CounterVec
	ConnectionDuration prometheus.Histogram

	// Inbound stream metrics
	ChunksReceived prometheus.Counter
	BytesReceived  prometheus.Counter
	IdleTimeouts   prometheus.Counter

	// Finalization metrics
	Finalizations    prometheus.Counter
	FinalizeFailures prometheus.Counter
	EncodeFailures   prometheus.Counter
	ArtifactSize     prometheus.Histogram
	FinalizeDuration prometheus.Histogram

	// Transcription metrics
	TranscriptionRequests prometheus.Counter
	TranscriptionFailures prometheus.Counter
	TranscriptionDuration prometheus.Histogram

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// NewMetrics creates all collectors and registers them with reg. A nil reg
// uses the process-wide default registry.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	var registerer prometheus.Registerer = prometheus.DefaultRegisterer
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if reg != nil {
		registerer = reg
		gatherer = reg
	}
	factory := promauto.With(registerer)

	return &Metrics{
		ActiveConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_connections",
			Help:      "Current number of open streaming connections",
		}),
		ConnectionsOpened: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_opened_total",
			Help:      "Total number of accepted streaming connections",
		}),
		ConnectionsClosed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_closed_total",
			Help:      "Total number of closed streaming connections by reason",
		}, []string{"reason"}),
		ConnectionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "connection_duration_seconds",
			Help:      "Lifetime of streaming connections in seconds",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~1 hour
		}),

		ChunksReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_received_total",
			Help:      "Total number of binary audio chunks received",
		}),
		BytesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_received_total",
			Help:      "Total number of audio bytes received",
		}),
		IdleTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "idle_timeouts_total",
			Help:      "Total number of receive waits that expired without traffic",
		}),

		Finalizations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "finalizations_total",
			Help:      "Total number of finalize events that drained data",
		}),
		FinalizeFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "finalize_failures_total",
			Help:      "Total number of finalize events whose raw artifact could not be written",
		}),
		EncodeFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "encode_failures_total",
			Help:      "Total number of finalize events whose WAV artifact could not be produced",
		}),
		ArtifactSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "artifact_size_bytes",
			Help:      "Size of finalized raw artifacts in bytes",
			Buckets:   prometheus.ExponentialBuckets(1024, 2, 14), // 1KB to ~16MB
		}),
		FinalizeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "finalize_duration_seconds",
			Help:      "Time spent writing artifacts for one finalize event",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		}),

		TranscriptionRequests: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcription_requests_total",
			Help:      "Total number of transcription requests sent",
		}),
		TranscriptionFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcription_failures_total",
			Help:      "Total number of failed transcription requests",
		}),
		TranscriptionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transcription_duration_seconds",
			Help:      "Duration of transcription requests",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~1.5 minutes
		}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_errors_total",
			Help:      "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),

		gatherer: gatherer,
	}
}

// Handler exposes the registered collectors in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// RecordConnectionOpened counts an accepted connection
func (m *Metrics) RecordConnectionOpened() {
	if m == nil {
		return
	}
	m.ConnectionsOpened.Inc()
	m.ActiveConnections.Inc()
}

// RecordConnectionClosed counts a closed connection and records its lifetime
func (m *Metrics) RecordConnectionClosed(reason string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.ActiveConnections.Dec()
	m.ConnectionsClosed.WithLabelValues(reason).Inc()
	m.ConnectionDuration.Observe(durationSeconds)
}

// RecordChunk counts one received binary chunk
func (m *Metrics) RecordChunk(sizeBytes int) {
	if m == nil {
		return
	}
	m.ChunksReceived.Inc()
	m.BytesReceived.Add(float64(sizeBytes))
}

// RecordIdleTimeout counts one expired receive wait
func (m *Metrics) RecordIdleTimeout() {
	if m == nil {
		return
	}
	m.IdleTimeouts.Inc()
}

// RecordFinalize records the outcome of a finalize event that drained data
func (m *Metrics) RecordFinalize(sizeBytes int, durationSeconds float64, rawOK, wavOK bool) {
	if m == nil {
		return
	}
	m.Finalizations.Inc()
	m.ArtifactSize.Observe(float64(sizeBytes))
	m.FinalizeDuration.Observe(durationSeconds)
	if !rawOK {
		m.FinalizeFailures.Inc()
	}
	if !wavOK {
		m.EncodeFailures.Inc()
	}
}

// RecordTranscription records a single transcription attempt
func (m *Metrics) RecordTranscription(durationSeconds float64, ok bool) {
	if m == nil {
		return
	}
	m.TranscriptionRequests.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
	if !ok {
		m.TranscriptionFailures.Inc()
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	if m == nil {
		return
	}
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
