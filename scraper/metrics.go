package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scraper.
type Metrics struct {
	Registry                *prometheus.Registry
	RequestsTotal           *prometheus.CounterVec
	RequestDuration         prometheus.Histogram
	RetriesTotal            prometheus.Counter
	ErrorsTotal             *prometheus.CounterVec
	ArtifactsTotal          *prometheus.CounterVec
	BytesStoredTotal        *prometheus.CounterVec
	DiscoveryFailuresTotal  *prometheus.CounterVec
	DiscoveryAnomaliesTotal *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_requests_total",
			Help: "Total HTTP requests issued by the scraper.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_request_duration_seconds",
			Help:    "HTTP request latency for scraper requests.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_retries_total",
			Help: "Total number of retry attempts scheduled.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_errors_total",
			Help: "Total number of scraper errors by type.",
		},
		[]string{"error_type"},
	)
	artifacts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_artifacts_total",
			Help: "Artifacts processed by source and outcome.",
		},
		[]string{"source", "outcome"},
	)
	bytesStored := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_bytes_stored_total",
			Help: "Bytes written to the output root by source.",
		},
		[]string{"source"},
	)
	discoveryFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_discovery_failures_total",
			Help: "Listing pages that could not be fetched, by source.",
		},
		[]string{"source"},
	)
	discoveryAnomalies := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_discovery_anomalies_total",
			Help: "Supported years whose listing yielded no links, by source.",
		},
		[]string{"source"},
	)

	registry.MustRegister(requests, requestDuration, retries, errorsTotal, artifacts, bytesStored, discoveryFailures, discoveryAnomalies)

	return &Metrics{
		Registry:                registry,
		RequestsTotal:           requests,
		RequestDuration:         requestDuration,
		RetriesTotal:            retries,
		ErrorsTotal:             errorsTotal,
		ArtifactsTotal:          artifacts,
		BytesStoredTotal:        bytesStored,
		DiscoveryFailuresTotal:  discoveryFailures,
		DiscoveryAnomaliesTotal: discoveryAnomalies,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// ObserveArtifact counts one processed artifact and the bytes stored for it.
func (m *Metrics) ObserveArtifact(source, outcome string, bytes int64) {
	if m == nil {
		return
	}
	m.ArtifactsTotal.WithLabelValues(source, outcome).Inc()
	if bytes > 0 {
		m.BytesStoredTotal.WithLabelValues(source).Add(float64(bytes))
	}
}

// ObserveDiscovery counts listing failures and anomalies for a source.
func (m *Metrics) ObserveDiscovery(source string, failures, anomalies int) {
	if m == nil {
		return
	}
	if failures > 0 {
		m.DiscoveryFailuresTotal.WithLabelValues(source).Add(float64(failures))
	}
	if anomalies > 0 {
		m.DiscoveryAnomaliesTotal.WithLabelValues(source).Add(float64(anomalies))
	}
}
