// Package telemetry provides Prometheus metrics and OpenTelemetry tracing
// bootstrap for the gateway.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the gateway. A nil *Metrics is
// safe to use; every method is a no-op on it.
type Metrics struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	admissionDenials *prometheus.CounterVec
	guardBlocks      *prometheus.CounterVec
	providerCalls    *prometheus.CounterVec
	providerLatency  *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewMetrics creates a metrics instance with its own registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synapsys_http_requests_total",
				Help: "Total HTTP requests by method and status code",
			},
			[]string{"method", "code"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "synapsys_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		admissionDenials: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synapsys_admission_denials_total",
				Help: "Admission gate denials by reason code",
			},
			[]string{"reason"},
		),
		guardBlocks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synapsys_guard_blocks_total",
				Help: "Pre-flight guard violations by reason code and guard id",
			},
			[]string{"reason", "guard"},
		),
		providerCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synapsys_provider_calls_total",
				Help: "Provider dispatches by provider id and outcome",
			},
			[]string{"provider", "outcome"},
		),
		providerLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "synapsys_provider_call_duration_seconds",
				Help:    "Provider call latency in seconds",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 20, 30},
			},
			[]string{"provider"},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.admissionDenials,
		m.guardBlocks,
		m.providerCalls,
		m.providerLatency,
	)
	return m
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest counts a completed HTTP request.
func (m *Metrics) RecordRequest(method string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(method, httpStatusLabel(code)).Inc()
	m.requestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordAdmissionDenial counts a gate denial.
func (m *Metrics) RecordAdmissionDenial(reason string) {
	if m == nil {
		return
	}
	m.admissionDenials.WithLabelValues(reason).Inc()
}

// RecordGuardBlock counts a pre-flight guard violation.
func (m *Metrics) RecordGuardBlock(reason, guardID string) {
	if m == nil {
		return
	}
	m.guardBlocks.WithLabelValues(reason, guardID).Inc()
}

// ProviderCall implements broker.Observer.
func (m *Metrics) ProviderCall(providerID, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.providerCalls.WithLabelValues(providerID, outcome).Inc()
	m.providerLatency.WithLabelValues(providerID).Observe(duration.Seconds())
}

func httpStatusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
