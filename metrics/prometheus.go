// Package metrics provides Prometheus instrumentation for the sync client.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "supervaani"
	subsystem = "client"
)

// Send outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
	OutcomeTimeout = "timeout"
	OutcomeIgnored = "ignored"
)

// Exporter records client metrics. A nil *Exporter is a valid no-op recorder.
type Exporter struct {
	registry *prometheus.Registry

	gatewayRequests *prometheus.CounterVec
	gatewayLatency  *prometheus.HistogramVec

	sends        *prometheus.CounterVec
	sendsPending prometheus.Gauge

	pageLoads     *prometheus.CounterVec
	conversations prometheus.Gauge
}

// Config configures the exporter.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for latency histograms (in seconds)
	LatencyBuckets []float64
}

// DefaultConfig returns default Prometheus configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	}
}

// New creates an exporter and registers its collectors.
func New(cfg Config) *Exporter {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}
	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &Exporter{registry: registry}

	e.gatewayRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "gateway_requests_total",
			Help:      "Backend requests by operation and outcome",
		},
		[]string{"op", "status"},
	)
	e.gatewayLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "gateway_latency_seconds",
			Help:      "Backend request latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"op"},
	)
	e.sends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sends_total",
			Help:      "Messages submitted through the send pipeline by outcome",
		},
		[]string{"outcome"},
	)
	e.sendsPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sends_pending",
			Help:      "Optimistic messages waiting for a backend reply",
		},
	)
	e.pageLoads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "page_loads_total",
			Help:      "Conversation list page loads by kind and outcome",
		},
		[]string{"kind", "status"},
	)
	e.conversations = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "conversations",
			Help:      "Conversations held in the local store",
		},
	)

	registry.MustRegister(
		e.gatewayRequests,
		e.gatewayLatency,
		e.sends,
		e.sendsPending,
		e.pageLoads,
		e.conversations,
	)
	return e
}

// RecordGatewayRequest records one backend round trip.
func (e *Exporter) RecordGatewayRequest(op string, latency time.Duration, err error) {
	if e == nil {
		return
	}
	e.gatewayRequests.WithLabelValues(op, status(err)).Inc()
	e.gatewayLatency.WithLabelValues(op).Observe(latency.Seconds())
}

// RecordSend records the outcome of a send pipeline run.
func (e *Exporter) RecordSend(outcome string) {
	if e == nil {
		return
	}
	e.sends.WithLabelValues(outcome).Inc()
}

// SendStarted and SendFinished bracket an in-flight send.
func (e *Exporter) SendStarted() {
	if e == nil {
		return
	}
	e.sendsPending.Inc()
}

func (e *Exporter) SendFinished() {
	if e == nil {
		return
	}
	e.sendsPending.Dec()
}

// RecordPageLoad records a first or next page load.
func (e *Exporter) RecordPageLoad(kind string, err error) {
	if e == nil {
		return
	}
	e.pageLoads.WithLabelValues(kind, status(err)).Inc()
}

// SetConversations reports the current store size.
func (e *Exporter) SetConversations(n int) {
	if e == nil {
		return
	}
	e.conversations.Set(float64(n))
}

// Handler returns the HTTP handler for the metrics endpoint.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Registry returns the Prometheus registry.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
