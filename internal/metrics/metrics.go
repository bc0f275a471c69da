// Package metrics exposes Prometheus collectors for the chat relay.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "exchangechat"

// Command kinds recorded by RecordCommand.
const (
	CommandPlain     = "plain"
	CommandCurrent   = "current"
	CommandArchive   = "archive"
	CommandMalformed = "malformed"
)

// Metrics groups every collector. Each instance owns its registry so tests
// and multiple servers never collide on registration.
type Metrics struct {
	registry *prometheus.Registry

	ConnectedClients prometheus.Gauge
	BroadcastsTotal  prometheus.Counter
	SendFailures     prometheus.Counter
	CommandsTotal    *prometheus.CounterVec
	ProviderRequests *prometheus.CounterVec
	ProviderDuration *prometheus.HistogramVec
}

// New creates and registers all collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		ConnectedClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected_clients",
			Help:      "Number of currently registered chat connections",
		}),
		BroadcastsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_total",
			Help:      "Messages fanned out to all connections",
		}),
		SendFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_failures_total",
			Help:      "Per-recipient deliveries that failed during a broadcast",
		}),
		CommandsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Inbound lines by kind",
		}, []string{"kind"}),
		ProviderRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Rate provider requests by endpoint and outcome",
		}, []string{"endpoint", "outcome"}),
		ProviderDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Rate provider request latency, retries included",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"endpoint"}),
	}
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the collectors in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ClientConnected increments the connected clients gauge.
func (m *Metrics) ClientConnected() {
	m.ConnectedClients.Inc()
}

// ClientDisconnected decrements the connected clients gauge.
func (m *Metrics) ClientDisconnected() {
	m.ConnectedClients.Dec()
}

// RecordBroadcast counts one broadcast and its failed deliveries.
func (m *Metrics) RecordBroadcast(failures int) {
	m.BroadcastsTotal.Inc()
	if failures > 0 {
		m.SendFailures.Add(float64(failures))
	}
}

// RecordCommand counts one inbound line of the given kind.
func (m *Metrics) RecordCommand(kind string) {
	m.CommandsTotal.WithLabelValues(kind).Inc()
}

// ObserveProviderRequest records a provider call.
func (m *Metrics) ObserveProviderRequest(endpoint, outcome string, elapsed time.Duration) {
	m.ProviderRequests.WithLabelValues(endpoint, outcome).Inc()
	m.ProviderDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}
