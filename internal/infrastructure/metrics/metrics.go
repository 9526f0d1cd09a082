// Package metrics holds the prometheus collectors shared by the gateway, the sessions and
// the HTTP layer. A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "kindred"

type Metrics struct {
	providerFailures   *prometheus.CounterVec
	gatewayDefaults    *prometheus.CounterVec
	storeWriteFailures *prometheus.CounterVec
	messagesSent       *prometheus.CounterVec
	activeSessions     prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		providerFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "textgen_provider_failures_total",
			Help:      "Text generation calls that failed on a provider.",
		}, []string{"provider", "operation"}),
		gatewayDefaults: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "textgen_defaults_total",
			Help:      "Text generation calls answered with the hardcoded default.",
		}, []string{"operation"}),
		storeWriteFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_write_failures_total",
			Help:      "Profile store writes that failed or were abandoned.",
		}, []string{"reason"}),
		messagesSent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Direct messages sent, by recipient kind.",
		}, []string{"recipient"}),
		activeSessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Signed-in sessions held by this process.",
		}),
	}
}

func (m *Metrics) ProviderFailed(provider, operation string) {
	if m == nil {
		return
	}
	m.providerFailures.WithLabelValues(provider, operation).Inc()
}

func (m *Metrics) DefaultUsed(operation string) {
	if m == nil {
		return
	}
	m.gatewayDefaults.WithLabelValues(operation).Inc()
}

func (m *Metrics) StoreWriteFailed(reason string) {
	if m == nil {
		return
	}
	m.storeWriteFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) MessageSent(recipient string) {
	if m == nil {
		return
	}
	m.messagesSent.WithLabelValues(recipient).Inc()
}

func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.activeSessions.Inc()
}

func (m *Metrics) SessionEnded() {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
}
