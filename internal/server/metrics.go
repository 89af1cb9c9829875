package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics aggregates the service's Prometheus instruments on a private
// registry so multiple servers (tests included) never collide.
type Metrics struct {
	registry *prometheus.Registry

	ConnectionsActive prometheus.Gauge
	EventsBroadcast   *prometheus.CounterVec
	MessagesPersisted prometheus.Counter
}

// NewMetrics registers all instruments on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "parley_ws_connections_active",
			Help: "Currently connected WebSocket clients.",
		}),
		EventsBroadcast: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parley_events_broadcast_total",
			Help: "Events delivered to room subscribers, by event name.",
		}, []string{"event"}),
		MessagesPersisted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "parley_messages_persisted_total",
			Help: "Group messages written to the store.",
		}),
	}
	m.registry.MustRegister(m.ConnectionsActive, m.EventsBroadcast, m.MessagesPersisted)
	return m
}

// Handler serves the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ClientConnected implements hub.Observer.
func (m *Metrics) ClientConnected() { m.ConnectionsActive.Inc() }

// ClientDisconnected implements hub.Observer.
func (m *Metrics) ClientDisconnected() { m.ConnectionsActive.Dec() }

// EventBroadcast implements hub.Observer.
func (m *Metrics) EventBroadcast(event string, receivers int) {
	m.EventsBroadcast.WithLabelValues(event).Add(float64(receivers))
}
