package net

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Drop reasons reported by the relay.
const (
	DropMalformed  = "malformed"
	DropUnknown    = "unknown_type"
	DropNoRoom     = "no_room"
	DropBufferFull = "buffer_full"
)

// Metrics holds the relay's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	Connections prometheus.Gauge
	Rooms       prometheus.Gauge
	Joins       prometheus.Counter
	Relayed     *prometheus.CounterVec
	Dropped     *prometheus.CounterVec
}

// NewMetrics registers the relay collectors on a fresh registry.
func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "relay_connections",
			Help:      "Number of open WebSocket connections",
		}),
		Rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "relay_rooms",
			Help:      "Number of rooms with at least one member",
		}),
		Joins: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_joins_total",
			Help:      "Total number of room joins",
		}),
		Relayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_messages_total",
			Help:      "Total number of messages delivered to a peer",
		}, []string{"type"}),
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_dropped_total",
			Help:      "Total number of messages dropped",
		}, []string{"reason"}),
	}
	m.registry.MustRegister(m.Connections, m.Rooms, m.Joins, m.Relayed, m.Dropped)
	return m
}

// Registry returns the registry holding the relay collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the collectors in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) drop(reason string) {
	if m != nil {
		m.Dropped.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) relayed(t EventType) {
	if m != nil {
		m.Relayed.WithLabelValues(string(t)).Inc()
	}
}

func (m *Metrics) joined() {
	if m != nil {
		m.Joins.Inc()
	}
}

func (m *Metrics) gauges(connections, rooms int) {
	if m != nil {
		m.Connections.Set(float64(connections))
		m.Rooms.Set(float64(rooms))
	}
}
