package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns the bridge collectors and the registry they live in.
type Metrics struct {
	registry *prometheus.Registry

	Invocations   *prometheus.CounterVec
	EventsSent    *prometheus.CounterVec
	DroppedFrames prometheus.Counter
	Connections   prometheus.Counter
}

// New registers the collectors. clients and groups are sampled on scrape.
func New(clients, groups func() int) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_invocations_total",
			Help: "Client invocations by method and outcome.",
		}, []string{"method", "outcome"}),
		EventsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_events_sent_total",
			Help: "Frames queued to connections by event name.",
		}, []string{"event"}),
		DroppedFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bridge_dropped_frames_total",
			Help: "Frames dropped because a connection's send queue was full.",
		}),
		Connections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bridge_connections_total",
			Help: "Websocket connections accepted.",
		}),
	}
	m.registry.MustRegister(
		m.Invocations,
		m.EventsSent,
		m.DroppedFrames,
		m.Connections,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "bridge_connected_clients",
			Help: "Clients currently in the connection registry.",
		}, func() float64 { return float64(clients()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "bridge_active_groups",
			Help: "Groups that currently have members.",
		}, func() float64 { return float64(groups()) }),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Gatherer() prometheus.Gatherer { return m.registry }
