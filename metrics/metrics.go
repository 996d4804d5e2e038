// Package metrics exposes Prometheus instrumentation for the relay server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the relay's Prometheus collectors on a private registry so
// tests can create independent instances.
type Metrics struct {
	registry *prometheus.Registry

	EventsRelayed *prometheus.CounterVec
	RoomsReaped   prometheus.Counter
}

// CountSource reports the registry's live room and player counts; the
// gauges call it at scrape time.
type CountSource func() (rooms, players int)

// New builds the collector set. counts feeds the active-rooms and
// connected-players gauges at scrape time.
func New(counts CountSource) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		EventsRelayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_events_total",
			Help: "Events relayed to room peers, by event name.",
		}, []string{"event"}),
		RoomsReaped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_rooms_reaped_total",
			Help: "Rooms removed by the idle reaper.",
		}),
	}

	roomsGauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "relay_rooms_active",
		Help: "Rooms currently holding at least one player.",
	}, func() float64 {
		rooms, _ := counts()
		return float64(rooms)
	})
	playersGauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "relay_players_connected",
		Help: "Players currently registered across all rooms.",
	}, func() float64 {
		_, players := counts()
		return float64(players)
	})

	m.registry.MustRegister(m.EventsRelayed, m.RoomsReaped, roomsGauge, playersGauge)
	return m
}

// Handler exposes the collectors in Prometheus text format at /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
