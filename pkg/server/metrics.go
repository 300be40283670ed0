package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the board core.
type Metrics struct {
	activeSessions prometheus.Gauge
	activeUsers    prometheus.Gauge
	pins           prometheus.Gauge

	messagesReceived *prometheus.CounterVec
	broadcastsSent   *prometheus.CounterVec
	coalescedTotal   prometheus.Counter
	sweepEvictions   prometheus.Counter
	sendErrors       prometheus.Counter
}

// newMetrics registers the board collectors with the given registerer.
func newMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "pinboard",
			Name:      "active_sessions",
			Help:      "Number of open WebSocket sessions",
		}),
		activeUsers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "pinboard",
			Name:      "active_users",
			Help:      "Number of registered users on the board",
		}),
		pins: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "pinboard",
			Name:      "pins",
			Help:      "Number of pins on the board",
		}),
		messagesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pinboard",
			Name:      "messages_received_total",
			Help:      "Client messages received, by event",
		}, []string{"event"}),
		broadcastsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pinboard",
			Name:      "broadcasts_total",
			Help:      "Broadcasts fanned out to all sessions, by event",
		}, []string{"event"}),
		coalescedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "pinboard",
			Name:      "broadcasts_coalesced_total",
			Help:      "Broadcasts suppressed by the coalescing window",
		}),
		sweepEvictions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "pinboard",
			Name:      "presence_evictions_total",
			Help:      "Users evicted by the presence sweep",
		}),
		sendErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "pinboard",
			Name:      "send_errors_total",
			Help:      "Failed WebSocket writes",
		}),
	}
}
