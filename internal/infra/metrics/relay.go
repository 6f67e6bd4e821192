package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(wsConnections, relayEventsTotal) }

var (
	wsConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mentalspace_ws_connections",
			Help: "Open websocket connections.",
		},
	)

	relayEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mentalspace_relay_events_total",
			Help: "Realtime events by name and delivery result.",
		},
		[]string{"event", "result"}, // result: 'sent', 'dropped'
	)
)

func IncWSConnections() { wsConnections.Inc() }
func DecWSConnections() { wsConnections.Dec() }

func IncRelayEvent(event, result string) {
	relayEventsTotal.WithLabelValues(norm(event), norm(result)).Inc()
}
