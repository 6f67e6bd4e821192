package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		sessionsCreatedTotal,
		sessionTransitionsTotal,
		messagesSentTotal,
		sessionRatings,
		matchLatency,
	)
}

var (
	sessionsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mentalspace_chat_sessions_created_total",
			Help: "Chat sessions created, labeled by whether a counselor was matched.",
		},
		[]string{"matched"},
	)

	sessionTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mentalspace_chat_session_transitions_total",
			Help: "Session status transitions by target status.",
		},
		[]string{"status"},
	)

	messagesSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mentalspace_chat_messages_total",
			Help: "Chat messages persisted, by sender kind.",
		},
		[]string{"sender"},
	)

	sessionRatings = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mentalspace_chat_session_rating",
			Help:    "Distribution of session ratings.",
			Buckets: []float64{1, 2, 3, 4, 5},
		},
	)

	matchLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mentalspace_matcher_claim_seconds",
			Help:    "Time spent claiming a counselor inside the create transaction.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func IncSessionCreated(matched bool) {
	label := "false"
	if matched {
		label = "true"
	}
	sessionsCreatedTotal.WithLabelValues(label).Inc()
}

func IncSessionTransition(status string) {
	sessionTransitionsTotal.WithLabelValues(norm(status)).Inc()
}

func IncMessage(sender string) {
	messagesSentTotal.WithLabelValues(norm(sender)).Inc()
}

func ObserveRating(r int) { sessionRatings.Observe(float64(r)) }

func ObserveMatch(seconds float64) { matchLatency.Observe(seconds) }
