package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(dbPoolStats, dbUniqueViolations) }

var (
	dbPoolStats = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mentalspace_db_pool_stats",
			Help: "Current state of the database connection pool.",
		},
		[]string{"state"}, // 'total', 'idle', 'in_use'
	)

	dbUniqueViolations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mentalspace_db_unique_violations_total",
			Help: "Unique constraint violations surfaced as domain errors.",
		},
		[]string{"constraint"},
	)
)

func SetDBPoolStats(total, idle, inUse int32) {
	dbPoolStats.WithLabelValues("total").Set(float64(total))
	dbPoolStats.WithLabelValues("idle").Set(float64(idle))
	dbPoolStats.WithLabelValues("in_use").Set(float64(inUse))
}

func IncUniqueViolation(constraint string) {
	dbUniqueViolations.WithLabelValues(norm(constraint)).Inc()
}
