package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(dispatchRunsTotal, dispatchAssignedTotal) }

var (
	dispatchRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mentalspace_dispatch_runs_total",
			Help: "Waiting-queue dispatcher ticks, labeled by outcome.",
		},
		[]string{"outcome"}, // 'ok', 'skipped', 'failed'
	)

	dispatchAssignedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mentalspace_dispatch_assigned_total",
			Help: "Waiting sessions promoted to active by the dispatcher.",
		},
	)
)

func IncDispatchRun(outcome string) {
	dispatchRunsTotal.WithLabelValues(norm(outcome)).Inc()
}

func AddDispatchAssigned(n int) {
	dispatchAssignedTotal.Add(float64(n))
}
