package sched

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"mentalspace/internal/infra/db/postgres"
)

// PoolStatsWorker samples the connection pool into gauges.
type PoolStatsWorker struct {
	interval time.Duration
	pool     *pgxpool.Pool
}

func NewPoolStatsWorker(interval time.Duration, pool *pgxpool.Pool) *PoolStatsWorker {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &PoolStatsWorker{interval: interval, pool: pool}
}

func (w *PoolStatsWorker) Run(ctx context.Context) error {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		postgres.ReportPoolStats(w.pool)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}
