package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"mentalspace/internal/domain/ports/adapter"
	"mentalspace/internal/infra/metrics"
	red "mentalspace/internal/infra/redis"
	"mentalspace/internal/usecase"
)

// DispatchLockKey guards the waiting queue so only one instance dispatches per tick.
const DispatchLockKey = "lock:dispatch"

// DispatchWorker periodically hands waiting sessions to counselors that came free.
type DispatchWorker struct {
	interval time.Duration
	batch    int
	leaseTTL time.Duration
	uc       usecase.DispatchUseCase
	locker   adapter.Locker
	log      *zerolog.Logger
}

func NewDispatchWorker(interval time.Duration, batch int, leaseTTL time.Duration, uc usecase.DispatchUseCase, locker adapter.Locker, logger *zerolog.Logger) *DispatchWorker {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if batch <= 0 {
		batch = 20
	}
	if leaseTTL <= 0 {
		leaseTTL = interval
	}
	l := logger.With().Str("component", "DispatchWorker").Logger()
	return &DispatchWorker{interval: interval, batch: batch, leaseTTL: leaseTTL, uc: uc, locker: locker, log: &l}
}

func (w *DispatchWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting dispatch worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping dispatch worker")
			return ctx.Err()
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Tick runs one dispatch pass under the lease and reports how many sessions
// were assigned.
func (w *DispatchWorker) Tick(ctx context.Context) int {
	if w.locker != nil {
		token, err := w.locker.TryLock(ctx, DispatchLockKey, w.leaseTTL)
		if err != nil {
			if !errors.Is(err, red.ErrLockHeld) {
				w.log.Warn().Err(err).Msg("dispatch lease unavailable")
			}
			metrics.IncDispatchRun("skipped")
			return 0
		}
		defer func() {
			// the tick context may already be cancelled on shutdown
			uctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := w.locker.Unlock(uctx, DispatchLockKey, token); err != nil {
				w.log.Warn().Err(err).Msg("release dispatch lease")
			}
		}()
	}

	runCtx, cancel := context.WithTimeout(ctx, w.leaseTTL)
	defer cancel()
	n, err := w.uc.DispatchWaiting(runCtx, w.batch)
	if err != nil {
		metrics.IncDispatchRun("failed")
		w.log.Error().Err(err).Msg("dispatch worker error")
		return n
	}
	metrics.IncDispatchRun("ok")
	if n > 0 {
		metrics.AddDispatchAssigned(n)
		w.log.Info().Int("count", n).Msg("waiting sessions assigned")
	}
	return n
}
