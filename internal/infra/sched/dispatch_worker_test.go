//go:build !integration

package sched_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"mentalspace/internal/infra/metrics"
	red "mentalspace/internal/infra/redis"
	"mentalspace/internal/infra/sched"
)

type MockDispatchUC struct {
	DispatchWaitingFunc func(ctx context.Context, limit int) (int, error)
	calls               int
	lastLimit           int
}

func (m *MockDispatchUC) DispatchWaiting(ctx context.Context, limit int) (int, error) {
	m.calls++
	m.lastLimit = limit
	if m.DispatchWaitingFunc != nil {
		return m.DispatchWaitingFunc(ctx, limit)
	}
	return 0, nil
}

// memLocker is a single-process lease table.
type memLocker struct {
	mu       sync.Mutex
	held     map[string]string
	err      error
	unlocked []string
}

func (l *memLocker) TryLock(_ context.Context, key string, _ time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return "", l.err
	}
	if l.held == nil {
		l.held = map[string]string{}
	}
	if _, ok := l.held[key]; ok {
		return "", red.ErrLockHeld
	}
	l.held[key] = "t-" + key
	return l.held[key], nil
}

func (l *memLocker) Unlock(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
		l.unlocked = append(l.unlocked, key)
	}
	return nil
}

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func TestDispatchWorker_Tick(t *testing.T) {
	t.Run("dispatches under the lease and releases it", func(t *testing.T) {
		uc := &MockDispatchUC{DispatchWaitingFunc: func(context.Context, int) (int, error) { return 3, nil }}
		lk := &memLocker{}
		w := sched.NewDispatchWorker(time.Second, 7, time.Second, uc, lk, nopLogger())

		if n := w.Tick(context.Background()); n != 3 {
			t.Fatalf("want 3 assigned, got %d", n)
		}
		if uc.lastLimit != 7 {
			t.Errorf("batch size not forwarded: %d", uc.lastLimit)
		}
		if len(lk.unlocked) != 1 || lk.unlocked[0] != sched.DispatchLockKey {
			t.Errorf("lease not released: %v", lk.unlocked)
		}
	})

	t.Run("skips when another instance holds the lease", func(t *testing.T) {
		uc := &MockDispatchUC{}
		lk := &memLocker{held: map[string]string{sched.DispatchLockKey: "other"}}
		w := sched.NewDispatchWorker(time.Second, 5, time.Second, uc, lk, nopLogger())

		w.Tick(context.Background())
		if uc.calls != 0 {
			t.Fatal("dispatch must not run without the lease")
		}
		if lk.held[sched.DispatchLockKey] != "other" {
			t.Fatal("foreign lease must not be released")
		}
	})

	t.Run("skips when the lock store is down", func(t *testing.T) {
		uc := &MockDispatchUC{}
		w := sched.NewDispatchWorker(time.Second, 5, time.Second, uc, &memLocker{err: errors.New("dial tcp")}, nopLogger())
		w.Tick(context.Background())
		if uc.calls != 0 {
			t.Fatal("dispatch must not run without the lease")
		}
	})

	t.Run("releases the lease after a failed pass", func(t *testing.T) {
		uc := &MockDispatchUC{DispatchWaitingFunc: func(context.Context, int) (int, error) { return 0, errors.New("tx aborted") }}
		lk := &memLocker{}
		w := sched.NewDispatchWorker(time.Second, 5, time.Second, uc, lk, nopLogger())

		w.Tick(context.Background())
		if _, held := lk.held[sched.DispatchLockKey]; held {
			t.Fatal("lease still held after failure")
		}
	})

	t.Run("nil locker runs unguarded", func(t *testing.T) {
		uc := &MockDispatchUC{DispatchWaitingFunc: func(context.Context, int) (int, error) { return 1, nil }}
		w := sched.NewDispatchWorker(time.Second, 5, time.Second, uc, nil, nopLogger())
		if n := w.Tick(context.Background()); n != 1 {
			t.Fatalf("want 1, got %d", n)
		}
	})
}

func TestDispatchWorker_RunStopsOnCancel(t *testing.T) {
	var mu sync.Mutex
	ticks := 0
	uc := &MockDispatchUC{DispatchWaitingFunc: func(context.Context, int) (int, error) {
		mu.Lock()
		ticks++
		mu.Unlock()
		return 0, nil
	}}
	w := sched.NewDispatchWorker(10*time.Millisecond, 5, time.Second, uc, &memLocker{}, nopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := ticks
		mu.Unlock()
		if n >= 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("worker did not tick")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("want context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func assignedTotal(t *testing.T) float64 {
	t.Helper()
	metrics.MustRegister()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == "mentalspace_dispatch_assigned_total" && len(mf.GetMetric()) == 1 {
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	return 0
}

func TestDispatchWorker_CountsAssignedOnce(t *testing.T) {
	uc := &MockDispatchUC{DispatchWaitingFunc: func(context.Context, int) (int, error) { return 2, nil }}
	w := sched.NewDispatchWorker(time.Second, 5, time.Second, uc, &memLocker{}, nopLogger())

	before := assignedTotal(t)
	w.Tick(context.Background())
	if got := assignedTotal(t) - before; got != 2 {
		t.Fatalf("assigned counter moved by %v, want 2", got)
	}
}
