// File: internal/infra/redis/lock.go
package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"mentalspace/internal/domain/ports/adapter"
)

// ErrLockHeld is returned when another holder owns the lease.
var ErrLockHeld = errors.New("lock held by another owner")

var _ adapter.Locker = (*RedisLocker)(nil)

// RedisLocker is a single-attempt lease: SET NX PX to take it, a
// compare-and-delete script to give it back.
type RedisLocker struct {
	cli RedisClient
}

func NewLocker(c RedisClient) *RedisLocker {
	return &RedisLocker{cli: c}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := l.cli.SetNX(ctx, key, token, ttl)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrLockHeld
	}
	return token, nil
}

// Unlock is a no-op when the lease already expired or changed hands.
func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	_, err := l.cli.DelIfEquals(ctx, key, token)
	return err
}
