package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"mentalspace/internal/domain/model"
	"mentalspace/internal/domain/ports/repository"
	"mentalspace/internal/infra/metrics"
	red "mentalspace/internal/infra/redis"
)

var _ repository.UserRepository = (*userRepoCacheDecorator)(nil)

// userRepoCacheDecorator caches FindByID, which bearer authentication calls
// on every request. Cached users never carry a password hash; FindByEmail
// (login) always reads through.
type userRepoCacheDecorator struct {
	inner repository.UserRepository
	cache red.RedisClient
	ttl   time.Duration
	log   *zerolog.Logger
}

func NewUserRepoCacheDecorator(inner repository.UserRepository, cache red.RedisClient, logger *zerolog.Logger) repository.UserRepository {
	l := logger.With().Str("component", "user_cache").Logger()
	return &userRepoCacheDecorator{
		inner: inner,
		cache: cache,
		ttl:   5 * time.Minute,
		log:   &l,
	}
}

func userKey(id string) string { return fmt.Sprintf("user:id:%s", id) }

func (d *userRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	_ = d.cache.Del(ctx, userKey(u.ID))
	return d.inner.Save(ctx, tx, u)
}

func (d *userRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	key := userKey(id)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		var user model.User
		if json.Unmarshal([]byte(val), &user) == nil {
			metrics.IncCacheRequest("user", "hit")
			return &user, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		d.log.Warn().Err(err).Msg("cache read failed")
	}

	metrics.IncCacheRequest("user", "miss")
	user, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(user); err == nil {
		if err := d.cache.Set(ctx, key, b, d.ttl); err != nil {
			d.log.Warn().Err(err).Msg("cache write failed")
		}
	}
	return user, nil
}

func (d *userRepoCacheDecorator) FindByEmail(ctx context.Context, tx repository.Tx, email string) (*model.User, error) {
	metrics.IncCacheRequest("user_email", "bypass")
	return d.inner.FindByEmail(ctx, tx, email)
}
