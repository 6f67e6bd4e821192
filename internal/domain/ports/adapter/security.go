package adapter

import (
	"context"
	"time"

	"mentalspace/internal/domain/model"
)

// TokenClaims is what a verified bearer token says about its holder.
type TokenClaims struct {
	Subject   string
	Kind      model.AccountKind
	ExpiresAt time.Time
}

type TokenIssuer interface {
	Mint(subject string, kind model.AccountKind) (token string, expiresAt time.Time, err error)
	Parse(token string) (TokenClaims, error)
}

type PasswordHasher interface {
	Hash(plain string) (string, error)
	Compare(hash, plain string) error
}

// Locker is a short-lived distributed lease.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}
