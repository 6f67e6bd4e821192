// File: internal/infra/security/token.go
package security

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"mentalspace/internal/domain"
	"mentalspace/internal/domain/model"
	"mentalspace/internal/domain/ports/adapter"
)

var _ adapter.TokenIssuer = (*TokenManager)(nil)

const tokenIssuer = "mentalspace"

// AccountClaims is the bearer token payload.
type AccountClaims struct {
	UserID string `json:"userId"`
	Kind   string `json:"type"`
	jwt.RegisteredClaims
}

// TokenManager mints and verifies HS256 bearer tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenManager(secret string, ttl time.Duration) (*TokenManager, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

func (m *TokenManager) Mint(subject string, kind model.AccountKind) (string, time.Time, error) {
	if subject == "" || !kind.Valid() {
		return "", time.Time{}, domain.ErrInvalidArgument
	}
	now := m.now()
	exp := now.Add(m.ttl)
	claims := AccountClaims{
		UserID: subject,
		Kind:   string(kind),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Parse verifies signature, algorithm and expiry. Every failure maps to
// domain.ErrInvalidToken.
func (m *TokenManager) Parse(tok string) (adapter.TokenClaims, error) {
	claims := &AccountClaims{}
	parsed, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !parsed.Valid {
		return adapter.TokenClaims{}, domain.ErrInvalidToken
	}
	kind := model.AccountKind(claims.Kind)
	if claims.UserID == "" || !kind.Valid() {
		return adapter.TokenClaims{}, domain.ErrInvalidToken
	}
	out := adapter.TokenClaims{Subject: claims.UserID, Kind: kind}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

// BearerToken pulls the token from "Authorization: Bearer …", falling back
// to the token query parameter used by browser websocket clients.
func BearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, tok, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(tok)
		}
		return ""
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}
