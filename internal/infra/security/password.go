package security

import (
	"errors"

	"golang.org/x/crypto/bcrypt"

	"mentalspace/internal/domain"
	"mentalspace/internal/domain/ports/adapter"
)

var _ adapter.PasswordHasher = BcryptHasher{}

// BcryptHasher hashes account passwords. Zero Cost means bcrypt.DefaultCost.
type BcryptHasher struct {
	Cost int
}

func (h BcryptHasher) Hash(plain string) (string, error) {
	if plain == "" {
		return "", domain.ErrInvalidArgument
	}
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (h BcryptHasher) Compare(hash, plain string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return domain.ErrInvalidLogin
	}
	return err
}
