package model

import (
	"strings"
	"time"

	"mentalspace/internal/domain"

	"github.com/google/uuid"
)

type AccountKind string

const (
	AccountUser      AccountKind = "user"
	AccountCounselor AccountKind = "counselor"
)

func (k AccountKind) Valid() bool { return k == AccountUser || k == AccountCounselor }

// Principal is the authenticated caller as seen by the chat core.
type Principal struct {
	ID       string      `json:"id"`
	Kind     AccountKind `json:"type"`
	IsActive bool        `json:"isActive"`
}

func (p Principal) IsCounselor() bool { return p.Kind == AccountCounselor }

// User is an ordinary account. Profile data beyond what login needs lives
// with the user service.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func NewUser(email, passwordHash, firstName, lastName string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || passwordHash == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		FirstName:    firstName,
		LastName:     lastName,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (u *User) Principal() Principal {
	return Principal{ID: u.ID, Kind: AccountUser, IsActive: u.IsActive}
}

func (c *Counselor) Principal() Principal {
	return Principal{ID: c.ID, Kind: AccountCounselor, IsActive: c.IsActive}
}
