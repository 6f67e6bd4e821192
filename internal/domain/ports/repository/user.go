package repository

import (
	"context"

	"mentalspace/internal/domain/model"
)

// -----------------------------
// Users
// -----------------------------

type UserRepository interface {
	Save(ctx context.Context, tx Tx, u *model.User) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.User, error)
	FindByEmail(ctx context.Context, tx Tx, email string) (*model.User, error)
}

// -----------------------------
// Counselors
// -----------------------------

type CounselorRepository interface {
	Save(ctx context.Context, tx Tx, c *model.Counselor) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Counselor, error)
	FindByEmail(ctx context.Context, tx Tx, email string) (*model.Counselor, error)
	ListAvailable(ctx context.Context, tx Tx) ([]*model.Counselor, error)
	// ClaimLeastBusy atomically picks the eligible counselor with the fewest
	// sessions (ties by creation time, then id), marks it busy and bumps its
	// session count. Returns (nil, nil) when nobody is eligible.
	ClaimLeastBusy(ctx context.Context, tx Tx) (*model.Counselor, error)
	// Release sets the counselor back to available.
	Release(ctx context.Context, tx Tx, id string) error
	SetRating(ctx context.Context, tx Tx, id string, rating float64) error
	SetPresence(ctx context.Context, tx Tx, id string, online bool, status model.CounselorStatus) error
}
