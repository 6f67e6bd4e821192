package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"mentalspace/internal/domain"
	"mentalspace/internal/domain/model"
	"mentalspace/internal/domain/ports/repository"
)

var _ repository.UserRepository = (*userRepo)(nil)

type userRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *userRepo {
	return &userRepo{pool: pool}
}

func (r *userRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	const q = `
INSERT INTO users (id, email, password_hash, first_name, last_name, is_active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET
  email=$2, password_hash=$3, first_name=$4, last_name=$5, is_active=$6, updated_at=$8;`
	_, err := execSQL(ctx, r.pool, tx, q, u.ID, strings.ToLower(u.Email), u.PasswordHash, u.FirstName, u.LastName, u.IsActive, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return &domain.ValidationError{Details: []string{"email already registered"}}
		}
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

func (r *userRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	const q = `
SELECT id, email, password_hash, first_name, last_name, is_active, created_at, updated_at
  FROM users WHERE id=$1;`
	return r.one(ctx, tx, q, id)
}

func (r *userRepo) FindByEmail(ctx context.Context, tx repository.Tx, email string) (*model.User, error) {
	const q = `
SELECT id, email, password_hash, first_name, last_name, is_active, created_at, updated_at
  FROM users WHERE email=$1;`
	return r.one(ctx, tx, q, strings.ToLower(strings.TrimSpace(email)))
}

func (r *userRepo) one(ctx context.Context, tx repository.Tx, q string, args ...any) (*model.User, error) {
	var u model.User
	err := pickRow(ctx, r.pool, tx, q, args...).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &u, nil
}
