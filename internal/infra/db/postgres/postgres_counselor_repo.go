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

var _ repository.CounselorRepository = (*counselorRepo)(nil)

const counselorColumns = `id, email, password_hash, first_name, last_name, license_number, specializations, bio, avatar,
       is_online, status, rating, total_sessions, languages, timezone, is_active, created_at, updated_at`

type counselorRepo struct {
	pool *pgxpool.Pool
}

func NewCounselorRepo(pool *pgxpool.Pool) *counselorRepo {
	return &counselorRepo{pool: pool}
}

func (r *counselorRepo) Save(ctx context.Context, tx repository.Tx, c *model.Counselor) error {
	const q = `
INSERT INTO counselors (
  id, email, password_hash, first_name, last_name, license_number, specializations, bio, avatar,
  is_online, status, rating, total_sessions, languages, timezone, is_active, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
ON CONFLICT (id) DO UPDATE SET
  email=$2, password_hash=$3, first_name=$4, last_name=$5, license_number=$6, specializations=$7, bio=$8, avatar=$9,
  is_online=$10, status=$11, rating=$12, total_sessions=$13, languages=$14, timezone=$15, is_active=$16, updated_at=$18;`
	_, err := execSQL(ctx, r.pool, tx, q,
		c.ID, strings.ToLower(c.Email), c.PasswordHash, c.FirstName, c.LastName, c.LicenseNumber, nonNil(c.Specializations), c.Bio, c.Avatar,
		c.IsOnline, string(c.Status), c.Rating, c.TotalSessions, nonNil(c.Languages), c.Timezone, c.IsActive, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return &domain.ValidationError{Details: []string{"email already registered"}}
		}
		return fmt.Errorf("save counselor: %w", err)
	}
	return nil
}

func (r *counselorRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Counselor, error) {
	q := `SELECT ` + counselorColumns + ` FROM counselors WHERE id=$1`
	if inTx(tx) {
		q += ` FOR UPDATE`
	}
	return r.one(ctx, tx, q, id)
}

func (r *counselorRepo) FindByEmail(ctx context.Context, tx repository.Tx, email string) (*model.Counselor, error) {
	q := `SELECT ` + counselorColumns + ` FROM counselors WHERE email=$1`
	return r.one(ctx, tx, q, strings.ToLower(strings.TrimSpace(email)))
}

func (r *counselorRepo) ListAvailable(ctx context.Context, tx repository.Tx) ([]*model.Counselor, error) {
	q := `SELECT ` + counselorColumns + ` FROM counselors
 WHERE is_online AND status='available' AND is_active
 ORDER BY rating DESC, total_sessions ASC, id`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, fmt.Errorf("query counselors: %w", err)
	}
	defer rows.Close()
	out := make([]*model.Counselor, 0)
	for rows.Next() {
		c, err := scanCounselor(rows)
		if err != nil {
			return nil, fmt.Errorf("scan counselor: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ClaimLeastBusy picks and reserves in one statement. SKIP LOCKED lets
// concurrent claims pass over a row another transaction is taking.
func (r *counselorRepo) ClaimLeastBusy(ctx context.Context, tx repository.Tx) (*model.Counselor, error) {
	q := `
UPDATE counselors SET status='busy', total_sessions=total_sessions+1, updated_at=NOW()
 WHERE id = (
   SELECT id FROM counselors
    WHERE is_online AND status='available' AND is_active
    ORDER BY total_sessions ASC, created_at ASC, id ASC
    LIMIT 1
    FOR UPDATE SKIP LOCKED
 )
RETURNING ` + counselorColumns
	c, err := scanCounselor(pickRow(ctx, r.pool, tx, q))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim counselor: %w", err)
	}
	return c, nil
}

func (r *counselorRepo) Release(ctx context.Context, tx repository.Tx, id string) error {
	const q = `UPDATE counselors SET status='available', updated_at=NOW() WHERE id=$1;`
	return r.update(ctx, tx, q, id)
}

func (r *counselorRepo) SetRating(ctx context.Context, tx repository.Tx, id string, rating float64) error {
	const q = `UPDATE counselors SET rating=$2, updated_at=NOW() WHERE id=$1;`
	return r.update(ctx, tx, q, id, rating)
}

func (r *counselorRepo) SetPresence(ctx context.Context, tx repository.Tx, id string, online bool, status model.CounselorStatus) error {
	const q = `UPDATE counselors SET is_online=$2, status=$3, updated_at=NOW() WHERE id=$1;`
	return r.update(ctx, tx, q, id, online, string(status))
}

func (r *counselorRepo) update(ctx context.Context, tx repository.Tx, q string, args ...any) error {
	tag, err := execSQL(ctx, r.pool, tx, q, args...)
	if err != nil {
		return fmt.Errorf("update counselor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCounselorNotFound
	}
	return nil
}

func (r *counselorRepo) one(ctx context.Context, tx repository.Tx, q string, args ...any) (*model.Counselor, error) {
	c, err := scanCounselor(pickRow(ctx, r.pool, tx, q, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrCounselorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find counselor: %w", err)
	}
	return c, nil
}

func scanCounselor(row pgx.Row) (*model.Counselor, error) {
	var (
		c      model.Counselor
		status string
	)
	err := row.Scan(&c.ID, &c.Email, &c.PasswordHash, &c.FirstName, &c.LastName, &c.LicenseNumber, &c.Specializations, &c.Bio, &c.Avatar,
		&c.IsOnline, &status, &c.Rating, &c.TotalSessions, &c.Languages, &c.Timezone, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Status = model.CounselorStatus(status)
	return &c, nil
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
