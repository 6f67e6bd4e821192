// File: internal/infra/db/postgres/postgres_chat_session_repo.go
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

var _ repository.ChatSessionRepository = (*chatSessionRepo)(nil)

const openSessionIndex = "chat_sessions_one_open_per_user"

const sessionColumns = `id, user_id, counselor_id, status, priority, topic, description, is_anonymous, tags,
       started_at, ended_at, duration, rating, feedback, last_activity_at, updated_at`

type chatSessionRepo struct {
	pool *pgxpool.Pool
}

func NewChatSessionRepo(pool *pgxpool.Pool) *chatSessionRepo {
	return &chatSessionRepo{pool: pool}
}

func (r *chatSessionRepo) Create(ctx context.Context, tx repository.Tx, s *model.ChatSession) error {
	const q = `
INSERT INTO chat_sessions (
  id, user_id, counselor_id, status, priority, topic, description, is_anonymous, tags,
  started_at, ended_at, duration, rating, feedback, last_activity_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16);`
	_, err := execSQL(ctx, r.pool, tx, q,
		s.ID, s.UserID, s.CounselorID, string(s.Status), string(s.Priority), s.Topic, s.Description, s.IsAnonymous, tagsOrEmpty(s.Tags),
		s.StartedAt, s.EndedAt, s.Duration, s.Rating, s.Feedback, s.LastActivityAt, s.UpdatedAt)
	if err != nil {
		if name, ok := uniqueViolation(err); ok && name == openSessionIndex {
			return domain.ErrActiveSessionExists
		}
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *chatSessionRepo) Update(ctx context.Context, tx repository.Tx, s *model.ChatSession) error {
	const q = `
UPDATE chat_sessions SET
  counselor_id=$2, status=$3, priority=$4, topic=$5, description=$6, is_anonymous=$7, tags=$8,
  ended_at=$9, duration=$10, rating=$11, feedback=$12, last_activity_at=$13, updated_at=$14
WHERE id=$1;`
	tag, err := execSQL(ctx, r.pool, tx, q,
		s.ID, s.CounselorID, string(s.Status), string(s.Priority), s.Topic, s.Description, s.IsAnonymous, tagsOrEmpty(s.Tags),
		s.EndedAt, s.Duration, s.Rating, s.Feedback, s.LastActivityAt, s.UpdatedAt)
	if err != nil {
		if name, ok := uniqueViolation(err); ok && name == openSessionIndex {
			return domain.ErrActiveSessionExists
		}
		return fmt.Errorf("update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (r *chatSessionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.ChatSession, error) {
	q := `SELECT ` + sessionColumns + ` FROM chat_sessions WHERE id=$1`
	if inTx(tx) {
		q += ` FOR UPDATE`
	}
	s, err := scanSession(pickRow(ctx, r.pool, tx, q, id))
	if errors.Is(err, pgx.ErrNoRows) || invalidText(err) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	return s, nil
}

func (r *chatSessionRepo) FindOpenByUser(ctx context.Context, tx repository.Tx, userID string) (*model.ChatSession, error) {
	q := `SELECT ` + sessionColumns + ` FROM chat_sessions
 WHERE user_id=$1 AND status IN ('waiting','active')
 ORDER BY started_at DESC LIMIT 1`
	s, err := scanSession(pickRow(ctx, r.pool, tx, q, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find open session: %w", err)
	}
	return s, nil
}

func (r *chatSessionRepo) List(ctx context.Context, tx repository.Tx, f repository.SessionFilter) ([]*model.ChatSession, int, error) {
	var (
		where []string
		args  []any
	)
	if f.UserID != "" {
		args = append(args, f.UserID)
		where = append(where, fmt.Sprintf("user_id=$%d", len(args)))
	}
	if f.CounselorID != "" {
		args = append(args, f.CounselorID)
		where = append(where, fmt.Sprintf("counselor_id=$%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status=$%d", len(args)))
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := pickRow(ctx, r.pool, tx, `SELECT COUNT(*) FROM chat_sessions`+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count sessions: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	pageArgs := append(append([]any{}, args...), limit, f.Offset)
	q := fmt.Sprintf(`SELECT %s FROM chat_sessions%s ORDER BY started_at DESC, id LIMIT $%d OFFSET $%d`,
		sessionColumns, cond, len(args)+1, len(args)+2)
	out, err := r.collect(ctx, tx, q, pageArgs...)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *chatSessionRepo) ListWaiting(ctx context.Context, tx repository.Tx, limit int) ([]*model.ChatSession, error) {
	q := `SELECT ` + sessionColumns + ` FROM chat_sessions
 WHERE status='waiting'
 ORDER BY CASE priority WHEN 'emergency' THEN 0 WHEN 'high' THEN 1 WHEN 'medium' THEN 2 ELSE 3 END, started_at, id
 LIMIT $1`
	if inTx(tx) {
		q += ` FOR UPDATE SKIP LOCKED`
	}
	return r.collect(ctx, tx, q, limit)
}

func (r *chatSessionRepo) RatingsForCounselor(ctx context.Context, tx repository.Tx, counselorID string) ([]int, error) {
	const q = `SELECT rating FROM chat_sessions WHERE counselor_id=$1 AND rating IS NOT NULL;`
	rows, err := queryRows(ctx, r.pool, tx, q, counselorID)
	if err != nil {
		return nil, fmt.Errorf("query ratings: %w", err)
	}
	defer rows.Close()
	var out []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *chatSessionRepo) collect(ctx context.Context, tx repository.Tx, q string, args ...any) ([]*model.ChatSession, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()
	out := make([]*model.ChatSession, 0)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanSession(row pgx.Row) (*model.ChatSession, error) {
	var (
		s                model.ChatSession
		status, priority string
	)
	err := row.Scan(&s.ID, &s.UserID, &s.CounselorID, &status, &priority, &s.Topic, &s.Description, &s.IsAnonymous, &s.Tags,
		&s.StartedAt, &s.EndedAt, &s.Duration, &s.Rating, &s.Feedback, &s.LastActivityAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.Status = model.ChatSessionStatus(status)
	s.Priority = model.Priority(priority)
	if s.Tags == nil {
		s.Tags = []string{}
	}
	return &s, nil
}

func tagsOrEmpty(t []string) []string {
	if t == nil {
		return []string{}
	}
	return t
}
