package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"mentalspace/internal/domain/model"
	"mentalspace/internal/domain/ports/repository"
	"mentalspace/internal/infra/security"
)

var _ repository.ChatMessageRepository = (*chatMessageRepo)(nil)

// chatMessageRepo stores message bodies sealed with cipher when one is
// configured; rows written before encryption was enabled stay readable.
type chatMessageRepo struct {
	pool   *pgxpool.Pool
	cipher *security.MessageCipher
}

func NewChatMessageRepo(pool *pgxpool.Pool, cipher *security.MessageCipher) *chatMessageRepo {
	return &chatMessageRepo{pool: pool, cipher: cipher}
}

func (r *chatMessageRepo) Save(ctx context.Context, tx repository.Tx, m *model.ChatMessage) error {
	body, encrypted := m.Body, false
	if r.cipher.Enabled() {
		sealed, err := r.cipher.Seal(m.SessionID, m.Body)
		if err != nil {
			return fmt.Errorf("encrypt message: %w", err)
		}
		body, encrypted = sealed, true
	}
	const q = `
INSERT INTO chat_messages (
  id, session_id, sender_id, sender_kind, body, encrypted, message_kind, attachment_url, is_read, sent_at, is_edited, edited_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12);`
	_, err := execSQL(ctx, r.pool, tx, q,
		m.ID, m.SessionID, m.SenderID, string(m.SenderKind), body, encrypted, string(m.Kind), m.AttachmentURL,
		m.IsRead, m.SentAt, m.IsEdited, m.EditedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (r *chatMessageRepo) ListRecent(ctx context.Context, tx repository.Tx, sessionID string, before time.Time, limit int) ([]*model.ChatMessage, error) {
	if before.IsZero() {
		before = time.Now()
	}
	const q = `
SELECT id, session_id, sender_id, sender_kind, body, encrypted, message_kind, attachment_url, is_read, sent_at, is_edited, edited_at
  FROM chat_messages
 WHERE session_id=$1 AND sent_at < $2
 ORDER BY sent_at DESC, id DESC
 LIMIT $3;`
	rows, err := queryRows(ctx, r.pool, tx, q, sessionID, before, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	out := make([]*model.ChatMessage, 0, limit)
	for rows.Next() {
		var (
			m                model.ChatMessage
			senderKind, kind string
			encrypted        bool
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &m.SenderID, &senderKind, &m.Body, &encrypted, &kind, &m.AttachmentURL,
			&m.IsRead, &m.SentAt, &m.IsEdited, &m.EditedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if encrypted {
			if !r.cipher.Enabled() {
				return nil, fmt.Errorf("message %s is encrypted but no key is configured", m.ID)
			}
			plain, err := r.cipher.Open(m.SessionID, m.Body)
			if err != nil {
				return nil, fmt.Errorf("decrypt message %s: %w", m.ID, err)
			}
			m.Body = plain
		}
		m.SenderKind = model.AccountKind(senderKind)
		m.Kind = model.MessageKind(kind)
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (r *chatMessageRepo) MarkRead(ctx context.Context, tx repository.Tx, sessionID, readerID string) (int64, error) {
	const q = `UPDATE chat_messages SET is_read=TRUE WHERE session_id=$1 AND sender_id<>$2 AND NOT is_read;`
	tag, err := execSQL(ctx, r.pool, tx, q, sessionID, readerID)
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	return tag.RowsAffected(), nil
}
