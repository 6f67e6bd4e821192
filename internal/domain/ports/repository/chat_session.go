package repository

import (
	"context"
	"time"

	"mentalspace/internal/domain/model"
)

// -----------------------------
// Chat Sessions
// -----------------------------

// SessionFilter selects the sessions a participant can list.
type SessionFilter struct {
	UserID      string // set for user callers
	CounselorID string // set for counselor callers
	Status      model.ChatSessionStatus
	Limit       int
	Offset      int
}

type ChatSessionRepository interface {
	// Create inserts a new session. A second open session for the same user
	// fails with domain.ErrActiveSessionExists.
	Create(ctx context.Context, tx Tx, s *model.ChatSession) error
	Update(ctx context.Context, tx Tx, s *model.ChatSession) error
	// FindByID locks the row when tx is a live transaction.
	FindByID(ctx context.Context, tx Tx, id string) (*model.ChatSession, error)
	FindOpenByUser(ctx context.Context, tx Tx, userID string) (*model.ChatSession, error)
	List(ctx context.Context, tx Tx, f SessionFilter) ([]*model.ChatSession, int, error)
	// ListWaiting returns waiting sessions by priority then age, skipping rows
	// locked by another dispatcher.
	ListWaiting(ctx context.Context, tx Tx, limit int) ([]*model.ChatSession, error)
	// RatingsForCounselor returns every non-null rating of counselorID's sessions.
	RatingsForCounselor(ctx context.Context, tx Tx, counselorID string) ([]int, error)
}

// -----------------------------
// Chat Messages
// -----------------------------

type ChatMessageRepository interface {
	Save(ctx context.Context, tx Tx, m *model.ChatMessage) error
	// ListRecent returns up to limit messages sent strictly before `before`
	// (zero means now), newest first.
	ListRecent(ctx context.Context, tx Tx, sessionID string, before time.Time, limit int) ([]*model.ChatMessage, error)
	// MarkRead flags unread messages not sent by readerID and returns how many changed.
	MarkRead(ctx context.Context, tx Tx, sessionID, readerID string) (int64, error)
}
