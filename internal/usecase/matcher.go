// File: internal/usecase/matcher.go
package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"mentalspace/internal/domain"
	"mentalspace/internal/domain/model"
	"mentalspace/internal/domain/ports/adapter"
	"mentalspace/internal/domain/ports/repository"
	"mentalspace/internal/infra/logging"
	"mentalspace/internal/infra/metrics"
)

// Matcher pairs sessions with counselors. Every method that takes a tx must
// run inside the caller's transaction so the claim, the session update and
// the greeting commit or roll back together.
type Matcher struct {
	counselors repository.CounselorRepository
	messages   repository.ChatMessageRepository
}

func NewMatcher(counselors repository.CounselorRepository, messages repository.ChatMessageRepository) *Matcher {
	return &Matcher{counselors: counselors, messages: messages}
}

// Claim reserves the least busy eligible counselor and assigns it to s.
// It returns nil when nobody is eligible; s is left waiting.
func (m *Matcher) Claim(ctx context.Context, tx repository.Tx, s *model.ChatSession, now time.Time) (*model.Counselor, error) {
	start := time.Now()
	c, err := m.counselors.ClaimLeastBusy(ctx, tx)
	metrics.ObserveMatch(time.Since(start).Seconds())
	if err != nil || c == nil {
		return nil, err
	}
	if err := s.Assign(c.ID, now); err != nil {
		return nil, err
	}
	return c, nil
}

// Greet stores the counselor's welcome message. s must already be persisted.
func (m *Matcher) Greet(ctx context.Context, tx repository.Tx, s *model.ChatSession, now time.Time) (*model.ChatMessage, error) {
	g := model.NewGreeting(s.ID, s.CounselorRef(), now)
	if err := m.messages.Save(ctx, tx, g); err != nil {
		return nil, err
	}
	return g, nil
}

// AssignedEvent is the chat:assigned payload.
type AssignedEvent struct {
	SessionID   string             `json:"sessionId"`
	CounselorID string             `json:"counselorId"`
	Session     *model.ChatSession `json:"session"`
}

var _ DispatchUseCase = (*dispatchUC)(nil)

// DispatchUseCase promotes waiting sessions once counselors free up.
type DispatchUseCase interface {
	// DispatchWaiting assigns up to limit waiting sessions, most urgent and
	// oldest first, and returns how many were assigned.
	DispatchWaiting(ctx context.Context, limit int) (int, error)
}

type dispatchUC struct {
	sessions repository.ChatSessionRepository
	matcher  *Matcher
	tm       repository.TransactionManager
	relay    adapter.Relay
	log      *zerolog.Logger
}

func NewDispatchUseCase(sessions repository.ChatSessionRepository, matcher *Matcher, tm repository.TransactionManager, relay adapter.Relay, logger *zerolog.Logger) *dispatchUC {
	if relay == nil {
		relay = adapter.NoopRelay{}
	}
	return &dispatchUC{sessions: sessions, matcher: matcher, tm: tm, relay: relay, log: logger}
}

var errQueueDrained = errors.New("nothing to dispatch")

func (d *dispatchUC) DispatchWaiting(ctx context.Context, limit int) (int, error) {
	defer logging.TraceDuration(d.log, "DispatchUC.DispatchWaiting")()

	assigned := 0
	for assigned < limit {
		if err := ctx.Err(); err != nil {
			return assigned, err
		}
		var (
			s        *model.ChatSession
			greeting *model.ChatMessage
		)
		// one short transaction per session keeps row locks brief
		err := d.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			waiting, err := d.sessions.ListWaiting(ctx, tx, 1)
			if err != nil {
				return err
			}
			if len(waiting) == 0 {
				return errQueueDrained
			}
			s = waiting[0]
			now := time.Now()
			c, err := d.matcher.Claim(ctx, tx, s, now)
			if err != nil {
				return err
			}
			if c == nil {
				return errQueueDrained
			}
			if err := d.sessions.Update(ctx, tx, s); err != nil {
				return err
			}
			greeting, err = d.matcher.Greet(ctx, tx, s, now)
			return err
		})
		if errors.Is(err, errQueueDrained) {
			break
		}
		if err != nil {
			return assigned, err
		}

		assigned++
		metrics.IncSessionTransition(string(model.ChatSessionActive))
		d.log.Info().Str("session_id", s.ID).Str("counselor_id", s.CounselorRef()).Msg("waiting session assigned")

		ev := AssignedEvent{SessionID: s.ID, CounselorID: s.CounselorRef(), Session: s}
		d.relay.EmitToAccount(s.UserID, adapter.EventChatAssigned, ev)
		d.relay.EmitToAccount(s.CounselorRef(), adapter.EventChatAssigned, ev)
		d.relay.EmitToSession(s.ID, adapter.EventChatMessage, greeting)
	}
	return assigned, nil
}

// isNotFound keeps repository lookups that may legitimately miss readable.
func isNotFound(err error) bool { return errors.Is(err, domain.ErrNotFound) }
