// File: internal/usecase/chat_uc.go
package usecase

import (
	"context"
	"errors"
	"strings"
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

const (
	DefaultSessionPageSize = 20
	MaxSessionPageSize     = 100
	DefaultMessagePageSize = 50
	MaxMessagePageSize     = 100
)

// Compile-time check
var _ ChatUseCase = (*chatUC)(nil)

type ChatUseCase interface {
	ListSessions(ctx context.Context, p model.Principal, q ListSessionsQuery) (*SessionPage, error)
	CreateSession(ctx context.Context, p model.Principal, in CreateSessionInput) (*CreateSessionResult, error)
	GetMessages(ctx context.Context, p model.Principal, sessionID string, q MessagesQuery) (*MessagePage, error)
	SendMessage(ctx context.Context, p model.Principal, sessionID string, in SendMessageInput) (*model.ChatMessage, error)
	RateSession(ctx context.Context, p model.Principal, sessionID string, in RateSessionInput) (*model.ChatSession, error)
	EndSession(ctx context.Context, p model.Principal, sessionID string) (*model.ChatSession, error)
	EscalateSession(ctx context.Context, p model.Principal, sessionID string) (*model.ChatSession, error)
	// AuthorizeParticipant loads the session and checks p may read it.
	AuthorizeParticipant(ctx context.Context, p model.Principal, sessionID string) (*model.ChatSession, error)
}

type ListSessionsQuery struct {
	Status model.ChatSessionStatus
	Limit  int
	Offset int
}

type SessionPage struct {
	Sessions []*model.ChatSession `json:"sessions"`
	Total    int                  `json:"total"`
	Limit    int                  `json:"limit"`
	Offset   int                  `json:"offset"`
}

type CreateSessionInput struct {
	Topic       string `json:"topic" validate:"max=100"`
	Description string `json:"description" validate:"max=1000"`
	Priority    string `json:"priority" validate:"omitempty,oneof=low medium high emergency"`
	IsAnonymous bool   `json:"isAnonymous"`
}

type CreateSessionResult struct {
	Session           *model.ChatSession `json:"session"`
	CounselorAssigned bool               `json:"counselorAssigned"`
}

type MessagesQuery struct {
	Limit  int
	Before time.Time
}

// SessionRef is the trimmed session view returned with a message page.
type SessionRef struct {
	ID          string                  `json:"id"`
	Status      model.ChatSessionStatus `json:"status"`
	CounselorID *string                 `json:"counselorId"`
}

type MessagePage struct {
	Messages []*model.ChatMessage `json:"messages"`
	Session  SessionRef           `json:"session"`
}

type SendMessageInput struct {
	Body          string `json:"message" validate:"required,min=1,max=2000"`
	Kind          string `json:"messageType" validate:"omitempty,oneof=text image file"`
	AttachmentURL string `json:"attachmentUrl" validate:"omitempty,url"`
}

type RateSessionInput struct {
	Rating   int    `json:"rating" validate:"min=1,max=5"`
	Feedback string `json:"feedback" validate:"max=1000"`
}

// EndedEvent is the chat:ended payload.
type EndedEvent struct {
	SessionID string     `json:"sessionId"`
	EndedAt   *time.Time `json:"endedAt"`
	Duration  *int       `json:"duration"`
	EndedBy   string     `json:"endedBy"`
}

type chatUC struct {
	sessions   repository.ChatSessionRepository
	messages   repository.ChatMessageRepository
	counselors repository.CounselorRepository
	matcher    *Matcher
	tm         repository.TransactionManager
	relay      adapter.Relay
	log        *zerolog.Logger
}

func NewChatUseCase(
	sessions repository.ChatSessionRepository,
	messages repository.ChatMessageRepository,
	counselors repository.CounselorRepository,
	matcher *Matcher,
	tm repository.TransactionManager,
	relay adapter.Relay,
	logger *zerolog.Logger,
) *chatUC {
	if relay == nil {
		relay = adapter.NoopRelay{}
	}
	return &chatUC{
		sessions:   sessions,
		messages:   messages,
		counselors: counselors,
		matcher:    matcher,
		tm:         tm,
		relay:      relay,
		log:        logger,
	}
}

func (c *chatUC) ListSessions(ctx context.Context, p model.Principal, q ListSessionsQuery) (*SessionPage, error) {
	defer logging.TraceDuration(c.log, "ChatUC.ListSessions")()

	if q.Status != "" && !q.Status.Valid() {
		return nil, &domain.ValidationError{Details: []string{"status must be one of waiting, active, closed, escalated"}}
	}
	if q.Limit <= 0 {
		q.Limit = DefaultSessionPageSize
	}
	if q.Limit > MaxSessionPageSize {
		q.Limit = MaxSessionPageSize
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	f := repository.SessionFilter{Status: q.Status, Limit: q.Limit, Offset: q.Offset}
	if p.IsCounselor() {
		f.CounselorID = p.ID
	} else {
		f.UserID = p.ID
	}
	sessions, total, err := c.sessions.List(ctx, repository.NoTX, f)
	if err != nil {
		return nil, err
	}
	return &SessionPage{Sessions: sessions, Total: total, Limit: q.Limit, Offset: q.Offset}, nil
}

func (c *chatUC) CreateSession(ctx context.Context, p model.Principal, in CreateSessionInput) (*CreateSessionResult, error) {
	defer logging.TraceDuration(c.log, "ChatUC.CreateSession")()

	if p.Kind != model.AccountUser {
		return nil, domain.ErrWrongAccountKind
	}
	in.Topic = strings.TrimSpace(in.Topic)
	in.Description = strings.TrimSpace(in.Description)
	if err := validateInput(in); err != nil {
		return nil, err
	}

	var (
		session   *model.ChatSession
		counselor *model.Counselor
	)
	err := c.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		open, err := c.sessions.FindOpenByUser(ctx, tx, p.ID)
		if err == nil {
			return &domain.ActiveSessionError{SessionID: open.ID}
		}
		if !isNotFound(err) {
			return err
		}

		now := time.Now()
		s, err := model.NewChatSession(p.ID, model.Priority(in.Priority), in.Topic, in.Description, in.IsAnonymous, now)
		if err != nil {
			return err
		}
		counselor, err = c.matcher.Claim(ctx, tx, s, now)
		if err != nil {
			return err
		}
		// the partial unique index backs up the pre-check under races
		if err := c.sessions.Create(ctx, tx, s); err != nil {
			return err
		}
		if counselor != nil {
			if _, err := c.matcher.Greet(ctx, tx, s, now); err != nil {
				return err
			}
		}
		session = s
		return nil
	})
	if err != nil {
		if !errors.Is(err, domain.ErrInvalidState) {
			c.log.Error().Err(err).Str("user_id", p.ID).Msg("create session failed")
		}
		return nil, err
	}

	metrics.IncSessionCreated(counselor != nil)
	metrics.IncSessionTransition(string(session.Status))
	if counselor != nil {
		c.relay.EmitToAccount(counselor.ID, adapter.EventChatAssigned, AssignedEvent{
			SessionID: session.ID, CounselorID: counselor.ID, Session: session,
		})
	}
	c.log.Info().Str("session_id", session.ID).Str("status", string(session.Status)).Msg("chat session created")
	return &CreateSessionResult{Session: session, CounselorAssigned: counselor != nil}, nil
}

func (c *chatUC) GetMessages(ctx context.Context, p model.Principal, sessionID string, q MessagesQuery) (*MessagePage, error) {
	defer logging.TraceDuration(c.log, "ChatUC.GetMessages")()

	s, err := c.AuthorizeParticipant(ctx, p, sessionID)
	if err != nil {
		return nil, err
	}
	if q.Limit <= 0 {
		q.Limit = DefaultMessagePageSize
	}
	if q.Limit > MaxMessagePageSize {
		q.Limit = MaxMessagePageSize
	}

	recent, err := c.messages.ListRecent(ctx, repository.NoTX, s.ID, q.Before, q.Limit)
	if err != nil {
		return nil, err
	}
	// newest-first from storage, chronological for the caller
	msgs := make([]*model.ChatMessage, len(recent))
	for i, m := range recent {
		msgs[len(recent)-1-i] = m
	}

	if _, err := c.messages.MarkRead(ctx, repository.NoTX, s.ID, p.ID); err != nil {
		return nil, err
	}
	for _, m := range msgs {
		if m.SenderID != p.ID {
			m.IsRead = true
		}
	}
	return &MessagePage{
		Messages: msgs,
		Session:  SessionRef{ID: s.ID, Status: s.Status, CounselorID: s.CounselorID},
	}, nil
}

func (c *chatUC) SendMessage(ctx context.Context, p model.Principal, sessionID string, in SendMessageInput) (*model.ChatMessage, error) {
	defer logging.TraceDuration(c.log, "ChatUC.SendMessage")()

	in.Body = strings.TrimSpace(in.Body)
	if err := validateInput(in); err != nil {
		return nil, err
	}

	if err := checkSessionID(sessionID); err != nil {
		return nil, err
	}

	var msg *model.ChatMessage
	err := c.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		s, err := c.sessions.FindByID(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if err := authorizeWrite(s, p); err != nil {
			return err
		}
		if err := s.CanSend(); err != nil {
			return err
		}
		now := time.Now()
		msg = model.NewChatMessage(s.ID, p.ID, p.Kind, model.MessageKind(in.Kind), in.Body, in.AttachmentURL, now)
		if err := c.messages.Save(ctx, tx, msg); err != nil {
			return err
		}
		s.Touch(now)
		return c.sessions.Update(ctx, tx, s)
	})
	if err != nil {
		return nil, err
	}

	metrics.IncMessage(string(p.Kind))
	c.relay.EmitToSession(msg.SessionID, adapter.EventChatMessage, msg)
	return msg, nil
}

func (c *chatUC) RateSession(ctx context.Context, p model.Principal, sessionID string, in RateSessionInput) (*model.ChatSession, error) {
	defer logging.TraceDuration(c.log, "ChatUC.RateSession")()

	if p.Kind != model.AccountUser {
		return nil, domain.ErrWrongAccountKind
	}
	in.Feedback = strings.TrimSpace(in.Feedback)
	if err := validateInput(in); err != nil {
		return nil, err
	}

	if err := checkSessionID(sessionID); err != nil {
		return nil, err
	}

	var rated *model.ChatSession
	err := c.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		s, err := c.sessions.FindByID(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if s.UserID != p.ID {
			return domain.ErrNotParticipant
		}
		if err := s.Rate(in.Rating, in.Feedback, time.Now()); err != nil {
			return err
		}
		if err := c.sessions.Update(ctx, tx, s); err != nil {
			return err
		}
		rated = s

		counselorID := s.CounselorRef()
		if counselorID == "" {
			return nil
		}
		// lock the counselor row, then recompute the mean from every rating
		if _, err := c.counselors.FindByID(ctx, tx, counselorID); err != nil {
			return err
		}
		ratings, err := c.sessions.RatingsForCounselor(ctx, tx, counselorID)
		if err != nil {
			return err
		}
		return c.counselors.SetRating(ctx, tx, counselorID, model.MeanRating(ratings))
	})
	if err != nil {
		return nil, err
	}
	metrics.ObserveRating(in.Rating)
	return rated, nil
}

func (c *chatUC) EndSession(ctx context.Context, p model.Principal, sessionID string) (*model.ChatSession, error) {
	defer logging.TraceDuration(c.log, "ChatUC.EndSession")()

	if err := checkSessionID(sessionID); err != nil {
		return nil, err
	}

	var ended *model.ChatSession
	err := c.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		s, err := c.sessions.FindByID(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if err := authorizeWrite(s, p); err != nil {
			return err
		}
		if err := s.End(time.Now()); err != nil {
			return err
		}
		if err := c.sessions.Update(ctx, tx, s); err != nil {
			return err
		}
		if id := s.CounselorRef(); id != "" {
			if err := c.counselors.Release(ctx, tx, id); err != nil {
				return err
			}
		}
		ended = s
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.IncSessionTransition(string(model.ChatSessionClosed))
	ev := EndedEvent{SessionID: ended.ID, EndedAt: ended.EndedAt, Duration: ended.Duration, EndedBy: p.ID}
	c.relay.EmitToSession(ended.ID, adapter.EventChatEnded, ev)
	if id := ended.CounselorRef(); id != "" {
		c.relay.EmitToAccount(id, adapter.EventChatEnded, ev)
	}
	return ended, nil
}

func (c *chatUC) EscalateSession(ctx context.Context, p model.Principal, sessionID string) (*model.ChatSession, error) {
	defer logging.TraceDuration(c.log, "ChatUC.EscalateSession")()

	if err := checkSessionID(sessionID); err != nil {
		return nil, err
	}

	var escalated *model.ChatSession
	err := c.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		s, err := c.sessions.FindByID(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if err := authorizeWrite(s, p); err != nil {
			return err
		}
		if err := s.Escalate(time.Now()); err != nil {
			return err
		}
		escalated = s
		return c.sessions.Update(ctx, tx, s)
	})
	if err != nil {
		return nil, err
	}
	metrics.IncSessionTransition(string(model.ChatSessionEscalated))
	c.log.Warn().Str("session_id", escalated.ID).Str("priority", string(escalated.Priority)).Msg("chat session escalated")
	return escalated, nil
}

func (c *chatUC) AuthorizeParticipant(ctx context.Context, p model.Principal, sessionID string) (*model.ChatSession, error) {
	if err := checkSessionID(sessionID); err != nil {
		return nil, err
	}
	s, err := c.sessions.FindByID(ctx, repository.NoTX, sessionID)
	if err != nil {
		return nil, err
	}
	if !s.IsParticipant(p) {
		return nil, domain.ErrNotParticipant
	}
	return s, nil
}

// authorizeWrite lets the owner act on its session at any time and the
// assigned counselor only while the session is active.
func authorizeWrite(s *model.ChatSession, p model.Principal) error {
	if !s.IsParticipant(p) {
		return domain.ErrNotParticipant
	}
	if p.IsCounselor() && s.Status != model.ChatSessionActive {
		return domain.ErrCounselorNotActive
	}
	return nil
}
