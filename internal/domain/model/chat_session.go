package model

import (
	"math"
	"time"

	"mentalspace/internal/domain"

	"github.com/google/uuid"
)

type ChatSessionStatus string

const (
	ChatSessionWaiting   ChatSessionStatus = "waiting"
	ChatSessionActive    ChatSessionStatus = "active"
	ChatSessionClosed    ChatSessionStatus = "closed"
	ChatSessionEscalated ChatSessionStatus = "escalated"
)

func (s ChatSessionStatus) Valid() bool {
	switch s {
	case ChatSessionWaiting, ChatSessionActive, ChatSessionClosed, ChatSessionEscalated:
		return true
	}
	return false
}

// IsOpen reports whether the status counts toward the one-open-session-per-user limit.
func (s ChatSessionStatus) IsOpen() bool {
	return s == ChatSessionWaiting || s == ChatSessionActive
}

type Priority string

const (
	PriorityLow       Priority = "low"
	PriorityMedium    Priority = "medium"
	PriorityHigh      Priority = "high"
	PriorityEmergency Priority = "emergency"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityEmergency:
		return true
	}
	return false
}

// Rank orders priorities for the waiting queue; lower is served first.
func (p Priority) Rank() int {
	switch p {
	case PriorityEmergency:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	default:
		return 3
	}
}

// ChatSession is the aggregate root for a conversation between one user and
// at most one counselor. Status transitions go through its methods only.
type ChatSession struct {
	ID             string            `json:"id"`
	UserID         string            `json:"userId"`
	CounselorID    *string           `json:"counselorId"`
	Status         ChatSessionStatus `json:"status"`
	Priority       Priority          `json:"priority"`
	Topic          string            `json:"topic,omitempty"`
	Description    string            `json:"description,omitempty"`
	IsAnonymous    bool              `json:"isAnonymous"`
	Tags           []string          `json:"tags"`
	StartedAt      time.Time         `json:"startedAt"`
	EndedAt        *time.Time        `json:"endedAt"`
	Duration       *int              `json:"duration"` // minutes
	Rating         *int              `json:"rating"`
	Feedback       string            `json:"feedback,omitempty"`
	LastActivityAt time.Time         `json:"lastActivityAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// NewChatSession builds a waiting session owned by userID.
func NewChatSession(userID string, priority Priority, topic, description string, anonymous bool, now time.Time) (*ChatSession, error) {
	if userID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if priority == "" {
		priority = PriorityMedium
	}
	if !priority.Valid() {
		return nil, &domain.ValidationError{Details: []string{"priority must be one of low, medium, high, emergency"}}
	}
	return &ChatSession{
		ID:             uuid.NewString(),
		UserID:         userID,
		Status:         ChatSessionWaiting,
		Priority:       priority,
		Topic:          topic,
		Description:    description,
		IsAnonymous:    anonymous,
		Tags:           []string{},
		StartedAt:      now,
		LastActivityAt: now,
		UpdatedAt:      now,
	}, nil
}

// Assign moves a waiting session to active under counselorID.
func (s *ChatSession) Assign(counselorID string, now time.Time) error {
	if s.Status != ChatSessionWaiting {
		return domain.ErrSessionNotWaiting
	}
	id := counselorID
	s.CounselorID = &id
	s.Status = ChatSessionActive
	s.UpdatedAt = now
	return nil
}

// CanSend reports whether new messages are accepted.
func (s *ChatSession) CanSend() error {
	if s.Status != ChatSessionActive {
		return domain.ErrSessionNotActive
	}
	return nil
}

// End closes any non-closed session and records its duration in whole minutes.
func (s *ChatSession) End(now time.Time) error {
	if s.Status == ChatSessionClosed {
		return domain.ErrSessionClosed
	}
	ended := now
	minutes := int(math.Round(now.Sub(s.StartedAt).Minutes()))
	if minutes < 0 {
		minutes = 0
	}
	s.Status = ChatSessionClosed
	s.EndedAt = &ended
	s.Duration = &minutes
	s.UpdatedAt = now
	return nil
}

// Rate records the one-time rating of a closed session.
func (s *ChatSession) Rate(rating int, feedback string, now time.Time) error {
	if rating < 1 || rating > 5 {
		return &domain.ValidationError{Details: []string{"rating must be between 1 and 5"}}
	}
	if s.Status != ChatSessionClosed {
		return domain.ErrSessionNotClosed
	}
	if s.Rating != nil {
		return domain.ErrAlreadyRated
	}
	r := rating
	s.Rating = &r
	s.Feedback = feedback
	s.UpdatedAt = now
	return nil
}

// Escalate flags a non-closed session for escalation.
func (s *ChatSession) Escalate(now time.Time) error {
	switch s.Status {
	case ChatSessionClosed:
		return domain.ErrSessionClosed
	case ChatSessionEscalated:
		return domain.ErrAlreadyEscalated
	}
	s.Status = ChatSessionEscalated
	s.UpdatedAt = now
	return nil
}

func (s *ChatSession) Touch(now time.Time) {
	s.LastActivityAt = now
	s.UpdatedAt = now
}

// AssignedTo reports whether counselorID is the session's counselor.
func (s *ChatSession) AssignedTo(counselorID string) bool {
	return s.CounselorID != nil && *s.CounselorID == counselorID
}

// IsParticipant reports whether p may read the session.
func (s *ChatSession) IsParticipant(p Principal) bool {
	switch p.Kind {
	case AccountUser:
		return s.UserID == p.ID
	case AccountCounselor:
		return s.AssignedTo(p.ID)
	}
	return false
}

// CounselorRef returns the assigned counselor id or "".
func (s *ChatSession) CounselorRef() string {
	if s.CounselorID == nil {
		return ""
	}
	return *s.CounselorID
}
