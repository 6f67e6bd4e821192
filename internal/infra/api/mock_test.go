//go:build !integration

package api_test

import (
	"context"
	"sync"
	"time"

	"mentalspace/internal/domain"
	"mentalspace/internal/domain/model"
	"mentalspace/internal/usecase"
)

type MockChatUC struct {
	ListSessionsFunc         func(ctx context.Context, p model.Principal, q usecase.ListSessionsQuery) (*usecase.SessionPage, error)
	CreateSessionFunc        func(ctx context.Context, p model.Principal, in usecase.CreateSessionInput) (*usecase.CreateSessionResult, error)
	GetMessagesFunc          func(ctx context.Context, p model.Principal, id string, q usecase.MessagesQuery) (*usecase.MessagePage, error)
	SendMessageFunc          func(ctx context.Context, p model.Principal, id string, in usecase.SendMessageInput) (*model.ChatMessage, error)
	RateSessionFunc          func(ctx context.Context, p model.Principal, id string, in usecase.RateSessionInput) (*model.ChatSession, error)
	EndSessionFunc           func(ctx context.Context, p model.Principal, id string) (*model.ChatSession, error)
	EscalateSessionFunc      func(ctx context.Context, p model.Principal, id string) (*model.ChatSession, error)
	AuthorizeParticipantFunc func(ctx context.Context, p model.Principal, id string) (*model.ChatSession, error)
}

var _ usecase.ChatUseCase = (*MockChatUC)(nil)

func (m *MockChatUC) ListSessions(ctx context.Context, p model.Principal, q usecase.ListSessionsQuery) (*usecase.SessionPage, error) {
	if m.ListSessionsFunc != nil {
		return m.ListSessionsFunc(ctx, p, q)
	}
	return &usecase.SessionPage{Sessions: []*model.ChatSession{}, Limit: q.Limit, Offset: q.Offset}, nil
}

func (m *MockChatUC) CreateSession(ctx context.Context, p model.Principal, in usecase.CreateSessionInput) (*usecase.CreateSessionResult, error) {
	if m.CreateSessionFunc != nil {
		return m.CreateSessionFunc(ctx, p, in)
	}
	s, _ := model.NewChatSession(p.ID, model.Priority(in.Priority), in.Topic, in.Description, in.IsAnonymous, time.Now())
	return &usecase.CreateSessionResult{Session: s}, nil
}

func (m *MockChatUC) GetMessages(ctx context.Context, p model.Principal, id string, q usecase.MessagesQuery) (*usecase.MessagePage, error) {
	if m.GetMessagesFunc != nil {
		return m.GetMessagesFunc(ctx, p, id, q)
	}
	return &usecase.MessagePage{Messages: []*model.ChatMessage{}, Session: usecase.SessionRef{ID: id}}, nil
}

func (m *MockChatUC) SendMessage(ctx context.Context, p model.Principal, id string, in usecase.SendMessageInput) (*model.ChatMessage, error) {
	if m.SendMessageFunc != nil {
		return m.SendMessageFunc(ctx, p, id, in)
	}
	return model.NewChatMessage(id, p.ID, p.Kind, model.MessageKind(in.Kind), in.Body, in.AttachmentURL, time.Now()), nil
}

func (m *MockChatUC) RateSession(ctx context.Context, p model.Principal, id string, in usecase.RateSessionInput) (*model.ChatSession, error) {
	if m.RateSessionFunc != nil {
		return m.RateSessionFunc(ctx, p, id, in)
	}
	return &model.ChatSession{ID: id, Rating: &in.Rating}, nil
}

func (m *MockChatUC) EndSession(ctx context.Context, p model.Principal, id string) (*model.ChatSession, error) {
	if m.EndSessionFunc != nil {
		return m.EndSessionFunc(ctx, p, id)
	}
	return &model.ChatSession{ID: id, Status: model.ChatSessionClosed}, nil
}

func (m *MockChatUC) EscalateSession(ctx context.Context, p model.Principal, id string) (*model.ChatSession, error) {
	if m.EscalateSessionFunc != nil {
		return m.EscalateSessionFunc(ctx, p, id)
	}
	return &model.ChatSession{ID: id, Status: model.ChatSessionEscalated}, nil
}

func (m *MockChatUC) AuthorizeParticipant(ctx context.Context, p model.Principal, id string) (*model.ChatSession, error) {
	if m.AuthorizeParticipantFunc != nil {
		return m.AuthorizeParticipantFunc(ctx, p, id)
	}
	return &model.ChatSession{ID: id}, nil
}

type MockCounselorUC struct {
	ListAvailableFunc func(ctx context.Context) ([]*model.Counselor, error)
	SetPresenceFunc   func(ctx context.Context, p model.Principal, online bool) (*model.Counselor, error)
}

var _ usecase.CounselorUseCase = (*MockCounselorUC)(nil)

func (m *MockCounselorUC) ListAvailable(ctx context.Context) ([]*model.Counselor, error) {
	if m.ListAvailableFunc != nil {
		return m.ListAvailableFunc(ctx)
	}
	return nil, nil
}

func (m *MockCounselorUC) SetPresence(ctx context.Context, p model.Principal, online bool) (*model.Counselor, error) {
	if m.SetPresenceFunc != nil {
		return m.SetPresenceFunc(ctx, p, online)
	}
	if !p.IsCounselor() {
		return nil, domain.ErrWrongAccountKind
	}
	status := model.CounselorOffline
	if online {
		status = model.CounselorAvailable
	}
	return &model.Counselor{ID: p.ID, IsOnline: online, Status: status}, nil
}

// MockAuthUC accepts "tok-<id>" for the accounts in Accounts.
type MockAuthUC struct {
	Accounts  map[string]model.Principal
	LoginFunc func(ctx context.Context, in usecase.LoginInput) (*usecase.LoginResult, error)
}

var _ usecase.AuthUseCase = (*MockAuthUC)(nil)

func (m *MockAuthUC) Login(ctx context.Context, in usecase.LoginInput) (*usecase.LoginResult, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, in)
	}
	return nil, domain.ErrInvalidLogin
}

func (m *MockAuthUC) Authenticate(_ context.Context, token string) (model.Principal, error) {
	p, ok := m.Accounts[token]
	if !ok {
		return model.Principal{}, domain.ErrInvalidToken
	}
	if !p.IsActive {
		return model.Principal{}, domain.ErrAccountInactive
	}
	return p, nil
}

// memLimiter counts hits per key in memory.
type memLimiter struct {
	mu   sync.Mutex
	hits map[string]int
	err  error
}

func (l *memLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	if l.err != nil {
		return false, 0, l.err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.hits == nil {
		l.hits = map[string]int{}
	}
	l.hits[key]++
	if l.hits[key] > limit {
		return false, window, nil
	}
	return true, 0, nil
}
