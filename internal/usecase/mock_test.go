//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"mentalspace/internal/domain"
	"mentalspace/internal/domain/model"
	"mentalspace/internal/domain/ports/adapter"
	"mentalspace/internal/domain/ports/repository"
)

// =============================
// In-memory store
// =============================

// memStore backs every mock repository so cross-entity rules (open-session
// uniqueness, ratings per counselor) behave like the database.
type memStore struct {
	mu         sync.Mutex
	sessions   map[string]*model.ChatSession
	messages   []*model.ChatMessage
	counselors map[string]*model.Counselor
	users      map[string]*model.User
}

func newMemStore() *memStore {
	return &memStore{
		sessions:   map[string]*model.ChatSession{},
		counselors: map[string]*model.Counselor{},
		users:      map[string]*model.User{},
	}
}

func cloneSession(s *model.ChatSession) *model.ChatSession {
	cp := *s
	if s.CounselorID != nil {
		id := *s.CounselorID
		cp.CounselorID = &id
	}
	cp.Tags = append([]string{}, s.Tags...)
	return &cp
}

func cloneCounselor(c *model.Counselor) *model.Counselor {
	cp := *c
	return &cp
}

func cloneMessage(m *model.ChatMessage) *model.ChatMessage {
	cp := *m
	return &cp
}

// =============================
// Chat sessions
// =============================

type MockChatSessionRepo struct {
	st *memStore

	CreateFunc   func(ctx context.Context, tx repository.Tx, s *model.ChatSession) error
	UpdateFunc   func(ctx context.Context, tx repository.Tx, s *model.ChatSession) error
	FindByIDFunc func(ctx context.Context, tx repository.Tx, id string) (*model.ChatSession, error)
}

var _ repository.ChatSessionRepository = (*MockChatSessionRepo)(nil)

func (r *MockChatSessionRepo) Create(ctx context.Context, tx repository.Tx, s *model.ChatSession) error {
	if r.CreateFunc != nil {
		return r.CreateFunc(ctx, tx, s)
	}
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if s.Status.IsOpen() {
		for _, o := range r.st.sessions {
			if o.UserID == s.UserID && o.Status.IsOpen() {
				return domain.ErrActiveSessionExists
			}
		}
	}
	r.st.sessions[s.ID] = cloneSession(s)
	return nil
}

func (r *MockChatSessionRepo) Update(ctx context.Context, tx repository.Tx, s *model.ChatSession) error {
	if r.UpdateFunc != nil {
		return r.UpdateFunc(ctx, tx, s)
	}
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if _, ok := r.st.sessions[s.ID]; !ok {
		return domain.ErrSessionNotFound
	}
	r.st.sessions[s.ID] = cloneSession(s)
	return nil
}

func (r *MockChatSessionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.ChatSession, error) {
	if r.FindByIDFunc != nil {
		return r.FindByIDFunc(ctx, tx, id)
	}
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	s, ok := r.st.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return cloneSession(s), nil
}

func (r *MockChatSessionRepo) FindOpenByUser(ctx context.Context, tx repository.Tx, userID string) (*model.ChatSession, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	for _, s := range r.st.sessions {
		if s.UserID == userID && s.Status.IsOpen() {
			return cloneSession(s), nil
		}
	}
	return nil, domain.ErrSessionNotFound
}

func (r *MockChatSessionRepo) List(ctx context.Context, tx repository.Tx, f repository.SessionFilter) ([]*model.ChatSession, int, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var all []*model.ChatSession
	for _, s := range r.st.sessions {
		if f.UserID != "" && s.UserID != f.UserID {
			continue
		}
		if f.CounselorID != "" && !s.AssignedTo(f.CounselorID) {
			continue
		}
		if f.Status != "" && s.Status != f.Status {
			continue
		}
		all = append(all, cloneSession(s))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].StartedAt.After(all[j].StartedAt) })
	total := len(all)
	if f.Offset >= total {
		return []*model.ChatSession{}, total, nil
	}
	end := f.Offset + f.Limit
	if end > total {
		end = total
	}
	return all[f.Offset:end], total, nil
}

func (r *MockChatSessionRepo) ListWaiting(ctx context.Context, tx repository.Tx, limit int) ([]*model.ChatSession, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var out []*model.ChatSession
	for _, s := range r.st.sessions {
		if s.Status == model.ChatSessionWaiting {
			out = append(out, cloneSession(s))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority.Rank() != out[j].Priority.Rank() {
			return out[i].Priority.Rank() < out[j].Priority.Rank()
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MockChatSessionRepo) RatingsForCounselor(ctx context.Context, tx repository.Tx, counselorID string) ([]int, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var out []int
	for _, s := range r.st.sessions {
		if s.AssignedTo(counselorID) && s.Rating != nil {
			out = append(out, *s.Rating)
		}
	}
	return out, nil
}

// =============================
// Chat messages
// =============================

type MockChatMessageRepo struct {
	st *memStore

	SaveFunc func(ctx context.Context, tx repository.Tx, m *model.ChatMessage) error
}

var _ repository.ChatMessageRepository = (*MockChatMessageRepo)(nil)

func (r *MockChatMessageRepo) Save(ctx context.Context, tx repository.Tx, m *model.ChatMessage) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, m)
	}
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	r.st.messages = append(r.st.messages, cloneMessage(m))
	return nil
}

func (r *MockChatMessageRepo) ListRecent(ctx context.Context, tx repository.Tx, sessionID string, before time.Time, limit int) ([]*model.ChatMessage, error) {
	if before.IsZero() {
		before = time.Now().Add(time.Second)
	}
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var out []*model.ChatMessage
	for i := len(r.st.messages) - 1; i >= 0 && len(out) < limit; i-- {
		m := r.st.messages[i]
		if m.SessionID == sessionID && m.SentAt.Before(before) {
			out = append(out, cloneMessage(m))
		}
	}
	return out, nil
}

func (r *MockChatMessageRepo) MarkRead(ctx context.Context, tx repository.Tx, sessionID, readerID string) (int64, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var n int64
	for _, m := range r.st.messages {
		if m.SessionID == sessionID && m.SenderID != readerID && !m.IsRead {
			m.IsRead = true
			n++
		}
	}
	return n, nil
}

// messagesFor returns the stored transcript of a session in insert order.
func (st *memStore) messagesFor(sessionID string) []*model.ChatMessage {
	st.mu.Lock()
	defer st.mu.Unlock()
	var out []*model.ChatMessage
	for _, m := range st.messages {
		if m.SessionID == sessionID {
			out = append(out, cloneMessage(m))
		}
	}
	return out
}

// =============================
// Counselors
// =============================

type MockCounselorRepo struct {
	st *memStore

	ClaimLeastBusyFunc func(ctx context.Context, tx repository.Tx) (*model.Counselor, error)
	SetRatingFunc      func(ctx context.Context, tx repository.Tx, id string, rating float64) error
}

var _ repository.CounselorRepository = (*MockCounselorRepo)(nil)

func (r *MockCounselorRepo) Save(ctx context.Context, tx repository.Tx, c *model.Counselor) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	r.st.counselors[c.ID] = cloneCounselor(c)
	return nil
}

func (r *MockCounselorRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Counselor, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	c, ok := r.st.counselors[id]
	if !ok {
		return nil, domain.ErrCounselorNotFound
	}
	return cloneCounselor(c), nil
}

func (r *MockCounselorRepo) FindByEmail(ctx context.Context, tx repository.Tx, email string) (*model.Counselor, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	for _, c := range r.st.counselors {
		if c.Email == email {
			return cloneCounselor(c), nil
		}
	}
	return nil, domain.ErrCounselorNotFound
}

func (r *MockCounselorRepo) ListAvailable(ctx context.Context, tx repository.Tx) ([]*model.Counselor, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	out := []*model.Counselor{}
	for _, c := range r.st.counselors {
		if c.Eligible() {
			out = append(out, cloneCounselor(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ClaimLeastBusy mirrors the SQL ordering: total sessions, created_at, id.
func (r *MockCounselorRepo) ClaimLeastBusy(ctx context.Context, tx repository.Tx) (*model.Counselor, error) {
	if r.ClaimLeastBusyFunc != nil {
		return r.ClaimLeastBusyFunc(ctx, tx)
	}
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var best *model.Counselor
	for _, c := range r.st.counselors {
		if !c.Eligible() {
			continue
		}
		if best == nil ||
			c.TotalSessions < best.TotalSessions ||
			(c.TotalSessions == best.TotalSessions && c.CreatedAt.Before(best.CreatedAt)) ||
			(c.TotalSessions == best.TotalSessions && c.CreatedAt.Equal(best.CreatedAt) && c.ID < best.ID) {
			best = c
		}
	}
	if best == nil {
		return nil, nil
	}
	best.Status = model.CounselorBusy
	best.TotalSessions++
	return cloneCounselor(best), nil
}

func (r *MockCounselorRepo) Release(ctx context.Context, tx repository.Tx, id string) error {
	return r.mutate(id, func(c *model.Counselor) { c.Status = model.CounselorAvailable })
}

func (r *MockCounselorRepo) SetRating(ctx context.Context, tx repository.Tx, id string, rating float64) error {
	if r.SetRatingFunc != nil {
		return r.SetRatingFunc(ctx, tx, id, rating)
	}
	return r.mutate(id, func(c *model.Counselor) { c.Rating = rating })
}

func (r *MockCounselorRepo) SetPresence(ctx context.Context, tx repository.Tx, id string, online bool, status model.CounselorStatus) error {
	return r.mutate(id, func(c *model.Counselor) {
		c.IsOnline = online
		c.Status = status
	})
}

func (r *MockCounselorRepo) mutate(id string, fn func(c *model.Counselor)) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	c, ok := r.st.counselors[id]
	if !ok {
		return domain.ErrCounselorNotFound
	}
	fn(c)
	return nil
}

// =============================
// Users
// =============================

type MockUserRepo struct {
	st *memStore

	FindByIDFunc func(ctx context.Context, tx repository.Tx, id string) (*model.User, error)
}

var _ repository.UserRepository = (*MockUserRepo)(nil)

func (r *MockUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	cp := *u
	r.st.users[u.ID] = &cp
	return nil
}

func (r *MockUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	if r.FindByIDFunc != nil {
		return r.FindByIDFunc(ctx, tx, id)
	}
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	u, ok := r.st.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *MockUserRepo) FindByEmail(ctx context.Context, tx repository.Tx, email string) (*model.User, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	for _, u := range r.st.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

// =============================
// Transactions
// =============================

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs fn immediately with NoTX unless WithTxFunc is set.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// snapshotTx makes WithTx roll the store back when fn fails, which is what
// lets tests assert "no partial side effects".
func snapshotTx(st *memStore) func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	var serial sync.Mutex
	return func(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
		serial.Lock()
		defer serial.Unlock()

		st.mu.Lock()
		sessions := map[string]*model.ChatSession{}
		for k, v := range st.sessions {
			sessions[k] = cloneSession(v)
		}
		counselors := map[string]*model.Counselor{}
		for k, v := range st.counselors {
			counselors[k] = cloneCounselor(v)
		}
		messages := make([]*model.ChatMessage, len(st.messages))
		for i, m := range st.messages {
			messages[i] = cloneMessage(m)
		}
		st.mu.Unlock()

		if err := fn(ctx, repository.NoTX); err != nil {
			st.mu.Lock()
			st.sessions, st.counselors, st.messages = sessions, counselors, messages
			st.mu.Unlock()
			return err
		}
		return nil
	}
}

// =============================
// Adapters
// =============================

type emitted struct {
	Target  string // "session:<id>", "account:<id>" or "all"
	Event   string
	Payload any
}

type MockRelay struct {
	mu     sync.Mutex
	Events []emitted
}

var _ adapter.Relay = (*MockRelay)(nil)

func (r *MockRelay) EmitToSession(sessionID, event string, payload any) {
	r.record("session:"+sessionID, event, payload)
}
func (r *MockRelay) EmitToAccount(accountID, event string, payload any) {
	r.record("account:"+accountID, event, payload)
}
func (r *MockRelay) Broadcast(event string, payload any) { r.record("all", event, payload) }

func (r *MockRelay) record(target, event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, emitted{Target: target, Event: event, Payload: payload})
}

func (r *MockRelay) find(target, event string) (emitted, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.Events {
		if e.Target == target && e.Event == event {
			return e, true
		}
	}
	return emitted{}, false
}

// ---- In-memory Locker ----

type MockLocker struct {
	mu    sync.Mutex
	held  map[string]string
	ErrOn map[string]error
}

func NewMockLocker() *MockLocker {
	return &MockLocker{held: map[string]string{}, ErrOn: map[string]error{}}
}

var _ adapter.Locker = (*MockLocker)(nil)

func (l *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err, bad := l.ErrOn[key]; bad {
		return "", err
	}
	if tok, ok := l.held[key]; ok && tok != "" {
		return "", errors.New("locked")
	}
	tok := uuid.NewString()
	l.held[key] = tok
	return tok, nil
}

func (l *MockLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
		return nil
	}
	return errors.New("unlock token mismatch")
}

// ---- Token issuer / hasher ----

type MockTokens struct {
	Claims map[string]adapter.TokenClaims
}

func (m *MockTokens) Mint(subject string, kind model.AccountKind) (string, time.Time, error) {
	tok := "tok-" + subject
	exp := time.Now().Add(time.Hour)
	if m.Claims == nil {
		m.Claims = map[string]adapter.TokenClaims{}
	}
	m.Claims[tok] = adapter.TokenClaims{Subject: subject, Kind: kind, ExpiresAt: exp}
	return tok, exp, nil
}

func (m *MockTokens) Parse(token string) (adapter.TokenClaims, error) {
	c, ok := m.Claims[token]
	if !ok {
		return adapter.TokenClaims{}, domain.ErrInvalidToken
	}
	return c, nil
}

// plainHasher stores "hashed:<pw>".
type plainHasher struct{}

func (plainHasher) Hash(p string) (string, error) { return "hashed:" + p, nil }
func (plainHasher) Compare(h, p string) error {
	if h != "hashed:"+p {
		return domain.ErrInvalidLogin
	}
	return nil
}

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// =============================
// Fixtures
// =============================

type fixture struct {
	st         *memStore
	sessions   *MockChatSessionRepo
	messages   *MockChatMessageRepo
	counselors *MockCounselorRepo
	users      *MockUserRepo
	tm         *MockTxManager
	relay      *MockRelay
}

func newFixture() *fixture {
	st := newMemStore()
	tm := NewMockTxManager()
	tm.WithTxFunc = snapshotTx(st)
	return &fixture{
		st:         st,
		sessions:   &MockChatSessionRepo{st: st},
		messages:   &MockChatMessageRepo{st: st},
		counselors: &MockCounselorRepo{st: st},
		users:      &MockUserRepo{st: st},
		tm:         tm,
		relay:      &MockRelay{},
	}
}

func (f *fixture) addUser(email string) model.Principal {
	u, _ := model.NewUser(email, "hashed:pw", "Test", "User")
	_ = f.users.Save(context.Background(), nil, u)
	return u.Principal()
}

// addCounselor stores an online, available counselor.
func (f *fixture) addCounselor(email string, total int, createdAt time.Time) *model.Counselor {
	c := model.NewCounselor(email, "hashed:pw", "Coun", "Selor", "LIC")
	c.IsOnline = true
	c.Status = model.CounselorAvailable
	c.TotalSessions = total
	c.CreatedAt = createdAt
	_ = f.counselors.Save(context.Background(), nil, c)
	return c
}

func (f *fixture) counselor(id string) *model.Counselor {
	c, _ := f.counselors.FindByID(context.Background(), nil, id)
	return c
}

func (f *fixture) session(id string) *model.ChatSession {
	s, _ := f.sessions.FindByID(context.Background(), nil, id)
	return s
}
