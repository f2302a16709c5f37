package authgate_test

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/antarasi/authgate"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// TestIdentity is a simple implementation of Identity interface for testing
type TestIdentity struct {
	id    string
	email string
}

func (t TestIdentity) ID() string    { return t.id }
func (t TestIdentity) Email() string { return t.email }

// MockLogger implements authgate.Logger for testing
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Debug(msg string, args ...any) {
	m.Called(msg, args)
}

func (m *MockLogger) Info(msg string, args ...any) {
	m.Called(msg, args)
}

func (m *MockLogger) Warn(msg string, args ...any) {
	m.Called(msg, args)
}

func (m *MockLogger) Error(msg string, args ...any) {
	m.Called(msg, args)
}

// MockIdentityProvider implements authgate.IdentityProvider
type MockIdentityProvider struct {
	mock.Mock
}

func (m *MockIdentityProvider) VerifyIdentity(ctx context.Context, email, password string) (authgate.Identity, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(authgate.Identity), args.Error(1)
}

func (m *MockIdentityProvider) FindIdentityByID(ctx context.Context, id string) (authgate.Identity, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(authgate.Identity), args.Error(1)
}

// MockUserStore implements authgate.UserStore
type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) Create(ctx context.Context, user *authgate.User) (*authgate.User, error) {
	args := m.Called(ctx, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*authgate.User), args.Error(1)
}

func (m *MockUserStore) Find(ctx context.Context, query authgate.UserQuery) ([]*authgate.User, int, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*authgate.User), args.Int(1), args.Error(2)
}

func (m *MockUserStore) Get(ctx context.Context, id uuid.UUID) (*authgate.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*authgate.User), args.Error(1)
}

func (m *MockUserStore) GetByEmail(ctx context.Context, email string) (*authgate.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*authgate.User), args.Error(1)
}

func (m *MockUserStore) Update(ctx context.Context, user *authgate.User) (*authgate.User, error) {
	args := m.Called(ctx, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*authgate.User), args.Error(1)
}

func (m *MockUserStore) Remove(ctx context.Context, id uuid.UUID) (*authgate.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*authgate.User), args.Error(1)
}

// memoryStore is a map backed UserStore used by the flow tests
type memoryStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*authgate.User
}

func newMemoryStore() *memoryStore {
	return &memoryStore{users: map[uuid.UUID]*authgate.User{}}
}

func (s *memoryStore) Create(_ context.Context, user *authgate.User) (*authgate.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email {
			return nil, authgate.ErrEmailExists
		}
	}
	cp := *user
	s.users[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (s *memoryStore) Find(_ context.Context, q authgate.UserQuery) ([]*authgate.User, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := []*authgate.User{}
	for _, u := range s.users {
		if q.Email != "" && u.Email != q.Email {
			continue
		}
		cp := *u
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Email < all[j].Email })
	total := len(all)
	if q.Skip >= len(all) {
		return []*authgate.User{}, total, nil
	}
	all = all[q.Skip:]
	if q.Limit < len(all) {
		all = all[:q.Limit]
	}
	return all, total, nil
}

func (s *memoryStore) Get(_ context.Context, id uuid.UUID) (*authgate.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, authgate.ErrRecordNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memoryStore) GetByEmail(_ context.Context, email string) (*authgate.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, authgate.ErrRecordNotFound
}

func (s *memoryStore) Update(_ context.Context, user *authgate.User) (*authgate.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return nil, authgate.ErrRecordNotFound
	}
	cp := *user
	now := time.Now()
	cp.UpdatedAt = &now
	s.users[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (s *memoryStore) Remove(_ context.Context, id uuid.UUID) (*authgate.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, authgate.ErrRecordNotFound
	}
	delete(s.users, id)
	return u, nil
}

// manualClock is a settable Clock
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock(start time.Time) *manualClock {
	return &manualClock{now: start}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingSink collects activity events
type recordingSink struct {
	mu     sync.Mutex
	events []authgate.ActivityEvent
}

func (r *recordingSink) Record(_ context.Context, event authgate.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingSink) Events() []authgate.ActivityEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]authgate.ActivityEvent, len(r.events))
	copy(out, r.events)
	return out
}

func testConfig() authgate.AuthConfig {
	return authgate.AuthConfig{
		SigningKey:    "test-signing-key-0123456789",
		Issuer:        "feathers",
		Audience:      []string{"https://yourdomain.com"},
		TokenLifetime: time.Hour,
		BcryptCost:    4,
	}
}
