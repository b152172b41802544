package services

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MaxMateus/ms-auth/internal/database"
	"github.com/MaxMateus/ms-auth/internal/models"
)

// fakeQuerier satisfies database.Querier for unit tests. The mocks below
// never touch the querier they are handed, so every method is inert.
type fakeQuerier struct{}

func (fakeQuerier) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (fakeQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}

func (fakeQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}

// fakeUnitOfWork runs the transaction body directly against a fakeQuerier
type fakeUnitOfWork struct {
	// BeginErr fails the transaction before the body runs
	BeginErr error
}

func (f *fakeUnitOfWork) WithTransaction(ctx context.Context, fn func(q database.Querier) error) error {
	if f.BeginErr != nil {
		return f.BeginErr
	}
	return fn(fakeQuerier{})
}

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	GetByIDFunc      func(ctx context.Context, id string) (*models.User, error)
	GetByEmailFunc   func(ctx context.Context, email string) (*models.User, error)
	ExistsByEmailFunc func(ctx context.Context, email string) (bool, error)
	ExistsByCpfFunc  func(ctx context.Context, cpf string) (bool, error)
	CreateFunc       func(ctx context.Context, q database.Querier, user *models.User) (*models.User, error)
	ActivateFunc     func(ctx context.Context, q database.Querier, userID string) error
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	if m.ExistsByEmailFunc != nil {
		return m.ExistsByEmailFunc(ctx, email)
	}
	return false, nil
}

func (m *MockUserRepository) ExistsByCpf(ctx context.Context, cpf string) (bool, error) {
	if m.ExistsByCpfFunc != nil {
		return m.ExistsByCpfFunc(ctx, cpf)
	}
	return false, nil
}

func (m *MockUserRepository) Create(ctx context.Context, q database.Querier, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, q, user)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) Activate(ctx context.Context, q database.Querier, userID string) error {
	if m.ActivateFunc != nil {
		return m.ActivateFunc(ctx, q, userID)
	}
	return nil
}

// MockAccessTokenRepository implements AccessTokenRepository for testing
type MockAccessTokenRepository struct {
	CreateFunc         func(ctx context.Context, q database.Querier, token *models.AccessToken) error
	FindActiveByIDFunc func(ctx context.Context, id string) (*models.AccessToken, error)
	RevokeFunc         func(ctx context.Context, q database.Querier, id string) error
}

func (m *MockAccessTokenRepository) Create(ctx context.Context, q database.Querier, token *models.AccessToken) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, q, token)
	}
	return nil
}

func (m *MockAccessTokenRepository) FindActiveByID(ctx context.Context, id string) (*models.AccessToken, error) {
	if m.FindActiveByIDFunc != nil {
		return m.FindActiveByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccessTokenRepository) Revoke(ctx context.Context, q database.Querier, id string) error {
	if m.RevokeFunc != nil {
		return m.RevokeFunc(ctx, q, id)
	}
	return nil
}

// MockMfaCodeRepository implements MfaCodeRepository for testing
type MockMfaCodeRepository struct {
	CreateFunc           func(ctx context.Context, q database.Querier, userID string, channel models.Channel, destination, code string, expiresAt time.Time) (*models.MfaCode, error)
	InvalidateActiveFunc func(ctx context.Context, q database.Querier, userID string, channel models.Channel, destination string) error
	FindValidFunc        func(ctx context.Context, userID string, channel models.Channel, destination, code string) (*models.MfaCode, error)
	MarkConsumedFunc     func(ctx context.Context, q database.Querier, id string) error
}

func (m *MockMfaCodeRepository) Create(ctx context.Context, q database.Querier, userID string, channel models.Channel, destination, code string, expiresAt time.Time) (*models.MfaCode, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, q, userID, channel, destination, code, expiresAt)
	}
	return &models.MfaCode{
		ID:          "code-1",
		UserID:      userID,
		Channel:     channel,
		Destination: destination,
		Code:        code,
		ExpiresAt:   expiresAt,
	}, nil
}

func (m *MockMfaCodeRepository) InvalidateActive(ctx context.Context, q database.Querier, userID string, channel models.Channel, destination string) error {
	if m.InvalidateActiveFunc != nil {
		return m.InvalidateActiveFunc(ctx, q, userID, channel, destination)
	}
	return nil
}

func (m *MockMfaCodeRepository) FindValid(ctx context.Context, userID string, channel models.Channel, destination, code string) (*models.MfaCode, error) {
	if m.FindValidFunc != nil {
		return m.FindValidFunc(ctx, userID, channel, destination, code)
	}
	return nil, models.ErrNotFound
}

func (m *MockMfaCodeRepository) MarkConsumed(ctx context.Context, q database.Querier, id string) error {
	if m.MarkConsumedFunc != nil {
		return m.MarkConsumedFunc(ctx, q, id)
	}
	return nil
}

// MockMfaMethodRepository implements MfaMethodRepository for testing
type MockMfaMethodRepository struct {
	UpsertFunc      func(ctx context.Context, q database.Querier, userID string, channel models.Channel, destination string, verified bool) (*models.MfaMethod, error)
	IsVerifiedFunc  func(ctx context.Context, userID string, channel models.Channel) (bool, error)
	ListForUserFunc func(ctx context.Context, userID string) ([]*models.MfaMethod, error)
}

func (m *MockMfaMethodRepository) Upsert(ctx context.Context, q database.Querier, userID string, channel models.Channel, destination string, verified bool) (*models.MfaMethod, error) {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, q, userID, channel, destination, verified)
	}
	return &models.MfaMethod{
		ID:          "method-1",
		UserID:      userID,
		Channel:     channel,
		Destination: destination,
		Verified:    verified,
	}, nil
}

func (m *MockMfaMethodRepository) IsVerified(ctx context.Context, userID string, channel models.Channel) (bool, error) {
	if m.IsVerifiedFunc != nil {
		return m.IsVerifiedFunc(ctx, userID, channel)
	}
	return false, nil
}

func (m *MockMfaMethodRepository) ListForUser(ctx context.Context, userID string) ([]*models.MfaMethod, error) {
	if m.ListForUserFunc != nil {
		return m.ListForUserFunc(ctx, userID)
	}
	return []*models.MfaMethod{}, nil
}

// MockDispatcher implements Dispatcher for testing. Dispatched signals each
// delivery so tests can wait for the async send without sleeping.
type MockDispatcher struct {
	DispatchFunc func(ctx context.Context, channel models.Channel, destination, code string) error
	Dispatched   chan struct{}

	mu    sync.Mutex
	calls []DispatchCall
}

// DispatchCall records one Dispatch invocation
type DispatchCall struct {
	Channel     models.Channel
	Destination string
	Code        string
}

func (m *MockDispatcher) Dispatch(ctx context.Context, channel models.Channel, destination, code string) error {
	m.mu.Lock()
	m.calls = append(m.calls, DispatchCall{Channel: channel, Destination: destination, Code: code})
	m.mu.Unlock()

	var err error
	if m.DispatchFunc != nil {
		err = m.DispatchFunc(ctx, channel, destination, code)
	}
	if m.Dispatched != nil {
		m.Dispatched <- struct{}{}
	}
	return err
}

// Calls returns a copy of the recorded dispatch invocations
func (m *MockDispatcher) Calls() []DispatchCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]DispatchCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// fakeTokenCache is an in-memory TokenCache for testing
type fakeTokenCache struct {
	mu      sync.Mutex
	entries map[string]*models.TokenCacheEntry
}

func newFakeTokenCache() *fakeTokenCache {
	return &fakeTokenCache{entries: make(map[string]*models.TokenCacheEntry)}
}

func (f *fakeTokenCache) Put(ctx context.Context, entry *models.TokenCacheEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[entry.TokenID] = entry
}

func (f *fakeTokenCache) Get(ctx context.Context, tokenID string) *models.TokenCacheEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entries[tokenID]
}

func (f *fakeTokenCache) Remove(ctx context.Context, tokenID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, tokenID)
}
