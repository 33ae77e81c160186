package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/drivelink/internal/core/domain"
	"github.com/custodia-labs/drivelink/internal/core/ports/driven"
)

var _ driven.CredentialStore = (*MockCredentialStore)(nil)

// MockCredentialStore is an in-memory CredentialStore for testing.
// It stores copies so callers never alias stored records.
type MockCredentialStore struct {
	mu       sync.RWMutex
	accounts map[string]*domain.LinkedAccount

	// UpdateTokensErr, when set, is returned by UpdateTokens.
	UpdateTokensErr error

	updateTokensCalls int
	markRevokedCalls  int
}

// NewMockCredentialStore creates a new MockCredentialStore
func NewMockCredentialStore() *MockCredentialStore {
	return &MockCredentialStore{
		accounts: make(map[string]*domain.LinkedAccount),
	}
}

func copyAccount(a *domain.LinkedAccount) *domain.LinkedAccount {
	c := *a
	if a.Scopes != nil {
		c.Scopes = append([]string(nil), a.Scopes...)
	}
	return &c
}

func (m *MockCredentialStore) Create(ctx context.Context, account *domain.LinkedAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.accounts {
		if existing.UserID == account.UserID && existing.ProviderAccountID == account.ProviderAccountID {
			return domain.ErrAlreadyExists
		}
	}
	if _, ok := m.accounts[account.ID]; ok {
		return domain.ErrAlreadyExists
	}
	now := time.Now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now
	m.accounts[account.ID] = copyAccount(account)
	return nil
}

func (m *MockCredentialStore) FindByID(ctx context.Context, id string) (*domain.LinkedAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	acc, ok := m.accounts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyAccount(acc), nil
}

func (m *MockCredentialStore) FindByUser(ctx context.Context, userID string, status domain.AccountStatus) ([]*domain.LinkedAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.LinkedAccount
	for _, acc := range m.accounts {
		if acc.UserID != userID {
			continue
		}
		if status != "" && acc.Status != status {
			continue
		}
		result = append(result, copyAccount(acc))
	}
	sortAccounts(result)
	return result, nil
}

func (m *MockCredentialStore) FindByProviderAccount(ctx context.Context, userID, providerAccountID string) (*domain.LinkedAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, acc := range m.accounts {
		if acc.UserID == userID && acc.ProviderAccountID == providerAccountID {
			return copyAccount(acc), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockCredentialStore) ListByStatus(ctx context.Context, status domain.AccountStatus) ([]*domain.LinkedAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.LinkedAccount
	for _, acc := range m.accounts {
		if acc.Status == status {
			result = append(result, copyAccount(acc))
		}
	}
	sortAccounts(result)
	return result, nil
}

func (m *MockCredentialStore) UpdateTokens(ctx context.Context, id string, update driven.TokenUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateTokensCalls++
	if m.UpdateTokensErr != nil {
		return m.UpdateTokensErr
	}
	acc, ok := m.accounts[id]
	if !ok {
		return domain.ErrNotFound
	}
	if acc.Status == domain.AccountStatusRevoked {
		return domain.ErrAccountRevoked
	}
	applyTokenUpdate(acc, update)
	return nil
}

func (m *MockCredentialStore) MarkRevoked(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markRevokedCalls++
	acc, ok := m.accounts[id]
	if !ok {
		return domain.ErrNotFound
	}
	acc.Status = domain.AccountStatusRevoked
	acc.AccessToken = ""
	acc.UpdatedAt = time.Now()
	return nil
}

func (m *MockCredentialStore) Reconnect(ctx context.Context, id string, update driven.TokenUpdate, scopes []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[id]
	if !ok {
		return domain.ErrNotFound
	}
	acc.Status = domain.AccountStatusActive
	acc.Scopes = append([]string(nil), scopes...)
	applyTokenUpdate(acc, update)
	return nil
}

func (m *MockCredentialStore) UpdateStatus(ctx context.Context, id string, status domain.AccountStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[id]
	if !ok {
		return domain.ErrNotFound
	}
	if acc.Status == domain.AccountStatusRevoked {
		return domain.ErrAccountRevoked
	}
	acc.Status = status
	acc.UpdatedAt = time.Now()
	return nil
}

func (m *MockCredentialStore) UpdateQuota(ctx context.Context, id string, used, total int64) error {
	return m.mutate(id, func(acc *domain.LinkedAccount) {
		acc.QuotaUsed = used
		acc.QuotaTotal = total
	})
}

func (m *MockCredentialStore) UpdateLastSync(ctx context.Context, id string, at time.Time) error {
	return m.mutate(id, func(acc *domain.LinkedAccount) { acc.LastSyncAt = &at })
}

func (m *MockCredentialStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.accounts, id)
	return nil
}

// UpdateTokensCalls returns how many times UpdateTokens was called.
func (m *MockCredentialStore) UpdateTokensCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.updateTokensCalls
}

// MarkRevokedCalls returns how many times MarkRevoked was called.
func (m *MockCredentialStore) MarkRevokedCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.markRevokedCalls
}

func (m *MockCredentialStore) mutate(id string, fn func(*domain.LinkedAccount)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[id]
	if !ok {
		return domain.ErrNotFound
	}
	fn(acc)
	acc.UpdatedAt = time.Now()
	return nil
}

func applyTokenUpdate(acc *domain.LinkedAccount, update driven.TokenUpdate) {
	if update.AccessToken != nil {
		acc.AccessToken = *update.AccessToken
	}
	if update.RefreshToken != nil {
		acc.RefreshToken = *update.RefreshToken
	}
	if update.Expiry != nil {
		expiry := *update.Expiry
		acc.TokenExpiry = &expiry
	}
	acc.UpdatedAt = time.Now()
}

func sortAccounts(accounts []*domain.LinkedAccount) {
	sort.Slice(accounts, func(i, j int) bool {
		if accounts[i].CreatedAt.Equal(accounts[j].CreatedAt) {
			return accounts[i].ID < accounts[j].ID
		}
		return accounts[i].CreatedAt.Before(accounts[j].CreatedAt)
	})
}
