package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/drivelink/internal/core/domain"
	"github.com/custodia-labs/drivelink/internal/core/ports/driven"
)

var _ driven.FileStore = (*MockFileStore)(nil)

// MockFileStore is an in-memory FileStore for testing.
// Stats queries join against the accounts held by the given credential store.
type MockFileStore struct {
	mu       sync.RWMutex
	files    map[string][]*domain.SyncableFile // accountID -> files
	accounts *MockCredentialStore

	statsCalls int
}

// NewMockFileStore creates a new MockFileStore
func NewMockFileStore(accounts *MockCredentialStore) *MockFileStore {
	return &MockFileStore{
		files:    make(map[string][]*domain.SyncableFile),
		accounts: accounts,
	}
}

func (m *MockFileStore) ReplaceAccountFiles(ctx context.Context, accountID string, files []*domain.SyncableFile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := make([]*domain.SyncableFile, 0, len(files))
	for _, f := range files {
		c := *f
		c.AccountID = accountID
		copied = append(copied, &c)
	}
	m.files[accountID] = copied
	return nil
}

func (m *MockFileStore) ListByAccount(ctx context.Context, accountID string) ([]*domain.SyncableFile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.SyncableFile, 0, len(m.files[accountID]))
	for _, f := range m.files[accountID] {
		c := *f
		result = append(result, &c)
	}
	return result, nil
}

func (m *MockFileStore) ChecksumsForUser(ctx context.Context, userID, excludeAccountID string) (map[string]struct{}, error) {
	accounts, err := m.accounts.FindByUser(ctx, userID, "")
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	sums := make(map[string]struct{})
	for _, acc := range accounts {
		if acc.ID == excludeAccountID {
			continue
		}
		for _, f := range m.files[acc.ID] {
			if f.Checksum != "" {
				sums[f.Checksum] = struct{}{}
			}
		}
	}
	return sums, nil
}

func (m *MockFileStore) AccountStats(ctx context.Context, userID string, status domain.AccountStatus) ([]*domain.AccountWithStats, error) {
	accounts, err := m.accounts.FindByUser(ctx, userID, status)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statsCalls++
	result := make([]*domain.AccountWithStats, 0, len(accounts))
	for _, acc := range accounts {
		stats := m.statsLocked(acc.ID)
		result = append(result, &domain.AccountWithStats{
			AccountSummary: acc.ToSummary(),
			Stats:          &stats,
		})
	}
	return result, nil
}

func (m *MockFileStore) FileCounts(ctx context.Context, accountIDs []string) (map[string]domain.FileStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statsCalls++
	result := make(map[string]domain.FileStats)
	for _, id := range accountIDs {
		if len(m.files[id]) == 0 {
			continue
		}
		result[id] = m.statsLocked(id)
	}
	return result, nil
}

func (m *MockFileStore) DeleteByAccount(ctx context.Context, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, accountID)
	return nil
}

// StatsCalls returns how many aggregate queries were issued.
func (m *MockFileStore) StatsCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.statsCalls
}

func (m *MockFileStore) statsLocked(accountID string) domain.FileStats {
	var stats domain.FileStats
	for _, f := range m.files[accountID] {
		stats.TotalFiles++
		stats.TotalSize += f.Size
		if f.IsDuplicate {
			stats.DuplicateFiles++
		}
	}
	return stats
}
