package driving

import (
	"context"

	"github.com/custodia-labs/drivelink/internal/core/domain"
)

// StatsOptions selects what ListAccounts returns.
type StatsOptions struct {
	IncludeStats bool
	// Status filters accounts; "" returns all of them.
	Status domain.AccountStatus
}

// AccountService manages a user's linked accounts.
// Every method enforces that the account belongs to userID.
type AccountService interface {
	// List returns the user's accounts, with file stats if requested.
	List(ctx context.Context, userID string, opts StatsOptions) ([]*domain.AccountWithStats, error)

	// Get returns one account of the user.
	Get(ctx context.Context, userID, accountID string) (*domain.AccountWithStats, error)

	// Stats returns totals across all of the user's accounts.
	Stats(ctx context.Context, userID string) (*domain.UserStats, error)

	// RefreshQuota reads the current quota from the provider.
	RefreshQuota(ctx context.Context, userID, accountID string) (*domain.AccountSummary, error)

	// Disconnect deletes the account and its files.
	Disconnect(ctx context.Context, userID, accountID string) error
}

// SyncResult reports the outcome of one account sync.
type SyncResult struct {
	AccountID  string `json:"account_id"`
	Files      int    `json:"files"`
	Duplicates int    `json:"duplicates"`
	TotalSize  int64  `json:"total_size"`
	Error      string `json:"error,omitempty"`
}

// SyncService mirrors provider file listings into the file store.
type SyncService interface {
	// SyncAccount lists the account's files and replaces the stored set.
	SyncAccount(ctx context.Context, accountID string) (*SyncResult, error)

	// SyncUserAccount syncs an account after checking it belongs to userID.
	SyncUserAccount(ctx context.Context, userID, accountID string) (*SyncResult, error)

	// SyncAll syncs every active account. Per-account failures are reported
	// in the results, not as an error.
	SyncAll(ctx context.Context) ([]*SyncResult, error)
}
