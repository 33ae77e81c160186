package driven

import (
	"context"

	"github.com/custodia-labs/drivelink/internal/core/domain"
)

// FileStore persists the synced file collection and answers the
// aggregate queries over it.
type FileStore interface {
	// ReplaceAccountFiles replaces the account's file set in one transaction.
	ReplaceAccountFiles(ctx context.Context, accountID string, files []*domain.SyncableFile) error

	// ListByAccount lists the files of one account.
	ListByAccount(ctx context.Context, accountID string) ([]*domain.SyncableFile, error)

	// ChecksumsForUser returns the checksums of the user's files,
	// excluding the files of excludeAccountID.
	ChecksumsForUser(ctx context.Context, userID, excludeAccountID string) (map[string]struct{}, error)

	// AccountStats joins the user's accounts with their files in a single
	// grouped query. Status "" selects every account. Accounts without files
	// carry zero stats. Results never include tokens.
	AccountStats(ctx context.Context, userID string, status domain.AccountStatus) ([]*domain.AccountWithStats, error)

	// FileCounts computes stats for an explicit id set in a single grouped query.
	// Ids without files are absent from the result.
	FileCounts(ctx context.Context, accountIDs []string) (map[string]domain.FileStats, error)

	// DeleteByAccount removes all files of an account.
	DeleteByAccount(ctx context.Context, accountID string) error
}
