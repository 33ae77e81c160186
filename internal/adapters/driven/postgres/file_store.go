package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/custodia-labs/drivelink/internal/core/domain"
	"github.com/custodia-labs/drivelink/internal/core/ports/driven"
)

// Ensure FileStore implements the interface.
var _ driven.FileStore = (*FileStore)(nil)

// FileStore implements driven.FileStore using PostgreSQL.
type FileStore struct {
	db *DB
}

// NewFileStore creates a new PostgreSQL-backed file store.
func NewFileStore(db *DB) *FileStore {
	return &FileStore{db: db}
}

// ReplaceAccountFiles swaps the account's stored files in one transaction.
func (s *FileStore) ReplaceAccountFiles(ctx context.Context, accountID string, files []*domain.SyncableFile) error {
	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM synced_files WHERE account_id = $1`, accountID); err != nil {
			return fmt.Errorf("clear files: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO synced_files (
				id, account_id, provider_file_id, name, mime_type, size, checksum,
				is_duplicate, modified_at, synced_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, f := range files {
			_, err := stmt.ExecContext(ctx,
				f.ID,
				accountID,
				f.ProviderFileID,
				f.Name,
				f.MimeType,
				f.Size,
				f.Checksum,
				f.IsDuplicate,
				nullTime(f.ModifiedAt),
				f.SyncedAt,
			)
			if err != nil {
				return fmt.Errorf("insert file %s: %w", f.ProviderFileID, err)
			}
		}
		return nil
	})
}

// ListByAccount returns the account's stored files in listing order.
func (s *FileStore) ListByAccount(ctx context.Context, accountID string) ([]*domain.SyncableFile, error) {
	query := `
		SELECT id, account_id, provider_file_id, name, mime_type, size, checksum,
		       is_duplicate, modified_at, synced_at
		FROM synced_files
		WHERE account_id = $1
		ORDER BY synced_at, name, id
	`
	rows, err := s.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}
	defer rows.Close()

	var files []*domain.SyncableFile
	for rows.Next() {
		var (
			f          domain.SyncableFile
			modifiedAt sql.NullTime
		)
		if err := rows.Scan(
			&f.ID, &f.AccountID, &f.ProviderFileID, &f.Name, &f.MimeType, &f.Size,
			&f.Checksum, &f.IsDuplicate, &modifiedAt, &f.SyncedAt,
		); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		f.ModifiedAt = timePtr(modifiedAt)
		files = append(files, &f)
	}
	return files, rows.Err()
}

// ChecksumsForUser returns the checksums held by the user's other accounts.
func (s *FileStore) ChecksumsForUser(ctx context.Context, userID, excludeAccountID string) (map[string]struct{}, error) {
	query := `
		SELECT DISTINCT f.checksum
		FROM synced_files f
		JOIN linked_accounts a ON a.id = f.account_id
		WHERE a.user_id = $1 AND f.account_id <> $2 AND f.checksum <> ''
	`
	rows, err := s.db.QueryContext(ctx, query, userID, excludeAccountID)
	if err != nil {
		return nil, fmt.Errorf("query checksums: %w", err)
	}
	defer rows.Close()

	sums := make(map[string]struct{})
	for rows.Next() {
		var sum string
		if err := rows.Scan(&sum); err != nil {
			return nil, fmt.Errorf("scan checksum: %w", err)
		}
		sums[sum] = struct{}{}
	}
	return sums, rows.Err()
}

// AccountStats lists the user's accounts with their file stats using one
// grouped LEFT JOIN, so accounts without files report zeros.
func (s *FileStore) AccountStats(ctx context.Context, userID string, status domain.AccountStatus) ([]*domain.AccountWithStats, error) {
	query := `
		SELECT a.id, a.user_id, a.provider, a.provider_account_id, a.email, a.display_name,
		       a.status, a.scopes, a.quota_used, a.quota_total, a.last_sync_at, a.created_at,
		       COUNT(f.id),
		       COUNT(f.id) FILTER (WHERE f.is_duplicate),
		       COALESCE(SUM(f.size), 0)
		FROM linked_accounts a
		LEFT JOIN synced_files f ON f.account_id = a.id
		WHERE a.user_id = $1 AND ($2::text = '' OR a.status = $2::text)
		GROUP BY a.id
		ORDER BY a.created_at, a.id
	`
	rows, err := s.db.QueryContext(ctx, query, userID, string(status))
	if err != nil {
		return nil, fmt.Errorf("query account stats: %w", err)
	}
	defer rows.Close()

	var result []*domain.AccountWithStats
	for rows.Next() {
		var (
			summary    domain.AccountSummary
			stats      domain.FileStats
			status     string
			scopes     pq.StringArray
			lastSyncAt sql.NullTime
		)
		if err := rows.Scan(
			&summary.ID, &summary.UserID, &summary.Provider, &summary.ProviderAccountID,
			&summary.Email, &summary.DisplayName, &status, &scopes,
			&summary.QuotaUsed, &summary.QuotaTotal, &lastSyncAt, &summary.CreatedAt,
			&stats.TotalFiles, &stats.DuplicateFiles, &stats.TotalSize,
		); err != nil {
			return nil, fmt.Errorf("scan account stats: %w", err)
		}
		summary.Status = domain.AccountStatus(status)
		summary.Scopes = []string(scopes)
		summary.LastSyncAt = timePtr(lastSyncAt)
		result = append(result, &domain.AccountWithStats{AccountSummary: &summary, Stats: &stats})
	}
	return result, rows.Err()
}

// FileCounts aggregates stats for the given accounts in one grouped query.
// Accounts without files are absent from the result.
func (s *FileStore) FileCounts(ctx context.Context, accountIDs []string) (map[string]domain.FileStats, error) {
	result := make(map[string]domain.FileStats, len(accountIDs))
	if len(accountIDs) == 0 {
		return result, nil
	}

	query := `
		SELECT account_id,
		       COUNT(*),
		       COUNT(*) FILTER (WHERE is_duplicate),
		       COALESCE(SUM(size), 0)
		FROM synced_files
		WHERE account_id = ANY($1)
		GROUP BY account_id
	`
	rows, err := s.db.QueryContext(ctx, query, pq.Array(accountIDs))
	if err != nil {
		return nil, fmt.Errorf("query file counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id    string
			stats domain.FileStats
		)
		if err := rows.Scan(&id, &stats.TotalFiles, &stats.DuplicateFiles, &stats.TotalSize); err != nil {
			return nil, fmt.Errorf("scan file counts: %w", err)
		}
		result[id] = stats
	}
	return result, rows.Err()
}

// DeleteByAccount removes every stored file of the account.
func (s *FileStore) DeleteByAccount(ctx context.Context, accountID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM synced_files WHERE account_id = $1`, accountID); err != nil {
		return fmt.Errorf("delete files: %w", err)
	}
	return nil
}
