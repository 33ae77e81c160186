package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/custodia-labs/drivelink/internal/core/domain"
	"github.com/custodia-labs/drivelink/internal/core/ports/driven"
)

// Ensure FileStore implements the interface.
var _ driven.FileStore = (*FileStore)(nil)

// insertBatchSize bounds the rows per INSERT statement.
const insertBatchSize = 200

// FileStore implements driven.FileStore on gorm.
type FileStore struct {
	db *gorm.DB
}

// NewFileStore creates a SQLite-backed file store.
func NewFileStore(db *gorm.DB) *FileStore {
	return &FileStore{db: db}
}

// ReplaceAccountFiles swaps the account's stored files in one transaction.
func (s *FileStore) ReplaceAccountFiles(ctx context.Context, accountID string, files []*domain.SyncableFile) error {
	records := make([]fileRecord, 0, len(files))
	for _, f := range files {
		records = append(records, fileRecord{
			ID:             f.ID,
			AccountID:      accountID,
			ProviderFileID: f.ProviderFileID,
			Name:           f.Name,
			MimeType:       f.MimeType,
			Size:           f.Size,
			Checksum:       f.Checksum,
			IsDuplicate:    f.IsDuplicate,
			ModifiedAt:     f.ModifiedAt,
			SyncedAt:       f.SyncedAt,
		})
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("account_id = ?", accountID).Delete(&fileRecord{}).Error; err != nil {
			return fmt.Errorf("clear files: %w", err)
		}
		if len(records) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(records, insertBatchSize).Error; err != nil {
			return fmt.Errorf("insert files: %w", err)
		}
		return nil
	})
}

// ListByAccount returns the account's stored files.
func (s *FileStore) ListByAccount(ctx context.Context, accountID string) ([]*domain.SyncableFile, error) {
	var records []fileRecord
	err := s.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("synced_at, name, id").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}

	files := make([]*domain.SyncableFile, 0, len(records))
	for _, r := range records {
		files = append(files, &domain.SyncableFile{
			ID:             r.ID,
			AccountID:      r.AccountID,
			ProviderFileID: r.ProviderFileID,
			Name:           r.Name,
			MimeType:       r.MimeType,
			Size:           r.Size,
			Checksum:       r.Checksum,
			IsDuplicate:    r.IsDuplicate,
			ModifiedAt:     r.ModifiedAt,
			SyncedAt:       r.SyncedAt,
		})
	}
	return files, nil
}

// ChecksumsForUser returns the checksums held by the user's other accounts.
func (s *FileStore) ChecksumsForUser(ctx context.Context, userID, excludeAccountID string) (map[string]struct{}, error) {
	var list []string
	err := s.db.WithContext(ctx).
		Table("synced_files AS f").
		Joins("JOIN linked_accounts a ON a.id = f.account_id").
		Where("a.user_id = ? AND f.account_id <> ? AND f.checksum <> ''", userID, excludeAccountID).
		Distinct().
		Pluck("f.checksum", &list).Error
	if err != nil {
		return nil, fmt.Errorf("query checksums: %w", err)
	}

	sums := make(map[string]struct{}, len(list))
	for _, sum := range list {
		sums[sum] = struct{}{}
	}
	return sums, nil
}

// statsRow is one row of the grouped accounts-with-files join.
type statsRow struct {
	ID                string
	UserID            string
	Provider          string
	ProviderAccountID string
	Email             string
	DisplayName       string
	Status            string
	Scopes            string
	QuotaUsed         int64
	QuotaTotal        int64
	LastSyncAt        *time.Time
	CreatedAt         time.Time
	TotalFiles        int64
	DuplicateFiles    int64
	TotalSize         int64
}

// AccountStats lists the user's accounts with their file stats in one grouped LEFT JOIN.
func (s *FileStore) AccountStats(ctx context.Context, userID string, status domain.AccountStatus) ([]*domain.AccountWithStats, error) {
	query := s.db.WithContext(ctx).
		Table("linked_accounts AS a").
		Select(`a.id, a.user_id, a.provider, a.provider_account_id, a.email, a.display_name,
			a.status, a.scopes, a.quota_used, a.quota_total, a.last_sync_at, a.created_at,
			COUNT(f.id) AS total_files,
			COALESCE(SUM(CASE WHEN f.is_duplicate THEN 1 ELSE 0 END), 0) AS duplicate_files,
			COALESCE(SUM(f.size), 0) AS total_size`).
		Joins("LEFT JOIN synced_files f ON f.account_id = a.id").
		Where("a.user_id = ?", userID)
	if status != "" {
		query = query.Where("a.status = ?", string(status))
	}

	var rows []statsRow
	if err := query.Group("a.id").Order("a.created_at, a.id").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("query account stats: %w", err)
	}

	result := make([]*domain.AccountWithStats, 0, len(rows))
	for _, r := range rows {
		var scopes []string
		if r.Scopes != "" {
			if err := json.Unmarshal([]byte(r.Scopes), &scopes); err != nil {
				return nil, fmt.Errorf("decode scopes for %s: %w", r.ID, err)
			}
		}
		result = append(result, &domain.AccountWithStats{
			AccountSummary: &domain.AccountSummary{
				ID:                r.ID,
				UserID:            r.UserID,
				Provider:          r.Provider,
				ProviderAccountID: r.ProviderAccountID,
				Email:             r.Email,
				DisplayName:       r.DisplayName,
				Status:            domain.AccountStatus(r.Status),
				Scopes:            scopes,
				QuotaUsed:         r.QuotaUsed,
				QuotaTotal:        r.QuotaTotal,
				LastSyncAt:        r.LastSyncAt,
				CreatedAt:         r.CreatedAt,
			},
			Stats: &domain.FileStats{
				TotalFiles:     r.TotalFiles,
				DuplicateFiles: r.DuplicateFiles,
				TotalSize:      r.TotalSize,
			},
		})
	}
	return result, nil
}

// FileCounts aggregates stats for the given accounts in one grouped query.
func (s *FileStore) FileCounts(ctx context.Context, accountIDs []string) (map[string]domain.FileStats, error) {
	result := make(map[string]domain.FileStats, len(accountIDs))
	if len(accountIDs) == 0 {
		return result, nil
	}

	var rows []struct {
		AccountID      string
		TotalFiles     int64
		DuplicateFiles int64
		TotalSize      int64
	}
	err := s.db.WithContext(ctx).
		Model(&fileRecord{}).
		Select(`account_id,
			COUNT(*) AS total_files,
			COALESCE(SUM(CASE WHEN is_duplicate THEN 1 ELSE 0 END), 0) AS duplicate_files,
			COALESCE(SUM(size), 0) AS total_size`).
		Where("account_id IN ?", accountIDs).
		Group("account_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query file counts: %w", err)
	}

	for _, r := range rows {
		result[r.AccountID] = domain.FileStats{
			TotalFiles:     r.TotalFiles,
			DuplicateFiles: r.DuplicateFiles,
			TotalSize:      r.TotalSize,
		}
	}
	return result, nil
}

// DeleteByAccount removes every stored file of the account.
func (s *FileStore) DeleteByAccount(ctx context.Context, accountID string) error {
	if err := s.db.WithContext(ctx).Where("account_id = ?", accountID).Delete(&fileRecord{}).Error; err != nil {
		return fmt.Errorf("delete files: %w", err)
	}
	return nil
}
