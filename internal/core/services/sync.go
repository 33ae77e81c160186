package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/drivelink/internal/core/domain"
	"github.com/custodia-labs/drivelink/internal/core/ports/driven"
	"github.com/custodia-labs/drivelink/internal/core/ports/driving"
)

// Ensure syncService implements SyncService
var _ driving.SyncService = (*syncService)(nil)

// DefaultSyncConcurrency is how many accounts SyncAll syncs at once.
const DefaultSyncConcurrency = 4

// SyncServiceConfig holds dependencies for the sync service.
type SyncServiceConfig struct {
	Accounts    driven.CredentialStore
	Files       driven.FileStore
	Storage     driven.StorageAPI
	Runner      *Runner
	Concurrency int
	Logger      *slog.Logger
}

// syncService mirrors provider file listings into the file store.
// The sync flow for one account:
//  1. List every page of files through the runner
//  2. Load checksums already held by the user's other accounts
//  3. Flag duplicates and replace the account's stored files
//  4. Record the sync time
type syncService struct {
	accounts    driven.CredentialStore
	files       driven.FileStore
	storage     driven.StorageAPI
	runner      *Runner
	concurrency int
	logger      *slog.Logger
}

// NewSyncService creates a new sync service.
func NewSyncService(cfg SyncServiceConfig) driving.SyncService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultSyncConcurrency
	}
	return &syncService{
		accounts:    cfg.Accounts,
		files:       cfg.Files,
		storage:     cfg.Storage,
		runner:      cfg.Runner,
		concurrency: concurrency,
		logger:      logger.With("component", "sync"),
	}
}

// SyncAccount synchronizes a single account.
func (s *syncService) SyncAccount(ctx context.Context, accountID string) (*driving.SyncResult, error) {
	startTime := time.Now()
	s.logger.Info("starting sync", "account_id", accountID)

	var (
		account *domain.LinkedAccount
		remote  []driven.RemoteFile
	)
	err := s.runner.Do(ctx, accountID, func(ctx context.Context, client *http.Client, acc *domain.LinkedAccount) error {
		account = acc
		pageToken := ""
		for {
			page, err := s.storage.ListFiles(ctx, client, pageToken)
			if err != nil {
				return err
			}
			remote = append(remote, page.Files...)
			if page.NextPageToken == "" {
				return nil
			}
			pageToken = page.NextPageToken
		}
	})
	if err != nil {
		s.logger.Warn("sync failed", "account_id", accountID, "error", err)
		return nil, err
	}

	seen, err := s.files.ChecksumsForUser(ctx, account.UserID, account.ID)
	if err != nil {
		return nil, fmt.Errorf("load checksums: %w", err)
	}

	now := time.Now()
	result := &driving.SyncResult{AccountID: account.ID}
	files := make([]*domain.SyncableFile, 0, len(remote))
	for _, rf := range remote {
		file := &domain.SyncableFile{
			ID:             uuid.NewString(),
			AccountID:      account.ID,
			ProviderFileID: rf.ID,
			Name:           rf.Name,
			MimeType:       rf.MimeType,
			Size:           rf.Size,
			Checksum:       rf.Checksum,
			ModifiedAt:     rf.ModifiedAt,
			SyncedAt:       now,
		}
		if rf.Checksum != "" {
			if _, dup := seen[rf.Checksum]; dup {
				file.IsDuplicate = true
				result.Duplicates++
			}
			seen[rf.Checksum] = struct{}{}
		}
		result.Files++
		result.TotalSize += rf.Size
		files = append(files, file)
	}

	if err := s.files.ReplaceAccountFiles(ctx, account.ID, files); err != nil {
		return nil, fmt.Errorf("save files: %w", err)
	}
	if err := s.accounts.UpdateLastSync(ctx, account.ID, now); err != nil {
		s.logger.Warn("failed to record sync time", "account_id", account.ID, "error", err)
	}

	s.logger.Info("sync completed",
		"account_id", account.ID,
		"files", result.Files,
		"duplicates", result.Duplicates,
		"duration", time.Since(startTime))

	return result, nil
}

// SyncUserAccount syncs an account after checking ownership.
func (s *syncService) SyncUserAccount(ctx context.Context, userID, accountID string) (*driving.SyncResult, error) {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return s.SyncAccount(ctx, accountID)
}

// SyncAll syncs every account that is not revoked.
func (s *syncService) SyncAll(ctx context.Context) ([]*driving.SyncResult, error) {
	var accounts []*domain.LinkedAccount
	for _, status := range []domain.AccountStatus{domain.AccountStatusActive, domain.AccountStatusError} {
		list, err := s.accounts.ListByStatus(ctx, status)
		if err != nil {
			return nil, fmt.Errorf("list %s accounts: %w", status, err)
		}
		accounts = append(accounts, list...)
	}

	results := make([]*driving.SyncResult, len(accounts))
	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup

	for i, acc := range accounts {
		wg.Add(1)
		go func(i int, accountID string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results[i] = &driving.SyncResult{AccountID: accountID, Error: ctx.Err().Error()}
				return
			}
			defer func() { <-sem }()

			result, err := s.SyncAccount(ctx, accountID)
			if err != nil {
				results[i] = &driving.SyncResult{AccountID: accountID, Error: err.Error()}
				return
			}
			results[i] = result
		}(i, acc.ID)
	}

	wg.Wait()
	return results, nil
}
