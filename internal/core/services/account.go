package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/custodia-labs/drivelink/internal/core/domain"
	"github.com/custodia-labs/drivelink/internal/core/ports/driven"
	"github.com/custodia-labs/drivelink/internal/core/ports/driving"
)

// Ensure accountService implements AccountService
var _ driving.AccountService = (*accountService)(nil)

// AccountServiceConfig holds dependencies for the account service.
type AccountServiceConfig struct {
	Accounts driven.CredentialStore
	Files    driven.FileStore
	Storage  driven.StorageAPI
	Runner   *Runner
	Stats    *StatsAggregator
	Logger   *slog.Logger
}

type accountService struct {
	accounts driven.CredentialStore
	files    driven.FileStore
	storage  driven.StorageAPI
	runner   *Runner
	stats    *StatsAggregator
	logger   *slog.Logger
}

// NewAccountService creates a new account service.
func NewAccountService(cfg AccountServiceConfig) driving.AccountService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	stats := cfg.Stats
	if stats == nil {
		stats = NewStatsAggregator(cfg.Accounts, cfg.Files)
	}
	return &accountService{
		accounts: cfg.Accounts,
		files:    cfg.Files,
		storage:  cfg.Storage,
		runner:   cfg.Runner,
		stats:    stats,
		logger:   logger,
	}
}

func (s *accountService) List(ctx context.Context, userID string, opts driving.StatsOptions) ([]*domain.AccountWithStats, error) {
	return s.stats.ComputeAccountStats(ctx, userID, opts)
}

func (s *accountService) Get(ctx context.Context, userID, accountID string) (*domain.AccountWithStats, error) {
	account, err := s.owned(ctx, userID, accountID)
	if err != nil {
		return nil, err
	}

	counts, err := s.stats.ComputeFileCounts(ctx, []string{account.ID})
	if err != nil {
		return nil, err
	}
	stats := counts[account.ID]

	return &domain.AccountWithStats{
		AccountSummary: account.ToSummary(),
		Stats:          &stats,
	}, nil
}

func (s *accountService) Stats(ctx context.Context, userID string) (*domain.UserStats, error) {
	return s.stats.UserTotals(ctx, userID)
}

// RefreshQuota reads the quota through the runner, so a revoked grant
// detected here flips the account to revoked like any other operation.
func (s *accountService) RefreshQuota(ctx context.Context, userID, accountID string) (*domain.AccountSummary, error) {
	if _, err := s.owned(ctx, userID, accountID); err != nil {
		return nil, err
	}

	var about *driven.StorageAbout
	err := s.runner.Do(ctx, accountID, func(ctx context.Context, client *http.Client, _ *domain.LinkedAccount) error {
		var err error
		about, err = s.storage.About(ctx, client)
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := s.accounts.UpdateQuota(ctx, accountID, about.QuotaUsed, about.QuotaTotal); err != nil {
		return nil, fmt.Errorf("update quota: %w", err)
	}

	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("reload account: %w", err)
	}
	return account.ToSummary(), nil
}

func (s *accountService) Disconnect(ctx context.Context, userID, accountID string) error {
	if _, err := s.owned(ctx, userID, accountID); err != nil {
		return err
	}
	if err := s.files.DeleteByAccount(ctx, accountID); err != nil {
		return fmt.Errorf("delete files: %w", err)
	}
	if err := s.accounts.Delete(ctx, accountID); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	s.logger.Info("disconnected storage account", "account_id", accountID, "user_id", userID)
	return nil
}

// owned loads an account and hides accounts of other users as not found.
func (s *accountService) owned(ctx context.Context, userID, accountID string) (*domain.LinkedAccount, error) {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	if account.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return account, nil
}
