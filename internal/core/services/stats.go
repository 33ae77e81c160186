package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/drivelink/internal/core/domain"
	"github.com/custodia-labs/drivelink/internal/core/ports/driven"
	"github.com/custodia-labs/drivelink/internal/core/ports/driving"
)

// StatsAggregator computes per-account file statistics.
// Each call issues at most one aggregate query against the file store.
type StatsAggregator struct {
	accounts driven.CredentialStore
	files    driven.FileStore
}

// NewStatsAggregator creates a new stats aggregator.
func NewStatsAggregator(accounts driven.CredentialStore, files driven.FileStore) *StatsAggregator {
	return &StatsAggregator{accounts: accounts, files: files}
}

// ComputeAccountStats lists the user's accounts, optionally with file stats.
func (a *StatsAggregator) ComputeAccountStats(ctx context.Context, userID string, opts driving.StatsOptions) ([]*domain.AccountWithStats, error) {
	if opts.Status != "" && !opts.Status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, opts.Status)
	}

	if opts.IncludeStats {
		result, err := a.files.AccountStats(ctx, userID, opts.Status)
		if err != nil {
			return nil, fmt.Errorf("account stats: %w", err)
		}
		return result, nil
	}

	accounts, err := a.accounts.FindByUser(ctx, userID, opts.Status)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	result := make([]*domain.AccountWithStats, 0, len(accounts))
	for _, acc := range accounts {
		result = append(result, &domain.AccountWithStats{AccountSummary: acc.ToSummary()})
	}
	return result, nil
}

// ComputeFileCounts returns stats for each id; ids without files map to zeros.
func (a *StatsAggregator) ComputeFileCounts(ctx context.Context, accountIDs []string) (map[string]domain.FileStats, error) {
	result := make(map[string]domain.FileStats, len(accountIDs))
	if len(accountIDs) == 0 {
		return result, nil
	}

	unique := make([]string, 0, len(accountIDs))
	for _, id := range accountIDs {
		if _, ok := result[id]; ok {
			continue
		}
		result[id] = domain.FileStats{}
		unique = append(unique, id)
	}

	counts, err := a.files.FileCounts(ctx, unique)
	if err != nil {
		return nil, fmt.Errorf("file counts: %w", err)
	}
	for id, stats := range counts {
		if _, ok := result[id]; ok {
			result[id] = stats
		}
	}
	return result, nil
}

// UserTotals sums quota and file stats across all of the user's accounts.
func (a *StatsAggregator) UserTotals(ctx context.Context, userID string) (*domain.UserStats, error) {
	accounts, err := a.files.AccountStats(ctx, userID, "")
	if err != nil {
		return nil, fmt.Errorf("account stats: %w", err)
	}

	totals := &domain.UserStats{UserID: userID}
	for _, acc := range accounts {
		totals.Accounts++
		switch acc.Status {
		case domain.AccountStatusActive:
			totals.Active++
		case domain.AccountStatusRevoked:
			totals.Revoked++
		}
		totals.QuotaUsed += acc.QuotaUsed
		totals.QuotaTotal += acc.QuotaTotal
		if acc.Stats != nil {
			totals.Files.Add(*acc.Stats)
		}
	}
	return totals, nil
}
