package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/custodia-labs/drivelink/internal/adapters/driven/secrets"
	"github.com/custodia-labs/drivelink/internal/core/domain"
	"github.com/custodia-labs/drivelink/internal/core/ports/driven"
)

// Ensure AccountStore implements the interface.
var _ driven.CredentialStore = (*AccountStore)(nil)

// AccountStore implements driven.CredentialStore on gorm.
type AccountStore struct {
	db        *gorm.DB
	encryptor *secrets.Encryptor
}

// NewAccountStore creates a SQLite-backed credential store.
func NewAccountStore(db *gorm.DB, encryptor *secrets.Encryptor) *AccountStore {
	return &AccountStore{
		db:        db,
		encryptor: encryptor,
	}
}

// Create stores a new linked account.
func (s *AccountStore) Create(ctx context.Context, account *domain.LinkedAccount) error {
	record, err := s.toRecord(account)
	if err != nil {
		return err
	}

	now := time.Now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("insert account: %w", err)
	}
	account.CreatedAt = record.CreatedAt
	account.UpdatedAt = record.UpdatedAt
	return nil
}

// FindByID retrieves an account with its tokens.
func (s *AccountStore) FindByID(ctx context.Context, id string) (*domain.LinkedAccount, error) {
	var record accountRecord
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&record).Error; err != nil {
		return nil, notFound(err, "find account")
	}
	return s.toDomain(&record)
}

// FindByUser lists a user's accounts, optionally filtered by status.
func (s *AccountStore) FindByUser(ctx context.Context, userID string, status domain.AccountStatus) ([]*domain.LinkedAccount, error) {
	query := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if status != "" {
		query = query.Where("status = ?", string(status))
	}
	return s.findAll(query)
}

// FindByProviderAccount retrieves the user's account for a provider account id.
func (s *AccountStore) FindByProviderAccount(ctx context.Context, userID, providerAccountID string) (*domain.LinkedAccount, error) {
	var record accountRecord
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND provider_account_id = ?", userID, providerAccountID).
		First(&record).Error
	if err != nil {
		return nil, notFound(err, "find account")
	}
	return s.toDomain(&record)
}

// ListByStatus lists accounts of every user with the given status.
func (s *AccountStore) ListByStatus(ctx context.Context, status domain.AccountStatus) ([]*domain.LinkedAccount, error) {
	return s.findAll(s.db.WithContext(ctx).Where("status = ?", string(status)))
}

// UpdateTokens persists the delivered token fields unless the account is revoked.
func (s *AccountStore) UpdateTokens(ctx context.Context, id string, update driven.TokenUpdate) error {
	if update.IsEmpty() {
		return nil
	}
	updates, err := s.tokenColumns(update)
	if err != nil {
		return err
	}
	updates["updated_at"] = time.Now()

	result := s.db.WithContext(ctx).Model(&accountRecord{}).
		Where("id = ? AND status <> ?", id, string(domain.AccountStatusRevoked)).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("update tokens: %w", result.Error)
	}
	return s.checkGuardedUpdate(ctx, result.RowsAffected, id)
}

// MarkRevoked sets status=revoked and clears the access token.
func (s *AccountStore) MarkRevoked(ctx context.Context, id string) error {
	return s.updateOne(ctx, "mark revoked", id, map[string]any{
		"status":            string(domain.AccountStatusRevoked),
		"access_token_blob": nil,
		"updated_at":        time.Now(),
	})
}

// Reconnect reactivates an account with tokens from a new consent.
func (s *AccountStore) Reconnect(ctx context.Context, id string, update driven.TokenUpdate, scopes []string) error {
	updates, err := s.tokenColumns(update)
	if err != nil {
		return err
	}
	if scopes == nil {
		scopes = []string{}
	}
	updates["status"] = string(domain.AccountStatusActive)
	updates["scopes"] = gorm.Expr("?", scopesJSON(scopes))
	updates["updated_at"] = time.Now()
	return s.updateOne(ctx, "reconnect account", id, updates)
}

// UpdateStatus sets the connection status. Revoked accounts are left alone.
func (s *AccountStore) UpdateStatus(ctx context.Context, id string, status domain.AccountStatus) error {
	result := s.db.WithContext(ctx).Model(&accountRecord{}).
		Where("id = ? AND status <> ?", id, string(domain.AccountStatusRevoked)).
		Updates(map[string]any{"status": string(status), "updated_at": time.Now()})
	if result.Error != nil {
		return fmt.Errorf("update status: %w", result.Error)
	}
	return s.checkGuardedUpdate(ctx, result.RowsAffected, id)
}

// UpdateQuota refreshes the advisory quota counters.
func (s *AccountStore) UpdateQuota(ctx context.Context, id string, used, total int64) error {
	return s.updateOne(ctx, "update quota", id, map[string]any{
		"quota_used":  used,
		"quota_total": total,
		"updated_at":  time.Now(),
	})
}

// UpdateLastSync records the time of the last completed file sync.
func (s *AccountStore) UpdateLastSync(ctx context.Context, id string, at time.Time) error {
	return s.updateOne(ctx, "update last sync", id, map[string]any{
		"last_sync_at": at,
		"updated_at":   time.Now(),
	})
}

// Delete removes an account together with its files.
func (s *AccountStore) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("account_id = ?", id).Delete(&fileRecord{}).Error; err != nil {
			return fmt.Errorf("delete files: %w", err)
		}
		result := tx.Where("id = ?", id).Delete(&accountRecord{})
		if result.Error != nil {
			return fmt.Errorf("delete account: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

func (s *AccountStore) updateOne(ctx context.Context, op, id string, updates map[string]any) error {
	result := s.db.WithContext(ctx).Model(&accountRecord{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("%s: %w", op, result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// checkGuardedUpdate tells a missing account apart from a revoked one.
func (s *AccountStore) checkGuardedUpdate(ctx context.Context, affected int64, id string) error {
	if affected > 0 {
		return nil
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&accountRecord{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("check account status: %w", err)
	}
	if count == 0 {
		return domain.ErrNotFound
	}
	return domain.ErrAccountRevoked
}

// tokenColumns encrypts the delivered token fields into column updates.
func (s *AccountStore) tokenColumns(update driven.TokenUpdate) (map[string]any, error) {
	updates := make(map[string]any)
	if update.AccessToken != nil && *update.AccessToken != "" {
		blob, err := s.encryptor.Seal(*update.AccessToken)
		if err != nil {
			return nil, fmt.Errorf("encrypt access token: %w", err)
		}
		updates["access_token_blob"] = blob
	}
	if update.RefreshToken != nil && *update.RefreshToken != "" {
		blob, err := s.encryptor.Seal(*update.RefreshToken)
		if err != nil {
			return nil, fmt.Errorf("encrypt refresh token: %w", err)
		}
		updates["refresh_token_blob"] = blob
	}
	if update.Expiry != nil {
		updates["token_expiry"] = *update.Expiry
	}
	return updates, nil
}

func (s *AccountStore) findAll(query *gorm.DB) ([]*domain.LinkedAccount, error) {
	var records []accountRecord
	if err := query.Order("created_at, id").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	accounts := make([]*domain.LinkedAccount, 0, len(records))
	for i := range records {
		account, err := s.toDomain(&records[i])
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

func (s *AccountStore) toRecord(account *domain.LinkedAccount) (*accountRecord, error) {
	accessBlob, err := s.encryptor.Seal(account.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("encrypt access token: %w", err)
	}
	refreshBlob, err := s.encryptor.Seal(account.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("encrypt refresh token: %w", err)
	}
	scopes := account.Scopes
	if scopes == nil {
		scopes = []string{}
	}
	return &accountRecord{
		ID:                account.ID,
		UserID:            account.UserID,
		Provider:          account.Provider,
		ProviderAccountID: account.ProviderAccountID,
		Email:             account.Email,
		DisplayName:       account.DisplayName,
		Status:            string(account.Status),
		Scopes:            scopes,
		AccessTokenBlob:   accessBlob,
		RefreshTokenBlob:  refreshBlob,
		TokenExpiry:       account.TokenExpiry,
		QuotaUsed:         account.QuotaUsed,
		QuotaTotal:        account.QuotaTotal,
		LastSyncAt:        account.LastSyncAt,
		CreatedAt:         account.CreatedAt,
	}, nil
}

func (s *AccountStore) toDomain(record *accountRecord) (*domain.LinkedAccount, error) {
	account := &domain.LinkedAccount{
		ID:                record.ID,
		UserID:            record.UserID,
		Provider:          record.Provider,
		ProviderAccountID: record.ProviderAccountID,
		Email:             record.Email,
		DisplayName:       record.DisplayName,
		Status:            domain.AccountStatus(record.Status),
		Scopes:            record.Scopes,
		TokenExpiry:       record.TokenExpiry,
		QuotaUsed:         record.QuotaUsed,
		QuotaTotal:        record.QuotaTotal,
		LastSyncAt:        record.LastSyncAt,
		CreatedAt:         record.CreatedAt,
		UpdatedAt:         record.UpdatedAt,
	}

	var err error
	if account.AccessToken, err = s.encryptor.Open(record.AccessTokenBlob); err != nil {
		return nil, fmt.Errorf("decrypt access token for %s: %w", record.ID, err)
	}
	if account.RefreshToken, err = s.encryptor.Open(record.RefreshTokenBlob); err != nil {
		return nil, fmt.Errorf("decrypt refresh token for %s: %w", record.ID, err)
	}
	return account, nil
}

// scopesJSON matches the json serializer on accountRecord.Scopes.
func scopesJSON(scopes []string) string {
	raw, _ := json.Marshal(scopes)
	return string(raw)
}

func notFound(err error, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
