package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/custodia-labs/drivelink/internal/adapters/driven/secrets"
	"github.com/custodia-labs/drivelink/internal/core/domain"
	"github.com/custodia-labs/drivelink/internal/core/ports/driven"
)

// Ensure AccountStore implements the interface.
var _ driven.CredentialStore = (*AccountStore)(nil)

// accountColumns is the column list every account query selects.
const accountColumns = `
	id, user_id, provider, provider_account_id, email, display_name, status, scopes,
	access_token_blob, refresh_token_blob, token_expiry, quota_used, quota_total,
	last_sync_at, created_at, updated_at`

// AccountStore implements driven.CredentialStore using PostgreSQL.
// Tokens are stored encrypted; every write is a single statement.
type AccountStore struct {
	db        *DB
	encryptor *secrets.Encryptor
}

// NewAccountStore creates a new PostgreSQL-backed credential store.
func NewAccountStore(db *DB, encryptor *secrets.Encryptor) *AccountStore {
	return &AccountStore{
		db:        db,
		encryptor: encryptor,
	}
}

// Create stores a new linked account.
func (s *AccountStore) Create(ctx context.Context, account *domain.LinkedAccount) error {
	accessBlob, err := s.encryptor.Seal(account.AccessToken)
	if err != nil {
		return fmt.Errorf("encrypt access token: %w", err)
	}
	refreshBlob, err := s.encryptor.Seal(account.RefreshToken)
	if err != nil {
		return fmt.Errorf("encrypt refresh token: %w", err)
	}

	now := time.Now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now

	query := `
		INSERT INTO linked_accounts (
			id, user_id, provider, provider_account_id, email, display_name, status, scopes,
			access_token_blob, refresh_token_blob, token_expiry, quota_used, quota_total,
			last_sync_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err = s.db.ExecContext(ctx, query,
		account.ID,
		account.UserID,
		account.Provider,
		account.ProviderAccountID,
		account.Email,
		account.DisplayName,
		account.Status,
		pq.Array(scopesOrEmpty(account.Scopes)),
		blobParam(accessBlob),
		blobParam(refreshBlob),
		nullTime(account.TokenExpiry),
		account.QuotaUsed,
		account.QuotaTotal,
		nullTime(account.LastSyncAt),
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// FindByID retrieves an account with its tokens.
func (s *AccountStore) FindByID(ctx context.Context, id string) (*domain.LinkedAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM linked_accounts WHERE id = $1`
	return s.scanOne(s.db.QueryRowContext(ctx, query, id))
}

// FindByUser lists a user's accounts, optionally filtered by status.
func (s *AccountStore) FindByUser(ctx context.Context, userID string, status domain.AccountStatus) ([]*domain.LinkedAccount, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM linked_accounts
		WHERE user_id = $1 AND ($2::text = '' OR status = $2::text)
		ORDER BY created_at, id
	`
	rows, err := s.db.QueryContext(ctx, query, userID, string(status))
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	return s.scanAll(rows)
}

// FindByProviderAccount retrieves the user's account for a provider account id.
func (s *AccountStore) FindByProviderAccount(ctx context.Context, userID, providerAccountID string) (*domain.LinkedAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM linked_accounts WHERE user_id = $1 AND provider_account_id = $2`
	return s.scanOne(s.db.QueryRowContext(ctx, query, userID, providerAccountID))
}

// ListByStatus lists accounts of every user with the given status.
func (s *AccountStore) ListByStatus(ctx context.Context, status domain.AccountStatus) ([]*domain.LinkedAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM linked_accounts WHERE status = $1 ORDER BY created_at, id`
	rows, err := s.db.QueryContext(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	return s.scanAll(rows)
}

// UpdateTokens persists the delivered token fields.
// The status guard sits in the WHERE clause, so a concurrent MarkRevoked
// either lands first and blocks the update or lands after and wins.
func (s *AccountStore) UpdateTokens(ctx context.Context, id string, update driven.TokenUpdate) error {
	if update.IsEmpty() {
		return nil
	}
	access, refresh, err := s.sealUpdate(update)
	if err != nil {
		return err
	}

	query := `
		UPDATE linked_accounts SET
			access_token_blob = COALESCE($2, access_token_blob),
			refresh_token_blob = COALESCE($3, refresh_token_blob),
			token_expiry = COALESCE($4, token_expiry),
			updated_at = NOW()
		WHERE id = $1 AND status <> 'revoked'
	`
	result, err := s.db.ExecContext(ctx, query, id, access, refresh, nullTime(update.Expiry))
	if err != nil {
		return fmt.Errorf("update tokens: %w", err)
	}
	return s.checkGuardedUpdate(ctx, result, id)
}

// MarkRevoked sets status=revoked and clears the access token.
func (s *AccountStore) MarkRevoked(ctx context.Context, id string) error {
	query := `
		UPDATE linked_accounts SET
			status = 'revoked',
			access_token_blob = NULL,
			updated_at = NOW()
		WHERE id = $1
	`
	return s.execOne(ctx, "mark revoked", query, id)
}

// Reconnect reactivates an account with tokens from a new consent.
func (s *AccountStore) Reconnect(ctx context.Context, id string, update driven.TokenUpdate, scopes []string) error {
	access, refresh, err := s.sealUpdate(update)
	if err != nil {
		return err
	}

	query := `
		UPDATE linked_accounts SET
			status = 'active',
			scopes = $2,
			access_token_blob = COALESCE($3, access_token_blob),
			refresh_token_blob = COALESCE($4, refresh_token_blob),
			token_expiry = COALESCE($5, token_expiry),
			updated_at = NOW()
		WHERE id = $1
	`
	return s.execOne(ctx, "reconnect account", query, id, pq.Array(scopesOrEmpty(scopes)), access, refresh, nullTime(update.Expiry))
}

// UpdateStatus sets the connection status. Revoked accounts are left alone.
func (s *AccountStore) UpdateStatus(ctx context.Context, id string, status domain.AccountStatus) error {
	query := `UPDATE linked_accounts SET status = $2, updated_at = NOW() WHERE id = $1 AND status <> 'revoked'`
	result, err := s.db.ExecContext(ctx, query, id, string(status))
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return s.checkGuardedUpdate(ctx, result, id)
}

// UpdateQuota refreshes the advisory quota counters.
func (s *AccountStore) UpdateQuota(ctx context.Context, id string, used, total int64) error {
	query := `UPDATE linked_accounts SET quota_used = $2, quota_total = $3, updated_at = NOW() WHERE id = $1`
	return s.execOne(ctx, "update quota", query, id, used, total)
}

// UpdateLastSync records the time of the last completed file sync.
func (s *AccountStore) UpdateLastSync(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE linked_accounts SET last_sync_at = $2, updated_at = NOW() WHERE id = $1`
	return s.execOne(ctx, "update last sync", query, id, at)
}

// Delete removes an account. Its files go with it (ON DELETE CASCADE).
func (s *AccountStore) Delete(ctx context.Context, id string) error {
	return s.execOne(ctx, "delete account", `DELETE FROM linked_accounts WHERE id = $1`, id)
}

func (s *AccountStore) execOne(ctx context.Context, op, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// checkGuardedUpdate tells a missing account apart from a revoked one
// when a status-guarded update touched no rows.
func (s *AccountStore) checkGuardedUpdate(ctx context.Context, result sql.Result, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}

	var status string
	err = s.db.QueryRowContext(ctx, `SELECT status FROM linked_accounts WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check account status: %w", err)
	}
	return domain.ErrAccountRevoked
}

// sealUpdate encrypts the delivered token fields. Fields not delivered
// become NULL parameters so COALESCE keeps the stored value.
func (s *AccountStore) sealUpdate(update driven.TokenUpdate) (access, refresh any, err error) {
	if update.AccessToken != nil && *update.AccessToken != "" {
		blob, err := s.encryptor.Seal(*update.AccessToken)
		if err != nil {
			return nil, nil, fmt.Errorf("encrypt access token: %w", err)
		}
		access = blob
	}
	if update.RefreshToken != nil && *update.RefreshToken != "" {
		blob, err := s.encryptor.Seal(*update.RefreshToken)
		if err != nil {
			return nil, nil, fmt.Errorf("encrypt refresh token: %w", err)
		}
		refresh = blob
	}
	return access, refresh, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *AccountStore) scanOne(row rowScanner) (*domain.LinkedAccount, error) {
	account, err := s.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (s *AccountStore) scanAll(rows *sql.Rows) ([]*domain.LinkedAccount, error) {
	defer rows.Close()

	var accounts []*domain.LinkedAccount
	for rows.Next() {
		account, err := s.scan(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return accounts, nil
}

func (s *AccountStore) scan(row rowScanner) (*domain.LinkedAccount, error) {
	var (
		account     domain.LinkedAccount
		status      string
		scopes      pq.StringArray
		accessBlob  []byte
		refreshBlob []byte
		tokenExpiry sql.NullTime
		lastSyncAt  sql.NullTime
	)

	err := row.Scan(
		&account.ID,
		&account.UserID,
		&account.Provider,
		&account.ProviderAccountID,
		&account.Email,
		&account.DisplayName,
		&status,
		&scopes,
		&accessBlob,
		&refreshBlob,
		&tokenExpiry,
		&account.QuotaUsed,
		&account.QuotaTotal,
		&lastSyncAt,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}

	account.Status = domain.AccountStatus(status)
	account.Scopes = []string(scopes)
	account.TokenExpiry = timePtr(tokenExpiry)
	account.LastSyncAt = timePtr(lastSyncAt)

	if account.AccessToken, err = s.encryptor.Open(accessBlob); err != nil {
		return nil, fmt.Errorf("decrypt access token for %s: %w", account.ID, err)
	}
	if account.RefreshToken, err = s.encryptor.Open(refreshBlob); err != nil {
		return nil, fmt.Errorf("decrypt refresh token for %s: %w", account.ID, err)
	}

	return &account, nil
}

// blobParam turns a nil blob into an untyped NULL parameter.
func blobParam(b []byte) any {
	if b == nil {
		return nil
	}
	return b
}

func scopesOrEmpty(scopes []string) []string {
	if scopes == nil {
		return []string{}
	}
	return scopes
}
