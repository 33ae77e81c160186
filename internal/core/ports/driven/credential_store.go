package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/drivelink/internal/core/domain"
)

// TokenUpdate carries freshly issued provider tokens.
// A nil field was not delivered and must be left untouched.
type TokenUpdate struct {
	AccessToken  *string
	RefreshToken *string
	Expiry       *time.Time
}

// IsEmpty reports whether the update carries nothing to persist.
func (u TokenUpdate) IsEmpty() bool {
	return u.AccessToken == nil && u.RefreshToken == nil && u.Expiry == nil
}

// CredentialStore persists linked accounts and their tokens.
// All operations are atomic at the single-account level.
type CredentialStore interface {
	// Create stores a new linked account.
	// Returns domain.ErrAlreadyExists if the user already linked this provider account.
	Create(ctx context.Context, account *domain.LinkedAccount) error

	// FindByID retrieves an account with its tokens.
	// Returns domain.ErrNotFound if the account doesn't exist.
	FindByID(ctx context.Context, id string) (*domain.LinkedAccount, error)

	// FindByUser lists a user's accounts, optionally filtered by status ("" for all).
	FindByUser(ctx context.Context, userID string, status domain.AccountStatus) ([]*domain.LinkedAccount, error)

	// FindByProviderAccount retrieves the user's account for a provider account id.
	// Returns domain.ErrNotFound if the user never linked it.
	FindByProviderAccount(ctx context.Context, userID, providerAccountID string) (*domain.LinkedAccount, error)

	// ListByStatus lists accounts of every user with the given status.
	ListByStatus(ctx context.Context, status domain.AccountStatus) ([]*domain.LinkedAccount, error)

	// UpdateTokens persists the delivered token fields.
	// A revoked account is never updated: it returns domain.ErrAccountRevoked
	// so a late rotation cannot overwrite a detected revocation.
	UpdateTokens(ctx context.Context, id string, update TokenUpdate) error

	// MarkRevoked sets status=revoked and clears the access token.
	MarkRevoked(ctx context.Context, id string) error

	// Reconnect reactivates an account with tokens from a new consent.
	Reconnect(ctx context.Context, id string, update TokenUpdate, scopes []string) error

	// UpdateStatus sets the connection status without touching tokens.
	// A revoked account keeps its status and domain.ErrAccountRevoked is
	// returned; only Reconnect leaves the revoked state.
	UpdateStatus(ctx context.Context, id string, status domain.AccountStatus) error

	// UpdateQuota refreshes the advisory quota counters.
	UpdateQuota(ctx context.Context, id string, used, total int64) error

	// UpdateLastSync records the time of the last completed file sync.
	UpdateLastSync(ctx context.Context, id string, at time.Time) error

	// Delete removes an account. Only used on explicit user request.
	Delete(ctx context.Context, id string) error
}
