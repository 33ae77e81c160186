package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/drivelink/internal/core/domain"
	"github.com/custodia-labs/drivelink/internal/core/ports/driven"
)

// rotationWriteTimeout bounds the store write for one rotation event.
const rotationWriteTimeout = 5 * time.Second

// RotationListener persists tokens the provider issues mid-operation.
// Failures are logged and never surfaced to the running operation.
type RotationListener struct {
	store  driven.CredentialStore
	logger *slog.Logger
}

// NewRotationListener creates a rotation listener writing to store.
func NewRotationListener(store driven.CredentialStore, logger *slog.Logger) *RotationListener {
	if logger == nil {
		logger = slog.Default()
	}
	return &RotationListener{
		store:  store,
		logger: logger.With("component", "token_rotation"),
	}
}

// ForAccount binds the listener to one account.
func (l *RotationListener) ForAccount(accountID string) driven.TokenRotationFunc {
	return func(ctx context.Context, token *oauth2.Token) {
		l.OnRotate(ctx, accountID, token)
	}
}

// OnRotate stores the delivered token fields for the account.
// Nothing is written once ctx is done, so a cancelled operation
// leaves the stored credentials as they were.
func (l *RotationListener) OnRotate(ctx context.Context, accountID string, token *oauth2.Token) {
	if token == nil {
		return
	}
	if ctx.Err() != nil {
		l.logger.Warn("skipping token rotation for cancelled operation",
			"account_id", accountID,
			"error", ctx.Err())
		return
	}

	update := tokenUpdateFrom(token)
	if update.IsEmpty() {
		return
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rotationWriteTimeout)
	defer cancel()

	err := l.store.UpdateTokens(writeCtx, accountID, update)
	switch {
	case err == nil:
		l.logger.Debug("persisted rotated tokens",
			"account_id", accountID,
			"access_token", update.AccessToken != nil,
			"refresh_token", update.RefreshToken != nil)
	case errors.Is(err, domain.ErrAccountRevoked):
		l.logger.Info("ignored token rotation for revoked account", "account_id", accountID)
	default:
		l.logger.Error("failed to persist rotated tokens",
			"account_id", accountID,
			"error", err)
	}
}

// tokenUpdateFrom keeps only the fields present on token.
func tokenUpdateFrom(token *oauth2.Token) driven.TokenUpdate {
	var update driven.TokenUpdate
	if token.AccessToken != "" {
		access := token.AccessToken
		update.AccessToken = &access
		if !token.Expiry.IsZero() {
			expiry := token.Expiry
			update.Expiry = &expiry
		}
	}
	if token.RefreshToken != "" {
		refresh := token.RefreshToken
		update.RefreshToken = &refresh
	}
	return update
}
