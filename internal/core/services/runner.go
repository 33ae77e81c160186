package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/drivelink/internal/core/domain"
	"github.com/custodia-labs/drivelink/internal/core/ports/driven"
)

// Operation is a unit of provider work run with an account's credentials.
// The account passed in is a snapshot; tokens must be read from client only.
type Operation func(ctx context.Context, client *http.Client, account *domain.LinkedAccount) error

// RunnerConfig holds dependencies for the auth-wrapped operation runner.
type RunnerConfig struct {
	Accounts driven.CredentialStore
	Provider driven.ProviderClient
	Rotation *RotationListener
	Logger   *slog.Logger
}

// Runner executes provider operations on behalf of a linked account.
// It refuses revoked accounts, wires token rotation into the client,
// and marks the account revoked when the provider reports the grant gone.
type Runner struct {
	accounts driven.CredentialStore
	provider driven.ProviderClient
	rotation *RotationListener
	logger   *slog.Logger
}

// NewRunner creates a new runner.
func NewRunner(cfg RunnerConfig) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rotation := cfg.Rotation
	if rotation == nil {
		rotation = NewRotationListener(cfg.Accounts, logger)
	}
	return &Runner{
		accounts: cfg.Accounts,
		provider: cfg.Provider,
		rotation: rotation,
		logger:   logger.With("component", "runner"),
	}
}

// Do runs op for the account. The account status is re-read on every call.
//
// Errors:
//   - *domain.AuthError (KindAccountNotFound) if the account does not exist
//   - *domain.AuthError (KindAccountRevoked) if it was revoked earlier; op is not called
//   - *domain.AuthError (KindTokenExpired) if op failed because the grant is gone
//   - op's own error otherwise
func (r *Runner) Do(ctx context.Context, accountID string, op Operation) error {
	account, err := r.accounts.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &domain.AuthError{Kind: domain.KindAccountNotFound, AccountID: accountID}
		}
		return fmt.Errorf("load account: %w", err)
	}

	if account.IsRevoked() {
		return &domain.AuthError{
			Kind:         domain.KindAccountRevoked,
			AccountID:    account.ID,
			AccountEmail: account.Email,
		}
	}

	client := r.provider.Client(ctx, accountToken(account), r.rotation.ForAccount(account.ID))

	opErr := op(ctx, client, account)
	if opErr == nil {
		if account.Status == domain.AccountStatusError {
			r.setStatus(ctx, account.ID, domain.AccountStatusActive)
		}
		return nil
	}

	// A cancelled caller says nothing about the grant.
	if ctx.Err() != nil {
		return opErr
	}

	switch Classify(opErr) {
	case ClassPermanentRevocation:
		if err := r.accounts.MarkRevoked(context.WithoutCancel(ctx), account.ID); err != nil {
			r.logger.Error("failed to mark account revoked",
				"account_id", account.ID,
				"error", err)
		} else {
			r.logger.Warn("account access revoked by provider",
				"account_id", account.ID,
				"email", account.Email,
				"error", opErr)
		}
		return &domain.AuthError{
			Kind:         domain.KindTokenExpired,
			AccountID:    account.ID,
			AccountEmail: account.Email,
			Err:          opErr,
		}
	case ClassTransient:
		if account.Status == domain.AccountStatusActive {
			r.setStatus(ctx, account.ID, domain.AccountStatusError)
		}
	}

	return opErr
}

func (r *Runner) setStatus(ctx context.Context, accountID string, status domain.AccountStatus) {
	err := r.accounts.UpdateStatus(context.WithoutCancel(ctx), accountID, status)
	if err != nil && !errors.Is(err, domain.ErrAccountRevoked) {
		r.logger.Warn("failed to update account status",
			"account_id", accountID,
			"status", status,
			"error", err)
	}
}

func accountToken(account *domain.LinkedAccount) *oauth2.Token {
	token := &oauth2.Token{
		AccessToken:  account.AccessToken,
		RefreshToken: account.RefreshToken,
		TokenType:    "Bearer",
	}
	if account.TokenExpiry != nil {
		token.Expiry = *account.TokenExpiry
	}
	return token
}
