package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/custodia-labs/drivelink/internal/core/domain"
	"github.com/custodia-labs/drivelink/internal/core/ports/driven"
	"github.com/custodia-labs/drivelink/internal/core/ports/driving"
)

// Ensure linkService implements LinkService
var _ driving.LinkService = (*linkService)(nil)

// LinkServiceConfig holds configuration for the link service.
type LinkServiceConfig struct {
	// Codec signs and verifies the authorization state.
	Codec *StateCodec

	// Nonces rejects replayed states.
	Nonces driven.NonceLedger

	// Accounts persists linked accounts.
	Accounts driven.CredentialStore

	// Provider runs the OAuth exchange.
	Provider driven.ProviderClient

	// Storage identifies the provider account behind new tokens.
	Storage driven.StorageAPI

	Logger *slog.Logger
}

// linkService implements the LinkService interface.
type linkService struct {
	codec    *StateCodec
	nonces   driven.NonceLedger
	accounts driven.CredentialStore
	provider driven.ProviderClient
	storage  driven.StorageAPI
	logger   *slog.Logger
	now      func() time.Time
}

// NewLinkService creates a new link service.
func NewLinkService(cfg LinkServiceConfig) driving.LinkService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &linkService{
		codec:    cfg.Codec,
		nonces:   cfg.Nonces,
		accounts: cfg.Accounts,
		provider: cfg.Provider,
		storage:  cfg.Storage,
		logger:   logger.With("component", "link"),
		now:      cfg.Codec.clock,
	}
}

// Authorize starts an OAuth authorization flow.
func (s *linkService) Authorize(ctx context.Context, req driving.AuthorizeRequest) (*driving.AuthorizeResponse, error) {
	if req.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrInvalidInput)
	}

	state, err := s.codec.Issue(req.UserID, req.Meta)
	if err != nil {
		return nil, fmt.Errorf("issue state: %w", err)
	}

	expiresAt := s.now().Add(s.codec.TTL())
	return &driving.AuthorizeResponse{
		AuthorizationURL: s.provider.AuthCodeURL(state),
		State:            state,
		ExpiresAt:        expiresAt.Format(time.RFC3339),
	}, nil
}

// Callback handles the OAuth callback from the provider.
// It verifies the state, consumes its nonce, exchanges the code and
// creates or reconnects the linked account.
func (s *linkService) Callback(ctx context.Context, req driving.CallbackRequest) (*driving.CallbackResponse, error) {
	state, err := s.codec.Verify(req.State)
	if err != nil {
		s.logger.Warn("rejected authorization state", "error", err)
		return nil, err
	}

	fresh, err := s.nonces.CheckAndConsume(ctx, state.Nonce)
	if err != nil {
		return nil, fmt.Errorf("consume nonce: %w", err)
	}
	if !fresh {
		s.logger.Warn("rejected replayed authorization state", "user_id", state.UserID)
		return nil, domain.ErrReplayedNonce
	}

	// Provider errors are only trusted on a state we issued.
	if req.Error != "" {
		return nil, &driving.OAuthError{
			Code:        req.Error,
			Description: req.ErrorDescription,
		}
	}

	if req.Code == "" {
		return nil, driving.ErrOAuthMissingCode
	}

	token, err := s.provider.Exchange(ctx, req.Code)
	if err != nil {
		return nil, &driving.OAuthError{
			Code:        driving.ErrOAuthExchangeFailed.Code,
			Description: err.Error(),
		}
	}

	about, err := s.storage.About(ctx, s.provider.Client(ctx, token, nil))
	if err != nil {
		return nil, &driving.OAuthError{
			Code:        driving.ErrOAuthUserInfoFailed.Code,
			Description: err.Error(),
		}
	}

	scopes := splitScopes(token)

	existing, err := s.accounts.FindByProviderAccount(ctx, state.UserID, about.AccountID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("check existing account: %w", err)
	}

	var (
		account     *domain.LinkedAccount
		reconnected bool
	)
	if existing != nil {
		account, err = s.reconnect(ctx, existing.ID, token, scopes, about)
		if err != nil {
			return nil, err
		}
		reconnected = true
	} else {
		account = &domain.LinkedAccount{
			ID:                uuid.NewString(),
			UserID:            state.UserID,
			Provider:          s.provider.Name(),
			ProviderAccountID: about.AccountID,
			Email:             about.Email,
			DisplayName:       about.DisplayName,
			Status:            domain.AccountStatusActive,
			Scopes:            scopes,
			AccessToken:       token.AccessToken,
			RefreshToken:      token.RefreshToken,
			QuotaUsed:         about.QuotaUsed,
			QuotaTotal:        about.QuotaTotal,
		}
		if !token.Expiry.IsZero() {
			expiry := token.Expiry
			account.TokenExpiry = &expiry
		}
		err = s.accounts.Create(ctx, account)
		if errors.Is(err, domain.ErrAlreadyExists) {
			// A concurrent callback linked the same account first.
			existing, err = s.accounts.FindByProviderAccount(ctx, state.UserID, about.AccountID)
			if err != nil {
				return nil, fmt.Errorf("check existing account: %w", err)
			}
			account, err = s.reconnect(ctx, existing.ID, token, scopes, about)
			if err != nil {
				return nil, err
			}
			reconnected = true
		} else if err != nil {
			return nil, fmt.Errorf("save account: %w", err)
		}
	}

	s.logger.Info("linked storage account",
		"account_id", account.ID,
		"user_id", account.UserID,
		"reconnected", reconnected)

	display := about.Email
	if display == "" {
		display = about.DisplayName
	}
	message := fmt.Sprintf("Successfully connected %s", display)
	if reconnected {
		message = fmt.Sprintf("Successfully reconnected %s", display)
	}

	return &driving.CallbackResponse{
		Account:     account.ToSummary(),
		Reconnected: reconnected,
		Meta:        state.Meta,
		Message:     message,
	}, nil
}

// splitScopes reads the granted scopes from the token response.
// Providers separate them with spaces or commas.
func splitScopes(token *oauth2.Token) []string {
	scope, _ := token.Extra("scope").(string)
	if scope == "" {
		return nil
	}
	return strings.FieldsFunc(scope, func(r rune) bool {
		return r == ' ' || r == ','
	})
}

// reconnect replaces the tokens of an existing account and reloads it.
func (s *linkService) reconnect(ctx context.Context, id string, token *oauth2.Token, scopes []string, about *driven.StorageAbout) (*domain.LinkedAccount, error) {
	if err := s.accounts.Reconnect(ctx, id, tokenUpdateFrom(token), scopes); err != nil {
		return nil, fmt.Errorf("reconnect account: %w", err)
	}
	if err := s.accounts.UpdateQuota(ctx, id, about.QuotaUsed, about.QuotaTotal); err != nil {
		s.logger.Warn("failed to update quota", "account_id", id, "error", err)
	}
	account, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reload account: %w", err)
	}
	return account, nil
}
