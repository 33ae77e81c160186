package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		msg  string
	}{
		{"ErrNotFound", ErrNotFound, "not found"},
		{"ErrAlreadyExists", ErrAlreadyExists, "already exists"},
		{"ErrInvalidInput", ErrInvalidInput, "invalid input"},
		{"ErrUnauthorized", ErrUnauthorized, "unauthorized"},
		{"ErrTokenInvalid", ErrTokenInvalid, "token invalid"},
		{"ErrSessionExpired", ErrSessionExpired, "session expired"},
		{"ErrAccountRevoked", ErrAccountRevoked, "account revoked"},
		{"ErrTokenExpired", ErrTokenExpired, "token expired"},
		{"ErrMalformedToken", ErrMalformedToken, "auth state: malformed token"},
		{"ErrSignatureMismatch", ErrSignatureMismatch, "auth state: signature mismatch"},
		{"ErrExpired", ErrExpired, "auth state: expired"},
		{"ErrMissingFields", ErrMissingFields, "auth state: missing fields"},
		{"ErrReplayedNonce", ErrReplayedNonce, "auth state: replayed nonce"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.msg {
				t.Errorf("expected %q, got %q", tt.msg, tt.err.Error())
			}
		})
	}
}

func TestStateErrorsMatchInvalidAuthState(t *testing.T) {
	stateErrors := []error{
		ErrMalformedToken,
		ErrSignatureMismatch,
		ErrExpired,
		ErrMissingFields,
		ErrReplayedNonce,
	}

	for i, err1 := range stateErrors {
		if !errors.Is(err1, ErrInvalidAuthState) {
			t.Errorf("%v should match ErrInvalidAuthState", err1)
		}
		wrapped := fmt.Errorf("verify: %w", err1)
		if !errors.Is(wrapped, ErrInvalidAuthState) {
			t.Errorf("wrapped %v should match ErrInvalidAuthState", err1)
		}
		for j, err2 := range stateErrors {
			if i != j && errors.Is(err1, err2) {
				t.Errorf("errors should be distinct: %v and %v", err1, err2)
			}
		}
	}

	if errors.Is(ErrNotFound, ErrInvalidAuthState) {
		t.Error("ErrNotFound should not match ErrInvalidAuthState")
	}
}

func TestAuthError(t *testing.T) {
	cause := errors.New("oauth2: invalid_grant")

	tests := []struct {
		name           string
		err            *AuthError
		matches        []error
		notMatches     []error
		needsReconnect bool
	}{
		{
			name:           "not found",
			err:            &AuthError{Kind: KindAccountNotFound, AccountID: "acc-1"},
			matches:        []error{ErrNotFound},
			notMatches:     []error{ErrAccountRevoked, ErrTokenExpired},
			needsReconnect: false,
		},
		{
			name:           "revoked",
			err:            &AuthError{Kind: KindAccountRevoked, AccountID: "acc-1", AccountEmail: "a@example.com"},
			matches:        []error{ErrAccountRevoked},
			notMatches:     []error{ErrNotFound, ErrTokenExpired},
			needsReconnect: true,
		},
		{
			name:           "token expired with cause",
			err:            &AuthError{Kind: KindTokenExpired, AccountID: "acc-1", Err: cause},
			matches:        []error{ErrTokenExpired, ErrAccountRevoked, cause},
			notMatches:     []error{ErrNotFound, ErrSessionExpired},
			needsReconnect: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, target := range tt.matches {
				if !errors.Is(tt.err, target) {
					t.Errorf("expected %v to match %v", tt.err, target)
				}
			}
			for _, target := range tt.notMatches {
				if errors.Is(tt.err, target) {
					t.Errorf("expected %v not to match %v", tt.err, target)
				}
			}
			if tt.err.NeedsReconnect() != tt.needsReconnect {
				t.Errorf("NeedsReconnect() = %v, want %v", tt.err.NeedsReconnect(), tt.needsReconnect)
			}

			var authErr *AuthError
			if !errors.As(fmt.Errorf("wrapped: %w", tt.err), &authErr) {
				t.Fatal("errors.As should find AuthError")
			}
			if authErr.AccountID != "acc-1" {
				t.Errorf("AccountID = %q, want acc-1", authErr.AccountID)
			}
		})
	}
}

func TestAuthErrorMessage(t *testing.T) {
	err := &AuthError{Kind: KindAccountRevoked, AccountID: "acc-1", AccountEmail: "a@example.com"}
	want := "account_revoked: account acc-1 (a@example.com)"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
}
