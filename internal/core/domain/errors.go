package domain

import (
	"errors"
	"fmt"
)

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates the resource already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrTokenInvalid indicates the API bearer token is malformed or invalid
	ErrTokenInvalid = errors.New("token invalid")

	// ErrSessionExpired indicates the API bearer token is past its expiry
	ErrSessionExpired = errors.New("session expired")

	// ErrAccountRevoked indicates the linked account's credentials were revoked
	// and the user has to reconnect it.
	ErrAccountRevoked = errors.New("account revoked")

	// ErrTokenExpired indicates the provider refused the stored credentials
	// permanently (invalid_grant family).
	ErrTokenExpired = errors.New("token expired")
)

// Authorization state verification errors.
// All of them match ErrInvalidAuthState with errors.Is.
var (
	ErrInvalidAuthState = errors.New("invalid or expired authorization, please retry")

	ErrMalformedToken    = &stateError{reason: "malformed token"}
	ErrSignatureMismatch = &stateError{reason: "signature mismatch"}
	ErrExpired           = &stateError{reason: "expired"}
	ErrMissingFields     = &stateError{reason: "missing fields"}
	ErrReplayedNonce     = &stateError{reason: "replayed nonce"}
)

type stateError struct {
	reason string
}

func (e *stateError) Error() string {
	return "auth state: " + e.reason
}

func (e *stateError) Is(target error) bool {
	return target == ErrInvalidAuthState
}

// AuthErrorKind tags the failure carried by an AuthError.
type AuthErrorKind string

const (
	KindAccountNotFound AuthErrorKind = "account_not_found"
	KindAccountRevoked  AuthErrorKind = "account_revoked"
	KindTokenExpired    AuthErrorKind = "token_expired"
)

// AuthError is returned by credential-guarded operations when the linked
// account is missing or its credentials can no longer be used.
type AuthError struct {
	Kind         AuthErrorKind
	AccountID    string
	AccountEmail string

	// Err is the provider failure that triggered the error, if any.
	Err error
}

func (e *AuthError) Error() string {
	msg := fmt.Sprintf("%s: account %s", e.Kind, e.AccountID)
	if e.AccountEmail != "" {
		msg += " (" + e.AccountEmail + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the sentinel for the kind and the underlying cause.
func (e *AuthError) Unwrap() []error {
	errs := make([]error, 0, 2)
	switch e.Kind {
	case KindAccountNotFound:
		errs = append(errs, ErrNotFound)
	case KindAccountRevoked:
		errs = append(errs, ErrAccountRevoked)
	case KindTokenExpired:
		errs = append(errs, ErrTokenExpired, ErrAccountRevoked)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// NeedsReconnect reports whether the user must reconnect the account.
func (e *AuthError) NeedsReconnect() bool {
	return e.Kind == KindAccountRevoked || e.Kind == KindTokenExpired
}

// IsAuthError reports whether err carries an *AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}
