package driving

import (
	"context"

	"github.com/custodia-labs/drivelink/internal/core/domain"
)

// LinkService runs the OAuth flow that links an external storage account
// to a local user.
type LinkService interface {
	// Authorize starts an OAuth authorization flow for the user.
	// Returns the consent URL carrying a signed, single-use state.
	Authorize(ctx context.Context, req AuthorizeRequest) (*AuthorizeResponse, error)

	// Callback handles the OAuth callback from the provider.
	// The state is verified and its nonce consumed before any credential
	// is persisted.
	Callback(ctx context.Context, req CallbackRequest) (*CallbackResponse, error)
}

// AuthorizeRequest represents a request to start an OAuth flow.
type AuthorizeRequest struct {
	// UserID is the local user linking the account. Set from the auth context.
	UserID string `json:"-"`

	// Meta is carried through the flow untouched (e.g. intended purpose).
	Meta map[string]string `json:"meta,omitempty"`
}

// AuthorizeResponse contains the authorization URL and state.
type AuthorizeResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	State            string `json:"state"`
	ExpiresAt        string `json:"expires_at"`
}

// CallbackRequest represents the OAuth callback from the provider.
type CallbackRequest struct {
	Code             string `json:"code"`
	State            string `json:"state"`
	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// CallbackResponse contains the result of the OAuth callback.
type CallbackResponse struct {
	Account     *domain.AccountSummary `json:"account"`
	Reconnected bool                   `json:"reconnected"`
	Meta        map[string]string      `json:"meta,omitempty"`
	Message     string                 `json:"message"`
}

// OAuthError represents an OAuth-specific error.
type OAuthError struct {
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

func (e *OAuthError) Error() string {
	if e.Description != "" {
		return e.Code + ": " + e.Description
	}
	return e.Code
}

// Common OAuth errors
var (
	ErrOAuthExchangeFailed = &OAuthError{Code: "exchange_failed", Description: "Failed to exchange authorization code for tokens"}
	ErrOAuthUserInfoFailed = &OAuthError{Code: "user_info_failed", Description: "Failed to fetch account information"}
	ErrOAuthMissingCode    = &OAuthError{Code: "missing_code", Description: "The callback did not carry an authorization code"}
)
