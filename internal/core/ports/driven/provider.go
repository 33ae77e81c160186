package driven

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// TokenRotationFunc receives a token pair issued by the provider during a call.
// Fields the provider did not deliver are empty.
type TokenRotationFunc func(ctx context.Context, token *oauth2.Token)

// ProviderClient talks OAuth to the external storage provider.
type ProviderClient interface {
	// Name returns the provider identifier stored on linked accounts.
	Name() string

	// AuthCodeURL builds the consent URL carrying the signed state.
	AuthCodeURL(state string) string

	// Exchange trades an authorization code for tokens.
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)

	// Client returns an HTTP client authenticated with token. The client
	// refreshes the token when needed and reports every newly issued token
	// to onRotate (which may be nil). Cancelling ctx cancels refreshes.
	Client(ctx context.Context, token *oauth2.Token, onRotate TokenRotationFunc) *http.Client
}

// StorageAbout describes the provider account behind a client.
type StorageAbout struct {
	AccountID   string
	Email       string
	DisplayName string
	QuotaUsed   int64
	QuotaTotal  int64
}

// RemoteFile is one file listed by the provider.
type RemoteFile struct {
	ID         string
	Name       string
	MimeType   string
	Size       int64
	Checksum   string
	ModifiedAt *time.Time
}

// FilePage is a page of a file listing.
type FilePage struct {
	Files         []RemoteFile
	NextPageToken string
}

// StorageAPI reads account data using an authenticated client.
type StorageAPI interface {
	About(ctx context.Context, client *http.Client) (*StorageAbout, error)
	ListFiles(ctx context.Context, client *http.Client, pageToken string) (*FilePage, error)
}

// ProviderAPIError is a non-2xx response from the storage provider's API.
type ProviderAPIError struct {
	StatusCode int
	Reason     string
	Message    string
}

func (e *ProviderAPIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("provider api: %d %s: %s", e.StatusCode, e.Reason, e.Message)
	}
	return fmt.Sprintf("provider api: %d: %s", e.StatusCode, e.Message)
}

// IsRateLimit reports whether the provider throttled the request.
func (e *ProviderAPIError) IsRateLimit() bool {
	switch e.Reason {
	case "rateLimitExceeded", "userRateLimitExceeded":
		return true
	}
	return e.StatusCode == http.StatusTooManyRequests
}
