// Package googledrive links Google Drive accounts over OAuth 2.0 and reads
// account metadata and file listings from the Drive v3 REST API.
package googledrive

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/custodia-labs/drivelink/internal/core/domain"
	"github.com/custodia-labs/drivelink/internal/core/ports/driven"
)

// Ensure Provider implements the interface.
var _ driven.ProviderClient = (*Provider)(nil)

// DefaultScopes grant read access to file metadata plus the user's identity.
var DefaultScopes = []string{
	"https://www.googleapis.com/auth/drive.readonly",
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",
}

// Config holds the OAuth client registration.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	// Endpoint defaults to google.Endpoint.
	Endpoint oauth2.Endpoint

	// HTTPClient is used for token endpoint calls and as the base transport
	// of authenticated clients. Defaults to http.DefaultClient.
	HTTPClient *http.Client
}

// Provider implements driven.ProviderClient for Google.
type Provider struct {
	oauth      *oauth2.Config
	httpClient *http.Client
}

// NewProvider creates a Google OAuth provider.
func NewProvider(cfg Config) *Provider {
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	endpoint := cfg.Endpoint
	if endpoint.TokenURL == "" {
		endpoint = google.Endpoint
	}

	return &Provider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
		httpClient: cfg.HTTPClient,
	}
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return domain.ProviderGoogleDrive
}

// AuthCodeURL builds the consent URL. Offline access with a forced consent
// prompt makes Google issue a refresh token on every link, including relinks.
func (p *Provider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// Exchange trades an authorization code for tokens.
func (p *Provider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return p.oauth.Exchange(p.withHTTPClient(ctx), code)
}

// Client returns an authenticated client that refreshes token on demand
// and reports each refresh to onRotate.
func (p *Provider) Client(ctx context.Context, token *oauth2.Token, onRotate driven.TokenRotationFunc) *http.Client {
	ctx = p.withHTTPClient(ctx)
	src := newNotifyingSource(ctx, p.oauth.TokenSource(ctx, token), token, onRotate)
	return oauth2.NewClient(ctx, src)
}

func (p *Provider) withHTTPClient(ctx context.Context) context.Context {
	if p.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}
