package services

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"golang.org/x/oauth2"

	"github.com/custodia-labs/drivelink/internal/core/domain"
	"github.com/custodia-labs/drivelink/internal/core/ports/driven"
	"github.com/custodia-labs/drivelink/internal/core/ports/driven/mocks"
)

var testStateSecret = []byte("test-state-secret-0123456789abcdef")

// fakeProvider implements driven.ProviderClient without network access.
// Clients it hands out carry their rotation callback in the transport.
type fakeProvider struct {
	mu sync.Mutex

	exchangeToken *oauth2.Token
	exchangeErr   error

	clientCalls int
	tokens      []*oauth2.Token
}

type rotatingTransport struct {
	onRotate driven.TokenRotationFunc
}

func (t *rotatingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, errors.New("fake transport: no network")
}

func (p *fakeProvider) Name() string { return domain.ProviderGoogleDrive }

func (p *fakeProvider) AuthCodeURL(state string) string {
	return "https://accounts.example.com/o/oauth2/auth?state=" + url.QueryEscape(state)
}

func (p *fakeProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if p.exchangeErr != nil {
		return nil, p.exchangeErr
	}
	return p.exchangeToken, nil
}

func (p *fakeProvider) Client(ctx context.Context, token *oauth2.Token, onRotate driven.TokenRotationFunc) *http.Client {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clientCalls++
	p.tokens = append(p.tokens, token)
	return &http.Client{Transport: &rotatingTransport{onRotate: onRotate}}
}

func (p *fakeProvider) ClientCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clientCalls
}

// rotate simulates the provider issuing token during a call made with client.
func rotate(ctx context.Context, client *http.Client, token *oauth2.Token) {
	if rt, ok := client.Transport.(*rotatingTransport); ok && rt.onRotate != nil {
		rt.onRotate(ctx, token)
	}
}

// mockStorage is a testify mock for driven.StorageAPI.
type mockStorage struct {
	mock.Mock
}

func (m *mockStorage) About(ctx context.Context, client *http.Client) (*driven.StorageAbout, error) {
	args := m.Called(ctx, client)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*driven.StorageAbout), args.Error(1)
}

func (m *mockStorage) ListFiles(ctx context.Context, client *http.Client, pageToken string) (*driven.FilePage, error) {
	args := m.Called(ctx, client, pageToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*driven.FilePage), args.Error(1)
}

func invalidGrantError() error {
	return &oauth2.RetrieveError{
		Response:         &http.Response{StatusCode: http.StatusBadRequest, Status: "400 Bad Request"},
		ErrorCode:        "invalid_grant",
		ErrorDescription: "Token has been expired or revoked.",
	}
}

func seedAccount(t *testing.T, store *mocks.MockCredentialStore, id, userID string, status domain.AccountStatus) *domain.LinkedAccount {
	t.Helper()
	expiry := time.Now().Add(time.Hour)
	acc := &domain.LinkedAccount{
		ID:                id,
		UserID:            userID,
		Provider:          domain.ProviderGoogleDrive,
		ProviderAccountID: "provider-" + id,
		Email:             id + "@example.com",
		Status:            status,
		AccessToken:       "access-" + id,
		RefreshToken:      "refresh-" + id,
		TokenExpiry:       &expiry,
	}
	if err := store.Create(context.Background(), acc); err != nil {
		t.Fatalf("seed account %s: %v", id, err)
	}
	return acc
}

func newTestRunner(store *mocks.MockCredentialStore, provider *fakeProvider) *Runner {
	return NewRunner(RunnerConfig{
		Accounts: store,
		Provider: provider,
	})
}

func mustAccount(t *testing.T, store *mocks.MockCredentialStore, id string) *domain.LinkedAccount {
	t.Helper()
	acc, err := store.FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("FindByID(%s) error = %v", id, err)
	}
	return acc
}
