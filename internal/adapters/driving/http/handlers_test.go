package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/custodia-labs/drivelink/internal/core/domain"
	"github.com/custodia-labs/drivelink/internal/core/ports/driven"
	"github.com/custodia-labs/drivelink/internal/core/ports/driving"
)

// Mock services for testing

type mockAuthService struct {
	validateTokenFn func(ctx context.Context, token string) (*domain.AuthContext, error)
}

func (m *mockAuthService) ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error) {
	if m.validateTokenFn != nil {
		return m.validateTokenFn(ctx, token)
	}
	return nil, errors.New("not implemented")
}

type mockLinkService struct {
	authorizeFn func(ctx context.Context, req driving.AuthorizeRequest) (*driving.AuthorizeResponse, error)
	callbackFn  func(ctx context.Context, req driving.CallbackRequest) (*driving.CallbackResponse, error)
}

func (m *mockLinkService) Authorize(ctx context.Context, req driving.AuthorizeRequest) (*driving.AuthorizeResponse, error) {
	if m.authorizeFn != nil {
		return m.authorizeFn(ctx, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockLinkService) Callback(ctx context.Context, req driving.CallbackRequest) (*driving.CallbackResponse, error) {
	if m.callbackFn != nil {
		return m.callbackFn(ctx, req)
	}
	return nil, errors.New("not implemented")
}

type mockAccountService struct {
	listFn         func(ctx context.Context, userID string, opts driving.StatsOptions) ([]*domain.AccountWithStats, error)
	getFn          func(ctx context.Context, userID, accountID string) (*domain.AccountWithStats, error)
	statsFn        func(ctx context.Context, userID string) (*domain.UserStats, error)
	refreshQuotaFn func(ctx context.Context, userID, accountID string) (*domain.AccountSummary, error)
	disconnectFn   func(ctx context.Context, userID, accountID string) error
}

func (m *mockAccountService) List(ctx context.Context, userID string, opts driving.StatsOptions) ([]*domain.AccountWithStats, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID, opts)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAccountService) Get(ctx context.Context, userID, accountID string) (*domain.AccountWithStats, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID, accountID)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAccountService) Stats(ctx context.Context, userID string) (*domain.UserStats, error) {
	if m.statsFn != nil {
		return m.statsFn(ctx, userID)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAccountService) RefreshQuota(ctx context.Context, userID, accountID string) (*domain.AccountSummary, error) {
	if m.refreshQuotaFn != nil {
		return m.refreshQuotaFn(ctx, userID, accountID)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAccountService) Disconnect(ctx context.Context, userID, accountID string) error {
	if m.disconnectFn != nil {
		return m.disconnectFn(ctx, userID, accountID)
	}
	return errors.New("not implemented")
}

type mockSyncService struct {
	syncUserAccountFn func(ctx context.Context, userID, accountID string) (*driving.SyncResult, error)
}

func (m *mockSyncService) SyncAccount(ctx context.Context, accountID string) (*driving.SyncResult, error) {
	return nil, errors.New("not implemented")
}

func (m *mockSyncService) SyncUserAccount(ctx context.Context, userID, accountID string) (*driving.SyncResult, error) {
	if m.syncUserAccountFn != nil {
		return m.syncUserAccountFn(ctx, userID, accountID)
	}
	return nil, errors.New("not implemented")
}

func (m *mockSyncService) SyncAll(ctx context.Context) ([]*driving.SyncResult, error) {
	return nil, errors.New("not implemented")
}

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(ctx context.Context) error {
	return m.err
}

// Helpers

func newTestServer() *Server {
	return &Server{
		version:        "test",
		logger:         discardLogger(),
		authService:    &mockAuthService{},
		linkService:    &mockLinkService{},
		accountService: &mockAccountService{},
		syncService:    &mockSyncService{},
	}
}

func withAuth(req *http.Request, userID string) *http.Request {
	authCtx := &domain.AuthContext{UserID: userID, Email: userID + "@example.com"}
	return req.WithContext(context.WithValue(req.Context(), authContextKey, authCtx))
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

func testSummary(id string) *domain.AccountSummary {
	return &domain.AccountSummary{
		ID:       id,
		UserID:   "user-1",
		Provider: domain.ProviderGoogleDrive,
		Email:    "ada@example.com",
		Status:   domain.AccountStatusActive,
	}
}

// Health endpoints

func TestHealthHandler(t *testing.T) {
	server := newTestServer()

	req := httptest.NewRequest("GET", "/health", nil)
	rr := httptest.NewRecorder()

	server.handleHealth(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
	var response map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response["status"] != "ok" {
		t.Errorf("expected status 'ok', got %s", response["status"])
	}
}

func TestReadyHandler(t *testing.T) {
	tests := []struct {
		name     string
		db       Pinger
		redis    Pinger
		expected int
	}{
		{name: "no dependencies", expected: http.StatusOK},
		{name: "store healthy", db: &mockPinger{}, expected: http.StatusOK},
		{name: "both healthy", db: &mockPinger{}, redis: &mockPinger{}, expected: http.StatusOK},
		{name: "store down", db: &mockPinger{err: errors.New("down")}, expected: http.StatusServiceUnavailable},
		{name: "redis down", db: &mockPinger{}, redis: &mockPinger{err: errors.New("down")}, expected: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newTestServer()
			server.db = tt.db
			server.redisClient = tt.redis

			req := httptest.NewRequest("GET", "/ready", nil)
			rr := httptest.NewRecorder()

			server.handleReady(rr, req)

			if rr.Code != tt.expected {
				t.Errorf("expected status %d, got %d", tt.expected, rr.Code)
			}
		})
	}
}

func TestVersionHandler(t *testing.T) {
	server := newTestServer()
	server.version = "1.2.3"

	req := httptest.NewRequest("GET", "/version", nil)
	rr := httptest.NewRecorder()

	server.handleVersion(rr, req)

	var response map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response["version"] != "1.2.3" {
		t.Errorf("expected version '1.2.3', got %s", response["version"])
	}
}

func TestWriteError(t *testing.T) {
	rr := httptest.NewRecorder()

	writeError(rr, http.StatusBadRequest, "bad input")

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected content type application/json, got %s", ct)
	}
	if resp := decodeError(t, rr); resp.Error != "bad input" {
		t.Errorf("expected error 'bad input', got %s", resp.Error)
	}
}

// Linking endpoints

func TestHandleLinkAccount_Success(t *testing.T) {
	server := newTestServer()
	server.linkService = &mockLinkService{
		authorizeFn: func(ctx context.Context, req driving.AuthorizeRequest) (*driving.AuthorizeResponse, error) {
			if req.UserID != "user-1" {
				t.Errorf("expected user ID user-1, got %s", req.UserID)
			}
			if req.Meta["purpose"] != "backup" {
				t.Errorf("expected meta purpose backup, got %v", req.Meta)
			}
			return &driving.AuthorizeResponse{
				AuthorizationURL: "https://accounts.example.com/auth?state=s",
				State:            "s",
			}, nil
		},
	}

	body := bytes.NewBufferString(`{"meta":{"purpose":"backup"}}`)
	req := withAuth(httptest.NewRequest("POST", "/api/v1/accounts/link", body), "user-1")
	rr := httptest.NewRecorder()

	server.handleLinkAccount(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var response driving.AuthorizeResponse
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.State != "s" {
		t.Errorf("expected state 's', got %s", response.State)
	}
}

func TestHandleLinkAccount_EmptyBody(t *testing.T) {
	server := newTestServer()
	server.linkService = &mockLinkService{
		authorizeFn: func(ctx context.Context, req driving.AuthorizeRequest) (*driving.AuthorizeResponse, error) {
			return &driving.AuthorizeResponse{State: "s"}, nil
		},
	}

	req := withAuth(httptest.NewRequest("POST", "/api/v1/accounts/link", http.NoBody), "user-1")
	rr := httptest.NewRecorder()

	server.handleLinkAccount(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
}

func TestHandleLinkAccount_InvalidJSON(t *testing.T) {
	server := newTestServer()

	req := withAuth(httptest.NewRequest("POST", "/api/v1/accounts/link", bytes.NewBufferString("{")), "user-1")
	rr := httptest.NewRecorder()

	server.handleLinkAccount(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
}

func TestHandleLinkAccount_NoAuthContext(t *testing.T) {
	server := newTestServer()

	req := httptest.NewRequest("POST", "/api/v1/accounts/link", http.NoBody)
	rr := httptest.NewRecorder()

	server.handleLinkAccount(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rr.Code)
	}
}

func TestHandleOAuthCallback_Success(t *testing.T) {
	server := newTestServer()
	server.linkService = &mockLinkService{
		callbackFn: func(ctx context.Context, req driving.CallbackRequest) (*driving.CallbackResponse, error) {
			if req.Code != "code-1" || req.State != "state-1" {
				t.Errorf("unexpected callback request: %+v", req)
			}
			return &driving.CallbackResponse{Account: testSummary("acc-1"), Message: "linked"}, nil
		},
	}

	req := httptest.NewRequest("GET", "/api/v1/oauth/callback?code=code-1&state=state-1", nil)
	rr := httptest.NewRecorder()

	server.handleOAuthCallback(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var response driving.CallbackResponse
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Account == nil || response.Account.ID != "acc-1" {
		t.Errorf("expected account acc-1, got %+v", response.Account)
	}
}

func TestHandleOAuthCallback_StateErrorsShareMessage(t *testing.T) {
	for _, stateErr := range []error{
		domain.ErrMalformedToken,
		domain.ErrSignatureMismatch,
		domain.ErrExpired,
		domain.ErrMissingFields,
		domain.ErrReplayedNonce,
	} {
		server := newTestServer()
		server.linkService = &mockLinkService{
			callbackFn: func(ctx context.Context, req driving.CallbackRequest) (*driving.CallbackResponse, error) {
				return nil, stateErr
			},
		}

		req := httptest.NewRequest("GET", "/api/v1/oauth/callback?code=c&state=bad", nil)
		rr := httptest.NewRecorder()

		server.handleOAuthCallback(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("%v: expected status 400, got %d", stateErr, rr.Code)
		}
		if resp := decodeError(t, rr); resp.Error != domain.ErrInvalidAuthState.Error() {
			t.Errorf("%v: expected generic message, got %q", stateErr, resp.Error)
		}
	}
}

func TestHandleOAuthCallback_OAuthError(t *testing.T) {
	server := newTestServer()
	server.linkService = &mockLinkService{
		callbackFn: func(ctx context.Context, req driving.CallbackRequest) (*driving.CallbackResponse, error) {
			return nil, &driving.OAuthError{Code: req.Error, Description: req.ErrorDescription}
		},
	}

	req := httptest.NewRequest("GET", "/api/v1/oauth/callback?state=s&error=access_denied&error_description=nope", nil)
	rr := httptest.NewRecorder()

	server.handleOAuthCallback(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
	var response driving.OAuthError
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Code != "access_denied" || response.Description != "nope" {
		t.Errorf("unexpected oauth error body: %+v", response)
	}
}

func TestHandleOAuthCallback_RedirectsToFrontend(t *testing.T) {
	tests := []struct {
		name       string
		resp       *driving.CallbackResponse
		err        error
		wantParams map[string]string
	}{
		{
			name: "connected",
			resp: &driving.CallbackResponse{Account: testSummary("acc-1")},
			wantParams: map[string]string{
				"status":     "connected",
				"account_id": "acc-1",
				"tab":        "accounts",
			},
		},
		{
			name: "reconnected",
			resp: &driving.CallbackResponse{Account: testSummary("acc-1"), Reconnected: true},
			wantParams: map[string]string{
				"status":      "connected",
				"reconnected": "true",
			},
		},
		{
			name:       "invalid state",
			err:        domain.ErrReplayedNonce,
			wantParams: map[string]string{"status": "error", "error": "invalid_state"},
		},
		{
			name:       "denied",
			err:        &driving.OAuthError{Code: "access_denied"},
			wantParams: map[string]string{"status": "error", "error": "access_denied"},
		},
		{
			name:       "unexpected",
			err:        errors.New("db down"),
			wantParams: map[string]string{"status": "error", "error": "link_failed"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newTestServer()
			server.frontendURL = "https://app.example.com/settings?tab=accounts"
			server.linkService = &mockLinkService{
				callbackFn: func(ctx context.Context, req driving.CallbackRequest) (*driving.CallbackResponse, error) {
					return tt.resp, tt.err
				},
			}

			req := httptest.NewRequest("GET", "/api/v1/oauth/callback?code=c&state=s", nil)
			rr := httptest.NewRecorder()

			server.handleOAuthCallback(rr, req)

			if rr.Code != http.StatusFound {
				t.Fatalf("expected status 302, got %d", rr.Code)
			}
			location, err := url.Parse(rr.Header().Get("Location"))
			if err != nil {
				t.Fatalf("invalid redirect: %v", err)
			}
			if location.Host != "app.example.com" || location.Path != "/settings" {
				t.Errorf("unexpected redirect target %s", location)
			}
			q := location.Query()
			for k, want := range tt.wantParams {
				if got := q.Get(k); got != want {
					t.Errorf("param %s: expected %q, got %q", k, want, got)
				}
			}
		})
	}
}

// Account endpoints

func TestHandleListAccounts(t *testing.T) {
	server := newTestServer()
	server.accountService = &mockAccountService{
		listFn: func(ctx context.Context, userID string, opts driving.StatsOptions) ([]*domain.AccountWithStats, error) {
			if userID != "user-1" {
				t.Errorf("expected user-1, got %s", userID)
			}
			if !opts.IncludeStats {
				t.Error("expected stats to be requested")
			}
			if opts.Status != domain.AccountStatusActive {
				t.Errorf("expected status filter active, got %s", opts.Status)
			}
			return []*domain.AccountWithStats{
				{AccountSummary: testSummary("acc-1"), Stats: &domain.FileStats{TotalFiles: 3}},
			}, nil
		},
	}

	req := withAuth(httptest.NewRequest("GET", "/api/v1/accounts?include_stats=true&status=active", nil), "user-1")
	rr := httptest.NewRecorder()

	server.handleListAccounts(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var response []domain.AccountWithStats
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(response) != 1 {
		t.Fatalf("expected 1 account, got %d", len(response))
	}
	if response[0].Stats == nil || response[0].Stats.TotalFiles != 3 {
		t.Errorf("expected stats with 3 files, got %+v", response[0].Stats)
	}
}

func TestHandleListAccounts_EmptyIsArray(t *testing.T) {
	server := newTestServer()
	server.accountService = &mockAccountService{
		listFn: func(ctx context.Context, userID string, opts driving.StatsOptions) ([]*domain.AccountWithStats, error) {
			return nil, nil
		},
	}

	req := withAuth(httptest.NewRequest("GET", "/api/v1/accounts", nil), "user-1")
	rr := httptest.NewRecorder()

	server.handleListAccounts(rr, req)

	if body := bytes.TrimSpace(rr.Body.Bytes()); string(body) != "[]" {
		t.Errorf("expected empty array, got %s", body)
	}
}

func TestHandleListAccounts_InvalidIncludeStats(t *testing.T) {
	server := newTestServer()

	req := withAuth(httptest.NewRequest("GET", "/api/v1/accounts?include_stats=maybe", nil), "user-1")
	rr := httptest.NewRecorder()

	server.handleListAccounts(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
}

func TestHandleGetAccount_NotFound(t *testing.T) {
	server := newTestServer()
	server.accountService = &mockAccountService{
		getFn: func(ctx context.Context, userID, accountID string) (*domain.AccountWithStats, error) {
			return nil, &domain.AuthError{Kind: domain.KindAccountNotFound, AccountID: accountID}
		},
	}

	req := withAuth(httptest.NewRequest("GET", "/api/v1/accounts/acc-9", nil), "user-1")
	req.SetPathValue("id", "acc-9")
	rr := httptest.NewRecorder()

	server.handleGetAccount(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
}

func TestHandleGetAccount_Success(t *testing.T) {
	server := newTestServer()
	server.accountService = &mockAccountService{
		getFn: func(ctx context.Context, userID, accountID string) (*domain.AccountWithStats, error) {
			return &domain.AccountWithStats{AccountSummary: testSummary(accountID)}, nil
		},
	}

	req := withAuth(httptest.NewRequest("GET", "/api/v1/accounts/acc-1", nil), "user-1")
	req.SetPathValue("id", "acc-1")
	rr := httptest.NewRecorder()

	server.handleGetAccount(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var response domain.AccountWithStats
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.AccountSummary == nil || response.ID != "acc-1" {
		t.Errorf("expected account acc-1, got %+v", response.AccountSummary)
	}
}

func TestHandleDisconnectAccount(t *testing.T) {
	var gotUser, gotAccount string
	server := newTestServer()
	server.accountService = &mockAccountService{
		disconnectFn: func(ctx context.Context, userID, accountID string) error {
			gotUser, gotAccount = userID, accountID
			return nil
		},
	}

	req := withAuth(httptest.NewRequest("DELETE", "/api/v1/accounts/acc-1", nil), "user-1")
	req.SetPathValue("id", "acc-1")
	rr := httptest.NewRecorder()

	server.handleDisconnectAccount(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Errorf("expected status 204, got %d", rr.Code)
	}
	if gotUser != "user-1" || gotAccount != "acc-1" {
		t.Errorf("unexpected disconnect args %s/%s", gotUser, gotAccount)
	}
}

func TestHandleRefreshQuota_ReconnectRequired(t *testing.T) {
	tests := []struct {
		name string
		kind domain.AuthErrorKind
	}{
		{name: "revoked", kind: domain.KindAccountRevoked},
		{name: "token expired", kind: domain.KindTokenExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newTestServer()
			server.accountService = &mockAccountService{
				refreshQuotaFn: func(ctx context.Context, userID, accountID string) (*domain.AccountSummary, error) {
					return nil, &domain.AuthError{Kind: tt.kind, AccountID: accountID, AccountEmail: "ada@example.com"}
				},
			}

			req := withAuth(httptest.NewRequest("POST", "/api/v1/accounts/acc-1/quota", nil), "user-1")
			req.SetPathValue("id", "acc-1")
			rr := httptest.NewRecorder()

			server.handleRefreshQuota(rr, req)

			if rr.Code != http.StatusUnauthorized {
				t.Fatalf("expected status 401, got %d", rr.Code)
			}
			var response ReconnectResponse
			if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if !response.Reconnect {
				t.Error("expected reconnect flag")
			}
			if response.AccountID != "acc-1" || response.AccountEmail != "ada@example.com" {
				t.Errorf("unexpected reconnect body: %+v", response)
			}
		})
	}
}

func TestHandleRefreshQuota_ProviderError(t *testing.T) {
	server := newTestServer()
	server.accountService = &mockAccountService{
		refreshQuotaFn: func(ctx context.Context, userID, accountID string) (*domain.AccountSummary, error) {
			return nil, &driven.ProviderAPIError{StatusCode: http.StatusServiceUnavailable, Message: "backend error"}
		},
	}

	req := withAuth(httptest.NewRequest("POST", "/api/v1/accounts/acc-1/quota", nil), "user-1")
	req.SetPathValue("id", "acc-1")
	rr := httptest.NewRecorder()

	server.handleRefreshQuota(rr, req)

	if rr.Code != http.StatusBadGateway {
		t.Errorf("expected status 502, got %d", rr.Code)
	}
}

func TestHandleSyncAccount(t *testing.T) {
	server := newTestServer()
	server.syncService = &mockSyncService{
		syncUserAccountFn: func(ctx context.Context, userID, accountID string) (*driving.SyncResult, error) {
			return &driving.SyncResult{AccountID: accountID, Files: 4, Duplicates: 1, TotalSize: 400}, nil
		},
	}

	req := withAuth(httptest.NewRequest("POST", "/api/v1/accounts/acc-1/sync", nil), "user-1")
	req.SetPathValue("id", "acc-1")
	rr := httptest.NewRecorder()

	server.handleSyncAccount(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var response driving.SyncResult
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Files != 4 || response.Duplicates != 1 {
		t.Errorf("unexpected sync result: %+v", response)
	}
}

func TestHandleSyncAccount_InternalError(t *testing.T) {
	server := newTestServer()
	server.syncService = &mockSyncService{
		syncUserAccountFn: func(ctx context.Context, userID, accountID string) (*driving.SyncResult, error) {
			return nil, errors.New("store unavailable")
		},
	}

	req := withAuth(httptest.NewRequest("POST", "/api/v1/accounts/acc-1/sync", nil), "user-1")
	req.SetPathValue("id", "acc-1")
	rr := httptest.NewRecorder()

	server.handleSyncAccount(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Error != "failed to sync account" {
		t.Errorf("unexpected error message %q", resp.Error)
	}
}

func TestHandleGetStats(t *testing.T) {
	server := newTestServer()
	server.accountService = &mockAccountService{
		statsFn: func(ctx context.Context, userID string) (*domain.UserStats, error) {
			return &domain.UserStats{UserID: userID, Accounts: 2, Files: domain.FileStats{TotalFiles: 5}}, nil
		},
	}

	req := withAuth(httptest.NewRequest("GET", "/api/v1/stats", nil), "user-1")
	rr := httptest.NewRecorder()

	server.handleGetStats(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var response domain.UserStats
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Accounts != 2 || response.Files.TotalFiles != 5 {
		t.Errorf("unexpected stats: %+v", response)
	}
}

// Routing

func TestRoutes_RequireAuth(t *testing.T) {
	server := NewServer(Config{Logger: discardLogger()},
		&mockAuthService{}, &mockLinkService{}, &mockAccountService{}, &mockSyncService{}, nil, nil)

	for _, route := range []struct{ method, path string }{
		{"POST", "/api/v1/accounts/link"},
		{"GET", "/api/v1/accounts"},
		{"GET", "/api/v1/accounts/acc-1"},
		{"DELETE", "/api/v1/accounts/acc-1"},
		{"POST", "/api/v1/accounts/acc-1/quota"},
		{"POST", "/api/v1/accounts/acc-1/sync"},
		{"GET", "/api/v1/stats"},
	} {
		req := httptest.NewRequest(route.method, route.path, nil)
		rr := httptest.NewRecorder()

		server.Handler().ServeHTTP(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: expected status 401, got %d", route.method, route.path, rr.Code)
		}
	}
}

func TestRoutes_AuthenticatedRequestReachesHandler(t *testing.T) {
	auth := &mockAuthService{
		validateTokenFn: func(ctx context.Context, token string) (*domain.AuthContext, error) {
			return &domain.AuthContext{UserID: "user-1"}, nil
		},
	}
	accounts := &mockAccountService{
		getFn: func(ctx context.Context, userID, accountID string) (*domain.AccountWithStats, error) {
			if accountID != "acc-1" {
				t.Errorf("expected path value acc-1, got %s", accountID)
			}
			return &domain.AccountWithStats{AccountSummary: testSummary(accountID)}, nil
		},
	}
	server := NewServer(Config{Logger: discardLogger()}, auth, &mockLinkService{}, accounts, &mockSyncService{}, nil, nil)

	req := httptest.NewRequest("GET", "/api/v1/accounts/acc-1", nil)
	req.Header.Set("Authorization", "Bearer token")
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
}
