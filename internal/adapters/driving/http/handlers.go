package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/custodia-labs/drivelink/internal/core/domain"
	"github.com/custodia-labs/drivelink/internal/core/ports/driven"
	"github.com/custodia-labs/drivelink/internal/core/ports/driving"
)

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// ReconnectResponse tells the client the linked account must be reconnected.
type ReconnectResponse struct {
	Error        string `json:"error"`
	AccountID    string `json:"account_id"`
	AccountEmail string `json:"account_email,omitempty"`
	Reconnect    bool   `json:"reconnect"`
}

// LinkAccountRequest is the optional body of POST /accounts/link.
type LinkAccountRequest struct {
	Meta map[string]string `json:"meta,omitempty"`
}

// Health endpoints

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady checks the store and, when configured, Redis.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	ready := true

	for name, p := range map[string]Pinger{"store": s.db, "redis": s.redisClient} {
		if p == nil {
			continue
		}
		if err := p.Ping(r.Context()); err != nil {
			checks[name] = "unavailable"
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	status := http.StatusOK
	state := "ready"
	if !ready {
		status = http.StatusServiceUnavailable
		state = "not_ready"
	}
	writeJSON(w, status, map[string]any{"status": state, "checks": checks})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// Linking endpoints

// handleLinkAccount godoc
// @Summary      Start linking a storage account
// @Description  Returns the provider consent URL carrying a signed single-use state
// @Tags         Accounts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      LinkAccountRequest  false  "Metadata echoed back on callback"
// @Success      200      {object}  driving.AuthorizeResponse
// @Router       /accounts/link [post]
func (s *Server) handleLinkAccount(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req LinkAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := s.linkService.Authorize(r.Context(), driving.AuthorizeRequest{
		UserID: authCtx.UserID,
		Meta:   req.Meta,
	})
	if err != nil {
		s.writeServiceError(w, err, "failed to start authorization")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleOAuthCallback godoc
// @Summary      OAuth callback
// @Description  Receives the provider redirect, verifies the state and stores the account
// @Tags         Accounts
// @Produce      json
// @Param        code   query  string  false  "Authorization code"
// @Param        state  query  string  true   "Signed state"
// @Success      200    {object}  driving.CallbackResponse
// @Success      302    "Redirect to the frontend"
// @Failure      400    {object}  ErrorResponse
// @Router       /oauth/callback [get]
func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := driving.CallbackRequest{
		Code:             q.Get("code"),
		State:            q.Get("state"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	}

	resp, err := s.linkService.Callback(r.Context(), req)
	if err != nil {
		code, status, body := callbackError(err)
		if status == http.StatusInternalServerError {
			s.logger.Error("oauth callback failed", "error", err)
		}
		if s.frontendURL != "" {
			s.redirectToFrontend(w, r, url.Values{"status": {"error"}, "error": {code}})
			return
		}
		writeJSON(w, status, body)
		return
	}

	if s.frontendURL != "" {
		params := url.Values{
			"status":     {"connected"},
			"account_id": {resp.Account.ID},
		}
		if resp.Reconnected {
			params.Set("reconnected", "true")
		}
		s.redirectToFrontend(w, r, params)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// callbackError maps a callback failure to a short code, a status and a body.
// Every state failure shares one generic message.
func callbackError(err error) (string, int, any) {
	var oauthErr *driving.OAuthError
	switch {
	case errors.Is(err, domain.ErrInvalidAuthState):
		return "invalid_state", http.StatusBadRequest, ErrorResponse{Error: domain.ErrInvalidAuthState.Error()}
	case errors.As(err, &oauthErr):
		return oauthErr.Code, http.StatusBadRequest, oauthErr
	default:
		return "link_failed", http.StatusInternalServerError, ErrorResponse{Error: "failed to link account"}
	}
}

func (s *Server) redirectToFrontend(w http.ResponseWriter, r *http.Request, params url.Values) {
	target, err := url.Parse(s.frontendURL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "invalid frontend url")
		return
	}
	q := target.Query()
	for k, v := range params {
		q[k] = v
	}
	target.RawQuery = q.Encode()
	http.Redirect(w, r, target.String(), http.StatusFound)
}

// Account endpoints

// handleListAccounts godoc
// @Summary      List linked accounts
// @Tags         Accounts
// @Produce      json
// @Security     BearerAuth
// @Param        include_stats  query  bool    false  "Include file stats"
// @Param        status         query  string  false  "active, error or revoked"
// @Success      200  {array}   domain.AccountWithStats
// @Router       /accounts [get]
func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	opts := driving.StatsOptions{
		Status: domain.AccountStatus(r.URL.Query().Get("status")),
	}
	if raw := r.URL.Query().Get("include_stats"); raw != "" {
		include, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid include_stats")
			return
		}
		opts.IncludeStats = include
	}

	accounts, err := s.accountService.List(r.Context(), authCtx.UserID, opts)
	if err != nil {
		s.writeServiceError(w, err, "failed to list accounts")
		return
	}
	if accounts == nil {
		accounts = []*domain.AccountWithStats{}
	}

	writeJSON(w, http.StatusOK, accounts)
}

// handleGetAccount godoc
// @Summary      Get a linked account with its file stats
// @Tags         Accounts
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Account ID"
// @Success      200  {object}  domain.AccountWithStats
// @Failure      404  {object}  ErrorResponse
// @Router       /accounts/{id} [get]
func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	authCtx, id, ok := accountRequest(w, r)
	if !ok {
		return
	}

	account, err := s.accountService.Get(r.Context(), authCtx.UserID, id)
	if err != nil {
		s.writeServiceError(w, err, "failed to get account")
		return
	}

	writeJSON(w, http.StatusOK, account)
}

// handleDisconnectAccount godoc
// @Summary      Disconnect a linked account
// @Description  Deletes the account and its synced files
// @Tags         Accounts
// @Security     BearerAuth
// @Param        id   path  string  true  "Account ID"
// @Success      204
// @Failure      404  {object}  ErrorResponse
// @Router       /accounts/{id} [delete]
func (s *Server) handleDisconnectAccount(w http.ResponseWriter, r *http.Request) {
	authCtx, id, ok := accountRequest(w, r)
	if !ok {
		return
	}

	if err := s.accountService.Disconnect(r.Context(), authCtx.UserID, id); err != nil {
		s.writeServiceError(w, err, "failed to disconnect account")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleRefreshQuota godoc
// @Summary      Refresh storage quota from the provider
// @Tags         Accounts
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Account ID"
// @Success      200  {object}  domain.AccountSummary
// @Failure      401  {object}  ReconnectResponse  "Account must be reconnected"
// @Router       /accounts/{id}/quota [post]
func (s *Server) handleRefreshQuota(w http.ResponseWriter, r *http.Request) {
	authCtx, id, ok := accountRequest(w, r)
	if !ok {
		return
	}

	summary, err := s.accountService.RefreshQuota(r.Context(), authCtx.UserID, id)
	if err != nil {
		s.writeServiceError(w, err, "failed to refresh quota")
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// handleSyncAccount godoc
// @Summary      Sync the account's file listing
// @Tags         Accounts
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Account ID"
// @Success      200  {object}  driving.SyncResult
// @Failure      401  {object}  ReconnectResponse  "Account must be reconnected"
// @Router       /accounts/{id}/sync [post]
func (s *Server) handleSyncAccount(w http.ResponseWriter, r *http.Request) {
	authCtx, id, ok := accountRequest(w, r)
	if !ok {
		return
	}

	result, err := s.syncService.SyncUserAccount(r.Context(), authCtx.UserID, id)
	if err != nil {
		s.writeServiceError(w, err, "failed to sync account")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetStats godoc
// @Summary      Totals across the user's linked accounts
// @Tags         Accounts
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  domain.UserStats
// @Router       /stats [get]
func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	stats, err := s.accountService.Stats(r.Context(), authCtx.UserID)
	if err != nil {
		s.writeServiceError(w, err, "failed to compute stats")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// accountRequest reads the auth context and account id shared by the
// per-account endpoints. It writes the error response itself.
func accountRequest(w http.ResponseWriter, r *http.Request) (*domain.AuthContext, string, bool) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return nil, "", false
	}
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing account id")
		return nil, "", false
	}
	return authCtx, id, true
}

// writeServiceError maps core errors to responses. fallback is the
// message for unexpected failures, which are logged.
func (s *Server) writeServiceError(w http.ResponseWriter, err error, fallback string) {
	var (
		authErr *domain.AuthError
		apiErr  *driven.ProviderAPIError
	)
	switch {
	case errors.As(err, &authErr) && authErr.NeedsReconnect():
		writeJSON(w, http.StatusUnauthorized, ReconnectResponse{
			Error:        "account must be reconnected",
			AccountID:    authErr.AccountID,
			AccountEmail: authErr.AccountEmail,
			Reconnect:    true,
		})
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "account not found")
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid input")
	case errors.As(err, &apiErr):
		s.logger.Warn("provider request failed", "status", apiErr.StatusCode, "reason", apiErr.Reason)
		writeError(w, http.StatusBadGateway, "provider request failed")
	default:
		s.logger.Error(fallback, "error", err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
