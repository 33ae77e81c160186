package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/custodia-labs/drivelink/internal/core/ports/driving"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	router      *http.ServeMux
	version     string
	frontendURL string
	origins     []string
	logger      *slog.Logger

	// Services
	authService    driving.AuthService
	linkService    driving.LinkService
	accountService driving.AccountService
	syncService    driving.SyncService

	// Infrastructure
	db          Pinger // store health check
	redisClient Pinger // Redis health check (optional)
}

// Config holds server configuration
type Config struct {
	Host    string
	Port    int
	Version string

	// FrontendURL receives the browser after the OAuth callback.
	// When empty the callback answers with JSON.
	FrontendURL string

	// AllowedOrigins may call the API from a browser.
	AllowedOrigins []string

	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:    "0.0.0.0",
		Port:    8080,
		Version: "dev",
	}
}

// NewServer creates a new HTTP server
func NewServer(
	cfg Config,
	authService driving.AuthService,
	linkService driving.LinkService,
	accountService driving.AccountService,
	syncService driving.SyncService,
	db Pinger,
	redisClient Pinger, // can be nil
) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		router:         http.NewServeMux(),
		version:        cfg.Version,
		frontendURL:    cfg.FrontendURL,
		origins:        cfg.AllowedOrigins,
		logger:         logger,
		authService:    authService,
		linkService:    linkService,
		accountService: accountService,
		syncService:    syncService,
		db:             db,
		redisClient:    redisClient,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.setupRoutes()
	return s
}

// Handler returns the router wrapped in recovery, request logging and,
// when origins are configured, CORS.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.router
	if len(s.origins) > 0 {
		h = NewCORSMiddleware(s.origins).Handler(h)
	}
	h = NewLoggingMiddleware(s.logger).Handler(h)
	return NewRecoveryMiddleware(s.logger).Handler(h)
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	authMiddleware := NewAuthMiddleware(s.authService)
	authed := func(h http.HandlerFunc) http.Handler {
		return authMiddleware.Authenticate(h)
	}

	// Health endpoints (no auth)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)

	// Linking flow. The callback is public: the provider redirects the
	// browser here and the signed state identifies the user.
	s.router.Handle("POST /api/v1/accounts/link", authed(s.handleLinkAccount))
	s.router.HandleFunc("GET /api/v1/oauth/callback", s.handleOAuthCallback)

	// Linked accounts
	s.router.Handle("GET /api/v1/accounts", authed(s.handleListAccounts))
	s.router.Handle("GET /api/v1/accounts/{id}", authed(s.handleGetAccount))
	s.router.Handle("DELETE /api/v1/accounts/{id}", authed(s.handleDisconnectAccount))
	s.router.Handle("POST /api/v1/accounts/{id}/quota", authed(s.handleRefreshQuota))
	s.router.Handle("POST /api/v1/accounts/{id}/sync", authed(s.handleSyncAccount))

	// Aggregates
	s.router.Handle("GET /api/v1/stats", authed(s.handleGetStats))
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting http server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("http server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
