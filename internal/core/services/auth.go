package services

import (
	"context"
	"errors"
	"time"

	"github.com/custodia-labs/drivelink/internal/core/domain"
	"github.com/custodia-labs/drivelink/internal/core/ports/driven"
	"github.com/custodia-labs/drivelink/internal/core/ports/driving"
)

// Ensure authService implements AuthService
var _ driving.AuthService = (*authService)(nil)

// authService implements the AuthService interface
type authService struct {
	authAdapter driven.AuthAdapter
	now         func() time.Time
}

// NewAuthService creates a new AuthService
func NewAuthService(authAdapter driven.AuthAdapter) driving.AuthService {
	return &authService{
		authAdapter: authAdapter,
		now:         time.Now,
	}
}

// ValidateToken validates a bearer token and returns the auth context
func (s *authService) ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error) {
	if token == "" {
		return nil, domain.ErrUnauthorized
	}

	claims, err := s.authAdapter.ParseToken(token)
	if err != nil {
		if errors.Is(err, domain.ErrSessionExpired) {
			return nil, domain.ErrSessionExpired
		}
		return nil, domain.ErrTokenInvalid
	}

	if claims.ExpiresAt != 0 && s.now().Unix() > claims.ExpiresAt {
		return nil, domain.ErrSessionExpired
	}

	if claims.UserID == "" {
		return nil, domain.ErrTokenInvalid
	}

	return &domain.AuthContext{
		UserID: claims.UserID,
		Email:  claims.Email,
	}, nil
}
