package driving

import (
	"context"

	"github.com/custodia-labs/drivelink/internal/core/domain"
)

// AuthService identifies the local user behind an API request.
type AuthService interface {
	// ValidateToken validates a bearer token and returns the auth context
	ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error)
}
