package driven

import "github.com/custodia-labs/drivelink/internal/core/domain"

// AuthAdapter handles API bearer token cryptography.
// Local user accounts and passwords live outside this service; it only
// verifies the tokens issued for them.
type AuthAdapter interface {
	GenerateToken(claims *domain.TokenClaims) (string, error)
	ParseToken(token string) (*domain.TokenClaims, error)
}
