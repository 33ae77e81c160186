package domain

// TokenClaims are the claims carried by an API bearer token.
type TokenClaims struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// AuthContext identifies the local user behind an API request.
type AuthContext struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}
