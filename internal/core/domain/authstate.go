package domain

import "time"

// AuthFlowState describes an in-flight authorization request.
// It is never stored server-side; it travels as a signed token through the
// provider's consent redirect and comes back unmodified.
type AuthFlowState struct {
	UserID    string            `json:"userId"`
	CSRFToken string            `json:"csrfToken"`
	Timestamp int64             `json:"timestamp"` // unix milliseconds
	Nonce     string            `json:"nonce"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// IssuedAt returns the creation time of the state.
func (s *AuthFlowState) IssuedAt() time.Time {
	return time.UnixMilli(s.Timestamp)
}

// HasRequiredFields reports whether user id, CSRF token and nonce are all set.
func (s *AuthFlowState) HasRequiredFields() bool {
	return s.UserID != "" && s.CSRFToken != "" && s.Nonce != ""
}
