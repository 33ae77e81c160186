package googledrive

import (
	"context"
	"sync"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/drivelink/internal/core/ports/driven"
)

// notifyingSource reports every token the wrapped source newly issues.
// The wrapped source caches valid tokens, so a new access token means
// exactly one refresh happened.
type notifyingSource struct {
	ctx      context.Context
	src      oauth2.TokenSource
	onRotate driven.TokenRotationFunc

	mu   sync.Mutex
	last *oauth2.Token
}

func newNotifyingSource(ctx context.Context, src oauth2.TokenSource, initial *oauth2.Token, onRotate driven.TokenRotationFunc) *notifyingSource {
	return &notifyingSource{
		ctx:      ctx,
		src:      src,
		onRotate: onRotate,
		last:     initial,
	}
}

// Token returns the current token, notifying once per refresh.
func (s *notifyingSource) Token() (*oauth2.Token, error) {
	token, err := s.src.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	var delivered *oauth2.Token
	if s.last == nil || token.AccessToken != s.last.AccessToken {
		delivered = changedFields(s.last, token)
		s.last = token
	}
	s.mu.Unlock()

	if delivered != nil && s.onRotate != nil {
		s.onRotate(s.ctx, delivered)
	}
	return token, nil
}

// changedFields keeps the fields of next that differ from prev.
// The oauth2 package carries the old refresh token forward when the
// provider does not send a new one; that copy is not a rotation.
func changedFields(prev, next *oauth2.Token) *oauth2.Token {
	delivered := &oauth2.Token{
		AccessToken: next.AccessToken,
		TokenType:   next.TokenType,
		Expiry:      next.Expiry,
	}
	if next.RefreshToken != "" && (prev == nil || next.RefreshToken != prev.RefreshToken) {
		delivered.RefreshToken = next.RefreshToken
	}
	return delivered
}
