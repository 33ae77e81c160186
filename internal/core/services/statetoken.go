package services

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/drivelink/internal/core/domain"
)

// DefaultStateTTL is how long a signed authorization state stays valid.
const DefaultStateTTL = 15 * time.Minute

// stateRandomBytes is the entropy of the CSRF token and the nonce.
const stateRandomBytes = 32

// StateCodecConfig holds configuration for the state codec.
type StateCodecConfig struct {
	// Secret is the HMAC-SHA256 signing key.
	Secret []byte

	// TTL is the validity window. Defaults to DefaultStateTTL.
	TTL time.Duration

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// StateCodec issues and verifies signed authorization-flow states.
// The wire format is base64(JSON payload) + "." + hex(HMAC-SHA256(payload)).
type StateCodec struct {
	secret []byte
	ttl    time.Duration
	clock  func() time.Time
}

// NewStateCodec creates a new state codec.
func NewStateCodec(cfg StateCodecConfig) (*StateCodec, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("state codec: empty signing secret")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &StateCodec{
		secret: append([]byte(nil), cfg.Secret...),
		ttl:    ttl,
		clock:  clock,
	}, nil
}

// TTL returns the validity window of issued states.
func (c *StateCodec) TTL() time.Duration {
	return c.ttl
}

// Issue builds and signs a fresh state for the user.
func (c *StateCodec) Issue(userID string, meta map[string]string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: user id is required", domain.ErrInvalidInput)
	}

	csrf, err := randomHex(stateRandomBytes)
	if err != nil {
		return "", fmt.Errorf("generate csrf token: %w", err)
	}
	nonce, err := randomHex(stateRandomBytes)
	if err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	state := domain.AuthFlowState{
		UserID:    userID,
		CSRFToken: csrf,
		Timestamp: c.clock().UnixMilli(),
		Nonce:     nonce,
		Meta:      meta,
	}

	payload, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("marshal state: %w", err)
	}

	encoded := base64.StdEncoding.EncodeToString(payload)
	return encoded + "." + c.sign(encoded), nil
}

// Verify checks a signed state and returns its payload.
// It has no side effects; consuming the nonce is up to the caller.
func (c *StateCodec) Verify(signed string) (*domain.AuthFlowState, error) {
	parts := strings.Split(signed, ".")
	if len(parts) != 2 {
		return nil, domain.ErrMalformedToken
	}
	encoded, signature := parts[0], parts[1]

	expected := c.sign(encoded)
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return nil, domain.ErrSignatureMismatch
	}

	payload, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, domain.ErrMalformedToken
	}

	var state domain.AuthFlowState
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, domain.ErrMalformedToken
	}

	age := c.clock().Sub(state.IssuedAt())
	if age > c.ttl {
		return nil, domain.ErrExpired
	}

	if !state.HasRequiredFields() {
		return nil, domain.ErrMissingFields
	}

	return &state, nil
}

func (c *StateCodec) sign(encoded string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(encoded))
	return hex.EncodeToString(mac.Sum(nil))
}

// randomHex returns n cryptographically random bytes, hex encoded.
func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
