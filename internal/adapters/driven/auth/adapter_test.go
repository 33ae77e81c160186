package auth

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/custodia-labs/drivelink/internal/core/domain"
)

func TestNewAdapter(t *testing.T) {
	adapter := NewAdapter([]byte("test-secret"))
	if adapter == nil {
		t.Fatal("expected non-nil adapter")
	}
	if string(adapter.jwtSecret) != "test-secret" {
		t.Error("expected jwt secret to be set")
	}
}

func TestGenerateToken_RoundTrip(t *testing.T) {
	adapter := NewAdapter([]byte("secret"))
	now := time.Now()

	token, err := adapter.GenerateToken(&domain.TokenClaims{
		UserID:    "user-1",
		Email:     "alice@example.com",
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	claims, err := adapter.ParseToken(token)
	if err != nil {
		t.Fatalf("failed to parse token: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Errorf("expected user_id user-1, got %s", claims.UserID)
	}
	if claims.Email != "alice@example.com" {
		t.Errorf("expected email alice@example.com, got %s", claims.Email)
	}
	if claims.ExpiresAt != now.Add(time.Hour).Unix() {
		t.Errorf("expected exp %d, got %d", now.Add(time.Hour).Unix(), claims.ExpiresAt)
	}
}

func TestParseToken_Expired(t *testing.T) {
	adapter := NewAdapter([]byte("secret"))
	now := time.Now()

	token, _ := adapter.GenerateToken(&domain.TokenClaims{
		UserID:    "user-1",
		IssuedAt:  now.Add(-2 * time.Hour).Unix(),
		ExpiresAt: now.Add(-time.Hour).Unix(),
	})

	_, err := adapter.ParseToken(token)
	if !errors.Is(err, domain.ErrSessionExpired) {
		t.Errorf("expected ErrSessionExpired, got %v", err)
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	adapter1 := NewAdapter([]byte("secret1"))
	adapter2 := NewAdapter([]byte("secret2"))

	token, _ := adapter1.GenerateToken(&domain.TokenClaims{
		UserID:    "user-1",
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	})

	_, err := adapter2.ParseToken(token)
	if !errors.Is(err, domain.ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestParseToken_InvalidToken(t *testing.T) {
	adapter := NewAdapter([]byte("secret"))

	_, err := adapter.ParseToken("invalid.token.here")
	if !errors.Is(err, domain.ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestParseToken_RejectsNoneAlgorithm(t *testing.T) {
	adapter := NewAdapter([]byte("secret"))

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwtClaims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("failed to build unsigned token: %v", err)
	}

	if _, err := adapter.ParseToken(token); err == nil {
		t.Error("expected error for unsigned token")
	}
}

func TestParseToken_RequiresExpiry(t *testing.T) {
	adapter := NewAdapter([]byte("secret"))

	noExp := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{UserID: "user-1"})
	token, _ := noExp.SignedString([]byte("secret"))

	if _, err := adapter.ParseToken(token); err == nil {
		t.Error("expected error for token without expiry")
	}
}

func TestDeriveKey(t *testing.T) {
	master := []byte("master-secret")

	state1, err := DeriveKey(master, PurposeStateToken)
	if err != nil {
		t.Fatalf("DeriveKey() error = %v", err)
	}
	state2, _ := DeriveKey(master, PurposeStateToken)
	other, _ := DeriveKey(master, "some other purpose")

	if len(state1) != 32 {
		t.Errorf("expected 32-byte key, got %d", len(state1))
	}
	if !bytes.Equal(state1, state2) {
		t.Error("expected derivation to be deterministic")
	}
	if bytes.Equal(state1, other) {
		t.Error("expected different purposes to yield different keys")
	}
	if bytes.Equal(state1, master) {
		t.Error("derived key must differ from the master secret")
	}

	if _, err := DeriveKey(nil, PurposeStateToken); err == nil {
		t.Error("expected error for empty master secret")
	}
}
