package auth

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// PurposeStateToken binds a derived key to signing authorization states.
const PurposeStateToken = "drivelink state-token v1"

// DeriveKey expands a master secret into a 32-byte key bound to purpose.
func DeriveKey(master []byte, purpose string) ([]byte, error) {
	if len(master) == 0 {
		return nil, errors.New("derive key: empty master secret")
	}
	key := make([]byte, 32)
	r := hkdf.New(sha256.New, master, nil, []byte(purpose))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}
