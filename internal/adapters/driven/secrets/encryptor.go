// Package secrets encrypts provider tokens before they reach a database.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
)

const (
	// blobVersion is the first byte of every encrypted blob.
	blobVersion = 0x01

	// nonceSize is the AES-GCM nonce size (12 bytes is standard)
	nonceSize = 12

	// KeySize is the required key size for AES-256
	KeySize = 32
)

var (
	// ErrInvalidKeySize is returned when the encryption key is not 32 bytes.
	ErrInvalidKeySize = errors.New("encryption key must be 32 bytes")

	// ErrInvalidBlobSize is returned when the encrypted blob is too small.
	ErrInvalidBlobSize = errors.New("encrypted blob is too small")

	// ErrUnsupportedVersion is returned when the blob version is not supported.
	ErrUnsupportedVersion = errors.New("unsupported secret blob version")

	// ErrDecryptionFailed is returned when decryption fails (wrong key or corrupted data).
	ErrDecryptionFailed = errors.New("failed to decrypt secret blob")
)

// Encryptor seals token strings with AES-256-GCM.
// Blob format: version(1) || nonce(12) || ciphertext(N)
type Encryptor struct {
	gcm cipher.AEAD
}

// NewEncryptor creates an encryptor with the given 32-byte key.
func NewEncryptor(key []byte) (*Encryptor, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidKeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}

	return &Encryptor{gcm: gcm}, nil
}

// NewEncryptorFromHex creates an encryptor from a 64-character hex key.
func NewEncryptorFromHex(hexKey string) (*Encryptor, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decode encryption key: %w", err)
	}
	return NewEncryptor(key)
}

// Seal encrypts s. The empty string seals to a nil blob, which the stores
// write as NULL.
func (e *Encryptor) Seal(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	blob := make([]byte, 1+nonceSize, 1+nonceSize+len(s)+e.gcm.Overhead())
	blob[0] = blobVersion
	copy(blob[1:], nonce)
	return e.gcm.Seal(blob, nonce, []byte(s), []byte{blobVersion}), nil
}

// Open decrypts a blob produced by Seal. A nil blob opens to "".
func (e *Encryptor) Open(blob []byte) (string, error) {
	if len(blob) == 0 {
		return "", nil
	}
	if len(blob) < 1+nonceSize+e.gcm.Overhead() {
		return "", ErrInvalidBlobSize
	}
	if blob[0] != blobVersion {
		return "", fmt.Errorf("%w: got version %d", ErrUnsupportedVersion, blob[0])
	}

	plaintext, err := e.gcm.Open(nil, blob[1:1+nonceSize], blob[1+nonceSize:], blob[:1])
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}
