package security

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// TokenVault seals broker tokens before they reach persistent storage, so the
// database never holds a usable credential. XChaCha20-Poly1305 with a random
// nonce prepended to the ciphertext.
type TokenVault struct {
	key []byte
}

// NewTokenVault creates a vault from a 32-byte key.
func NewTokenVault(key []byte) (*TokenVault, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("token vault key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	return &TokenVault{key: key}, nil
}

// Seal encrypts plaintext and returns nonce||ciphertext.
func (v *TokenVault) Seal(plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(v.key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts a nonce||ciphertext blob produced by Seal.
func (v *TokenVault) Open(sealed []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(v.key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	if len(sealed) < aead.NonceSize() {
		return nil, errors.New("sealed token too short")
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("opening sealed token: %w", err)
	}
	return plaintext, nil
}
