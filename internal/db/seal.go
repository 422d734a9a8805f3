package db

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"

	"agendabot/internal/types"
)

const sealNonceSize = 24

// Sealer encrypts the persisted credential at rest with NaCl secretbox.
// The stored form is nonce || ciphertext. The key comes from
// StateConfig.SealKey and must be exactly 32 bytes.
type Sealer struct {
	key [32]byte
}

// NewSealer creates a Sealer from the configured key material.
func NewSealer(key types.SecretString) (*Sealer, error) {
	raw := key.Unmask()
	if len(raw) != 32 {
		return nil, types.NewAppError(
			types.ErrCodeInternalSeal,
			fmt.Sprintf("seal key must be 32 bytes, got %d", len(raw)),
			nil,
		)
	}
	var s Sealer
	copy(s.key[:], raw)
	return &s, nil
}

// Seal encrypts plaintext with a fresh random nonce.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	var nonce [sealNonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalSeal, "failed to generate nonce", err)
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, &s.key), nil
}

// Open decrypts a value produced by Seal. Tampered or truncated input is
// rejected.
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < sealNonceSize {
		return nil, types.NewAppError(types.ErrCodeInternalSeal, "sealed value too short", nil)
	}
	var nonce [sealNonceSize]byte
	copy(nonce[:], sealed[:sealNonceSize])
	plaintext, ok := secretbox.Open(nil, sealed[sealNonceSize:], &nonce, &s.key)
	if !ok {
		return nil, types.NewAppError(types.ErrCodeInternalSeal, "failed to open sealed value", nil)
	}
	return plaintext, nil
}
