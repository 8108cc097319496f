// Package secrets derives purpose-bound keys from the session secret and
// seals small values (bearer tokens) before they are persisted.
package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

// ErrOpen is returned when a sealed value fails authentication.
var ErrOpen = errors.New("secrets: cannot open sealed value")

// DeriveKey expands secret into n bytes bound to purpose.
func DeriveKey(secret, purpose string, n int) ([]byte, error) {
	if secret == "" {
		return nil, errors.New("secrets: empty secret")
	}
	key := make([]byte, n)
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(purpose))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("secrets: derive %s: %w", purpose, err)
	}
	return key, nil
}

// Sealer encrypts and authenticates values with a key derived from the
// session secret.
type Sealer struct {
	key [32]byte
}

// NewSealer derives the token sealing key from secret.
func NewSealer(secret string) (*Sealer, error) {
	k, err := DeriveKey(secret, "dashboard token sealing", 32)
	if err != nil {
		return nil, err
	}
	s := &Sealer{}
	copy(s.key[:], k)
	return s, nil
}

// Seal returns nonce || box.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("secrets: nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, &s.key), nil
}

// Open reverses Seal, failing on tampered or foreign input.
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < nonceSize+secretbox.Overhead {
		return nil, ErrOpen
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	out, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &s.key)
	if !ok {
		return nil, ErrOpen
	}
	return out, nil
}
