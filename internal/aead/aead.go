// Package aead implements C8: AES-256-GCM encryption/decryption of opaque
// blobs under the symmetric key resolved by the key engine.
package aead

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"backy/internal/backyerrors"
)

const (
	KeySize   = 32 // AES-256
	NonceSize = 12
)

// Service encrypts and decrypts with a single symmetric key for its
// lifetime, following the nonce ∥ ciphertext ∥ tag framing convention.
type Service struct {
	gcm cipher.AEAD
}

// New constructs a Service from a 256-bit key.
func New(key []byte) (*Service, error) {
	if len(key) != KeySize {
		return nil, backyerrors.New(backyerrors.KindKeyWrapFailed, fmt.Sprintf("symmetric key must be %d bytes, got %d", KeySize, len(key)), nil)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("construct AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("construct GCM mode: %w", err)
	}
	return &Service{gcm: gcm}, nil
}

// GenerateKey returns a fresh random 256-bit symmetric key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate symmetric key: %w", err)
	}
	return key, nil
}

// Encrypt authenticates and encrypts plaintext with no additional data,
// returning nonce ∥ ciphertext ∥ tag. Empty input is rejected.
func (s *Service) Encrypt(plaintext []byte) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, backyerrors.New(backyerrors.KindKeyWrapFailed, "cannot encrypt empty plaintext", nil)
	}
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	sealed := s.gcm.Seal(nil, nonce, plaintext, nil)
	return append(nonce, sealed...), nil
}

// Decrypt splits the leading nonce from blob and authenticates/decrypts the
// remainder. Empty input, a too-short blob, or an authentication failure
// (including any single flipped ciphertext byte) is an error.
func (s *Service) Decrypt(blob []byte) ([]byte, error) {
	if len(blob) == 0 {
		return nil, backyerrors.New(backyerrors.KindKeyUnwrapFailed, "cannot decrypt empty input", nil)
	}
	if len(blob) < NonceSize {
		return nil, backyerrors.New(backyerrors.KindKeyUnwrapFailed, "ciphertext shorter than nonce", nil)
	}
	nonce, ciphertext := blob[:NonceSize], blob[NonceSize:]
	plaintext, err := s.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, backyerrors.NewKeyUnwrapFailed(err)
	}
	return plaintext, nil
}
