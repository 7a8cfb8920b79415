// Package crypto keeps signer credentials encrypted at rest. Account files
// may carry private keys as ENC[vN]:base64(nonce+ciphertext) blobs; the pool
// decrypts them once at startup and never hands the plaintext outward.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize   = 32
	nonceSize = 12
)

var (
	ErrInvalidKey        = errors.New("credential key must be 32 bytes")
	ErrInvalidCiphertext = errors.New("invalid credential ciphertext format")
	ErrDecryptionFailed  = errors.New("credential decryption failed")
	ErrKeyNotConfigured  = errors.New("credential key not configured")
)

// Sealer encrypts and decrypts credential strings with AES-256-GCM.
type Sealer struct {
	aead    cipher.AEAD
	version int
}

// NewSealer builds a Sealer for the given 32-byte key.
func NewSealer(key []byte, version int) (*Sealer, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return &Sealer{aead: aead, version: version}, nil
}

// SealerFromEnv reads a base64 key from the named environment variable.
func SealerFromEnv(envName string, version int) (*Sealer, error) {
	encoded := os.Getenv(envName)
	if encoded == "" {
		return nil, ErrKeyNotConfigured
	}
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", envName, err)
	}
	return NewSealer(key, version)
}

// Seal returns ENC[vN]:base64(nonce+ciphertext) for the plaintext.
func (s *Sealer) Seal(plaintext string) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := s.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return fmt.Sprintf("ENC[v%d]:%s", s.version, base64.StdEncoding.EncodeToString(sealed)), nil
}

// Open reverses Seal. Plaintext input (no ENC[ prefix) is passed through
// unchanged so account files can mix encrypted and plain credentials.
func (s *Sealer) Open(credential string) (string, error) {
	if !IsSealed(credential) {
		return credential, nil
	}
	idx := strings.Index(credential, "]:")
	if idx == -1 {
		return "", ErrInvalidCiphertext
	}
	data, err := base64.StdEncoding.DecodeString(credential[idx+2:])
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}
	if len(data) < nonceSize {
		return "", ErrInvalidCiphertext
	}
	plaintext, err := s.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}

// IsSealed reports whether the credential carries the encrypted-blob prefix.
func IsSealed(credential string) bool {
	return strings.HasPrefix(credential, "ENC[v")
}
