package security

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
)

var ErrInvalidCiphertext = errors.New("invalid ciphertext")

func loadKey() (*[keySize]byte, error) {
	raw := GetConfig().BrokerCredentialsKey
	if raw == "" {
		return nil, errors.New("BROKER_CREDENTIALS_KEY is not set")
	}
	return ParseKey(raw)
}

// ParseKey decodes a base64 secretbox key.
func ParseKey(raw string) (*[keySize]byte, error) {
	b, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}
	if len(b) != keySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", keySize, len(b))
	}
	var key [keySize]byte
	copy(key[:], b)
	return &key, nil
}

// EncryptString seals plain with the configured key. The output is
// base64(nonce || box).
func EncryptString(plain string) (string, error) {
	key, err := loadKey()
	if err != nil {
		return "", err
	}
	return EncryptWithKey(key, plain)
}

// DecryptString reverses EncryptString.
func DecryptString(sealed string) (string, error) {
	key, err := loadKey()
	if err != nil {
		return "", err
	}
	return DecryptWithKey(key, sealed)
}

func EncryptWithKey(key *[keySize]byte, plain string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	out := secretbox.Seal(nonce[:], []byte(plain), &nonce, key)
	return base64.StdEncoding.EncodeToString(out), nil
}

func DecryptWithKey(key *[keySize]byte, sealed string) (string, error) {
	b, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}
	if len(b) < nonceSize+secretbox.Overhead {
		return "", ErrInvalidCiphertext
	}
	var nonce [nonceSize]byte
	copy(nonce[:], b[:nonceSize])

	plain, ok := secretbox.Open(nil, b[nonceSize:], &nonce, key)
	if !ok {
		return "", ErrInvalidCiphertext
	}
	return string(plain), nil
}
