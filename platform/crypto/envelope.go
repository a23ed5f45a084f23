// Package crypto provides envelope encryption for credential fields that are
// stored at rest (e.g. the SMS provider auth token). Each value gets its own
// random salt and nonce; the key is derived from a master passphrase with
// PBKDF2-SHA256 and the value is sealed with AES-256-GCM.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// Prefix marks an envelope-encrypted value so plaintext config values
	// can still be passed through during development.
	Prefix = "enc:v1:"

	saltSize   = 16
	keySize    = 32
	iterations = 120000
)

// IsEncrypted reports whether the value carries the envelope prefix.
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, Prefix)
}

// Encrypt seals plaintext with a key derived from the passphrase.
// Output layout: Prefix + base64(salt || nonce || ciphertext).
func Encrypt(plaintext, passphrase string) (string, error) {
	if passphrase == "" {
		return "", errors.New("passphrase must not be empty")
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	aesGCM, err := newGCM(passphrase, salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aesGCM.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := aesGCM.Seal(nil, nonce, []byte(plaintext), nil)

	payload := make([]byte, 0, len(salt)+len(nonce)+len(sealed))
	payload = append(payload, salt...)
	payload = append(payload, nonce...)
	payload = append(payload, sealed...)

	return Prefix + base64.StdEncoding.EncodeToString(payload), nil
}

// Decrypt opens an envelope-encrypted value. Values without the envelope
// prefix are returned unchanged so plaintext dev config keeps working.
func Decrypt(value, passphrase string) (string, error) {
	if !IsEncrypted(value) {
		return value, nil
	}
	if passphrase == "" {
		return "", errors.New("passphrase must not be empty")
	}

	payload, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, Prefix))
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}
	if len(payload) < saltSize {
		return "", errors.New("ciphertext too short")
	}

	salt, rest := payload[:saltSize], payload[saltSize:]

	aesGCM, err := newGCM(passphrase, salt)
	if err != nil {
		return "", err
	}

	nonceSize := aesGCM.NonceSize()
	if len(rest) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := rest[:nonceSize], rest[nonceSize:]
	plaintext, err := aesGCM.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}

	return string(plaintext), nil
}

// Mask renders a credential for operator display, keeping only the last four
// characters visible.
func Mask(value string) string {
	if len(value) <= 4 {
		return strings.Repeat("*", len(value))
	}
	return strings.Repeat("*", len(value)-4) + value[len(value)-4:]
}

func newGCM(passphrase string, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(passphrase), salt, iterations, keySize, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}

	return aesGCM, nil
}
