// Package seal encrypts pairing payloads with a password the server never
// sees. A wrong password and a corrupt payload are indistinguishable by
// design: both fail authentication.
package seal

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltLen    = 16
	keyLen     = 32
	iterations = 120_000
)

// ErrDecrypt is returned for any payload that fails to open, whatever the
// underlying cause.
var ErrDecrypt = errors.New("seal: decrypt failed")

// Encrypt derives a key from password (PBKDF2-SHA256 with a fresh salt) and
// seals plaintext with AES-256-GCM. The output is base64(salt‖nonce‖cipher).
func Encrypt(plaintext []byte, password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("seal: salt: %w", err)
	}

	gcm, err := newGCM(password, salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("seal: nonce: %w", err)
	}

	out := make([]byte, 0, saltLen+len(nonce)+len(plaintext)+gcm.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	out = gcm.Seal(out, nonce, plaintext, nil)

	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt. Any malformed or unauthentic payload, including
// one sealed under a different password, yields ErrDecrypt.
func Decrypt(payload, password string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, ErrDecrypt
	}
	if len(raw) < saltLen {
		return nil, ErrDecrypt
	}
	salt, rest := raw[:saltLen], raw[saltLen:]

	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, ErrDecrypt
	}
	if len(rest) < gcm.NonceSize() {
		return nil, ErrDecrypt
	}
	nonce, ciphertext := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}

func newGCM(password string, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(password), salt, iterations, keyLen, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("seal: cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
