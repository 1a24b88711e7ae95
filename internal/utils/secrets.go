// internal/utils/secrets.go
package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
)

// sealedPrefix marks values produced by SealSecret so plain values can pass through OpenSecret.
const sealedPrefix = "enc:"

func secretCipher(passphrase string) (cipher.AEAD, error) {
	key := sha256.Sum256([]byte(passphrase))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// SealSecret encrypts plaintext with AES-GCM under a key derived from passphrase.
// Empty plaintext or passphrase returns plaintext unchanged.
func SealSecret(plaintext, passphrase string) (string, error) {
	if plaintext == "" || passphrase == "" || IsSealed(plaintext) {
		return plaintext, nil
	}
	gcm, err := secretCipher(passphrase)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return sealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// OpenSecret reverses SealSecret. Values without the sealed prefix are returned as is.
func OpenSecret(value, passphrase string) (string, error) {
	if !IsSealed(value) {
		return value, nil
	}
	if passphrase == "" {
		return "", fmt.Errorf("sealed secret present but no passphrase configured")
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, sealedPrefix))
	if err != nil {
		return "", err
	}
	gcm, err := secretCipher(passphrase)
	if err != nil {
		return "", err
	}
	if len(raw) < gcm.NonceSize() {
		return "", fmt.Errorf("ciphertext too short")
	}
	nonce, body := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, body, nil)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// IsSealed reports whether value was produced by SealSecret.
func IsSealed(value string) bool {
	return strings.HasPrefix(value, sealedPrefix)
}
