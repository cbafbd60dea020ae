package store

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// AnswerCipher encrypts answer content before it reaches the database and
// decrypts it on the way out. Ciphertext is base64(nonce || sealed).
type AnswerCipher struct {
	aead cipher.AEAD
}

// NewAnswerCipher builds a cipher from a 32-byte key.
func NewAnswerCipher(key []byte) (*AnswerCipher, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("answer cipher key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("init answer cipher: %w", err)
	}
	return &AnswerCipher{aead: aead}, nil
}

// Seal encrypts plaintext. Empty input passes through unchanged so blank
// checks keep working on the stored value.
func (c *AnswerCipher) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal.
func (c *AnswerCipher) Open(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	if len(raw) < c.aead.NonceSize() {
		return "", errors.New("ciphertext shorter than nonce")
	}
	nonce, sealed := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("open ciphertext: %w", err)
	}
	return string(plain), nil
}
