// File: internal/infra/security/encryption_service.go
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// MessageCipher seals chat message bodies at rest with AES-GCM.
// Output format is base64(nonce || ciphertext); each call draws a fresh nonce.
type MessageCipher struct {
	gcm cipher.AEAD
}

// NewMessageCipher returns (nil, nil) for an empty key so callers can treat
// encryption as switched off.
func NewMessageCipher(key string) (*MessageCipher, error) {
	if key == "" {
		return nil, nil
	}
	k := []byte(key)
	if n := len(k); n != 16 && n != 24 && n != 32 {
		return nil, fmt.Errorf("encryption key must be 16, 24, or 32 bytes; got %d", n)
	}
	block, err := aes.NewCipher(k)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return &MessageCipher{gcm: gcm}, nil
}

// Enabled is nil-safe.
func (c *MessageCipher) Enabled() bool { return c != nil }

// Seal binds the ciphertext to sessionID so a body cannot be replayed into
// another conversation.
func (c *MessageCipher) Seal(sessionID, plaintext string) (string, error) {
	nonce := make([]byte, c.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}
	ct := c.gcm.Seal(nonce, nonce, []byte(plaintext), []byte(sessionID))
	return base64.StdEncoding.EncodeToString(ct), nil
}

func (c *MessageCipher) Open(sessionID, sealed string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}
	ns := c.gcm.NonceSize()
	if len(data) < ns {
		return "", errors.New("ciphertext too short")
	}
	pt, err := c.gcm.Open(nil, data[:ns], data[ns:], []byte(sessionID))
	if err != nil {
		return "", fmt.Errorf("gcm open: %w", err)
	}
	return string(pt), nil
}
