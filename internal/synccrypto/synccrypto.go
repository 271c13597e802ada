// Package synccrypto provides the at-rest payload protection capability for
// the offline mutation queue. The queue only depends on the Cipher interface;
// AES-256-GCM with an Argon2id-derived key is the default implementation.
package synccrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

const (
	// keyLen is the AES-256 key length in bytes.
	keyLen = 32
	// nonceLen is the GCM nonce length in bytes.
	nonceLen = 12
	// saltLen is the Argon2id salt length in bytes.
	saltLen = 32

	// Argon2id parameters.
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

// Cipher encrypts and decrypts queued operation payloads.
type Cipher interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// AESCipher is an AES-256-GCM Cipher. The returned ciphertext is
// nonce || sealed (nonce is prepended).
type AESCipher struct {
	key []byte
}

// NewAESCipher creates a Cipher from a 256-bit key.
func NewAESCipher(key []byte) (*AESCipher, error) {
	if len(key) != keyLen {
		return nil, errors.New("key must be 32 bytes")
	}
	k := make([]byte, keyLen)
	copy(k, key)
	return &AESCipher{key: k}, nil
}

// Encrypt encrypts plaintext using AES-256-GCM.
func (c *AESCipher) Encrypt(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, fmt.Errorf("aes cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}

	nonce := make([]byte, nonceLen)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("random nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt decrypts ciphertext produced by Encrypt.
func (c *AESCipher) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < nonceLen {
		return nil, errors.New("ciphertext too short")
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, fmt.Errorf("aes cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}

	plaintext, err := gcm.Open(nil, ciphertext[:nonceLen], ciphertext[nonceLen:], nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plaintext, nil
}

// NopCipher passes payloads through unchanged. Used when at-rest protection
// is disabled and in tests.
type NopCipher struct{}

func (NopCipher) Encrypt(plaintext []byte) ([]byte, error)  { return plaintext, nil }
func (NopCipher) Decrypt(ciphertext []byte) ([]byte, error) { return ciphertext, nil }

// DeriveKey derives a 256-bit key from a passphrase using Argon2id.
// Returns the derived key and the random salt used.
func DeriveKey(passphrase string) (key, salt []byte, err error) {
	salt = make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, nil, fmt.Errorf("random salt: %w", err)
	}
	key = argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, keyLen)
	return key, salt, nil
}

// DeriveKeyWithSalt derives a key using a known salt (for reopening an
// existing queue database).
func DeriveKeyWithSalt(passphrase string, salt []byte) ([]byte, error) {
	if len(salt) != saltLen {
		return nil, fmt.Errorf("salt must be %d bytes", saltLen)
	}
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, keyLen), nil
}
