// Package credential encrypts stored user passwords reversibly so they can be
// decrypted and compared at login.
//
// This is two-way encryption, not hashing. Anyone holding the key can recover
// every stored password.
package credential

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DefaultKey is used when no key is configured. It is public, so any
// deployment relying on it has effectively plaintext passwords.
const DefaultKey = "VtsDefaultEncryptionKey-ChangeMe!!2025"

const keySize = 32

var (
	ErrDecoding = errors.New("ciphertext is not valid base64")
	ErrCrypto   = errors.New("ciphertext could not be decrypted")
)

type Cipher struct {
	key    []byte
	random io.Reader
}

// New builds a cipher from operator key material. The key is truncated or
// zero-padded to 32 bytes; an empty key selects DefaultKey.
func New(key string) *Cipher {
	return &Cipher{key: normalizeKey(key), random: rand.Reader}
}

// UsesDefaultKey reports whether key would fall back to DefaultKey.
func UsesDefaultKey(key string) bool {
	return key == ""
}

func normalizeKey(key string) []byte {
	if key == "" {
		key = DefaultKey
	}
	out := make([]byte, keySize)
	copy(out, key)
	return out
}

// Encrypt returns base64(IV || AES-256-CBC(PKCS#7(plaintext))). A fresh IV is
// drawn on every call.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("new cipher: %w", err)
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	out := make([]byte, aes.BlockSize+len(padded))
	iv := out[:aes.BlockSize]
	if _, err := io.ReadFull(c.random, iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[aes.BlockSize:], padded)

	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt. Blank input decrypts to the empty string.
func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	if strings.TrimSpace(ciphertext) == "" {
		return "", nil
	}

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecoding, err)
	}
	if len(raw) < 2*aes.BlockSize || len(raw)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: payload length %d", ErrCrypto, len(raw))
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("new cipher: %w", err)
	}

	iv, body := raw[:aes.BlockSize], raw[aes.BlockSize:]
	plain := make([]byte, len(body))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, body)

	plain, err = pkcs7Unpad(plain, aes.BlockSize)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func pkcs7Pad(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize
	return append(append([]byte(nil), b...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(b []byte, blockSize int) ([]byte, error) {
	if len(b) == 0 || len(b)%blockSize != 0 {
		return nil, fmt.Errorf("%w: bad block alignment", ErrCrypto)
	}
	n := int(b[len(b)-1])
	if n == 0 || n > blockSize {
		return nil, fmt.Errorf("%w: bad padding", ErrCrypto)
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, fmt.Errorf("%w: bad padding", ErrCrypto)
		}
	}
	return b[:len(b)-n], nil
}
