// Package secrets encrypts exchange API secrets at rest.
package secrets

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
)

const (
	// KeySize is the AES-256 key length.
	KeySize   = 32
	NonceSize = 12
	// VersionPrefix tags every ciphertext: ENC[v1]:base64(nonce+ciphertext)
	VersionPrefix = "ENC[v%d]:"
)

var (
	ErrInvalidKey        = errors.New("invalid encryption key: must be 32 bytes")
	ErrInvalidCiphertext = errors.New("invalid ciphertext format")
	ErrDecryptionFailed  = errors.New("decryption failed")
)

// Encryptor handles AES-256-GCM encryption and decryption.
type Encryptor struct {
	key     []byte
	version int
}

// NewEncryptor creates an Encryptor from a raw 32 byte key.
func NewEncryptor(key []byte, version int) (*Encryptor, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	if version <= 0 {
		version = 1
	}
	return &Encryptor{key: key, version: version}, nil
}

// NewEncryptorFromSecret derives the key from configuration. A base64 value
// decoding to 32 bytes is used as is. Any other value is hashed with SHA-256,
// and an empty value falls back to the hash of fallback.
func NewEncryptorFromSecret(secret, fallback string) (*Encryptor, error) {
	if secret == "" {
		secret = fallback
	}
	if secret == "" {
		return nil, errors.New("encryption key or secret key is required")
	}
	if raw, err := base64.StdEncoding.DecodeString(secret); err == nil && len(raw) == KeySize {
		return NewEncryptor(raw, 1)
	}
	sum := sha256.Sum256([]byte(secret))
	return NewEncryptor(sum[:], 1)
}

func (e *Encryptor) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(e.key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return gcm, nil
}

// Encrypt seals plaintext and returns it with the version prefix.
func (e *Encryptor) Encrypt(plaintext string) (string, error) {
	gcm, err := e.gcm()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return fmt.Sprintf(VersionPrefix, e.version) + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt.
func (e *Encryptor) Decrypt(ciphertext string) (string, error) {
	if !IsEncrypted(ciphertext) {
		return "", ErrInvalidCiphertext
	}
	idx := strings.Index(ciphertext, "]:")
	if idx == -1 {
		return "", ErrInvalidCiphertext
	}

	data, err := base64.StdEncoding.DecodeString(ciphertext[idx+2:])
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}
	if len(data) < NonceSize {
		return "", ErrInvalidCiphertext
	}

	gcm, err := e.gcm()
	if err != nil {
		return "", err
	}
	plaintext, err := gcm.Open(nil, data[:NonceSize], data[NonceSize:], nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}

// Version returns the key version written into new ciphertexts.
func (e *Encryptor) Version() int {
	return e.version
}

// IsEncrypted reports whether s carries the ciphertext prefix.
func IsEncrypted(s string) bool {
	return strings.HasPrefix(s, "ENC[v")
}

// ParseVersion extracts the key version of a ciphertext, or 0 if it has none.
func ParseVersion(ciphertext string) int {
	if !IsEncrypted(ciphertext) {
		return 0
	}
	var version int
	if _, err := fmt.Sscanf(ciphertext, "ENC[v%d]:", &version); err != nil {
		return 0
	}
	return version
}
