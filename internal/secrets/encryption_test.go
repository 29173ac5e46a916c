package secrets

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecrypt(t *testing.T) {
	enc, err := NewEncryptorFromSecret("", "dev-secret")
	require.NoError(t, err)

	ct, err := enc.Encrypt("my-api-secret")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(ct, "ENC[v1]:"))
	assert.NotContains(t, ct, "my-api-secret")
	assert.Equal(t, 1, ParseVersion(ct))

	pt, err := enc.Decrypt(ct)
	require.NoError(t, err)
	assert.Equal(t, "my-api-secret", pt)
}

func TestEncrypt_UsesFreshNonce(t *testing.T) {
	enc, err := NewEncryptor(make([]byte, KeySize), 1)
	require.NoError(t, err)

	a, err := enc.Encrypt("same")
	require.NoError(t, err)
	b, err := enc.Encrypt("same")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestDecrypt_Errors(t *testing.T) {
	enc, err := NewEncryptorFromSecret("key-one", "")
	require.NoError(t, err)
	other, err := NewEncryptorFromSecret("key-two", "")
	require.NoError(t, err)

	ct, err := enc.Encrypt("secret")
	require.NoError(t, err)

	_, err = other.Decrypt(ct)
	assert.ErrorIs(t, err, ErrDecryptionFailed)

	_, err = enc.Decrypt("plain-text")
	assert.ErrorIs(t, err, ErrInvalidCiphertext)

	_, err = enc.Decrypt("ENC[v1]:AAAA")
	assert.ErrorIs(t, err, ErrInvalidCiphertext)

	assert.Equal(t, 0, ParseVersion("plain"))
}

func TestNewEncryptor_InvalidKey(t *testing.T) {
	_, err := NewEncryptor([]byte("short"), 1)
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = NewEncryptorFromSecret("", "")
	assert.Error(t, err)
}
