package security

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTokenVaultRejectsBadKeySize(t *testing.T) {
	_, err := NewTokenVault([]byte("short"))
	assert.Error(t, err)

	_, err = NewTokenVault(bytes.Repeat([]byte{1}, 32))
	assert.NoError(t, err)
}

func TestSealOpenRoundTrip(t *testing.T) {
	vault, err := NewTokenVault(bytes.Repeat([]byte{1}, 32))
	require.NoError(t, err)

	plaintext := []byte(`{"access_token":"abc","refresh_token":"def"}`)
	sealed, err := vault.Seal(plaintext)
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "access_token", "ciphertext must not leak plaintext")

	opened, err := vault.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestSealProducesFreshNonces(t *testing.T) {
	vault, err := NewTokenVault(bytes.Repeat([]byte{1}, 32))
	require.NoError(t, err)

	a, err := vault.Seal([]byte("same"))
	require.NoError(t, err)
	b, err := vault.Seal([]byte("same"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestOpenRejectsTamperedCiphertext(t *testing.T) {
	vault, err := NewTokenVault(bytes.Repeat([]byte{1}, 32))
	require.NoError(t, err)

	sealed, err := vault.Seal([]byte("secret"))
	require.NoError(t, err)

	sealed[len(sealed)-1] ^= 0xFF
	_, err = vault.Open(sealed)
	assert.Error(t, err)
}

func TestOpenRejectsWrongKey(t *testing.T) {
	vaultA, err := NewTokenVault(bytes.Repeat([]byte{1}, 32))
	require.NoError(t, err)
	vaultB, err := NewTokenVault(bytes.Repeat([]byte{2}, 32))
	require.NoError(t, err)

	sealed, err := vaultA.Seal([]byte("secret"))
	require.NoError(t, err)

	_, err = vaultB.Open(sealed)
	assert.Error(t, err)
}

func TestOpenRejectsTruncatedBlob(t *testing.T) {
	vault, err := NewTokenVault(bytes.Repeat([]byte{1}, 32))
	require.NoError(t, err)

	_, err = vault.Open([]byte("tiny"))
	assert.Error(t, err)
}
