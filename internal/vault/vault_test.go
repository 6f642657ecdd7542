package vault

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(b byte) []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = b
	}
	return key
}

func TestVault_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.bin")

	v, err := New(path, testKey(1))
	require.NoError(t, err)
	require.NoError(t, v.Set("refresh_token", []byte("rt-secret")))
	require.NoError(t, v.Set("contact_phone", []byte("07700 900000")))

	// Reopen from disk with the same key.
	v2, err := New(path, testKey(1))
	require.NoError(t, err)
	got, err := v2.Get("refresh_token")
	require.NoError(t, err)
	assert.True(t, bytes.Equal(got, []byte("rt-secret")))

	require.NoError(t, v2.Delete("refresh_token"))
	_, err = v2.Get("refresh_token")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVault_WrongKeyFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.bin")

	v, err := New(path, testKey(1))
	require.NoError(t, err)
	require.NoError(t, v.Set("refresh_token", []byte("rt-secret")))

	_, err = New(path, testKey(2))
	assert.Error(t, err)
}

func TestVault_BadKeyLength(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "vault.bin"), []byte("short"))
	assert.Error(t, err)
}
