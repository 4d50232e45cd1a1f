package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialStore_SetLoadDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "credentials.json")
	store := NewCredentialStore(path)

	creds, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, creds)

	require.NoError(t, store.Set("flux", "bfl-123456"))
	require.NoError(t, store.Set("suno", "suno-abcdef"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	creds, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"flux": "bfl-123456", "suno": "suno-abcdef"}, creds)

	masked, err := store.Masked()
	require.NoError(t, err)
	assert.Equal(t, [][2]string{{"flux", "****3456"}, {"suno", "****cdef"}}, masked)

	require.NoError(t, store.Delete("flux"))
	creds, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"suno": "suno-abcdef"}, creds)
}

func TestCredentialStore_UnknownVendor(t *testing.T) {
	store := NewCredentialStore(filepath.Join(t.TempDir(), "c.json"))
	assert.Error(t, store.Set("nobody", "x"))
}

func TestCredentialStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewCredentialStore(path).Load()
	assert.Error(t, err)
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "****", MaskSecret("abc"))
	assert.Equal(t, "****7890", MaskSecret("sk-1234567890"))
}
