package credentials

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_LoadMissing(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "config.json"))

	cred, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Credential{}, cred)
}

func TestFileStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "whoop-cli", "config.json")
	store := NewFileStore(path)

	want := Credential{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		AccessToken:  "access",
		RefreshToken: "refresh",
	}
	require.NoError(t, store.Save(ctx, want))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]map[string]string
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "client-id", doc["oauth"]["clientId"])
	assert.Equal(t, "refresh", doc["oauth"]["refreshToken"])

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFileStore_LoadWithoutOAuthSection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"other":true}`), 0600))

	cred, err := NewFileStore(path).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Credential{}, cred)
}

func TestFileStore_LoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0600))

	_, err := NewFileStore(path).Load(context.Background())
	assert.ErrorContains(t, err, "failed to parse config")
}

func TestFileStore_Clear(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "config.json")
	store := NewFileStore(path)

	require.NoError(t, store.Save(ctx, Credential{AccessToken: "a"}))
	require.NoError(t, store.Clear(ctx))
	assert.False(t, FileExists(path))

	// clearing twice is fine
	require.NoError(t, store.Clear(ctx))
}

func TestNewFileStore_DefaultPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	store := NewFileStore("")
	assert.Equal(t, filepath.Join("/tmp/xdg", "whoop-cli", "config.json"), store.Location())
}
