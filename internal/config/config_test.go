package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 3, cfg.Repost.MaxAttempts)
	assert.Equal(t, 30, cfg.Repost.BackoffSeconds)
	assert.Equal(t, 15, cfg.Auto.IntervalMinutes)
	assert.False(t, cfg.Auto.Enabled)
	assert.True(t, cfg.Feed.Headless)
	assert.Equal(t, "smtp", cfg.Email.Provider)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := Default()
	cfg.Feed.PostsPerFetch = 12
	cfg.Repost.CreditOriginal = false
	cfg.Auto.Enabled = true
	cfg.Auto.Timezone = "America/New_York"

	require.NoError(t, cfg.SaveTo(path))

	loaded, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestSaveToRestrictsPermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, Default().SaveTo(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	// SMTP credentials can live in here.
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestLoadFromMissingFile(t *testing.T) {
	_, err := LoadFrom(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}
