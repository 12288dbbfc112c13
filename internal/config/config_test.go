package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMatchesMemoryBackends(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "memory", cfg.StoreBackend)
	assert.Equal(t, "memory", cfg.QueueBackend)
	assert.Equal(t, 2, cfg.Preparing.Concurrency)
	assert.Equal(t, 8, cfg.Loading.Concurrency)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
}

func TestLoadWithNoPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadWithMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadMergesYamlOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forwardctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store_backend: postgres\npreparing:\n  concurrency: 5\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.StoreBackend)
	assert.Equal(t, 5, cfg.Preparing.Concurrency)
	assert.Equal(t, "memory", cfg.QueueBackend, "fields absent from the file keep their default")
}

func TestEnvironmentOverridesWinOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forwardctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store_backend: postgres\n"), 0o644))

	t.Setenv("FORWARDCTL_STORE_BACKEND", "memory")
	t.Setenv("FORWARDCTL_LOADING_CONCURRENCY", "16")
	t.Setenv("FORWARDCTL_POLL_INTERVAL", "500ms")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.StoreBackend)
	assert.Equal(t, 16, cfg.Loading.Concurrency)
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval)
}

func TestMalformedEnvIntFallsBackToExistingValue(t *testing.T) {
	t.Setenv("FORWARDCTL_PREPARING_CONCURRENCY", "not-a-number")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Preparing.Concurrency, cfg.Preparing.Concurrency)
}
