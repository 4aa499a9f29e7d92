package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, filepath.Join(home, ".semcode", "index.db"), cfg.Store.Path)
	assert.Equal(t, filepath.Join(home, ".semcode", "snapshots"), cfg.Index.SnapshotDir)
	assert.Equal(t, 20, cfg.Embedder.BatchSize)
	assert.Equal(t, 2000, cfg.Index.MaxChunkSize)
	assert.Equal(t, 5, cfg.Index.OverlapLines)
	assert.Equal(t, 200*time.Millisecond, cfg.Index.ProgressInterval)
	assert.Equal(t, 5*time.Second, cfg.Index.GracePeriod)
	assert.Equal(t, DefaultIgnorePatterns, cfg.Index.IgnorePatterns)
	assert.Equal(t, DefaultIncludeExtensions, cfg.Index.IncludeExtensions)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SEMCODE_STORE_BACKEND", "memory")
	t.Setenv("SEMCODE_LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Empty(t, cfg.Store.Path, "sqlite path fallback only applies to the sqlite backend")
}

func TestLoadConfigFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	path := filepath.Join(t.TempDir(), "semcode.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  backend: pgvector
  dsn: postgres://localhost/semcode
index:
  workers: 3
  ignore_patterns:
    - "tmp/"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "pgvector", cfg.Store.Backend)
	assert.Equal(t, "postgres://localhost/semcode", cfg.Store.DSN)
	assert.Equal(t, 3, cfg.Index.Workers)
	assert.Equal(t, []string{"tmp/"}, cfg.Index.IgnorePatterns)
	// File values do not disturb unrelated defaults.
	assert.Equal(t, 2000, cfg.Index.MaxChunkSize)
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
