package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Classification.BatchSize = 25
	cfg.Query.MaxRows = 50

	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 25, got.Classification.BatchSize)
	assert.Equal(t, 50, got.Query.MaxRows)
	assert.Equal(t, 30*time.Second, got.Classification.MaxBackoff)
	assert.Equal(t, filepath.Join(dir, "data", "raw"), got.Paths.RawDir, "relative paths resolve against the config dir")
	assert.Equal(t, filepath.Join(dir, "categories.yaml"), got.Paths.TaxonomyFile)
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 50, cfg.Classification.BatchSize)
	assert.Equal(t, 4, cfg.Classification.MaxRetries)
	assert.Equal(t, time.Second, cfg.Classification.InitialBackoff)
	assert.Equal(t, "transactions", cfg.Query.Table)
	assert.Equal(t, 10, cfg.Query.MaxRows)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	yaml := "classification:\n  batch_size: 10\n  initial_backoff: 250ms\nlog:\n  level: debug\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Classification.BatchSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Classification.InitialBackoff)
	assert.Equal(t, 4, cfg.Classification.MaxRetries)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("classification:\n  batch_size: 0\n"), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "batch_size")
}

func TestLoadNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadOrDefault(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOrDefault(filepath.Join(dir, FileName))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "logs"), cfg.Paths.LogDir)
}

func TestYAMLFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, Save(path, Default()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	contents := string(data)

	assert.Contains(t, contents, "raw_dir: data/raw")
	assert.Contains(t, contents, "batch_size: 50")
	assert.Contains(t, contents, "table: transactions")
}

func TestLoadEnv(t *testing.T) {
	parent := t.TempDir()
	dir := filepath.Join(parent, "project")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(parent, ".env"), []byte("GEMINI_API_KEY=from-parent\n"), 0o644))

	t.Setenv(EnvAPIKey, "")
	t.Setenv(EnvAPIKeyLegacy, "")
	os.Unsetenv(EnvAPIKeyLegacy)

	require.NoError(t, LoadEnv(dir))
	key, err := APIKey()
	require.NoError(t, err)
	assert.Equal(t, "from-parent", key)
}

func TestAPIKey_Precedence(t *testing.T) {
	t.Setenv(EnvAPIKey, "primary")
	t.Setenv(EnvAPIKeyLegacy, "legacy")
	key, err := APIKey()
	require.NoError(t, err)
	assert.Equal(t, "primary", key)

	t.Setenv(EnvAPIKey, "")
	t.Setenv(EnvAPIKeyLegacy, "")
	_, err = APIKey()
	assert.ErrorIs(t, err, ErrNoAPIKey)
}
