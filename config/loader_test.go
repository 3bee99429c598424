package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoader_DefaultsOnly(t *testing.T) {
	cfg, err := NewLoader().WithEnvPrefix("ETHOS_TEST_UNSET_PREFIX").Load()
	require.NoError(t, err)
	require.Equal(t, DefaultConfig().Store.Driver, cfg.Store.Driver)
	require.Equal(t, DefaultConfig().Retrieval.AnchorTopK, cfg.Retrieval.AnchorTopK)
}

func TestLoader_LoadFromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ethos.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  driver: sqlite
  name: /tmp/ethos-test.db
retrieval:
  anchor_top_k: 99
`), 0644))

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)
	require.Equal(t, "sqlite", cfg.Store.Driver)
	require.Equal(t, "/tmp/ethos-test.db", cfg.Store.Name)
	require.Equal(t, 99, cfg.Retrieval.AnchorTopK)
}

func TestLoader_MissingConfigFileFallsBackToDefaults(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/nonexistent/path/ethos.yaml").Load()
	require.NoError(t, err)
	require.Equal(t, DefaultConfig().Store.Driver, cfg.Store.Driver)
}

func TestLoader_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ethos.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  driver: postgres
retrieval:
  anchor_top_k: 99
`), 0644))

	prefix := "ETHOS_LOADER_TEST"
	t.Setenv(prefix+"_STORE_DRIVER", "sqlite")
	t.Setenv(prefix+"_RETRIEVAL_ANCHOR_TOP_K", "7")

	cfg, err := NewLoader().WithConfigPath(path).WithEnvPrefix(prefix).Load()
	require.NoError(t, err)
	require.Equal(t, "sqlite", cfg.Store.Driver)
	require.Equal(t, 7, cfg.Retrieval.AnchorTopK)
}

func TestLoader_WithValidatorRejectsBadConfig(t *testing.T) {
	t.Setenv("ETHOS_VALIDATOR_TEST_RETRIEVAL_ANCHOR_TOP_K", "0")

	called := false
	_, err := NewLoader().WithValidator(func(c *Config) error {
		called = true
		return c.Validate()
	}).WithEnvPrefix("ETHOS_VALIDATOR_TEST").Load()

	require.Error(t, err)
	require.True(t, called)
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Retrieval.AnchorTopK = 0
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Embedding.Dimensions = -1
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Decay.TombstoneThreshold = 1.5
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Retrieval.MaxCandidateEdges = 501
	require.Error(t, cfg.Validate())
}
