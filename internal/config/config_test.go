package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadYAMLMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadYAML(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("overflow_bytes: 250000\nparallelism: 8\n"), 0o644))

	cfg, err := LoadYAML(path)
	require.NoError(t, err)
	require.Equal(t, 250000, cfg.OverflowBytes)
	require.Equal(t, 8, cfg.Parallelism)
	require.Equal(t, Default().ReindexMinBytes, cfg.ReindexMinBytes)
}

func TestLoadTOMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("storage_method = \"s3\"\n"), 0o644))

	cfg, err := LoadTOML(path)
	require.NoError(t, err)
	require.Equal(t, "s3", cfg.StorageMethod)
}

func TestLoadViperAppliesEnvOverride(t *testing.T) {
	t.Setenv("FLURE_PARALLELISM", "16")
	v, err := LoadViper("")
	require.NoError(t, err)
	cfg := FromViper(v)
	require.Equal(t, 16, cfg.Parallelism)
	require.Equal(t, Default().StorageMethod, cfg.StorageMethod)
}

func TestTuningProjectsIndexKnobs(t *testing.T) {
	cfg := Default()
	tn := cfg.Tuning()
	require.Equal(t, cfg.OverflowBytes, tn.OverflowBytes)
	require.Equal(t, cfg.UnderflowBytes, tn.UnderflowBytes)
	require.Equal(t, cfg.OverflowChildren, tn.OverflowChildren)
}
