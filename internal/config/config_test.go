package config

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, 8, cfg.TopK)
	assert.InDelta(t, 0.30, cfg.MinSim, 1e-9)
	assert.InDelta(t, 0.65, cfg.Alpha, 1e-9)
	assert.Equal(t, 100, cfg.CacheSize)
	assert.Equal(t, "local", cfg.EmbedProvider)
	assert.Equal(t, 384, cfg.EmbedDim)
	assert.Empty(t, cfg.DatabaseURL)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("AIYE_TOP_K", "12")
	t.Setenv("AIYE_MIN_SIM", "0.5")
	t.Setenv("AIYE_EMBED_PROVIDER", "openai")

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.TopK)
	assert.InDelta(t, 0.5, cfg.MinSim, 1e-9)
	assert.Equal(t, "openai", cfg.EmbedProvider)
}

func TestLoad_FlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("AIYE_TOP_K", "12")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--top-k=5", "--index-dir=/tmp/idx"}))

	cfg, err := Load(fs)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.TopK)
	assert.Equal(t, "/tmp/idx", cfg.IndexDir)
	// Untouched flags leave the environment value in place.
	assert.Equal(t, 8000, cfg.Port)
}

func TestValidate_Ranges(t *testing.T) {
	t.Setenv("AIYE_MIN_SIM", "1.5")
	_, err := Load(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min_sim")
}
