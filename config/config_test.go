package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/plus3/kiln/config"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.NewLoader().Load("")
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestEnvironmentOverridesDefaults(t *testing.T) {
	t.Setenv("KILN_ASSET_ROOT", "/srv/assets")
	t.Setenv("KILN_LOG_LEVEL", "debug")
	t.Setenv("KILN_FRAME_INTERVAL", "50ms")

	cfg, err := config.NewLoader().Load("")
	require.NoError(t, err)
	assert.Equal(t, "/srv/assets", cfg.AssetRoot)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 50*time.Millisecond, cfg.FrameInterval)
}

func TestConfigFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "kiln.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
fixed_timestep: 0.02
asset_workers: 3
log:
  format: json
`), 0o600))

	cfg, err := config.NewLoader().Load(file)
	require.NoError(t, err)
	assert.InDelta(t, 0.02, cfg.FixedTimestep, 1e-9)
	assert.Equal(t, 3, cfg.AssetWorkers)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "info", cfg.Log.Level, "unset keys keep their default")
}

func TestFlagsOverrideEverything(t *testing.T) {
	t.Setenv("KILN_ASSET_WORKERS", "2")
	t.Setenv("KILN_LOG_FORMAT", "json")

	loader := config.NewLoader()
	flags := pflag.NewFlagSet("kiln", pflag.ContinueOnError)
	require.NoError(t, loader.BindFlags(flags))
	require.NoError(t, flags.Parse([]string{"--asset-workers=6", "--max-fixed-steps", "0"}))

	cfg, err := loader.Load("")
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.AssetWorkers)
	assert.Equal(t, 0, cfg.MaxFixedSteps)
	assert.Equal(t, "json", cfg.Log.Format, "unset flags do not hide the environment")
}

func TestMissingConfigFile(t *testing.T) {
	_, err := config.NewLoader().Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*config.Config)
	}{
		{"negative timestep", func(c *config.Config) { c.FixedTimestep = -1 }},
		{"negative max steps", func(c *config.Config) { c.MaxFixedSteps = -1 }},
		{"zero frame interval", func(c *config.Config) { c.FrameInterval = 0 }},
		{"unknown level", func(c *config.Config) { c.Log.Level = "loud" }},
		{"unknown format", func(c *config.Config) { c.Log.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.modify(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, config.Default().Validate())
}
