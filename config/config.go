// Package config loads the runtime configuration from defaults, an optional config file,
// KILN_* environment variables and command line flags, in increasing precedence.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "KILN"

// Log selects the logger level and output format
type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Config is the runtime configuration of an App.
type Config struct {
	// FixedTimestep is the period of the fixed update stages in seconds; zero disables them.
	FixedTimestep float64 `mapstructure:"fixed_timestep"`
	// MaxFixedSteps caps fixed steps per frame; zero means unlimited.
	MaxFixedSteps int           `mapstructure:"max_fixed_steps"`
	FrameInterval time.Duration `mapstructure:"frame_interval"`
	AssetRoot     string        `mapstructure:"asset_root"`
	// AssetWorkers is the loader pool size; zero uses one worker per logical CPU.
	AssetWorkers int `mapstructure:"asset_workers"`
	Log          Log `mapstructure:"log"`
}

// Default returns the configuration used when nothing overrides it
func Default() Config {
	return Config{
		FixedTimestep: 1.0 / 60,
		MaxFixedSteps: 8,
		FrameInterval: time.Second / 60,
		AssetRoot:     "assets",
		AssetWorkers:  0,
		Log: Log{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate reports the first invalid setting
func (c Config) Validate() error {
	if c.FixedTimestep < 0 {
		return eris.Errorf("fixed_timestep must not be negative, got %v", c.FixedTimestep)
	}
	if c.MaxFixedSteps < 0 {
		return eris.Errorf("max_fixed_steps must not be negative, got %d", c.MaxFixedSteps)
	}
	if c.FrameInterval <= 0 {
		return eris.Errorf("frame_interval must be positive, got %s", c.FrameInterval)
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return eris.Wrapf(err, "log.level")
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return eris.Errorf("log.format must be console or json, got %q", c.Log.Format)
	}
	return nil
}

// Loader layers the configuration sources over the defaults.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader seeded with Default and reading KILN_* variables.
func NewLoader() *Loader {
	v := viper.New()
	def := Default()
	v.SetDefault("fixed_timestep", def.FixedTimestep)
	v.SetDefault("max_fixed_steps", def.MaxFixedSteps)
	v.SetDefault("frame_interval", def.FrameInterval)
	v.SetDefault("asset_root", def.AssetRoot)
	v.SetDefault("asset_workers", def.AssetWorkers)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.format", def.Log.Format)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &Loader{v: v}
}

var flagKeys = map[string]string{
	"fixed-timestep":  "fixed_timestep",
	"max-fixed-steps": "max_fixed_steps",
	"frame-interval":  "frame_interval",
	"asset-root":      "asset_root",
	"asset-workers":   "asset_workers",
	"log-level":       "log.level",
	"log-format":      "log.format",
}

// BindFlags defines a flag for every setting on flags and binds it. Flags override every
// other source, but only when set.
func (l *Loader) BindFlags(flags *pflag.FlagSet) error {
	def := Default()
	flags.Float64("fixed-timestep", def.FixedTimestep, "fixed update period in seconds, 0 disables fixed stages")
	flags.Int("max-fixed-steps", def.MaxFixedSteps, "maximum fixed steps per frame, 0 for unlimited")
	flags.Duration("frame-interval", def.FrameInterval, "time between frames")
	flags.String("asset-root", def.AssetRoot, "directory assets are loaded from")
	flags.Int("asset-workers", def.AssetWorkers, "asset loader workers, 0 for one per CPU")
	flags.String("log-level", def.Log.Level, "log level (trace, debug, info, warn, error)")
	flags.String("log-format", def.Log.Format, "log format (console, json)")

	for name, key := range flagKeys {
		if err := l.v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return eris.Wrapf(err, "bind flag %s", name)
		}
	}
	return nil
}

// Load reads file, if not empty, and returns the merged, validated configuration.
func (l *Loader) Load(file string) (Config, error) {
	if file != "" {
		l.v.SetConfigFile(file)
		if err := l.v.ReadInConfig(); err != nil {
			return Config{}, eris.Wrapf(err, "read config %s", file)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return Config{}, eris.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
