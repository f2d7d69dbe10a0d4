// Package config loads engine settings from the environment. All
// variables carry the SOUNDBOARD_ prefix; unset variables fall back to
// defaults suitable for a local setup.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

// envPrefix namespaces all environment variables.
const envPrefix = "soundboard"

// Config holds every tunable of the engine.
type Config struct {
	// StoreDir is where imported and edited sounds live.
	// SOUNDBOARD_STORE_DIR, default ~/.local-soundboard/sounds.
	StoreDir string `split_words:"true"`

	// LogLevel is a logrus level name (trace, debug, info, warn, error).
	// SOUNDBOARD_LOG_LEVEL, default info.
	LogLevel string `split_words:"true" default:"info"`

	// PTTReleaseBlocks is the push-to-talk release hang time in engine
	// blocks. SOUNDBOARD_PTT_RELEASE_BLOCKS, default 15.
	PTTReleaseBlocks int `envconfig:"PTT_RELEASE_BLOCKS" default:"15"`

	// MicGain is the linear gain applied to microphone input.
	// SOUNDBOARD_MIC_GAIN, default 1.0.
	MicGain float64 `split_words:"true" default:"1.0"`

	// MonitorEnabled turns on the local monitor tap at startup.
	// SOUNDBOARD_MONITOR_ENABLED, default false.
	MonitorEnabled bool `split_words:"true" default:"false"`

	// Headless selects the wall-clock render sink instead of a real
	// output device. SOUNDBOARD_HEADLESS, default false.
	Headless bool `split_words:"true" default:"false"`
}

// Load reads the configuration from the environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("reading environment: %w", err)
	}

	if cfg.StoreDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("resolving home directory: %w", err)
		}
		cfg.StoreDir = filepath.Join(home, ".local-soundboard", "sounds")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges without touching the filesystem.
func (c Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	if c.PTTReleaseBlocks < 0 {
		return fmt.Errorf("PTT release blocks must be non-negative, got %d", c.PTTReleaseBlocks)
	}
	if c.MicGain < 0 {
		return fmt.Errorf("mic gain must be non-negative, got %v", c.MicGain)
	}
	return nil
}

// ApplyLogging configures the global logger from the loaded level.
func (c Config) ApplyLogging() {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}
