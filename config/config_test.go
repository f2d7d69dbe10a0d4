package config

import (
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.StoreDir == "" {
		t.Error("default StoreDir is empty")
	}
	if cfg.LogLevel != "info" {
		t.Errorf("default LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.PTTReleaseBlocks != 15 {
		t.Errorf("default PTTReleaseBlocks = %d, want 15", cfg.PTTReleaseBlocks)
	}
	if cfg.MicGain != 1.0 {
		t.Errorf("default MicGain = %v, want 1.0", cfg.MicGain)
	}
	if cfg.MonitorEnabled {
		t.Error("monitor enabled by default")
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SOUNDBOARD_STORE_DIR", "/tmp/sounds")
	t.Setenv("SOUNDBOARD_LOG_LEVEL", "debug")
	t.Setenv("SOUNDBOARD_PTT_RELEASE_BLOCKS", "30")
	t.Setenv("SOUNDBOARD_MIC_GAIN", "0.5")
	t.Setenv("SOUNDBOARD_MONITOR_ENABLED", "true")
	t.Setenv("SOUNDBOARD_HEADLESS", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.StoreDir != "/tmp/sounds" {
		t.Errorf("StoreDir = %q", cfg.StoreDir)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.PTTReleaseBlocks != 30 {
		t.Errorf("PTTReleaseBlocks = %d", cfg.PTTReleaseBlocks)
	}
	if cfg.MicGain != 0.5 {
		t.Errorf("MicGain = %v", cfg.MicGain)
	}
	if !cfg.MonitorEnabled || !cfg.Headless {
		t.Error("boolean flags not picked up from environment")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad log level", func(c *Config) { c.LogLevel = "shouting" }},
		{"negative release blocks", func(c *Config) { c.PTTReleaseBlocks = -1 }},
		{"negative mic gain", func(c *Config) { c.MicGain = -0.1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{LogLevel: "info", PTTReleaseBlocks: 15, MicGain: 1}
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() accepted invalid config")
			}
		})
	}
}
