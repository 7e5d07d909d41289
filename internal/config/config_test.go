package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Game.Trials != 1000 {
		t.Errorf("expected 1000 trials, got %d", cfg.Game.Trials)
	}
	if cfg.Memory.MaxMemories != 100 {
		t.Errorf("expected max_memories 100, got %d", cfg.Memory.MaxMemories)
	}
	if cfg.Market.RefreshInterval != 5*time.Minute {
		t.Errorf("expected 5m refresh interval, got %v", cfg.Market.RefreshInterval)
	}
	if cfg.Telegram.Enabled {
		t.Error("telegram should be disabled by default")
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
game:
  trials: 50
  seed: 42
market:
  fallback_price: 500.0
logging:
  level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("loaded config invalid: %v", err)
	}
	if cfg.Game.Trials != 50 {
		t.Errorf("expected 50 trials, got %d", cfg.Game.Trials)
	}
	if cfg.Game.Seed != 42 {
		t.Errorf("expected seed 42, got %d", cfg.Game.Seed)
	}
	if cfg.Market.FallbackPrice != 500.0 {
		t.Errorf("expected fallback price 500, got %f", cfg.Market.FallbackPrice)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected debug level, got %s", cfg.Logging.Level)
	}
	// Untouched sections keep their defaults.
	if cfg.Game.FPS != 60 {
		t.Errorf("expected default fps 60, got %d", cfg.Game.FPS)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestValidate_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero trials", func(c *Config) { c.Game.Trials = 0 }},
		{"inverted speed range", func(c *Config) { c.Game.SpeedMin = 0.5; c.Game.SpeedMax = 0.1 }},
		{"empty ticker", func(c *Config) { c.Market.Ticker = "" }},
		{"negative fallback vol", func(c *Config) { c.Market.FallbackVol = -1 }},
		{"short refresh interval", func(c *Config) { c.Market.RefreshInterval = time.Second }},
		{"zero memory cap", func(c *Config) { c.Memory.MaxMemories = 0 }},
		{"telegram enabled without token", func(c *Config) { c.Telegram.Enabled = true; c.Telegram.ChatID = "1" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("expected validation error for %s", tc.name)
			}
		})
	}
}
