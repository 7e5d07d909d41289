package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Game      GameConfig      `mapstructure:"game"`
	Market    MarketConfig    `mapstructure:"market"`
	Memory    MemoryConfig    `mapstructure:"memory"`
	Profiles  ProfilesConfig  `mapstructure:"profiles"`
	Portfolio PortfolioConfig `mapstructure:"portfolio"`
	Save      SaveConfig      `mapstructure:"save"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// GameConfig holds simulation parameters
type GameConfig struct {
	Trials   int     `mapstructure:"trials"`
	FPS      int     `mapstructure:"fps"`
	Width    int     `mapstructure:"width"`
	Height   int     `mapstructure:"height"`
	SpeedMin float64 `mapstructure:"speed_min"`
	SpeedMax float64 `mapstructure:"speed_max"`
	Seed     int64   `mapstructure:"seed"` // 0 = time-based seed
}

// MarketConfig holds market data sourcing configuration
type MarketConfig struct {
	Ticker            string        `mapstructure:"ticker"`
	DataDir           string        `mapstructure:"data_dir"`
	StrikeRange       int           `mapstructure:"strike_range"`
	FallbackPrice     float64       `mapstructure:"fallback_price"`
	FallbackVol       float64       `mapstructure:"fallback_vol"`
	MaxHistoricalDays int           `mapstructure:"max_historical_days"`
	RefreshInterval   time.Duration `mapstructure:"refresh_interval"`
}

// MemoryConfig holds episodic memory configuration
type MemoryConfig struct {
	MaxMemories int    `mapstructure:"max_memories"`
	LogsDir     string `mapstructure:"logs_dir"`
}

// ProfilesConfig holds behavioral profile configuration
type ProfilesConfig struct {
	Dir          string `mapstructure:"dir"`
	ActiveRetail string `mapstructure:"active_retail"`
	ActiveMonkey string `mapstructure:"active_monkey"`
}

// PortfolioConfig holds the equipment catalog configuration.
// An empty path selects the built-in catalog.
type PortfolioConfig struct {
	Path string `mapstructure:"path"`
}

// SaveConfig holds session save configuration
type SaveConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	OutputDir string `mapstructure:"output_dir"`
}

// TelegramConfig holds the optional episode digest notifier configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	setDefaults(v)

	v.SetEnvPrefix("MONKEYBALL")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration produced by defaults alone, without a
// config file. Used when no -config flag is given.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Defaults are static; an unmarshal failure here is a programming error.
		panic(fmt.Sprintf("invalid built-in defaults: %v", err))
	}
	return &cfg
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Game defaults
	v.SetDefault("game.trials", 1000)
	v.SetDefault("game.fps", 60)
	v.SetDefault("game.width", 1280)
	v.SetDefault("game.height", 720)
	v.SetDefault("game.speed_min", 0.01)
	v.SetDefault("game.speed_max", 0.03)
	v.SetDefault("game.seed", 0)

	// Market defaults
	v.SetDefault("market.ticker", "SPY")
	v.SetDefault("market.data_dir", "data/historical")
	v.SetDefault("market.strike_range", 15)
	v.SetDefault("market.fallback_price", 628.86)
	v.SetDefault("market.fallback_vol", 13.7)
	v.SetDefault("market.max_historical_days", 30)
	v.SetDefault("market.refresh_interval", "5m")

	// Memory defaults
	v.SetDefault("memory.max_memories", 100)
	v.SetDefault("memory.logs_dir", "logs")

	// Profile defaults
	v.SetDefault("profiles.dir", "profiles")
	v.SetDefault("profiles.active_retail", "default")
	v.SetDefault("profiles.active_monkey", "default")

	// Save defaults
	v.SetDefault("save.enabled", true)
	v.SetDefault("save.output_dir", "output")

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.Game.Trials < 1 {
		return fmt.Errorf("game.trials must be at least 1")
	}
	if c.Game.FPS < 1 {
		return fmt.Errorf("game.fps must be at least 1")
	}
	if c.Game.Width < 1 || c.Game.Height < 1 {
		return fmt.Errorf("game.width and game.height must be positive")
	}
	if c.Game.SpeedMin <= 0 || c.Game.SpeedMax < c.Game.SpeedMin {
		return fmt.Errorf("game speed range must satisfy 0 < speed_min <= speed_max")
	}

	if c.Market.Ticker == "" {
		return fmt.Errorf("market.ticker is required")
	}
	if c.Market.StrikeRange < 1 {
		return fmt.Errorf("market.strike_range must be at least 1")
	}
	if c.Market.FallbackPrice <= 0 {
		return fmt.Errorf("market.fallback_price must be positive")
	}
	if c.Market.FallbackVol < 0 {
		return fmt.Errorf("market.fallback_vol must not be negative")
	}
	if c.Market.RefreshInterval < 10*time.Second {
		return fmt.Errorf("market.refresh_interval must be at least 10 seconds")
	}

	if c.Memory.MaxMemories < 1 {
		return fmt.Errorf("memory.max_memories must be at least 1")
	}
	if c.Memory.LogsDir == "" {
		return fmt.Errorf("memory.logs_dir is required")
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	if c.Save.Enabled && c.Save.OutputDir == "" {
		return fmt.Errorf("save.output_dir is required when saving is enabled")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
