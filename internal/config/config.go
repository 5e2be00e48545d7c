// Package config loads and validates the application configuration from a
// YAML file with environment variable overrides (BETENGINE_ prefix).
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/stakeline/betengine/internal/evaluator"
	"github.com/stakeline/betengine/internal/models"
	"github.com/stakeline/betengine/internal/staking"
)

// Config represents the complete application configuration
type Config struct {
	Betting  BettingConfig  `mapstructure:"betting"`
	Staking  StakingConfig  `mapstructure:"staking"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Results  ResultsConfig  `mapstructure:"results"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// BettingConfig holds selection and evaluation thresholds
type BettingConfig struct {
	MaxDailyBets      int           `mapstructure:"max_daily_bets"`
	MinConfidence     string        `mapstructure:"min_confidence"`
	MinValueThreshold float64       `mapstructure:"min_value_threshold"`
	MinOdds           float64       `mapstructure:"min_odds"`
	MaxOdds           float64       `mapstructure:"max_odds"`
	MaxBetsPerMatch   int           `mapstructure:"max_bets_per_match"`
	MovementThreshold float64       `mapstructure:"movement_threshold"`
	PerformanceWindow time.Duration `mapstructure:"performance_window"`
}

// StakingConfig holds the initial staking parameters. They are only the
// starting point: the adaptive engine persists its adjusted parameters with
// the ledger, and persisted values win on restart.
type StakingConfig struct {
	Strategy                string  `mapstructure:"strategy"`
	KellyFraction           float64 `mapstructure:"kelly_fraction"`
	FlatPercent             float64 `mapstructure:"flat_percent"`
	BasePercent             float64 `mapstructure:"base_percent"`
	EVScale                 float64 `mapstructure:"ev_scale"`
	MaxStakePercentPerBet   float64 `mapstructure:"max_stake_percent_per_bet"`
	MinStakePercent         float64 `mapstructure:"min_stake_percent"`
	MinAbsoluteStake        float64 `mapstructure:"min_absolute_stake"`
	MaxTotalExposurePercent float64 `mapstructure:"max_total_exposure_percent"`
}

// LedgerConfig holds bankroll and persistence configuration
type LedgerConfig struct {
	InitialBankroll float64 `mapstructure:"initial_bankroll"`
	FilePath        string  `mapstructure:"file_path"`
	FilePermissions uint32  `mapstructure:"file_permissions"`
	DirPermissions  uint32  `mapstructure:"dir_permissions"`
}

// ResultsConfig holds the external results feed configuration
type ResultsConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	FeedURL        string        `mapstructure:"feed_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// TelegramConfig holds Telegram notification configuration
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

	v.SetEnvPrefix("BETENGINE")
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

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Betting defaults
	v.SetDefault("betting.max_daily_bets", 5)
	v.SetDefault("betting.min_confidence", "medium")
	v.SetDefault("betting.min_value_threshold", 0.05)
	v.SetDefault("betting.min_odds", 1.5)
	v.SetDefault("betting.max_odds", 10.0)
	v.SetDefault("betting.max_bets_per_match", 1)
	v.SetDefault("betting.movement_threshold", 5.0)
	v.SetDefault("betting.performance_window", "720h") // 30 days

	// Staking defaults: conservative quarter Kelly
	v.SetDefault("staking.strategy", "kelly")
	v.SetDefault("staking.kelly_fraction", 0.25)
	v.SetDefault("staking.flat_percent", 1.0)
	v.SetDefault("staking.base_percent", 1.0)
	v.SetDefault("staking.ev_scale", 10.0)
	v.SetDefault("staking.max_stake_percent_per_bet", 5.0)
	v.SetDefault("staking.min_stake_percent", 0.5)
	v.SetDefault("staking.min_absolute_stake", 1.0)
	v.SetDefault("staking.max_total_exposure_percent", 20.0)

	// Ledger defaults
	v.SetDefault("ledger.initial_bankroll", 1000.0)
	v.SetDefault("ledger.file_path", "./data/ledger.json")
	v.SetDefault("ledger.file_permissions", 0o600)
	v.SetDefault("ledger.dir_permissions", 0o700)

	// Results feed defaults
	v.SetDefault("results.enabled", false)
	v.SetDefault("results.timeout", "30s")
	v.SetDefault("results.max_retries", 3)
	v.SetDefault("results.retry_delay_base", "1s")

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
	if c.Betting.MaxDailyBets < 1 {
		return fmt.Errorf("betting.max_daily_bets must be at least 1")
	}
	if _, err := models.ParseConfidence(c.Betting.MinConfidence); err != nil {
		return fmt.Errorf("betting.min_confidence: %w", err)
	}
	if c.Betting.MinValueThreshold < 0 {
		return fmt.Errorf("betting.min_value_threshold must not be negative")
	}
	if c.Betting.MinOdds <= 1.0 {
		return fmt.Errorf("betting.min_odds must be greater than 1.0")
	}
	if c.Betting.MaxOdds <= c.Betting.MinOdds {
		return fmt.Errorf("betting.max_odds must be greater than betting.min_odds")
	}
	if c.Betting.MaxBetsPerMatch < 1 {
		return fmt.Errorf("betting.max_bets_per_match must be at least 1")
	}
	if c.Betting.MovementThreshold <= 0 {
		return fmt.Errorf("betting.movement_threshold must be positive")
	}
	if c.Betting.PerformanceWindow < time.Hour {
		return fmt.Errorf("betting.performance_window must be at least 1 hour")
	}

	params := c.StakingParams()
	if err := params.Validate(); err != nil {
		return fmt.Errorf("staking: %w", err)
	}

	if c.Ledger.InitialBankroll <= 0 {
		return fmt.Errorf("ledger.initial_bankroll must be positive")
	}
	if c.Ledger.FilePath == "" {
		return fmt.Errorf("ledger.file_path is required")
	}

	if c.Results.Enabled {
		if c.Results.FeedURL == "" {
			return fmt.Errorf("results.feed_url is required when results feed is enabled")
		}
		if c.Results.Timeout <= 0 {
			return fmt.Errorf("results.timeout must be positive")
		}
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
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

// MinConfidence returns the parsed minimum confidence level. Call Validate
// first; an unparseable value falls back to medium.
func (c *Config) MinConfidence() models.Confidence {
	level, err := models.ParseConfidence(c.Betting.MinConfidence)
	if err != nil {
		return models.ConfidenceMedium
	}
	return level
}

// EvaluatorConfig maps the betting section onto evaluator thresholds.
func (c *Config) EvaluatorConfig() evaluator.Config {
	return evaluator.Config{
		MinEVThreshold:    c.Betting.MinValueThreshold,
		MinOdds:           c.Betting.MinOdds,
		MaxOdds:           c.Betting.MaxOdds,
		MovementThreshold: c.Betting.MovementThreshold,
	}
}

// StakingParams maps the staking section onto engine parameters.
func (c *Config) StakingParams() staking.Params {
	return staking.Params{
		Strategy:         staking.Strategy(c.Staking.Strategy),
		FlatPercent:      c.Staking.FlatPercent,
		BasePercent:      c.Staking.BasePercent,
		KellyFraction:    c.Staking.KellyFraction,
		EVScale:          c.Staking.EVScale,
		ValueBaseline:    c.Betting.MinValueThreshold,
		MaxStakePercent:  c.Staking.MaxStakePercentPerBet,
		MinStakePercent:  c.Staking.MinStakePercent,
		MinAbsoluteStake: c.Staking.MinAbsoluteStake,
		MaxExposure:      c.Staking.MaxTotalExposurePercent,
	}
}
