// Package config provides configuration management for the scalping simulator.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Capital CapitalConfig `mapstructure:"capital"`
	Risk    RiskConfig    `mapstructure:"risk"`
	Session SessionConfig `mapstructure:"session"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Store   StoreConfig   `mapstructure:"store"`
	Feed    FeedConfig    `mapstructure:"feed"`
	Log     LogConfig     `mapstructure:"log"`
}

// CapitalConfig holds virtual capital rules.
type CapitalConfig struct {
	Initial        float64 `mapstructure:"initial"`
	MinOrderAmount float64 `mapstructure:"min_order_amount"`
	ScaleDownRatio float64 `mapstructure:"scale_down_ratio"`
}

// RiskConfig holds exit thresholds and capacity limits.
type RiskConfig struct {
	ProfitTargetPct float64 `mapstructure:"profit_target_pct"`
	StopLossPct     float64 `mapstructure:"stop_loss_pct"`
	MaxPositions    int     `mapstructure:"max_positions"`
	TieredStrategy  bool    `mapstructure:"tiered_strategy"`
}

// SessionConfig holds trading session windows, all "HH:MM" local to Timezone.
type SessionConfig struct {
	Timezone    string   `mapstructure:"timezone"`
	Open        string   `mapstructure:"open"`
	EntryOpen   string   `mapstructure:"entry_open"`
	EntryCutoff string   `mapstructure:"entry_cutoff"`
	ForceExit   string   `mapstructure:"force_exit"`
	Close       string   `mapstructure:"close"`
	Holidays    []string `mapstructure:"holidays"`
}

// EngineConfig holds control-loop settings.
type EngineConfig struct {
	TickInterval time.Duration `mapstructure:"tick_interval"`
	QuoteWorkers int           `mapstructure:"quote_workers"`
	ScreenTag    string        `mapstructure:"screen_tag"`
}

// StoreConfig holds persistence settings.
type StoreConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// FeedConfig holds the candidate feed settings.
type FeedConfig struct {
	URL string `mapstructure:"url"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level    string `mapstructure:"level"`
	Console  bool   `mapstructure:"console"`
	File     bool   `mapstructure:"file"`
	FilePath string `mapstructure:"file_path"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/krx-scalper"
	}
	return filepath.Join(home, ".config", "krx-scalper")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{}

	if err := loadConfigFile(configDir, "config", cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func loadConfigFile(configDir, name string, target interface{}) error {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	setDefaults(v, configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// First run: write the template, then load defaults
			if err := createTemplateConfig(configDir); err != nil {
				return err
			}
			return v.Unmarshal(target)
		}
		return err
	}

	return v.Unmarshal(target)
}

func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("capital.initial", 500000.0)
	v.SetDefault("capital.min_order_amount", 10000.0)
	v.SetDefault("capital.scale_down_ratio", 0.9)

	v.SetDefault("risk.profit_target_pct", 5.0)
	v.SetDefault("risk.stop_loss_pct", -5.0)
	v.SetDefault("risk.max_positions", 5)
	v.SetDefault("risk.tiered_strategy", true)

	v.SetDefault("session.timezone", "Asia/Seoul")
	v.SetDefault("session.open", "09:00")
	v.SetDefault("session.entry_open", "09:05")
	v.SetDefault("session.entry_cutoff", "14:00")
	v.SetDefault("session.force_exit", "15:10")
	v.SetDefault("session.close", "15:30")
	v.SetDefault("session.holidays", []string{})

	v.SetDefault("engine.tick_interval", 5*time.Second)
	v.SetDefault("engine.quote_workers", 4)
	v.SetDefault("engine.screen_tag", "scalp")

	v.SetDefault("store.db_path", filepath.Join(configDir, "scalper.db"))

	v.SetDefault("feed.url", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.console", true)
	v.SetDefault("log.file", true)
	v.SetDefault("log.file_path", filepath.Join(configDir, "logs", "scalper.log"))
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("KRXSCALPER_DB_PATH"); v != "" {
		cfg.Store.DBPath = v
	}
	if v := os.Getenv("KRXSCALPER_FEED_URL"); v != "" {
		cfg.Feed.URL = v
	}
	if v := os.Getenv("KRXSCALPER_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("KRXSCALPER_INITIAL_CAPITAL"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.Capital.Initial = f
		}
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Capital.Initial <= 0 {
		return fmt.Errorf("capital.initial must be positive")
	}
	if c.Capital.MinOrderAmount < 0 {
		return fmt.Errorf("capital.min_order_amount must be non-negative")
	}
	if c.Capital.ScaleDownRatio <= 0 || c.Capital.ScaleDownRatio > 1 {
		return fmt.Errorf("capital.scale_down_ratio must be in (0, 1]")
	}

	if c.Risk.ProfitTargetPct <= 0 {
		return fmt.Errorf("risk.profit_target_pct must be positive")
	}
	if c.Risk.StopLossPct >= 0 {
		return fmt.Errorf("risk.stop_loss_pct must be negative")
	}
	if c.Risk.MaxPositions < 1 {
		return fmt.Errorf("risk.max_positions must be at least 1")
	}

	for _, field := range []struct{ name, value string }{
		{"session.open", c.Session.Open},
		{"session.entry_open", c.Session.EntryOpen},
		{"session.entry_cutoff", c.Session.EntryCutoff},
		{"session.force_exit", c.Session.ForceExit},
		{"session.close", c.Session.Close},
	} {
		if _, err := time.Parse("15:04", field.value); err != nil {
			return fmt.Errorf("%s: invalid time %q (want HH:MM)", field.name, field.value)
		}
	}
	for _, h := range c.Session.Holidays {
		if _, err := time.Parse("2006-01-02", h); err != nil {
			return fmt.Errorf("session.holidays: invalid date %q (want YYYY-MM-DD)", h)
		}
	}

	if c.Engine.TickInterval < time.Second {
		return fmt.Errorf("engine.tick_interval must be at least 1s")
	}
	if c.Engine.QuoteWorkers < 1 {
		return fmt.Errorf("engine.quote_workers must be at least 1")
	}

	return nil
}
