// Package config loads runtime settings from defaults, an optional config
// file, and FARMOPS_-prefixed environment variables, in that order of
// precedence (lowest to highest).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config keeps runtime settings for the server.
type Config struct {
	Addr        string `mapstructure:"addr"`
	DatabaseURL string `mapstructure:"database_url"`

	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`

	// GenerateInterval gates the cron generation pass; zero disables it.
	GenerateInterval    time.Duration `mapstructure:"generate_interval"`
	GenerateHorizonDays int           `mapstructure:"generate_horizon_days"`

	// LowStockAlertTime schedules the daily restock digest at HH:MM local
	// time; empty disables it.
	LowStockAlertTime string `mapstructure:"low_stock_alert_time"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8080")
	v.SetDefault("database_url", "farmops.db")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("generate_interval", 0)
	v.SetDefault("generate_horizon_days", 14)
	v.SetDefault("low_stock_alert_time", "")
}

// Load reads configuration. configFile may be empty, in which case only
// defaults and environment variables apply.
func Load(configFile string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("FARMOPS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %q: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	if cfg.Addr == "" {
		return fmt.Errorf("addr is required")
	}
	if cfg.GenerateInterval < 0 {
		return fmt.Errorf("generate_interval must be non-negative")
	}
	if cfg.GenerateHorizonDays <= 0 {
		return fmt.Errorf("generate_horizon_days must be positive")
	}
	switch strings.ToLower(cfg.LogLevel) {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", cfg.LogLevel)
	}
	return nil
}
