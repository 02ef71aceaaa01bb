// Package config provides configuration loading for blockmated.
//
// Configuration is loaded from a YAML file with environment variable
// overrides and sensible defaults. See Load for precedence rules.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete blockmated configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Judge     JudgeConfig     `koanf:"judge"`
	Telegram  TelegramConfig  `koanf:"telegram"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// DatabaseConfig holds SQLite configuration.
type DatabaseConfig struct {
	Path string `koanf:"path"`
}

// JudgeConfig holds judge-oracle client configuration.
type JudgeConfig struct {
	BaseURL    string   `koanf:"base_url"`
	Model      string   `koanf:"model"`
	APIKey     Secret   `koanf:"api_key"`
	Timeout    Duration `koanf:"timeout"`
	MaxRetries int      `koanf:"max_retries"`
}

// TelegramConfig holds outbound Telegram notification configuration.
// An empty token disables Telegram delivery; reminders are logged instead.
type TelegramConfig struct {
	Token   Secret   `koanf:"token"`
	BaseURL string   `koanf:"base_url"`
	Timeout Duration `koanf:"timeout"`
}

// SchedulerConfig holds reminder scheduler configuration.
type SchedulerConfig struct {
	ReminderText       string `koanf:"reminder_text"`
	MaxDurationMinutes int    `koanf:"max_duration_minutes"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// applyDefaults fills zero values with production defaults.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "blockmate.db"
	}
	if cfg.Judge.BaseURL == "" {
		cfg.Judge.BaseURL = "https://api.openai.com"
	}
	if cfg.Judge.Model == "" {
		cfg.Judge.Model = "gpt-4o-mini"
	}
	if cfg.Judge.Timeout == 0 {
		cfg.Judge.Timeout = Duration(20 * time.Second)
	}
	if cfg.Judge.MaxRetries == 0 {
		cfg.Judge.MaxRetries = 3
	}
	if cfg.Telegram.BaseURL == "" {
		cfg.Telegram.BaseURL = "https://api.telegram.org"
	}
	if cfg.Telegram.Timeout == 0 {
		cfg.Telegram.Timeout = Duration(15 * time.Second)
	}
	if cfg.Scheduler.MaxDurationMinutes == 0 {
		cfg.Scheduler.MaxDurationMinutes = 24 * 60
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Validate validates the configuration.
//
// Returns an error if:
//   - Server port is not between 1 and 65535
//   - Shutdown timeout is not positive
//   - Judge timeout is outside the 1s-5m range
//   - Max reminder duration is not positive
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.Database.Path == "" {
		return errors.New("database path must not be empty")
	}
	if t := c.Judge.Timeout.Duration(); t < time.Second || t > 5*time.Minute {
		return fmt.Errorf("judge timeout %s out of range (1s-5m)", t)
	}
	if c.Judge.MaxRetries < 0 {
		return errors.New("judge max_retries cannot be negative")
	}
	if c.Scheduler.MaxDurationMinutes <= 0 {
		return errors.New("scheduler max_duration_minutes must be positive")
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid logging format: %q (must be json or console)", c.Logging.Format)
	}
	return nil
}
