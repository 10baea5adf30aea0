// Package config reads questboard settings from the environment. A .env file
// in the working directory, when present, is loaded first; variables already
// set in the environment win.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	DBPath   string
	LogLevel string

	// LogFormat is "text" or "json".
	LogFormat string

	// Timezone decides where calendar days start for streaks and recurrence.
	Timezone string
	Location *time.Location

	RecurrenceInterval time.Duration
	LevelUpDismiss     time.Duration
	ShutdownTimeout    time.Duration
}

// Load reads the configuration. envFiles are optional .env paths; with none
// given, ".env" is tried.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	cfg := &Config{
		Port:      getEnv("QUESTBOARD_PORT", "8080"),
		DBPath:    getEnv("QUESTBOARD_DB_PATH", "questboard.db"),
		LogLevel:  getEnv("QUESTBOARD_LOG_LEVEL", "info"),
		LogFormat: getEnv("QUESTBOARD_LOG_FORMAT", "text"),
		Timezone:  getEnv("QUESTBOARD_TIMEZONE", "Local"),
	}

	var err error
	if cfg.RecurrenceInterval, err = getEnvDuration("QUESTBOARD_RECURRENCE_INTERVAL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.LevelUpDismiss, err = getEnvDuration("QUESTBOARD_LEVELUP_DISMISS", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = getEnvDuration("QUESTBOARD_SHUTDOWN_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", cfg.Timezone, err)
	}
	cfg.Location = loc

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("invalid port %q", c.Port)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q", c.LogFormat)
	}
	if c.RecurrenceInterval <= 0 {
		return fmt.Errorf("recurrence interval must be positive")
	}
	if c.LevelUpDismiss <= 0 {
		return fmt.Errorf("level-up dismiss delay must be positive")
	}
	return nil
}

// Now returns the current time in the configured location.
func (c *Config) Now() time.Time {
	return time.Now().In(c.Location)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
