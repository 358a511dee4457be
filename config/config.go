// Package config loads the service configuration from an optional YAML
// file and LOAN_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// LOAN_SERVER_PORT or LOAN_FINE_PER_DAY.
const EnvPrefix = "LOAN"

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Fine      FineConfig      `mapstructure:"fine"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Logger    LoggerConfig    `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	RateLimit       int           `mapstructure:"rate_limit"`
	RateWindow      time.Duration `mapstructure:"rate_window"`
	Scenarios       bool          `mapstructure:"scenarios"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	// Path of the SQLite file. ":memory:" keeps everything in memory.
	Path string `mapstructure:"path"`
}

// FineConfig holds the late fine policy
type FineConfig struct {
	PerDay int64 `mapstructure:"per_day"`
	// Timezone used to count calendar days. Empty means WIB (UTC+7).
	Timezone string `mapstructure:"timezone"`
}

// Location resolves Timezone. Validate has already checked it loads.
func (f FineConfig) Location(fallback *time.Location) *time.Location {
	if f.Timezone == "" {
		return fallback
	}
	loc, err := time.LoadLocation(f.Timezone)
	if err != nil {
		return fallback
	}
	return loc
}

// SchedulerConfig holds the fine recomputation schedule
type SchedulerConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Interval    time.Duration `mapstructure:"interval"`
	Concurrency int           `mapstructure:"concurrency"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// Load reads configPath when it is not empty, then applies environment
// overrides and validates the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173", "http://localhost:8080"})
	v.SetDefault("server.rate_limit", 60)
	v.SetDefault("server.rate_window", time.Minute)
	v.SetDefault("server.scenarios", false)

	// Database defaults
	v.SetDefault("database.path", "loans.db")

	// Fine defaults
	v.SetDefault("fine.per_day", 5000)
	v.SetDefault("fine.timezone", "")

	// Scheduler defaults
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.interval", time.Hour)
	v.SetDefault("scheduler.concurrency", 4)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output_path", "stdout")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d is out of range", c.Server.Port))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, errors.New("server.rate_limit must not be negative"))
	}
	if c.Server.RateLimit > 0 && c.Server.RateWindow <= 0 {
		errs = append(errs, errors.New("server.rate_window must be positive when rate limiting"))
	}

	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}

	if c.Fine.PerDay <= 0 {
		errs = append(errs, errors.New("fine.per_day must be positive"))
	}
	if c.Fine.Timezone != "" {
		if _, err := time.LoadLocation(c.Fine.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("fine.timezone: %w", err))
		}
	}

	if c.Scheduler.Enabled && c.Scheduler.Interval <= 0 {
		errs = append(errs, errors.New("scheduler.interval must be positive"))
	}
	if c.Scheduler.Concurrency <= 0 {
		errs = append(errs, errors.New("scheduler.concurrency must be positive"))
	}

	switch c.Logger.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("logger.format %q must be json or console", c.Logger.Format))
	}

	return errors.Join(errs...)
}
