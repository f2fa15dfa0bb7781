// Package config provides configuration loading and validation for the
// hiring pipeline service.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config represents the service configuration. Values come from environment
// variables, falling back to an optional JSON config file and then to
// built-in defaults.
type Config struct {
	// Database
	DatabaseURL        string `json:"database_url,omitempty"`         // PostgreSQL connection URL
	DBMaxConns         int32  `json:"db_max_conns,omitempty"`         // Pool size
	DBStatementTimeout string `json:"db_statement_timeout,omitempty"` // e.g. "30s"

	// HTTP
	Port           int     `json:"port,omitempty"`
	RateLimitRPS   float64 `json:"rate_limit_rps,omitempty"`   // Sustained requests per second per client
	RateLimitBurst int     `json:"rate_limit_burst,omitempty"` // Bucket size per client

	// Logging
	LogLevel  string `json:"log_level,omitempty"`  // debug, info, warn, error
	LogFormat string `json:"log_format,omitempty"` // text or json

	// Auth
	JWTSecret          string `json:"jwt_secret,omitempty"`
	JWTExpirationHours int    `json:"jwt_expiration_hours,omitempty"`
}

// Defaults returns the built-in configuration
func Defaults() Config {
	return Config{
		DBMaxConns:         10,
		DBStatementTimeout: "30s",
		Port:               8080,
		RateLimitRPS:       10,
		RateLimitBurst:     20,
		LogLevel:           "info",
		LogFormat:          "text",
		JWTExpirationHours: 24,
	}
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// FromEnv reads the configuration from environment variables. Unset
// variables leave the corresponding field zero.
func FromEnv() (*Config, error) {
	cfg := &Config{
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		DBStatementTimeout: os.Getenv("DB_STATEMENT_TIMEOUT"),
		LogLevel:           os.Getenv("LOG_LEVEL"),
		LogFormat:          os.Getenv("LOG_FORMAT"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
	}

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %v", err)
		}
		cfg.Port = port
	}
	if v := os.Getenv("DB_MAX_CONNS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid DB_MAX_CONNS: %v", err)
		}
		cfg.DBMaxConns = int32(n)
	}
	if v := os.Getenv("JWT_EXPIRATION_HOURS"); v != "" {
		hours, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid JWT_EXPIRATION_HOURS: %v", err)
		}
		cfg.JWTExpirationHours = hours
	}
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid RATE_LIMIT_RPS: %v", err)
		}
		cfg.RateLimitRPS = rps
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		burst, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid RATE_LIMIT_BURST: %v", err)
		}
		cfg.RateLimitBurst = burst
	}

	return cfg, nil
}

// Load builds the effective configuration: environment first, then the JSON
// file at path (if any), then Defaults. The result is validated.
func Load(path string) (*Config, error) {
	env, err := FromEnv()
	if err != nil {
		return nil, err
	}

	fileCfg := Config{}
	if path != "" {
		loaded, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		fileCfg = *loaded
	}

	merged := env.MergeWithDefaults(fileCfg.MergeWithDefaults(Defaults()))
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return &merged, nil
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("config error: 'database_url' is required (set DATABASE_URL)")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' must be between 1 and 65535, got %d", c.Port)
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("config error: 'db_max_conns' must be positive")
	}
	if _, err := c.StatementTimeout(); err != nil {
		return err
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("config error: rate limits must be non-negative")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("config error: 'log_format' must be text or json, got %q", c.LogFormat)
	}
	return nil
}

// StatementTimeout parses DBStatementTimeout. Empty means no timeout.
func (c *Config) StatementTimeout() (time.Duration, error) {
	if c.DBStatementTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.DBStatementTimeout)
	if err != nil {
		return 0, fmt.Errorf("config error: invalid 'db_statement_timeout': %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("config error: 'db_statement_timeout' must be non-negative")
	}
	return d, nil
}

// JWT returns the token configuration, or nil when no secret is configured
func (c *Config) JWT() (*JWTConfig, error) {
	if c.JWTSecret == "" {
		return nil, nil
	}
	return NewJWTConfig(c.JWTSecret, c.JWTExpirationHours)
}

// MergeWithDefaults returns a new Config with zero fields filled from defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.DBStatementTimeout == "" {
		result.DBStatementTimeout = defaults.DBStatementTimeout
	}
	if result.LogLevel == "" {
		result.LogLevel = defaults.LogLevel
	}
	if result.LogFormat == "" {
		result.LogFormat = defaults.LogFormat
	}
	if result.JWTSecret == "" {
		result.JWTSecret = defaults.JWTSecret
	}

	// Numeric fields: use default if zero
	if result.DBMaxConns == 0 {
		result.DBMaxConns = defaults.DBMaxConns
	}
	if result.Port == 0 {
		result.Port = defaults.Port
	}
	if result.RateLimitRPS == 0 {
		result.RateLimitRPS = defaults.RateLimitRPS
	}
	if result.RateLimitBurst == 0 {
		result.RateLimitBurst = defaults.RateLimitBurst
	}
	if result.JWTExpirationHours == 0 {
		result.JWTExpirationHours = defaults.JWTExpirationHours
	}

	return result
}
