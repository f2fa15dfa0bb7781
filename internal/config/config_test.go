package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"DATABASE_URL", "PORT", "LOG_LEVEL", "LOG_FORMAT", "DB_MAX_CONNS",
	"DB_STATEMENT_TIMEOUT", "JWT_SECRET", "JWT_EXPIRATION_HOURS",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
}

// clearEnv unsets every config variable for the duration of the test
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig_ValidJSON(t *testing.T) {
	path := writeConfig(t, `{
		"database_url": "postgres://localhost/hiring",
		"port": 9090,
		"log_format": "json",
		"db_statement_timeout": "5s"
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "postgres://localhost/hiring", cfg.DatabaseURL)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "5s", cfg.DBStatementTimeout)
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	path := writeConfig(t, `{ invalid json }`)

	cfg, err := LoadConfig(path)
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to parse config JSON")
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.json")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://env/hiring")
	t.Setenv("PORT", "8181")
	t.Setenv("DB_MAX_CONNS", "25")
	t.Setenv("RATE_LIMIT_RPS", "2.5")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "postgres://env/hiring", cfg.DatabaseURL)
	assert.Equal(t, 8181, cfg.Port)
	assert.Equal(t, int32(25), cfg.DBMaxConns)
	assert.Equal(t, 2.5, cfg.RateLimitRPS)
	assert.Zero(t, cfg.RateLimitBurst)
}

func TestFromEnv_InvalidNumbers(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"PORT", "eighty"},
		{"DB_MAX_CONNS", "lots"},
		{"JWT_EXPIRATION_HOURS", "1d"},
		{"RATE_LIMIT_RPS", "fast"},
		{"RATE_LIMIT_BURST", "-x"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := FromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoad_Precedence(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `{
		"database_url": "postgres://file/hiring",
		"port": 9090,
		"log_level": "debug"
	}`)
	t.Setenv("PORT", "7070")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://file/hiring", cfg.DatabaseURL, "file fills what env leaves unset")
	assert.Equal(t, 7070, cfg.Port, "env wins over file")
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat, "defaults fill the rest")
	assert.Equal(t, int32(10), cfg.DBMaxConns)
}

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	clearEnv(t)

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database_url")
}

func TestValidate(t *testing.T) {
	valid := Defaults()
	valid.DatabaseURL = "postgres://localhost/hiring"
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"port out of range", func(c *Config) { c.Port = 70000 }, "port"},
		{"no connections", func(c *Config) { c.DBMaxConns = 0 }, "db_max_conns"},
		{"bad timeout", func(c *Config) { c.DBStatementTimeout = "soon" }, "db_statement_timeout"},
		{"negative rate", func(c *Config) { c.RateLimitRPS = -1 }, "rate limits"},
		{"unknown level", func(c *Config) { c.LogLevel = "chatty" }, "log level"},
		{"unknown format", func(c *Config) { c.LogFormat = "xml" }, "log_format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestStatementTimeout(t *testing.T) {
	cfg := Config{DBStatementTimeout: "1500ms"}
	d, err := cfg.StatementTimeout()
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, d)

	cfg.DBStatementTimeout = ""
	d, err = cfg.StatementTimeout()
	require.NoError(t, err)
	assert.Zero(t, d)
}

func TestMergeWithDefaults(t *testing.T) {
	cfg := Config{Port: 9000, LogLevel: "warn"}
	merged := cfg.MergeWithDefaults(Defaults())

	assert.Equal(t, 9000, merged.Port)
	assert.Equal(t, "warn", merged.LogLevel)
	assert.Equal(t, "text", merged.LogFormat)
	assert.Equal(t, 24, merged.JWTExpirationHours)
	assert.Equal(t, 20, merged.RateLimitBurst)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	logger, err := NewLogger(&buf, &Config{LogLevel: "warn", LogFormat: "json"})
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "candidate_id", "abc")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"candidate_id":"abc"`)

	_, err = NewLogger(&buf, &Config{LogFormat: "yaml"})
	assert.Error(t, err)
}
