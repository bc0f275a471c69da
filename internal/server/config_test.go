package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/exchangechat/internal/audit"
	"github.com/Tyrowin/exchangechat/internal/exchange"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, []string{"http://localhost:8080"}, cfg.AllowedOrigins)
	assert.Equal(t, int64(4096), cfg.MaxMessageSize)
	assert.Equal(t, 5, cfg.RateLimit.Burst)
	assert.Equal(t, time.Second, cfg.RateLimit.RefillInterval)
	assert.Equal(t, exchange.DefaultBaseURL, cfg.Exchange.BaseURL)
	assert.Equal(t, 10, cfg.Exchange.MaxLookbackDays)
	assert.Equal(t, audit.DriverFile, cfg.Audit.Driver)
	assert.Equal(t, "exchange_logs.txt", cfg.Audit.Path)
}

// TestLoadConfigFromEnv verifies that environment variables override the
// defaults and that values left unset keep them.
func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", ":9090")
	t.Setenv("ALLOWED_ORIGINS", "http://a.example,https://b.example")
	t.Setenv("RATE_LIMIT_BURST", "20")
	t.Setenv("EXCHANGE_MAX_LOOKBACK_DAYS", "3")
	t.Setenv("AUDIT_DRIVER", "sqlite")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Port)
	assert.Equal(t, []string{"http://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 20, cfg.RateLimit.Burst)
	assert.Equal(t, time.Second, cfg.RateLimit.RefillInterval)
	assert.Equal(t, 3, cfg.Exchange.MaxLookbackDays)
	assert.Equal(t, audit.DriverSQLite, cfg.Audit.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, int64(4096), cfg.MaxMessageSize)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `port: ":7070"
allowed_origins:
  - "*"
exchange:
  concurrency: 2
  max_lookback_days: 7
audit:
  path: /tmp/audit.txt
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Port)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, 2, cfg.Exchange.Concurrency)
	assert.Equal(t, 7, cfg.Exchange.MaxLookbackDays)
	assert.Equal(t, "/tmp/audit.txt", cfg.Audit.Path)
	assert.Equal(t, exchange.DefaultBaseURL, cfg.Exchange.BaseURL)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSanitizeConfigRestoresDefaults(t *testing.T) {
	cfg := sanitizeConfig(Config{
		MaxMessageSize: -1,
		RateLimit:      RateLimitConfig{Burst: 0, RefillInterval: -time.Second},
		Exchange:       ExchangeConfig{Concurrency: -3, MaxLookbackDays: -1},
	})

	defaults := defaultConfig()
	assert.Equal(t, defaults.Port, cfg.Port)
	assert.Equal(t, defaults.MaxMessageSize, cfg.MaxMessageSize)
	assert.Equal(t, defaults.RateLimit, cfg.RateLimit)
	assert.Equal(t, defaults.Exchange.Concurrency, cfg.Exchange.Concurrency)
	assert.Equal(t, defaults.Exchange.MaxLookbackDays, cfg.Exchange.MaxLookbackDays)
	assert.Equal(t, defaults.Audit.Timeout, cfg.Audit.Timeout)
}

func TestSanitizeConfigKeepsDisabledLookbackLimit(t *testing.T) {
	cfg := sanitizeConfig(Config{Exchange: ExchangeConfig{MaxLookbackDays: 0}})
	assert.Equal(t, 0, cfg.Exchange.MaxLookbackDays)
}

func TestConfigConversions(t *testing.T) {
	cfg := NewConfig()

	provider := cfg.ProviderConfig()
	assert.Equal(t, cfg.Exchange.BaseURL, provider.BaseURL)
	assert.Equal(t, cfg.Exchange.MaxRetries, provider.MaxRetries)

	sink := cfg.AuditSinkConfig()
	assert.Equal(t, audit.Config{Driver: audit.DriverFile, Path: "exchange_logs.txt"}, sink)

	assert.Equal(t, "[exchangechat]", cfg.LoggerConfig().Prefix)
}
