// Package server provides configuration helpers that define runtime defaults,
// loading, and validation for the exchangechat service.
package server

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/Tyrowin/exchangechat/internal/audit"
	"github.com/Tyrowin/exchangechat/internal/exchange"
	"github.com/Tyrowin/exchangechat/internal/logger"
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int           `yaml:"burst" env:"RATE_LIMIT_BURST"`
	RefillInterval time.Duration `yaml:"refill_interval" env:"RATE_LIMIT_REFILL_INTERVAL"`
}

// ExchangeConfig configures the rate provider and the exchange command.
type ExchangeConfig struct {
	BaseURL         string        `yaml:"base_url" env:"EXCHANGE_BASE_URL"`
	HTTPTimeout     time.Duration `yaml:"http_timeout" env:"EXCHANGE_HTTP_TIMEOUT"`
	MaxRetries      uint64        `yaml:"max_retries" env:"EXCHANGE_MAX_RETRIES"`
	RetryInterval   time.Duration `yaml:"retry_interval" env:"EXCHANGE_RETRY_INTERVAL"`
	Concurrency     int           `yaml:"concurrency" env:"EXCHANGE_CONCURRENCY"`
	MaxLookbackDays int           `yaml:"max_lookback_days" env:"EXCHANGE_MAX_LOOKBACK_DAYS"`
}

// AuditConfig selects the audit sink.
type AuditConfig struct {
	Driver  string        `yaml:"driver" env:"AUDIT_DRIVER"`
	Path    string        `yaml:"path" env:"AUDIT_PATH"`
	Timeout time.Duration `yaml:"timeout" env:"AUDIT_TIMEOUT"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
	Prefix string `yaml:"prefix" env:"LOG_PREFIX"`
}

// Config holds the server configuration settings including security controls.
type Config struct {
	Port            string          `yaml:"port" env:"SERVER_PORT"`
	AllowedOrigins  []string        `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" env-separator:","`
	MaxMessageSize  int64           `yaml:"max_message_size" env:"MAX_MESSAGE_SIZE"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
	Exchange        ExchangeConfig  `yaml:"exchange"`
	Audit           AuditConfig     `yaml:"audit"`
	Log             LogConfig       `yaml:"log"`
}

func defaultConfig() Config {
	return Config{
		Port: ":8080",
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		MaxMessageSize:  4096,
		ShutdownTimeout: 10 * time.Second,
		RateLimit: RateLimitConfig{
			Burst:          5,
			RefillInterval: time.Second,
		},
		Exchange: ExchangeConfig{
			BaseURL:         exchange.DefaultBaseURL,
			HTTPTimeout:     10 * time.Second,
			MaxRetries:      2,
			RetryInterval:   200 * time.Millisecond,
			Concurrency:     5,
			MaxLookbackDays: 10,
		},
		Audit: AuditConfig{
			Driver:  audit.DriverFile,
			Path:    "exchange_logs.txt",
			Timeout: 2 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			Prefix: "[exchangechat]",
		},
	}
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// LoadConfig starts from the defaults, applies the YAML file at path when
// path is not empty, then applies environment variables. Invalid values are
// replaced by their defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read config from environment: %w", err)
	}

	sanitized := sanitizeConfig(cfg)
	return &sanitized, nil
}

func sanitizeConfig(cfg Config) Config {
	defaults := defaultConfig()

	if cfg.Port == "" {
		cfg.Port = defaults.Port
	}

	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaults.MaxMessageSize
	}

	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaults.ShutdownTimeout
	}

	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = defaults.RateLimit.Burst
	}

	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = defaults.RateLimit.RefillInterval
	}

	if cfg.Exchange.BaseURL == "" {
		cfg.Exchange.BaseURL = defaults.Exchange.BaseURL
	}

	if cfg.Exchange.HTTPTimeout <= 0 {
		cfg.Exchange.HTTPTimeout = defaults.Exchange.HTTPTimeout
	}

	if cfg.Exchange.RetryInterval <= 0 {
		cfg.Exchange.RetryInterval = defaults.Exchange.RetryInterval
	}

	if cfg.Exchange.Concurrency <= 0 {
		cfg.Exchange.Concurrency = defaults.Exchange.Concurrency
	}

	if cfg.Exchange.MaxLookbackDays < 0 {
		cfg.Exchange.MaxLookbackDays = defaults.Exchange.MaxLookbackDays
	}

	if cfg.Audit.Driver == "" {
		cfg.Audit.Driver = defaults.Audit.Driver
	}

	if cfg.Audit.Timeout <= 0 {
		cfg.Audit.Timeout = defaults.Audit.Timeout
	}

	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

// ProviderConfig converts the exchange settings for the rate provider.
func (c *Config) ProviderConfig() exchange.Config {
	return exchange.Config{
		BaseURL:       c.Exchange.BaseURL,
		HTTPTimeout:   c.Exchange.HTTPTimeout,
		MaxRetries:    c.Exchange.MaxRetries,
		RetryInterval: c.Exchange.RetryInterval,
	}
}

// AuditSinkConfig converts the audit settings for audit.Open.
func (c *Config) AuditSinkConfig() audit.Config {
	return audit.Config{
		Driver: c.Audit.Driver,
		Path:   c.Audit.Path,
	}
}

// LoggerConfig converts the log settings for logger.New.
func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{
		Level:  c.Log.Level,
		Format: c.Log.Format,
		Prefix: c.Log.Prefix,
	}
}
