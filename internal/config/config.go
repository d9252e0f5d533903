// Package config loads application configuration from file and environment.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/courseforge/courseforge/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Auth      AuthConfig      `yaml:"auth" mapstructure:"auth"`
	Keys      KeysConfig      `yaml:"keys" mapstructure:"keys"`
	OpenAI    OpenAIConfig    `yaml:"openai" mapstructure:"openai"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Models    ModelsConfig    `yaml:"models" mapstructure:"models"`
	Breaker   BreakerConfig   `yaml:"breaker" mapstructure:"breaker"`
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	Quality   QualityConfig   `yaml:"quality" mapstructure:"quality"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string            `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string            `yaml:"database_url" mapstructure:"database_url"`
	Pool        *store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port        int    `yaml:"port" mapstructure:"port"`
	FrontendURL string `yaml:"frontend_url" mapstructure:"frontend_url"`
	DevMode     bool   `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// AuthConfig configures sessions and password hashing.
type AuthConfig struct {
	JWTSecret       string `yaml:"jwt_secret" mapstructure:"jwt_secret"`
	SessionTTLHours int    `yaml:"session_ttl_hours" mapstructure:"session_ttl_hours"`
	BcryptCost      int    `yaml:"bcrypt_cost" mapstructure:"bcrypt_cost"`
}

// SessionTTL returns the session lifetime as a duration.
func (a AuthConfig) SessionTTL() time.Duration {
	return time.Duration(a.SessionTTLHours) * time.Hour
}

// KeysConfig configures BYOK key storage.
type KeysConfig struct {
	// EncryptionKey is the hex- or raw-encoded AES key for stored provider
	// credentials. Must decode to 16, 24, or 32 bytes.
	EncryptionKey string `yaml:"encryption_key" mapstructure:"encryption_key"`
	// TestTimeoutSecs bounds the live verification call made when a user
	// saves or tests a key.
	TestTimeoutSecs int `yaml:"test_timeout_secs" mapstructure:"test_timeout_secs"`
}

// OpenAIConfig holds the server's own OpenAI credentials.
type OpenAIConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// AnthropicConfig holds the server's own Anthropic credentials.
type AnthropicConfig struct {
	Key string `yaml:"key" mapstructure:"key"`
}

// ModelsConfig points at an optional model catalog override file.
type ModelsConfig struct {
	CatalogPath string `yaml:"catalog_path" mapstructure:"catalog_path"`
}

// BreakerConfig configures the per-model circuit breakers.
type BreakerConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// RateLimitConfig configures the per-user request limiter.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
	Burst             int `yaml:"burst" mapstructure:"burst"`
}

// QualityConfig configures the generation quality gate.
type QualityConfig struct {
	PassThreshold float64 `yaml:"pass_threshold" mapstructure:"pass_threshold"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("COURSEFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.frontend_url", "http://localhost:5173")
	v.SetDefault("server.dev_mode", false)
	v.SetDefault("auth.session_ttl_hours", 24*7)
	v.SetDefault("auth.bcrypt_cost", 12)
	v.SetDefault("keys.test_timeout_secs", 10)
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("breaker.failure_threshold", 3)
	v.SetDefault("breaker.reset_timeout_secs", 60)
	v.SetDefault("rate_limit.requests_per_minute", 60)
	v.SetDefault("rate_limit.burst", 10)
	v.SetDefault("quality.pass_threshold", 0.7)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings the server cannot run without.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return eris.New("config: auth.jwt_secret is required")
	}
	if c.Keys.EncryptionKey == "" {
		return eris.New("config: keys.encryption_key is required")
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		return eris.New("config: store.database_url is required for the postgres driver")
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
