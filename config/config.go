// Package config loads and validates process configuration from the
// environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/c360/phonebook/errors"
)

// Config holds process configuration for the phonebook service.
// All values come from the environment at process start.
type Config struct {
	// MongoURL is the MongoDB connection string (required)
	MongoURL string `env:"PHONEBOOK_MONGO_URL"`

	// Database is the MongoDB database name (default: "phonebook")
	Database string `env:"PHONEBOOK_DATABASE"`

	// JWTKey is the token signing secret (required)
	JWTKey string `env:"PHONEBOOK_JWT_KEY"`

	// BindAddress is the HTTP bind address (default: ":8080")
	BindAddress string `env:"PHONEBOOK_BIND_ADDRESS"`

	// Path is the GraphQL endpoint path (default: "/graphql")
	Path string `env:"PHONEBOOK_GRAPHQL_PATH"`

	// EnablePlayground enables GraphQL Playground UI (default: true)
	EnablePlayground bool `env:"PHONEBOOK_ENABLE_PLAYGROUND" envDefault:"true"`

	// EnableCORS enables CORS headers (default: true)
	EnableCORS bool `env:"PHONEBOOK_ENABLE_CORS" envDefault:"true"`

	// CORSOrigins lists allowed CORS origins (default: ["*"])
	CORSOrigins []string `env:"PHONEBOOK_CORS_ORIGINS" envSeparator:","`

	// TimeoutStr is the request timeout (default: "30s")
	TimeoutStr string `env:"PHONEBOOK_TIMEOUT"`

	// TokenTTLStr is the lifetime of issued credentials (default: "1h")
	TokenTTLStr string `env:"PHONEBOOK_TOKEN_TTL"`

	// LogLevel sets the slog level: debug, info, warn, error (default: "info")
	LogLevel string `env:"PHONEBOOK_LOG_LEVEL"`

	// LogFormat selects "json" or "text" log output (default: "json")
	LogFormat string `env:"PHONEBOOK_LOG_FORMAT"`

	// timeout and tokenTTL are the parsed durations (internal use)
	timeout  time.Duration
	tokenTTL time.Duration
}

// Load reads configuration from the environment and validates it
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.WrapFatal(err, "Config", "Load", "parse environment")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate ensures the configuration is valid and applies defaults
func (c *Config) Validate() error {
	if c.MongoURL == "" {
		return errors.WrapFatal(errors.ErrMissingConfig, "Config", "Validate",
			"PHONEBOOK_MONGO_URL is required")
	}

	if c.JWTKey == "" {
		return errors.WrapFatal(errors.ErrMissingConfig, "Config", "Validate",
			"PHONEBOOK_JWT_KEY is required")
	}

	if c.Database == "" {
		c.Database = "phonebook"
	}

	if c.BindAddress == "" {
		c.BindAddress = ":8080"
	}

	if c.Path == "" {
		c.Path = "/graphql"
	}
	if c.Path[0] != '/' {
		return errors.WrapFatal(errors.ErrInvalidConfig, "Config", "Validate",
			"path must start with /")
	}

	if c.TimeoutStr == "" {
		c.timeout = 30 * time.Second
	} else {
		timeout, err := time.ParseDuration(c.TimeoutStr)
		if err != nil {
			return errors.WrapFatal(err, "Config", "Validate",
				fmt.Sprintf("invalid timeout format: %s", c.TimeoutStr))
		}
		if timeout < 100*time.Millisecond || timeout > 5*time.Minute {
			return errors.WrapFatal(errors.ErrInvalidConfig, "Config", "Validate",
				"timeout must be between 100ms and 5m")
		}
		c.timeout = timeout
	}

	if c.TokenTTLStr == "" {
		c.tokenTTL = time.Hour
	} else {
		ttl, err := time.ParseDuration(c.TokenTTLStr)
		if err != nil {
			return errors.WrapFatal(err, "Config", "Validate",
				fmt.Sprintf("invalid token TTL format: %s", c.TokenTTLStr))
		}
		if ttl < time.Minute || ttl > 30*24*time.Hour {
			return errors.WrapFatal(errors.ErrInvalidConfig, "Config", "Validate",
				"token TTL must be between 1m and 720h")
		}
		c.tokenTTL = ttl
	}

	if c.EnableCORS && len(c.CORSOrigins) == 0 {
		c.CORSOrigins = []string{"*"}
	}

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return errors.WrapFatal(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("unknown log level: %s", c.LogLevel))
	}

	if c.LogFormat == "" {
		c.LogFormat = "json"
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return errors.WrapFatal(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("unknown log format: %s", c.LogFormat))
	}

	return nil
}

// Timeout returns the parsed request timeout
func (c *Config) Timeout() time.Duration {
	return c.timeout
}

// TokenTTL returns the parsed credential lifetime
func (c *Config) TokenTTL() time.Duration {
	return c.tokenTTL
}

// DefaultConfig returns a validated default configuration for tests.
// MongoURL and JWTKey still have to be supplied by the caller.
func DefaultConfig() Config {
	return Config{
		Database:         "phonebook",
		BindAddress:      ":8080",
		Path:             "/graphql",
		EnablePlayground: true,
		EnableCORS:       true,
		CORSOrigins:      []string{"*"},
		TimeoutStr:       "30s",
		TokenTTLStr:      "1h",
		LogLevel:         "info",
		LogFormat:        "json",
		timeout:          30 * time.Second,
		tokenTTL:         time.Hour,
	}
}
