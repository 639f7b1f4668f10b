package graphql

import (
	"fmt"
	"time"

	"github.com/c360/phonebook/config"
	"github.com/c360/phonebook/errors"
)

// Config holds configuration for the GraphQL gateway
type Config struct {
	// BindAddress is the HTTP bind address (default: ":8080")
	BindAddress string

	// Path is the GraphQL endpoint path (default: "/graphql")
	Path string

	// EnablePlayground enables GraphQL Playground UI (default: true)
	EnablePlayground bool

	// EnableCORS enables CORS headers (default: true)
	EnableCORS bool

	// CORSOrigins lists allowed CORS origins (default: ["*"])
	CORSOrigins []string

	// TimeoutStr is the request timeout (default: "30s")
	TimeoutStr string

	// timeout is the parsed duration (internal use)
	timeout time.Duration
}

// Validate ensures the configuration is valid and applies defaults
func (c *Config) Validate() error {
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

	if c.EnableCORS && len(c.CORSOrigins) == 0 {
		c.CORSOrigins = []string{"*"}
	}

	return nil
}

// Timeout returns the parsed request timeout
func (c *Config) Timeout() time.Duration {
	return c.timeout
}

// DefaultConfig returns default gateway configuration
func DefaultConfig() Config {
	return Config{
		BindAddress:      ":8080",
		Path:             "/graphql",
		EnablePlayground: true,
		EnableCORS:       true,
		CORSOrigins:      []string{"*"},
		TimeoutStr:       "30s",
		timeout:          30 * time.Second,
	}
}

// FromProcessConfig derives gateway configuration from process configuration
func FromProcessConfig(cfg config.Config) Config {
	return Config{
		BindAddress:      cfg.BindAddress,
		Path:             cfg.Path,
		EnablePlayground: cfg.EnablePlayground,
		EnableCORS:       cfg.EnableCORS,
		CORSOrigins:      cfg.CORSOrigins,
		TimeoutStr:       cfg.TimeoutStr,
	}
}
