package gateway

import (
	"errors"
	"time"
)

// Config holds HTTP gateway configuration.
type Config struct {
	Bind            string          `yaml:"bind"`
	Auth            AuthConfig      `yaml:"auth"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
	AllowedOrigins  []string        `yaml:"allowed_origins"`
	ReadTimeout     time.Duration   `yaml:"read_timeout"`
	WriteTimeout    time.Duration   `yaml:"write_timeout"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout"`
}

// defaults fills zero values with sensible defaults.
func (c *Config) defaults() {
	if c.Bind == "" {
		c.Bind = "127.0.0.1:8080"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
	c.RateLimit.defaults()
}

// AuthConfig configures authentication for the API endpoints.
type AuthConfig struct {
	BearerToken string `yaml:"bearer_token"`
	BasicUser   string `yaml:"basic_user"`
	BasicPass   string `yaml:"basic_pass"`
}

// IsConfigured returns true if any auth method is configured.
func (a AuthConfig) IsConfigured() bool {
	return a.BearerToken != "" || (a.BasicUser != "" && a.BasicPass != "")
}

// RateLimitConfig bounds requests per remote address. A negative
// RequestsPerSecond disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	IdleTTL           time.Duration `yaml:"idle_ttl"`
}

func (c *RateLimitConfig) defaults() {
	if c.RequestsPerSecond == 0 {
		c.RequestsPerSecond = 20
	}
	if c.Burst <= 0 {
		c.Burst = 40
	}
	if c.IdleTTL <= 0 {
		c.IdleTTL = 10 * time.Minute
	}
}

// Enabled reports whether requests are rate limited.
func (c RateLimitConfig) Enabled() bool {
	return c.RequestsPerSecond > 0
}

func (c *Config) validate() error {
	if c.Auth.BasicUser != "" && c.Auth.BasicPass == "" {
		return errors.New("gateway: auth.basic_pass is required with basic_user")
	}
	return nil
}
