package postgres

import (
	"errors"
	"time"
)

const (
	defaultMaxOpenConns    = 10
	defaultMaxIdleConns    = 2
	defaultConnMaxLifetime = 30 * time.Minute
)

// Config holds the PostgreSQL memory module configuration.
type Config struct {
	// DSN is a lib/pq connection string or postgres:// URL. Required.
	DSN string `yaml:"dsn"`

	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

func (c *Config) defaults() {
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = defaultMaxOpenConns
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = defaultMaxIdleConns
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = defaultConnMaxLifetime
	}
}

func (c *Config) validate() error {
	var errs []error
	if c.DSN == "" {
		errs = append(errs, errors.New("postgres: dsn is required"))
	}
	if c.MaxOpenConns < 0 || c.MaxIdleConns < 0 {
		errs = append(errs, errors.New("postgres: pool sizes must be non-negative"))
	}
	if c.ConnMaxLifetime < 0 {
		errs = append(errs, errors.New("postgres: conn_max_lifetime must be non-negative"))
	}
	return errors.Join(errs...)
}
