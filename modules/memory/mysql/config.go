package mysql

import (
	"errors"
	"time"
)

const (
	defaultMaxOpenConns    = 10
	defaultMaxIdleConns    = 2
	defaultConnMaxLifetime = 5 * time.Minute
)

// Config holds the MySQL memory module configuration.
type Config struct {
	// DSN is a go-sql-driver/mysql data source name, for example
	// "user:pass@tcp(localhost:3306)/chatmem". Required.
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
		errs = append(errs, errors.New("mysql: dsn is required"))
	}
	if c.MaxOpenConns < 0 || c.MaxIdleConns < 0 {
		errs = append(errs, errors.New("mysql: pool sizes must be non-negative"))
	}
	if c.ConnMaxLifetime < 0 {
		errs = append(errs, errors.New("mysql: conn_max_lifetime must be non-negative"))
	}
	return errors.Join(errs...)
}
