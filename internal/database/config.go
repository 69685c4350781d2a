// Package database wraps database/sql with retrying connection setup and
// pool tuning, adapted from a general-purpose Postgres helper down to the
// single DSN-backed pool internal/audit needs.
package database

import (
	"errors"
	"time"
)

// ErrInvalidDSN is returned when the DSN is empty.
var ErrInvalidDSN = errors.New("database: invalid or empty DSN")

// Config holds database connection configuration.
type Config struct {
	DSN string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	RetryAttempts int
	RetryDelay    time.Duration
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,
		RetryAttempts:   3,
		RetryDelay:      1 * time.Second,
	}
}

// Validate checks the configuration and fills in zero-value fields with
// defaults.
func (c *Config) Validate() error {
	if c.DSN == "" {
		return ErrInvalidDSN
	}
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 25
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = 5
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		c.MaxIdleConns = c.MaxOpenConns
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = 5 * time.Minute
	}
	if c.ConnMaxIdleTime <= 0 {
		c.ConnMaxIdleTime = 1 * time.Minute
	}
	if c.RetryAttempts < 0 {
		c.RetryAttempts = 0
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 1 * time.Second
	}
	return nil
}
