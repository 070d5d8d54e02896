// Package ratelimit gates lookup requests per client so a single caller
// cannot keep the recht tool busy for everyone else.
package ratelimit

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Defaults for per-client limiting.
const (
	// DefaultIdleTTL removes a client's limiter after this much inactivity.
	DefaultIdleTTL = 3 * time.Minute

	// DefaultCleanupInterval is how often idle clients are removed.
	DefaultCleanupInterval = time.Minute
)

// ErrInvalidConfig indicates a negative rate or burst.
var ErrInvalidConfig = errors.New("invalid rate limit config")

// Config holds per-client limiter settings.
type Config struct {
	// RPS is the sustained requests per second per client. Zero disables limiting.
	RPS float64

	// Burst is the number of requests a client may issue at once.
	Burst int

	// IdleTTL is how long an idle client's state is kept.
	IdleTTL time.Duration

	// CleanupInterval is how often Run removes idle clients.
	CleanupInterval time.Duration
}

// Enabled reports whether requests are limited at all.
func (c Config) Enabled() bool {
	return c.RPS > 0
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.RPS < 0 {
		return fmt.Errorf("%w: rps must be >= 0 (got %v)", ErrInvalidConfig, c.RPS)
	}
	if c.Enabled() && c.Burst <= 0 {
		return fmt.Errorf("%w: burst must be > 0 when limiting is enabled (got %d)", ErrInvalidConfig, c.Burst)
	}
	if c.IdleTTL < 0 || c.CleanupInterval < 0 {
		return fmt.Errorf("%w: idle ttl and cleanup interval must be >= 0", ErrInvalidConfig)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.IdleTTL == 0 {
		c.IdleTTL = DefaultIdleTTL
	}
	if c.CleanupInterval == 0 {
		c.CleanupInterval = DefaultCleanupInterval
	}
	return c
}

// clientState is the limiter of one client and when it was last seen.
type clientState struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IsIdle returns true if the client has not been seen for longer than ttl.
func (s *clientState) IsIdle(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.lastSeen) > ttl
}
