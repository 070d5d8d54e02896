package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/Sternrassler/recht-proxy/pkg/cache"
	"github.com/Sternrassler/recht-proxy/pkg/invoker"
	"github.com/Sternrassler/recht-proxy/pkg/logging"
	"github.com/Sternrassler/recht-proxy/pkg/ratelimit"
)

// ErrInvalidConfig indicates an unusable setting.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds the server configuration.
type Config struct {
	Port            int
	PublicDir       string
	ShutdownTimeout time.Duration

	RechtBin       string
	RechtTimeout   time.Duration
	MaxOutputBytes int

	CacheLimit    int
	CacheTTL      time.Duration
	CacheErrorTTL time.Duration
	CacheSweep    time.Duration

	LogLevel  string
	LogPretty bool

	RateLimitRPS   float64
	RateLimitBurst int
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		Port:            3000,
		PublicDir:       "public",
		ShutdownTimeout: 10 * time.Second,
		RechtBin:        invoker.DefaultBinary,
		RechtTimeout:    invoker.DefaultTimeout,
		MaxOutputBytes:  invoker.DefaultMaxOutputBytes,
		CacheLimit:      cache.DefaultMaxEntries,
		CacheTTL:        cache.DefaultSuccessTTL,
		CacheErrorTTL:   cache.DefaultErrorTTL,
		LogLevel:        string(logging.LevelInfo),
		RateLimitRPS:    0,
		RateLimitBurst:  20,
	}
}

// LoadEnv overlays environment variables onto the defaults.
// Durations are given in milliseconds.
func LoadEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := DefaultConfig()
	env := envReader{lookup: lookup}

	env.int("PORT", &cfg.Port)
	env.string("PUBLIC_DIR", &cfg.PublicDir)
	env.string("RECHT_BIN", &cfg.RechtBin)
	env.millis("RECHT_TIMEOUT_MS", &cfg.RechtTimeout)
	env.int("RECHT_MAX_BUFFER", &cfg.MaxOutputBytes)
	env.int("CACHE_LIMIT", &cfg.CacheLimit)
	env.millis("CACHE_TTL_MS", &cfg.CacheTTL)
	env.millis("CACHE_ERROR_TTL_MS", &cfg.CacheErrorTTL)
	env.millis("CACHE_SWEEP_MS", &cfg.CacheSweep)
	env.string("LOG_LEVEL", &cfg.LogLevel)
	env.bool("LOG_PRETTY", &cfg.LogPretty)
	env.float("RATE_LIMIT_RPS", &cfg.RateLimitRPS)
	env.int("RATE_LIMIT_BURST", &cfg.RateLimitBurst)

	if len(env.errs) > 0 {
		return cfg, errors.Join(env.errs...)
	}
	return cfg, nil
}

// Validate rejects non-positive limits and timeouts.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port must be in 1..65535 (got %d)", ErrInvalidConfig, c.Port)
	}
	if c.RechtBin == "" {
		return fmt.Errorf("%w: recht binary must not be empty", ErrInvalidConfig)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("%w: shutdown timeout must be > 0", ErrInvalidConfig)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := c.invokerConfig().Validate(); err != nil {
		return err
	}
	if err := c.cacheConfig().Validate(); err != nil {
		return err
	}
	return c.rateLimitConfig().Validate()
}

func (c Config) addr() string {
	return ":" + strconv.Itoa(c.Port)
}

func (c Config) invokerConfig() invoker.Config {
	return invoker.Config{
		Binary:         c.RechtBin,
		Timeout:        c.RechtTimeout,
		MaxOutputBytes: c.MaxOutputBytes,
	}
}

func (c Config) cacheConfig() cache.Config {
	return cache.Config{
		MaxEntries:    c.CacheLimit,
		SuccessTTL:    c.CacheTTL,
		ErrorTTL:      c.CacheErrorTTL,
		SweepInterval: c.CacheSweep,
	}
}

func (c Config) rateLimitConfig() ratelimit.Config {
	return ratelimit.Config{
		RPS:   c.RateLimitRPS,
		Burst: c.RateLimitBurst,
	}
}

func (c Config) loggingConfig() logging.Config {
	level, _ := logging.ParseLevel(c.LogLevel)
	return logging.Config{
		Level:  level,
		Pretty: c.LogPretty,
		Output: os.Stderr,
	}
}

// envReader collects parse errors so all malformed variables are reported at once.
type envReader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *envReader) get(key string) (string, bool) {
	value, ok := e.lookup(key)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

func (e *envReader) fail(key, value string, err error) {
	e.errs = append(e.errs, fmt.Errorf("%w: %s=%q: %v", ErrInvalidConfig, key, value, err))
}

func (e *envReader) string(key string, dst *string) {
	if value, ok := e.get(key); ok {
		*dst = value
	}
}

func (e *envReader) int(key string, dst *int) {
	value, ok := e.get(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		e.fail(key, value, err)
		return
	}
	*dst = n
}

func (e *envReader) millis(key string, dst *time.Duration) {
	value, ok := e.get(key)
	if !ok {
		return
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		e.fail(key, value, err)
		return
	}
	*dst = time.Duration(n) * time.Millisecond
}

func (e *envReader) float(key string, dst *float64) {
	value, ok := e.get(key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		e.fail(key, value, err)
		return
	}
	*dst = f
}

func (e *envReader) bool(key string, dst *bool) {
	value, ok := e.get(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		e.fail(key, value, err)
		return
	}
	*dst = b
}
