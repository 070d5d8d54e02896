package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/rs/zerolog"
)

const (
	// DefaultMaxEntries bounds the number of resident entries
	DefaultMaxEntries = 500

	// DefaultSuccessTTL applies to successful lookups
	DefaultSuccessTTL = 1 * time.Hour

	// DefaultErrorTTL applies to failed lookups
	DefaultErrorTTL = 5 * time.Minute
)

// ErrInvalidConfig indicates a non-positive limit or TTL.
var ErrInvalidConfig = errors.New("invalid cache config")

// Value is implemented by cached payloads so the store can pick the TTL.
type Value interface {
	IsError() bool
}

// Config holds store configuration.
type Config struct {
	// MaxEntries is the maximum number of resident entries.
	MaxEntries int

	// SuccessTTL is the lifetime of entries whose value is not an error.
	SuccessTTL time.Duration

	// ErrorTTL is the lifetime of entries whose value is an error.
	ErrorTTL time.Duration

	// SweepInterval is how often Run removes expired entries (default: SuccessTTL).
	SweepInterval time.Duration
}

// DefaultConfig returns the default store configuration.
func DefaultConfig() Config {
	return Config{
		MaxEntries: DefaultMaxEntries,
		SuccessTTL: DefaultSuccessTTL,
		ErrorTTL:   DefaultErrorTTL,
	}
}

// Validate checks the configuration for non-positive values.
func (c Config) Validate() error {
	if c.MaxEntries <= 0 {
		return fmt.Errorf("%w: max entries must be > 0 (got %d)", ErrInvalidConfig, c.MaxEntries)
	}
	if c.SuccessTTL <= 0 {
		return fmt.Errorf("%w: success ttl must be > 0 (got %s)", ErrInvalidConfig, c.SuccessTTL)
	}
	if c.ErrorTTL <= 0 {
		return fmt.Errorf("%w: error ttl must be > 0 (got %s)", ErrInvalidConfig, c.ErrorTTL)
	}
	if c.SweepInterval < 0 {
		return fmt.Errorf("%w: sweep interval must be >= 0 (got %s)", ErrInvalidConfig, c.SweepInterval)
	}
	return nil
}

// TTLFor returns the lifetime for a value of the given kind.
func (c Config) TTLFor(isError bool) time.Duration {
	if isError {
		return c.ErrorTTL
	}
	return c.SuccessTTL
}

func (c Config) sweepInterval() time.Duration {
	if c.SweepInterval > 0 {
		return c.SweepInterval
	}
	return c.SuccessTTL
}

// Store is a bounded in-memory TTL cache.
//
// Entries are evicted in insertion order once MaxEntries is reached; reads do not
// refresh an entry's position, re-inserting a key does. Expired entries are removed
// lazily by Get and periodically by Run.
type Store[V Value] struct {
	mu      sync.Mutex
	entries *simplelru.LRU[string, *Entry[V]]
	config  Config
	now     func() time.Time
	logger  zerolog.Logger
}

// New creates a store with the given configuration.
func New[V Value](cfg Config, logger zerolog.Logger) (*Store[V], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	entries, err := simplelru.NewLRU[string, *Entry[V]](cfg.MaxEntries, nil)
	if err != nil {
		return nil, fmt.Errorf("create entry list: %w", err)
	}

	return &Store[V]{
		entries: entries,
		config:  cfg,
		now:     time.Now,
		logger:  logger,
	}, nil
}

// Config returns the store configuration.
func (s *Store[V]) Config() Config {
	return s.config
}

// Get returns the value stored under key.
// Expired entries are removed and reported as absent.
func (s *Store[V]) Get(key string) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero V

	// Peek keeps insertion order intact
	entry, ok := s.entries.Peek(key)
	if !ok {
		CacheMisses.Inc()
		return zero, false
	}

	if entry.ExpiredAt(s.now()) {
		s.entries.Remove(key)
		CacheEvictions.WithLabelValues("expired").Inc()
		CacheEntries.Set(float64(s.entries.Len()))
		CacheMisses.Inc()
		s.logger.Debug().Str("key", key).Msg("Expired entry removed on read")
		return zero, false
	}

	CacheHits.WithLabelValues(kindLabel(entry.Value)).Inc()
	return entry.Value, true
}

// Set stores value under key with the TTL matching its kind.
// An existing entry is replaced and moves to the newest position.
// When the store is full the oldest-inserted entry is evicted.
func (s *Store[V]) Set(key string, value V) {
	ttl := s.config.TTLFor(value.IsError())

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	evicted := s.entries.Add(key, &Entry[V]{
		Value:     value,
		ExpiresAt: now.Add(ttl),
		CachedAt:  now,
	})
	if evicted {
		CacheEvictions.WithLabelValues("capacity").Inc()
		s.logger.Debug().Int("max_entries", s.config.MaxEntries).Msg("Oldest entry evicted")
	}
	CacheEntries.Set(float64(s.entries.Len()))

	s.logger.Debug().
		Str("key", key).
		Str("kind", kindLabel(value)).
		Dur("ttl", ttl).
		Msg("Cached lookup result")
}

// Delete removes the entry stored under key. Idempotent.
func (s *Store[V]) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries.Remove(key)
	CacheEntries.Set(float64(s.entries.Len()))
}

// Len returns the number of resident entries, including expired entries
// that have not been removed yet.
func (s *Store[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries.Len()
}

// Sweep removes every expired entry in one pass and returns how many were removed.
func (s *Store[V]) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for _, key := range s.entries.Keys() {
		entry, ok := s.entries.Peek(key)
		if ok && entry.ExpiredAt(now) {
			s.entries.Remove(key)
			removed++
		}
	}

	if removed > 0 {
		CacheEvictions.WithLabelValues("sweep").Add(float64(removed))
		CacheEntries.Set(float64(s.entries.Len()))
	}
	return removed
}

// Run sweeps expired entries every SweepInterval until ctx is done.
func (s *Store[V]) Run(ctx context.Context) error {
	interval := s.config.sweepInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Debug().Dur("interval", interval).Msg("Cache sweeper started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug().Msg("Cache sweeper stopped")
			return nil
		case <-ticker.C:
			if removed := s.Sweep(); removed > 0 {
				s.logger.Info().
					Int("removed", removed).
					Int("remaining", s.Len()).
					Msg("Swept expired cache entries")
			}
		}
	}
}

// Purge removes all entries.
func (s *Store[V]) Purge() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries.Purge()
	CacheEntries.Set(0)
}

func kindLabel(v Value) string {
	if v.IsError() {
		return "error"
	}
	return "success"
}
