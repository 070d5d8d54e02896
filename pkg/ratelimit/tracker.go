package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for rate limiting.
var (
	rateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recht_rate_limit_blocks_total",
		Help: "Total number of requests rejected by the per-client rate limit",
	})

	rateLimitClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "recht_rate_limit_clients",
		Help: "Number of clients currently tracked by the rate limiter",
	})
)

// Tracker holds one token bucket per client key.
type Tracker struct {
	mu      sync.Mutex
	clients map[string]*clientState
	config  Config
	now     func() time.Time
	logger  zerolog.Logger
}

// NewTracker creates a new rate limit tracker.
func NewTracker(cfg Config, logger zerolog.Logger) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Tracker{
		clients: make(map[string]*clientState),
		config:  cfg.withDefaults(),
		now:     time.Now,
		logger:  logger,
	}, nil
}

// Enabled reports whether the tracker limits anything.
func (t *Tracker) Enabled() bool {
	return t.config.Enabled()
}

// Allow reports whether the client identified by key may issue a request now.
// Always true when limiting is disabled.
func (t *Tracker) Allow(key string) bool {
	if !t.Enabled() {
		return true
	}

	now := t.now()

	t.mu.Lock()
	state, ok := t.clients[key]
	if !ok {
		state = &clientState{limiter: rate.NewLimiter(rate.Limit(t.config.RPS), t.config.Burst)}
		t.clients[key] = state
		rateLimitClients.Set(float64(len(t.clients)))
	}
	state.lastSeen = now
	t.mu.Unlock()

	if !state.limiter.AllowN(now, 1) {
		rateLimitBlocksTotal.Inc()
		t.logger.Warn().
			Str("client", key).
			Float64("rps", t.config.RPS).
			Int("burst", t.config.Burst).
			Msg("Rate limit exceeded - rejecting request")
		return false
	}
	return true
}

// Cleanup removes clients idle for longer than the idle TTL and returns how many were removed.
func (t *Tracker) Cleanup() int {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for key, state := range t.clients {
		if state.IsIdle(now, t.config.IdleTTL) {
			delete(t.clients, key)
			removed++
		}
	}
	rateLimitClients.Set(float64(len(t.clients)))

	if removed > 0 {
		t.logger.Debug().
			Int("removed", removed).
			Int("remaining", len(t.clients)).
			Msg("Removed idle rate limit clients")
	}
	return removed
}

// Len returns the number of tracked clients.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.clients)
}

// Run removes idle clients periodically until ctx is done.
func (t *Tracker) Run(ctx context.Context) error {
	if !t.Enabled() {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(t.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			t.Cleanup()
		}
	}
}
