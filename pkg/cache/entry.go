package cache

import (
	"time"
)

// Entry is a cached value together with its expiry.
type Entry[V any] struct {
	// Value is the cached payload
	Value V

	// ExpiresAt is when the entry becomes logically absent
	ExpiresAt time.Time

	// CachedAt is when the entry was stored
	CachedAt time.Time
}

// IsExpired returns true if the entry has expired.
func (e *Entry[V]) IsExpired() bool {
	return e.ExpiredAt(time.Now())
}

// ExpiredAt reports whether the entry is expired at the given instant.
func (e *Entry[V]) ExpiredAt(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *Entry[V]) TTL() time.Duration {
	ttl := time.Until(e.ExpiresAt)
	if ttl < 0 {
		return 0
	}
	return ttl
}
