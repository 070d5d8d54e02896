// Package cache provides the in-memory lookup cache of the recht proxy.
//
// The store is bounded by an entry count and keeps entries for a TTL that depends
// on the kind of value stored:
//
// - Successful lookups are kept for SuccessTTL (default 1h)
// - Failed lookups are kept for ErrorTTL (default 5m)
// - The oldest-inserted entry is evicted when the store is full
// - Expired entries are dropped on read and by a periodic sweep
//
// # Basic Usage
//
//	store, err := cache.New[lookup.Payload](cache.DefaultConfig(), logger)
//	if err != nil {
//		return err
//	}
//
//	// Sweep expired entries until ctx is cancelled
//	go store.Run(ctx)
//
//	if payload, ok := store.Get("BGB 1"); ok {
//		// Cache hit
//	}
//	store.Set("BGB 1", payload)
//
// # Eviction Order
//
// Eviction follows insertion order, not access order: Get never changes an
// entry's position, Set on an existing key moves it to the newest position.
//
// # Metrics
//
// The store exports Prometheus metrics:
//
//   - recht_cache_hits_total{kind} - Cache hits by payload kind
//   - recht_cache_misses_total - Cache misses
//   - recht_cache_evictions_total{reason} - Removals (capacity, expired, sweep)
//   - recht_cache_entries - Resident entries
//
// State is process-local and not persisted.
package cache
