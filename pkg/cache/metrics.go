package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by payload kind
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recht_cache_hits_total",
			Help: "Total number of lookup cache hits",
		},
		[]string{"kind"}, // "success", "error"
	)

	// CacheMisses tracks cache misses (absent or expired)
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recht_cache_misses_total",
			Help: "Total number of lookup cache misses",
		},
	)

	// CacheEvictions tracks entries removed before being overwritten
	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recht_cache_evictions_total",
			Help: "Total number of lookup cache entries removed by reason",
		},
		[]string{"reason"}, // "capacity", "expired", "sweep"
	)

	// CacheEntries tracks resident entries, including expired ones not yet removed
	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recht_cache_entries",
			Help: "Current number of resident lookup cache entries",
		},
	)
)
