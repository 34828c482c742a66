package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks fresh entries served without an upstream call
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swproxy_cache_hits_total",
			Help: "Total number of proxy cache hits",
		},
		[]string{"class"}, // "api", "image"
	)

	// CacheMisses tracks absent or stale entries
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swproxy_cache_misses_total",
			Help: "Total number of proxy cache misses",
		},
		[]string{"class"},
	)

	// CacheEntries tracks the number of URLs held in memory
	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "swproxy_cache_entries",
			Help: "Current number of cached upstream URLs",
		},
	)
)
