package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by layer (redis, local)
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visioncache_hits_total",
			Help: "Total number of response cache hits",
		},
		[]string{"layer"}, // "redis", "local"
	)

	// CacheMisses tracks cache misses (including degraded-mode misses)
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "visioncache_misses_total",
			Help: "Total number of response cache misses",
		},
	)

	// CacheSize tracks bytes written to the cache by layer
	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "visioncache_size_bytes",
			Help: "Bytes written to the response cache",
		},
		[]string{"layer"}, // "redis", "local"
	)

	// CacheErrors tracks backing store errors by operation. Errors are
	// counted here and then downgraded (miss on get, reported failure on
	// put), so this is the only place unreachability is visible.
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visioncache_errors_total",
			Help: "Total number of cache backing store errors",
		},
		[]string{"operation"}, // "get", "put"
	)
)
