// Package metrics provides the centralized Prometheus metrics registry for
// the visioncache service. All metrics are defined in their respective
// packages (cache, ai) to maintain modularity and avoid circular
// dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the service.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - visioncache_hits_total{layer} (Counter): Cache hits by layer (redis, local)
//   - visioncache_misses_total (Counter): Cache misses, including degraded-mode misses
//   - visioncache_size_bytes{layer} (Gauge): Bytes written to the cache by layer
//   - visioncache_errors_total{operation} (Counter): Backing store errors by operation
//
// Upstream Metrics (pkg/ai):
//   - visioncache_upstream_requests_total{operation, status} (Counter): Upstream AI
//     calls by operation (analyze, generate, translate) and outcome (ok, error)
//   - visioncache_upstream_duration_seconds{operation} (Histogram): Upstream call
//     duration by operation
//   - visioncache_upstream_errors_total{class} (Counter): Upstream errors by class
//     (client, server, rate_limit, network)
//
// Retry Metrics (pkg/ai):
//   - visioncache_retries_total{error_class} (Counter): Retry attempts by error class
//   - visioncache_retry_backoff_seconds{error_class} (Histogram): Backoff duration
//   - visioncache_retry_exhausted_total{error_class} (Counter): Exhausted retry budgets
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(visioncache_hits_total[5m])) /
//   (sum(rate(visioncache_hits_total[5m])) + sum(rate(visioncache_misses_total[5m])))
//
//   # Backing Store Error Rate
//   rate(visioncache_errors_total[5m])
//
//   # P95 Upstream Latency
//   histogram_quantile(0.95, rate(visioncache_upstream_duration_seconds_bucket[5m]))
