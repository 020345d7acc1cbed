// Package cache provides content-addressed caching of AI outputs with a
// Redis backend.
//
// Results of image analysis and image generation are keyed by a deterministic
// SHA-256 fingerprint of the input (raw image bytes for analysis, normalized
// prompt text for generation). The two kinds live in separate key namespaces
// and carry distinct TTLs:
//
//   - ANALYSIS entries expire after 24 hours
//   - GENERATION entries expire after 7 days
//
// Caching is strictly best-effort. When the backing store is unreachable, Get
// degrades to a miss and Put to a reported failure; neither ever fails the
// caller's primary computation. When no backing store is configured at all,
// the manager runs in disabled mode and answers without network I/O.
//
// # Basic Usage
//
//	// Create Redis client
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	// Create cache manager
//	manager := cache.NewManager(cache.Config{Redis: redisClient})
//
//	// Fingerprint the input
//	key, err := cache.Fingerprint(cache.KindAnalysis, imageBytes)
//	if err != nil {
//		return err
//	}
//
//	// Get from cache
//	value, err := manager.Get(ctx, key)
//	if err == cache.ErrCacheMiss {
//		// Miss - compute the analysis, then store it
//		value = analyze(imageBytes)
//		_ = manager.Put(ctx, key, value, cache.KindAnalysis)
//	}
//
// # Degraded Modes
//
// With Config.Redis nil and Config.EnableLocal true, entries live in an
// in-process cache (not shared across workers, lost on restart). With both
// disabled, every Get misses and every Put returns ErrCacheDisabled.
//
// # Metrics
//
// The manager exports Prometheus metrics:
//
//   - visioncache_hits_total{layer} - Cache hits by layer (redis, local)
//   - visioncache_misses_total - Cache misses
//   - visioncache_size_bytes{layer} - Bytes written by layer
//   - visioncache_errors_total{operation} - Backing store errors
package cache
