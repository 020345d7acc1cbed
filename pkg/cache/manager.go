package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache.
	// Backing store unreachability is also reported as a miss; callers
	// cannot (and must not) distinguish the two.
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheDisabled indicates no backing store is configured, so writes
	// are rejected without any I/O.
	ErrCacheDisabled = errors.New("cache disabled")

	// ErrInvalidKey indicates an empty or malformed cache key.
	ErrInvalidKey = errors.New("invalid cache key")
)

// Config holds the cache manager configuration. It is passed in explicitly
// so the disabled and local-only modes are directly constructible in tests.
type Config struct {
	// Redis is the backing store client. Nil means no backing store.
	Redis *redis.Client

	// EnableLocal enables an in-process fallback layer when Redis is not
	// configured. Without it, a nil Redis client means disabled mode.
	EnableLocal bool

	// Logger is the component logger. The zero value discards cache logs.
	Logger zerolog.Logger
}

// Manager handles best-effort caching of AI outputs.
//
// The manager holds no mutable state of its own in the Redis path; single-key
// atomicity and expiry are delegated to Redis. Concurrent Put calls for the
// same key are last-write-wins.
type Manager struct {
	redis  *redis.Client
	local  *localStore
	logger zerolog.Logger
}

// NewManager creates a cache manager. A nil Redis client is a supported
// configuration: the manager runs with the local layer if enabled, otherwise
// in disabled mode where every Get misses and every Put fails immediately.
func NewManager(cfg Config) *Manager {
	m := &Manager{
		redis:  cfg.Redis,
		logger: cfg.Logger,
	}

	if cfg.Redis == nil {
		if cfg.EnableLocal {
			m.local = newLocalStore()
			m.logger.Warn().Msg("No Redis configured, using in-process cache layer")
		} else {
			m.logger.Warn().Msg("No Redis configured, response cache disabled")
		}
	}

	return m
}

// Enabled reports whether the manager has any storage layer at all.
func (m *Manager) Enabled() bool {
	return m.redis != nil || m.local != nil
}

// Get retrieves a cached value by fingerprint key.
// Returns ErrCacheMiss if the key doesn't exist, the entry is expired, or
// the backing store is unreachable. Unreachability is logged and counted
// before being downgraded to a miss.
func (m *Manager) Get(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", ErrInvalidKey
	}

	if m.redis == nil {
		return m.localGet(key)
	}

	data, err := m.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			CacheMisses.Inc()
			return "", ErrCacheMiss
		}
		// Unreachable store: report, then degrade to a miss.
		CacheErrors.WithLabelValues("get").Inc()
		m.logger.Warn().Err(err).Str("key", key).Msg("Cache get failed, treating as miss")
		CacheMisses.Inc()
		return "", ErrCacheMiss
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		// Corrupted entry: drop it and treat as a miss.
		CacheErrors.WithLabelValues("get").Inc()
		m.logger.Warn().Err(err).Str("key", key).Msg("Corrupted cache entry, deleting")
		_ = m.redis.Del(ctx, key).Err()
		CacheMisses.Inc()
		return "", ErrCacheMiss
	}

	// Redis expiry is authoritative, but never serve a stale entry even if
	// the store's clock lags.
	if entry.IsExpired() {
		_ = m.redis.Del(ctx, key).Err()
		CacheMisses.Inc()
		return "", ErrCacheMiss
	}

	CacheHits.WithLabelValues("redis").Inc()
	m.logger.Debug().Str("key", key).Str("kind", string(entry.Kind)).Msg("Cache hit")
	return entry.Value, nil
}

// Put stores a value under a fingerprint key with the TTL for its kind.
// Caching is best-effort: on backing store failure Put returns an error for
// observability, but callers must not fail their primary path on it.
// Repeated writes for the same key overwrite (last write wins).
func (m *Manager) Put(ctx context.Context, key, value string, kind Kind) error {
	if key == "" {
		return ErrInvalidKey
	}
	ttl := TTLFor(kind)
	if ttl <= 0 {
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	now := time.Now()
	entry := Entry{
		Key:       key,
		Kind:      kind,
		Value:     value,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if m.redis == nil {
		return m.localPut(key, data, ttl)
	}

	if err := m.redis.Set(ctx, key, data, ttl).Err(); err != nil {
		CacheErrors.WithLabelValues("put").Inc()
		m.logger.Warn().Err(err).Str("key", key).Msg("Cache put failed")
		return fmt.Errorf("redis set: %w", err)
	}

	CacheSize.WithLabelValues("redis").Add(float64(len(data)))
	m.logger.Debug().Str("key", key).Str("kind", string(kind)).Dur("ttl", ttl).Msg("Cache put")
	return nil
}

func (m *Manager) localGet(key string) (string, error) {
	if m.local == nil {
		// Disabled mode: unconditional miss without I/O.
		CacheMisses.Inc()
		return "", ErrCacheMiss
	}

	data, found := m.local.get(key)
	if !found {
		CacheMisses.Inc()
		return "", ErrCacheMiss
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		m.local.delete(key)
		CacheMisses.Inc()
		return "", ErrCacheMiss
	}
	if entry.IsExpired() {
		m.local.delete(key)
		CacheMisses.Inc()
		return "", ErrCacheMiss
	}

	CacheHits.WithLabelValues("local").Inc()
	return entry.Value, nil
}

func (m *Manager) localPut(key string, data []byte, ttl time.Duration) error {
	if m.local == nil {
		return ErrCacheDisabled
	}
	m.local.set(key, data, ttl)
	CacheSize.WithLabelValues("local").Add(float64(len(data)))
	return nil
}
