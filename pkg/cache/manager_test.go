package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// setupTestRedis creates a test Redis client for unit testing.
// Tests are skipped when no local Redis is available; the integration suite
// covers the same paths against a containerized Redis.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Use a separate DB for tests
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func mustFingerprint(t *testing.T, kind Kind, input []byte) string {
	t.Helper()
	key, err := Fingerprint(kind, input)
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	return key
}

func TestManager_PutAndGet(t *testing.T) {
	client := setupTestRedis(t)
	manager := NewManager(Config{Redis: client})
	ctx := context.Background()

	key := mustFingerprint(t, KindAnalysis, []byte("IMG_A"))

	// Miss before first write
	if _, err := manager.Get(ctx, key); err != ErrCacheMiss {
		t.Fatalf("expected ErrCacheMiss before put, got %v", err)
	}

	value := "A cat sitting on a red chair"
	if err := manager.Put(ctx, key, value, KindAnalysis); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := manager.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != value {
		t.Errorf("Get() = %q, want %q", got, value)
	}
}

func TestManager_Put_SetsKindTTL(t *testing.T) {
	client := setupTestRedis(t)
	manager := NewManager(Config{Redis: client})
	ctx := context.Background()

	tests := []struct {
		kind Kind
		want time.Duration
	}{
		{KindAnalysis, AnalysisTTL},
		{KindGeneration, GenerationTTL},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			key := mustFingerprint(t, tt.kind, []byte("ttl probe"))
			if err := manager.Put(ctx, key, "value", tt.kind); err != nil {
				t.Fatalf("Put failed: %v", err)
			}

			ttl, err := client.TTL(ctx, key).Result()
			if err != nil {
				t.Fatalf("TTL lookup failed: %v", err)
			}
			if ttl > tt.want || ttl < tt.want-time.Minute {
				t.Errorf("redis TTL = %v, want ~%v", ttl, tt.want)
			}
		})
	}
}

func TestManager_Get_RefusesStaleEntry(t *testing.T) {
	client := setupTestRedis(t)
	manager := NewManager(Config{Redis: client})
	ctx := context.Background()

	// Write an entry whose embedded expiry has already passed even though
	// Redis would still serve the raw bytes.
	key := mustFingerprint(t, KindAnalysis, []byte("stale"))
	entry := Entry{
		Key:       key,
		Kind:      KindAnalysis,
		Value:     "stale analysis",
		CreatedAt: time.Now().Add(-25 * time.Hour),
		ExpiresAt: time.Now().Add(-1 * time.Hour),
	}
	data, _ := json.Marshal(entry)
	if err := client.Set(ctx, key, data, time.Hour).Err(); err != nil {
		t.Fatalf("raw set failed: %v", err)
	}

	if _, err := manager.Get(ctx, key); err != ErrCacheMiss {
		t.Errorf("expected ErrCacheMiss for stale entry, got %v", err)
	}

	// The stale entry must also have been evicted.
	if err := client.Get(ctx, key).Err(); err != redis.Nil {
		t.Errorf("stale entry not deleted, got %v", err)
	}
}

func TestManager_Get_CorruptedEntry(t *testing.T) {
	client := setupTestRedis(t)
	manager := NewManager(Config{Redis: client})
	ctx := context.Background()

	key := mustFingerprint(t, KindAnalysis, []byte("corrupt"))
	if err := client.Set(ctx, key, "not json", time.Hour).Err(); err != nil {
		t.Fatalf("raw set failed: %v", err)
	}

	if _, err := manager.Get(ctx, key); err != ErrCacheMiss {
		t.Errorf("expected ErrCacheMiss for corrupted entry, got %v", err)
	}
}

func TestManager_Put_Idempotent(t *testing.T) {
	client := setupTestRedis(t)
	manager := NewManager(Config{Redis: client})
	ctx := context.Background()

	key := mustFingerprint(t, KindGeneration, []byte("a cat in a garden"))
	url := "https://cdn.example/img123.png"

	for i := 0; i < 2; i++ {
		if err := manager.Put(ctx, key, url, KindGeneration); err != nil {
			t.Fatalf("Put #%d failed: %v", i+1, err)
		}
	}

	got, err := manager.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != url {
		t.Errorf("Get() = %q, want %q", got, url)
	}
}

func TestManager_InvalidArguments(t *testing.T) {
	manager := NewManager(Config{})
	ctx := context.Background()

	if _, err := manager.Get(ctx, ""); err != ErrInvalidKey {
		t.Errorf("Get(\"\") error = %v, want ErrInvalidKey", err)
	}
	if err := manager.Put(ctx, "", "v", KindAnalysis); err != ErrInvalidKey {
		t.Errorf("Put(\"\") error = %v, want ErrInvalidKey", err)
	}
	if err := manager.Put(ctx, "k", "v", Kind("bogus")); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("Put(bogus kind) error = %v, want ErrUnknownKind", err)
	}
}

// TestManager_Disabled verifies the no-backing-store mode: every get is an
// immediate miss and every put an immediate failure, with no panics.
func TestManager_Disabled(t *testing.T) {
	manager := NewManager(Config{})
	ctx := context.Background()

	if manager.Enabled() {
		t.Error("manager with no store should report disabled")
	}

	key := mustFingerprint(t, KindAnalysis, []byte("anything"))
	for i := 0; i < 100; i++ {
		if _, err := manager.Get(ctx, key); err != ErrCacheMiss {
			t.Fatalf("call %d: Get error = %v, want ErrCacheMiss", i, err)
		}
		if err := manager.Put(ctx, key, "value", KindAnalysis); err != ErrCacheDisabled {
			t.Fatalf("call %d: Put error = %v, want ErrCacheDisabled", i, err)
		}
	}
}

// TestManager_UnreachableStore verifies degradation when Redis is configured
// but not reachable: gets miss, puts fail, nothing panics.
func TestManager_UnreachableStore(t *testing.T) {
	// Port 1 refuses connections immediately.
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	manager := NewManager(Config{Redis: client})
	ctx := context.Background()

	key := mustFingerprint(t, KindGeneration, []byte("unreachable"))
	for i := 0; i < 100; i++ {
		if _, err := manager.Get(ctx, key); err != ErrCacheMiss {
			t.Fatalf("call %d: Get error = %v, want ErrCacheMiss", i, err)
		}
		if err := manager.Put(ctx, key, "value", KindGeneration); err == nil {
			t.Fatalf("call %d: Put should fail against unreachable store", i)
		}
	}
}

func TestManager_LocalLayer(t *testing.T) {
	manager := NewManager(Config{EnableLocal: true})
	ctx := context.Background()

	if !manager.Enabled() {
		t.Error("manager with local layer should report enabled")
	}

	key := mustFingerprint(t, KindAnalysis, []byte("local entry"))
	if _, err := manager.Get(ctx, key); err != ErrCacheMiss {
		t.Fatalf("expected miss before put, got %v", err)
	}

	if err := manager.Put(ctx, key, "local value", KindAnalysis); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := manager.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != "local value" {
		t.Errorf("Get() = %q, want %q", got, "local value")
	}

	// Last write wins on overwrite.
	if err := manager.Put(ctx, key, "second value", KindAnalysis); err != nil {
		t.Fatalf("second Put failed: %v", err)
	}
	got, err = manager.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != "second value" {
		t.Errorf("Get() = %q, want %q", got, "second value")
	}
}

func TestManager_LocalLayer_RefusesStaleEntry(t *testing.T) {
	manager := NewManager(Config{EnableLocal: true})
	ctx := context.Background()

	key := mustFingerprint(t, KindAnalysis, []byte("stale local"))
	entry := Entry{
		Key:       key,
		Kind:      KindAnalysis,
		Value:     "stale",
		CreatedAt: time.Now().Add(-25 * time.Hour),
		ExpiresAt: time.Now().Add(-1 * time.Hour),
	}
	data, _ := json.Marshal(entry)
	manager.local.set(key, data, time.Hour)

	if _, err := manager.Get(ctx, key); err != ErrCacheMiss {
		t.Errorf("expected ErrCacheMiss for stale local entry, got %v", err)
	}
}

// TestManager_ConcurrentAccess exercises uncoordinated concurrent callers.
func TestManager_ConcurrentAccess(t *testing.T) {
	manager := NewManager(Config{EnableLocal: true})
	ctx := context.Background()

	key := mustFingerprint(t, KindGeneration, []byte("concurrent"))
	done := make(chan struct{})

	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 50; j++ {
				_ = manager.Put(ctx, key, "https://cdn.example/img.png", KindGeneration)
				if v, err := manager.Get(ctx, key); err == nil && v != "https://cdn.example/img.png" {
					t.Errorf("unexpected value %q", v)
				}
			}
		}()
	}

	for i := 0; i < 8; i++ {
		<-done
	}
}
