package integration

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kwtsai/visioncache/internal/testutil"
	"github.com/kwtsai/visioncache/pkg/ai"
	"github.com/kwtsai/visioncache/pkg/cache"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

func TestCacheRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	manager := cache.NewManager(cache.Config{Redis: redisClient})
	ctx := context.Background()

	// Analysis scenario: IMG_A -> h1, miss, compute, put, hit.
	h1, err := cache.Fingerprint(cache.KindAnalysis, []byte("IMG_A"))
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}

	if _, err := manager.Get(ctx, h1); err != cache.ErrCacheMiss {
		t.Fatalf("expected initial miss, got %v", err)
	}

	analysis := "A cat sitting on a red chair"
	if err := manager.Put(ctx, h1, analysis, cache.KindAnalysis); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := manager.Get(ctx, h1)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != analysis {
		t.Errorf("Get() = %q, want %q", got, analysis)
	}

	// Generation scenario: prompt -> h2, URL survives a round trip.
	h2, err := cache.FingerprintPrompt("a cat in a garden")
	if err != nil {
		t.Fatalf("FingerprintPrompt failed: %v", err)
	}

	url := "https://cdn.example/img123.png"
	if err := manager.Put(ctx, h2, url, cache.KindGeneration); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err = manager.Get(ctx, h2)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != url {
		t.Errorf("Get() = %q, want %q", got, url)
	}
}

func TestCacheExpiry(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	manager := cache.NewManager(cache.Config{Redis: redisClient})
	ctx := context.Background()

	key, err := cache.Fingerprint(cache.KindAnalysis, []byte("expiring entry"))
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	if err := manager.Put(ctx, key, "value", cache.KindAnalysis); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Shrink the TTL in Redis to observe real expiry quickly. The entry's
	// embedded expiry is still a day out, so the backing store's own expiry
	// is what removes it.
	if err := redisClient.Expire(ctx, key, 1*time.Second).Err(); err != nil {
		t.Fatalf("Expire failed: %v", err)
	}

	if _, err := manager.Get(ctx, key); err != nil {
		t.Fatalf("entry should still be readable before expiry: %v", err)
	}

	time.Sleep(1500 * time.Millisecond)

	if _, err := manager.Get(ctx, key); err != cache.ErrCacheMiss {
		t.Errorf("expected ErrCacheMiss after expiry, got %v", err)
	}
}

func TestAnalyzeFlowEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	upstream := testutil.NewMockUpstream()
	defer upstream.Close()

	manager := cache.NewManager(cache.Config{Redis: redisClient})

	cfg := ai.DefaultConfig("test-key", manager)
	cfg.BaseURL = upstream.BaseURL()
	cfg.RequestsPerSecond = 1000

	svc, err := ai.New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to create AI service: %v", err)
	}

	ctx := context.Background()
	image := []byte("integration test image bytes")

	first, err := svc.AnalyzeImage(ctx, image)
	if err != nil {
		t.Fatalf("first AnalyzeImage failed: %v", err)
	}
	if first.Cached {
		t.Error("first call should not be cached")
	}

	second, err := svc.AnalyzeImage(ctx, image)
	if err != nil {
		t.Fatalf("second AnalyzeImage failed: %v", err)
	}
	if !second.Cached {
		t.Error("second call should be served from Redis")
	}
	if second.Value != first.Value {
		t.Errorf("cached value %q differs from computed %q", second.Value, first.Value)
	}

	if got := upstream.GetChatRequests(); got != 1 {
		t.Errorf("upstream chat requests = %d, want 1", got)
	}
}
