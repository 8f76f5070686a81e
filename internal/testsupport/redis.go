package testsupport

import (
	"context"
	"testing"
	"time"

	redisclient "tradegate/internal/adapters/redis"
)

// NewRedisClient connects the cache adapter for integration tests.
// Skipped without REDIS_HOST.
func NewRedisClient(t *testing.T) *redisclient.Client {
	t.Helper()
	cfg := LoadRedisConfig(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := redisclient.NewClient(ctx, cfg)
	if err != nil {
		t.Fatalf("failed to connect to redis: %v", err)
	}

	t.Cleanup(func() {
		_ = client.Close()
	})

	return client
}
