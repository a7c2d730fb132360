package cache

import (
	"context"
	"os"
	"testing"
	"time"
)

// Set ATLAS_TEST_REDIS_ADDR (e.g. localhost:6379) to run against a real server.
func TestRedisCacheIntegration(t *testing.T) {
	addr := os.Getenv("ATLAS_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("ATLAS_TEST_REDIS_ADDR not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c, err := NewRedisCache(ctx, RedisConfig{Addr: addr, Prefix: "atlas:test:"})
	if err != nil {
		t.Fatalf("NewRedisCache() error = %v", err)
	}
	defer c.Close()
	defer c.Clear(ctx)

	key := NewLayerKeyer().LayerKey("district", "https://example.org/integration.geojson")
	if _, hit, err := c.Get(ctx, key); err != nil || hit {
		t.Fatalf("Get() before Set = hit %v err %v", hit, err)
	}
	if err := c.Set(ctx, key, []byte("payload"), time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	data, hit, err := c.Get(ctx, key)
	if err != nil || !hit || string(data) != "payload" {
		t.Fatalf("Get() = %q hit %v err %v", data, hit, err)
	}

	if err := c.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if _, hit, _ := c.Get(ctx, key); hit {
		t.Error("Get() after Clear should miss")
	}
}

func TestNewRedisCacheRequiresAddr(t *testing.T) {
	if _, err := NewRedisCache(context.Background(), RedisConfig{}); err == nil {
		t.Error("NewRedisCache() without address should fail")
	}
}

func TestRedisCacheClearRequiresPrefix(t *testing.T) {
	c := NewRedisCacheFromClient(nil, "")
	if err := c.Clear(context.Background()); err == nil {
		t.Error("Clear() without prefix should fail")
	}
}
