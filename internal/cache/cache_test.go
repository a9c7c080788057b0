package cache

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestMemoryStoreSetGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	val := []byte("hello")
	if err := s.Set(ctx, "k", val, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	val[0] = 'j'

	got, ok, err := s.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if string(got) != "hello" {
		t.Fatalf("expected stored copy, got %q", got)
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemory()
	s.now = func() time.Time { return now }

	_ = s.Set(ctx, "k", []byte("v"), time.Second)

	now = now.Add(500 * time.Millisecond)
	if _, ok, _ := s.Get(ctx, "k"); !ok {
		t.Fatalf("expected hit before expiry")
	}

	now = now.Add(time.Second)
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Fatalf("expected miss after expiry")
	}
	if s.Len() != 0 {
		t.Fatalf("expected expired entry to be evicted, len=%d", s.Len())
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	_ = s.Set(ctx, "a", []byte("1"), time.Minute)
	_ = s.Set(ctx, "b", []byte("2"), time.Minute)
	_ = s.Set(ctx, "c", []byte("3"), time.Minute)

	_ = s.Delete(ctx, "a", "b", "missing")
	if s.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", s.Len())
	}
	if _, ok, _ := s.Get(ctx, "c"); !ok {
		t.Fatalf("expected c to survive")
	}
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()
	s := NewRedis(RedisConfig{Addr: addr, Prefix: "mg-test:" + t.Name() + ":"})
	t.Cleanup(func() { _ = s.Close() })

	if err := s.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}

	if _, ok, err := s.Get(ctx, "absent"); ok || err != nil {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}

	if err := s.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := s.Get(ctx, "k")
	if err != nil || !ok || string(got) != "v" {
		t.Fatalf("expected hit v, got %q ok=%v err=%v", got, ok, err)
	}

	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Fatalf("expected miss after delete")
	}
}
