// Package cache provides byte-oriented key/value stores with per-entry TTL.
package cache

import (
	"context"
	"sync"
	"time"
)

// Store is implemented by MemoryStore and RedisStore.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

const defaultTTL = 5 * time.Second

type MemoryStore struct {
	mu  sync.RWMutex
	now func() time.Time
	m   map[string]entry
}

type entry struct {
	val []byte
	exp time.Time
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		now: time.Now,
		m:   make(map[string]entry),
	}
}

func (c *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	now := c.now()
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}

	if now.After(e.exp) {
		c.mu.Lock()
		if cur, ok := c.m[key]; ok && cur.exp.Equal(e.exp) {
			delete(c.m, key)
		}
		c.mu.Unlock()
		return nil, false, nil
	}

	return e.val, true, nil
}

// Set stores a copy of val. A non-positive ttl uses a 5s default.
func (c *MemoryStore) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	cp := append([]byte(nil), val...)

	c.mu.Lock()
	c.m[key] = entry{val: cp, exp: c.now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

func (c *MemoryStore) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	for _, k := range keys {
		delete(c.m, k)
	}
	c.mu.Unlock()
	return nil
}

// Len counts stored entries, including expired ones not yet evicted.
func (c *MemoryStore) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}
