// Package cache provides an in-memory TTL cache satisfying the engine's
// cache provider contract, for local development and tests where no Redis
// server is available.
package cache

import (
	"context"
	"sync"
	"time"

	enginecache "github.com/harborstack/channelwatch/internal/cache"
)

// ErrCacheMiss aliases the engine cache miss sentinel so callers can treat
// both providers uniformly via errors.Is.
var ErrCacheMiss = enginecache.ErrCacheMiss

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is a process-local TTL cache. Safe for concurrent use.
type Memory struct {
	mu   sync.RWMutex
	data map[string]entry
}

// NewMemory creates an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]entry)}
}

// Get returns the cached value or ErrCacheMiss when absent or expired.
func (c *Memory) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	e, ok := c.data[key]
	c.mu.RUnlock()

	if !ok {
		return nil, ErrCacheMiss
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		c.mu.Lock()
		delete(c.data, key)
		c.mu.Unlock()
		return nil, ErrCacheMiss
	}
	return append([]byte(nil), e.value...), nil
}

// Set stores a value; ttl <= 0 means no expiry.
func (c *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}

	c.mu.Lock()
	c.data[key] = e
	c.mu.Unlock()
	return nil
}

// Del removes a key if present.
func (c *Memory) Del(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.data, key)
	c.mu.Unlock()
	return nil
}

// Close clears the cache.
func (c *Memory) Close() error {
	c.mu.Lock()
	c.data = make(map[string]entry)
	c.mu.Unlock()
	return nil
}
