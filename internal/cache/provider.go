// Package cache abstracts the byte cache used in front of the upstream
// traffic and weather providers.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss signals an absent key. Callers treat a miss as "fetch
// upstream", never as a failure.
var ErrCacheMiss = errors.New("cache miss")

// Provider is the cache surface the repositories depend on. Get returns
// ErrCacheMiss for absent keys.
type Provider interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Close() error
}

// NoopProvider satisfies Provider without storing anything, so callers can
// run cache-free without nil checks.
type NoopProvider struct{}

func (NoopProvider) Get(context.Context, string) ([]byte, error) {
	return nil, ErrCacheMiss
}

func (NoopProvider) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}

func (NoopProvider) Del(context.Context, string) error { return nil }

func (NoopProvider) Close() error { return nil }
