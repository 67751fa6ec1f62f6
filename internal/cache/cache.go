// Package cache is a small byte cache in front of hot read paths. The API
// layer keeps rendered catalog and cart responses in it and evicts on every
// mutation, so a stale entry can only survive until the next write.
package cache

import (
	"context"
	"time"
)

// Cache stores opaque byte values under string keys with a TTL. A miss is
// not an error: Get reports it through the second return value.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Noop ignores writes and always misses. It stands in when no Redis is
// configured.
type Noop struct{}

var _ Cache = Noop{}

func (Noop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

func (Noop) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (Noop) Delete(context.Context, ...string) error { return nil }
