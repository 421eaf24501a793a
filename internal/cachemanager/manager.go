// Package cachemanager provides expiring in-memory caches and a read-through
// wrapper used in front of the document store.
package cachemanager

import (
	"context"
	"time"
)

// CacheManager is a string-keyed cache of V values with per-entry TTLs.
type CacheManager[V any] interface {
	Get(ctx context.Context, key string) (V, bool)
	GetWithRefresh(ctx context.Context, key string, ttl time.Duration) (V, bool)
	Set(ctx context.Context, key string, value V, ttl time.Duration)
	Delete(ctx context.Context, keys ...string) error
	Flush(ctx context.Context) error
}
