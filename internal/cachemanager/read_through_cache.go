package cachemanager

import (
	"context"
	"time"
)

// ReadThroughCache loads values through fn on a miss and caches them.
// Errors from fn are never cached.
type ReadThroughCache[V any, I any] struct {
	cache           CacheManager[V]
	fn              func(ctx context.Context, input I) (V, error)
	shouldSkipCache bool
}

// NewReadThroughCache wraps fn with cache. With shouldSkipCache every call
// goes straight to fn.
func NewReadThroughCache[V any, I any](
	cache CacheManager[V],
	fn func(ctx context.Context, input I) (V, error),
	shouldSkipCache bool,
) *ReadThroughCache[V, I] {
	return &ReadThroughCache[V, I]{
		cache:           cache,
		fn:              fn,
		shouldSkipCache: shouldSkipCache,
	}
}

func (r *ReadThroughCache[V, I]) Get(ctx context.Context, key string, input I, ttl time.Duration) (V, error) {
	if r.shouldSkipCache {
		return r.fn(ctx, input)
	}

	if value, ok := r.cache.Get(ctx, key); ok {
		return value, nil
	}

	return r.load(ctx, key, input, ttl)
}

func (r *ReadThroughCache[V, I]) GetWithRefresh(ctx context.Context, key string, input I, ttl time.Duration) (V, error) {
	if r.shouldSkipCache {
		return r.fn(ctx, input)
	}

	if value, ok := r.cache.GetWithRefresh(ctx, key, ttl); ok {
		return value, nil
	}

	return r.load(ctx, key, input, ttl)
}

// Invalidate drops key so the next Get reloads it.
func (r *ReadThroughCache[V, I]) Invalidate(ctx context.Context, key string) error {
	return r.cache.Delete(ctx, key)
}

func (r *ReadThroughCache[V, I]) load(ctx context.Context, key string, input I, ttl time.Duration) (V, error) {
	value, err := r.fn(ctx, input)
	if err != nil {
		return value, err
	}
	r.cache.Set(ctx, key, value, ttl)
	return value, nil
}
