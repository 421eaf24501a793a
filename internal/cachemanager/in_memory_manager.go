package cachemanager

import (
	"context"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/zjrosen/sleuth/internal/log"
)

const DefaultExpiration = 5 * time.Minute
const DefaultCleanupInterval = 10 * time.Minute

// NewInMemoryCacheManager creates a go-cache backed manager. useCase names
// the cache in log lines.
func NewInMemoryCacheManager[V any](useCase string, defaultExpiration, cleanupInterval time.Duration) *InMemoryCacheManager[V] {
	c := gocache.New(defaultExpiration, cleanupInterval)
	c.OnEvicted(func(key string, _ any) {
		log.Debug(log.CatCache, "evicted", "cache", useCase, "key", key)
	})
	return &InMemoryCacheManager[V]{
		useCase: useCase,
		cache:   c,
	}
}

// InMemoryCacheManager implements CacheManager on go-cache.
type InMemoryCacheManager[V any] struct {
	useCase string
	cache   *gocache.Cache
}

// Ensure InMemoryCacheManager implements CacheManager.
var _ CacheManager[string] = (*InMemoryCacheManager[string])(nil)

// Get retrieves an item from the cache by its key
func (c *InMemoryCacheManager[V]) Get(_ context.Context, key string) (V, bool) {
	var zero V

	value, found := c.cache.Get(key)
	if !found {
		return zero, false
	}

	v, ok := value.(V)
	if !ok {
		log.Error(log.CatCache, "wrong type assertion when getting value", "cache", c.useCase, "key", key)
		return zero, false
	}

	log.Debug(log.CatCache, "cache hit", "cache", c.useCase, "key", key)
	return v, true
}

// GetWithRefresh retrieves an item and, when found, extends its ttl.
func (c *InMemoryCacheManager[V]) GetWithRefresh(ctx context.Context, key string, ttl time.Duration) (V, bool) {
	value, found := c.Get(ctx, key)
	if !found {
		return value, false
	}
	c.Set(ctx, key, value, ttl)
	return value, true
}

// Set stores value under key for ttl. gocache.DefaultExpiration (0) uses
// the manager's default.
func (c *InMemoryCacheManager[V]) Set(_ context.Context, key string, value V, ttl time.Duration) {
	c.cache.Set(key, value, ttl)
}

// Delete removes keys from the cache.
func (c *InMemoryCacheManager[V]) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		c.cache.Delete(key)
	}
	return nil
}

// DeletePrefix removes every key starting with prefix and returns how many
// were removed.
func (c *InMemoryCacheManager[V]) DeletePrefix(_ context.Context, prefix string) int {
	removed := 0
	for key := range c.cache.Items() {
		if strings.HasPrefix(key, prefix) {
			c.cache.Delete(key)
			removed++
		}
	}
	return removed
}

// Flush removes every item.
func (c *InMemoryCacheManager[V]) Flush(_ context.Context) error {
	c.cache.Flush()
	return nil
}

// Len returns the number of items, including expired ones not yet cleaned up.
func (c *InMemoryCacheManager[V]) Len() int {
	return c.cache.ItemCount()
}
