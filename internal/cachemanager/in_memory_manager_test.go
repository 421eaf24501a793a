package cachemanager

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type document struct {
	Filename string
	Body     string
}

func TestNewInMemoryCacheManager(t *testing.T) {
	require.NotPanics(t, func() {
		NewInMemoryCacheManager[string]("test", DefaultExpiration, DefaultCleanupInterval)
	})
}

func TestInMemoryCacheManager_GetExistingStruct(t *testing.T) {
	cache := NewInMemoryCacheManager[document]("docs", DefaultExpiration, DefaultCleanupInterval)
	doc := document{Filename: "report_1.html", Body: "<h1>hi</h1>"}
	cache.Set(context.Background(), "report:report_1.html", doc, DefaultExpiration)

	got, ok := cache.Get(context.Background(), "report:report_1.html")
	require.True(t, ok)
	require.Equal(t, doc, got)
}

func TestInMemoryCacheManager_GetMissing(t *testing.T) {
	cache := NewInMemoryCacheManager[string]("docs", DefaultExpiration, DefaultCleanupInterval)

	got, ok := cache.Get(context.Background(), "missing")
	require.False(t, ok)
	require.Empty(t, got)
}

func TestInMemoryCacheManager_GetWrongType(t *testing.T) {
	cache := NewInMemoryCacheManager[string]("docs", DefaultExpiration, DefaultCleanupInterval)
	cache.cache.Set("key", 123, DefaultExpiration)

	got, ok := cache.Get(context.Background(), "key")
	require.False(t, ok)
	require.Empty(t, got)
}

func TestInMemoryCacheManager_Expires(t *testing.T) {
	cache := NewInMemoryCacheManager[string]("docs", DefaultExpiration, DefaultCleanupInterval)
	cache.Set(context.Background(), "key", "value", 20*time.Millisecond)

	_, ok := cache.Get(context.Background(), "key")
	require.True(t, ok)

	require.Eventually(t, func() bool {
		_, ok := cache.Get(context.Background(), "key")
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestInMemoryCacheManager_GetWithRefreshExtendsTTL(t *testing.T) {
	cache := NewInMemoryCacheManager[string]("docs", DefaultExpiration, DefaultCleanupInterval)
	ctx := context.Background()
	cache.Set(ctx, "key", "value", 50*time.Millisecond)

	got, ok := cache.GetWithRefresh(ctx, "key", time.Hour)
	require.True(t, ok)
	require.Equal(t, "value", got)

	time.Sleep(80 * time.Millisecond)
	_, ok = cache.Get(ctx, "key")
	require.True(t, ok, "refresh should have extended the ttl")

	_, ok = cache.GetWithRefresh(ctx, "missing", time.Hour)
	require.False(t, ok)
}

func TestInMemoryCacheManager_DeleteAndFlush(t *testing.T) {
	cache := NewInMemoryCacheManager[string]("docs", DefaultExpiration, DefaultCleanupInterval)
	ctx := context.Background()
	cache.Set(ctx, "a", "1", DefaultExpiration)
	cache.Set(ctx, "b", "2", DefaultExpiration)
	cache.Set(ctx, "c", "3", DefaultExpiration)

	require.NoError(t, cache.Delete(ctx))
	require.Equal(t, 3, cache.Len())

	require.NoError(t, cache.Delete(ctx, "a", "b"))
	require.Equal(t, 1, cache.Len())

	require.NoError(t, cache.Flush(ctx))
	require.Equal(t, 0, cache.Len())
}

func TestInMemoryCacheManager_DeletePrefix(t *testing.T) {
	cache := NewInMemoryCacheManager[string]("docs", DefaultExpiration, DefaultCleanupInterval)
	ctx := context.Background()
	cache.Set(ctx, "history:dashboards", "[]", DefaultExpiration)
	cache.Set(ctx, "history:reports", "[]", DefaultExpiration)
	cache.Set(ctx, "report:a.html", "<p>", DefaultExpiration)

	require.Equal(t, 2, cache.DeletePrefix(ctx, "history:"))
	_, ok := cache.Get(ctx, "report:a.html")
	require.True(t, ok)
	require.Equal(t, 1, cache.Len())
}
