package cachemanager

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

// mockCacheManager is a testify mock of CacheManager.
type mockCacheManager[V any] struct {
	mock.Mock
}

func newMockCacheManager[V any](t interface {
	mock.TestingT
	Cleanup(func())
}) *mockCacheManager[V] {
	m := &mockCacheManager[V]{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *mockCacheManager[V]) Get(ctx context.Context, key string) (V, bool) {
	args := m.Called(ctx, key)
	v, _ := args.Get(0).(V)
	return v, args.Bool(1)
}

func (m *mockCacheManager[V]) GetWithRefresh(ctx context.Context, key string, ttl time.Duration) (V, bool) {
	args := m.Called(ctx, key, ttl)
	v, _ := args.Get(0).(V)
	return v, args.Bool(1)
}

func (m *mockCacheManager[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) {
	m.Called(ctx, key, value, ttl)
}

func (m *mockCacheManager[V]) Delete(ctx context.Context, keys ...string) error {
	args := m.Called(ctx, keys)
	return args.Error(0)
}

func (m *mockCacheManager[V]) Flush(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
