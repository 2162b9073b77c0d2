package resolver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests exercise Worker's cache/lifecycle logic directly against its
// LRU cache and channel plumbing, without a live PD connection: resolveOne
// only reaches the PD client on a cache miss, so pre-seeding the cache is
// enough to test the hit path in isolation.

func newTestWorker(t *testing.T) *Worker {
	t.Helper()
	w, err := New(nil, 2)
	require.NoError(t, err)
	w.Start()
	t.Cleanup(w.Stop)
	return w
}

func TestResolveServesFromCache(t *testing.T) {
	w := newTestWorker(t)
	w.cache.Add(uint64(1), "10.0.0.1:20160")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	addr, err := w.Resolve(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:20160", addr)
}

func TestResolveContextCancelled(t *testing.T) {
	w := newTestWorker(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.Resolve(ctx, 1)
	assert.Error(t, err)
}

func TestInvalidateDropsCacheEntry(t *testing.T) {
	w := newTestWorker(t)
	w.cache.Add(uint64(1), "10.0.0.1:20160")
	w.Invalidate(1)

	_, ok := w.cache.Get(1)
	assert.False(t, ok)
}

func TestStopAfterStartIsClean(t *testing.T) {
	w, err := New(nil, 2)
	require.NoError(t, err)
	w.Start()
	w.Stop()
}

func TestResolveAfterStopErrors(t *testing.T) {
	w, err := New(nil, 2)
	require.NoError(t, err)
	w.Start()
	w.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = w.Resolve(ctx, 1)
	assert.Error(t, err)
}
