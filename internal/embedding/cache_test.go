package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCacheStore is an in-memory CacheStore with injectable failures.
type fakeCacheStore struct {
	entries map[string][]float32
	getErr  error
	putErr  error
	gets    int
	puts    int
}

func newFakeCacheStore() *fakeCacheStore {
	return &fakeCacheStore{entries: make(map[string][]float32)}
}

func (f *fakeCacheStore) GetCachedEmbedding(ctx context.Context, contentHash string) ([]float32, bool, error) {
	f.gets++
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	vec, ok := f.entries[contentHash]
	return vec, ok, nil
}

func (f *fakeCacheStore) PutCachedEmbedding(ctx context.Context, contentHash, model string, vector []float32) error {
	f.puts++
	if f.putErr != nil {
		return f.putErr
	}
	if _, exists := f.entries[contentHash]; !exists {
		f.entries[contentHash] = vector
	}
	return nil
}

func TestCacheKeyDeterministic(t *testing.T) {
	k1 := CacheKey("hello world", "model-a")
	k2 := CacheKey("hello world", "model-a")
	assert.Equal(t, k1, k2)
	assert.Len(t, k1, 64) // hex-encoded SHA-256
}

func TestCacheKeyVariesByTextAndModel(t *testing.T) {
	base := CacheKey("hello", "model-a")
	assert.NotEqual(t, base, CacheKey("hello!", "model-a"))
	assert.NotEqual(t, base, CacheKey("hello", "model-b"))

	// No normalization: case and whitespace are significant
	assert.NotEqual(t, base, CacheKey("Hello", "model-a"))
	assert.NotEqual(t, base, CacheKey("hello ", "model-a"))
}

func TestCacheMemoryTier(t *testing.T) {
	cache := NewCache(10, nil, nil)
	ctx := context.Background()

	_, ok := cache.Get(ctx, "text", "model-a")
	assert.False(t, ok)

	cache.Put(ctx, "text", "model-a", []float32{1, 2, 3})

	vec, ok := cache.Get(ctx, "text", "model-a")
	require.True(t, ok)
	assert.Equal(t, []float32{1, 2, 3}, vec)
	assert.Equal(t, 1, cache.Size())

	// Same text under a different model is a distinct entry
	_, ok = cache.Get(ctx, "text", "model-b")
	assert.False(t, ok)
}

func TestCacheReturnsCopies(t *testing.T) {
	cache := NewCache(10, nil, nil)
	ctx := context.Background()

	original := []float32{1, 2, 3}
	cache.Put(ctx, "text", "model-a", original)

	// Mutating the caller's slice must not corrupt the cached value
	original[0] = 99

	vec, ok := cache.Get(ctx, "text", "model-a")
	require.True(t, ok)
	assert.Equal(t, float32(1), vec[0])

	// Mutating the returned slice must not corrupt it either
	vec[1] = 99
	vec2, ok := cache.Get(ctx, "text", "model-a")
	require.True(t, ok)
	assert.Equal(t, float32(2), vec2[1])
}

func TestCachePersistentTierPromotion(t *testing.T) {
	store := newFakeCacheStore()
	store.entries[CacheKey("text", "model-a")] = []float32{4, 5, 6}

	cache := NewCache(10, store, nil)
	ctx := context.Background()

	vec, ok := cache.Get(ctx, "text", "model-a")
	require.True(t, ok)
	assert.Equal(t, []float32{4, 5, 6}, vec)
	assert.Equal(t, 1, store.gets)

	// Second read is served from the memory tier
	_, ok = cache.Get(ctx, "text", "model-a")
	require.True(t, ok)
	assert.Equal(t, 1, store.gets)
}

func TestCachePutWritesBothTiers(t *testing.T) {
	store := newFakeCacheStore()
	cache := NewCache(10, store, nil)
	ctx := context.Background()

	cache.Put(ctx, "text", "model-a", []float32{1, 2})
	assert.Equal(t, 1, store.puts)
	assert.Contains(t, store.entries, CacheKey("text", "model-a"))
}

func TestCacheStoreReadFailureIsMiss(t *testing.T) {
	store := newFakeCacheStore()
	store.getErr = errors.New("disk on fire")

	cache := NewCache(10, store, nil)
	_, ok := cache.Get(context.Background(), "text", "model-a")
	assert.False(t, ok)
}

func TestCacheStoreWriteFailureSwallowed(t *testing.T) {
	store := newFakeCacheStore()
	store.putErr = errors.New("disk on fire")

	cache := NewCache(10, store, nil)
	ctx := context.Background()

	cache.Put(ctx, "text", "model-a", []float32{1})

	// The memory tier still holds the value
	vec, ok := cache.Get(ctx, "text", "model-a")
	require.True(t, ok)
	assert.Equal(t, []float32{1}, vec)
}

func TestCacheLRUEviction(t *testing.T) {
	cache := NewCache(2, nil, nil)
	ctx := context.Background()

	cache.Put(ctx, "a", "m", []float32{1})
	cache.Put(ctx, "b", "m", []float32{2})
	cache.Put(ctx, "c", "m", []float32{3})

	assert.Equal(t, 2, cache.Size())
	_, ok := cache.Get(ctx, "a", "m")
	assert.False(t, ok, "oldest entry should have been evicted")
}

func TestCacheClear(t *testing.T) {
	cache := NewCache(10, nil, nil)
	ctx := context.Background()

	cache.Put(ctx, "a", "m", []float32{1})
	cache.Clear()
	assert.Equal(t, 0, cache.Size())
}
