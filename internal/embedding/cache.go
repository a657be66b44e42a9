package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
)

// CacheStore is the persistent tier of the embedding cache. Implemented
// by the storage package; rows are append-only per key.
type CacheStore interface {
	// GetCachedEmbedding looks up a vector by content hash. Absence is a
	// normal miss, not an error.
	GetCachedEmbedding(ctx context.Context, contentHash string) ([]float32, bool, error)

	// PutCachedEmbedding persists a vector under its content hash.
	// Writing the same key twice is a no-op in effect.
	PutCachedEmbedding(ctx context.Context, contentHash, model string, vector []float32) error
}

// CacheKey derives the content-addressed key for a (text, model) pair.
// Exact strings are hashed: identical text+model always hashes identically,
// and no case or whitespace normalization is applied beyond what the
// caller passes.
func CacheKey(text, model string) string {
	h := sha256.Sum256([]byte(text + "::" + model))
	return hex.EncodeToString(h[:])
}

// Cache is a content-addressed store mapping (text, model) to embedding
// vectors. It layers an in-memory LRU over an optional persistent store;
// concurrent puts for the same key are safe because the value for a given
// key is deterministic.
type Cache struct {
	mem   *lru.Cache[string, []float32]
	store CacheStore // Nil for memory-only caching
	log   *logrus.Logger
}

// NewCache creates a new embedding cache with LRU eviction in the memory
// tier. store may be nil for memory-only operation.
func NewCache(maxLen int, store CacheStore, log *logrus.Logger) *Cache {
	if maxLen <= 0 {
		maxLen = 10000 // Default: cache 10k embeddings
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	mem, err := lru.New[string, []float32](maxLen)
	if err != nil {
		// Should never happen with positive size, but fallback to default
		mem, _ = lru.New[string, []float32](10000)
	}
	return &Cache{
		mem:   mem,
		store: store,
		log:   log,
	}
}

// Get retrieves a copy of a cached vector for (text, model). The second
// return value reports a hit. Persistent-tier read failures are logged
// and treated as misses so a degraded store never fails an embed call.
func (c *Cache) Get(ctx context.Context, text, model string) ([]float32, bool) {
	key := CacheKey(text, model)

	if vec, ok := c.mem.Get(key); ok {
		return copyVector(vec), true
	}

	if c.store == nil {
		return nil, false
	}

	vec, ok, err := c.store.GetCachedEmbedding(ctx, key)
	if err != nil {
		c.log.WithError(err).WithField("content_hash", key).Warn("embedding cache read failed")
		return nil, false
	}
	if !ok {
		return nil, false
	}

	// Promote to memory tier
	c.mem.Add(key, vec)
	return copyVector(vec), true
}

// Put stores a vector for (text, model) in both tiers. Persistent-tier
// write failures are logged and swallowed; the memory tier still holds
// the value for the life of the process.
func (c *Cache) Put(ctx context.Context, text, model string, vector []float32) {
	key := CacheKey(text, model)
	c.mem.Add(key, copyVector(vector))

	if c.store == nil {
		return
	}

	if err := c.store.PutCachedEmbedding(ctx, key, model, vector); err != nil {
		c.log.WithError(err).WithField("content_hash", key).Warn("embedding cache write failed")
	}
}

// Size returns the current memory-tier size
func (c *Cache) Size() int {
	return c.mem.Len()
}

// Clear empties the memory tier. Persistent rows are untouched; eviction
// there is an external concern.
func (c *Cache) Clear() {
	c.mem.Purge()
}

// copyVector returns a copy to prevent caller mutations from affecting
// cached values.
func copyVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
