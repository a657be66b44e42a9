package search

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/anulax1225/chinese-worker-sub002/pkg/types"
)

// cacheEntry represents a cached search result with expiration time
type cacheEntry struct {
	result    *types.SearchResult
	expiresAt time.Time
}

// queryCache memoizes search results per (query, options, candidate
// fingerprint). Opt-in per request; invalidated implicitly when the
// candidate scope changes because the fingerprint covers chunk IDs and
// embedding timestamps.
type queryCache struct {
	cache *lru.Cache[[32]byte, *cacheEntry]
	mu    sync.RWMutex
}

func newQueryCache(maxEntries int) *queryCache {
	cache, err := lru.New[[32]byte, *cacheEntry](maxEntries)
	if err != nil {
		// This should never happen with valid size parameter
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}
	return &queryCache{cache: cache}
}

func (qc *queryCache) get(query string, candidates []*types.Chunk, opts Options) (*types.SearchResult, bool) {
	key := cacheKey(query, candidates, opts)
	now := time.Now()

	qc.mu.RLock()
	entry, found := qc.cache.Get(key)
	if !found {
		qc.mu.RUnlock()
		return nil, false
	}

	if now.After(entry.expiresAt) {
		qc.mu.RUnlock()
		qc.mu.Lock()
		qc.cache.Remove(key)
		qc.mu.Unlock()
		return nil, false
	}

	result := copyResult(entry.result)
	qc.mu.RUnlock()
	return result, true
}

func (qc *queryCache) put(query string, candidates []*types.Chunk, opts Options, result *types.SearchResult) {
	key := cacheKey(query, candidates, opts)
	entry := &cacheEntry{
		result:    copyResult(result),
		expiresAt: time.Now().Add(opts.CacheTTL),
	}

	qc.mu.Lock()
	qc.cache.Add(key, entry)
	qc.mu.Unlock()
}

func (qc *queryCache) purge() {
	qc.mu.Lock()
	qc.cache.Purge()
	qc.mu.Unlock()
}

// cacheKey builds a deterministic hash over the query, the scoring
// options, and a fingerprint of the candidate scope.
func cacheKey(query string, candidates []*types.Chunk, opts Options) [32]byte {
	var data strings.Builder
	data.WriteString(query)
	data.WriteString("|")
	data.WriteString(string(opts.Strategy))
	data.WriteString(fmt.Sprintf("|%d|%.4f|%.4f|%d", opts.TopK, opts.SimilarityThreshold, opts.HybridAlpha, opts.RRFK))

	for _, c := range candidates {
		data.WriteString("|")
		data.WriteString(c.ID)
		if c.EmbeddingGeneratedAt != nil {
			data.WriteString(fmt.Sprintf("@%d", c.EmbeddingGeneratedAt.UnixNano()))
		}
	}

	return sha256.Sum256([]byte(data.String()))
}

// copyResult creates a deep enough copy that callers cannot mutate the
// cached ordering or scores. Chunk pointers are shared: chunks are
// read-only on the retrieval path.
func copyResult(src *types.SearchResult) *types.SearchResult {
	if src == nil {
		return nil
	}

	dst := &types.SearchResult{
		Strategy:          src.Strategy,
		SkippedMismatched: src.SkippedMismatched,
		Duration:          src.Duration,
		Items:             make([]*types.Chunk, len(src.Items)),
		Scores:            make(map[string]float64, len(src.Scores)),
	}
	copy(dst.Items, src.Items)
	for id, score := range src.Scores {
		dst.Scores[id] = score
	}
	return dst
}
