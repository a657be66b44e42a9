// Package search implements hybrid retrieval over caller-scoped chunk
// sets, combining dense vector similarity and sparse keyword matching.
//
// Three strategies are supported:
//   - Hybrid: dense + sparse fused with Reciprocal Rank Fusion (default)
//   - Dense: cosine similarity over embeddings, threshold-filtered
//   - Sparse: term-overlap dot product, no threshold
//
// # Basic Usage
//
//	svc := search.New(embedder, search.DefaultOptions(), nil)
//
//	result, err := svc.Search(ctx, "penguin migration", candidates, search.Options{
//	    Strategy: types.StrategyHybrid,
//	    TopK:     5,
//	})
//
//	for i, chunk := range result.Items {
//	    fmt.Printf("[%d] %s (score: %.4f)\n", i+1, chunk.ID, result.Score(chunk.ID))
//	}
//
// # Determinism
//
// For fixed inputs the returned ordering is fully determined: descending
// by score, ties broken by chunk ID ascending. Hybrid fusion drops the
// RRF term for any list a chunk is absent from rather than assigning a
// zero rank.
//
// # Eligibility
//
// Dense scoring only considers candidates whose stored vector matches
// the configured model and dimension; incompatible vectors are counted
// in SearchResult.SkippedMismatched rather than raising, so one corrupt
// row cannot fail a whole query. Sparse scoring excludes zero-overlap
// candidates entirely instead of returning them as rank-filler.
package search
