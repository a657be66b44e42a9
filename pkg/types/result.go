package types

import "time"

// Strategy selects how candidates are scored and ranked.
type Strategy string

const (
	StrategyDense  Strategy = "dense"  // Cosine similarity over embeddings
	StrategySparse Strategy = "sparse" // Term-overlap dot product
	StrategyHybrid Strategy = "hybrid" // Dense + sparse fused with RRF
)

// Valid reports whether the strategy is one of the known values.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyDense, StrategySparse, StrategyHybrid:
		return true
	}
	return false
}

// SearchResult is the output of one search strategy invocation.
//
// Items ordering is fully determined by Scores (descending), with ties
// broken by chunk ID ascending so repeated runs over the same corpus
// produce identical rankings.
type SearchResult struct {
	Items    []*Chunk
	Strategy Strategy
	Scores   map[string]float64 // chunk ID -> strategy-specific score

	// SkippedMismatched counts candidates excluded from dense scoring
	// because their stored vector did not match the configured model or
	// dimension. Lets callers distinguish "no match" from "not embedded".
	SkippedMismatched int

	Duration time.Duration
}

// Empty reports whether the search produced no items.
func (r *SearchResult) Empty() bool {
	return len(r.Items) == 0
}

// Score returns the score recorded for a chunk, or zero if absent.
func (r *SearchResult) Score(chunkID string) float64 {
	return r.Scores[chunkID]
}

// Citation ties a context excerpt back to its source chunk and document.
type Citation struct {
	Label         int // 1-based index, matches the [n] marker in the context
	Excerpt       string
	ChunkID       string
	DocumentID    string
	DocumentTitle string
}
