package search

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/anulax1225/chinese-worker-sub002/internal/embedding"
	"github.com/anulax1225/chinese-worker-sub002/internal/storage"
	"github.com/anulax1225/chinese-worker-sub002/pkg/types"
)

// Service executes dense, sparse, and hybrid search over caller-scoped
// candidate sets. The candidate scope is always pre-filtered by the
// caller; the service never widens it.
type Service struct {
	embedder *embedding.Service
	defaults Options
	cache    *queryCache
	log      *logrus.Logger
}

// New creates a search service. defaults applies where a request leaves
// an option zero; log may be nil for the standard logger.
func New(embedder *embedding.Service, defaults Options, log *logrus.Logger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if err := defaults.normalize(); err != nil {
		defaults = DefaultOptions()
	}
	return &Service{
		embedder: embedder,
		defaults: defaults,
		cache:    newQueryCache(1000),
		log:      log,
	}
}

// Search scores and ranks the candidate chunks for the query. An empty
// candidate scope (or one with zero eligible candidates) returns an
// empty result, not an error; embedding backend failures propagate.
func (s *Service) Search(ctx context.Context, query string, candidates []*types.Chunk, opts Options) (*types.SearchResult, error) {
	start := time.Now()

	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}
	s.applyDefaults(&opts)
	if err := opts.normalize(); err != nil {
		return nil, fmt.Errorf("invalid search options: %w", err)
	}

	if opts.UseCache {
		if cached, ok := s.cache.get(query, candidates, opts); ok {
			cached.Duration = time.Since(start)
			return cached, nil
		}
	}

	var (
		ranked  []scoredChunk
		skipped int
		err     error
	)

	switch opts.Strategy {
	case types.StrategyDense:
		ranked, skipped, err = s.denseSearch(ctx, query, candidates, opts.SimilarityThreshold, opts.TopK)
	case types.StrategySparse:
		ranked = s.sparseSearch(query, candidates, opts.TopK)
	case types.StrategyHybrid:
		ranked, skipped, err = s.hybridSearch(ctx, query, candidates, opts)
	}
	if err != nil {
		return nil, err
	}

	result := buildResult(ranked, opts.Strategy, skipped)
	result.Duration = time.Since(start)

	if opts.UseCache && !result.Empty() {
		s.cache.put(query, candidates, opts, result)
	}

	return result, nil
}

// applyDefaults overlays service-level defaults onto unset options.
func (s *Service) applyDefaults(opts *Options) {
	if opts.Strategy == "" {
		opts.Strategy = s.defaults.Strategy
	}
	if opts.TopK == 0 {
		opts.TopK = s.defaults.TopK
	}
	if opts.SimilarityThreshold == 0 {
		opts.SimilarityThreshold = s.defaults.SimilarityThreshold
	}
	if opts.HybridAlpha == 0 {
		opts.HybridAlpha = s.defaults.HybridAlpha
	}
	if opts.RRFK == 0 {
		opts.RRFK = s.defaults.RRFK
	}
	if opts.CacheTTL == 0 {
		opts.CacheTTL = s.defaults.CacheTTL
	}
}

// scoredChunk pairs a candidate with its strategy-specific score.
type scoredChunk struct {
	chunk *types.Chunk
	score float64
}

// denseSearch embeds the query and scores candidates by cosine
// similarity. Candidates lacking a compatible dense vector are excluded
// before scoring, not scored as zero; vectors stored under a different
// model or dimension increment the skipped count.
func (s *Service) denseSearch(ctx context.Context, query string, candidates []*types.Chunk, threshold float64, topK int) ([]scoredChunk, int, error) {
	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to embed query: %w", err)
	}

	model := s.embedder.Model()
	dims := s.embedder.Dimensions()

	scored := make([]scoredChunk, 0, len(candidates))
	skipped := 0
	for _, c := range candidates {
		if c.DenseVector == nil {
			continue // Not yet embedded
		}
		if !c.DenseEligible(model, dims) {
			skipped++
			continue
		}

		sim := storage.CosineSimilarity(queryVec, c.DenseVector)
		if sim < threshold {
			continue
		}
		scored = append(scored, scoredChunk{chunk: c, score: sim})
	}

	sortScored(scored)
	return truncate(scored, topK), skipped, nil
}

// sparseSearch scores candidates by the dot product of the query's
// term weights and the candidate's stored sparse vector over shared
// terms. Zero-overlap candidates are excluded entirely.
func (s *Service) sparseSearch(query string, candidates []*types.Chunk, topK int) []scoredChunk {
	queryTerms := s.embedder.GenerateSparseEmbedding(query)

	scored := make([]scoredChunk, 0, len(candidates))
	for _, c := range candidates {
		if !c.SparseEligible() {
			continue
		}

		score := sparseDot(queryTerms, c.SparseVector)
		if score == 0 {
			continue // No overlapping terms: not rank-filler
		}
		scored = append(scored, scoredChunk{chunk: c, score: score})
	}

	sortScored(scored)
	return truncate(scored, topK)
}

// hybridSearch runs dense and sparse legs concurrently with an
// over-fetched candidate pool, then fuses the rankings with Reciprocal
// Rank Fusion.
func (s *Service) hybridSearch(ctx context.Context, query string, candidates []*types.Chunk, opts Options) ([]scoredChunk, int, error) {
	poolK := opts.TopK * hybridOverFetch
	if poolK > len(candidates) {
		poolK = len(candidates)
	}

	var (
		denseRanked  []scoredChunk
		sparseRanked []scoredChunk
		skipped      int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		denseRanked, skipped, err = s.denseSearch(gctx, query, candidates, opts.SimilarityThreshold, poolK)
		return err
	})
	g.Go(func() error {
		sparseRanked = s.sparseSearch(query, candidates, poolK)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	fused := fuseRRF(denseRanked, sparseRanked, opts.HybridAlpha, opts.RRFK)
	return truncate(fused, opts.TopK), skipped, nil
}

// fuseRRF combines two ranked lists with Reciprocal Rank Fusion:
//
//	fused = alpha * 1/(k + denseRank) + (1-alpha) * 1/(k + sparseRank)
//
// Ranks are 1-based; a chunk absent from one list simply contributes no
// term for that list (dropped, not zero-ranked).
func fuseRRF(dense, sparse []scoredChunk, alpha float64, k int) []scoredChunk {
	type fusedEntry struct {
		chunk *types.Chunk
		score float64
	}
	fused := make(map[string]*fusedEntry)

	for rank, sc := range dense {
		fused[sc.chunk.ID] = &fusedEntry{
			chunk: sc.chunk,
			score: alpha / float64(k+rank+1),
		}
	}

	for rank, sc := range sparse {
		entry, ok := fused[sc.chunk.ID]
		if !ok {
			entry = &fusedEntry{chunk: sc.chunk}
			fused[sc.chunk.ID] = entry
		}
		entry.score += (1 - alpha) / float64(k+rank+1)
	}

	out := make([]scoredChunk, 0, len(fused))
	for _, entry := range fused {
		out = append(out, scoredChunk{chunk: entry.chunk, score: entry.score})
	}
	sortScored(out)
	return out
}

// sparseDot computes the dot product over terms present on both sides.
func sparseDot(a, b map[string]float64) float64 {
	// Iterate the smaller map
	if len(b) < len(a) {
		a, b = b, a
	}
	var sum float64
	for term, wa := range a {
		if wb, ok := b[term]; ok {
			sum += wa * wb
		}
	}
	return sum
}

// sortScored orders by score descending, ties broken by chunk ID
// ascending for determinism.
func sortScored(scored []scoredChunk) {
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].chunk.ID < scored[j].chunk.ID
	})
}

func truncate(scored []scoredChunk, limit int) []scoredChunk {
	if limit > 0 && len(scored) > limit {
		return scored[:limit]
	}
	return scored
}

// buildResult converts ranked chunks into the shared result type.
func buildResult(ranked []scoredChunk, strategy types.Strategy, skipped int) *types.SearchResult {
	items := make([]*types.Chunk, len(ranked))
	scores := make(map[string]float64, len(ranked))
	for i, sc := range ranked {
		items[i] = sc.chunk
		scores[sc.chunk.ID] = sc.score
	}
	return &types.SearchResult{
		Items:             items,
		Strategy:          strategy,
		Scores:            scores,
		SkippedMismatched: skipped,
	}
}
