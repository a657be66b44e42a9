package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anulax1225/chinese-worker-sub002/internal/embedding"
	"github.com/anulax1225/chinese-worker-sub002/pkg/types"
)

const testModel = "vec-v1"

// vectorBackend maps texts to fixed vectors for controlled scoring.
type vectorBackend struct {
	vectors  map[string][]float32
	failWith error
}

func (b *vectorBackend) GenerateEmbeddings(ctx context.Context, texts []string, model string) ([][]float32, error) {
	if b.failWith != nil {
		return nil, b.failWith
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, ok := b.vectors[text]
		if !ok {
			vec = []float32{0, 0, 0, 1}
		}
		out[i] = vec
	}
	return out, nil
}

func (b *vectorBackend) Dimensions(model string) int { return 4 }
func (b *vectorBackend) Provider() string            { return "vector" }
func (b *vectorBackend) DefaultModel() string        { return testModel }
func (b *vectorBackend) Close() error                { return nil }

func newTestSearcher(t *testing.T, backend embedding.Backend) *Service {
	t.Helper()
	embedder := embedding.NewService(backend, nil, embedding.DefaultServiceConfig(), nil)
	return New(embedder, DefaultOptions(), nil)
}

// embeddedChunk builds a chunk eligible for both dense and sparse search.
func embeddedChunk(id string, dense []float32, sparse map[string]float64) *types.Chunk {
	return &types.Chunk{
		ID:             id,
		DocumentID:     "d1",
		Content:        "content of " + id,
		DenseVector:    dense,
		SparseVector:   sparse,
		EmbeddingModel: testModel,
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	svc := newTestSearcher(t, &vectorBackend{})
	_, err := svc.Search(context.Background(), "", nil, DefaultOptions())
	assert.Error(t, err)
}

func TestSearchInvalidStrategy(t *testing.T) {
	svc := newTestSearcher(t, &vectorBackend{})
	opts := Options{Strategy: types.Strategy("semantic")}
	_, err := svc.Search(context.Background(), "query", nil, opts)
	assert.Error(t, err)
}

func TestSearchEmptyCandidates(t *testing.T) {
	svc := newTestSearcher(t, &vectorBackend{vectors: map[string][]float32{}})

	for _, strategy := range []types.Strategy{types.StrategyDense, types.StrategySparse, types.StrategyHybrid} {
		opts := DefaultOptions()
		opts.Strategy = strategy
		result, err := svc.Search(context.Background(), "query", nil, opts)
		require.NoError(t, err, "strategy %s", strategy)
		assert.True(t, result.Empty())
		assert.Equal(t, strategy, result.Strategy)
	}
}

func TestDenseSearchRankingAndThreshold(t *testing.T) {
	backend := &vectorBackend{vectors: map[string][]float32{
		"query": {1, 0, 0, 0},
	}}
	svc := newTestSearcher(t, backend)

	candidates := []*types.Chunk{
		embeddedChunk("exact", []float32{1, 0, 0, 0}, nil),      // similarity 1.0
		embeddedChunk("close", []float32{0.9, 0.1, 0, 0}, nil),  // ~0.994
		embeddedChunk("weak", []float32{0.3, 0.95, 0, 0}, nil),  // ~0.30, below threshold
		embeddedChunk("orthogonal", []float32{0, 1, 0, 0}, nil), // 0
	}

	opts := DefaultOptions()
	opts.Strategy = types.StrategyDense
	opts.SimilarityThreshold = 0.5

	result, err := svc.Search(context.Background(), "query", candidates, opts)
	require.NoError(t, err)

	require.Len(t, result.Items, 2)
	assert.Equal(t, "exact", result.Items[0].ID)
	assert.Equal(t, "close", result.Items[1].ID)
	assert.InDelta(t, 1.0, result.Score("exact"), 1e-6)
	assert.NotContains(t, result.Scores, "orthogonal")
}

func TestDenseSearchSkipsUnembedded(t *testing.T) {
	backend := &vectorBackend{vectors: map[string][]float32{"query": {1, 0, 0, 0}}}
	svc := newTestSearcher(t, backend)

	notEmbedded := &types.Chunk{ID: "pending", DocumentID: "d1", Content: "pending"}
	candidates := []*types.Chunk{
		embeddedChunk("ok", []float32{1, 0, 0, 0}, nil),
		notEmbedded,
	}

	opts := DefaultOptions()
	opts.Strategy = types.StrategyDense

	result, err := svc.Search(context.Background(), "query", candidates, opts)
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "ok", result.Items[0].ID)
	assert.Equal(t, 0, result.SkippedMismatched, "unembedded chunks are not mismatches")
}

func TestDenseSearchCountsMismatchedVectors(t *testing.T) {
	backend := &vectorBackend{vectors: map[string][]float32{"query": {1, 0, 0, 0}}}
	svc := newTestSearcher(t, backend)

	wrongModel := embeddedChunk("wrong-model", []float32{1, 0, 0, 0}, nil)
	wrongModel.EmbeddingModel = "other-model"

	wrongDims := embeddedChunk("wrong-dims", []float32{1, 0}, nil)

	candidates := []*types.Chunk{
		embeddedChunk("ok", []float32{1, 0, 0, 0}, nil),
		wrongModel,
		wrongDims,
	}

	opts := DefaultOptions()
	opts.Strategy = types.StrategyDense

	result, err := svc.Search(context.Background(), "query", candidates, opts)
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, 2, result.SkippedMismatched)
}

func TestDenseSearchTieBreakByID(t *testing.T) {
	backend := &vectorBackend{vectors: map[string][]float32{"query": {1, 0, 0, 0}}}
	svc := newTestSearcher(t, backend)

	// Identical vectors score identically; order must fall back to ID
	candidates := []*types.Chunk{
		embeddedChunk("zz", []float32{1, 0, 0, 0}, nil),
		embeddedChunk("aa", []float32{1, 0, 0, 0}, nil),
		embeddedChunk("mm", []float32{1, 0, 0, 0}, nil),
	}

	opts := DefaultOptions()
	opts.Strategy = types.StrategyDense

	result, err := svc.Search(context.Background(), "query", candidates, opts)
	require.NoError(t, err)
	require.Len(t, result.Items, 3)
	assert.Equal(t, "aa", result.Items[0].ID)
	assert.Equal(t, "mm", result.Items[1].ID)
	assert.Equal(t, "zz", result.Items[2].ID)
}

func TestDenseSearchBackendFailurePropagates(t *testing.T) {
	backend := &vectorBackend{failWith: errors.New("backend down")}
	svc := newTestSearcher(t, backend)

	opts := DefaultOptions()
	opts.Strategy = types.StrategyDense

	_, err := svc.Search(context.Background(), "query",
		[]*types.Chunk{embeddedChunk("c1", []float32{1, 0, 0, 0}, nil)}, opts)
	assert.Error(t, err)
}

func TestSparseSearchExcludesZeroOverlap(t *testing.T) {
	svc := newTestSearcher(t, &vectorBackend{})

	candidates := []*types.Chunk{
		embeddedChunk("match", nil, map[string]float64{"cache": 0.6, "key": 0.4}),
		embeddedChunk("unrelated", nil, map[string]float64{"weather": 1.0}),
		embeddedChunk("no-sparse", nil, nil),
	}

	opts := DefaultOptions()
	opts.Strategy = types.StrategySparse

	result, err := svc.Search(context.Background(), "cache key design", candidates, opts)
	require.NoError(t, err)

	require.Len(t, result.Items, 1)
	assert.Equal(t, "match", result.Items[0].ID)
	assert.Greater(t, result.Score("match"), 0.0)
}

func TestSparseSearchRanking(t *testing.T) {
	svc := newTestSearcher(t, &vectorBackend{})

	candidates := []*types.Chunk{
		embeddedChunk("partial", nil, map[string]float64{"cache": 0.2, "other": 0.8}),
		embeddedChunk("strong", nil, map[string]float64{"cache": 0.5, "key": 0.5}),
	}

	opts := DefaultOptions()
	opts.Strategy = types.StrategySparse

	result, err := svc.Search(context.Background(), "cache key", candidates, opts)
	require.NoError(t, err)

	require.Len(t, result.Items, 2)
	assert.Equal(t, "strong", result.Items[0].ID)
	assert.Greater(t, result.Score("strong"), result.Score("partial"))
}

func TestHybridSearchFusesBothLegs(t *testing.T) {
	backend := &vectorBackend{vectors: map[string][]float32{
		"cache design": {1, 0, 0, 0},
	}}
	svc := newTestSearcher(t, backend)

	// "both" ranks second on the dense leg but leads the sparse leg;
	// fusion should place it above the dense-only leader's runner-up.
	candidates := []*types.Chunk{
		embeddedChunk("dense-only", []float32{1, 0, 0, 0}, map[string]float64{"unrelated": 1.0}),
		embeddedChunk("both", []float32{0.9, 0.44, 0, 0}, map[string]float64{"cache": 0.5, "design": 0.5}),
		embeddedChunk("sparse-only", nil, map[string]float64{"cache": 0.3, "design": 0.2}),
	}

	opts := DefaultOptions()
	opts.Strategy = types.StrategyHybrid
	opts.SimilarityThreshold = 0.5

	result, err := svc.Search(context.Background(), "cache design", candidates, opts)
	require.NoError(t, err)

	require.Len(t, result.Items, 3)
	// dense ranks: dense-only=1, both=2; sparse ranks: both=1, sparse-only=2
	// both:        0.7/62 + 0.3/61 = 0.01621
	// dense-only:  0.7/61          = 0.01148
	// sparse-only: 0.3/62          = 0.00484
	assert.Equal(t, "both", result.Items[0].ID)
	assert.Equal(t, "dense-only", result.Items[1].ID)
	assert.Equal(t, "sparse-only", result.Items[2].ID)
}

func TestHybridAlphaExtremes(t *testing.T) {
	backend := &vectorBackend{vectors: map[string][]float32{
		"cache design": {1, 0, 0, 0},
	}}
	svc := newTestSearcher(t, backend)

	candidates := []*types.Chunk{
		embeddedChunk("dense-winner", []float32{1, 0, 0, 0}, map[string]float64{"unrelated": 1.0}),
		embeddedChunk("sparse-winner", []float32{0.8, 0.6, 0, 0}, map[string]float64{"cache": 0.5, "design": 0.5}),
	}

	opts := DefaultOptions()
	opts.Strategy = types.StrategyHybrid
	opts.HybridAlpha = 0.99 // almost pure dense
	result, err := svc.Search(context.Background(), "cache design", candidates, opts)
	require.NoError(t, err)
	require.NotEmpty(t, result.Items)
	assert.Equal(t, "dense-winner", result.Items[0].ID)

	opts.HybridAlpha = 0.01 // almost pure sparse
	result, err = svc.Search(context.Background(), "cache design", candidates, opts)
	require.NoError(t, err)
	require.NotEmpty(t, result.Items)
	assert.Equal(t, "sparse-winner", result.Items[0].ID)
}

func TestSearchTopKTruncation(t *testing.T) {
	backend := &vectorBackend{vectors: map[string][]float32{"query": {1, 0, 0, 0}}}
	svc := newTestSearcher(t, backend)

	var candidates []*types.Chunk
	for _, id := range []string{"c1", "c2", "c3", "c4", "c5"} {
		candidates = append(candidates, embeddedChunk(id, []float32{1, 0, 0, 0}, nil))
	}

	opts := DefaultOptions()
	opts.Strategy = types.StrategyDense
	opts.TopK = 2

	result, err := svc.Search(context.Background(), "query", candidates, opts)
	require.NoError(t, err)
	assert.Len(t, result.Items, 2)
}

func TestSearchAppliesDefaults(t *testing.T) {
	backend := &vectorBackend{vectors: map[string][]float32{"query": {1, 0, 0, 0}}}
	svc := newTestSearcher(t, backend)

	// Zero options fall back to the hybrid default strategy
	result, err := svc.Search(context.Background(), "query",
		[]*types.Chunk{embeddedChunk("c1", []float32{1, 0, 0, 0}, nil)}, Options{})
	require.NoError(t, err)
	assert.Equal(t, types.StrategyHybrid, result.Strategy)
}

func TestSearchDeterministicAcrossRuns(t *testing.T) {
	backend := &vectorBackend{vectors: map[string][]float32{
		"cache design": {1, 0, 0, 0},
	}}
	svc := newTestSearcher(t, backend)

	candidates := []*types.Chunk{
		embeddedChunk("a", []float32{0.9, 0.44, 0, 0}, map[string]float64{"cache": 0.5}),
		embeddedChunk("b", []float32{1, 0, 0, 0}, map[string]float64{"design": 0.5}),
		embeddedChunk("c", nil, map[string]float64{"cache": 0.2, "design": 0.2}),
	}

	opts := DefaultOptions()
	opts.Strategy = types.StrategyHybrid

	first, err := svc.Search(context.Background(), "cache design", candidates, opts)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := svc.Search(context.Background(), "cache design", candidates, opts)
		require.NoError(t, err)
		require.Len(t, again.Items, len(first.Items))
		for j := range first.Items {
			assert.Equal(t, first.Items[j].ID, again.Items[j].ID, "run %d position %d", i, j)
		}
	}
}

func TestOptionsNormalize(t *testing.T) {
	opts := Options{}
	require.NoError(t, opts.normalize())
	assert.Equal(t, types.StrategyHybrid, opts.Strategy)
	assert.Equal(t, DefaultTopK, opts.TopK)
	assert.Equal(t, DefaultSimilarityThreshold, opts.SimilarityThreshold)
	assert.Equal(t, DefaultHybridAlpha, opts.HybridAlpha)
	assert.Equal(t, DefaultRRFK, opts.RRFK)

	clamped := Options{TopK: 500, HybridAlpha: 3}
	require.NoError(t, clamped.normalize())
	assert.Equal(t, MaxTopK, clamped.TopK)
	assert.Equal(t, 1.0, clamped.HybridAlpha)

	bad := Options{Strategy: types.Strategy("nope")}
	assert.Error(t, bad.normalize())
}

func TestFuseRRFBothLegsBeatSingleLeg(t *testing.T) {
	chunks := make([]*types.Chunk, 6)
	for i := range chunks {
		chunks[i] = &types.Chunk{ID: string(rune('a' + i))}
	}

	// "a" leads dense and sits third on sparse; "e" is fifth on dense
	// and absent from sparse entirely.
	dense := []scoredChunk{
		{chunk: chunks[0], score: 0.95},
		{chunk: chunks[1], score: 0.9},
		{chunk: chunks[2], score: 0.85},
		{chunk: chunks[3], score: 0.8},
		{chunk: chunks[4], score: 0.75},
	}
	sparse := []scoredChunk{
		{chunk: chunks[5], score: 0.6},
		{chunk: chunks[3], score: 0.5},
		{chunk: chunks[0], score: 0.4},
	}

	fused := fuseRRF(dense, sparse, 0.7, 60)

	scores := map[string]float64{}
	for _, sc := range fused {
		scores[sc.chunk.ID] = sc.score
	}
	// rank-1 dense + rank-3 sparse must beat rank-5 dense with no sparse
	assert.Greater(t, scores["a"], scores["e"])
	assert.Equal(t, "a", fused[0].chunk.ID)
}

func TestFuseRRFFairnessAcrossAlphas(t *testing.T) {
	both := &types.Chunk{ID: "both"}
	denseOnly := &types.Chunk{ID: "dense-only"}
	sparseOnly := &types.Chunk{ID: "sparse-only"}

	dense := []scoredChunk{{chunk: both, score: 0.9}, {chunk: denseOnly, score: 0.8}}
	sparse := []scoredChunk{{chunk: both, score: 0.5}, {chunk: sparseOnly, score: 0.4}}

	// A chunk leading both legs must never rank below a chunk leading
	// only one, whatever the alpha weighting.
	for _, alpha := range []float64{0.1, 0.3, 0.5, 0.7, 0.9} {
		fused := fuseRRF(dense, sparse, alpha, 60)
		require.NotEmpty(t, fused)
		assert.Equal(t, "both", fused[0].chunk.ID, "alpha=%.1f", alpha)
	}
}

func TestFuseRRFValues(t *testing.T) {
	a := &types.Chunk{ID: "a"}
	b := &types.Chunk{ID: "b"}

	dense := []scoredChunk{{chunk: a, score: 0.9}, {chunk: b, score: 0.8}}
	sparse := []scoredChunk{{chunk: b, score: 0.5}}

	fused := fuseRRF(dense, sparse, 0.7, 60)
	require.Len(t, fused, 2)

	scores := map[string]float64{}
	for _, sc := range fused {
		scores[sc.chunk.ID] = sc.score
	}
	assert.InDelta(t, 0.7/61.0, scores["a"], 1e-9)
	assert.InDelta(t, 0.7/62.0+0.3/61.0, scores["b"], 1e-9)
	assert.Equal(t, "b", fused[0].chunk.ID)
}
