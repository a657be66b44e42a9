package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestChunkNeedsEmbedding(t *testing.T) {
	chunk := &Chunk{ID: "c1", DocumentID: "d1", Content: "hello"}
	assert.True(t, chunk.NeedsEmbedding())

	now := time.Now()
	chunk.EmbeddingGeneratedAt = &now
	assert.False(t, chunk.NeedsEmbedding())
}

func TestChunkDenseEligible(t *testing.T) {
	tests := []struct {
		name     string
		vector   []float32
		model    string
		eligible bool
	}{
		{"matching model and dimension", []float32{1, 2, 3}, "model-a", true},
		{"nil vector", nil, "model-a", false},
		{"wrong model", []float32{1, 2, 3}, "model-b", false},
		{"wrong dimension", []float32{1, 2}, "model-a", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunk := &Chunk{
				ID:             "c1",
				DenseVector:    tt.vector,
				EmbeddingModel: tt.model,
			}
			assert.Equal(t, tt.eligible, chunk.DenseEligible("model-a", 3))
		})
	}
}

func TestChunkSparseEligible(t *testing.T) {
	chunk := &Chunk{ID: "c1"}
	assert.False(t, chunk.SparseEligible())

	chunk.SparseVector = map[string]float64{}
	assert.False(t, chunk.SparseEligible())

	chunk.SparseVector = map[string]float64{"term": 0.5}
	assert.True(t, chunk.SparseEligible())
}

func TestChunkValidate(t *testing.T) {
	valid := &Chunk{ID: "c1", DocumentID: "d1", Content: "text", ChunkIndex: 0}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name  string
		chunk Chunk
		want  error
	}{
		{"missing ID", Chunk{DocumentID: "d1", Content: "x"}, ErrInvalidChunkID},
		{"missing content", Chunk{ID: "c1", DocumentID: "d1"}, ErrEmptyContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.chunk.Validate(), tt.want)
		})
	}

	noDoc := Chunk{ID: "c1", Content: "x"}
	assert.Error(t, noDoc.Validate())

	negative := Chunk{ID: "c1", DocumentID: "d1", Content: "x", ChunkIndex: -1}
	assert.Error(t, negative.Validate())
}

func TestChunkEstimateTokens(t *testing.T) {
	chunk := &Chunk{Content: "12345678"}
	assert.Equal(t, 2, chunk.EstimateTokens())

	empty := &Chunk{}
	assert.Equal(t, 0, empty.EstimateTokens())
}

func TestChunkExcerpt(t *testing.T) {
	short := &Chunk{Content: "short text"}
	assert.Equal(t, "short text", short.Excerpt(120))

	long := &Chunk{Content: "abcdefghij"}
	assert.Equal(t, "abcde…", long.Excerpt(5))

	// Rune-safe truncation must not split multi-byte characters
	unicode := &Chunk{Content: "héllo wörld"}
	assert.Equal(t, "héllo…", unicode.Excerpt(5))
}

func TestStrategyValid(t *testing.T) {
	assert.True(t, StrategyDense.Valid())
	assert.True(t, StrategySparse.Valid())
	assert.True(t, StrategyHybrid.Valid())
	assert.False(t, Strategy("semantic").Valid())
	assert.False(t, Strategy("").Valid())
}

func TestSearchResultScore(t *testing.T) {
	result := &SearchResult{
		Items:  []*Chunk{{ID: "c1"}},
		Scores: map[string]float64{"c1": 0.9},
	}
	assert.Equal(t, 0.9, result.Score("c1"))
	assert.Equal(t, 0.0, result.Score("missing"))
	assert.False(t, result.Empty())

	empty := &SearchResult{}
	assert.True(t, empty.Empty())
}
