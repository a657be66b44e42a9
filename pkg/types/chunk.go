package types

import (
	"errors"
	"time"
)

// Chunk represents an indexed excerpt of a source document. Chunks are
// created during ingestion and read-only on the retrieval path; the
// embedding writer is the only component that populates the vector fields.
type Chunk struct {
	// Identification
	ID         string
	DocumentID string
	ChunkIndex int // 0-based position within the document

	// Content
	Content      string
	TokenCount   int
	SectionTitle string // Optional

	// Embedding state
	DenseVector          []float32          // Nil until embedded
	SparseVector         map[string]float64 // Nil until sparse terms computed
	EmbeddingModel       string             // Model that produced DenseVector
	EmbeddingGeneratedAt *time.Time         // Nil means "needs embedding"

	// Access tracking (best-effort analytics, never read by retrieval)
	AccessCount    int
	LastAccessedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NeedsEmbedding reports whether the embedding writer should process this chunk.
func (c *Chunk) NeedsEmbedding() bool {
	return c.EmbeddingGeneratedAt == nil
}

// DenseEligible reports whether the chunk can participate in dense search
// for the given model and dimension. A stored vector whose dimension does
// not match the configured model is treated as ineligible, not as an error.
func (c *Chunk) DenseEligible(model string, dimension int) bool {
	return c.DenseVector != nil &&
		c.EmbeddingModel == model &&
		len(c.DenseVector) == dimension
}

// SparseEligible reports whether the chunk can participate in sparse search.
// Independent of dense embedding state.
func (c *Chunk) SparseEligible() bool {
	return len(c.SparseVector) > 0
}

// Validate checks structural invariants on an ingested chunk.
func (c *Chunk) Validate() error {
	if c.ID == "" {
		return ErrInvalidChunkID
	}
	if c.DocumentID == "" {
		return errors.New("chunk document ID is required")
	}
	if c.Content == "" {
		return ErrEmptyContent
	}
	if c.ChunkIndex < 0 {
		return errors.New("chunk index must be >= 0")
	}
	return nil
}

// EstimateTokens estimates the token count of the chunk content.
// Uses a simple heuristic: characters / 4.
func (c *Chunk) EstimateTokens() int {
	return len(c.Content) / 4
}

// Excerpt returns the first max runes of the chunk content, with a
// trailing ellipsis when truncated. Used for citation previews.
func (c *Chunk) Excerpt(max int) string {
	runes := []rune(c.Content)
	if len(runes) <= max {
		return c.Content
	}
	return string(runes[:max]) + "…"
}
