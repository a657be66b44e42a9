// Package types provides shared type definitions for the retrieval core.
//
// This package defines the domain types flowing through the RAG pipeline:
// chunks, documents, conversations, search results, and citations.
//
// # Core Types
//
// Chunk represents an indexed excerpt of a user-attached document:
//
//	chunk := &types.Chunk{
//	    ID:         uuid.NewString(),
//	    DocumentID: doc.ID,
//	    ChunkIndex: 0,
//	    Content:    "Emperor penguins migrate up to 200km...",
//	    TokenCount: 52,
//	}
//
// A chunk is eligible for dense search only once its DenseVector has been
// populated by the embedding writer and its EmbeddingModel matches the
// currently configured model:
//
//	if chunk.DenseEligible("text-embedding-3-small", 1536) {
//	    // participates in cosine-similarity scoring
//	}
//
// Sparse eligibility is independent of dense embedding state.
//
// # Search Results
//
// SearchResult carries the ranked chunks for one search invocation along
// with per-chunk scores. Ordering is deterministic: descending by score,
// ties broken by chunk ID ascending.
//
// Citation ties a numbered excerpt in an assembled context block back to
// its source chunk and document.
package types
