package storage

import (
	"context"
	"time"

	"github.com/anulax1225/chinese-worker-sub002/pkg/types"
)

// Store defines the persistence surface the retrieval core depends on:
// chunks and their vectors, the embedding cache, the retrieval audit
// trail, and the document/conversation read-side used for candidate
// scoping. Every operation is a single read or a single idempotent
// write; no multi-step transaction spans the pipeline.
type Store interface {
	// Document operations
	UpsertDocument(ctx context.Context, doc *types.Document) error
	GetDocument(ctx context.Context, id string) (*types.Document, error)
	ListDocuments(ctx context.Context, ids []string) ([]*types.Document, error)

	// Conversation read-side
	UpsertConversation(ctx context.Context, conv *types.Conversation) error
	GetConversation(ctx context.Context, id string) (*types.Conversation, error)

	// Chunk operations
	UpsertChunk(ctx context.Context, chunk *types.Chunk) error
	GetChunk(ctx context.Context, id string) (*types.Chunk, error)
	ListChunksByDocument(ctx context.Context, documentID string) ([]*types.Chunk, error)
	ListChunksByDocuments(ctx context.Context, documentIDs []string) ([]*types.Chunk, error)
	ListChunksNeedingEmbedding(ctx context.Context, limit int) ([]*types.Chunk, error)
	SetChunkEmbedding(ctx context.Context, chunkID string, dense []float32, sparse map[string]float64, model string) error

	// TouchChunks bumps access counters for retrieved chunks. Best-effort
	// analytics; callers swallow failures.
	TouchChunks(ctx context.Context, chunkIDs []string) error

	// Embedding cache operations
	GetCachedEmbedding(ctx context.Context, contentHash string) ([]float32, bool, error)
	PutCachedEmbedding(ctx context.Context, contentHash, model string, vector []float32) error

	// Retrieval log operations (append-only)
	InsertRetrievalLog(ctx context.Context, entry *RetrievalLog) error
	ListRetrievalLogs(ctx context.Context, conversationID string, limit int) ([]*RetrievalLog, error)

	// Database operations
	Close() error
}

// RetrievalLog is one row of the append-only retrieval audit trail, the
// only durable artifact the pipeline itself produces.
type RetrievalLog struct {
	ID                string
	ConversationID    *string // Nullable
	UserID            *string // Nullable
	Query             string
	RetrievedChunkIDs []string // Ordered, best first
	Strategy          string
	Scores            map[string]float64
	ExecutionTimeMs   int64
	ChunksFound       int
	AverageScore      float64
	CreatedAt         time.Time
}
