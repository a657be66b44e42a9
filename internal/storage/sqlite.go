package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anulax1225/chinese-worker-sub002/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Apply migrations
	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Document operations

func (s *SQLiteStore) UpsertDocument(ctx context.Context, doc *types.Document) error {
	query := `
		INSERT INTO documents (id, title, filename, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			filename = excluded.filename
	`
	now := time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	_, err := s.db.ExecContext(ctx, query, doc.ID, doc.Title, doc.Filename, doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetDocument(ctx context.Context, id string) (*types.Document, error) {
	query := `SELECT id, title, filename, created_at FROM documents WHERE id = ?`
	var doc types.Document
	var filename sql.NullString
	err := s.db.QueryRowContext(ctx, query, id).Scan(&doc.ID, &doc.Title, &filename, &doc.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	doc.Filename = filename.String
	return &doc, nil
}

func (s *SQLiteStore) ListDocuments(ctx context.Context, ids []string) ([]*types.Document, error) {
	if len(ids) == 0 {
		return []*types.Document{}, nil
	}

	query := `SELECT id, title, filename, created_at FROM documents WHERE id IN (` +
		placeholders(len(ids)) + `) ORDER BY id`
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var docs []*types.Document
	for rows.Next() {
		var doc types.Document
		var filename sql.NullString
		if err := rows.Scan(&doc.ID, &doc.Title, &filename, &doc.CreatedAt); err != nil {
			return nil, err
		}
		doc.Filename = filename.String
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}

// Conversation operations

func (s *SQLiteStore) UpsertConversation(ctx context.Context, conv *types.Conversation) error {
	query := `
		INSERT INTO conversations (id, user_id)
		VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET user_id = excluded.user_id
	`
	if _, err := s.db.ExecContext(ctx, query, conv.ID, conv.UserID); err != nil {
		return fmt.Errorf("failed to upsert conversation: %w", err)
	}

	// Replace document attachments
	if _, err := s.db.ExecContext(ctx, `DELETE FROM conversation_documents WHERE conversation_id = ?`, conv.ID); err != nil {
		return fmt.Errorf("failed to clear conversation documents: %w", err)
	}
	for _, docID := range conv.DocumentIDs {
		_, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO conversation_documents (conversation_id, document_id) VALUES (?, ?)`,
			conv.ID, docID)
		if err != nil {
			return fmt.Errorf("failed to attach document %s: %w", docID, err)
		}
	}
	return nil
}

func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*types.Conversation, error) {
	var conv types.Conversation
	var userID sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT id, user_id FROM conversations WHERE id = ?`, id).
		Scan(&conv.ID, &userID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	conv.UserID = userID.String

	rows, err := s.db.QueryContext(ctx,
		`SELECT document_id FROM conversation_documents WHERE conversation_id = ? ORDER BY document_id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversation documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var docID string
		if err := rows.Scan(&docID); err != nil {
			return nil, err
		}
		conv.DocumentIDs = append(conv.DocumentIDs, docID)
	}
	return &conv, rows.Err()
}

// Chunk operations

const chunkColumns = `id, document_id, chunk_index, content, token_count, section_title,
	dense_vector, sparse_vector, embedding_model, embedding_generated_at,
	access_count, last_accessed_at, created_at, updated_at`

func (s *SQLiteStore) UpsertChunk(ctx context.Context, chunk *types.Chunk) error {
	if err := chunk.Validate(); err != nil {
		return err
	}

	sparseBlob, err := serializeSparse(chunk.SparseVector)
	if err != nil {
		return err
	}
	var denseBlob []byte
	if chunk.DenseVector != nil {
		denseBlob = serializeVector(chunk.DenseVector)
	}

	query := `
		INSERT INTO chunks (id, document_id, chunk_index, content, token_count, section_title,
			dense_vector, sparse_vector, embedding_model, embedding_generated_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			token_count = excluded.token_count,
			section_title = excluded.section_title,
			dense_vector = excluded.dense_vector,
			sparse_vector = excluded.sparse_vector,
			embedding_model = excluded.embedding_model,
			embedding_generated_at = excluded.embedding_generated_at,
			updated_at = excluded.updated_at
	`
	now := time.Now()
	if chunk.CreatedAt.IsZero() {
		chunk.CreatedAt = now
	}
	chunk.UpdatedAt = now

	_, err = s.db.ExecContext(ctx, query,
		chunk.ID, chunk.DocumentID, chunk.ChunkIndex, chunk.Content, chunk.TokenCount,
		nullString(chunk.SectionTitle), denseBlob, nullBytes(sparseBlob),
		nullString(chunk.EmbeddingModel), chunk.EmbeddingGeneratedAt,
		chunk.CreatedAt, chunk.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert chunk: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetChunk(ctx context.Context, id string) (*types.Chunk, error) {
	query := `SELECT ` + chunkColumns + ` FROM chunks WHERE id = ?`
	row := s.db.QueryRowContext(ctx, query, id)
	chunk, err := scanChunk(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return chunk, err
}

func (s *SQLiteStore) ListChunksByDocument(ctx context.Context, documentID string) ([]*types.Chunk, error) {
	return s.ListChunksByDocuments(ctx, []string{documentID})
}

func (s *SQLiteStore) ListChunksByDocuments(ctx context.Context, documentIDs []string) ([]*types.Chunk, error) {
	if len(documentIDs) == 0 {
		return []*types.Chunk{}, nil
	}

	query := `SELECT ` + chunkColumns + ` FROM chunks WHERE document_id IN (` +
		placeholders(len(documentIDs)) + `) ORDER BY document_id, chunk_index`
	args := make([]interface{}, len(documentIDs))
	for i, id := range documentIDs {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectChunks(rows)
}

func (s *SQLiteStore) ListChunksNeedingEmbedding(ctx context.Context, limit int) ([]*types.Chunk, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + chunkColumns + ` FROM chunks
		WHERE embedding_generated_at IS NULL
		ORDER BY created_at, id LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectChunks(rows)
}

func (s *SQLiteStore) SetChunkEmbedding(ctx context.Context, chunkID string, dense []float32, sparse map[string]float64, model string) error {
	sparseBlob, err := serializeSparse(sparse)
	if err != nil {
		return err
	}

	query := `
		UPDATE chunks
		SET dense_vector = ?, sparse_vector = ?, embedding_model = ?,
		    embedding_generated_at = ?, updated_at = ?
		WHERE id = ?
	`
	now := time.Now()
	result, err := s.db.ExecContext(ctx, query,
		serializeVector(dense), nullBytes(sparseBlob), model, now, now, chunkID)
	if err != nil {
		return fmt.Errorf("failed to set chunk embedding: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) TouchChunks(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}

	query := `
		UPDATE chunks
		SET access_count = access_count + 1, last_accessed_at = ?
		WHERE id IN (` + placeholders(len(chunkIDs)) + `)`
	args := make([]interface{}, 0, len(chunkIDs)+1)
	args = append(args, time.Now())
	for _, id := range chunkIDs {
		args = append(args, id)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to touch chunks: %w", err)
	}
	return nil
}

// Embedding cache operations

func (s *SQLiteStore) GetCachedEmbedding(ctx context.Context, contentHash string) ([]float32, bool, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT embedding_vector FROM embedding_cache WHERE content_hash = ?`, contentHash).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read embedding cache: %w", err)
	}
	return deserializeVector(blob), true, nil
}

func (s *SQLiteStore) PutCachedEmbedding(ctx context.Context, contentHash, model string, vector []float32) error {
	// Append-only per key: concurrent puts race safely because the value
	// for a given key is deterministic.
	query := `
		INSERT OR IGNORE INTO embedding_cache (content_hash, embedding_model, embedding_vector)
		VALUES (?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, contentHash, model, serializeVector(vector)); err != nil {
		return fmt.Errorf("failed to write embedding cache: %w", err)
	}
	return nil
}

// Retrieval log operations

func (s *SQLiteStore) InsertRetrievalLog(ctx context.Context, entry *RetrievalLog) error {
	chunkIDs, err := serializeStringList(entry.RetrievedChunkIDs)
	if err != nil {
		return err
	}
	scores, err := serializeSparse(entry.Scores)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO retrieval_logs (id, conversation_id, user_id, query, retrieved_chunk_ids,
			strategy, scores, execution_time_ms, chunks_found, average_score, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	_, err = s.db.ExecContext(ctx, query,
		entry.ID, entry.ConversationID, entry.UserID, entry.Query, chunkIDs,
		entry.Strategy, string(scores), entry.ExecutionTimeMs, entry.ChunksFound,
		entry.AverageScore, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert retrieval log: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListRetrievalLogs(ctx context.Context, conversationID string, limit int) ([]*RetrievalLog, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, conversation_id, user_id, query, retrieved_chunk_ids,
		       strategy, scores, execution_time_ms, chunks_found, average_score, created_at
		FROM retrieval_logs
		WHERE conversation_id = ?
		ORDER BY created_at DESC LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list retrieval logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var logs []*RetrievalLog
	for rows.Next() {
		var entry RetrievalLog
		var convID, userID sql.NullString
		var chunkIDs, scores string
		if err := rows.Scan(&entry.ID, &convID, &userID, &entry.Query, &chunkIDs,
			&entry.Strategy, &scores, &entry.ExecutionTimeMs, &entry.ChunksFound,
			&entry.AverageScore, &entry.CreatedAt); err != nil {
			return nil, err
		}
		if convID.Valid {
			entry.ConversationID = &convID.String
		}
		if userID.Valid {
			entry.UserID = &userID.String
		}
		if entry.RetrievedChunkIDs, err = deserializeStringList(chunkIDs); err != nil {
			return nil, err
		}
		if entry.Scores, err = deserializeSparse([]byte(scores)); err != nil {
			return nil, err
		}
		logs = append(logs, &entry)
	}
	return logs, rows.Err()
}

// Scan helpers

// rowScanner abstracts *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanChunk(row rowScanner) (*types.Chunk, error) {
	var chunk types.Chunk
	var sectionTitle, embeddingModel sql.NullString
	var denseBlob, sparseBlob []byte
	var generatedAt, lastAccessedAt sql.NullTime

	err := row.Scan(
		&chunk.ID, &chunk.DocumentID, &chunk.ChunkIndex, &chunk.Content, &chunk.TokenCount,
		&sectionTitle, &denseBlob, &sparseBlob, &embeddingModel, &generatedAt,
		&chunk.AccessCount, &lastAccessedAt, &chunk.CreatedAt, &chunk.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	chunk.SectionTitle = sectionTitle.String
	chunk.EmbeddingModel = embeddingModel.String
	if denseBlob != nil {
		chunk.DenseVector = deserializeVector(denseBlob)
	}
	if chunk.SparseVector, err = deserializeSparse(sparseBlob); err != nil {
		return nil, err
	}
	if generatedAt.Valid {
		chunk.EmbeddingGeneratedAt = &generatedAt.Time
	}
	if lastAccessedAt.Valid {
		chunk.LastAccessedAt = &lastAccessedAt.Time
	}
	return &chunk, nil
}

func collectChunks(rows *sql.Rows) ([]*types.Chunk, error) {
	var chunks []*types.Chunk
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullBytes(b []byte) interface{} {
	if b == nil {
		return nil
	}
	return b
}
