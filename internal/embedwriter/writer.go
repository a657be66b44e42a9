package embedwriter

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/anulax1225/chinese-worker-sub002/internal/embedding"
	"github.com/anulax1225/chinese-worker-sub002/internal/storage"
	"github.com/anulax1225/chinese-worker-sub002/pkg/types"
	"github.com/sirupsen/logrus"
)

// Writer coordinates the embedding backfill pipeline: list pending -> embed -> store
type Writer struct {
	store    storage.Store
	embedder *embedding.Service
	log      *logrus.Logger

	// Worker pool configuration
	workers int
}

// Config contains configuration for the writer
type Config struct {
	Workers   int // Number of concurrent batch writers (default: runtime.NumCPU())
	BatchSize int // Chunks embedded per backend call (default: 32, capped at embedding.MaxBatchSize)
	MaxChunks int // Upper bound per Run invocation, 0 for the store default page
}

// Statistics contains statistics about one backfill run
type Statistics struct {
	ChunksEmbedded int
	ChunksSkipped  int
	ChunksFailed   int
	Duration       time.Duration
	ErrorMessages  []string
}

// New creates a new Writer instance
func New(store storage.Store, embedder *embedding.Service, log *logrus.Logger) *Writer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Writer{
		store:    store,
		embedder: embedder,
		log:      log,
		workers:  runtime.NumCPU(),
	}
}

// Run embeds every chunk that has content but no stored vectors, writing
// dense and sparse vectors back in one idempotent update per chunk. A
// chunk that fails to embed is counted and reported but does not stop
// the run; only listing failures and context cancellation abort it.
func (w *Writer) Run(ctx context.Context, config *Config) (*Statistics, error) {
	if config == nil {
		config = &Config{}
	}

	workers := config.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	w.workers = workers

	batchSize := config.BatchSize
	if batchSize <= 0 {
		batchSize = 32
	}
	if batchSize > embedding.MaxBatchSize {
		batchSize = embedding.MaxBatchSize
	}

	startTime := time.Now()
	stats := &Statistics{
		ErrorMessages: make([]string, 0),
	}

	pending, err := w.store.ListChunksNeedingEmbedding(ctx, config.MaxChunks)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending chunks: %w", err)
	}

	if err := w.embedChunks(ctx, pending, batchSize, stats); err != nil {
		return nil, err
	}

	stats.Duration = time.Since(startTime)

	w.log.WithFields(logrus.Fields{
		"embedded": stats.ChunksEmbedded,
		"skipped":  stats.ChunksSkipped,
		"failed":   stats.ChunksFailed,
		"duration": stats.Duration,
	}).Info("embedding backfill complete")

	return stats, nil
}

// embedChunks processes pending chunks in concurrent batches
func (w *Writer) embedChunks(ctx context.Context, pending []*types.Chunk, batchSize int, stats *Statistics) error {
	var (
		embedded int32
		skipped  int32
		failed   int32
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.workers)
	var mu sync.Mutex // Protect stats.ErrorMessages

	for i := 0; i < len(pending); i += batchSize {
		end := i + batchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[i:end]

		g.Go(func() error {
			return w.embedBatch(gctx, batch, &embedded, &skipped, &failed, &mu, stats)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	stats.ChunksEmbedded = int(embedded)
	stats.ChunksSkipped = int(skipped)
	stats.ChunksFailed = int(failed)

	return nil
}

// embedBatch embeds one batch of chunks with a single backend call and
// writes the vectors back chunk by chunk.
func (w *Writer) embedBatch(ctx context.Context, batch []*types.Chunk,
	embedded, skipped, failed *int32, mu *sync.Mutex, stats *Statistics) error {

	// Drop chunks with nothing to embed; empty content can never
	// produce a dense vector.
	texts := make([]string, 0, len(batch))
	chunks := make([]*types.Chunk, 0, len(batch))
	for _, chunk := range batch {
		if chunk.Content == "" {
			atomic.AddInt32(skipped, 1)
			continue
		}
		texts = append(texts, chunk.Content)
		chunks = append(chunks, chunk)
	}
	if len(chunks) == 0 {
		return nil
	}

	vectors, err := w.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		// A failed backend call loses the whole batch, not the run.
		atomic.AddInt32(failed, int32(len(chunks)))
		mu.Lock()
		stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("batch of %d: %v", len(chunks), err))
		mu.Unlock()
		w.log.WithError(err).WithField("batch_size", len(chunks)).Warn("embedding batch failed")
		return nil
	}

	model := w.embedder.Model()
	for i, chunk := range chunks {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		sparse := w.embedder.GenerateSparseEmbedding(chunk.Content)
		if err := w.store.SetChunkEmbedding(ctx, chunk.ID, vectors[i], sparse, model); err != nil {
			atomic.AddInt32(failed, 1)
			mu.Lock()
			stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", chunk.ID, err))
			mu.Unlock()
			continue
		}
		atomic.AddInt32(embedded, 1)
	}

	return nil
}
