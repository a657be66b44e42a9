// Command ragquery is a manual harness for the retrieval pipeline. It
// opens (or seeds) a SQLite database, backfills embeddings with the
// configured backend, runs one query end to end, and prints the
// assembled context, citations, and retrieval statistics.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/anulax1225/chinese-worker-sub002/internal/embedding"
	"github.com/anulax1225/chinese-worker-sub002/internal/embedwriter"
	"github.com/anulax1225/chinese-worker-sub002/internal/rag"
	"github.com/anulax1225/chinese-worker-sub002/internal/ragcontext"
	"github.com/anulax1225/chinese-worker-sub002/internal/search"
	"github.com/anulax1225/chinese-worker-sub002/internal/storage"
	"github.com/anulax1225/chinese-worker-sub002/pkg/types"
)

func main() {
	defaultDB := os.Getenv("CW_DB_PATH")
	if defaultDB == "" {
		defaultDB = ":memory:"
	}

	var (
		dbPath   = flag.String("db", defaultDB, "SQLite database path")
		query    = flag.String("query", "how does the embedding cache work", "query to run")
		strategy = flag.String("strategy", "hybrid", "search strategy: dense, sparse, or hybrid")
		topK     = flag.Int("topk", 5, "number of chunks to retrieve")
		seed     = flag.Bool("seed", true, "seed sample documents before querying")
		verbose  = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	logger := logrus.New()
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	ctx := context.Background()

	store, err := storage.NewSQLiteStore(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer func() { _ = store.Close() }()

	backend, err := embedding.NewBackendFromEnv()
	if err != nil {
		log.Fatalf("Failed to create embedding backend: %v", err)
	}
	embedder := embedding.NewService(backend, store, embedding.DefaultServiceConfig(), logger)
	defer func() { _ = embedder.Close() }()

	fmt.Printf("Embedding provider: %s (model %s, %d dims)\n",
		backend.Provider(), embedder.Model(), embedder.Dimensions())

	var scope rag.Scope
	if *seed {
		scope, err = seedSampleCorpus(ctx, store)
		if err != nil {
			log.Fatalf("Failed to seed corpus: %v", err)
		}
	} else {
		ids := flag.Args()
		if len(ids) == 0 {
			log.Fatalf("With -seed=false, pass document IDs as arguments")
		}
		scope = rag.ScopeForDocuments(ids)
	}

	// Backfill vectors for anything not yet embedded
	writer := embedwriter.New(store, embedder, logger)
	stats, err := writer.Run(ctx, &embedwriter.Config{Workers: 2, BatchSize: 16})
	if err != nil {
		log.Fatalf("Failed to backfill embeddings: %v", err)
	}
	fmt.Printf("Backfill: %d embedded, %d skipped, %d failed in %v\n",
		stats.ChunksEmbedded, stats.ChunksSkipped, stats.ChunksFailed, stats.Duration)
	for _, msg := range stats.ErrorMessages {
		fmt.Printf("  - %s\n", msg)
	}

	searcher := search.New(embedder, search.DefaultOptions(), logger)
	builder := ragcontext.NewBuilder(store, logger)
	pipeline := rag.New(store, searcher, builder, rag.ConfigFromEnv(), logger)

	opts := search.Options{
		Strategy: types.Strategy(*strategy),
		TopK:     *topK,
	}

	result, err := pipeline.Execute(ctx, *query, scope, opts)
	if err != nil {
		log.Fatalf("Pipeline failed: %v", err)
	}

	fmt.Printf("\nQuery: %s\n", *query)
	fmt.Printf("Outcome: %s\n", result.Outcome)
	fmt.Printf("Strategy: %s\n", result.Strategy)
	fmt.Printf("Chunks retrieved: %d (skipped mismatched: %d)\n",
		result.ChunksRetrieved, result.SkippedMismatched)
	fmt.Printf("Duration: %v\n", result.Duration)

	if result.Context != "" {
		fmt.Printf("\n%s\n", result.Context)
	}
	if len(result.Citations) > 0 {
		fmt.Println("Citations:")
		for _, c := range result.Citations {
			fmt.Printf("  [%d] %s (%s)\n", c.Label, c.DocumentTitle, c.ChunkID)
		}
	}
}

// seedSampleCorpus loads a small fixed corpus and returns a scope
// covering all of its documents.
func seedSampleCorpus(ctx context.Context, store storage.Store) (rag.Scope, error) {
	docs := []struct {
		title  string
		chunks []string
	}{
		{
			title: "Embedding Cache Design",
			chunks: []string{
				"The embedding cache is content addressed: the key is a SHA-256 digest over the text and model name, so identical text under the same model always maps to the same entry.",
				"Cache writes are idempotent. Concurrent writers racing on the same key both succeed and the stored vector is unchanged.",
			},
		},
		{
			title: "Search Strategies",
			chunks: []string{
				"Dense search ranks candidates by cosine similarity between the query embedding and each chunk vector, filtered by a similarity threshold.",
				"Sparse search scores the overlap of normalized term frequencies. Chunks sharing no terms with the query are excluded outright.",
				"Hybrid search fuses dense and sparse rankings with reciprocal rank fusion, weighting the dense leg by alpha.",
			},
		},
	}

	var ids []string
	for _, d := range docs {
		doc := &types.Document{ID: uuid.NewString(), Title: d.title}
		if err := store.UpsertDocument(ctx, doc); err != nil {
			return rag.Scope{}, err
		}
		ids = append(ids, doc.ID)

		for i, content := range d.chunks {
			chunk := &types.Chunk{
				ID:           uuid.NewString(),
				DocumentID:   doc.ID,
				ChunkIndex:   i,
				Content:      content,
				SectionTitle: fmt.Sprintf("%s, part %d", d.title, i+1),
				TokenCount:   len(content) / 4,
			}
			if err := store.UpsertChunk(ctx, chunk); err != nil {
				return rag.Scope{}, err
			}
		}
	}

	fmt.Printf("Seeded %d documents (%s)\n", len(ids), strings.Join(ids, ", "))
	return rag.ScopeForDocuments(ids), nil
}
