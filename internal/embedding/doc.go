// Package embedding generates dense and sparse vectors for retrieval.
//
// Dense embeddings come from a pluggable Backend (OpenAI, Ollama, or a
// deterministic local fallback) and are memoized in a content-addressed
// cache keyed by sha256(text + "::" + model). Sparse vectors are computed
// locally by tokenizing, dropping stop words, and normalizing term
// frequency.
//
// # Basic Usage
//
//	backend, err := embedding.NewBackendFromEnv()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
//	svc := embedding.NewService(backend, store, embedding.DefaultServiceConfig(), nil)
//
//	vec, err := svc.Embed(ctx, "penguin migration patterns")
//	sparse := svc.GenerateSparseEmbedding("penguin migration patterns")
//
// # Caching
//
// Embed and EmbedBatch consult the cache before the backend. The second
// call for the same (text, model) never touches the network:
//
//	_, _ = svc.Embed(ctx, "same text") // backend call
//	_, _ = svc.Embed(ctx, "same text") // cache hit
//
// A failed backend call writes nothing to the cache, so no partial or
// garbage entries can be served later.
//
// # Error Contract
//
// Backend failures wrap ErrBackendFailed; deadline overruns wrap
// ErrBackendTimeout so callers can distinguish the two. Providers retry
// transient failures with exponential backoff before giving up.
package embedding
