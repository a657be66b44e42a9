package embedding

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// ServiceConfig configures the embedding service
type ServiceConfig struct {
	// Model overrides the backend default model when non-empty.
	Model string

	// CacheEnabled controls whether embeddings are memoized. Backend
	// calls still succeed with caching disabled; they are just repeated.
	CacheEnabled bool

	// MemoryCacheSize bounds the in-memory cache tier.
	MemoryCacheSize int
}

// DefaultServiceConfig returns sensible defaults
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		CacheEnabled:    true,
		MemoryCacheSize: 10000,
	}
}

// Service produces dense embeddings through a pluggable backend and
// sparse term-weight vectors through local tokenization, using the
// content-addressed cache transparently on the dense path.
type Service struct {
	backend      Backend
	cache        *Cache
	model        string
	cacheEnabled bool
	log          *logrus.Logger
}

// NewService creates an embedding service. store may be nil to run the
// cache memory-only; log may be nil for the standard logger.
func NewService(backend Backend, store CacheStore, cfg ServiceConfig, log *logrus.Logger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	model := cfg.Model
	if model == "" {
		model = backend.DefaultModel()
	}
	return &Service{
		backend:      backend,
		cache:        NewCache(cfg.MemoryCacheSize, store, log),
		model:        model,
		cacheEnabled: cfg.CacheEnabled,
		log:          log,
	}
}

// Model returns the configured embedding model.
func (s *Service) Model() string {
	return s.model
}

// Dimensions returns the fixed output width of the configured model.
// Callers use it to validate vector shapes before storage.
func (s *Service) Dimensions() int {
	return s.backend.Dimensions(s.model)
}

// Embed returns the dense embedding for one text, serving from cache
// when possible. A backend failure propagates and writes nothing to
// the cache.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	if s.cacheEnabled {
		if vec, ok := s.cache.Get(ctx, text, s.model); ok {
			return vec, nil
		}
	}

	vectors, err := s.backend.GenerateEmbeddings(ctx, []string{text}, s.model)
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: got %d embeddings for 1 text", ErrBackendFailed, len(vectors))
	}

	if s.cacheEnabled {
		s.cache.Put(ctx, text, s.model, vectors[0])
	}

	return vectors[0], nil
}

// EmbedBatch returns one vector per input text, in input order. Cache
// hits are served immediately; misses are sent to the backend together
// in their original relative order, then individually cached. A failed
// backend call returns an error and caches nothing.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ValidateTexts(texts); err != nil {
		return nil, err
	}

	out := make([][]float32, len(texts))

	// Partition into hits and misses, preserving miss order
	var missTexts []string
	var missIdx []int
	for i, text := range texts {
		if s.cacheEnabled {
			if vec, ok := s.cache.Get(ctx, text, s.model); ok {
				out[i] = vec
				continue
			}
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	vectors, err := s.backend.GenerateEmbeddings(ctx, missTexts, s.model)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missTexts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", ErrBackendFailed, len(vectors), len(missTexts))
	}

	for j, vec := range vectors {
		out[missIdx[j]] = vec
		if s.cacheEnabled {
			s.cache.Put(ctx, missTexts[j], s.model, vec)
		}
	}

	return out, nil
}

// GenerateSparseEmbedding computes the normalized term-frequency vector
// for the text. Pure: identical input always yields identical output.
func (s *Service) GenerateSparseEmbedding(text string) map[string]float64 {
	return SparseVector(text)
}

// CacheSize returns the memory-tier entry count, for diagnostics.
func (s *Service) CacheSize() int {
	return s.cache.Size()
}

// Close releases backend resources.
func (s *Service) Close() error {
	return s.backend.Close()
}
