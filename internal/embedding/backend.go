package embedding

import (
	"context"
	"errors"
	"fmt"
)

// Common errors
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrEmptyText         = errors.New("text cannot be empty")
	ErrBatchTooLarge     = errors.New("batch size exceeds limit")
	ErrBackendFailed     = errors.New("embedding backend failed")
	ErrBackendTimeout    = errors.New("embedding backend timed out")
	ErrNoBackendEnabled  = errors.New("no embedding backend configured")
	ErrUnknownProvider   = errors.New("unknown embedding provider")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Backend is the abstract embedding capability. Implementations call a
// remote model API (or a local model) and are treated as black boxes by
// the rest of the retrieval core: the stated timeout and error contract
// is all callers rely on.
type Backend interface {
	// GenerateEmbeddings produces one vector per input text, in input
	// order. A failed call returns an error wrapping ErrBackendFailed
	// (or ErrBackendTimeout when the deadline was exceeded) and no
	// partial results.
	GenerateEmbeddings(ctx context.Context, texts []string, model string) ([][]float32, error)

	// Dimensions returns the fixed output width for the given model
	// (or the backend default when model is empty).
	Dimensions(model string) int

	// Provider returns the backend name.
	Provider() string

	// DefaultModel returns the model used when a request does not name one.
	DefaultModel() string

	// Close releases any resources held by the backend.
	Close() error
}

// ValidateTexts checks a batch of texts before sending it to a backend.
func ValidateTexts(texts []string) error {
	if len(texts) == 0 {
		return fmt.Errorf("%w: no texts provided", ErrInvalidInput)
	}

	if len(texts) > MaxBatchSize {
		return fmt.Errorf("%w: max %d texts allowed", ErrBatchTooLarge, MaxBatchSize)
	}

	for i, text := range texts {
		if text == "" {
			return fmt.Errorf("%w: text at index %d is empty", ErrInvalidInput, i)
		}
	}

	return nil
}
