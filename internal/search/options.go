package search

import (
	"fmt"
	"time"

	"github.com/anulax1225/chinese-worker-sub002/pkg/types"
)

// Default option values
const (
	DefaultTopK                = 5
	DefaultSimilarityThreshold = 0.3
	DefaultHybridAlpha         = 0.7
	DefaultRRFK                = 60
	DefaultCacheTTL            = time.Hour
	MaxTopK                    = 100

	// Over-fetch factor for hybrid sub-strategies: each leg retrieves
	// up to 3*TopK candidates so the fusion pool is useful.
	hybridOverFetch = 3
)

// Options configures one search invocation. Zero values fall back to
// the documented defaults.
type Options struct {
	// Strategy selects dense, sparse, or hybrid scoring. Default hybrid.
	Strategy types.Strategy

	// TopK bounds the number of returned chunks. Default 5, max 100.
	TopK int

	// SimilarityThreshold discards dense candidates scoring below it.
	// Applies to dense (and the dense leg of hybrid) only; sparse scores
	// are on an incomparable scale. Default 0.3.
	SimilarityThreshold float64

	// HybridAlpha weights the dense contribution in RRF fusion, in [0,1].
	// Default 0.7 (favoring dense).
	HybridAlpha float64

	// RRFK is the rank-smoothing constant in the RRF formula. Default 60.
	RRFK int

	// UseCache enables the per-service query result cache.
	UseCache bool

	// CacheTTL bounds cached entry lifetime. Default 1h.
	CacheTTL time.Duration
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		Strategy:            types.StrategyHybrid,
		TopK:                DefaultTopK,
		SimilarityThreshold: DefaultSimilarityThreshold,
		HybridAlpha:         DefaultHybridAlpha,
		RRFK:                DefaultRRFK,
		CacheTTL:            DefaultCacheTTL,
	}
}

// normalize fills zero fields with defaults and validates the result.
func (o *Options) normalize() error {
	if o.Strategy == "" {
		o.Strategy = types.StrategyHybrid
	}
	if !o.Strategy.Valid() {
		return fmt.Errorf("unsupported search strategy: %s", o.Strategy)
	}

	if o.TopK <= 0 {
		o.TopK = DefaultTopK
	}
	if o.TopK > MaxTopK {
		o.TopK = MaxTopK
	}

	if o.SimilarityThreshold == 0 {
		o.SimilarityThreshold = DefaultSimilarityThreshold
	}

	if o.HybridAlpha == 0 {
		o.HybridAlpha = DefaultHybridAlpha
	}
	if o.HybridAlpha < 0 {
		o.HybridAlpha = 0
	}
	if o.HybridAlpha > 1 {
		o.HybridAlpha = 1
	}

	if o.RRFK <= 0 {
		o.RRFK = DefaultRRFK
	}

	if o.CacheTTL == 0 {
		o.CacheTTL = DefaultCacheTTL
	}

	return nil
}
