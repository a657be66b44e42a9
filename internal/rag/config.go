package rag

import (
	"os"
	"strconv"

	"github.com/anulax1225/chinese-worker-sub002/internal/ragcontext"
	"github.com/anulax1225/chinese-worker-sub002/internal/search"
)

// Environment variables
const (
	EnvRAGEnabled = "CW_RAG_ENABLED"
)

// Config holds pipeline configuration.
type Config struct {
	// Enabled gates the whole pipeline. Disabled is an expected
	// steady-state surfaced as a structured result, not an error.
	Enabled bool

	// Search holds default scoring options, overridable per invocation.
	Search search.Options

	// Context holds default assembly options.
	Context ragcontext.Options
}

// DefaultConfig returns the documented defaults with retrieval enabled.
func DefaultConfig() Config {
	return Config{
		Enabled: true,
		Search:  search.DefaultOptions(),
		Context: ragcontext.DefaultOptions(),
	}
}

// ConfigFromEnv layers environment overrides onto the defaults.
// CW_RAG_ENABLED=false switches the pipeline off.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	if v := os.Getenv(EnvRAGEnabled); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Enabled = enabled
		}
	}
	return cfg
}
