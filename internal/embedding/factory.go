package embedding

import (
	"fmt"
	"os"
	"strings"
)

// Config holds backend configuration
type Config struct {
	Provider  string
	APIKey    string
	OllamaURL string
}

// NewBackendFromEnv creates a backend based on environment variables.
// Priority:
//  1. CW_EMBEDDING_PROVIDER (openai, ollama, local)
//  2. OPENAI_API_KEY present
//  3. Default to local
func NewBackendFromEnv() (Backend, error) {
	provider := os.Getenv(EnvProvider)
	openaiKey := os.Getenv(EnvOpenAIAPIKey)

	// Explicit provider selection
	if provider != "" {
		provider = strings.ToLower(provider)
		switch provider {
		case ProviderOpenAI:
			return NewOpenAIBackend(openaiKey)
		case ProviderOllama:
			return NewOllamaBackend("")
		case ProviderLocal:
			return NewLocalBackend()
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
		}
	}

	// Auto-detect based on available API keys
	if openaiKey != "" {
		return NewOpenAIBackend(openaiKey)
	}

	// Fallback to local backend
	return NewLocalBackend()
}

// NewBackend creates a backend with explicit configuration
func NewBackend(cfg Config) (Backend, error) {
	provider := strings.ToLower(cfg.Provider)
	switch provider {
	case ProviderOpenAI:
		return NewOpenAIBackend(cfg.APIKey)
	case ProviderOllama:
		return NewOllamaBackend(cfg.OllamaURL)
	case ProviderLocal:
		return NewLocalBackend()
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
	}
}

// DetectProvider returns the provider that would be used based on current environment
func DetectProvider() string {
	provider := os.Getenv(EnvProvider)
	if provider != "" {
		return strings.ToLower(provider)
	}

	if os.Getenv(EnvOpenAIAPIKey) != "" {
		return ProviderOpenAI
	}

	return ProviderLocal
}
