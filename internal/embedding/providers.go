package embedding

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Provider configuration
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderLocal  = "local"

	// Default models
	DefaultOpenAIModel = "text-embedding-3-small"
	DefaultOllamaModel = "nomic-embed-text"

	// Dimensions
	OpenAIDimension = 1536
	OllamaDimension = 768
	LocalDimension  = 384

	// Endpoints
	DefaultOllamaURL = "http://localhost:11434"

	// Batch limits
	MaxBatchSize = 100

	// Retry configuration
	MaxRetries        = 3
	InitialBackoffMs  = 100
	MaxBackoffMs      = 5000
	BackoffMultiplier = 2.0
)

// Environment variables
const (
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
	EnvProvider     = "CW_EMBEDDING_PROVIDER"
	EnvOllamaURL    = "CW_OLLAMA_URL"
)

// classifyBackendErr maps transport failures to the backend error contract.
// Timeouts surface as a distinct kind so callers can tell them apart from
// malformed responses.
func classifyBackendErr(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrBackendTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrBackendFailed, err)
}

// OpenAIBackend implements Backend using the OpenAI embeddings API
type OpenAIBackend struct {
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewOpenAIBackend creates a new OpenAI embedding backend
func NewOpenAIBackend(apiKey string) (*OpenAIBackend, error) {
	if apiKey == "" {
		apiKey = os.Getenv(EnvOpenAIAPIKey)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoBackendEnabled, EnvOpenAIAPIKey)
	}

	return &OpenAIBackend{
		apiKey: apiKey,
		model:  DefaultOpenAIModel,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

func (o *OpenAIBackend) GenerateEmbeddings(ctx context.Context, texts []string, model string) ([][]float32, error) {
	if err := ValidateTexts(texts); err != nil {
		return nil, err
	}

	if model == "" {
		model = o.model
	}

	config := DefaultRetryConfig()
	vectors, err := retryWithBackoff(ctx, config, func() ([][]float32, error) {
		return o.callAPI(ctx, texts, model)
	})
	if err != nil {
		return nil, classifyBackendErr(ctx, err)
	}

	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", ErrBackendFailed, len(vectors), len(texts))
	}

	return vectors, nil
}

func (o *OpenAIBackend) callAPI(ctx context.Context, texts []string, model string) ([][]float32, error) {
	reqBody := map[string]interface{}{
		"input": texts,
		"model": model,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", "https://api.openai.com/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("api error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
		Model string `json:"model"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	vectors := make([][]float32, len(apiResp.Data))
	for i, data := range apiResp.Data {
		vectors[i] = data.Embedding
	}

	return vectors, nil
}

func (o *OpenAIBackend) Dimensions(model string) int {
	return OpenAIDimension
}

func (o *OpenAIBackend) Provider() string {
	return ProviderOpenAI
}

func (o *OpenAIBackend) DefaultModel() string {
	return o.model
}

func (o *OpenAIBackend) Close() error {
	o.httpClient.CloseIdleConnections()
	return nil
}

// OllamaBackend implements Backend using a local Ollama server
type OllamaBackend struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewOllamaBackend creates a new Ollama embedding backend
func NewOllamaBackend(baseURL string) (*OllamaBackend, error) {
	if baseURL == "" {
		baseURL = os.Getenv(EnvOllamaURL)
	}
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}

	return &OllamaBackend{
		baseURL: baseURL,
		model:   DefaultOllamaModel,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

func (ol *OllamaBackend) GenerateEmbeddings(ctx context.Context, texts []string, model string) ([][]float32, error) {
	if err := ValidateTexts(texts); err != nil {
		return nil, err
	}

	if model == "" {
		model = ol.model
	}

	config := DefaultRetryConfig()
	vectors, err := retryWithBackoff(ctx, config, func() ([][]float32, error) {
		return ol.callAPI(ctx, texts, model)
	})
	if err != nil {
		return nil, classifyBackendErr(ctx, err)
	}

	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", ErrBackendFailed, len(vectors), len(texts))
	}

	return vectors, nil
}

func (ol *OllamaBackend) callAPI(ctx context.Context, texts []string, model string) ([][]float32, error) {
	// Ollama batch embed endpoint
	reqBody := map[string]interface{}{
		"model": model,
		"input": texts,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", ol.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := ol.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("api error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var apiResp struct {
		Model      string      `json:"model"`
		Embeddings [][]float32 `json:"embeddings"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return apiResp.Embeddings, nil
}

func (ol *OllamaBackend) Dimensions(model string) int {
	return OllamaDimension
}

func (ol *OllamaBackend) Provider() string {
	return ProviderOllama
}

func (ol *OllamaBackend) DefaultModel() string {
	return ol.model
}

func (ol *OllamaBackend) Close() error {
	ol.httpClient.CloseIdleConnections()
	return nil
}

// LocalBackend produces deterministic hash-derived vectors. No network
// calls; suitable for development and tests where real semantic quality
// is not needed.
type LocalBackend struct {
	model string
}

// NewLocalBackend creates a new local embedding backend
func NewLocalBackend() (*LocalBackend, error) {
	return &LocalBackend{
		model: "local-embeddings",
	}, nil
}

func (l *LocalBackend) GenerateEmbeddings(ctx context.Context, texts []string, model string) ([][]float32, error) {
	if err := ValidateTexts(texts); err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = localVector(text)
	}

	return vectors, nil
}

// localVector derives a stable pseudo-embedding from the text hash.
func localVector(text string) []float32 {
	vector := make([]float32, LocalDimension)
	textHash := sha256.Sum256([]byte(text))
	for i := 0; i < LocalDimension; i++ {
		vector[i] = float32(textHash[i%len(textHash)]) / 255.0
	}
	return vector
}

func (l *LocalBackend) Dimensions(model string) int {
	return LocalDimension
}

func (l *LocalBackend) Provider() string {
	return ProviderLocal
}

func (l *LocalBackend) DefaultModel() string {
	return l.model
}

func (l *LocalBackend) Close() error {
	return nil
}
