package embedder

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/54b3r/caselaw-rag/internal/rag"
)

// Supported embedding backends.
const (
	BackendOllama = "ollama"
	BackendOpenAI = "openai"
	BackendAzure  = "azure"
	BackendGitHub = "github"
)

// Default embedding models per backend.
const (
	defaultOllamaModel = "nomic-embed-text"
	defaultOpenAIModel = "text-embedding-3-small"
	defaultGitHubModel = "openai/text-embedding-3-small"

	defaultOllamaHost       = "http://localhost:11434"
	defaultOpenAIEndpoint   = "https://api.openai.com/v1"
	defaultGitHubEndpoint   = "https://models.github.ai/inference"
	defaultAzureAPIVersion  = "2025-04-01-preview"
	defaultOllamaDimensions = 768
	defaultOpenAIDimensions = 1536
)

// Config describes the embedding backend. Commands fill it from the
// environment; nothing in this package reads the environment itself.
type Config struct {
	// Backend is one of ollama, openai, azure, github. Empty means ollama.
	Backend string
	// Model is the embedding model (Azure: deployment). Empty means the
	// backend default.
	Model string
	// APIKey authenticates openai, azure and github backends.
	APIKey string
	// Endpoint is the base URL. Empty means the backend default; required
	// for azure.
	Endpoint string
	// APIVersion is the Azure OpenAI API version.
	APIVersion string
	// Dimensions is the expected vector length. Zero means the backend
	// default. It must match the corpus embeddings.
	Dimensions int
	// Timeout bounds one HTTP exchange. Zero keeps the embedder default.
	Timeout time.Duration
}

// WithDefaults returns a copy of c with every empty field resolved.
func (c Config) WithDefaults() Config {
	if c.Backend == "" {
		c.Backend = BackendOllama
	}
	switch c.Backend {
	case BackendOllama:
		if c.Endpoint == "" {
			c.Endpoint = defaultOllamaHost
		}
		if c.Model == "" {
			c.Model = defaultOllamaModel
		}
	case BackendOpenAI:
		if c.Endpoint == "" {
			c.Endpoint = defaultOpenAIEndpoint
		}
		if c.Model == "" {
			c.Model = defaultOpenAIModel
		}
	case BackendGitHub:
		if c.Endpoint == "" {
			c.Endpoint = defaultGitHubEndpoint
		}
		if c.Model == "" {
			c.Model = defaultGitHubModel
		}
	case BackendAzure:
		if c.Model == "" {
			c.Model = defaultOpenAIModel
		}
		if c.APIVersion == "" {
			c.APIVersion = defaultAzureAPIVersion
		}
	}
	if c.Dimensions == 0 {
		c.Dimensions = DefaultDimensions(c.Backend)
	}
	return c
}

// DefaultDimensions returns the default embedding vector size for the given
// backend. Callers that pre-create vector storage (pgvector column, Qdrant
// collection) should use Config.WithDefaults().Dimensions instead when a
// config is at hand.
func DefaultDimensions(backend string) int {
	switch backend {
	case "", BackendOllama:
		return defaultOllamaDimensions
	default:
		return defaultOpenAIDimensions
	}
}

// New constructs the embedder described by cfg. The result always
// L2-normalises its output and enforces the configured dimension.
func New(cfg Config) (rag.Embedder, error) {
	cfg = cfg.WithDefaults()

	var client *http.Client
	if cfg.Timeout > 0 {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	var inner rag.Embedder
	switch cfg.Backend {
	case BackendOllama:
		inner = NewOllamaEmbedder(&OllamaConfig{Host: cfg.Endpoint, Model: cfg.Model, HTTPClient: client})

	case BackendOpenAI, BackendGitHub:
		if cfg.Backend == BackendGitHub && cfg.APIKey == "" {
			return nil, fmt.Errorf("embedder: github requires GITHUB_MODELS_TOKEN or EMBEDDING_API_KEY")
		}
		inner = NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    cfg.Endpoint,
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: requestDimensions(cfg),
			HTTPClient: client,
		})

	case BackendAzure:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("embedder: azure requires AZURE_OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("embedder: azure requires AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT")
		}
		inner = NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    strings.TrimRight(cfg.Endpoint, "/") + "/openai",
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: requestDimensions(cfg),
			Azure:      true,
			APIVersion: cfg.APIVersion,
			HTTPClient: client,
		})

	default:
		return nil, fmt.Errorf("embedder: unknown backend %q, valid values: ollama, openai, azure, github", cfg.Backend)
	}

	return &Normalizing{Inner: inner, Dimension: cfg.Dimensions}, nil
}

// requestDimensions returns the "dimensions" request parameter. Only the
// text-embedding-3 family accepts it; other OpenAI-compatible servers reject
// unknown lengths.
func requestDimensions(cfg Config) int {
	if strings.Contains(strings.ToLower(cfg.Model), "text-embedding-3") {
		return cfg.Dimensions
	}
	return 0
}
