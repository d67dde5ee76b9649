// Package config provides layered configuration for caselaw.
// Configuration is loaded with a layered precedence: defaults → .env file →
// YAML file → env vars. Environment variables always win.
//
// YAML file search order:
//  1. --config CLI flag (explicit path)
//  2. CASELAW_CONFIG environment variable
//  3. ~/.caselaw/config.yaml
//  4. ./caselaw.yaml
//
// If no file is found the system runs entirely from env vars. [Resolve]
// then turns the environment into typed component configs; nothing outside
// this package and the commands reads the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// File is the top-level YAML configuration structure.
// Field names use yaml tags that mirror the env var naming (lowercase, underscored).
type File struct {
	// Model configures the LLM chat model provider.
	Model ModelConfig `yaml:"model"`

	// Embedding configures the embedding provider for retrieval.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Store configures the relational store and vector backend.
	Store StoreConfig `yaml:"store"`

	// Qdrant configures the Qdrant vector store connection.
	Qdrant QdrantConfig `yaml:"qdrant"`

	// Auth configures identity-token verification.
	Auth AuthConfig `yaml:"auth"`

	// RAG tunes retrieval and answer shaping.
	RAG RAGConfig `yaml:"rag"`

	// Server configures the HTTP server.
	Server ServerConfig `yaml:"server"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// Tracing configures Langfuse tracing integration.
	Tracing TracingConfig `yaml:"tracing"`
}

// ModelConfig holds LLM chat model settings.
type ModelConfig struct {
	// Provider selects the backend: github, openai, azure, ollama, gemini, ark.
	Provider string `yaml:"provider"`
	// MaxTokens is the maximum number of tokens in the response.
	MaxTokens int `yaml:"max_tokens"`
	// Temperature controls response randomness.
	Temperature float32 `yaml:"temperature"`
	// Timeout bounds one completion exchange, e.g. "60s".
	Timeout string `yaml:"timeout"`

	GitHub GitHubConfig `yaml:"github"`
	OpenAI OpenAIConfig `yaml:"openai"`
	Azure  AzureConfig  `yaml:"azure"`
	Ollama OllamaConfig `yaml:"ollama"`
	Gemini GeminiConfig `yaml:"gemini"`
	Ark    ArkConfig    `yaml:"ark"`
}

// GitHubConfig holds GitHub Models settings.
type GitHubConfig struct {
	// Token is a GitHub token. Prefer env var GITHUB_MODELS_TOKEN.
	Token      string `yaml:"token"`
	Model      string `yaml:"model"`
	Endpoint   string `yaml:"endpoint"`
	APIVersion string `yaml:"api_version"`
}

// OpenAIConfig holds OpenAI provider settings.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key. Prefer env var OPENAI_API_KEY.
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// AzureConfig holds Azure OpenAI provider settings.
type AzureConfig struct {
	// APIKey is the Azure OpenAI API key. Prefer env var AZURE_OPENAI_API_KEY.
	APIKey     string `yaml:"api_key"`
	Endpoint   string `yaml:"endpoint"`
	Deployment string `yaml:"deployment"`
	APIVersion string `yaml:"api_version"`
}

// OllamaConfig holds Ollama provider settings.
type OllamaConfig struct {
	Host  string `yaml:"host"`
	Model string `yaml:"model"`
}

// GeminiConfig holds Google Gemini provider settings.
type GeminiConfig struct {
	// APIKey is the Google API key. Prefer env var GOOGLE_API_KEY.
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// ArkConfig holds Volcengine Ark provider settings.
type ArkConfig struct {
	// APIKey is the Ark API key. Prefer env var ARK_API_KEY.
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	// Provider selects the embedding backend (ollama, openai, azure, github).
	Provider string `yaml:"provider"`
	// Model is the embedding model name.
	Model string `yaml:"model"`
	// Dimensions is the embedding vector size of the corpus.
	Dimensions int `yaml:"dimensions"`
	// APIKey is the embedding API key. Prefer env var EMBEDDING_API_KEY.
	APIKey string `yaml:"api_key"`
	// Endpoint is the embedding API endpoint.
	Endpoint string `yaml:"endpoint"`
}

// StoreConfig selects where dialogs and the corpus live.
type StoreConfig struct {
	// DatabaseURL is the PostgreSQL DSN. Prefer env var DATABASE_URL.
	DatabaseURL string `yaml:"database_url"`
	// SQLitePath is the SQLite file used when no DatabaseURL is set.
	SQLitePath string `yaml:"sqlite_path"`
	// VectorBackend is pgvector, qdrant or sqlite.
	VectorBackend string `yaml:"vector_backend"`
	// MaxOpenConns caps the PostgreSQL pool.
	MaxOpenConns int `yaml:"max_open_conns"`
}

// QdrantConfig holds Qdrant vector store settings.
type QdrantConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Collection string `yaml:"collection"`
	// APIKey is the Qdrant API key. Prefer env var QDRANT_API_KEY.
	APIKey string `yaml:"api_key"`
	TLS    bool   `yaml:"tls"`
}

// AuthConfig holds identity-token settings.
type AuthConfig struct {
	// JWTSecret is the HMAC secret. Prefer env var AUTH_JWT_SECRET.
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
	Audience  string `yaml:"audience"`
	Leeway    string `yaml:"leeway"`
}

// RAGConfig tunes the question-answering pipeline.
type RAGConfig struct {
	TopK                int     `yaml:"top_k"`
	SimilarityThreshold float32 `yaml:"similarity_threshold"`
	SourceMaxRunes      int     `yaml:"source_max_runes"`
	ApologyMessage      string  `yaml:"apology_message"`
	StrictGeneration    bool    `yaml:"strict_generation"`
	MaxPromptTokens     int     `yaml:"max_prompt_tokens"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// CORSAllowedOrigins is a comma-separated origin list.
	CORSAllowedOrigins string  `yaml:"cors_allowed_origins"`
	RateLimit          float64 `yaml:"rate_limit"`
	RateBurst          int     `yaml:"rate_burst"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the log output format: json, text.
	Format string `yaml:"format"`
}

// TracingConfig holds Langfuse tracing settings.
type TracingConfig struct {
	// PublicKey is the Langfuse public key. Prefer env var LANGFUSE_PUBLIC_KEY.
	PublicKey string `yaml:"public_key"`
	// SecretKey is the Langfuse secret key. Prefer env var LANGFUSE_SECRET_KEY.
	SecretKey string `yaml:"secret_key"`
	// Host is the Langfuse API host.
	Host string `yaml:"host"`
}

// envMapping maps YAML config fields to their corresponding env var names.
// Only non-empty YAML values are applied; env vars always take precedence.
var envMapping = []struct {
	envKey string
	value  func(*File) string
}{
	{"MODEL_PROVIDER", func(c *File) string { return c.Model.Provider }},
	{"MODEL_MAX_TOKENS", func(c *File) string { return intStr(c.Model.MaxTokens) }},
	{"MODEL_TEMPERATURE", func(c *File) string { return float32Str(c.Model.Temperature) }},
	{"MODEL_TIMEOUT", func(c *File) string { return c.Model.Timeout }},
	{"GITHUB_MODELS_TOKEN", func(c *File) string { return c.Model.GitHub.Token }},
	{"GITHUB_MODELS_MODEL", func(c *File) string { return c.Model.GitHub.Model }},
	{"GITHUB_MODELS_ENDPOINT", func(c *File) string { return c.Model.GitHub.Endpoint }},
	{"GITHUB_MODELS_API_VERSION", func(c *File) string { return c.Model.GitHub.APIVersion }},
	{"OPENAI_API_KEY", func(c *File) string { return c.Model.OpenAI.APIKey }},
	{"OPENAI_MODEL", func(c *File) string { return c.Model.OpenAI.Model }},
	{"OPENAI_BASE_URL", func(c *File) string { return c.Model.OpenAI.BaseURL }},
	{"AZURE_OPENAI_API_KEY", func(c *File) string { return c.Model.Azure.APIKey }},
	{"AZURE_OPENAI_ENDPOINT", func(c *File) string { return c.Model.Azure.Endpoint }},
	{"AZURE_OPENAI_DEPLOYMENT", func(c *File) string { return c.Model.Azure.Deployment }},
	{"AZURE_OPENAI_API_VERSION", func(c *File) string { return c.Model.Azure.APIVersion }},
	{"OLLAMA_HOST", func(c *File) string { return c.Model.Ollama.Host }},
	{"OLLAMA_MODEL", func(c *File) string { return c.Model.Ollama.Model }},
	{"GOOGLE_API_KEY", func(c *File) string { return c.Model.Gemini.APIKey }},
	{"GEMINI_MODEL", func(c *File) string { return c.Model.Gemini.Model }},
	{"ARK_API_KEY", func(c *File) string { return c.Model.Ark.APIKey }},
	{"ARK_MODEL", func(c *File) string { return c.Model.Ark.Model }},
	{"ARK_BASE_URL", func(c *File) string { return c.Model.Ark.BaseURL }},
	{"EMBEDDING_PROVIDER", func(c *File) string { return c.Embedding.Provider }},
	{"EMBEDDING_MODEL", func(c *File) string { return c.Embedding.Model }},
	{"EMBEDDING_DIMENSIONS", func(c *File) string { return intStr(c.Embedding.Dimensions) }},
	{"EMBEDDING_API_KEY", func(c *File) string { return c.Embedding.APIKey }},
	{"EMBEDDING_ENDPOINT", func(c *File) string { return c.Embedding.Endpoint }},
	{"DATABASE_URL", func(c *File) string { return c.Store.DatabaseURL }},
	{"SQLITE_PATH", func(c *File) string { return c.Store.SQLitePath }},
	{"VECTOR_BACKEND", func(c *File) string { return c.Store.VectorBackend }},
	{"DB_MAX_OPEN_CONNS", func(c *File) string { return intStr(c.Store.MaxOpenConns) }},
	{"QDRANT_HOST", func(c *File) string { return c.Qdrant.Host }},
	{"QDRANT_PORT", func(c *File) string { return intStr(c.Qdrant.Port) }},
	{"QDRANT_COLLECTION", func(c *File) string { return c.Qdrant.Collection }},
	{"QDRANT_API_KEY", func(c *File) string { return c.Qdrant.APIKey }},
	{"QDRANT_TLS", func(c *File) string { return boolStr(c.Qdrant.TLS) }},
	{"AUTH_JWT_SECRET", func(c *File) string { return c.Auth.JWTSecret }},
	{"AUTH_JWT_ISSUER", func(c *File) string { return c.Auth.Issuer }},
	{"AUTH_JWT_AUDIENCE", func(c *File) string { return c.Auth.Audience }},
	{"AUTH_JWT_LEEWAY", func(c *File) string { return c.Auth.Leeway }},
	{"RAG_TOP_K", func(c *File) string { return intStr(c.RAG.TopK) }},
	{"RAG_SIMILARITY_THRESHOLD", func(c *File) string { return float32Str(c.RAG.SimilarityThreshold) }},
	{"RAG_SOURCE_MAX_RUNES", func(c *File) string { return intStr(c.RAG.SourceMaxRunes) }},
	{"RAG_APOLOGY_MESSAGE", func(c *File) string { return c.RAG.ApologyMessage }},
	{"RAG_STRICT_GENERATION", func(c *File) string { return boolStr(c.RAG.StrictGeneration) }},
	{"RAG_MAX_PROMPT_TOKENS", func(c *File) string { return intStr(c.RAG.MaxPromptTokens) }},
	{"SERVER_HOST", func(c *File) string { return c.Server.Host }},
	{"SERVER_PORT", func(c *File) string { return intStr(c.Server.Port) }},
	{"CORS_ALLOWED_ORIGINS", func(c *File) string { return c.Server.CORSAllowedOrigins }},
	{"RATE_LIMIT_RPS", func(c *File) string { return float64Str(c.Server.RateLimit) }},
	{"RATE_LIMIT_BURST", func(c *File) string { return intStr(c.Server.RateBurst) }},
	{"LOG_LEVEL", func(c *File) string { return c.Logging.Level }},
	{"LOG_FORMAT", func(c *File) string { return c.Logging.Format }},
	{"LANGFUSE_PUBLIC_KEY", func(c *File) string { return c.Tracing.PublicKey }},
	{"LANGFUSE_SECRET_KEY", func(c *File) string { return c.Tracing.SecretKey }},
	{"LANGFUSE_HOST", func(c *File) string { return c.Tracing.Host }},
}

// LoadDotEnv loads KEY=VALUE pairs from path (default ".env") into the
// environment. Variables already set are never overwritten. A missing file
// is not an error.
func LoadDotEnv(path string, log *slog.Logger) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Debug("config: no .env file found", slog.String("path", path))
			return nil
		}
		return fmt.Errorf("config: failed to load %s: %w", path, err)
	}
	log.Debug("config: loaded .env file", slog.String("path", path))
	return nil
}

// Load reads a YAML config file and applies non-empty values as environment
// variables. Existing env vars are never overwritten (env always wins).
// Returns the path that was loaded, or empty string if no file was found.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no YAML config file found, using env vars only")
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg File
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return "", fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	applied := 0
	for _, m := range envMapping {
		yamlVal := m.value(&cfg)
		if yamlVal == "" {
			continue
		}
		if os.Getenv(m.envKey) != "" {
			continue // env var already set, do not override
		}
		if err := os.Setenv(m.envKey, yamlVal); err != nil {
			return "", fmt.Errorf("config: set %s: %w", m.envKey, err)
		}
		applied++
	}

	log.Info("config: loaded YAML config",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)

	return path, nil
}

// resolveConfigPath returns the first config file path that exists. An
// explicit path that does not exist resolves to "".
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv("CASELAW_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		p := filepath.Join(home, ".caselaw", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if _, err := os.Stat("caselaw.yaml"); err == nil {
		return "caselaw.yaml"
	}

	return ""
}

// intStr converts an int to string, returning "" for zero values.
func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return fmt.Sprintf("%d", v)
}

// float32Str converts a float32 to string, returning "" for zero values.
func float32Str(v float32) string {
	return float64Str(float64(v))
}

// float64Str converts a float64 to string, returning "" for zero values.
func float64Str(v float64) string {
	if v == 0 {
		return ""
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}

// boolStr converts a bool to string, returning "" for false.
func boolStr(v bool) string {
	if !v {
		return ""
	}
	return "true"
}
