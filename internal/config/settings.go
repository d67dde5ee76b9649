package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/54b3r/caselaw-rag/internal/auth"
	"github.com/54b3r/caselaw-rag/internal/embedder"
	"github.com/54b3r/caselaw-rag/internal/provider"
	"github.com/54b3r/caselaw-rag/internal/rag"
	"github.com/54b3r/caselaw-rag/internal/tracing"
	"github.com/54b3r/caselaw-rag/internal/vector"
)

// Vector backends.
const (
	VectorPgvector = "pgvector"
	VectorQdrant   = "qdrant"
	VectorSQLite   = "sqlite"
)

// Defaults that are not owned by a component package.
const (
	DefaultServerHost       = "127.0.0.1"
	DefaultServerPort       = 8080
	DefaultQdrantCollection = "case_chunks"
	DefaultJWTLeeway        = 30 * time.Second
)

// Settings is the fully resolved, typed configuration of one process.
type Settings struct {
	Provider  provider.Config
	Embedding embedder.Config
	Store     StoreSettings
	Auth      auth.VerifierConfig
	RAG       rag.Config
	Server    ServerSettings
	Logging   LoggingConfig
	Tracing   tracing.Config
}

// StoreSettings selects the relational store and the vector backend.
type StoreSettings struct {
	// DatabaseURL selects PostgreSQL when set; otherwise SQLitePath is used.
	DatabaseURL  string
	SQLitePath   string
	MaxOpenConns int
	// VectorBackend is one of the Vector* constants.
	VectorBackend string
	Qdrant        vector.QdrantConfig
}

// UsesPostgres reports whether dialogs live in PostgreSQL.
func (s StoreSettings) UsesPostgres() bool { return s.DatabaseURL != "" }

// ServerSettings holds the HTTP boundary settings.
type ServerSettings struct {
	Host           string
	Port           int
	AllowedOrigins []string
	RateLimit      float64
	RateBurst      int
}

// Resolve builds Settings from lookup, normally os.Getenv. Malformed numbers,
// booleans and durations are errors; unset values take their defaults.
func Resolve(lookup func(string) string) (*Settings, error) {
	e := &env{lookup: lookup}
	s := &Settings{}

	s.Provider = resolveProvider(e)
	s.Embedding = resolveEmbedding(e, s.Provider.Backend)
	s.Store = resolveStore(e)
	s.Auth = auth.VerifierConfig{
		Secret:   e.getString("AUTH_JWT_SECRET", ""),
		Issuer:   e.getString("AUTH_JWT_ISSUER", ""),
		Audience: e.getString("AUTH_JWT_AUDIENCE", auth.DefaultAudience),
		Leeway:   e.getDuration("AUTH_JWT_LEEWAY", DefaultJWTLeeway),
	}
	s.RAG = resolveRAG(e)
	s.Server = ServerSettings{
		Host:           e.getString("SERVER_HOST", DefaultServerHost),
		Port:           e.getInt("SERVER_PORT", DefaultServerPort),
		AllowedOrigins: splitList(e.getString("CORS_ALLOWED_ORIGINS", "")),
		RateLimit:      e.getFloat("RATE_LIMIT_RPS", 0),
		RateBurst:      e.getInt("RATE_LIMIT_BURST", 0),
	}
	s.Logging = LoggingConfig{
		Level:  e.getString("LOG_LEVEL", "info"),
		Format: e.getString("LOG_FORMAT", "json"),
	}
	s.Tracing = tracing.Config{
		Host:      e.getString("LANGFUSE_HOST", ""),
		PublicKey: e.getString("LANGFUSE_PUBLIC_KEY", ""),
		SecretKey: e.getString("LANGFUSE_SECRET_KEY", ""),
	}

	if err := errors.Join(e.errs...); err != nil {
		return nil, err
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func resolveProvider(e *env) provider.Config {
	return provider.Config{
		Backend: provider.Backend(strings.ToLower(e.getString("MODEL_PROVIDER", string(provider.BackendGitHub)))),
		GitHub: provider.ProviderGitHub{
			Token:      e.getString("GITHUB_MODELS_TOKEN", ""),
			Model:      e.getString("GITHUB_MODELS_MODEL", provider.DefaultGitHubModel),
			Endpoint:   e.getString("GITHUB_MODELS_ENDPOINT", provider.DefaultGitHubEndpoint),
			APIVersion: e.getString("GITHUB_MODELS_API_VERSION", provider.DefaultGitHubAPIVersion),
		},
		OpenAI: provider.ProviderOpenAI{
			APIKey:  e.getString("OPENAI_API_KEY", ""),
			Model:   e.getString("OPENAI_MODEL", "gpt-4o-mini"),
			BaseURL: e.getString("OPENAI_BASE_URL", ""),
		},
		AzureOpenAI: provider.ProviderAzureOpenAI{
			APIKey:     e.getString("AZURE_OPENAI_API_KEY", ""),
			Endpoint:   e.getString("AZURE_OPENAI_ENDPOINT", ""),
			Deployment: e.getString("AZURE_OPENAI_DEPLOYMENT", ""),
			APIVersion: e.getString("AZURE_OPENAI_API_VERSION", "2025-04-01-preview"),
		},
		Ollama: provider.ProviderOllama{
			Host:  e.getString("OLLAMA_HOST", "http://localhost:11434"),
			Model: e.getString("OLLAMA_MODEL", ""),
		},
		Gemini: provider.ProviderGemini{
			APIKey: e.getString("GOOGLE_API_KEY", ""),
			Model:  e.getString("GEMINI_MODEL", "gemini-2.5-flash"),
		},
		Ark: provider.ProviderArk{
			APIKey:  e.getString("ARK_API_KEY", ""),
			Model:   e.getString("ARK_MODEL", ""),
			BaseURL: e.getString("ARK_BASE_URL", ""),
		},
		Tuning: provider.SharedTuning{
			MaxTokens:   e.getInt("MODEL_MAX_TOKENS", provider.DefaultMaxTokens),
			Temperature: float32(e.getFloat("MODEL_TEMPERATURE", float64(provider.DefaultTemperature))),
			Timeout:     e.getDuration("MODEL_TIMEOUT", 0),
		},
	}
}

// resolveEmbedding inherits credentials and hosts from the chat provider
// when no embedding-specific override is set.
func resolveEmbedding(e *env, chat provider.Backend) embedder.Config {
	backend := strings.ToLower(e.getString("EMBEDDING_PROVIDER", embedder.BackendOllama))

	apiKey := e.getString("EMBEDDING_API_KEY", "")
	endpoint := e.getString("EMBEDDING_ENDPOINT", "")
	switch backend {
	case embedder.BackendGitHub:
		if apiKey == "" {
			apiKey = e.getString("GITHUB_MODELS_TOKEN", "")
		}
	case embedder.BackendOpenAI:
		if apiKey == "" {
			apiKey = e.getString("OPENAI_API_KEY", "")
		}
		if endpoint == "" && chat == provider.BackendOpenAI {
			endpoint = e.getString("OPENAI_BASE_URL", "")
		}
	case embedder.BackendAzure:
		if apiKey == "" {
			apiKey = e.getString("AZURE_OPENAI_API_KEY", "")
		}
		if endpoint == "" {
			endpoint = e.getString("AZURE_OPENAI_ENDPOINT", "")
		}
	case embedder.BackendOllama:
		if endpoint == "" {
			endpoint = e.getString("OLLAMA_HOST", "")
		}
	}

	return embedder.Config{
		Backend:    backend,
		Model:      e.getString("EMBEDDING_MODEL", ""),
		APIKey:     apiKey,
		Endpoint:   endpoint,
		APIVersion: e.getString("AZURE_OPENAI_API_VERSION", ""),
		Dimensions: e.getInt("EMBEDDING_DIMENSIONS", 0),
		Timeout:    e.getDuration("EMBEDDING_TIMEOUT", 0),
	}
}

func resolveStore(e *env) StoreSettings {
	s := StoreSettings{
		DatabaseURL:   e.getString("DATABASE_URL", ""),
		SQLitePath:    e.getString("SQLITE_PATH", ""),
		MaxOpenConns:  e.getInt("DB_MAX_OPEN_CONNS", 10),
		VectorBackend: strings.ToLower(e.getString("VECTOR_BACKEND", "")),
		Qdrant: vector.QdrantConfig{
			Host:       e.getString("QDRANT_HOST", "localhost"),
			Port:       e.getInt("QDRANT_PORT", 6334),
			Collection: e.getString("QDRANT_COLLECTION", DefaultQdrantCollection),
			APIKey:     e.getString("QDRANT_API_KEY", ""),
			UseTLS:     e.getBool("QDRANT_TLS", false),
		},
	}
	if s.VectorBackend == "" {
		if s.UsesPostgres() {
			s.VectorBackend = VectorPgvector
		} else {
			s.VectorBackend = VectorSQLite
		}
	}
	return s
}

func resolveRAG(e *env) rag.Config {
	def := rag.DefaultConfig()
	return rag.Config{
		TopK:                e.getInt("RAG_TOP_K", def.TopK),
		SimilarityThreshold: float32(e.getFloat("RAG_SIMILARITY_THRESHOLD", float64(def.SimilarityThreshold))),
		SourceMaxRunes:      e.getInt("RAG_SOURCE_MAX_RUNES", def.SourceMaxRunes),
		ApologyMessage:      e.getString("RAG_APOLOGY_MESSAGE", def.ApologyMessage),
		StrictGeneration:    e.getBool("RAG_STRICT_GENERATION", false),
		MaxPromptTokens:     e.getInt("RAG_MAX_PROMPT_TOKENS", def.MaxPromptTokens),
		EmbedTimeout:        e.getDuration("RAG_EMBED_TIMEOUT", def.EmbedTimeout),
		SearchTimeout:       e.getDuration("RAG_SEARCH_TIMEOUT", def.SearchTimeout),
		CompletionTimeout:   e.getDuration("RAG_COMPLETION_TIMEOUT", def.CompletionTimeout),
	}
}

// validate checks cross-field constraints that no single component owns.
func (s *Settings) validate() error {
	switch s.Store.VectorBackend {
	case VectorPgvector:
		if !s.Store.UsesPostgres() {
			return fmt.Errorf("config: VECTOR_BACKEND=pgvector requires DATABASE_URL")
		}
	case VectorSQLite:
		if s.Store.UsesPostgres() {
			return fmt.Errorf("config: VECTOR_BACKEND=sqlite cannot be combined with DATABASE_URL")
		}
	case VectorQdrant:
	default:
		return fmt.Errorf("config: unknown VECTOR_BACKEND %q, valid values: pgvector, qdrant, sqlite", s.Store.VectorBackend)
	}
	if s.RAG.TopK <= 0 {
		return fmt.Errorf("config: RAG_TOP_K must be positive, got %d", s.RAG.TopK)
	}
	if s.RAG.SimilarityThreshold < -1 || s.RAG.SimilarityThreshold > 1 {
		return fmt.Errorf("config: RAG_SIMILARITY_THRESHOLD must be within [-1, 1], got %v", s.RAG.SimilarityThreshold)
	}
	if s.Server.Port <= 0 || s.Server.Port > 65535 {
		return fmt.Errorf("config: SERVER_PORT out of range: %d", s.Server.Port)
	}
	return nil
}

// env reads typed values and collects parse errors.
type env struct {
	lookup func(string) string
	errs   []error
}

func (e *env) getString(key, def string) string {
	if v := strings.TrimSpace(e.lookup(key)); v != "" {
		return v
	}
	return def
}

func (e *env) getInt(key string, def int) int {
	v := e.getString(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("config: %s must be an integer, got %q", key, v))
		return def
	}
	return n
}

func (e *env) getFloat(key string, def float64) float64 {
	v := e.getString(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("config: %s must be a number, got %q", key, v))
		return def
	}
	return f
}

func (e *env) getBool(key string, def bool) bool {
	v := e.getString(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("config: %s must be a boolean, got %q", key, v))
		return def
	}
	return b
}

func (e *env) getDuration(key string, def time.Duration) time.Duration {
	v := e.getString(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("config: %s must be a duration like 30s, got %q", key, v))
		return def
	}
	return d
}

// splitList splits a comma-separated list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
