// Package provider constructs the chat model that answers questions and wraps
// it as a rag.Completer. Backends: GitHub Models (default), OpenAI, Azure
// OpenAI, Ollama, Google Gemini and Volcengine Ark, all through eino.
package provider

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotConfigured is returned when the selected backend lacks its
// credential. It is reported per request, not at startup, so the service can
// run with retrieval only and answer 503 until a credential is provided.
var ErrNotConfigured = errors.New("provider: LLM not configured")

// Backend enumerates the supported LLM inference providers.
type Backend string

const (
	// BackendGitHub selects GitHub Models (OpenAI-compatible inference API).
	BackendGitHub Backend = "github"
	// BackendOpenAI selects the OpenAI API.
	BackendOpenAI Backend = "openai"
	// BackendAzure selects Azure OpenAI Service.
	BackendAzure Backend = "azure"
	// BackendOllama selects a locally running Ollama instance.
	BackendOllama Backend = "ollama"
	// BackendGemini selects Google Gemini via AI Studio.
	BackendGemini Backend = "gemini"
	// BackendArk selects Volcengine Ark.
	BackendArk Backend = "ark"
)

// Defaults for the GitHub Models backend.
const (
	DefaultGitHubEndpoint   = "https://models.github.ai/inference"
	DefaultGitHubModel      = "deepseek/DeepSeek-V3"
	DefaultGitHubAPIVersion = "2022-11-28"
)

// Shared tuning defaults.
const (
	DefaultMaxTokens   = 2048
	DefaultTemperature = float32(0.3)
)

// Config holds the provider configuration. Only the section matching Backend
// is read.
type Config struct {
	// Backend identifies which inference provider to use.
	Backend Backend

	GitHub      ProviderGitHub
	OpenAI      ProviderOpenAI
	AzureOpenAI ProviderAzureOpenAI
	Ollama      ProviderOllama
	Gemini      ProviderGemini
	Ark         ProviderArk

	Tuning SharedTuning
}

// ProviderGitHub configures GitHub Models.
type ProviderGitHub struct {
	// Token is a GitHub token with the models:read permission.
	Token string
	// Model is the catalogue model ID (e.g. "deepseek/DeepSeek-V3").
	Model string
	// Endpoint is the inference base URL; "/chat/completions" is appended.
	Endpoint string
	// APIVersion is sent as X-GitHub-Api-Version.
	APIVersion string
}

// ProviderOpenAI configures the OpenAI API or any OpenAI-compatible server.
type ProviderOpenAI struct {
	APIKey  string
	Model   string
	BaseURL string
}

// ProviderAzureOpenAI configures Azure OpenAI Service.
type ProviderAzureOpenAI struct {
	APIKey     string
	Endpoint   string
	Deployment string
	APIVersion string
}

// ProviderOllama configures a local Ollama server. No credential is needed.
type ProviderOllama struct {
	Host  string
	Model string
}

// ProviderGemini configures Google Gemini.
type ProviderGemini struct {
	APIKey string
	Model  string
}

// ProviderArk configures Volcengine Ark.
type ProviderArk struct {
	APIKey  string
	Model   string
	BaseURL string
}

// SharedTuning holds generation parameters applied to every backend that
// supports them.
type SharedTuning struct {
	// MaxTokens caps the number of tokens the model may generate per response.
	MaxTokens int
	// Temperature controls response randomness (0.0–1.0).
	Temperature float32
	// Timeout bounds one HTTP exchange with the backend. Zero means none.
	Timeout time.Duration
}

// Validate reports configuration errors. A missing credential is wrapped in
// ErrNotConfigured; every other problem is a plain error that should stop
// startup.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendGitHub:
		if c.GitHub.Model == "" {
			return fmt.Errorf("provider: GITHUB_MODELS_MODEL is required for github backend")
		}
		if c.GitHub.Token == "" {
			return fmt.Errorf("%w: GITHUB_MODELS_TOKEN is not set", ErrNotConfigured)
		}
	case BackendOpenAI:
		if c.OpenAI.Model == "" {
			return fmt.Errorf("provider: OPENAI_MODEL is required for openai backend")
		}
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY is not set", ErrNotConfigured)
		}
	case BackendAzure:
		if c.AzureOpenAI.Endpoint == "" {
			return fmt.Errorf("provider: AZURE_OPENAI_ENDPOINT is required for azure backend")
		}
		if c.AzureOpenAI.Deployment == "" {
			return fmt.Errorf("provider: AZURE_OPENAI_DEPLOYMENT is required for azure backend")
		}
		if c.AzureOpenAI.APIKey == "" {
			return fmt.Errorf("%w: AZURE_OPENAI_API_KEY is not set", ErrNotConfigured)
		}
	case BackendOllama:
		if c.Ollama.Host == "" {
			return fmt.Errorf("provider: OLLAMA_HOST is required for ollama backend")
		}
		if c.Ollama.Model == "" {
			return fmt.Errorf("provider: OLLAMA_MODEL is required for ollama backend")
		}
	case BackendGemini:
		if c.Gemini.Model == "" {
			return fmt.Errorf("provider: GEMINI_MODEL is required for gemini backend")
		}
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("%w: GOOGLE_API_KEY is not set", ErrNotConfigured)
		}
	case BackendArk:
		if c.Ark.Model == "" {
			return fmt.Errorf("provider: ARK_MODEL is required for ark backend")
		}
		if c.Ark.APIKey == "" {
			return fmt.Errorf("%w: ARK_API_KEY is not set", ErrNotConfigured)
		}
	default:
		return fmt.Errorf("provider: unknown backend %q, valid values: github, openai, azure, ollama, gemini, ark", c.Backend)
	}
	if c.Tuning.MaxTokens < 0 {
		return fmt.Errorf("provider: MODEL_MAX_TOKENS must not be negative")
	}
	if c.Tuning.Temperature < 0 || c.Tuning.Temperature > 2 {
		return fmt.Errorf("provider: MODEL_TEMPERATURE must be within [0, 2], got %v", c.Tuning.Temperature)
	}
	return nil
}

// ModelName returns the model identifier of the selected backend, for logs.
func (c *Config) ModelName() string {
	switch c.Backend {
	case BackendGitHub:
		return c.GitHub.Model
	case BackendOpenAI:
		return c.OpenAI.Model
	case BackendAzure:
		return c.AzureOpenAI.Deployment
	case BackendOllama:
		return c.Ollama.Model
	case BackendGemini:
		return c.Gemini.Model
	case BackendArk:
		return c.Ark.Model
	default:
		return ""
	}
}
