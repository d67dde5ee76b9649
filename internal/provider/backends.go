package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	einoark "github.com/cloudwego/eino-ext/components/model/ark"
	einogemini "github.com/cloudwego/eino-ext/components/model/gemini"
	einoollama "github.com/cloudwego/eino-ext/components/model/ollama"
	einoopenai "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"
)

// newGitHub constructs a ChatModel backed by GitHub Models. The inference API
// is OpenAI-compatible; the GitHub-specific headers are added by transport.
func newGitHub(ctx context.Context, cfg *Config) (model.BaseChatModel, error) {
	endpoint := cfg.GitHub.Endpoint
	if endpoint == "" {
		endpoint = DefaultGitHubEndpoint
	}
	apiVersion := cfg.GitHub.APIVersion
	if apiVersion == "" {
		apiVersion = DefaultGitHubAPIVersion
	}
	mc := &einoopenai.ChatModelConfig{
		BaseURL: endpoint,
		APIKey:  cfg.GitHub.Token,
		Model:   cfg.GitHub.Model,
		Timeout: cfg.Tuning.Timeout,
		HTTPClient: &http.Client{
			Timeout:   cfg.Tuning.Timeout,
			Transport: newGitHubTransport(http.DefaultTransport, apiVersion),
		},
	}
	applyTuning(mc, cfg)
	return einoopenai.NewChatModel(ctx, mc) //nolint:wrapcheck // constructor passthrough
}

// newOpenAI constructs a ChatModel backed by the OpenAI API.
func newOpenAI(ctx context.Context, cfg *Config) (model.BaseChatModel, error) {
	mc := &einoopenai.ChatModelConfig{
		BaseURL: cfg.OpenAI.BaseURL,
		APIKey:  cfg.OpenAI.APIKey,
		Model:   cfg.OpenAI.Model,
		Timeout: cfg.Tuning.Timeout,
	}
	applyTuning(mc, cfg)
	return einoopenai.NewChatModel(ctx, mc) //nolint:wrapcheck // constructor passthrough
}

// newAzure constructs a ChatModel backed by Azure OpenAI Service.
func newAzure(ctx context.Context, cfg *Config) (model.BaseChatModel, error) {
	mc := &einoopenai.ChatModelConfig{
		Model:      cfg.AzureOpenAI.Deployment,
		APIKey:     cfg.AzureOpenAI.APIKey,
		BaseURL:    cfg.AzureOpenAI.Endpoint,
		ByAzure:    true,
		APIVersion: cfg.AzureOpenAI.APIVersion,
		Timeout:    cfg.Tuning.Timeout,
		// Use the deployment name as-is. The default mapper strips dots and
		// colons, which breaks deployment names like "gpt-4.1".
		AzureModelMapperFunc: func(model string) string { return model },
	}
	applyTuning(mc, cfg)
	return einoopenai.NewChatModel(ctx, mc) //nolint:wrapcheck // constructor passthrough
}

// newOllama constructs a ChatModel backed by a local Ollama instance.
func newOllama(ctx context.Context, cfg *Config) (model.BaseChatModel, error) {
	return einoollama.NewChatModel(ctx, &einoollama.ChatModelConfig{ //nolint:wrapcheck // constructor passthrough
		BaseURL: cfg.Ollama.Host,
		Model:   cfg.Ollama.Model,
		Timeout: cfg.Tuning.Timeout,
	})
}

// newGemini constructs a ChatModel backed by Google Gemini (AI Studio).
func newGemini(ctx context.Context, cfg *Config) (model.BaseChatModel, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.Gemini.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("provider: failed to create Gemini client: %w", err)
	}
	maxTokens, temp := tuning(cfg)
	return einogemini.NewChatModel(ctx, &einogemini.Config{ //nolint:wrapcheck // constructor passthrough
		Client:      client,
		Model:       cfg.Gemini.Model,
		MaxTokens:   &maxTokens,
		Temperature: &temp,
	})
}

// newArk constructs a ChatModel backed by Volcengine Ark.
func newArk(ctx context.Context, cfg *Config) (model.BaseChatModel, error) {
	maxTokens, temp := tuning(cfg)
	return einoark.NewChatModel(ctx, &einoark.ChatModelConfig{ //nolint:wrapcheck // constructor passthrough
		Model:       cfg.Ark.Model,
		APIKey:      cfg.Ark.APIKey,
		BaseURL:     cfg.Ark.BaseURL,
		MaxTokens:   &maxTokens,
		Temperature: &temp,
	})
}

// applyTuning sets max_tokens and temperature on an OpenAI-style config.
// Reasoning models reject both, so they are left unset for those.
func applyTuning(mc *einoopenai.ChatModelConfig, cfg *Config) {
	if isReasoningModel(mc.Model) {
		return
	}
	maxTokens, temp := tuning(cfg)
	mc.MaxTokens = &maxTokens
	mc.Temperature = &temp
}

// isReasoningModel reports whether name is an o-series or codex-class model.
func isReasoningModel(name string) bool {
	lower := strings.ToLower(name)
	if i := strings.LastIndex(lower, "/"); i >= 0 {
		lower = lower[i+1:]
	}
	for _, prefix := range []string{"o1", "o3", "o4", "codex"} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// tuning returns the shared generation parameters with defaults applied.
func tuning(cfg *Config) (int, float32) {
	maxTokens := cfg.Tuning.MaxTokens
	if maxTokens == 0 {
		maxTokens = DefaultMaxTokens
	}
	return maxTokens, cfg.Tuning.Temperature
}
