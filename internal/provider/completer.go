package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/caselaw-rag/internal/rag"
)

// Completer adapts an eino chat model to rag.Completer. When the backend
// credential is missing it is still constructed, and every call reports
// rag.KindGenerationUnavailable instead.
type Completer struct {
	chat          model.BaseChatModel
	name          string
	notConfigured error
	handlers      []callbacks.Handler
}

// Option customises a Completer.
type Option func(*Completer)

// WithCallbacks attaches eino callback handlers (e.g. Langfuse tracing) to
// every completion.
func WithCallbacks(handlers ...callbacks.Handler) Option {
	return func(c *Completer) {
		for _, h := range handlers {
			if h != nil {
				c.handlers = append(c.handlers, h)
			}
		}
	}
}

// NewCompleter builds the chat model described by cfg. A missing credential
// is not an error here; any other configuration problem is.
func NewCompleter(ctx context.Context, cfg *Config, opts ...Option) (*Completer, error) {
	chat, err := New(ctx, cfg)
	if err != nil && !errors.Is(err, ErrNotConfigured) {
		return nil, err
	}
	c := &Completer{chat: chat, name: string(cfg.Backend) + ":" + cfg.ModelName(), notConfigured: err}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewCompleterFromModel wraps an already constructed chat model.
func NewCompleterFromModel(chat model.BaseChatModel, name string, opts ...Option) *Completer {
	c := &Completer{chat: chat, name: name}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns "<backend>:<model>" for logs.
func (c *Completer) Name() string { return c.name }

// Preflight implements rag.Preflighter.
func (c *Completer) Preflight() error {
	if c.notConfigured != nil {
		return rag.NewError(rag.KindGenerationUnavailable, "LLM not configured", c.notConfigured)
	}
	return nil
}

// Complete implements rag.Completer. It sends the system and user prompts as
// a two-message conversation and returns the reply content.
func (c *Completer) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if err := c.Preflight(); err != nil {
		return "", err
	}
	if len(c.handlers) > 0 {
		ctx = callbacks.InitCallbacks(ctx, &callbacks.RunInfo{
			Name:      c.name,
			Type:      "CaseLawCompleter",
			Component: components.ComponentOfChatModel,
		}, c.handlers...)
	}

	msg, err := c.chat.Generate(ctx, []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(userPrompt),
	})
	if err != nil {
		return "", fmt.Errorf("provider: %s generate: %w", c.name, err)
	}
	if msg == nil {
		return "", fmt.Errorf("provider: %s returned no message", c.name)
	}
	return msg.Content, nil
}
