package llm

import (
	"context"
	"fmt"
	"log"

	"github.com/lmoretti/aide/config"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string
	Content string
}

// Client generates text from role-tagged messages. A maxTokens of zero or
// less leaves the provider's default cap in place.
type Client interface {
	Generate(ctx context.Context, messages []Message, maxTokens int) (string, error)
}

type Options struct {
	Provider string
	Model    string

	OllamaHost    string
	OpenAIAPIKey  string
	OpenAIBaseURL string
}

func NewClient(cfg config.Config) (Client, error) {
	opts := Options{
		Provider:      cfg.LLM.Provider,
		Model:         cfg.LLM.Model,
		OllamaHost:    cfg.OllamaHost,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
	}

	switch opts.Provider {
	case config.ProviderOllama:
		return NewOllamaClient(opts), nil
	case config.ProviderOpenAI:
		if opts.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai provider selected but OPENAI_API_KEY not set")
		}
		return NewOpenAIClient(opts), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", opts.Provider)
	}
}

// FallbackAnswer is returned by the fallback wrapper whenever the underlying
// client fails, so generation never surfaces an error to query handling.
const FallbackAnswer = "[generation unavailable] I could not reach the language model to produce an answer. Please try again later."

type fallbackClient struct {
	inner  Client
	logger *log.Logger
}

// NewFallback wraps a client so that every failure is logged and converted
// into FallbackAnswer instead of an error.
func NewFallback(inner Client, logger *log.Logger) Client {
	if logger == nil {
		logger = log.Default()
	}
	return &fallbackClient{inner: inner, logger: logger}
}

func (c *fallbackClient) Generate(ctx context.Context, messages []Message, maxTokens int) (string, error) {
	if c.inner == nil {
		c.logger.Printf("generation unavailable: no client configured")
		return FallbackAnswer, nil
	}
	answer, err := c.inner.Generate(ctx, messages, maxTokens)
	if err != nil {
		c.logger.Printf("generation unavailable: %v", err)
		return FallbackAnswer, nil
	}
	return answer, nil
}

// Prompt is a convenience for the single-prompt generation shape used by the
// retrieval workflow.
func Prompt(ctx context.Context, client Client, prompt string, maxTokens int) (string, error) {
	return client.Generate(ctx, []Message{{Role: RoleUser, Content: prompt}}, maxTokens)
}
