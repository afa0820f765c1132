package provider

import (
	"context"
	"errors"

	"github.com/talkless/talkless/config"
	openai_provider "github.com/talkless/talkless/provider/openai"
)

// Client represents different LLM providers
type Client string

const (
	OpenAI    Client = "openai"
	Anthropic Client = "anthropic"
	Gemini    Client = "gemini"
)

// Provider is the interface the pipeline consumes for generative text
// and embeddings. The core never depends on a specific backend's types.
type Provider interface {
	// Generate produces text for a prompt.
	Generate(ctx context.Context, prompt string) (string, error)

	// GenerateWithTokens produces text and reports input/output token usage.
	GenerateWithTokens(ctx context.Context, prompt string) (string, int64, int64, error)

	// CreateEmbedding maps each input text to a fixed-length vector.
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// NewProvider creates an LLM client based on the provided configuration
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	switch Client(cfg.Provider) {
	case OpenAI:
		if cfg.APIKey == "" {
			return nil, errors.New("llm.api_key not set")
		}
		return openai_provider.NewClient(
			cfg.APIKey,
			cfg.BaseURL,
			cfg.CompletionModel,
			cfg.EmbeddingModel,
			cfg.Temperature,
			cfg.MaxTokens,
			cfg.Timeout,
		), nil
	case Anthropic:
		return nil, errors.New("anthropic client not implemented yet")
	case Gemini:
		return nil, errors.New("gemini client not implemented yet")
	default:
		return nil, errors.New("unsupported LLM provider")
	}
}
