package embedding

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// LangchainConfig configures the langchaingo-backed Embedder. BaseURL
// accepts any OpenAI-compatible embeddings endpoint (OpenAI itself, or a
// local TEI — Text Embeddings Inference — server), matching the teacher's
// pkg/embeddings.Config pattern of treating both as the same client.
type LangchainConfig struct {
	BaseURL string
	Model   string
	APIKey  string
}

func (c LangchainConfig) validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("embedding: base URL required")
	}
	if c.Model == "" {
		return fmt.Errorf("embedding: model required")
	}
	return nil
}

// LangchainEmbedder implements Embedder on langchaingo's embeddings
// abstraction, adapted from the teacher's pkg/embeddings.Service.
type LangchainEmbedder struct {
	embedder *embeddings.EmbedderImpl
}

// NewLangchainEmbedder constructs an Embedder from cfg. An empty APIKey is
// replaced with a placeholder token, since langchaingo's OpenAI client
// always requires one even against a token-less local TEI server.
func NewLangchainEmbedder(cfg LangchainConfig) (*LangchainEmbedder, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = "placeholder"
	}
	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithModel(cfg.Model),
		openai.WithToken(apiKey),
	)
	if err != nil {
		return nil, fmt.Errorf("creating embedding client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	return &LangchainEmbedder{embedder: embedder}, nil
}

// Embed generates one embedding per input text, in order.
func (e *LangchainEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("embedding: texts cannot be empty")
	}
	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding documents: %w", err)
	}
	return vectors, nil
}

var _ Embedder = (*LangchainEmbedder)(nil)
