package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/fyrsmithlabs/tutord/internal/domain"
)

// Embedder is the embedding boundary. Vectors have a fixed dimension
// matching the semantic index configuration.
type Embedder interface {
	// EmbedDocuments embeds multiple texts, one vector per input.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery embeds a single search query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// Model identifies the embedding model for usage records.
	Model() string
}

// OpenAIEmbedder implements Embedder against an OpenAI-compatible
// endpoint.
type OpenAIEmbedder struct {
	embedder *embeddings.EmbedderImpl
	config   Config
}

// NewEmbedder creates the embedding client.
func NewEmbedder(cfg Config) (*OpenAIEmbedder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.EmbeddingModel == "" {
		return nil, fmt.Errorf("embedding model required")
	}
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = "unused"
	}
	client, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithEmbeddingModel(cfg.EmbeddingModel),
		openai.WithToken(apiKey),
	)
	if err != nil {
		return nil, fmt.Errorf("creating embedding client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	return &OpenAIEmbedder{embedder: embedder, config: cfg}, nil
}

// Model implements Embedder.
func (e *OpenAIEmbedder) Model() string { return e.config.EmbeddingModel }

// EmbedDocuments implements Embedder.
func (e *OpenAIEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, domain.NewError(domain.KindValidation, "no texts to embed")
	}
	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, classify(ctx, err, "embedding")
	}
	return vectors, nil
}

// EmbedQuery implements Embedder.
func (e *OpenAIEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, domain.NewError(domain.KindValidation, "empty embed query")
	}
	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	vector, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, classify(ctx, err, "embedding")
	}
	return vector, nil
}
