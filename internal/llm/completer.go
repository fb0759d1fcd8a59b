package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"

	"github.com/fyrsmithlabs/tutord/internal/domain"
)

// Config holds the external service configuration. BaseURL points at
// any OpenAI-compatible endpoint (OpenAI itself, a local TEI/vLLM
// server, a proxy).
type Config struct {
	BaseURL        string
	Model          string
	EmbeddingModel string
	APIKey         string
	Timeout        time.Duration
	MaxTokens      int
	Temperature    float64
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("llm base URL required")
	}
	if c.Model == "" {
		return fmt.Errorf("llm model required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("llm timeout must be positive")
	}
	return nil
}

// Usage reports token consumption of a single call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// CompleteOptions tunes one completion call. Zero values fall back to
// the configured defaults.
type CompleteOptions struct {
	MaxTokens   int
	Temperature float64
}

// Completer is the text-completion boundary.
type Completer interface {
	// Complete sends a prompt and returns the completion text plus
	// token usage. Failures are typed: UpstreamUnavailable on timeout
	// or transport error, Cancelled on caller cancellation.
	Complete(ctx context.Context, prompt string, opts CompleteOptions) (string, Usage, error)

	// Model identifies the completion model for usage records.
	Model() string
}

// OpenAICompleter implements Completer against an OpenAI-compatible
// endpoint.
type OpenAICompleter struct {
	client *openai.LLM
	config Config
}

// NewCompleter creates the completion client.
func NewCompleter(cfg Config) (*OpenAICompleter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	apiKey := cfg.APIKey
	if apiKey == "" {
		// The client requires a token even for local endpoints.
		apiKey = "unused"
	}
	client, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithModel(cfg.Model),
		openai.WithToken(apiKey),
	)
	if err != nil {
		return nil, fmt.Errorf("creating completion client: %w", err)
	}
	return &OpenAICompleter{client: client, config: cfg}, nil
}

// Model implements Completer.
func (c *OpenAICompleter) Model() string { return c.config.Model }

// Complete implements Completer.
func (c *OpenAICompleter) Complete(ctx context.Context, prompt string, opts CompleteOptions) (string, Usage, error) {
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.config.MaxTokens
	}
	temperature := opts.Temperature
	if temperature == 0 {
		temperature = c.config.Temperature
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	resp, err := c.client.GenerateContent(ctx,
		[]llms.MessageContent{llms.TextParts(schema.ChatMessageTypeHuman, prompt)},
		llms.WithMaxTokens(maxTokens),
		llms.WithTemperature(temperature),
	)
	if err != nil {
		return "", Usage{}, classify(ctx, err, "completion")
	}
	if len(resp.Choices) == 0 {
		return "", Usage{}, domain.NewError(domain.KindUpstreamUnavailable, "completion returned no choices")
	}

	choice := resp.Choices[0]
	return choice.Content, usageFromGenerationInfo(choice.GenerationInfo), nil
}

func usageFromGenerationInfo(info map[string]any) Usage {
	return Usage{
		InputTokens:  intFrom(info, "PromptTokens"),
		OutputTokens: intFrom(info, "CompletionTokens"),
	}
}

func intFrom(m map[string]any, key string) int {
	if m == nil {
		return 0
	}
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// classify maps transport failures onto the error taxonomy. Caller
// cancellation wins over the per-call deadline.
func classify(ctx context.Context, err error, op string) error {
	switch {
	case errors.Is(err, context.Canceled):
		return domain.WrapError(domain.KindCancelled, err, op+" cancelled")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return domain.WrapError(domain.KindUpstreamUnavailable, err, op+" timed out")
	default:
		return domain.WrapError(domain.KindUpstreamUnavailable, err, op+" failed")
	}
}
