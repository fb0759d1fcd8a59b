package llm

import (
	"context"
	"hash/fnv"
	"math"
	"sync"
)

// StubCompleter is a deterministic in-process Completer for tests.
// Responses come from Respond when set, otherwise Response; Err wins
// over both.
type StubCompleter struct {
	Response  string
	Respond   func(prompt string) string
	Err       error
	ModelName string

	mu      sync.Mutex
	prompts []string
}

// Complete implements Completer.
func (s *StubCompleter) Complete(ctx context.Context, prompt string, _ CompleteOptions) (string, Usage, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", Usage{}, classify(ctx, err, "completion")
	}
	if s.Err != nil {
		return "", Usage{}, s.Err
	}
	out := s.Response
	if s.Respond != nil {
		out = s.Respond(prompt)
	}
	return out, Usage{InputTokens: len(prompt) / 4, OutputTokens: len(out) / 4}, nil
}

// Model implements Completer.
func (s *StubCompleter) Model() string {
	if s.ModelName == "" {
		return "stub-completion"
	}
	return s.ModelName
}

// Prompts returns every prompt seen, in call order.
func (s *StubCompleter) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}

// StubEmbedder is a deterministic Embedder for tests: each text hashes
// to a stable unit vector of the configured dimension. FailOn makes a
// specific text fail, which is how ingestion failure paths are
// exercised.
type StubEmbedder struct {
	Dim    int
	Err    error
	FailOn map[string]error
}

// EmbedDocuments implements Embedder. It fails on the first failing
// text without embedding the rest.
func (s *StubEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		v, err := s.EmbedQuery(ctx, text)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// EmbedQuery implements Embedder.
func (s *StubEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, classify(ctx, err, "embedding")
	}
	if s.Err != nil {
		return nil, s.Err
	}
	if err, ok := s.FailOn[text]; ok {
		return nil, err
	}

	dim := s.Dim
	if dim == 0 {
		dim = 3
	}
	v := make([]float32, dim)
	var norm float64
	for i := range v {
		h := fnv.New32a()
		_, _ = h.Write([]byte(text))
		_, _ = h.Write([]byte{byte(i)})
		// Map the hash into (-1, 1).
		v[i] = float32(int32(h.Sum32()))/math.MaxInt32
		norm += float64(v[i]) * float64(v[i])
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range v {
			v[i] *= scale
		}
	}
	return v, nil
}

// Model implements Embedder.
func (s *StubEmbedder) Model() string { return "stub-embedding" }
