package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/tutord/internal/domain"
)

func TestConfigValidate(t *testing.T) {
	valid := Config{BaseURL: "http://localhost:8080/v1", Model: "m", Timeout: time.Second}
	assert.NoError(t, valid.Validate())

	for name, cfg := range map[string]Config{
		"no base url": {Model: "m", Timeout: time.Second},
		"no model":    {BaseURL: "http://x", Timeout: time.Second},
		"no timeout":  {BaseURL: "http://x", Model: "m"},
	} {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestClassify_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := classify(ctx, ctx.Err(), "completion")
	assert.True(t, domain.IsKind(err, domain.KindCancelled))
}

func TestClassify_Timeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	err := classify(ctx, ctx.Err(), "completion")
	assert.True(t, domain.IsKind(err, domain.KindUpstreamUnavailable))
}

func TestUsageFromGenerationInfo(t *testing.T) {
	u := usageFromGenerationInfo(map[string]any{"PromptTokens": 12, "CompletionTokens": 34})
	assert.Equal(t, 12, u.InputTokens)
	assert.Equal(t, 34, u.OutputTokens)

	assert.Equal(t, Usage{}, usageFromGenerationInfo(nil))
}

func TestStubCompleter_Deterministic(t *testing.T) {
	stub := &StubCompleter{Response: "What trade-offs does your schema make?"}

	first, usage, err := stub.Complete(context.Background(), "prompt", CompleteOptions{})
	require.NoError(t, err)
	second, _, err := stub.Complete(context.Background(), "prompt", CompleteOptions{})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Positive(t, usage.OutputTokens)
	assert.Len(t, stub.Prompts(), 2)
}

func TestStubEmbedder_StableVectors(t *testing.T) {
	stub := &StubEmbedder{Dim: 8}
	ctx := context.Background()

	a1, err := stub.EmbedQuery(ctx, "postgres indexing")
	require.NoError(t, err)
	a2, err := stub.EmbedQuery(ctx, "postgres indexing")
	require.NoError(t, err)
	b, err := stub.EmbedQuery(ctx, "something else")
	require.NoError(t, err)

	assert.Equal(t, a1, a2)
	assert.NotEqual(t, a1, b)
	assert.Len(t, a1, 8)
}

func TestStubEmbedder_FailOn(t *testing.T) {
	boom := domain.NewError(domain.KindUpstreamUnavailable, "embed backend down")
	stub := &StubEmbedder{Dim: 3, FailOn: map[string]error{"bad chunk": boom}}

	_, err := stub.EmbedDocuments(context.Background(), []string{"fine", "bad chunk"})
	assert.True(t, domain.IsKind(err, domain.KindUpstreamUnavailable))
}
