package usage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fyrsmithlabs/tutord/internal/config"
	"github.com/fyrsmithlabs/tutord/internal/events"
	"github.com/fyrsmithlabs/tutord/internal/llm"
	"github.com/fyrsmithlabs/tutord/internal/store"
)

type capturePublisher struct {
	mu       sync.Mutex
	subjects []string
}

func (p *capturePublisher) Publish(subject string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	return nil
}

func TestRecordAndSummarize(t *testing.T) {
	logger := zaptest.NewLogger(t)
	st, err := store.Open("", logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	bus := &capturePublisher{}
	rec := NewRecorder(st, bus, nil, logger)
	ctx := context.Background()

	rec.Record(ctx, "gpt-4o-mini", "req-1", llm.Usage{InputTokens: 100, OutputTokens: 40})
	rec.Record(ctx, "gpt-4o-mini", "req-2", llm.Usage{InputTokens: 50, OutputTokens: 10})
	rec.Record(ctx, "text-embedding-3-small", "req-3", llm.Usage{InputTokens: 30})

	// Zero usage never produces a record.
	rec.Record(ctx, "gpt-4o-mini", "req-4", llm.Usage{})

	summary, err := rec.Summary(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), summary.Requests)
	assert.Equal(t, int64(180), summary.TotalInput)
	assert.Equal(t, int64(50), summary.TotalOutput)
	assert.Equal(t, int64(150), summary.ByModel["gpt-4o-mini"].Input)
	assert.Equal(t, int64(30), summary.ByModel["text-embedding-3-small"].Input)

	bus.mu.Lock()
	defer bus.mu.Unlock()
	assert.Equal(t, []string{
		events.SubjectUsageRecorded,
		events.SubjectUsageRecorded,
		events.SubjectUsageRecorded,
	}, bus.subjects)
}

func TestRecord_PricesFromConfig(t *testing.T) {
	logger := zaptest.NewLogger(t)
	st, err := store.Open("", logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	pricing := map[string]config.ModelPrice{
		"gpt-4o-mini": {InputPer1K: 0.15, OutputPer1K: 0.60},
	}
	rec := NewRecorder(st, nil, pricing, logger)
	ctx := context.Background()

	rec.Record(ctx, "gpt-4o-mini", "req-1", llm.Usage{InputTokens: 1000, OutputTokens: 500})
	rec.Record(ctx, "unpriced-model", "req-2", llm.Usage{InputTokens: 1000})

	summary, err := rec.Summary(ctx, time.Time{})
	require.NoError(t, err)
	// 1000 input at 0.15/1k plus 500 output at 0.60/1k.
	assert.InDelta(t, 0.45, summary.ByModel["gpt-4o-mini"].CostUSD, 1e-9)
	assert.InDelta(t, 0.0, summary.ByModel["unpriced-model"].CostUSD, 1e-9)
	assert.InDelta(t, 0.45, summary.TotalCost, 1e-9)
}

func TestSummary_SinceFilters(t *testing.T) {
	logger := zaptest.NewLogger(t)
	st, err := store.Open("", logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	rec := NewRecorder(st, nil, nil, logger)
	ctx := context.Background()

	old := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rec.now = func() time.Time { return old }
	rec.Record(ctx, "gpt-4o-mini", "req-old", llm.Usage{InputTokens: 10, OutputTokens: 5})

	recent := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	rec.now = func() time.Time { return recent }
	rec.Record(ctx, "gpt-4o-mini", "req-new", llm.Usage{InputTokens: 20, OutputTokens: 8})

	summary, err := rec.Summary(ctx, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.Requests)
	assert.Equal(t, int64(20), summary.TotalInput)
}
