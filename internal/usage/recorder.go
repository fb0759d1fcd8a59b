// Package usage tracks external model token consumption. Records are
// append-only; reporting happens through aggregation, never by editing
// history.
package usage

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tutord/internal/config"
	"github.com/fyrsmithlabs/tutord/internal/domain"
	"github.com/fyrsmithlabs/tutord/internal/events"
	"github.com/fyrsmithlabs/tutord/internal/llm"
	"github.com/fyrsmithlabs/tutord/internal/store"
)

// Publisher is the slice of the event bus the recorder needs. Nil
// disables event emission.
type Publisher interface {
	Publish(subject string, payload any) error
}

// Recorder persists usage records and emits usage.recorded events.
type Recorder struct {
	store   *store.Store
	bus     Publisher
	pricing map[string]config.ModelPrice
	logger  *zap.Logger
	now     func() time.Time
}

// NewRecorder creates a recorder. bus and pricing may be nil; without
// pricing every record carries zero cost.
func NewRecorder(st *store.Store, bus Publisher, pricing map[string]config.ModelPrice, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{store: st, bus: bus, pricing: pricing, logger: logger.Named("usage"), now: time.Now}
}

// cost prices one call from the configured per-model rates.
func (r *Recorder) cost(model string, u llm.Usage) float64 {
	price, ok := r.pricing[model]
	if !ok {
		return 0
	}
	return float64(u.InputTokens)/1000*price.InputPer1K +
		float64(u.OutputTokens)/1000*price.OutputPer1K
}

// Record appends one usage record. Recording failures are logged and
// swallowed: losing a usage row must never fail the request that
// consumed the tokens.
func (r *Recorder) Record(ctx context.Context, model, requestID string, u llm.Usage) {
	if u.InputTokens == 0 && u.OutputTokens == 0 {
		return
	}
	record := domain.TokenUsage{
		Provider:     "openai-compatible",
		Model:        model,
		InputTokens:  u.InputTokens,
		OutputTokens: u.OutputTokens,
		CostUSD:      r.cost(model, u),
		RequestID:    requestID,
		Timestamp:    r.now().UTC(),
	}
	if err := r.store.InsertUsage(ctx, record); err != nil {
		r.logger.Warn("usage record lost",
			zap.String("model", model),
			zap.String("request_id", requestID),
			zap.Error(err))
		return
	}
	if r.bus != nil {
		if err := r.bus.Publish(events.SubjectUsageRecorded, record); err != nil {
			r.logger.Warn("usage event emission failed", zap.Error(err))
		}
	}
}

// Summary aggregates usage since the given time. A zero time covers
// everything ever recorded.
func (r *Recorder) Summary(ctx context.Context, since time.Time) (*domain.UsageSummary, error) {
	summary, err := r.store.SummarizeUsage(ctx, since)
	if err != nil {
		return nil, domain.WrapError(domain.KindStorage, err, "summarizing usage")
	}
	return summary, nil
}
