package agent

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tutord/internal/domain"
	"github.com/fyrsmithlabs/tutord/internal/store"
	"github.com/fyrsmithlabs/tutord/internal/usage"
	"github.com/fyrsmithlabs/tutord/internal/vectorindex"
)

// MonitorAgent reports operational state: token spend and component
// health.
type MonitorAgent struct {
	store  *store.Store
	index  *vectorindex.Index
	usage  *usage.Recorder
	logger *zap.Logger
	now    func() time.Time
}

// NewMonitorAgent creates the monitor agent.
func NewMonitorAgent(st *store.Store, idx *vectorindex.Index, rec *usage.Recorder, logger *zap.Logger) *MonitorAgent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MonitorAgent{store: st, index: idx, usage: rec, logger: logger.Named("agent.monitor"), now: time.Now}
}

// Capability implements Agent.
func (a *MonitorAgent) Capability() string { return "monitor" }

// MutatingActions implements Agent.
func (a *MonitorAgent) MutatingActions() []string { return nil }

// Handle implements Agent.
func (a *MonitorAgent) Handle(ctx context.Context, action string, params map[string]any) (*domain.Result, error) {
	switch action {
	case "usage_summary":
		return a.usageSummary(ctx, params)
	case "health":
		return a.health(ctx)
	default:
		return nil, unsupportedAction(a.Capability(), action)
	}
}

// usageSummary aggregates token usage, optionally windowed by a
// since_hours parameter.
func (a *MonitorAgent) usageSummary(ctx context.Context, params map[string]any) (*domain.Result, error) {
	var since time.Time
	if hours, ok := intParam(params, "since_hours"); ok {
		if hours <= 0 {
			return nil, domain.NewError(domain.KindValidation, "since_hours must be positive")
		}
		since = a.now().UTC().Add(-time.Duration(hours) * time.Hour)
	}
	summary, err := a.usage.Summary(ctx, since)
	if err != nil {
		return nil, err
	}
	return domain.OK(map[string]any{"summary": summary}), nil
}

func (a *MonitorAgent) health(ctx context.Context) (*domain.Result, error) {
	status := "ok"
	storeStatus := "ok"
	if err := a.store.Ping(ctx); err != nil {
		a.logger.Warn("store health check failed", zap.Error(err))
		status = "degraded"
		storeStatus = err.Error()
	}
	return domain.OK(map[string]any{
		"status": status,
		"components": map[string]any{
			"store":   storeStatus,
			"vectors": a.index.Count(),
		},
	}), nil
}
