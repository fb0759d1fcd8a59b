package agent

import (
	"context"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tutord/internal/domain"
	"github.com/fyrsmithlabs/tutord/internal/knowledge"
)

// IngestAgent is the capability surface of the knowledge store:
// document ingestion, semantic search, and index maintenance.
type IngestAgent struct {
	knowledge *knowledge.Service
	logger    *zap.Logger
}

// NewIngestAgent creates the ingest agent.
func NewIngestAgent(ks *knowledge.Service, logger *zap.Logger) *IngestAgent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestAgent{knowledge: ks, logger: logger.Named("agent.ingest")}
}

// Capability implements Agent.
func (a *IngestAgent) Capability() string { return "ingest" }

// MutatingActions implements Agent. Knowledge writes do not touch
// ProjectContext, so nothing here goes through the gate.
func (a *IngestAgent) MutatingActions() []string { return nil }

// Handle implements Agent.
func (a *IngestAgent) Handle(ctx context.Context, action string, params map[string]any) (*domain.Result, error) {
	switch action {
	case "ingest_document":
		return a.ingest(ctx, params)
	case "search":
		return a.search(ctx, params)
	case "list":
		return a.list(ctx, params)
	case "remove":
		return a.remove(ctx, params)
	case "sweep":
		return a.sweep(ctx)
	case "rebuild":
		return a.rebuild(ctx)
	default:
		return nil, unsupportedAction(a.Capability(), action)
	}
}

func (a *IngestAgent) ingest(ctx context.Context, params map[string]any) (*domain.Result, error) {
	title, err := stringParam(params, "title")
	if err != nil {
		return nil, err
	}
	content, err := stringParam(params, "content")
	if err != nil {
		return nil, err
	}
	entries, err := a.knowledge.Add(ctx, knowledge.AddRequest{
		ProjectID: optionalString(params, "project_id"),
		Title:     title,
		Content:   content,
		Tags:      stringListParam(params, "tags"),
		Source:    optionalString(params, "source"),
	})
	if err != nil {
		// Chunks written before the failure stay pending for the sweep;
		// the caller sees the typed error.
		return nil, err
	}
	return domain.OK(map[string]any{
		"entry_ids": entryIDs(entries),
		"chunks":    len(entries),
	}), nil
}

func (a *IngestAgent) search(ctx context.Context, params map[string]any) (*domain.Result, error) {
	query, err := stringParam(params, "query")
	if err != nil {
		return nil, err
	}
	topK, _ := intParam(params, "top_k")
	hits, err := a.knowledge.Search(ctx, optionalString(params, "project_id"), query, topK)
	if err != nil {
		return nil, err
	}
	return domain.OK(map[string]any{"hits": hits}), nil
}

func (a *IngestAgent) list(ctx context.Context, params map[string]any) (*domain.Result, error) {
	projectID, err := stringParam(params, "project_id")
	if err != nil {
		return nil, err
	}
	limit, _ := intParam(params, "limit")
	entries, err := a.knowledge.ListByProject(ctx, projectID, true, limit)
	if err != nil {
		return nil, err
	}
	return domain.OK(map[string]any{"entries": entries}), nil
}

func (a *IngestAgent) remove(ctx context.Context, params map[string]any) (*domain.Result, error) {
	id, err := stringParam(params, "entry_id")
	if err != nil {
		return nil, err
	}
	if err := a.knowledge.Remove(ctx, id); err != nil {
		return nil, err
	}
	return domain.OK(map[string]any{"entry_id": id, "removed": true}), nil
}

func (a *IngestAgent) sweep(ctx context.Context) (*domain.Result, error) {
	report, err := a.knowledge.Sweep(ctx)
	if err != nil {
		return nil, err
	}
	return domain.OK(map[string]any{"report": report}), nil
}

func (a *IngestAgent) rebuild(ctx context.Context) (*domain.Result, error) {
	restored, err := a.knowledge.Rebuild(ctx)
	if err != nil {
		return nil, err
	}
	return domain.OK(map[string]any{"vectors": restored}), nil
}
