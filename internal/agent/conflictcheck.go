package agent

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tutord/internal/conflict"
	"github.com/fyrsmithlabs/tutord/internal/domain"
	"github.com/fyrsmithlabs/tutord/internal/store"
)

// ConflictAgent answers what-if questions: would this delta conflict
// with the project as it stands? Nothing is persisted; the gate inside
// the orchestrator is the only path that records conflicts.
type ConflictAgent struct {
	store    *store.Store
	registry *conflict.Registry
	logger   *zap.Logger
}

// NewConflictAgent creates the conflict preview agent.
func NewConflictAgent(st *store.Store, registry *conflict.Registry, logger *zap.Logger) *ConflictAgent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConflictAgent{store: st, registry: registry, logger: logger.Named("agent.conflict")}
}

// Capability implements Agent.
func (a *ConflictAgent) Capability() string { return "conflict" }

// MutatingActions implements Agent.
func (a *ConflictAgent) MutatingActions() []string { return nil }

// Handle implements Agent.
func (a *ConflictAgent) Handle(ctx context.Context, action string, params map[string]any) (*domain.Result, error) {
	switch action {
	case "check":
		return a.check(ctx, params)
	case "list":
		return a.list(ctx, params)
	case "resolve":
		return a.transition(ctx, params, domain.ResolutionResolved)
	case "dismiss":
		return a.transition(ctx, params, domain.ResolutionDismissed)
	default:
		return nil, unsupportedAction(a.Capability(), action)
	}
}

func (a *ConflictAgent) check(ctx context.Context, params map[string]any) (*domain.Result, error) {
	project, err := a.loadProject(ctx, params)
	if err != nil {
		return nil, err
	}
	delta, err := deltaFromMap(params)
	if err != nil {
		return nil, err
	}

	conflicts := a.registry.CheckAll(project, delta)
	return domain.OK(map[string]any{
		"project_id":   project.ID,
		"conflicts":    conflicts,
		"has_blocking": domain.HasBlocking(conflicts),
	}), nil
}

func (a *ConflictAgent) list(ctx context.Context, params map[string]any) (*domain.Result, error) {
	project, err := a.loadProject(ctx, params)
	if err != nil {
		return nil, err
	}
	conflicts, err := a.store.ListConflictsByProject(ctx, project.ID, boolParam(params, "only_open"))
	if err != nil {
		return nil, domain.WrapError(domain.KindStorage, err, "listing conflicts")
	}
	return domain.OK(map[string]any{"project_id": project.ID, "conflicts": conflicts}), nil
}

// transition resolves or dismisses a recorded conflict. Conflicts are
// never deleted.
func (a *ConflictAgent) transition(ctx context.Context, params map[string]any, to domain.Resolution) (*domain.Result, error) {
	id, err := stringParam(params, "conflict_id")
	if err != nil {
		return nil, err
	}
	err = a.store.TransitionConflict(ctx, id, to)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domain.Errorf(domain.KindValidation, "conflict %s not found", id)
	}
	if err != nil {
		return nil, domain.WrapError(domain.KindStorage, err, "transitioning conflict")
	}
	return domain.OK(map[string]any{"conflict_id": id, "resolution": string(to)}), nil
}

func (a *ConflictAgent) loadProject(ctx context.Context, params map[string]any) (*domain.ProjectContext, error) {
	id, err := stringParam(params, "project_id")
	if err != nil {
		return nil, err
	}
	project, err := a.store.GetProject(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domain.Errorf(domain.KindValidation, "project %s not found", id)
	}
	if err != nil {
		return nil, domain.WrapError(domain.KindStorage, err, "loading project")
	}
	return project, nil
}
