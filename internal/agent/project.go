package agent

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tutord/internal/domain"
	"github.com/fyrsmithlabs/tutord/internal/events"
	"github.com/fyrsmithlabs/tutord/internal/store"
)

// ProjectAgent owns the project lifecycle: creation, retrieval,
// archive, and the mutating actions that feed the conflict gate.
type ProjectAgent struct {
	store  *store.Store
	logger *zap.Logger
	now    func() time.Time
}

// NewProjectAgent creates the project agent.
func NewProjectAgent(st *store.Store, logger *zap.Logger) *ProjectAgent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProjectAgent{store: st, logger: logger.Named("agent.project"), now: time.Now}
}

// Capability implements Agent.
func (a *ProjectAgent) Capability() string { return "project" }

// MutatingActions implements Agent.
func (a *ProjectAgent) MutatingActions() []string { return []string{"update", "revert_phase"} }

// Handle implements Agent.
func (a *ProjectAgent) Handle(ctx context.Context, action string, params map[string]any) (*domain.Result, error) {
	switch action {
	case "create":
		return a.create(ctx, params)
	case "get":
		return a.get(ctx, params)
	case "list":
		return a.list(ctx, params)
	case "update":
		return a.update(ctx, params)
	case "archive":
		return a.setArchived(ctx, params, true)
	case "restore":
		return a.setArchived(ctx, params, false)
	case "revert_phase":
		return a.revertPhase(ctx, params)
	default:
		return nil, unsupportedAction(a.Capability(), action)
	}
}

func (a *ProjectAgent) create(ctx context.Context, params map[string]any) (*domain.Result, error) {
	ownerID, err := stringParam(params, "user_id")
	if err != nil {
		return nil, err
	}
	name, err := stringParam(params, "name")
	if err != nil {
		return nil, err
	}
	if _, err := a.store.GetUser(ctx, ownerID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.Errorf(domain.KindValidation, "owner %s does not exist", ownerID)
		}
		return nil, domain.WrapError(domain.KindStorage, err, "loading owner")
	}

	now := a.now().UTC()
	project := &domain.ProjectContext{
		ID:           uuid.NewString(),
		OwnerID:      ownerID,
		Name:         name,
		Description:  optionalString(params, "description"),
		Phase:        domain.PhaseDiscovery,
		TechStack:    stringListParam(params, "tech_stack"),
		Requirements: stringListParam(params, "requirements"),
		Goals:        stringListParam(params, "goals"),
		Constraints:  stringListParam(params, "constraints"),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := project.Validate(); err != nil {
		return nil, err
	}
	if err := a.store.CreateProject(ctx, project); err != nil {
		return nil, domain.WrapError(domain.KindStorage, err, "creating project")
	}
	a.logger.Info("project created",
		zap.String("project_id", project.ID),
		zap.String("owner_id", ownerID))

	result := domain.OK(map[string]any{"project": project})
	result.Event = events.SubjectProjectCreated
	result.EventPayload = map[string]any{"project_id": project.ID, "owner_id": ownerID}
	return result, nil
}

func (a *ProjectAgent) get(ctx context.Context, params map[string]any) (*domain.Result, error) {
	project, err := a.load(ctx, params)
	if err != nil {
		return nil, err
	}
	return domain.OK(map[string]any{"project": project}), nil
}

// list returns projects the user owns plus projects they collaborate
// on, deduplicated.
func (a *ProjectAgent) list(ctx context.Context, params map[string]any) (*domain.Result, error) {
	userID, err := stringParam(params, "user_id")
	if err != nil {
		return nil, err
	}
	owned, err := a.store.ListProjectsByOwner(ctx, userID, boolParam(params, "include_archived"))
	if err != nil {
		return nil, domain.WrapError(domain.KindStorage, err, "listing projects")
	}

	projects := owned
	if user, err := a.store.GetUser(ctx, userID); err == nil {
		shared, err := a.store.ListProjectsByCollaborator(ctx, user.Username)
		if err != nil {
			return nil, domain.WrapError(domain.KindStorage, err, "listing shared projects")
		}
		seen := make(map[string]struct{}, len(projects))
		for _, p := range projects {
			seen[p.ID] = struct{}{}
		}
		for _, p := range shared {
			if _, dup := seen[p.ID]; !dup {
				projects = append(projects, p)
			}
		}
	}
	return domain.OK(map[string]any{"projects": projects}), nil
}

func (a *ProjectAgent) update(ctx context.Context, params map[string]any) (*domain.Result, error) {
	project, err := a.load(ctx, params)
	if err != nil {
		return nil, err
	}
	actor, err := stringParam(params, "user_id")
	if err != nil {
		return nil, err
	}
	delta, err := deltaFromMap(params)
	if err != nil {
		return nil, err
	}

	result := domain.OK(map[string]any{"project_id": project.ID})
	result.Mutation = &domain.MutationProposal{ProjectID: project.ID, Delta: delta, Actor: actor}
	result.Event = events.SubjectProjectUpdated
	result.EventPayload = map[string]any{"project_id": project.ID, "actor": actor}
	return result, nil
}

func (a *ProjectAgent) setArchived(ctx context.Context, params map[string]any, archived bool) (*domain.Result, error) {
	project, err := a.load(ctx, params)
	if err != nil {
		return nil, err
	}
	if err := a.requireOwner(params, project); err != nil {
		return nil, err
	}
	if err := a.store.SetArchived(ctx, project.ID, archived); err != nil {
		return nil, domain.WrapError(domain.KindStorage, err, "archiving project")
	}
	a.logger.Info("project archive state changed",
		zap.String("project_id", project.ID),
		zap.Bool("archived", archived))
	return domain.OK(map[string]any{"project_id": project.ID, "archived": archived}), nil
}

// revertPhase is the one sanctioned way to move a phase backwards.
// Owner only; the move still passes through the conflict gate.
func (a *ProjectAgent) revertPhase(ctx context.Context, params map[string]any) (*domain.Result, error) {
	project, err := a.load(ctx, params)
	if err != nil {
		return nil, err
	}
	if err := a.requireOwner(params, project); err != nil {
		return nil, err
	}
	phaseName, err := stringParam(params, "phase")
	if err != nil {
		return nil, err
	}
	phase, err := domain.ParsePhase(phaseName)
	if err != nil {
		return nil, err
	}
	if phase >= project.Phase {
		return nil, domain.Errorf(domain.KindValidation,
			"revert target %s is not before current phase %s", phase, project.Phase)
	}

	a.logger.Warn("phase revert requested",
		zap.String("project_id", project.ID),
		zap.String("from", project.Phase.String()),
		zap.String("to", phase.String()))

	result := domain.OK(map[string]any{"project_id": project.ID, "phase": phase.String()})
	result.Mutation = &domain.MutationProposal{
		ProjectID: project.ID,
		Delta:     &domain.ContextDelta{Phase: &phase, PhaseRevert: true},
		Actor:     project.OwnerID,
	}
	result.Event = events.SubjectProjectUpdated
	result.EventPayload = map[string]any{"project_id": project.ID, "phase": phase.String()}
	return result, nil
}

func (a *ProjectAgent) load(ctx context.Context, params map[string]any) (*domain.ProjectContext, error) {
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

func (a *ProjectAgent) requireOwner(params map[string]any, project *domain.ProjectContext) error {
	actor, err := stringParam(params, "user_id")
	if err != nil {
		return err
	}
	if actor != project.OwnerID {
		return domain.Errorf(domain.KindValidation,
			"only the owner may perform this action on project %s", project.ID)
	}
	return nil
}
