package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tutord/internal/domain"
	"github.com/fyrsmithlabs/tutord/internal/events"
	"github.com/fyrsmithlabs/tutord/internal/llm"
	"github.com/fyrsmithlabs/tutord/internal/store"
	"github.com/fyrsmithlabs/tutord/internal/usage"
)

// AnalysisAgent turns free-form text (conversation notes, a student's
// description) into a structured ContextDelta. Analysis only proposes:
// applying the candidate delta is a separate action that runs through
// the conflict gate.
type AnalysisAgent struct {
	store     *store.Store
	completer llm.Completer
	usage     *usage.Recorder
	logger    *zap.Logger
}

// NewAnalysisAgent creates the analysis agent.
func NewAnalysisAgent(st *store.Store, completer llm.Completer, rec *usage.Recorder, logger *zap.Logger) *AnalysisAgent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalysisAgent{store: st, completer: completer, usage: rec, logger: logger.Named("agent.analysis")}
}

// Capability implements Agent.
func (a *AnalysisAgent) Capability() string { return "analysis" }

// MutatingActions implements Agent.
func (a *AnalysisAgent) MutatingActions() []string { return []string{"apply"} }

// Handle implements Agent.
func (a *AnalysisAgent) Handle(ctx context.Context, action string, params map[string]any) (*domain.Result, error) {
	switch action {
	case "analyze":
		return a.analyze(ctx, params)
	case "apply":
		return a.apply(ctx, params)
	default:
		return nil, unsupportedAction(a.Capability(), action)
	}
}

func (a *AnalysisAgent) analyze(ctx context.Context, params map[string]any) (*domain.Result, error) {
	projectID, err := stringParam(params, "project_id")
	if err != nil {
		return nil, err
	}
	text, err := stringParam(params, "text")
	if err != nil {
		return nil, err
	}
	project, err := a.store.GetProject(ctx, projectID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domain.Errorf(domain.KindValidation, "project %s not found", projectID)
	}
	if err != nil {
		return nil, domain.WrapError(domain.KindStorage, err, "loading project")
	}

	completion, used, err := a.completer.Complete(ctx, buildExtractionPrompt(project, text), llm.CompleteOptions{Temperature: 0.1})
	if err != nil {
		return nil, err
	}
	a.usage.Record(ctx, a.completer.Model(), uuid.NewString(), used)

	delta, err := parseDelta(completion)
	if err != nil {
		return nil, err
	}
	return domain.OK(map[string]any{
		"project_id": projectID,
		"delta":      delta,
	}), nil
}

// apply submits a previously extracted (and possibly user-edited) delta
// to the gate.
func (a *AnalysisAgent) apply(ctx context.Context, params map[string]any) (*domain.Result, error) {
	projectID, err := stringParam(params, "project_id")
	if err != nil {
		return nil, err
	}
	raw := mapParam(params, "delta")
	if raw == nil {
		return nil, domain.NewError(domain.KindValidation, "missing required parameter \"delta\"")
	}
	delta, err := deltaFromMap(raw)
	if err != nil {
		return nil, err
	}
	actor := optionalString(params, "user_id")
	if actor == "" {
		actor = "analysis"
	}

	result := domain.OK(map[string]any{"project_id": projectID})
	result.Mutation = &domain.MutationProposal{ProjectID: projectID, Delta: delta, Actor: actor}
	result.Event = events.SubjectProjectUpdated
	result.EventPayload = map[string]any{"project_id": projectID, "actor": actor}
	return result, nil
}

func buildExtractionPrompt(p *domain.ProjectContext, text string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Extract project context changes from the text below for project %q (phase %s).\n", p.Name, p.Phase)
	b.WriteString("Respond with JSON only, using this shape (omit fields with nothing to report):\n")
	b.WriteString(`{"phase":"design","add_tech_stack":[],"remove_tech_stack":[],"add_requirements":[],"add_goals":[],"add_constraints":[],"maturity_score":0}`)
	b.WriteString("\nValid phases: discovery, analysis, design, implementation, testing, deployment.\n")
	b.WriteString("Text:\n")
	b.WriteString(text)
	return b.String()
}

// parseDelta decodes the model's JSON answer, tolerating markdown code
// fences. A model that cannot produce the requested JSON is an upstream
// fault.
func parseDelta(completion string) (*domain.ContextDelta, error) {
	cleaned := strings.TrimSpace(completion)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var delta domain.ContextDelta
	if err := json.Unmarshal([]byte(cleaned), &delta); err != nil {
		return nil, domain.WrapError(domain.KindUpstreamUnavailable, err, "extraction model returned invalid JSON")
	}
	if delta.IsZero() {
		return nil, domain.NewError(domain.KindValidation, "no context changes found in text")
	}
	return &delta, nil
}
