package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tutord/internal/domain"
	"github.com/fyrsmithlabs/tutord/internal/events"
	"github.com/fyrsmithlabs/tutord/internal/knowledge"
	"github.com/fyrsmithlabs/tutord/internal/llm"
	"github.com/fyrsmithlabs/tutord/internal/store"
	"github.com/fyrsmithlabs/tutord/internal/usage"
)

// CodegenAgent produces example code artifacts from a short spec and
// the project context. Generated code is stored as reference material,
// never executed. Cancellation is all-or-nothing: a cancelled request
// persists nothing.
type CodegenAgent struct {
	store     *store.Store
	knowledge *knowledge.Service
	completer llm.Completer
	usage     *usage.Recorder
	logger    *zap.Logger
}

// NewCodegenAgent creates the codegen agent.
func NewCodegenAgent(st *store.Store, ks *knowledge.Service, completer llm.Completer, rec *usage.Recorder, logger *zap.Logger) *CodegenAgent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CodegenAgent{
		store:     st,
		knowledge: ks,
		completer: completer,
		usage:     rec,
		logger:    logger.Named("agent.codegen"),
	}
}

// Capability implements Agent.
func (a *CodegenAgent) Capability() string { return "codegen" }

// MutatingActions implements Agent.
func (a *CodegenAgent) MutatingActions() []string { return nil }

// Handle implements Agent.
func (a *CodegenAgent) Handle(ctx context.Context, action string, params map[string]any) (*domain.Result, error) {
	if action != "generate" {
		return nil, unsupportedAction(a.Capability(), action)
	}
	return a.generate(ctx, params)
}

func (a *CodegenAgent) generate(ctx context.Context, params map[string]any) (*domain.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.WrapError(domain.KindCancelled, err, "generation cancelled")
	}
	projectID, err := stringParam(params, "project_id")
	if err != nil {
		return nil, err
	}
	spec, err := stringParam(params, "spec")
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

	artifact, used, err := a.completer.Complete(ctx, buildCodegenPrompt(project, spec), llm.CompleteOptions{})
	if err != nil {
		return nil, err
	}
	a.usage.Record(ctx, a.completer.Model(), uuid.NewString(), used)

	// The cancellation checkpoint between generation and persistence:
	// a cancelled request stores nothing.
	if err := ctx.Err(); err != nil {
		return nil, domain.WrapError(domain.KindCancelled, err, "generation cancelled before persistence")
	}

	title := artifactTitle(spec)
	entries, err := a.knowledge.Add(ctx, knowledge.AddRequest{
		ProjectID: projectID,
		Title:     title,
		Content:   artifact,
		Tags:      []string{"generated-code"},
		Source:    "codegen",
	})
	if err != nil {
		// A cancellation landing mid-document would otherwise leave the
		// earlier chunks ready and the failing one pending for the
		// sweep to finish. Take them all back: nothing of a cancelled
		// generation survives.
		if domain.IsKind(err, domain.KindCancelled) || errors.Is(err, context.Canceled) {
			a.rollback(ctx, entries)
			return nil, domain.WrapError(domain.KindCancelled, err, "generation cancelled during persistence")
		}
		return nil, err
	}

	result := domain.OK(map[string]any{
		"project_id": projectID,
		"artifact":   artifact,
		"entry_ids":  entryIDs(entries),
	})
	result.Event = events.SubjectCodeGenerated
	result.EventPayload = map[string]any{"project_id": projectID, "title": title}
	return result, nil
}

// rollback discards chunks persisted before a cancellation. The request
// context is already dead, so cleanup runs detached from it.
func (a *CodegenAgent) rollback(ctx context.Context, entries []*domain.KnowledgeEntry) {
	if len(entries) == 0 {
		return
	}
	ids := entryIDs(entries)
	if err := a.knowledge.Discard(context.WithoutCancel(ctx), ids...); err != nil {
		a.logger.Error("cancelled generation left partial chunks",
			zap.Strings("entry_ids", ids), zap.Error(err))
	}
}

func buildCodegenPrompt(p *domain.ProjectContext, spec string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write example code for the project %q.\n", p.Name)
	if len(p.TechStack) > 0 {
		fmt.Fprintf(&b, "Use this stack: %s.\n", strings.Join(p.TechStack, ", "))
	}
	if len(p.Constraints) > 0 {
		fmt.Fprintf(&b, "Respect these constraints: %s.\n", strings.Join(p.Constraints, "; "))
	}
	fmt.Fprintf(&b, "Task: %s\n", spec)
	b.WriteString("Reply with the code and a short explanation. The code is teaching material and will not be executed.")
	return b.String()
}

func artifactTitle(spec string) string {
	const maxTitle = 80
	title := strings.Join(strings.Fields(spec), " ")
	if len(title) > maxTitle {
		title = title[:maxTitle]
	}
	return "Generated: " + title
}

func entryIDs(entries []*domain.KnowledgeEntry) []string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids
}
