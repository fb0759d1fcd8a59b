package agent

import (
	"context"
	"errors"
	"fmt"
	"strconv"
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

const snapshotEntries = 5

// DialogueAgent runs the Socratic tutoring loop: it asks questions
// calibrated to where the project stands and scores the answers.
type DialogueAgent struct {
	store     *store.Store
	knowledge *knowledge.Service
	completer llm.Completer
	usage     *usage.Recorder
	logger    *zap.Logger
}

// NewDialogueAgent creates the dialogue agent.
func NewDialogueAgent(st *store.Store, ks *knowledge.Service, completer llm.Completer, rec *usage.Recorder, logger *zap.Logger) *DialogueAgent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DialogueAgent{
		store:     st,
		knowledge: ks,
		completer: completer,
		usage:     rec,
		logger:    logger.Named("agent.dialogue"),
	}
}

// Capability implements Agent.
func (a *DialogueAgent) Capability() string { return "dialogue" }

// MutatingActions implements Agent.
func (a *DialogueAgent) MutatingActions() []string { return []string{"score_response"} }

// Handle implements Agent.
func (a *DialogueAgent) Handle(ctx context.Context, action string, params map[string]any) (*domain.Result, error) {
	switch action {
	case "generate_question":
		return a.generateQuestion(ctx, params)
	case "score_response":
		return a.scoreResponse(ctx, params)
	default:
		return nil, unsupportedAction(a.Capability(), action)
	}
}

// questionDifficulty maps phase and maturity band onto a 1..5 scale.
// Pure arithmetic: the same project state always gets the same
// difficulty, and later phases or higher maturity never make it easier.
func questionDifficulty(phase domain.Phase, maturity int) int {
	band := maturity / 25
	d := 1 + (int(phase)+band)/2
	if d > 5 {
		d = 5
	}
	return d
}

func (a *DialogueAgent) generateQuestion(ctx context.Context, params map[string]any) (*domain.Result, error) {
	project, err := a.loadProject(ctx, params)
	if err != nil {
		return nil, err
	}
	difficulty := questionDifficulty(project.Phase, project.MaturityScore)

	snapshot, err := a.knowledge.ListByProject(ctx, project.ID, true, snapshotEntries)
	if err != nil {
		return nil, err
	}

	prompt := buildQuestionPrompt(project, snapshot, difficulty)
	question, used, err := a.completer.Complete(ctx, prompt, llm.CompleteOptions{})
	if err != nil {
		return nil, err
	}
	a.usage.Record(ctx, a.completer.Model(), uuid.NewString(), used)

	result := domain.OK(map[string]any{
		"question":   strings.TrimSpace(question),
		"difficulty": difficulty,
		"phase":      project.Phase.String(),
	})
	result.Event = events.SubjectQuestionGenerated
	result.EventPayload = map[string]any{
		"project_id": project.ID,
		"difficulty": difficulty,
	}
	return result, nil
}

// scoreResponse asks the model to grade an answer and proposes the new
// maturity score through the gate. The completion happens here, before
// any lock is taken.
func (a *DialogueAgent) scoreResponse(ctx context.Context, params map[string]any) (*domain.Result, error) {
	project, err := a.loadProject(ctx, params)
	if err != nil {
		return nil, err
	}
	question, err := stringParam(params, "question")
	if err != nil {
		return nil, err
	}
	response, err := stringParam(params, "response")
	if err != nil {
		return nil, err
	}

	prompt := buildScoringPrompt(project, question, response)
	completion, used, err := a.completer.Complete(ctx, prompt, llm.CompleteOptions{MaxTokens: 16})
	if err != nil {
		return nil, err
	}
	a.usage.Record(ctx, a.completer.Model(), uuid.NewString(), used)

	score, err := parseScore(completion)
	if err != nil {
		return nil, err
	}

	result := domain.OK(map[string]any{
		"project_id":     project.ID,
		"maturity_score": score,
	})
	result.Mutation = &domain.MutationProposal{
		ProjectID: project.ID,
		Delta:     &domain.ContextDelta{MaturityScore: &score},
		Actor:     "dialogue",
	}
	result.Event = events.SubjectProjectUpdated
	result.EventPayload = map[string]any{"project_id": project.ID, "maturity_score": score}
	return result, nil
}

func (a *DialogueAgent) loadProject(ctx context.Context, params map[string]any) (*domain.ProjectContext, error) {
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

func buildQuestionPrompt(p *domain.ProjectContext, snapshot []*domain.KnowledgeEntry, difficulty int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a Socratic tutor guiding a software project named %q.\n", p.Name)
	fmt.Fprintf(&b, "Current phase: %s. Question difficulty: %d of 5.\n", p.Phase, difficulty)
	if len(p.Goals) > 0 {
		fmt.Fprintf(&b, "Goals: %s.\n", strings.Join(p.Goals, "; "))
	}
	if len(p.Requirements) > 0 {
		fmt.Fprintf(&b, "Requirements: %s.\n", strings.Join(p.Requirements, "; "))
	}
	if len(p.TechStack) > 0 {
		fmt.Fprintf(&b, "Tech stack: %s.\n", strings.Join(p.TechStack, ", "))
	}
	if len(snapshot) > 0 {
		b.WriteString("Reference material:\n")
		for _, e := range snapshot {
			fmt.Fprintf(&b, "- %s\n", e.Title)
		}
	}
	b.WriteString("Ask one open question that pushes the student's thinking. Reply with the question only.")
	return b.String()
}

func buildScoringPrompt(p *domain.ProjectContext, question, response string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Project %q is in the %s phase with maturity %d of %d.\n",
		p.Name, p.Phase, p.MaturityScore, domain.MaxMaturity)
	fmt.Fprintf(&b, "Question: %s\nStudent answer: %s\n", question, response)
	fmt.Fprintf(&b, "Rate the project's overall maturity after this answer as an integer between 0 and %d. Reply with the number only.",
		domain.MaxMaturity)
	return b.String()
}

// parseScore extracts the integer from a scoring completion. A model
// that cannot produce a number is an upstream fault, not caller error.
func parseScore(completion string) (int, error) {
	fields := strings.FieldsFunc(strings.TrimSpace(completion), func(r rune) bool {
		return r < '0' || r > '9'
	})
	if len(fields) == 0 {
		return 0, domain.Errorf(domain.KindUpstreamUnavailable,
			"scoring model returned no number: %q", completion)
	}
	score, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, domain.WrapError(domain.KindUpstreamUnavailable, err, "parsing score")
	}
	if score < 0 {
		score = 0
	}
	if score > domain.MaxMaturity {
		score = domain.MaxMaturity
	}
	return score, nil
}
