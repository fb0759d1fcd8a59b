// Package orchestrator is the single entry point for all capability
// requests. It dispatches to agents, runs proposed ProjectContext
// mutations through the conflict gate under a per-project lock, and
// emits events after successful persistence.
//
// The gate is the only code path that applies a ContextDelta. It holds
// the project lock across conflict check and persist only; all LLM work
// happens inside the agents before the gate, so no lock is ever held
// across a network call.
package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tutord/internal/agent"
	"github.com/fyrsmithlabs/tutord/internal/conflict"
	"github.com/fyrsmithlabs/tutord/internal/domain"
	"github.com/fyrsmithlabs/tutord/internal/events"
	"github.com/fyrsmithlabs/tutord/internal/store"
)

// ErrAlreadyStarted is returned by Start on a second call and by
// Register after Start. The capability table is fixed at startup.
var ErrAlreadyStarted = errors.New("orchestrator already started")

// Publisher is the slice of the event bus the orchestrator needs. Nil
// disables event emission.
type Publisher interface {
	Publish(subject string, payload any) error
}

// Orchestrator routes requests to capability agents and guards all
// ProjectContext mutations.
type Orchestrator struct {
	store    *store.Store
	registry *conflict.Registry
	bus      Publisher
	logger   *zap.Logger
	now      func() time.Time

	agents   map[string]agent.Agent
	mutating map[string]map[string]bool
	locks    projectLocks
	started  bool
}

// New builds the orchestrator with its initial agents. Duplicate
// capabilities are a wiring error.
func New(st *store.Store, registry *conflict.Registry, bus Publisher, agents []agent.Agent, logger *zap.Logger) (*Orchestrator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		store:    st,
		registry: registry,
		bus:      bus,
		logger:   logger.Named("orchestrator"),
		now:      time.Now,
		agents:   make(map[string]agent.Agent),
		mutating: make(map[string]map[string]bool),
	}
	for _, a := range agents {
		if err := o.Register(a); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// Register adds an agent. Rejected once Start has run.
func (o *Orchestrator) Register(a agent.Agent) error {
	if o.started {
		return ErrAlreadyStarted
	}
	name := a.Capability()
	if _, dup := o.agents[name]; dup {
		return errors.New("capability " + name + " already registered")
	}
	o.agents[name] = a
	actions := make(map[string]bool, len(a.MutatingActions()))
	for _, action := range a.MutatingActions() {
		actions[action] = true
	}
	o.mutating[name] = actions
	return nil
}

// Start freezes the capability table. A second Start is an error, not a
// silent re-initialization.
func (o *Orchestrator) Start() error {
	if o.started {
		return ErrAlreadyStarted
	}
	o.started = true
	o.logger.Info("orchestrator started", zap.Int("capabilities", len(o.agents)))
	return nil
}

// Capabilities lists registered capability names.
func (o *Orchestrator) Capabilities() []string {
	out := make([]string, 0, len(o.agents))
	for name := range o.agents {
		out = append(out, name)
	}
	return out
}

// ProcessRequest executes one request and always returns a Result; raw
// errors never escape. Successful results with an Event set are
// published after persistence.
func (o *Orchestrator) ProcessRequest(ctx context.Context, capability, action string, params map[string]any) *domain.Result {
	start := o.now()
	result := o.process(ctx, capability, action, params)

	requestsTotal.WithLabelValues(capability, result.Status).Inc()
	requestDuration.WithLabelValues(capability).Observe(time.Since(start).Seconds())

	if result.Status == domain.StatusSuccess && result.Event != "" {
		o.publish(result.Event, result.EventPayload)
	}
	if result.Status == domain.StatusError {
		o.logger.Warn("request failed",
			zap.String("capability", capability),
			zap.String("action", action),
			zap.String("kind", string(result.Err.Kind)),
			zap.String("message", result.Err.Message))
	}
	return result
}

func (o *Orchestrator) process(ctx context.Context, capability, action string, params map[string]any) (result *domain.Result) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("agent panicked",
				zap.String("capability", capability),
				zap.String("action", action),
				zap.Any("panic", r))
			result = domain.Fail(domain.Errorf(domain.KindStorage, "internal failure handling %s.%s", capability, action))
		}
	}()

	a, ok := o.agents[capability]
	if !ok {
		return domain.Fail(domain.Errorf(domain.KindUnknownCapability, "unknown capability %q", capability))
	}

	res, err := a.Handle(ctx, action, params)
	if err != nil {
		// Typed errors pass through untouched; only untyped ones are
		// classified here.
		return domain.Fail(domain.WrapError(domain.KindStorage, err, "request failed"))
	}

	if res.Mutation != nil {
		if !o.mutating[capability][action] {
			return domain.Fail(domain.Errorf(domain.KindStorage,
				"action %s.%s proposed a mutation without declaring it", capability, action))
		}
		return o.applyMutation(ctx, res, params)
	}
	return res
}

// applyMutation is the conflict gate. Under the project lock it reloads
// the current context, runs every checker, records findings, and either
// rejects or applies atomically. A rejected mutation changes nothing
// but the conflict log.
func (o *Orchestrator) applyMutation(ctx context.Context, res *domain.Result, params map[string]any) *domain.Result {
	m := res.Mutation

	unlock := o.locks.acquire(m.ProjectID)
	defer unlock()

	// Fresh read under the lock: the agent's earlier snapshot may be
	// stale by now.
	current, err := o.store.GetProject(ctx, m.ProjectID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Fail(domain.Errorf(domain.KindValidation, "project %s not found", m.ProjectID))
	}
	if err != nil {
		return domain.Fail(domain.WrapError(domain.KindStorage, err, "loading project for mutation"))
	}
	if current.Archived {
		return domain.Fail(domain.Errorf(domain.KindValidation,
			"project %s is archived and read-only", m.ProjectID))
	}

	now := o.now().UTC()
	conflicts := o.registry.CheckAll(current, m.Delta)
	for i := range conflicts {
		conflicts[i].ID = uuid.NewString()
		conflicts[i].ProjectID = m.ProjectID
		conflicts[i].DetectedAt = now
		conflicts[i].Resolution = domain.ResolutionOpen
	}
	if len(conflicts) > 0 {
		if err := o.store.InsertConflicts(ctx, conflicts); err != nil {
			return domain.Fail(domain.WrapError(domain.KindStorage, err, "recording conflicts"))
		}
		observeConflicts(conflicts)
		o.publish(events.SubjectConflictDetected, map[string]any{
			"project_id":   m.ProjectID,
			"conflicts":    len(conflicts),
			"has_blocking": domain.HasBlocking(conflicts),
		})
	}

	if domain.HasBlocking(conflicts) {
		if override, _ := params["override"].(bool); !override {
			return domain.Fail(domain.BlockedError(conflicts))
		}
		overridesTotal.Inc()
		o.logger.Warn("blocking conflicts overridden",
			zap.String("project_id", m.ProjectID),
			zap.String("actor", m.Actor),
			zap.Int("conflicts", len(conflicts)))
	}

	next, err := domain.ApplyDelta(current, m.Delta, now)
	if err != nil {
		return domain.Fail(err)
	}
	if err := o.store.UpdateProject(ctx, next); err != nil {
		return domain.Fail(domain.WrapError(domain.KindStorage, err, "persisting mutation"))
	}

	o.logger.Info("mutation applied",
		zap.String("project_id", m.ProjectID),
		zap.String("actor", m.Actor),
		zap.Int("conflicts", len(conflicts)))

	if res.Data == nil {
		res.Data = make(map[string]any)
	}
	res.Data["project"] = next
	if len(conflicts) > 0 {
		res.Data["conflicts"] = conflicts
	}
	return res
}

func (o *Orchestrator) publish(subject string, payload any) {
	if o.bus == nil {
		return
	}
	if err := o.bus.Publish(subject, payload); err != nil {
		o.logger.Warn("event emission failed", zap.String("subject", subject), zap.Error(err))
	}
}
