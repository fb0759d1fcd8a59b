package agent

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tutord/internal/domain"
	"github.com/fyrsmithlabs/tutord/internal/store"
)

// UserAgent manages platform accounts. Credential verification lives
// outside this system; the agent only keeps account records.
type UserAgent struct {
	store  *store.Store
	logger *zap.Logger
	now    func() time.Time
}

// NewUserAgent creates the user agent.
func NewUserAgent(st *store.Store, logger *zap.Logger) *UserAgent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserAgent{store: st, logger: logger.Named("agent.user"), now: time.Now}
}

// Capability implements Agent.
func (a *UserAgent) Capability() string { return "user" }

// MutatingActions implements Agent.
func (a *UserAgent) MutatingActions() []string { return nil }

// Handle implements Agent.
func (a *UserAgent) Handle(ctx context.Context, action string, params map[string]any) (*domain.Result, error) {
	switch action {
	case "register":
		return a.register(ctx, params)
	case "update":
		return a.update(ctx, params)
	case "get":
		return a.get(ctx, params)
	default:
		return nil, unsupportedAction(a.Capability(), action)
	}
}

func (a *UserAgent) register(ctx context.Context, params map[string]any) (*domain.Result, error) {
	username, err := stringParam(params, "username")
	if err != nil {
		return nil, err
	}
	if _, err := a.store.GetUserByUsername(ctx, username); err == nil {
		return nil, domain.Errorf(domain.KindValidation, "username %q is taken", username)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, domain.WrapError(domain.KindStorage, err, "checking username")
	}

	tier := domain.Tier(optionalString(params, "tier"))
	if tier == "" {
		tier = domain.TierFree
	}
	user := &domain.User{
		ID:          uuid.NewString(),
		Username:    username,
		DisplayName: optionalString(params, "display_name"),
		Preferences: stringMapParam(params, "preferences"),
		Tier:        tier,
		CreatedAt:   a.now().UTC(),
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}
	if err := a.store.CreateUser(ctx, user); err != nil {
		return nil, domain.WrapError(domain.KindStorage, err, "creating user")
	}
	a.logger.Info("user registered", zap.String("user_id", user.ID), zap.String("username", username))
	return domain.OK(map[string]any{"user": user}), nil
}

func (a *UserAgent) update(ctx context.Context, params map[string]any) (*domain.Result, error) {
	id, err := stringParam(params, "user_id")
	if err != nil {
		return nil, err
	}
	user, err := a.store.GetUser(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domain.Errorf(domain.KindValidation, "user %s not found", id)
	}
	if err != nil {
		return nil, domain.WrapError(domain.KindStorage, err, "loading user")
	}

	if name, ok := params["display_name"].(string); ok {
		user.DisplayName = name
	}
	if tier := optionalString(params, "tier"); tier != "" {
		user.Tier = domain.Tier(tier)
	}
	if prefs := stringMapParam(params, "preferences"); prefs != nil {
		if user.Preferences == nil {
			user.Preferences = make(map[string]string, len(prefs))
		}
		for k, v := range prefs {
			user.Preferences[k] = v
		}
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}
	if err := a.store.UpdateUser(ctx, user); err != nil {
		return nil, domain.WrapError(domain.KindStorage, err, "updating user")
	}
	return domain.OK(map[string]any{"user": user}), nil
}

// get looks a user up by user_id or, failing that, username.
func (a *UserAgent) get(ctx context.Context, params map[string]any) (*domain.Result, error) {
	var user *domain.User
	var err error
	switch {
	case optionalString(params, "user_id") != "":
		user, err = a.store.GetUser(ctx, optionalString(params, "user_id"))
	case optionalString(params, "username") != "":
		user, err = a.store.GetUserByUsername(ctx, optionalString(params, "username"))
	default:
		return nil, domain.NewError(domain.KindValidation, "user_id or username required")
	}
	if errors.Is(err, store.ErrNotFound) {
		return nil, domain.NewError(domain.KindValidation, "user not found")
	}
	if err != nil {
		return nil, domain.WrapError(domain.KindStorage, err, "loading user")
	}
	return domain.OK(map[string]any{"user": user}), nil
}

func stringMapParam(params map[string]any, key string) map[string]string {
	raw := mapParam(params, key)
	if raw == nil {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
