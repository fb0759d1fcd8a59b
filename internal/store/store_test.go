package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fyrsmithlabs/tutord/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("", zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_InMemory(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Ping(context.Background()))
}

func TestUsers_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := &domain.User{
		ID:          uuid.NewString(),
		Username:    "alice",
		DisplayName: "Alice",
		Preferences: map[string]string{"theme": "dark"},
		Tier:        domain.TierPro,
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, s.CreateUser(ctx, u))

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, "dark", got.Preferences["theme"])
	assert.Equal(t, domain.TierPro, got.Tier)

	byName, err := s.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byName.ID)

	got.DisplayName = "Alice L."
	require.NoError(t, s.UpdateUser(ctx, got))
	updated, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice L.", updated.DisplayName)
}

func TestUsers_DuplicateUsernameRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := &domain.User{ID: uuid.NewString(), Username: "bob", Tier: domain.TierFree, CreatedAt: time.Now()}
	require.NoError(t, s.CreateUser(ctx, u))

	dup := &domain.User{ID: uuid.NewString(), Username: "bob", Tier: domain.TierFree, CreatedAt: time.Now()}
	assert.Error(t, s.CreateUser(ctx, dup))
}

func TestGetUser_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetUser(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func seedProject(t *testing.T, s *Store, owner string) *domain.ProjectContext {
	t.Helper()
	p := &domain.ProjectContext{
		ID:            uuid.NewString(),
		OwnerID:       owner,
		Name:          "test project",
		Phase:         domain.PhaseDiscovery,
		TechStack:     []string{"go", "postgres"},
		Requirements:  []string{"must support 100 req/s"},
		Collaborators: map[string]string{"carol": "editor"},
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	require.NoError(t, s.CreateProject(context.Background(), p))
	return p
}

func TestProjects_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := seedProject(t, s, "owner-1")

	got, err := s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Name, got.Name)
	assert.Equal(t, []string{"go", "postgres"}, got.TechStack)
	assert.Equal(t, "editor", got.Collaborators["carol"])
	assert.False(t, got.Archived)
}

func TestProjects_UpdatePersistsExactDeltaFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := seedProject(t, s, "owner-1")

	next, err := domain.ApplyDelta(p, &domain.ContextDelta{
		AddTechStack: []string{"redis"},
		AddGoals:     []string{"ship mvp"},
	}, time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, s.UpdateProject(ctx, next))

	got, err := s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"go", "postgres", "redis"}, got.TechStack)
	assert.Equal(t, []string{"ship mvp"}, got.Goals)
	// Fields absent from the delta are untouched.
	assert.Equal(t, p.Requirements, got.Requirements)
	assert.Equal(t, p.Name, got.Name)
}

func TestProjects_ArchiveIsLogical(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := seedProject(t, s, "owner-1")

	require.NoError(t, s.SetArchived(ctx, p.ID, true))

	// The row still exists.
	got, err := s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.Archived)

	// But it no longer shows in the active list.
	active, err := s.ListProjectsByOwner(ctx, "owner-1", false)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := s.ListProjectsByOwner(ctx, "owner-1", true)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestProjects_CollaboratorMembershipQuery(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := seedProject(t, s, "owner-1")
	seedProject(t, s, "owner-2")

	projects, err := s.ListProjectsByCollaborator(ctx, "carol")
	require.NoError(t, err)
	require.Len(t, projects, 2)

	// Archiving hides the project from membership queries too.
	require.NoError(t, s.SetArchived(ctx, p.ID, true))
	projects, err = s.ListProjectsByCollaborator(ctx, "carol")
	require.NoError(t, err)
	assert.Len(t, projects, 1)
}

func TestKnowledge_StatusProtocol(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := &domain.KnowledgeEntry{
		ID:        uuid.NewString(),
		ProjectID: "proj-1",
		Title:     "chunk 1",
		Content:   "some reference text",
		Tags:      []string{"docs"},
		Status:    domain.EntryPending,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.InsertEntry(ctx, e))

	pending, err := s.ListEntriesByStatus(ctx, domain.EntryPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	vec := []float32{0.1, 0.2, 0.3}
	require.NoError(t, s.MarkEntryReady(ctx, e.ID, vec))

	got, err := s.GetEntry(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EntryReady, got.Status)
	assert.InDeltaSlice(t, vec, got.Embedding, 1e-6)

	require.NoError(t, s.MarkEntryTombstoned(ctx, e.ID))
	got, err = s.GetEntry(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EntryTombstoned, got.Status)
}

func TestKnowledge_AttemptsAndPurge(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := &domain.KnowledgeEntry{
		ID: uuid.NewString(), Title: "t", Content: "c",
		Status: domain.EntryPending, CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.InsertEntry(ctx, e))

	n, err := s.IncrementEntryAttempts(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = s.IncrementEntryAttempts(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, s.DeleteEntry(ctx, e.ID))
	_, err = s.GetEntry(ctx, e.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConflicts_InsertListTransition(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	conflicts := []domain.ConflictInfo{
		{
			ID: uuid.NewString(), ProjectID: "proj-1", Category: "tech_stack",
			Field: "tech_stack", Previous: "postgres", Proposed: "mongodb",
			Severity: domain.SeverityBlocking, DetectedAt: time.Now().UTC(),
			Resolution: domain.ResolutionOpen,
		},
		{
			ID: uuid.NewString(), ProjectID: "proj-1", Category: "requirements",
			Field: "requirements", Proposed: "best effort",
			Severity: domain.SeverityWarning, DetectedAt: time.Now().UTC(),
			Resolution: domain.ResolutionOpen,
		},
	}
	require.NoError(t, s.InsertConflicts(ctx, conflicts))

	open, err := s.ListConflictsByProject(ctx, "proj-1", true)
	require.NoError(t, err)
	assert.Len(t, open, 2)

	require.NoError(t, s.TransitionConflict(ctx, conflicts[0].ID, domain.ResolutionDismissed))
	open, err = s.ListConflictsByProject(ctx, "proj-1", true)
	require.NoError(t, err)
	assert.Len(t, open, 1)

	all, err := s.ListConflictsByProject(ctx, "proj-1", false)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestUsage_AppendAndSummarize(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.InsertUsage(ctx, domain.TokenUsage{
			Provider: "openai", Model: "gpt-4o-mini",
			InputTokens: 100, OutputTokens: 50, CostUSD: 0.001,
			RequestID: uuid.NewString(), Timestamp: now,
		}))
	}
	require.NoError(t, s.InsertUsage(ctx, domain.TokenUsage{
		Provider: "openai", Model: "bge-small",
		InputTokens: 20, OutputTokens: 0,
		RequestID: uuid.NewString(), Timestamp: now,
	}))

	summary, err := s.SummarizeUsage(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(4), summary.Requests)
	assert.Equal(t, int64(320), summary.TotalInput)
	assert.Equal(t, int64(150), summary.TotalOutput)
	assert.Equal(t, int64(300), summary.ByModel["gpt-4o-mini"].Input)
}

func TestVectorBytes_RoundTrip(t *testing.T) {
	vec := []float32{0.5, -1.25, 3.75}
	assert.Equal(t, vec, vectorFromBytes(vectorBytes(vec)))
	assert.Nil(t, vectorBytes(nil))
	assert.Nil(t, vectorFromBytes(nil))
}
