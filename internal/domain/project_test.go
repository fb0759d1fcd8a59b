package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePhase(t *testing.T) {
	p, err := ParsePhase("Design")
	require.NoError(t, err)
	assert.Equal(t, PhaseDesign, p)

	_, err = ParsePhase("launch")
	require.Error(t, err)
	assert.True(t, IsKind(err, KindValidation))
}

func TestPhaseOrdering(t *testing.T) {
	assert.True(t, PhaseDiscovery < PhaseAnalysis)
	assert.True(t, PhaseTesting < PhaseDeployment)
}

func testProject() *ProjectContext {
	return &ProjectContext{
		ID:           "proj-1",
		OwnerID:      "user-1",
		Name:         "inventory service",
		Phase:        PhaseDesign,
		TechStack:    []string{"go", "postgres"},
		Requirements: []string{"must support 100 req/s"},
		CreatedAt:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestApplyDelta_AddsFields(t *testing.T) {
	now := time.Now()
	phase := PhaseImplementation
	delta := &ContextDelta{
		Phase:           &phase,
		AddTechStack:    []string{"Redis"},
		AddRequirements: []string{"p99 latency under 200ms"},
		AddGoals:        []string{"ship mvp"},
	}

	current := testProject()
	next, err := ApplyDelta(current, delta, now)
	require.NoError(t, err)

	assert.Equal(t, PhaseImplementation, next.Phase)
	assert.Contains(t, next.TechStack, "redis")
	assert.Contains(t, next.Requirements, "p99 latency under 200ms")
	assert.Equal(t, []string{"ship mvp"}, next.Goals)
	assert.Equal(t, now, next.UpdatedAt)

	// Input untouched.
	assert.Equal(t, PhaseDesign, current.Phase)
	assert.Len(t, current.TechStack, 2)
}

func TestApplyDelta_PhaseBackwardsRejected(t *testing.T) {
	phase := PhaseDiscovery
	_, err := ApplyDelta(testProject(), &ContextDelta{Phase: &phase}, time.Now())
	require.Error(t, err)
	assert.True(t, IsKind(err, KindValidation))
}

func TestApplyDelta_PhaseRevertAllowed(t *testing.T) {
	phase := PhaseAnalysis
	next, err := ApplyDelta(testProject(), &ContextDelta{Phase: &phase, PhaseRevert: true}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, PhaseAnalysis, next.Phase)
}

func TestApplyDelta_EmptyDelta(t *testing.T) {
	_, err := ApplyDelta(testProject(), &ContextDelta{}, time.Now())
	require.Error(t, err)
	assert.True(t, IsKind(err, KindValidation))
}

func TestApplyDelta_MaturityClamped(t *testing.T) {
	high := 250
	next, err := ApplyDelta(testProject(), &ContextDelta{MaturityScore: &high}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, MaxMaturity, next.MaturityScore)

	low := -5
	next, err = ApplyDelta(testProject(), &ContextDelta{MaturityScore: &low}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, next.MaturityScore)
}

func TestApplyDelta_DuplicatesIgnored(t *testing.T) {
	delta := &ContextDelta{
		AddTechStack:    []string{"Postgres"},
		AddRequirements: []string{"MUST SUPPORT 100 req/s"},
	}
	next, err := ApplyDelta(testProject(), delta, time.Now())
	require.NoError(t, err)
	assert.Len(t, next.TechStack, 2)
	assert.Len(t, next.Requirements, 1)
}

// A delta that doesn't touch the tech stack must not rewrite its stored
// casing or order.
func TestApplyDelta_UntouchedTechStackKeptVerbatim(t *testing.T) {
	current := testProject()
	current.TechStack = []string{"Redis", "PostgreSQL"}

	name := "renamed service"
	next, err := ApplyDelta(current, &ContextDelta{Name: &name}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, []string{"Redis", "PostgreSQL"}, next.TechStack)

	maturity := 40
	next, err = ApplyDelta(current, &ContextDelta{
		MaturityScore: &maturity,
		AddGoals:      []string{"ship mvp"},
	}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, []string{"Redis", "PostgreSQL"}, next.TechStack)
}

func TestApplyDelta_RemoveTechStack(t *testing.T) {
	delta := &ContextDelta{RemoveTechStack: []string{"postgres"}}
	next, err := ApplyDelta(testProject(), delta, time.Now())
	require.NoError(t, err)
	assert.Equal(t, []string{"go"}, next.TechStack)
}

func TestClone_Independent(t *testing.T) {
	p := testProject()
	p.Collaborators = map[string]string{"bob": "editor"}
	cp := p.Clone()

	cp.TechStack[0] = "rust"
	cp.Collaborators["bob"] = "viewer"

	assert.Equal(t, "go", p.TechStack[0])
	assert.Equal(t, "editor", p.Collaborators["bob"])
}
