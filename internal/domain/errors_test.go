package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapError_NeverDoubleWraps(t *testing.T) {
	inner := NewError(KindUpstreamUnavailable, "completion timed out")
	wrapped := WrapError(KindStorage, inner, "persisting result")

	// The original kind survives.
	k, ok := KindOf(wrapped)
	require.True(t, ok)
	assert.Equal(t, KindUpstreamUnavailable, k)
}

func TestWrapError_PreservesOriginalMessage(t *testing.T) {
	cause := fmt.Errorf("disk I/O error on page 42")
	wrapped := WrapError(KindStorage, cause, "updating project")

	assert.Contains(t, wrapped.Error(), "disk I/O error on page 42")
	assert.True(t, errors.Is(wrapped, cause))
}

func TestWrapError_NilPassthrough(t *testing.T) {
	assert.NoError(t, WrapError(KindStorage, nil, "noop"))
}

func TestBlockedError_CarriesConflicts(t *testing.T) {
	conflicts := []ConflictInfo{
		{Category: "tech_stack", Severity: SeverityBlocking},
		{Category: "requirements", Severity: SeverityWarning},
	}
	err := BlockedError(conflicts)

	assert.Equal(t, KindConflictBlocked, err.Kind)
	assert.Len(t, err.Conflicts, 2)
	assert.Contains(t, err.Message, "1 conflict")
}

func TestFail_ClassifiesUntypedAsStorage(t *testing.T) {
	res := Fail(fmt.Errorf("unexpected"))
	require.NotNil(t, res.Err)
	assert.Equal(t, StatusError, res.Status)
	assert.Equal(t, KindStorage, res.Err.Kind)
	assert.Contains(t, res.Err.Message, "unexpected")
}

func TestFail_ConflictListReachesResult(t *testing.T) {
	res := Fail(BlockedError([]ConflictInfo{{Category: "goals", Severity: SeverityBlocking}}))
	require.NotNil(t, res.Err)
	assert.Equal(t, KindConflictBlocked, res.Err.Kind)
	assert.Len(t, res.Err.Conflicts, 1)
}

func TestIsKind(t *testing.T) {
	err := Errorf(KindValidation, "bad %s", "param")
	assert.True(t, IsKind(err, KindValidation))
	assert.False(t, IsKind(err, KindStorage))
	assert.False(t, IsKind(errors.New("plain"), KindStorage))
}
