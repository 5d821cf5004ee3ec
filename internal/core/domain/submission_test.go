package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/topoplan/internal/core/topology"
)

func testPlan() *topology.Plan {
	return &topology.Plan{
		Order:    []string{"db", "mc", "rs"},
		Warnings: []topology.Warning{{Kind: topology.WarningUnboundTarget, Message: "listener 80 targets mc:9090"}},
	}
}

// =============================================================================
// Submission Creation Tests
// =============================================================================

func TestNewSubmission(t *testing.T) {
	plan := testPlan()
	sub, err := NewSubmission("RPA", plan)
	require.NoError(t, err)

	assert.NotEmpty(t, sub.ID)
	assert.True(t, strings.HasPrefix(sub.Name, "rpa-"), sub.Name)
	assert.Equal(t, StatePending, sub.Status)
	assert.Equal(t, []string{"db", "mc", "rs"}, sub.Order)
	assert.Len(t, sub.Warnings, 1)
	assert.Zero(t, sub.Progress)
	assert.NotZero(t, sub.CreatedAt)
	assert.Nil(t, sub.StartedAt)

	plan.Order[0] = "changed"
	assert.Equal(t, "db", sub.Order[0])
}

func TestNewSubmission_EmptyPlan(t *testing.T) {
	_, err := NewSubmission("x", &topology.Plan{})
	assert.ErrorIs(t, err, ErrEmptyPlan)

	_, err = NewSubmission("x", nil)
	assert.ErrorIs(t, err, ErrEmptyPlan)
}

func TestGenerateSubmissionName(t *testing.T) {
	name := GenerateSubmissionName("rpa")
	assert.Len(t, name, len("rpa-")+6)
	assert.NotEqual(t, name, GenerateSubmissionName("rpa"))

	assert.True(t, strings.HasPrefix(GenerateSubmissionName("!!!"), "topology-"))
}

// =============================================================================
// State Machine Tests
// =============================================================================

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		from, to ProvisioningState
		valid    bool
	}{
		{StatePending, StateRunning, true},
		{StatePending, StateFailed, true},
		{StateRunning, StateSucceeded, true},
		{StateRunning, StateFailed, true},
		{StatePending, StateSucceeded, false},
		{StateRunning, StatePending, false},
		{StateFailed, StateRunning, false},
		{StateSucceeded, StateFailed, false},
		{"unknown", StateRunning, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			err := ValidateTransition(tt.from, tt.to)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidTransition)
			}
		})
	}
}

func TestSubmission_Lifecycle(t *testing.T) {
	sub, err := NewSubmission("rpa", testPlan())
	require.NoError(t, err)

	assert.ErrorIs(t, sub.Advance(), ErrInvalidTransition)

	require.NoError(t, sub.Transition(StateRunning))
	assert.NotNil(t, sub.StartedAt)
	assert.Equal(t, []string{"db", "mc", "rs"}, sub.Remaining())

	require.NoError(t, sub.Advance())
	require.NoError(t, sub.Advance())
	assert.Equal(t, []string{"rs"}, sub.Remaining())
	assert.False(t, sub.Done())

	require.NoError(t, sub.Advance())
	assert.True(t, sub.Done())
	assert.Nil(t, sub.Remaining())
	assert.ErrorIs(t, sub.Advance(), ErrProgressOverflow)

	require.NoError(t, sub.Transition(StateSucceeded))
	assert.NotNil(t, sub.FinishedAt)
	assert.True(t, sub.Status.Terminal())
	assert.ErrorIs(t, sub.Transition(StateFailed), ErrInvalidTransition)
}

func TestSubmission_Fail(t *testing.T) {
	sub, err := NewSubmission("rpa", testPlan())
	require.NoError(t, err)
	require.NoError(t, sub.Transition(StateRunning))

	require.NoError(t, sub.Fail("image pull failed"))
	assert.Equal(t, StateFailed, sub.Status)
	assert.Equal(t, "image pull failed", sub.ErrorMessage)
	assert.NotNil(t, sub.FinishedAt)

	assert.ErrorIs(t, sub.Fail("again"), ErrInvalidTransition)
	assert.Equal(t, "image pull failed", sub.ErrorMessage)
}

func TestProvisioningState_Valid(t *testing.T) {
	assert.True(t, StatePending.Valid())
	assert.True(t, StateSucceeded.Valid())
	assert.False(t, ProvisioningState("deleted").Valid())
}
