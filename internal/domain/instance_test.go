package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDefinition(t *testing.T) *WorkflowDefinition {
	t.Helper()
	def, err := NewWorkflowDefinition(
		uuid.Must(uuid.NewV7()), "Expense Approval", "",
		json.RawMessage(twoStageDoc), uuid.Must(uuid.NewV7()), time.Now().UTC())
	require.NoError(t, err)
	return def
}

func testInstance(t *testing.T) *WorkflowInstance {
	t.Helper()
	def := testDefinition(t)
	instance, err := NewWorkflowInstance(
		def.TenantID, def, 1, "Team offsite", nil,
		uuid.Must(uuid.NewV7()), time.Now().UTC())
	require.NoError(t, err)
	return instance
}

func TestNewWorkflowInstance(t *testing.T) {
	def := testDefinition(t)
	now := time.Now().UTC()

	instance, err := NewWorkflowInstance(def.TenantID, def, 7, "Laptop purchase", nil, uuid.Must(uuid.NewV7()), now)
	require.NoError(t, err)
	assert.Equal(t, InstanceStatusDraft, instance.Status)
	assert.Equal(t, 1, instance.Version)
	assert.Equal(t, int64(7), instance.DisplayNumber)
	assert.Equal(t, def.Version, instance.DefinitionVersion)
	assert.Empty(t, instance.CurrentStepID)
	assert.Nil(t, instance.SubmittedAt)

	_, err = NewWorkflowInstance(def.TenantID, def, 8, "", nil, uuid.Must(uuid.NewV7()), now)
	assert.True(t, IsBadRequest(err))
}

func TestInstanceSubmit(t *testing.T) {
	instance := testInstance(t)
	now := time.Now().UTC()

	require.NoError(t, instance.Submit("manager", now))
	assert.Equal(t, InstanceStatusInProgress, instance.Status)
	assert.Equal(t, "manager", instance.CurrentStepID)
	assert.Equal(t, 2, instance.Version)
	require.NotNil(t, instance.SubmittedAt)

	// a second submit is rejected and leaves the version untouched
	err := instance.Submit("manager", now)
	assert.True(t, IsBadRequest(err))
	assert.Equal(t, 2, instance.Version)
}

func TestInstanceComplete(t *testing.T) {
	instance := testInstance(t)
	now := time.Now().UTC()
	require.NoError(t, instance.Submit("manager", now))

	err := instance.Complete(InstanceStatusDraft, now)
	assert.True(t, IsBadRequest(err))
	assert.Equal(t, 2, instance.Version)

	require.NoError(t, instance.Complete(InstanceStatusApproved, now))
	assert.Equal(t, InstanceStatusApproved, instance.Status)
	assert.Empty(t, instance.CurrentStepID)
	assert.Equal(t, 3, instance.Version)
	require.NotNil(t, instance.CompletedAt)

	err = instance.Complete(InstanceStatusRejected, now)
	assert.True(t, IsBadRequest(err))
}

func TestInstanceRequestChangesAndResubmit(t *testing.T) {
	instance := testInstance(t)
	now := time.Now().UTC()
	require.NoError(t, instance.Submit("manager", now))

	require.NoError(t, instance.RequestChanges(now))
	assert.Equal(t, InstanceStatusChangesRequested, instance.Status)
	assert.Empty(t, instance.CurrentStepID)
	assert.Equal(t, 3, instance.Version)
	// ChangesRequested is not terminal
	assert.Nil(t, instance.CompletedAt)

	updated := json.RawMessage(`{"amount": 99}`)
	require.NoError(t, instance.Resubmit(updated, "manager", now))
	assert.Equal(t, InstanceStatusInProgress, instance.Status)
	assert.Equal(t, "manager", instance.CurrentStepID)
	assert.Equal(t, 4, instance.Version)
	assert.Equal(t, updated, instance.FormData)

	err := instance.Resubmit(updated, "manager", now)
	assert.True(t, IsBadRequest(err))
	assert.Equal(t, 4, instance.Version)
}

func TestInstanceStatusTerminal(t *testing.T) {
	assert.True(t, InstanceStatusApproved.Terminal())
	assert.True(t, InstanceStatusRejected.Terminal())
	assert.False(t, InstanceStatusDraft.Terminal())
	assert.False(t, InstanceStatusInProgress.Terminal())
	assert.False(t, InstanceStatusChangesRequested.Terminal())
}

func TestParseInstanceStatus(t *testing.T) {
	status, err := ParseInstanceStatus("in_progress")
	require.NoError(t, err)
	assert.Equal(t, InstanceStatusInProgress, status)

	_, err = ParseInstanceStatus("paused")
	assert.True(t, IsBadRequest(err))
}
