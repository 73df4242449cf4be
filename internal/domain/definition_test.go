package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefinitionLifecycle(t *testing.T) {
	now := time.Now().UTC()
	def := testDefinition(t)

	assert.Equal(t, DefinitionStatusDraft, def.Status)
	assert.Equal(t, 1, def.Version)

	require.NoError(t, def.Update("Expense Approval v2", "desc", json.RawMessage(twoStageDoc), now))
	assert.Equal(t, 2, def.Version)

	err := def.Archive(now)
	assert.True(t, IsBadRequest(err))
	assert.Equal(t, 2, def.Version)

	require.NoError(t, def.Publish(now))
	assert.Equal(t, DefinitionStatusPublished, def.Status)
	assert.Equal(t, 3, def.Version)

	// published definitions are frozen
	err = def.Update("nope", "", nil, now)
	assert.True(t, IsBadRequest(err))
	err = def.Publish(now)
	assert.True(t, IsBadRequest(err))
	assert.True(t, IsBadRequest(def.CanDelete()))
	assert.Equal(t, 3, def.Version)

	require.NoError(t, def.Archive(now))
	assert.Equal(t, DefinitionStatusArchived, def.Status)
	assert.Equal(t, 4, def.Version)
}

func TestValidateWorkflowName(t *testing.T) {
	assert.Error(t, ValidateWorkflowName(""))
	assert.NoError(t, ValidateWorkflowName(strings.Repeat("x", 200)))
	assert.Error(t, ValidateWorkflowName(strings.Repeat("x", 201)))
	// multibyte names count runes, not bytes
	assert.NoError(t, ValidateWorkflowName(strings.Repeat("あ", 200)))
}

func TestNewWorkflowComment(t *testing.T) {
	now := time.Now().UTC()
	tenant := uuid.Must(uuid.NewV7())
	instance := uuid.Must(uuid.NewV7())
	user := uuid.Must(uuid.NewV7())

	c, err := NewWorkflowComment(tenant, instance, user, "ship it", now)
	require.NoError(t, err)
	assert.Equal(t, "ship it", c.Body)

	_, err = NewWorkflowComment(tenant, instance, user, "", now)
	assert.True(t, IsBadRequest(err))

	_, err = NewWorkflowComment(tenant, instance, user, strings.Repeat("x", 2001), now)
	assert.True(t, IsBadRequest(err))

	_, err = NewWorkflowComment(tenant, instance, user, strings.Repeat("x", 2000), now)
	assert.NoError(t, err)
}

func TestErrorKinds(t *testing.T) {
	assert.True(t, IsNotFound(NotFound("workflow instance", "x")))
	assert.True(t, IsConflict(Conflict("stale")))
	assert.True(t, IsForbidden(Forbidden("no")))
	assert.True(t, IsBadRequest(BadRequest("bad")))
	assert.Equal(t, KindInternal, KindOf(assertAnError()))
}

func assertAnError() error { return json.Unmarshal([]byte("{"), &struct{}{}) }
