package engine

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"approvalflow/backend/internal/domain"
	"approvalflow/backend/internal/notify"
	"approvalflow/backend/internal/repository/fake"
)

const twoStageDoc = `{
	"steps": [
		{"id": "start", "type": "start", "name": "Start"},
		{"id": "manager", "type": "approval", "name": "Manager Review"},
		{"id": "finance", "type": "approval", "name": "Finance Review"},
		{"id": "end_approved", "type": "end", "name": "Approved", "status": "approved"},
		{"id": "end_rejected", "type": "end", "name": "Rejected", "status": "rejected"}
	],
	"transitions": [
		{"from": "start", "to": "manager"},
		{"from": "manager", "to": "finance", "trigger": "approve"},
		{"from": "manager", "to": "end_rejected", "trigger": "reject"},
		{"from": "finance", "to": "end_approved", "trigger": "approve"},
		{"from": "finance", "to": "end_rejected", "trigger": "reject"}
	]
}`

const singleStageDoc = `{
	"steps": [
		{"id": "start", "type": "start", "name": "Start"},
		{"id": "review", "type": "approval", "name": "Review"},
		{"id": "end_approved", "type": "end", "name": "Approved", "status": "approved"},
		{"id": "end_rejected", "type": "end", "name": "Rejected", "status": "rejected"}
	],
	"transitions": [
		{"from": "start", "to": "review"},
		{"from": "review", "to": "end_approved", "trigger": "approve"},
		{"from": "review", "to": "end_rejected", "trigger": "reject"}
	]
}`

// recordingSink captures emitted events for assertions.
type recordingSink struct {
	mu     sync.Mutex
	events []string
}

func (s *recordingSink) Notify(_ context.Context, event string, _, _ uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...)
}

type fixture struct {
	engine   *Engine
	defs     *DefinitionService
	sink     *recordingSink
	tenantID uuid.UUID
	userID   uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := fake.NewStore()
	sink := &recordingSink{}
	clock := domain.FixedClock{T: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	eng := New(Deps{
		Definitions: store.Definitions(),
		Instances:   store.Instances(),
		Steps:       store.Steps(),
		Comments:    store.Comments(),
		Numbers:     store.DisplayNumbers(),
		Tx:          store.Tx(),
		Sink:        sink,
		Clock:       clock,
	})
	return &fixture{
		engine:   eng,
		defs:     NewDefinitionService(store.Definitions(), clock),
		sink:     sink,
		tenantID: uuid.Must(uuid.NewV7()),
		userID:   uuid.Must(uuid.NewV7()),
	}
}

// publishedDefinition creates and publishes a definition for the fixture
// tenant.
func (f *fixture) publishedDefinition(t *testing.T, doc string) *domain.WorkflowDefinition {
	t.Helper()
	ctx := context.Background()
	def, err := f.defs.Create(ctx, CreateDefinitionInput{
		TenantID:   f.tenantID,
		Name:       "Expense Approval",
		Definition: json.RawMessage(doc),
		UserID:     f.userID,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, def.Version)

	def, err = f.defs.Publish(ctx, f.tenantID, def.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, def.Version)
	assert.Equal(t, domain.DefinitionStatusPublished, def.Status)
	return def
}

func TestEndToEndSingleApproval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	def := f.publishedDefinition(t, singleStageDoc)
	approver := uuid.Must(uuid.NewV7())

	agg, err := f.engine.CreateInstance(ctx, CreateInstanceInput{
		TenantID:     f.tenantID,
		DefinitionID: def.ID,
		Title:        "Team offsite",
		FormData:     json.RawMessage(`{"amount": 1200}`),
		UserID:       f.userID,
	})
	require.NoError(t, err)
	instance := agg.Instance
	assert.Equal(t, domain.InstanceStatusDraft, instance.Status)
	assert.Equal(t, 1, instance.Version)
	assert.Equal(t, int64(1), instance.DisplayNumber)
	assert.Equal(t, def.Version, instance.DefinitionVersion)
	assert.Empty(t, agg.Steps)

	agg, err = f.engine.Submit(ctx, SubmitInput{
		TenantID:    f.tenantID,
		InstanceID:  instance.ID,
		Assignments: map[string]uuid.UUID{"review": approver},
		UserID:      f.userID,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.InstanceStatusInProgress, agg.Instance.Status)
	assert.Equal(t, 2, agg.Instance.Version)
	assert.Equal(t, "review", agg.Instance.CurrentStepID)
	require.NotNil(t, agg.Instance.SubmittedAt)
	require.Len(t, agg.Steps, 1)
	step := agg.Steps[0]
	assert.Equal(t, domain.StepStatusActive, step.Status)
	assert.Equal(t, approver, step.AssignedTo)

	agg, err = f.engine.Decide(ctx, DecideInput{
		TenantID:        f.tenantID,
		StepID:          step.ID,
		Trigger:         domain.TriggerApprove,
		ExpectedVersion: step.Version,
		Comment:         "approved",
		UserID:          approver,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.InstanceStatusApproved, agg.Instance.Status)
	assert.Equal(t, 3, agg.Instance.Version)
	assert.Empty(t, agg.Instance.CurrentStepID)
	require.NotNil(t, agg.Instance.CompletedAt)
	require.Len(t, agg.Steps, 1)
	assert.Equal(t, domain.StepStatusDecided, agg.Steps[0].Status)
	assert.Equal(t, domain.StepDecisionApproved, agg.Steps[0].Decision)

	assert.Equal(t, []string{
		notify.EventWorkflowSubmitted,
		notify.EventStepApproved,
		notify.EventWorkflowApproved,
	}, f.sink.all())
}

func TestEndToEndTwoStageWithAdvance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	def := f.publishedDefinition(t, twoStageDoc)
	manager := uuid.Must(uuid.NewV7())
	finance := uuid.Must(uuid.NewV7())

	agg, err := f.engine.CreateInstance(ctx, CreateInstanceInput{
		TenantID: f.tenantID, DefinitionID: def.ID, Title: "Laptop", UserID: f.userID,
	})
	require.NoError(t, err)

	agg, err = f.engine.Submit(ctx, SubmitInput{
		TenantID:   f.tenantID,
		InstanceID: agg.Instance.ID,
		Assignments: map[string]uuid.UUID{
			"manager": manager,
			"finance": finance,
		},
		UserID: f.userID,
	})
	require.NoError(t, err)
	require.Len(t, agg.Steps, 2)
	assert.Equal(t, domain.StepStatusActive, agg.Steps[0].Status)
	assert.Equal(t, domain.StepStatusPending, agg.Steps[1].Status)

	// manager approves, routing to the finance step
	agg, err = f.engine.Decide(ctx, DecideInput{
		TenantID:        f.tenantID,
		StepID:          agg.Steps[0].ID,
		Trigger:         domain.TriggerApprove,
		ExpectedVersion: agg.Steps[0].Version,
		UserID:          manager,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.InstanceStatusInProgress, agg.Instance.Status)
	assert.Equal(t, "finance", agg.Instance.CurrentStepID)
	assert.Equal(t, 3, agg.Instance.Version)
	require.Len(t, agg.Steps, 2)
	assert.Equal(t, domain.StepStatusDecided, agg.Steps[0].Status)
	assert.Equal(t, domain.StepStatusActive, agg.Steps[1].Status)

	// finance rejects, terminating the workflow
	agg, err = f.engine.Decide(ctx, DecideInput{
		TenantID:        f.tenantID,
		StepID:          agg.Steps[1].ID,
		Trigger:         domain.TriggerReject,
		ExpectedVersion: agg.Steps[1].Version,
		Comment:         "over budget",
		UserID:          finance,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.InstanceStatusRejected, agg.Instance.Status)
	assert.Empty(t, agg.Instance.CurrentStepID)
	assert.Equal(t, domain.StepDecisionRejected, agg.Steps[1].Decision)
}

func TestDecideConflictExactlyOneWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	def := f.publishedDefinition(t, singleStageDoc)
	approver := uuid.Must(uuid.NewV7())

	agg, err := f.engine.CreateInstance(ctx, CreateInstanceInput{
		TenantID: f.tenantID, DefinitionID: def.ID, Title: "Race", UserID: f.userID,
	})
	require.NoError(t, err)
	agg, err = f.engine.Submit(ctx, SubmitInput{
		TenantID:    f.tenantID,
		InstanceID:  agg.Instance.ID,
		Assignments: map[string]uuid.UUID{"review": approver},
		UserID:      f.userID,
	})
	require.NoError(t, err)
	step := agg.Steps[0]

	in := DecideInput{
		TenantID:        f.tenantID,
		StepID:          step.ID,
		Trigger:         domain.TriggerApprove,
		ExpectedVersion: step.Version,
		UserID:          approver,
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.engine.Decide(ctx, in)
		}(i)
	}
	wg.Wait()

	var conflicts, successes int
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case domain.IsConflict(err):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, conflicts)
}

func TestDecideStaleVersionIsConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	def := f.publishedDefinition(t, singleStageDoc)
	approver := uuid.Must(uuid.NewV7())

	agg, err := f.engine.CreateInstance(ctx, CreateInstanceInput{
		TenantID: f.tenantID, DefinitionID: def.ID, Title: "Stale", UserID: f.userID,
	})
	require.NoError(t, err)
	agg, err = f.engine.Submit(ctx, SubmitInput{
		TenantID:    f.tenantID,
		InstanceID:  agg.Instance.ID,
		Assignments: map[string]uuid.UUID{"review": approver},
		UserID:      f.userID,
	})
	require.NoError(t, err)
	step := agg.Steps[0]

	_, err = f.engine.Decide(ctx, DecideInput{
		TenantID:        f.tenantID,
		StepID:          step.ID,
		Trigger:         domain.TriggerApprove,
		ExpectedVersion: step.Version - 1,
		UserID:          approver,
	})
	assert.True(t, domain.IsConflict(err))

	// the failed decide left everything untouched
	fresh, err := f.engine.Get(ctx, f.tenantID, agg.Instance.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InstanceStatusInProgress, fresh.Instance.Status)
	assert.Equal(t, step.Version, fresh.Steps[0].Version)
}

func TestDecideAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	def := f.publishedDefinition(t, singleStageDoc)
	approver := uuid.Must(uuid.NewV7())
	stranger := uuid.Must(uuid.NewV7())

	agg, err := f.engine.CreateInstance(ctx, CreateInstanceInput{
		TenantID: f.tenantID, DefinitionID: def.ID, Title: "Authz", UserID: f.userID,
	})
	require.NoError(t, err)
	agg, err = f.engine.Submit(ctx, SubmitInput{
		TenantID:    f.tenantID,
		InstanceID:  agg.Instance.ID,
		Assignments: map[string]uuid.UUID{"review": approver},
		UserID:      f.userID,
	})
	require.NoError(t, err)

	// neither the initiator nor a stranger may decide
	for _, user := range []uuid.UUID{f.userID, stranger} {
		_, err = f.engine.Decide(ctx, DecideInput{
			TenantID:        f.tenantID,
			StepID:          agg.Steps[0].ID,
			Trigger:         domain.TriggerApprove,
			ExpectedVersion: agg.Steps[0].Version,
			UserID:          user,
		})
		assert.True(t, domain.IsForbidden(err))
	}
}

func TestRequestChangesAndResubmit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	def := f.publishedDefinition(t, singleStageDoc)
	approver := uuid.Must(uuid.NewV7())

	agg, err := f.engine.CreateInstance(ctx, CreateInstanceInput{
		TenantID: f.tenantID, DefinitionID: def.ID, Title: "Revise me", UserID: f.userID,
	})
	require.NoError(t, err)
	instanceID := agg.Instance.ID

	agg, err = f.engine.Submit(ctx, SubmitInput{
		TenantID:    f.tenantID,
		InstanceID:  instanceID,
		Assignments: map[string]uuid.UUID{"review": approver},
		UserID:      f.userID,
	})
	require.NoError(t, err)

	// request-changes works without any matching graph edge
	agg, err = f.engine.Decide(ctx, DecideInput{
		TenantID:        f.tenantID,
		StepID:          agg.Steps[0].ID,
		Trigger:         domain.TriggerRequestChanges,
		ExpectedVersion: agg.Steps[0].Version,
		Comment:         "needs a cost breakdown",
		UserID:          approver,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.InstanceStatusChangesRequested, agg.Instance.Status)
	assert.Empty(t, agg.Instance.CurrentStepID)
	assert.Nil(t, agg.Instance.CompletedAt)
	assert.Equal(t, domain.StepDecisionRequestChanges, agg.Steps[0].Decision)

	// only the initiator may resubmit
	_, err = f.engine.Resubmit(ctx, ResubmitInput{
		TenantID:        f.tenantID,
		InstanceID:      instanceID,
		Assignments:     map[string]uuid.UUID{"review": approver},
		ExpectedVersion: agg.Instance.Version,
		UserID:          approver,
	})
	assert.True(t, domain.IsForbidden(err))

	agg, err = f.engine.Resubmit(ctx, ResubmitInput{
		TenantID:        f.tenantID,
		InstanceID:      instanceID,
		FormData:        json.RawMessage(`{"amount": 900, "breakdown": "attached"}`),
		Assignments:     map[string]uuid.UUID{"review": approver},
		ExpectedVersion: agg.Instance.Version,
		UserID:          f.userID,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.InstanceStatusInProgress, agg.Instance.Status)
	assert.Equal(t, "review", agg.Instance.CurrentStepID)
	// previous round's decided step stays as history next to the new one
	require.Len(t, agg.Steps, 2)

	var active int
	for _, s := range agg.Steps {
		if s.Status == domain.StepStatusActive {
			active++
		}
	}
	assert.Equal(t, 1, active)
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	def := f.publishedDefinition(t, twoStageDoc)

	agg, err := f.engine.CreateInstance(ctx, CreateInstanceInput{
		TenantID: f.tenantID, DefinitionID: def.ID, Title: "Incomplete", UserID: f.userID,
	})
	require.NoError(t, err)

	// missing an assignment for the finance node
	_, err = f.engine.Submit(ctx, SubmitInput{
		TenantID:    f.tenantID,
		InstanceID:  agg.Instance.ID,
		Assignments: map[string]uuid.UUID{"manager": uuid.Must(uuid.NewV7())},
		UserID:      f.userID,
	})
	assert.True(t, domain.IsBadRequest(err))

	// the failed submit left the instance untouched
	fresh, err := f.engine.Get(ctx, f.tenantID, agg.Instance.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InstanceStatusDraft, fresh.Instance.Status)
	assert.Equal(t, 1, fresh.Instance.Version)
	assert.Empty(t, fresh.Steps)

	// only the initiator may submit
	_, err = f.engine.Submit(ctx, SubmitInput{
		TenantID:   f.tenantID,
		InstanceID: agg.Instance.ID,
		Assignments: map[string]uuid.UUID{
			"manager": uuid.Must(uuid.NewV7()),
			"finance": uuid.Must(uuid.NewV7()),
		},
		UserID: uuid.Must(uuid.NewV7()),
	})
	assert.True(t, domain.IsForbidden(err))
}

func TestCreateInstanceRequiresPublished(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	draft, err := f.defs.Create(ctx, CreateDefinitionInput{
		TenantID:   f.tenantID,
		Name:       "Draft only",
		Definition: json.RawMessage(singleStageDoc),
		UserID:     f.userID,
	})
	require.NoError(t, err)

	_, err = f.engine.CreateInstance(ctx, CreateInstanceInput{
		TenantID: f.tenantID, DefinitionID: draft.ID, Title: "Nope", UserID: f.userID,
	})
	assert.True(t, domain.IsBadRequest(err))

	_, err = f.engine.CreateInstance(ctx, CreateInstanceInput{
		TenantID: f.tenantID, DefinitionID: uuid.Must(uuid.NewV7()), Title: "Nope", UserID: f.userID,
	})
	assert.True(t, domain.IsNotFound(err))
}

func TestCrossTenantIsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	def := f.publishedDefinition(t, singleStageDoc)

	agg, err := f.engine.CreateInstance(ctx, CreateInstanceInput{
		TenantID: f.tenantID, DefinitionID: def.ID, Title: "Private", UserID: f.userID,
	})
	require.NoError(t, err)

	otherTenant := uuid.Must(uuid.NewV7())
	_, err = f.engine.Get(ctx, otherTenant, agg.Instance.ID)
	assert.True(t, domain.IsNotFound(err))

	_, err = f.defs.Get(ctx, otherTenant, def.ID)
	assert.True(t, domain.IsNotFound(err))
}

func TestCommentParticipation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	def := f.publishedDefinition(t, twoStageDoc)
	manager := uuid.Must(uuid.NewV7())
	finance := uuid.Must(uuid.NewV7())
	stranger := uuid.Must(uuid.NewV7())

	agg, err := f.engine.CreateInstance(ctx, CreateInstanceInput{
		TenantID: f.tenantID, DefinitionID: def.ID, Title: "Discussion", UserID: f.userID,
	})
	require.NoError(t, err)
	instanceID := agg.Instance.ID

	_, err = f.engine.Submit(ctx, SubmitInput{
		TenantID:   f.tenantID,
		InstanceID: instanceID,
		Assignments: map[string]uuid.UUID{
			"manager": manager,
			"finance": finance,
		},
		UserID: f.userID,
	})
	require.NoError(t, err)

	// initiator, active assignee, and pending assignee are all participants
	for _, user := range []uuid.UUID{f.userID, manager, finance} {
		_, err := f.engine.Comment(ctx, CommentInput{
			TenantID: f.tenantID, InstanceID: instanceID, Body: "note", UserID: user,
		})
		assert.NoError(t, err)
	}

	_, err = f.engine.Comment(ctx, CommentInput{
		TenantID: f.tenantID, InstanceID: instanceID, Body: "intruding", UserID: stranger,
	})
	assert.True(t, domain.IsForbidden(err))

	comments, err := f.engine.Comments(ctx, f.tenantID, instanceID, f.userID)
	require.NoError(t, err)
	assert.Len(t, comments, 3)

	_, err = f.engine.Comments(ctx, f.tenantID, instanceID, stranger)
	assert.True(t, domain.IsForbidden(err))
}

func TestGetByDisplayNumber(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	def := f.publishedDefinition(t, singleStageDoc)

	first, err := f.engine.CreateInstance(ctx, CreateInstanceInput{
		TenantID: f.tenantID, DefinitionID: def.ID, Title: "First", UserID: f.userID,
	})
	require.NoError(t, err)
	second, err := f.engine.CreateInstance(ctx, CreateInstanceInput{
		TenantID: f.tenantID, DefinitionID: def.ID, Title: "Second", UserID: f.userID,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Instance.DisplayNumber)
	assert.Equal(t, int64(2), second.Instance.DisplayNumber)

	agg, err := f.engine.GetByDisplayNumber(ctx, f.tenantID, 2)
	require.NoError(t, err)
	assert.Equal(t, second.Instance.ID, agg.Instance.ID)

	_, err = f.engine.GetByDisplayNumber(ctx, f.tenantID, 99)
	assert.True(t, domain.IsNotFound(err))
}

func TestListFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	def := f.publishedDefinition(t, singleStageDoc)
	approver := uuid.Must(uuid.NewV7())
	otherUser := uuid.Must(uuid.NewV7())

	mine, err := f.engine.CreateInstance(ctx, CreateInstanceInput{
		TenantID: f.tenantID, DefinitionID: def.ID, Title: "Mine", UserID: f.userID,
	})
	require.NoError(t, err)
	_, err = f.engine.CreateInstance(ctx, CreateInstanceInput{
		TenantID: f.tenantID, DefinitionID: def.ID, Title: "Theirs", UserID: otherUser,
	})
	require.NoError(t, err)

	_, err = f.engine.Submit(ctx, SubmitInput{
		TenantID:    f.tenantID,
		InstanceID:  mine.Instance.ID,
		Assignments: map[string]uuid.UUID{"review": approver},
		UserID:      f.userID,
	})
	require.NoError(t, err)

	all, err := f.engine.ListByTenant(ctx, f.tenantID)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	initiated, err := f.engine.ListByInitiator(ctx, f.tenantID, f.userID)
	require.NoError(t, err)
	require.Len(t, initiated, 1)
	assert.Equal(t, mine.Instance.ID, initiated[0].ID)

	assigned, err := f.engine.ListByAssignee(ctx, f.tenantID, approver)
	require.NoError(t, err)
	require.Len(t, assigned, 1)
	assert.Equal(t, mine.Instance.ID, assigned[0].ID)

	assigned, err = f.engine.ListByAssignee(ctx, f.tenantID, otherUser)
	require.NoError(t, err)
	assert.Empty(t, assigned)
}
