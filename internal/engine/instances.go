package engine

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"approvalflow/backend/internal/domain"
	"approvalflow/backend/internal/notify"
)

// CreateInstanceInput creates a Draft instance from a published definition.
type CreateInstanceInput struct {
	TenantID     uuid.UUID
	DefinitionID uuid.UUID
	Title        string
	FormData     json.RawMessage
	UserID       uuid.UUID
}

// CreateInstance creates a Draft instance pinned to the definition's current
// version. No step exists until submission.
func (e *Engine) CreateInstance(ctx context.Context, in CreateInstanceInput) (*InstanceAggregate, error) {
	def, err := e.definitions.FindByID(ctx, in.DefinitionID, in.TenantID)
	if err != nil {
		return nil, err
	}
	if def.Status != domain.DefinitionStatusPublished {
		return nil, domain.BadRequest("workflows can only be started from a published definition")
	}

	number, err := e.numbers.Next(ctx, in.TenantID, domain.DisplayEntityWorkflowInstance)
	if err != nil {
		return nil, err
	}
	instance, err := domain.NewWorkflowInstance(in.TenantID, def, number, in.Title, in.FormData, in.UserID, e.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := e.instances.Insert(ctx, instance); err != nil {
		return nil, err
	}
	return &InstanceAggregate{Instance: instance}, nil
}

// SubmitInput submits a Draft instance for approval. Assignments maps every
// approval node id of the definition graph to the user who will decide it.
type SubmitInput struct {
	TenantID    uuid.UUID
	InstanceID  uuid.UUID
	Assignments map[string]uuid.UUID
	UserID      uuid.UUID
}

// Submit moves a Draft instance to InProgress. A step row is materialized for
// every approval node of the graph: the first one Active, later rounds
// Pending in document order. The instance update and all step inserts commit
// as one unit.
func (e *Engine) Submit(ctx context.Context, in SubmitInput) (*InstanceAggregate, error) {
	instance, err := e.instances.FindByID(ctx, in.InstanceID, in.TenantID)
	if err != nil {
		return nil, err
	}
	if instance.InitiatedBy != in.UserID {
		return nil, domain.Forbidden("only the initiator may submit a workflow")
	}
	if instance.Status != domain.InstanceStatusDraft {
		return nil, domain.BadRequest("only draft workflows can be submitted")
	}

	steps, first, err := e.materializeSteps(ctx, instance, in.Assignments)
	if err != nil {
		return nil, err
	}
	expected := instance.Version
	if err := instance.Submit(first, e.clock.Now()); err != nil {
		return nil, err
	}

	err = e.tx.WithinTx(ctx, func(ctx context.Context) error {
		for _, step := range steps {
			if err := e.steps.Insert(ctx, step); err != nil {
				return err
			}
		}
		return e.instances.UpdateWithExpectedVersion(ctx, instance, expected)
	})
	if err != nil {
		return nil, err
	}

	e.notifyCommitted(ctx, notify.EventWorkflowSubmitted, instance.TenantID, instance.ID)
	return &InstanceAggregate{Instance: instance, Steps: steps}, nil
}

// ResubmitInput resubmits a ChangesRequested instance with revised form data
// and a fresh assignment map.
type ResubmitInput struct {
	TenantID        uuid.UUID
	InstanceID      uuid.UUID
	FormData        json.RawMessage
	Assignments     map[string]uuid.UUID
	ExpectedVersion int
	UserID          uuid.UUID
}

// Resubmit re-enters the submission logic for a ChangesRequested instance. A
// new round of step rows is created; decided steps of previous rounds stay as
// history.
func (e *Engine) Resubmit(ctx context.Context, in ResubmitInput) (*InstanceAggregate, error) {
	instance, err := e.instances.FindByID(ctx, in.InstanceID, in.TenantID)
	if err != nil {
		return nil, err
	}
	if instance.InitiatedBy != in.UserID {
		return nil, domain.Forbidden("only the initiator may resubmit a workflow")
	}
	if instance.Status != domain.InstanceStatusChangesRequested {
		return nil, domain.BadRequest("only workflows with requested changes can be resubmitted")
	}
	if instance.Version != in.ExpectedVersion {
		return nil, domain.Conflict("workflow instance was modified concurrently")
	}

	steps, first, err := e.materializeSteps(ctx, instance, in.Assignments)
	if err != nil {
		return nil, err
	}
	expected := instance.Version
	if err := instance.Resubmit(in.FormData, first, e.clock.Now()); err != nil {
		return nil, err
	}

	err = e.tx.WithinTx(ctx, func(ctx context.Context) error {
		for _, step := range steps {
			if err := e.steps.Insert(ctx, step); err != nil {
				return err
			}
		}
		return e.instances.UpdateWithExpectedVersion(ctx, instance, expected)
	})
	if err != nil {
		return nil, err
	}

	e.notifyCommitted(ctx, notify.EventWorkflowResubmitted, instance.TenantID, instance.ID)
	return e.aggregate(ctx, instance)
}

// materializeSteps builds the step rows for one submission round: one step
// per approval node in document order, the node reached from the start edge
// Active and the rest Pending. Returns the steps and the first node's id.
func (e *Engine) materializeSteps(ctx context.Context, instance *domain.WorkflowInstance, assignments map[string]uuid.UUID) ([]*domain.WorkflowStep, string, error) {
	def, err := e.definitions.FindByID(ctx, instance.DefinitionID, instance.TenantID)
	if err != nil {
		return nil, "", err
	}
	graph, err := domain.ParseGraph(def.Definition)
	if err != nil {
		return nil, "", err
	}
	first, err := graph.FirstApproval()
	if err != nil {
		return nil, "", err
	}

	now := e.clock.Now()
	var steps []*domain.WorkflowStep
	for _, node := range graph.ApprovalNodes() {
		assignee, ok := assignments[node.ID]
		if !ok {
			return nil, "", domain.BadRequestf("no assignee supplied for approval step %q", node.ID)
		}
		number, err := e.numbers.Next(ctx, instance.TenantID, domain.DisplayEntityWorkflowStep)
		if err != nil {
			return nil, "", err
		}
		step := domain.NewWorkflowStep(instance.ID, instance.TenantID, number, node, assignee, now)
		if node.ID == first.ID {
			if err := step.Activate(now); err != nil {
				return nil, "", err
			}
		}
		steps = append(steps, step)
	}
	return steps, first.ID, nil
}
