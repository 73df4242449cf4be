package engine

import (
	"context"

	"github.com/google/uuid"

	"approvalflow/backend/internal/domain"
	"approvalflow/backend/internal/notify"
)

// DecideInput records a decision on the instance's current Active step.
// ExpectedVersion is checked against the step's stored version.
type DecideInput struct {
	TenantID        uuid.UUID
	StepID          uuid.UUID
	Trigger         string
	ExpectedVersion int
	Comment         string
	UserID          uuid.UUID
}

// Decide applies an approve, reject, or request-changes decision to the
// current Active step and routes the instance through the definition graph.
// Approve and reject follow the edge matching the trigger; request-changes is
// a hard-coded transition to ChangesRequested that never consults the graph.
// All writes of one decision commit as one unit.
func (e *Engine) Decide(ctx context.Context, in DecideInput) (*InstanceAggregate, error) {
	step, err := e.steps.FindByID(ctx, in.StepID, in.TenantID)
	if err != nil {
		return nil, err
	}
	return e.decide(ctx, step, in)
}

func (e *Engine) decide(ctx context.Context, step *domain.WorkflowStep, in DecideInput) (*InstanceAggregate, error) {
	if step.AssignedTo != in.UserID {
		return nil, domain.Forbidden("only the step's assignee may decide it")
	}
	decision, err := domain.DecisionForTrigger(in.Trigger)
	if err != nil {
		return nil, err
	}

	// The version check runs before the status preconditions so a racing
	// caller holding a stale version observes Conflict, not BadRequest.
	if step.Version != in.ExpectedVersion {
		return nil, domain.Conflict("workflow step was modified concurrently")
	}

	instance, err := e.instances.FindByID(ctx, step.InstanceID, in.TenantID)
	if err != nil {
		return nil, err
	}
	if instance.Status != domain.InstanceStatusInProgress {
		return nil, domain.BadRequestf("cannot decide a step of a workflow in status %q", instance.Status)
	}
	if instance.CurrentStepID != step.NodeID || step.Status != domain.StepStatusActive {
		return nil, domain.BadRequest("step is not the workflow's current active step")
	}

	expectedStep := step.Version
	expectedInstance := instance.Version
	now := e.clock.Now()
	if err := step.Decide(decision, in.Comment, now); err != nil {
		return nil, err
	}

	var events []string
	var activate *domain.WorkflowStep
	var expectedActivate int

	if in.Trigger == domain.TriggerRequestChanges {
		if err := instance.RequestChanges(now); err != nil {
			return nil, err
		}
		events = append(events, notify.EventChangesRequested)
	} else {
		def, err := e.definitions.FindByID(ctx, instance.DefinitionID, in.TenantID)
		if err != nil {
			return nil, err
		}
		graph, err := domain.ParseGraph(def.Definition)
		if err != nil {
			return nil, err
		}
		target, ok := graph.Next(step.NodeID, in.Trigger)
		if !ok {
			return nil, domain.BadRequestf("step %q has no transition for trigger %q", step.NodeID, in.Trigger)
		}

		switch in.Trigger {
		case domain.TriggerApprove:
			events = append(events, notify.EventStepApproved)
		case domain.TriggerReject:
			events = append(events, notify.EventStepRejected)
		}

		switch target.Type {
		case domain.NodeTypeEnd:
			terminal, err := domain.TerminalInstanceStatus(target)
			if err != nil {
				return nil, err
			}
			if err := instance.Complete(terminal, now); err != nil {
				return nil, err
			}
			if terminal == domain.InstanceStatusApproved {
				events = append(events, notify.EventWorkflowApproved)
			} else {
				events = append(events, notify.EventWorkflowRejected)
			}
		case domain.NodeTypeApproval:
			next, err := e.pendingStepForNode(ctx, instance, target.ID)
			if err != nil {
				return nil, err
			}
			expectedActivate = next.Version
			if err := next.Activate(now); err != nil {
				return nil, err
			}
			activate = next
			if err := instance.AdvanceTo(target.ID, now); err != nil {
				return nil, err
			}
		default:
			return nil, domain.BadRequestf("trigger %q routes to a %q step", in.Trigger, target.Type)
		}
	}

	err = e.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := e.steps.UpdateWithExpectedVersion(ctx, step, expectedStep); err != nil {
			return err
		}
		if activate != nil {
			if err := e.steps.UpdateWithExpectedVersion(ctx, activate, expectedActivate); err != nil {
				return err
			}
		}
		return e.instances.UpdateWithExpectedVersion(ctx, instance, expectedInstance)
	})
	if err != nil {
		return nil, err
	}

	for _, event := range events {
		e.notifyCommitted(ctx, event, instance.TenantID, instance.ID)
	}
	return e.aggregate(ctx, instance)
}

// pendingStepForNode finds the current round's Pending step for a graph node.
// Steps are materialized for every approval node at submission, so a missing
// row means the stored state is inconsistent with the definition.
func (e *Engine) pendingStepForNode(ctx context.Context, instance *domain.WorkflowInstance, nodeID string) (*domain.WorkflowStep, error) {
	steps, err := e.steps.FindByInstance(ctx, instance.ID, instance.TenantID)
	if err != nil {
		return nil, err
	}
	for i := len(steps) - 1; i >= 0; i-- {
		if steps[i].NodeID == nodeID && steps[i].Status == domain.StepStatusPending {
			return steps[i], nil
		}
	}
	return nil, domain.Internal("no pending step for graph node "+nodeID, nil)
}
