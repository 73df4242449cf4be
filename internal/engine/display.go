package engine

import (
	"context"

	"github.com/google/uuid"
)

// DecideByDisplayNumber decides the step addressed by STEP-<number> within
// the given instance, resolving the human-facing number to the record.
func (e *Engine) DecideByDisplayNumber(ctx context.Context, displayNumber int64, instanceID uuid.UUID, in DecideInput) (*InstanceAggregate, error) {
	step, err := e.steps.FindByDisplayNumber(ctx, displayNumber, instanceID, in.TenantID)
	if err != nil {
		return nil, err
	}
	in.StepID = step.ID
	return e.decide(ctx, step, in)
}
