// Package engine implements the workflow core: definition lifecycle, instance
// state machine, and step decisions. All mutual exclusion between concurrent
// writers is delegated to the repositories' version-checked updates; the
// engine never locks, blocks, or retries.
package engine

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"approvalflow/backend/internal/domain"
	"approvalflow/backend/internal/notify"
	"approvalflow/backend/internal/repository"
)

// Deps are the collaborators the engine is wired with.
type Deps struct {
	Definitions repository.DefinitionRepository
	Instances   repository.InstanceRepository
	Steps       repository.StepRepository
	Comments    repository.CommentRepository
	Numbers     repository.DisplayNumberAllocator
	Tx          repository.TxManager
	Sink        notify.Sink
	Clock       domain.Clock
	Logger      zerolog.Logger
}

// Engine drives workflow instances through their definition graphs.
type Engine struct {
	definitions repository.DefinitionRepository
	instances   repository.InstanceRepository
	steps       repository.StepRepository
	comments    repository.CommentRepository
	numbers     repository.DisplayNumberAllocator
	tx          repository.TxManager
	sink        notify.Sink
	clock       domain.Clock
	logger      zerolog.Logger
}

func New(deps Deps) *Engine {
	if deps.Sink == nil {
		deps.Sink = notify.NoopSink{}
	}
	if deps.Clock == nil {
		deps.Clock = domain.SystemClock{}
	}
	return &Engine{
		definitions: deps.Definitions,
		instances:   deps.Instances,
		steps:       deps.Steps,
		comments:    deps.Comments,
		numbers:     deps.Numbers,
		tx:          deps.Tx,
		sink:        deps.Sink,
		clock:       deps.Clock,
		logger:      deps.Logger,
	}
}

// InstanceAggregate is an instance together with its steps, the unit every
// engine operation returns.
type InstanceAggregate struct {
	Instance *domain.WorkflowInstance `json:"instance"`
	Steps    []*domain.WorkflowStep   `json:"steps"`
}

// notifyCommitted emits an event after the triggering write has committed.
// Delivery failures stay inside the sink; the operation already succeeded.
func (e *Engine) notifyCommitted(ctx context.Context, event string, tenantID, instanceID uuid.UUID) {
	e.sink.Notify(ctx, event, tenantID, instanceID)
}

// aggregate re-reads the instance's steps to return a consistent view.
func (e *Engine) aggregate(ctx context.Context, instance *domain.WorkflowInstance) (*InstanceAggregate, error) {
	steps, err := e.steps.FindByInstance(ctx, instance.ID, instance.TenantID)
	if err != nil {
		return nil, err
	}
	return &InstanceAggregate{Instance: instance, Steps: steps}, nil
}

// Get returns an instance with its steps.
func (e *Engine) Get(ctx context.Context, tenantID, instanceID uuid.UUID) (*InstanceAggregate, error) {
	instance, err := e.instances.FindByID(ctx, instanceID, tenantID)
	if err != nil {
		return nil, err
	}
	return e.aggregate(ctx, instance)
}

// GetByDisplayNumber returns an instance addressed by its display number.
func (e *Engine) GetByDisplayNumber(ctx context.Context, tenantID uuid.UUID, displayNumber int64) (*InstanceAggregate, error) {
	instance, err := e.instances.FindByDisplayNumber(ctx, displayNumber, tenantID)
	if err != nil {
		return nil, err
	}
	return e.aggregate(ctx, instance)
}

// ListByTenant returns all instances of a tenant, newest first.
func (e *Engine) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*domain.WorkflowInstance, error) {
	return e.instances.FindByTenant(ctx, tenantID)
}

// ListByInitiator returns the instances a user initiated, newest first.
func (e *Engine) ListByInitiator(ctx context.Context, tenantID, userID uuid.UUID) ([]*domain.WorkflowInstance, error) {
	return e.instances.FindByInitiator(ctx, tenantID, userID)
}

// ListByAssignee returns the instances that have a step assigned to the user,
// newest first.
func (e *Engine) ListByAssignee(ctx context.Context, tenantID, userID uuid.UUID) ([]*domain.WorkflowInstance, error) {
	steps, err := e.steps.FindByAssignee(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	seen := make(map[uuid.UUID]bool, len(steps))
	ids := make([]uuid.UUID, 0, len(steps))
	for _, s := range steps {
		if !seen[s.InstanceID] {
			seen[s.InstanceID] = true
			ids = append(ids, s.InstanceID)
		}
	}
	return e.instances.FindByIDs(ctx, ids, tenantID)
}

// Comments returns an instance's comment thread, oldest first. The caller
// must be a participant.
func (e *Engine) Comments(ctx context.Context, tenantID, instanceID, userID uuid.UUID) ([]*domain.WorkflowComment, error) {
	instance, err := e.instances.FindByID(ctx, instanceID, tenantID)
	if err != nil {
		return nil, err
	}
	if err := e.requireParticipant(ctx, instance, userID); err != nil {
		return nil, err
	}
	return e.comments.FindByInstance(ctx, instanceID, tenantID)
}

// requireParticipant checks that the user is the initiator or the assignee of
// any step on the instance, in any step status.
func (e *Engine) requireParticipant(ctx context.Context, instance *domain.WorkflowInstance, userID uuid.UUID) error {
	if instance.InitiatedBy == userID {
		return nil
	}
	steps, err := e.steps.FindByInstance(ctx, instance.ID, instance.TenantID)
	if err != nil {
		return err
	}
	for _, s := range steps {
		if s.AssignedTo == userID {
			return nil
		}
	}
	return domain.Forbidden("only workflow participants may perform this action")
}
