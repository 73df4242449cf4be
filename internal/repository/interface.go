// Package repository persists the workflow aggregate in PostgreSQL. Every
// query is tenant-scoped; version-checked updates implement the optimistic
// concurrency contract the engine relies on.
package repository

import (
	"context"

	"github.com/google/uuid"

	"approvalflow/backend/internal/domain"
)

// DefinitionRepository persists workflow definitions.
type DefinitionRepository interface {
	Insert(ctx context.Context, def *domain.WorkflowDefinition) error
	// UpdateWithExpectedVersion applies a conditional update that succeeds
	// only if the stored version equals expectedVersion and the tenant
	// matches. Zero affected rows surface as a Conflict error.
	UpdateWithExpectedVersion(ctx context.Context, def *domain.WorkflowDefinition, expectedVersion int) error
	Delete(ctx context.Context, id, tenantID uuid.UUID) error
	FindByID(ctx context.Context, id, tenantID uuid.UUID) (*domain.WorkflowDefinition, error)
	FindAllByTenant(ctx context.Context, tenantID uuid.UUID) ([]*domain.WorkflowDefinition, error)
}

// InstanceRepository persists workflow instances.
type InstanceRepository interface {
	Insert(ctx context.Context, instance *domain.WorkflowInstance) error
	UpdateWithExpectedVersion(ctx context.Context, instance *domain.WorkflowInstance, expectedVersion int) error
	FindByID(ctx context.Context, id, tenantID uuid.UUID) (*domain.WorkflowInstance, error)
	FindByDisplayNumber(ctx context.Context, displayNumber int64, tenantID uuid.UUID) (*domain.WorkflowInstance, error)
	FindByTenant(ctx context.Context, tenantID uuid.UUID) ([]*domain.WorkflowInstance, error)
	FindByInitiator(ctx context.Context, tenantID, userID uuid.UUID) ([]*domain.WorkflowInstance, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID, tenantID uuid.UUID) ([]*domain.WorkflowInstance, error)
}

// StepRepository persists workflow steps.
type StepRepository interface {
	Insert(ctx context.Context, step *domain.WorkflowStep) error
	UpdateWithExpectedVersion(ctx context.Context, step *domain.WorkflowStep, expectedVersion int) error
	FindByID(ctx context.Context, id, tenantID uuid.UUID) (*domain.WorkflowStep, error)
	FindByInstance(ctx context.Context, instanceID, tenantID uuid.UUID) ([]*domain.WorkflowStep, error)
	FindByAssignee(ctx context.Context, tenantID, userID uuid.UUID) ([]*domain.WorkflowStep, error)
	FindByDisplayNumber(ctx context.Context, displayNumber int64, instanceID, tenantID uuid.UUID) (*domain.WorkflowStep, error)
}

// CommentRepository persists workflow comments. Comments are immutable.
type CommentRepository interface {
	Insert(ctx context.Context, comment *domain.WorkflowComment) error
	FindByInstance(ctx context.Context, instanceID, tenantID uuid.UUID) ([]*domain.WorkflowComment, error)
}

// DisplayNumberAllocator hands out strictly increasing per-tenant,
// per-entity-type sequence numbers. Allocation is atomic: two concurrent
// callers never receive the same number. Failed callers may leave gaps.
type DisplayNumberAllocator interface {
	Next(ctx context.Context, tenantID uuid.UUID, entityType domain.DisplayEntityType) (int64, error)
}

// TxManager scopes a unit of work onto a database transaction. The function's
// error (or panic) rolls back; nil commits. Repositories participate in the
// transaction through the context.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
