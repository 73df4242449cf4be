package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"approvalflow/backend/internal/domain"
)

// PostgresStepRepository implements StepRepository on pgx.
type PostgresStepRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresStepRepository(pool *pgxpool.Pool) *PostgresStepRepository {
	return &PostgresStepRepository{pool: pool}
}

func (r *PostgresStepRepository) Insert(ctx context.Context, step *domain.WorkflowStep) error {
	const q = `
		INSERT INTO workflow_steps
			(id, instance_id, tenant_id, display_number, node_id, node_name, node_type,
			 status, version, assigned_to, decision, comment, due_date,
			 started_at, completed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`
	_, err := db(ctx, r.pool).Exec(ctx, q,
		step.ID, step.InstanceID, step.TenantID, step.DisplayNumber,
		step.NodeID, step.NodeName, step.NodeType,
		string(step.Status), step.Version, step.AssignedTo,
		nullString(string(step.Decision)), nullString(step.Comment), step.DueDate,
		step.StartedAt, step.CompletedAt, step.CreatedAt, step.UpdatedAt)
	if err != nil {
		return domain.Internal("insert workflow step", err)
	}
	return nil
}

func (r *PostgresStepRepository) UpdateWithExpectedVersion(ctx context.Context, step *domain.WorkflowStep, expectedVersion int) error {
	const q = `
		UPDATE workflow_steps
		SET status = $1, version = $2, decision = $3, comment = $4,
			started_at = $5, completed_at = $6, updated_at = $7
		WHERE id = $8 AND tenant_id = $9 AND version = $10`
	tag, err := db(ctx, r.pool).Exec(ctx, q,
		string(step.Status), step.Version,
		nullString(string(step.Decision)), nullString(step.Comment),
		step.StartedAt, step.CompletedAt, step.UpdatedAt,
		step.ID, step.TenantID, expectedVersion)
	if err != nil {
		return domain.Internal("update workflow step", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.Conflict("workflow step was modified concurrently")
	}
	return nil
}

func (r *PostgresStepRepository) FindByID(ctx context.Context, id, tenantID uuid.UUID) (*domain.WorkflowStep, error) {
	const q = stepSelect + ` WHERE id = $1 AND tenant_id = $2`
	step, err := scanStep(db(ctx, r.pool).QueryRow(ctx, q, id, tenantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound("workflow step", id.String())
	}
	if err != nil {
		return nil, domain.Internal("find workflow step", err)
	}
	return step, nil
}

func (r *PostgresStepRepository) FindByInstance(ctx context.Context, instanceID, tenantID uuid.UUID) ([]*domain.WorkflowStep, error) {
	const q = stepSelect + ` WHERE instance_id = $1 AND tenant_id = $2 ORDER BY display_number ASC`
	return r.querySteps(ctx, q, instanceID, tenantID)
}

func (r *PostgresStepRepository) FindByAssignee(ctx context.Context, tenantID, userID uuid.UUID) ([]*domain.WorkflowStep, error) {
	const q = stepSelect + ` WHERE tenant_id = $1 AND assigned_to = $2 ORDER BY created_at DESC`
	return r.querySteps(ctx, q, tenantID, userID)
}

func (r *PostgresStepRepository) FindByDisplayNumber(ctx context.Context, displayNumber int64, instanceID, tenantID uuid.UUID) (*domain.WorkflowStep, error) {
	const q = stepSelect + ` WHERE display_number = $1 AND instance_id = $2 AND tenant_id = $3`
	step, err := scanStep(db(ctx, r.pool).QueryRow(ctx, q, displayNumber, instanceID, tenantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound("workflow step", domain.FormatDisplayID(domain.DisplayEntityWorkflowStep, displayNumber))
	}
	if err != nil {
		return nil, domain.Internal("find workflow step", err)
	}
	return step, nil
}

func (r *PostgresStepRepository) querySteps(ctx context.Context, q string, args ...any) ([]*domain.WorkflowStep, error) {
	rows, err := db(ctx, r.pool).Query(ctx, q, args...)
	if err != nil {
		return nil, domain.Internal("list workflow steps", err)
	}
	defer rows.Close()

	var steps []*domain.WorkflowStep
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, domain.Internal("scan workflow step", err)
		}
		steps = append(steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal("list workflow steps", err)
	}
	return steps, nil
}

const stepSelect = `
	SELECT id, instance_id, tenant_id, display_number, node_id, node_name, node_type,
		status, version, assigned_to, decision, comment, due_date,
		started_at, completed_at, created_at, updated_at
	FROM workflow_steps`

func scanStep(row pgx.Row) (*domain.WorkflowStep, error) {
	var step domain.WorkflowStep
	var status string
	var decision, comment *string
	if err := row.Scan(
		&step.ID, &step.InstanceID, &step.TenantID, &step.DisplayNumber,
		&step.NodeID, &step.NodeName, &step.NodeType,
		&status, &step.Version, &step.AssignedTo, &decision, &comment, &step.DueDate,
		&step.StartedAt, &step.CompletedAt, &step.CreatedAt, &step.UpdatedAt,
	); err != nil {
		return nil, err
	}
	parsed, err := domain.ParseStepStatus(status)
	if err != nil {
		return nil, err
	}
	step.Status = parsed
	if decision != nil {
		d, err := domain.ParseStepDecision(*decision)
		if err != nil {
			return nil, fmt.Errorf("stored step decision: %w", err)
		}
		step.Decision = d
	}
	if comment != nil {
		step.Comment = *comment
	}
	return &step, nil
}
