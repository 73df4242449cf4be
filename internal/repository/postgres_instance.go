package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"approvalflow/backend/internal/domain"
)

// PostgresInstanceRepository implements InstanceRepository on pgx.
type PostgresInstanceRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresInstanceRepository(pool *pgxpool.Pool) *PostgresInstanceRepository {
	return &PostgresInstanceRepository{pool: pool}
}

func (r *PostgresInstanceRepository) Insert(ctx context.Context, instance *domain.WorkflowInstance) error {
	const q = `
		INSERT INTO workflow_instances
			(id, tenant_id, definition_id, definition_version, display_number, title, form_data,
			 status, version, current_step_id, initiated_by, submitted_at, completed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	_, err := db(ctx, r.pool).Exec(ctx, q,
		instance.ID, instance.TenantID, instance.DefinitionID, instance.DefinitionVersion,
		instance.DisplayNumber, instance.Title, instance.FormData,
		string(instance.Status), instance.Version, nullString(instance.CurrentStepID),
		instance.InitiatedBy, instance.SubmittedAt, instance.CompletedAt,
		instance.CreatedAt, instance.UpdatedAt)
	if err != nil {
		return domain.Internal("insert workflow instance", err)
	}
	return nil
}

func (r *PostgresInstanceRepository) UpdateWithExpectedVersion(ctx context.Context, instance *domain.WorkflowInstance, expectedVersion int) error {
	const q = `
		UPDATE workflow_instances
		SET title = $1, form_data = $2, status = $3, version = $4, current_step_id = $5,
			submitted_at = $6, completed_at = $7, updated_at = $8
		WHERE id = $9 AND tenant_id = $10 AND version = $11`
	tag, err := db(ctx, r.pool).Exec(ctx, q,
		instance.Title, instance.FormData, string(instance.Status), instance.Version,
		nullString(instance.CurrentStepID), instance.SubmittedAt, instance.CompletedAt,
		instance.UpdatedAt, instance.ID, instance.TenantID, expectedVersion)
	if err != nil {
		return domain.Internal("update workflow instance", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.Conflict("workflow instance was modified concurrently")
	}
	return nil
}

func (r *PostgresInstanceRepository) FindByID(ctx context.Context, id, tenantID uuid.UUID) (*domain.WorkflowInstance, error) {
	const q = instanceSelect + ` WHERE id = $1 AND tenant_id = $2`
	instance, err := scanInstance(db(ctx, r.pool).QueryRow(ctx, q, id, tenantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound("workflow instance", id.String())
	}
	if err != nil {
		return nil, domain.Internal("find workflow instance", err)
	}
	return instance, nil
}

func (r *PostgresInstanceRepository) FindByDisplayNumber(ctx context.Context, displayNumber int64, tenantID uuid.UUID) (*domain.WorkflowInstance, error) {
	const q = instanceSelect + ` WHERE display_number = $1 AND tenant_id = $2`
	instance, err := scanInstance(db(ctx, r.pool).QueryRow(ctx, q, displayNumber, tenantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound("workflow instance", domain.FormatDisplayID(domain.DisplayEntityWorkflowInstance, displayNumber))
	}
	if err != nil {
		return nil, domain.Internal("find workflow instance", err)
	}
	return instance, nil
}

func (r *PostgresInstanceRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID) ([]*domain.WorkflowInstance, error) {
	const q = instanceSelect + ` WHERE tenant_id = $1 ORDER BY display_number DESC`
	return r.queryInstances(ctx, q, tenantID)
}

func (r *PostgresInstanceRepository) FindByInitiator(ctx context.Context, tenantID, userID uuid.UUID) ([]*domain.WorkflowInstance, error) {
	const q = instanceSelect + ` WHERE tenant_id = $1 AND initiated_by = $2 ORDER BY display_number DESC`
	return r.queryInstances(ctx, q, tenantID, userID)
}

func (r *PostgresInstanceRepository) FindByIDs(ctx context.Context, ids []uuid.UUID, tenantID uuid.UUID) ([]*domain.WorkflowInstance, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	const q = instanceSelect + ` WHERE id = ANY($1) AND tenant_id = $2 ORDER BY display_number DESC`
	return r.queryInstances(ctx, q, ids, tenantID)
}

func (r *PostgresInstanceRepository) queryInstances(ctx context.Context, q string, args ...any) ([]*domain.WorkflowInstance, error) {
	rows, err := db(ctx, r.pool).Query(ctx, q, args...)
	if err != nil {
		return nil, domain.Internal("list workflow instances", err)
	}
	defer rows.Close()

	var instances []*domain.WorkflowInstance
	for rows.Next() {
		instance, err := scanInstance(rows)
		if err != nil {
			return nil, domain.Internal("scan workflow instance", err)
		}
		instances = append(instances, instance)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal("list workflow instances", err)
	}
	return instances, nil
}

const instanceSelect = `
	SELECT id, tenant_id, definition_id, definition_version, display_number, title, form_data,
		status, version, current_step_id, initiated_by, submitted_at, completed_at, created_at, updated_at
	FROM workflow_instances`

func scanInstance(row pgx.Row) (*domain.WorkflowInstance, error) {
	var instance domain.WorkflowInstance
	var status string
	var currentStepID *string
	if err := row.Scan(
		&instance.ID, &instance.TenantID, &instance.DefinitionID, &instance.DefinitionVersion,
		&instance.DisplayNumber, &instance.Title, &instance.FormData,
		&status, &instance.Version, &currentStepID, &instance.InitiatedBy,
		&instance.SubmittedAt, &instance.CompletedAt, &instance.CreatedAt, &instance.UpdatedAt,
	); err != nil {
		return nil, err
	}
	parsed, err := domain.ParseInstanceStatus(status)
	if err != nil {
		return nil, err
	}
	instance.Status = parsed
	if currentStepID != nil {
		instance.CurrentStepID = *currentStepID
	}
	return &instance, nil
}

// nullString maps the empty string to SQL NULL so cleared columns read back
// as absent.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
