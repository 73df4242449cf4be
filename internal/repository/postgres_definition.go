package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"approvalflow/backend/internal/domain"
)

// PostgresDefinitionRepository implements DefinitionRepository on pgx.
type PostgresDefinitionRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresDefinitionRepository(pool *pgxpool.Pool) *PostgresDefinitionRepository {
	return &PostgresDefinitionRepository{pool: pool}
}

func (r *PostgresDefinitionRepository) Insert(ctx context.Context, def *domain.WorkflowDefinition) error {
	const q = `
		INSERT INTO workflow_definitions
			(id, tenant_id, name, description, definition, version, status, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := db(ctx, r.pool).Exec(ctx, q,
		def.ID, def.TenantID, def.Name, def.Description, def.Definition,
		def.Version, string(def.Status), def.CreatedBy, def.CreatedAt, def.UpdatedAt)
	if err != nil {
		return domain.Internal("insert workflow definition", err)
	}
	return nil
}

// UpdateWithExpectedVersion writes the definition only if the stored row still
// carries expectedVersion for the same tenant. Zero affected rows mean a
// concurrent writer won the race.
func (r *PostgresDefinitionRepository) UpdateWithExpectedVersion(ctx context.Context, def *domain.WorkflowDefinition, expectedVersion int) error {
	const q = `
		UPDATE workflow_definitions
		SET name = $1, description = $2, definition = $3, version = $4, status = $5, updated_at = $6
		WHERE id = $7 AND tenant_id = $8 AND version = $9`
	tag, err := db(ctx, r.pool).Exec(ctx, q,
		def.Name, def.Description, def.Definition, def.Version, string(def.Status), def.UpdatedAt,
		def.ID, def.TenantID, expectedVersion)
	if err != nil {
		return domain.Internal("update workflow definition", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.Conflict("workflow definition was modified concurrently")
	}
	return nil
}

func (r *PostgresDefinitionRepository) Delete(ctx context.Context, id, tenantID uuid.UUID) error {
	const q = `DELETE FROM workflow_definitions WHERE id = $1 AND tenant_id = $2`
	tag, err := db(ctx, r.pool).Exec(ctx, q, id, tenantID)
	if err != nil {
		return domain.Internal("delete workflow definition", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("workflow definition", id.String())
	}
	return nil
}

func (r *PostgresDefinitionRepository) FindByID(ctx context.Context, id, tenantID uuid.UUID) (*domain.WorkflowDefinition, error) {
	const q = definitionSelect + ` WHERE id = $1 AND tenant_id = $2`
	def, err := scanDefinition(db(ctx, r.pool).QueryRow(ctx, q, id, tenantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound("workflow definition", id.String())
	}
	if err != nil {
		return nil, domain.Internal("find workflow definition", err)
	}
	return def, nil
}

func (r *PostgresDefinitionRepository) FindAllByTenant(ctx context.Context, tenantID uuid.UUID) ([]*domain.WorkflowDefinition, error) {
	const q = definitionSelect + ` WHERE tenant_id = $1 ORDER BY created_at DESC`
	rows, err := db(ctx, r.pool).Query(ctx, q, tenantID)
	if err != nil {
		return nil, domain.Internal("list workflow definitions", err)
	}
	defer rows.Close()

	var defs []*domain.WorkflowDefinition
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, domain.Internal("scan workflow definition", err)
		}
		defs = append(defs, def)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal("list workflow definitions", err)
	}
	return defs, nil
}

const definitionSelect = `
	SELECT id, tenant_id, name, description, definition, version, status, created_by, created_at, updated_at
	FROM workflow_definitions`

func scanDefinition(row pgx.Row) (*domain.WorkflowDefinition, error) {
	var def domain.WorkflowDefinition
	var status string
	if err := row.Scan(
		&def.ID, &def.TenantID, &def.Name, &def.Description, &def.Definition,
		&def.Version, &status, &def.CreatedBy, &def.CreatedAt, &def.UpdatedAt,
	); err != nil {
		return nil, err
	}
	parsed, err := domain.ParseDefinitionStatus(status)
	if err != nil {
		return nil, err
	}
	def.Status = parsed
	return &def, nil
}
