package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"approvalflow/backend/internal/domain"
)

// PostgresDisplayNumberAllocator implements DisplayNumberAllocator on a
// per-tenant counter table. The upsert is a single statement, so two
// concurrent allocations serialize on the row and never hand out the same
// number. Numbers consumed by a transaction that later rolls back leave gaps,
// which is acceptable.
type PostgresDisplayNumberAllocator struct {
	pool *pgxpool.Pool
}

func NewPostgresDisplayNumberAllocator(pool *pgxpool.Pool) *PostgresDisplayNumberAllocator {
	return &PostgresDisplayNumberAllocator{pool: pool}
}

func (a *PostgresDisplayNumberAllocator) Next(ctx context.Context, tenantID uuid.UUID, entityType domain.DisplayEntityType) (int64, error) {
	const q = `
		INSERT INTO display_number_counters (tenant_id, entity_type, last_number)
		VALUES ($1, $2, 1)
		ON CONFLICT (tenant_id, entity_type)
		DO UPDATE SET last_number = display_number_counters.last_number + 1
		RETURNING last_number`
	var n int64
	if err := db(ctx, a.pool).QueryRow(ctx, q, tenantID, string(entityType)).Scan(&n); err != nil {
		return 0, domain.Internal("allocate display number", err)
	}
	return n, nil
}
