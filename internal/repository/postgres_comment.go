package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"approvalflow/backend/internal/domain"
)

// PostgresCommentRepository implements CommentRepository on pgx.
type PostgresCommentRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresCommentRepository(pool *pgxpool.Pool) *PostgresCommentRepository {
	return &PostgresCommentRepository{pool: pool}
}

func (r *PostgresCommentRepository) Insert(ctx context.Context, comment *domain.WorkflowComment) error {
	const q = `
		INSERT INTO workflow_comments (id, tenant_id, instance_id, posted_by, body, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := db(ctx, r.pool).Exec(ctx, q,
		comment.ID, comment.TenantID, comment.InstanceID, comment.PostedBy, comment.Body, comment.CreatedAt)
	if err != nil {
		return domain.Internal("insert workflow comment", err)
	}
	return nil
}

func (r *PostgresCommentRepository) FindByInstance(ctx context.Context, instanceID, tenantID uuid.UUID) ([]*domain.WorkflowComment, error) {
	const q = `
		SELECT id, tenant_id, instance_id, posted_by, body, created_at
		FROM workflow_comments
		WHERE instance_id = $1 AND tenant_id = $2
		ORDER BY created_at ASC`
	rows, err := db(ctx, r.pool).Query(ctx, q, instanceID, tenantID)
	if err != nil {
		return nil, domain.Internal("list workflow comments", err)
	}
	defer rows.Close()

	var comments []*domain.WorkflowComment
	for rows.Next() {
		var c domain.WorkflowComment
		if err := rows.Scan(&c.ID, &c.TenantID, &c.InstanceID, &c.PostedBy, &c.Body, &c.CreatedAt); err != nil {
			return nil, domain.Internal("scan workflow comment", err)
		}
		comments = append(comments, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal("list workflow comments", err)
	}
	return comments, nil
}
