package engine

import (
	"context"

	"github.com/google/uuid"

	"approvalflow/backend/internal/domain"
)

// CommentInput posts a comment on an instance's thread.
type CommentInput struct {
	TenantID   uuid.UUID
	InstanceID uuid.UUID
	Body       string
	UserID     uuid.UUID
}

// Comment appends a comment to the instance's thread. Only participants may
// comment: the initiator, or the assignee of any step regardless of step
// status. Comments carry no version check and never mutate the aggregate.
func (e *Engine) Comment(ctx context.Context, in CommentInput) (*domain.WorkflowComment, error) {
	instance, err := e.instances.FindByID(ctx, in.InstanceID, in.TenantID)
	if err != nil {
		return nil, err
	}
	if err := e.requireParticipant(ctx, instance, in.UserID); err != nil {
		return nil, err
	}
	comment, err := domain.NewWorkflowComment(in.TenantID, in.InstanceID, in.UserID, in.Body, e.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := e.comments.Insert(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}
