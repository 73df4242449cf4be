package domain

import (
	"time"

	"github.com/google/uuid"
)

const commentBodyMaxLength = 2000

// WorkflowComment is one entry of an instance's comment thread. Comments are
// immutable once created and never carry a version check: they sit outside
// the instance/step aggregate.
type WorkflowComment struct {
	ID         uuid.UUID `json:"id"`
	TenantID   uuid.UUID `json:"tenant_id"`
	InstanceID uuid.UUID `json:"instance_id"`
	PostedBy   uuid.UUID `json:"posted_by"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewWorkflowComment creates a comment, validating the body bounds.
func NewWorkflowComment(tenantID, instanceID, postedBy uuid.UUID, body string, now time.Time) (*WorkflowComment, error) {
	if body == "" {
		return nil, BadRequest("comment body is required")
	}
	if len([]rune(body)) > commentBodyMaxLength {
		return nil, BadRequestf("comment body must be at most %d characters", commentBodyMaxLength)
	}
	return &WorkflowComment{
		ID:         uuid.Must(uuid.NewV7()),
		TenantID:   tenantID,
		InstanceID: instanceID,
		PostedBy:   postedBy,
		Body:       body,
		CreatedAt:  now,
	}, nil
}
