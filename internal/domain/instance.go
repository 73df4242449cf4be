package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// InstanceStatus is the lifecycle state of a workflow instance.
type InstanceStatus string

const (
	InstanceStatusDraft            InstanceStatus = "draft"
	InstanceStatusInProgress       InstanceStatus = "in_progress"
	InstanceStatusApproved         InstanceStatus = "approved"
	InstanceStatusRejected         InstanceStatus = "rejected"
	InstanceStatusChangesRequested InstanceStatus = "changes_requested"
)

// ParseInstanceStatus parses the stored string form, rejecting unknown values.
func ParseInstanceStatus(s string) (InstanceStatus, error) {
	switch InstanceStatus(s) {
	case InstanceStatusDraft, InstanceStatusInProgress, InstanceStatusApproved,
		InstanceStatusRejected, InstanceStatusChangesRequested:
		return InstanceStatus(s), nil
	}
	return "", BadRequestf("unknown workflow instance status: %q", s)
}

// Terminal reports whether the status is a terminal one.
func (s InstanceStatus) Terminal() bool {
	return s == InstanceStatusApproved || s == InstanceStatusRejected
}

// WorkflowInstance is one concrete approval request created from a published
// definition. Version implements optimistic locking: it increments on every
// successful mutation and never on a failed one. CurrentStepID holds the
// graph-node id of the active step and is non-empty exactly while the
// instance is InProgress.
type WorkflowInstance struct {
	ID                uuid.UUID       `json:"id"`
	TenantID          uuid.UUID       `json:"tenant_id"`
	DefinitionID      uuid.UUID       `json:"definition_id"`
	DefinitionVersion int             `json:"definition_version"`
	DisplayNumber     int64           `json:"display_number"`
	Title             string          `json:"title"`
	FormData          json.RawMessage `json:"form_data"`
	Status            InstanceStatus  `json:"status"`
	Version           int             `json:"version"`
	CurrentStepID     string          `json:"current_step_id,omitempty"`
	InitiatedBy       uuid.UUID       `json:"initiated_by"`
	SubmittedAt       *time.Time      `json:"submitted_at,omitempty"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// NewWorkflowInstance creates a Draft instance at version 1, pinned to the
// definition's version at creation time. No step exists yet.
func NewWorkflowInstance(tenantID uuid.UUID, def *WorkflowDefinition, displayNumber int64, title string, formData json.RawMessage, initiatedBy uuid.UUID, now time.Time) (*WorkflowInstance, error) {
	if title == "" {
		return nil, BadRequest("title is required")
	}
	return &WorkflowInstance{
		ID:                uuid.Must(uuid.NewV7()),
		TenantID:          tenantID,
		DefinitionID:      def.ID,
		DefinitionVersion: def.Version,
		DisplayNumber:     displayNumber,
		Title:             title,
		FormData:          formData,
		Status:            InstanceStatusDraft,
		Version:           1,
		InitiatedBy:       initiatedBy,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// Submit moves a Draft instance to InProgress on the given first step node.
func (i *WorkflowInstance) Submit(firstStepID string, now time.Time) error {
	if i.Status != InstanceStatusDraft {
		return BadRequest("only draft workflows can be submitted")
	}
	i.Status = InstanceStatusInProgress
	i.CurrentStepID = firstStepID
	i.Version++
	i.SubmittedAt = &now
	i.UpdatedAt = now
	return nil
}

// AdvanceTo moves an InProgress instance to the next approval step node.
func (i *WorkflowInstance) AdvanceTo(nextStepID string, now time.Time) error {
	if i.Status != InstanceStatusInProgress {
		return BadRequestf("cannot advance a workflow in status %q", i.Status)
	}
	i.CurrentStepID = nextStepID
	i.Version++
	i.UpdatedAt = now
	return nil
}

// Complete moves an InProgress instance to the terminal status carried by the
// end node the decision routed to, clearing the current step.
func (i *WorkflowInstance) Complete(terminal InstanceStatus, now time.Time) error {
	if i.Status != InstanceStatusInProgress {
		return BadRequestf("cannot complete a workflow in status %q", i.Status)
	}
	if !terminal.Terminal() {
		return BadRequestf("%q is not a terminal status", terminal)
	}
	i.Status = terminal
	i.CurrentStepID = ""
	i.Version++
	i.CompletedAt = &now
	i.UpdatedAt = now
	return nil
}

// RequestChanges moves an InProgress instance to ChangesRequested. This is a
// hard-coded transition: the definition graph is not consulted and the current
// step is cleared. ChangesRequested is not terminal, so CompletedAt stays
// unset.
func (i *WorkflowInstance) RequestChanges(now time.Time) error {
	if i.Status != InstanceStatusInProgress {
		return BadRequestf("cannot request changes on a workflow in status %q", i.Status)
	}
	i.Status = InstanceStatusChangesRequested
	i.CurrentStepID = ""
	i.Version++
	i.UpdatedAt = now
	return nil
}

// Resubmit moves a ChangesRequested instance back to InProgress with updated
// form data, restarting at the given first step node.
func (i *WorkflowInstance) Resubmit(formData json.RawMessage, firstStepID string, now time.Time) error {
	if i.Status != InstanceStatusChangesRequested {
		return BadRequest("only workflows with requested changes can be resubmitted")
	}
	i.Status = InstanceStatusInProgress
	i.FormData = formData
	i.CurrentStepID = firstStepID
	i.Version++
	i.CompletedAt = nil
	i.UpdatedAt = now
	return nil
}
