package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DefinitionStatus is the lifecycle state of a workflow definition.
type DefinitionStatus string

const (
	DefinitionStatusDraft     DefinitionStatus = "draft"
	DefinitionStatusPublished DefinitionStatus = "published"
	DefinitionStatusArchived  DefinitionStatus = "archived"
)

// ParseDefinitionStatus parses the stored string form, rejecting unknown
// values rather than defaulting.
func ParseDefinitionStatus(s string) (DefinitionStatus, error) {
	switch DefinitionStatus(s) {
	case DefinitionStatusDraft, DefinitionStatusPublished, DefinitionStatusArchived:
		return DefinitionStatus(s), nil
	}
	return "", BadRequestf("unknown workflow definition status: %q", s)
}

// WorkflowDefinition is a reusable, versioned approval-process template. The
// step/transition graph is kept as opaque JSON and parsed on demand; only
// Draft definitions are mutable, and every mutation increments Version.
type WorkflowDefinition struct {
	ID          uuid.UUID        `json:"id"`
	TenantID    uuid.UUID        `json:"tenant_id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Definition  json.RawMessage  `json:"definition"`
	Version     int              `json:"version"`
	Status      DefinitionStatus `json:"status"`
	CreatedBy   uuid.UUID        `json:"created_by"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

const workflowNameMaxLength = 200

// ValidateWorkflowName checks the definition name constraints shared by
// create and update.
func ValidateWorkflowName(name string) error {
	if name == "" {
		return BadRequest("workflow name is required")
	}
	if len([]rune(name)) > workflowNameMaxLength {
		return BadRequestf("workflow name must be at most %d characters", workflowNameMaxLength)
	}
	return nil
}

// NewWorkflowDefinition creates a Draft definition at version 1.
func NewWorkflowDefinition(tenantID uuid.UUID, name, description string, definition json.RawMessage, createdBy uuid.UUID, now time.Time) (*WorkflowDefinition, error) {
	if err := ValidateWorkflowName(name); err != nil {
		return nil, err
	}
	return &WorkflowDefinition{
		ID:          uuid.Must(uuid.NewV7()),
		TenantID:    tenantID,
		Name:        name,
		Description: description,
		Definition:  definition,
		Version:     1,
		Status:      DefinitionStatusDraft,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Update replaces the mutable fields of a Draft definition and bumps Version.
func (d *WorkflowDefinition) Update(name, description string, definition json.RawMessage, now time.Time) error {
	if d.Status != DefinitionStatusDraft {
		return BadRequest("only draft definitions can be updated")
	}
	if err := ValidateWorkflowName(name); err != nil {
		return err
	}
	d.Name = name
	d.Description = description
	d.Definition = definition
	d.Version++
	d.UpdatedAt = now
	return nil
}

// CanDelete reports whether the definition may be deleted. Published
// definitions are never deleted.
func (d *WorkflowDefinition) CanDelete() error {
	if d.Status != DefinitionStatusDraft {
		return BadRequest("only draft definitions can be deleted")
	}
	return nil
}

// Publish moves a Draft definition to Published and bumps Version. Graph
// validation happens in the service before this is called.
func (d *WorkflowDefinition) Publish(now time.Time) error {
	if d.Status != DefinitionStatusDraft {
		return BadRequest("only draft definitions can be published")
	}
	d.Status = DefinitionStatusPublished
	d.Version++
	d.UpdatedAt = now
	return nil
}

// Archive moves a Published definition to Archived and bumps Version.
func (d *WorkflowDefinition) Archive(now time.Time) error {
	if d.Status != DefinitionStatusPublished {
		return BadRequest("only published definitions can be archived")
	}
	d.Status = DefinitionStatusArchived
	d.Version++
	d.UpdatedAt = now
	return nil
}
