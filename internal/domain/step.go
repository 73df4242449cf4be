package domain

import (
	"time"

	"github.com/google/uuid"
)

// StepStatus is the lifecycle state of a workflow step.
type StepStatus string

const (
	StepStatusPending StepStatus = "pending"
	StepStatusActive  StepStatus = "active"
	StepStatusDecided StepStatus = "decided"
)

// ParseStepStatus parses the stored string form, rejecting unknown values.
func ParseStepStatus(s string) (StepStatus, error) {
	switch StepStatus(s) {
	case StepStatusPending, StepStatusActive, StepStatusDecided:
		return StepStatus(s), nil
	}
	return "", BadRequestf("unknown workflow step status: %q", s)
}

// StepDecision is the outcome recorded on a Decided step.
type StepDecision string

const (
	StepDecisionApproved       StepDecision = "approved"
	StepDecisionRejected       StepDecision = "rejected"
	StepDecisionRequestChanges StepDecision = "request_changes"
)

// ParseStepDecision parses the stored string form, rejecting unknown values.
func ParseStepDecision(s string) (StepDecision, error) {
	switch StepDecision(s) {
	case StepDecisionApproved, StepDecisionRejected, StepDecisionRequestChanges:
		return StepDecision(s), nil
	}
	return "", BadRequestf("unknown step decision: %q", s)
}

// DecisionForTrigger maps a decide trigger onto the decision recorded on the
// step.
func DecisionForTrigger(trigger string) (StepDecision, error) {
	switch trigger {
	case TriggerApprove:
		return StepDecisionApproved, nil
	case TriggerReject:
		return StepDecisionRejected, nil
	case TriggerRequestChanges:
		return StepDecisionRequestChanges, nil
	}
	return "", BadRequestf("unknown decision trigger: %q", trigger)
}

// WorkflowStep is one node-visit of an instance's traversal through the
// definition graph, owned by an assignee. NodeID is the graph-node id the
// step corresponds to, not a record id. At most one step per instance is
// Active at any time.
type WorkflowStep struct {
	ID            uuid.UUID    `json:"id"`
	InstanceID    uuid.UUID    `json:"instance_id"`
	TenantID      uuid.UUID    `json:"tenant_id"`
	DisplayNumber int64        `json:"display_number"`
	NodeID        string       `json:"node_id"`
	NodeName      string       `json:"node_name"`
	NodeType      string       `json:"node_type"`
	Status        StepStatus   `json:"status"`
	Version       int          `json:"version"`
	AssignedTo    uuid.UUID    `json:"assigned_to"`
	Decision      StepDecision `json:"decision,omitempty"`
	Comment       string       `json:"comment,omitempty"`
	DueDate       *time.Time   `json:"due_date,omitempty"`
	StartedAt     *time.Time   `json:"started_at,omitempty"`
	CompletedAt   *time.Time   `json:"completed_at,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// NewWorkflowStep creates a Pending step at version 1 for the given graph
// node, assigned to the given user.
func NewWorkflowStep(instanceID, tenantID uuid.UUID, displayNumber int64, node GraphNode, assignedTo uuid.UUID, now time.Time) *WorkflowStep {
	return &WorkflowStep{
		ID:            uuid.Must(uuid.NewV7()),
		InstanceID:    instanceID,
		TenantID:      tenantID,
		DisplayNumber: displayNumber,
		NodeID:        node.ID,
		NodeName:      node.Name,
		NodeType:      node.Type,
		Status:        StepStatusPending,
		Version:       1,
		AssignedTo:    assignedTo,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Activate moves a Pending step to Active, stamping StartedAt.
func (s *WorkflowStep) Activate(now time.Time) error {
	if s.Status != StepStatusPending {
		return BadRequestf("cannot activate a step in status %q", s.Status)
	}
	s.Status = StepStatusActive
	s.Version++
	s.StartedAt = &now
	s.UpdatedAt = now
	return nil
}

// Decide moves an Active step to Decided with the given decision and optional
// comment.
func (s *WorkflowStep) Decide(decision StepDecision, comment string, now time.Time) error {
	if s.Status != StepStatusActive {
		return BadRequestf("cannot decide a step in status %q", s.Status)
	}
	s.Status = StepStatusDecided
	s.Decision = decision
	s.Comment = comment
	s.Version++
	s.CompletedAt = &now
	s.UpdatedAt = now
	return nil
}
