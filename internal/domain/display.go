package domain

import "fmt"

// DisplayEntityType selects which per-tenant counter a display number is
// allocated from. Each (tenant, entity type) pair has an independent sequence.
type DisplayEntityType string

const (
	DisplayEntityWorkflowInstance DisplayEntityType = "workflow_instance"
	DisplayEntityWorkflowStep     DisplayEntityType = "workflow_step"
)

// Prefix returns the human-facing prefix for the entity type, e.g. "WF" for
// instances so that instance 42 renders as "WF-42".
func (t DisplayEntityType) Prefix() string {
	switch t {
	case DisplayEntityWorkflowStep:
		return "STEP"
	default:
		return "WF"
	}
}

// FormatDisplayID renders a display number with its entity prefix ("WF-42").
// Only the number is stored; the prefix is applied at the edge.
func FormatDisplayID(t DisplayEntityType, number int64) string {
	return fmt.Sprintf("%s-%d", t.Prefix(), number)
}
