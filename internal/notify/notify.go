// Package notify delivers workflow events to interested parties. Delivery is
// fire-and-forget: the engine invokes a Sink only after the triggering write
// has committed, and a failed delivery never fails the operation.
package notify

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Events emitted by the workflow engine.
const (
	EventWorkflowSubmitted   = "workflow.submitted"
	EventWorkflowResubmitted = "workflow.resubmitted"
	EventWorkflowApproved    = "workflow.approved"
	EventWorkflowRejected    = "workflow.rejected"
	EventStepApproved        = "step.approved"
	EventStepRejected        = "step.rejected"
	EventChangesRequested    = "step.changes_requested"
)

// Sink receives workflow events. Implementations must not block for long and
// must swallow their own failures.
type Sink interface {
	Notify(ctx context.Context, event string, tenantID, instanceID uuid.UUID)
}

// NoopSink discards all events.
type NoopSink struct{}

func (NoopSink) Notify(context.Context, string, uuid.UUID, uuid.UUID) {}

// LogSink writes events to the structured log. It stands in for an outbound
// integration (mail, chat webhook) in development and tests.
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Notify(_ context.Context, event string, tenantID, instanceID uuid.UUID) {
	s.logger.Info().
		Str("event", event).
		Str("tenant_id", tenantID.String()).
		Str("instance_id", instanceID.String()).
		Msg("workflow event")
}
