package domain

import "time"

// AuditAction names what happened in an audit record.
type AuditAction string

// Known audit actions
const (
	AuditActionGenerateRequested AuditAction = "generate_requested"
)

// AuditEvent is a denormalized record of an accepted generation request.
// It is created by the gateway, handed to the audit logger by value, and
// never modified afterwards. Timestamp is left zero by producers; the
// audit writer stamps it at write time.
type AuditEvent struct {
	Action     AuditAction `json:"action"`
	Prompt     string      `json:"prompt"`
	ArtifactID string      `json:"image_id"`
	JobID      string      `json:"task_id"`
	Timestamp  time.Time   `json:"timestamp"`
}

// NewGenerateRequestedEvent builds the audit event for an accepted submission.
func NewGenerateRequestedEvent(job Job) AuditEvent {
	return AuditEvent{
		Action:     AuditActionGenerateRequested,
		Prompt:     job.Prompt,
		ArtifactID: job.ArtifactID,
		JobID:      job.JobID,
	}
}
