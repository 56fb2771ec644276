package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// JobStatus is the service's own status vocabulary. Broker-native states
// are translated into it by the jobstatus package.
type JobStatus string

// Possible job status values
const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusUnknown   JobStatus = "unknown"
)

// IsTerminal reports whether no further transition is possible.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job is one generation request as projected from the broker. The gateway
// never stores jobs; a Job value only lives for the duration of a request.
type Job struct {
	JobID          string    `json:"job_id"`
	ArtifactID     string    `json:"artifact_id"`
	Prompt         string    `json:"prompt,omitempty"`
	Status         JobStatus `json:"status"`
	ResultLocation string    `json:"result_location,omitempty"`
}

// NormalizePrompt trims surrounding whitespace and rejects blank prompts.
func NormalizePrompt(prompt string) (string, error) {
	trimmed := strings.TrimSpace(prompt)
	if trimmed == "" {
		return "", fmt.Errorf("%w: %w", ErrInvalidRequest, ErrEmptyPrompt)
	}
	return trimmed, nil
}

// NewArtifactID returns a fresh random identifier used to name a stored
// artifact. It is deliberately unrelated to the broker's job id.
func NewArtifactID() string {
	return uuid.NewString()
}
