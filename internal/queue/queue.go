package queue

import (
	"context"
	"errors"
	"time"
)

// State is a broker-native job state.
type State string

// Native states. Only a job in StatePending or StateRetry can be claimed;
// StateSucceeded and StateFailed are terminal.
const (
	StatePending   State = "pending"
	StateStarted   State = "started"
	StateRetry     State = "retry"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// IsTerminal reports whether the broker will never move a job out of s.
func (s State) IsTerminal() bool {
	return s == StateSucceeded || s == StateFailed
}

var (
	// ErrQueueUnavailable is returned when the broker cannot be reached or
	// refuses work.
	ErrQueueUnavailable = errors.New("job queue unavailable")

	// ErrJobNotFound is returned when the broker has no record of a job id.
	ErrJobNotFound = errors.New("job not found")

	// ErrNoJobAvailable is returned by Claim when nothing is waiting.
	ErrNoJobAvailable = errors.New("no job available")

	// ErrInvalidTransition is returned when a worker reports an outcome for
	// a job that is not currently started.
	ErrInvalidTransition = errors.New("invalid job state transition")
)

// Result is what a poll reveals about a job.
type Result struct {
	State State
	// Location is the stored artifact location; set only on success.
	Location string
	// Reason is the recorded failure cause; set only on failure. It is for
	// operators and never reaches clients.
	Reason string
}

// Job is a unit of work handed to a worker.
type Job struct {
	ID         string
	ArtifactID string
	Prompt     string
	Attempts   int
	CreatedAt  time.Time
}

// Client is the gateway's view of the broker.
type Client interface {
	// Submit enqueues a generation job and returns the broker-assigned id.
	Submit(ctx context.Context, prompt, artifactID string) (string, error)
	// Poll returns the native state of a job.
	Poll(ctx context.Context, jobID string) (Result, error)
}

// Consumer is the worker's view of the broker.
type Consumer interface {
	// Claim moves the oldest waiting job to StateStarted and returns it.
	Claim(ctx context.Context) (*Job, error)
	// Complete marks a started job as succeeded with its artifact location.
	Complete(ctx context.Context, jobID, location string) error
	// Fail marks a started job as failed. reason is kept by the broker and
	// never shown to clients.
	Fail(ctx context.Context, jobID, reason string) error
	// RequeueStale moves jobs started longer than olderThan ago back to
	// StateRetry and returns how many were moved.
	RequeueStale(ctx context.Context, olderThan time.Duration) (int, error)
}

// Broker is implemented by backends serving both sides.
type Broker interface {
	Client
	Consumer
}
