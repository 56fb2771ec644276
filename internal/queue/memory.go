package queue

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryJob struct {
	job       Job
	state     State
	location  string
	reason    string
	startedAt time.Time
}

// MemoryBroker is a Broker kept entirely in process memory. Jobs are lost
// on restart, so it only suits single-process deployments with embedded
// workers.
type MemoryBroker struct {
	mu      sync.Mutex
	jobs    map[string]*memoryJob
	waiting []string
	closed  bool
	now     func() time.Time
}

var _ Broker = (*MemoryBroker)(nil)

// NewMemoryBroker returns an empty broker.
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		jobs: make(map[string]*memoryJob),
		now:  time.Now,
	}
}

// Submit implements Client.
func (b *MemoryBroker) Submit(ctx context.Context, prompt, artifactID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrQueueUnavailable, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return "", fmt.Errorf("%w: broker closed", ErrQueueUnavailable)
	}

	id := uuid.NewString()
	b.jobs[id] = &memoryJob{
		job: Job{
			ID:         id,
			ArtifactID: artifactID,
			Prompt:     prompt,
			CreatedAt:  b.now(),
		},
		state: StatePending,
	}
	b.waiting = append(b.waiting, id)
	return id, nil
}

// Poll implements Client.
func (b *MemoryBroker) Poll(ctx context.Context, jobID string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrQueueUnavailable, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	j, ok := b.jobs[jobID]
	if !ok {
		return Result{}, ErrJobNotFound
	}
	res := Result{State: j.state, Location: j.location}
	if j.state == StateFailed {
		res.Reason = j.reason
	}
	return res, nil
}

// Claim implements Consumer.
func (b *MemoryBroker) Claim(ctx context.Context) (*Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.waiting) == 0 {
		return nil, ErrNoJobAvailable
	}
	id := b.waiting[0]
	b.waiting = b.waiting[1:]

	j := b.jobs[id]
	j.state = StateStarted
	j.startedAt = b.now()
	j.job.Attempts++

	claimed := j.job
	return &claimed, nil
}

// Complete implements Consumer.
func (b *MemoryBroker) Complete(ctx context.Context, jobID, location string) error {
	return b.finish(ctx, jobID, StateSucceeded, location, "")
}

// Fail implements Consumer.
func (b *MemoryBroker) Fail(ctx context.Context, jobID, reason string) error {
	return b.finish(ctx, jobID, StateFailed, "", reason)
}

func (b *MemoryBroker) finish(ctx context.Context, jobID string, state State, location, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	j, ok := b.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	if j.state != StateStarted {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.state, state)
	}
	j.state = state
	j.location = location
	j.reason = reason
	return nil
}

// RequeueStale implements Consumer.
func (b *MemoryBroker) RequeueStale(ctx context.Context, olderThan time.Duration) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	cutoff := b.now().Add(-olderThan)
	var stale []*memoryJob
	for _, j := range b.jobs {
		if j.state == StateStarted && j.startedAt.Before(cutoff) {
			stale = append(stale, j)
		}
	}
	slices.SortFunc(stale, func(a, c *memoryJob) int {
		return a.job.CreatedAt.Compare(c.job.CreatedAt)
	})
	for _, j := range stale {
		j.state = StateRetry
		b.waiting = append(b.waiting, j.job.ID)
	}
	return len(stale), nil
}

// Len returns the number of jobs waiting to be claimed.
func (b *MemoryBroker) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.waiting)
}

// Close makes further submissions fail with ErrQueueUnavailable. Jobs
// already accepted can still be polled, claimed and finished.
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}
