package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/genserve/internal/platform/logger"
	"github.com/phrazzld/genserve/internal/queue"
)

const (
	insertJobQuery = `
		INSERT INTO generation_jobs (id, artifact_id, prompt, state, created_at, updated_at)
		VALUES ($1, $2, $3, 'pending', $4, $4)
	`

	pollJobQuery = `
		SELECT state, COALESCE(result_location, ''), COALESCE(error_message, '')
		FROM generation_jobs
		WHERE id = $1
	`

	claimJobQuery = `
		WITH next_job AS (
			SELECT id
			FROM generation_jobs
			WHERE state IN ('pending', 'retry')
			ORDER BY created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE generation_jobs
		SET state = 'started', attempts = attempts + 1, started_at = $1, updated_at = $1
		WHERE id IN (SELECT id FROM next_job)
		RETURNING id, artifact_id, prompt, attempts, created_at
	`

	finishJobQuery = `
		UPDATE generation_jobs
		SET state = $2, result_location = $3, error_message = $4, updated_at = $5
		WHERE id = $1 AND state = 'started'
	`

	requeueStaleQuery = `
		UPDATE generation_jobs
		SET state = 'retry', updated_at = $2
		WHERE state = 'started' AND started_at < $1
	`
)

// JobBroker implements queue.Broker on the generation_jobs table.
type JobBroker struct {
	db  DBTX
	now func() time.Time
}

var _ queue.Broker = (*JobBroker)(nil)

// NewJobBroker creates a broker over db.
func NewJobBroker(db DBTX) *JobBroker {
	return &JobBroker{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Submit implements queue.Client. Every failure to persist the job means
// the broker did not accept it, so all errors match ErrQueueUnavailable.
func (b *JobBroker) Submit(ctx context.Context, prompt, artifactID string) (string, error) {
	id := uuid.New()

	if _, err := b.db.ExecContext(ctx, insertJobQuery, id, artifactID, prompt, b.now()); err != nil {
		logger.FromContextOrDefault(ctx).Error("failed to insert generation job",
			"job_id", id.String(),
			"image_id", artifactID,
			"error", err)
		return "", unavailable("submit", err)
	}
	return id.String(), nil
}

// Poll implements queue.Client. Ids that are not UUIDs cannot exist and
// are reported as not found without a round trip.
func (b *JobBroker) Poll(ctx context.Context, jobID string) (queue.Result, error) {
	id, err := uuid.Parse(jobID)
	if err != nil {
		return queue.Result{}, queue.ErrJobNotFound
	}

	var (
		state    string
		location string
		reason   string
	)
	err = b.db.QueryRowContext(ctx, pollJobQuery, id).Scan(&state, &location, &reason)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return queue.Result{}, queue.ErrJobNotFound
	case err != nil:
		if isInvalidText(err) {
			return queue.Result{}, queue.ErrJobNotFound
		}
		return queue.Result{}, unavailable("poll", err)
	}

	return queue.Result{State: queue.State(state), Location: location, Reason: reason}, nil
}

// Claim implements queue.Consumer.
func (b *JobBroker) Claim(ctx context.Context) (*queue.Job, error) {
	var (
		job queue.Job
		id  uuid.UUID
	)
	err := b.db.QueryRowContext(ctx, claimJobQuery, b.now()).
		Scan(&id, &job.ArtifactID, &job.Prompt, &job.Attempts, &job.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, queue.ErrNoJobAvailable
		}
		if IsUnavailable(err) {
			return nil, unavailable("claim", err)
		}
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}
	job.ID = id.String()
	return &job, nil
}

// Complete implements queue.Consumer.
func (b *JobBroker) Complete(ctx context.Context, jobID, location string) error {
	return b.finish(ctx, jobID, queue.StateSucceeded, sql.NullString{String: location, Valid: true}, sql.NullString{})
}

// Fail implements queue.Consumer.
func (b *JobBroker) Fail(ctx context.Context, jobID, reason string) error {
	return b.finish(ctx, jobID, queue.StateFailed, sql.NullString{}, sql.NullString{String: reason, Valid: true})
}

func (b *JobBroker) finish(
	ctx context.Context,
	jobID string,
	state queue.State,
	location, reason sql.NullString,
) error {
	id, err := uuid.Parse(jobID)
	if err != nil {
		return queue.ErrJobNotFound
	}

	result, err := b.db.ExecContext(ctx, finishJobQuery, id, string(state), location, reason, b.now())
	if err != nil {
		if IsUnavailable(err) {
			return unavailable("finish", err)
		}
		return fmt.Errorf("failed to mark job %s: %w", state, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	// Nothing changed: either the job does not exist or it is not started.
	current, err := b.Poll(ctx, jobID)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s -> %s", queue.ErrInvalidTransition, current.State, state)
}

// RequeueStale implements queue.Consumer.
func (b *JobBroker) RequeueStale(ctx context.Context, olderThan time.Duration) (int, error) {
	now := b.now()
	result, err := b.db.ExecContext(ctx, requeueStaleQuery, now.Add(-olderThan), now)
	if err != nil {
		if IsUnavailable(err) {
			return 0, unavailable("requeue", err)
		}
		return 0, fmt.Errorf("failed to requeue stale jobs: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected > 0 {
		logger.FromContextOrDefault(ctx).Warn("requeued stale generation jobs",
			slog.Int64("count", affected),
			slog.Duration("older_than", olderThan))
	}
	return int(affected), nil
}
