package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/genserve/internal/artifact"
	"github.com/phrazzld/genserve/internal/domain"
	"github.com/phrazzld/genserve/internal/jobstatus"
	"github.com/phrazzld/genserve/internal/platform/logger"
	"github.com/phrazzld/genserve/internal/queue"
	"github.com/phrazzld/genserve/internal/redact"
)

// Auditor receives one event per accepted submission. Log must not block.
type Auditor interface {
	Log(event domain.AuditEvent)
}

// ArtifactReader is the read side of the artifact store.
type ArtifactReader interface {
	Get(ctx context.Context, artifactID string) (*artifact.Artifact, error)
}

// GenerationService is the request gateway's use-case layer.
type GenerationService interface {
	// Submit validates prompt, enqueues a job and records an audit event.
	// The returned job carries both the job id and the artifact id.
	Submit(ctx context.Context, prompt string) (*domain.Job, error)

	// Status resolves the current status of a job. It never fails: an
	// unresolvable job is reported as JobStatusUnknown.
	Status(ctx context.Context, jobID string) *domain.Job

	// Artifact returns the stored result for an artifact id.
	Artifact(ctx context.Context, artifactID string) (*artifact.Artifact, error)
}

// GenerationServiceError wraps unexpected errors from the generation
// service with context.
type GenerationServiceError struct {
	// Operation is the operation that failed (e.g., "submit", "artifact")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for GenerationServiceError.
func (e *GenerationServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("generation service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("generation service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *GenerationServiceError) Unwrap() error {
	return e.Err
}

// NewGenerationServiceError creates a new GenerationServiceError. Domain
// sentinel errors are returned as they are so the API layer can map them.
func NewGenerationServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidRequest) {
		return err
	}
	return &GenerationServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

type generationServiceImpl struct {
	queue     queue.Client
	artifacts ArtifactReader
	auditor   Auditor
	logger    *slog.Logger
}

// NewGenerationService creates a GenerationService. The service holds no
// mutable state of its own and is safe for concurrent use.
func NewGenerationService(
	client queue.Client,
	artifacts ArtifactReader,
	auditor Auditor,
	logger *slog.Logger,
) (GenerationService, error) {
	if client == nil {
		return nil, errors.New("client cannot be nil")
	}
	if artifacts == nil {
		return nil, errors.New("artifacts cannot be nil")
	}
	if auditor == nil {
		return nil, errors.New("auditor cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &generationServiceImpl{
		queue:     client,
		artifacts: artifacts,
		auditor:   auditor,
		logger:    logger.With("component", "generation_service"),
	}, nil
}

// Submit implements GenerationService.
func (s *generationServiceImpl) Submit(ctx context.Context, prompt string) (*domain.Job, error) {
	log := logger.FromContextOrDefault(ctx)

	normalized, err := domain.NormalizePrompt(prompt)
	if err != nil {
		return nil, err
	}

	job := &domain.Job{
		ArtifactID: domain.NewArtifactID(),
		Prompt:     normalized,
		Status:     domain.JobStatusQueued,
	}

	jobID, err := s.queue.Submit(ctx, job.Prompt, job.ArtifactID)
	if err != nil {
		log.Error("failed to enqueue generation job",
			"image_id", job.ArtifactID,
			"error", redact.Error(err))
		return nil, NewGenerationServiceError("submit", "failed to enqueue job",
			fmt.Errorf("%w: %w", domain.ErrUpstreamUnavailable, err))
	}
	job.JobID = jobID

	s.auditor.Log(domain.NewGenerateRequestedEvent(*job))

	log.Info("generation job enqueued",
		"task_id", job.JobID,
		"image_id", job.ArtifactID)
	return job, nil
}

// Status implements GenerationService.
func (s *generationServiceImpl) Status(ctx context.Context, jobID string) *domain.Job {
	log := logger.FromContextOrDefault(ctx)

	result, err := s.queue.Poll(ctx, jobID)
	switch {
	case err != nil && !errors.Is(err, queue.ErrJobNotFound):
		log.Warn("failed to poll job status",
			"task_id", jobID,
			"error", redact.Error(err))
	case err == nil && result.State == queue.StateFailed:
		// The cause stays in the logs; clients only see the failed label.
		log.Info("job failed",
			"task_id", jobID,
			"reason", redact.String(result.Reason))
	case err == nil && result.State.IsTerminal():
		log.Debug("job finished", "task_id", jobID, "state", result.State)
	}

	resolved := jobstatus.Resolve(result, err)
	return &domain.Job{
		JobID:          jobID,
		Status:         resolved.Status,
		ResultLocation: resolved.ResultLocation,
	}
}

// Artifact implements GenerationService.
func (s *generationServiceImpl) Artifact(ctx context.Context, artifactID string) (*artifact.Artifact, error) {
	a, err := s.artifacts.Get(ctx, artifactID)
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			return nil, fmt.Errorf("%w: artifact %s", domain.ErrNotFound, artifactID)
		}
		return nil, NewGenerationServiceError("artifact", "failed to read artifact", err)
	}
	return a, nil
}
