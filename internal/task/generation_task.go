package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/genserve/internal/artifact"
	"github.com/phrazzld/genserve/internal/generation"
	"github.com/phrazzld/genserve/internal/queue"
)

// Common errors
var (
	ErrNilGenerator = errors.New("generator cannot be nil")
	ErrNilStore     = errors.New("artifact store cannot be nil")
	ErrNilConsumer  = errors.New("consumer cannot be nil")
)

// ArtifactWriter is the write side of the artifact store.
type ArtifactWriter interface {
	Put(ctx context.Context, artifactID string, data []byte) (string, error)
}

// GenerationTask turns one claimed job into a stored artifact.
type GenerationTask struct {
	generator generation.Generator
	store     ArtifactWriter
	logger    *slog.Logger
}

// NewGenerationTask creates a GenerationTask.
func NewGenerationTask(
	generator generation.Generator,
	store ArtifactWriter,
	logger *slog.Logger,
) (*GenerationTask, error) {
	if generator == nil {
		return nil, ErrNilGenerator
	}
	if store == nil {
		return nil, ErrNilStore
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GenerationTask{
		generator: generator,
		store:     store,
		logger:    logger,
	}, nil
}

// Execute generates the image for job and stores it under the job's
// artifact id. It returns the artifact location on success.
func (t *GenerationTask) Execute(ctx context.Context, job *queue.Job) (string, error) {
	log := t.logger.With("task_id", job.ID, "image_id", job.ArtifactID, "attempt", job.Attempts)

	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("task cancelled by context: %w", err)
	}

	log.Info("generating image")
	data, err := t.generator.Generate(ctx, job.Prompt)
	if err != nil {
		return "", fmt.Errorf("failed to generate image: %w", err)
	}

	location, err := t.store.Put(ctx, job.ArtifactID, data)
	if err != nil {
		if errors.Is(err, artifact.ErrInvalidID) {
			return "", fmt.Errorf("job carries an unusable artifact id: %w", err)
		}
		return "", fmt.Errorf("failed to store image: %w", err)
	}

	log.Info("image stored", "bytes", len(data), "location", location)
	return location, nil
}
