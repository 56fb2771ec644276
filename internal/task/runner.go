package task

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/genserve/internal/config"
	"github.com/phrazzld/genserve/internal/queue"
	"github.com/phrazzld/genserve/internal/redact"
)

// DefaultJobTimeout bounds a single generation attempt.
const DefaultJobTimeout = 2 * time.Minute

// reportTimeout bounds reporting an outcome back to the broker.
const reportTimeout = 5 * time.Second

// RunnerConfig holds configuration for the task runner
type RunnerConfig struct {
	// WorkerCount determines how many jobs are processed concurrently.
	// If zero or negative, defaults to 1
	WorkerCount int

	// PollInterval is how long an idle worker waits before claiming again
	PollInterval time.Duration

	// StuckJobAge defines how long a job can stay started before it is
	// considered abandoned and requeued
	StuckJobAge time.Duration

	// StuckJobCheckInterval defines how often to check for stuck jobs
	// If zero, defaults to 5 minutes
	StuckJobCheckInterval time.Duration

	// JobTimeout bounds a single generation attempt
	// If zero, defaults to DefaultJobTimeout
	JobTimeout time.Duration
}

// DefaultRunnerConfig returns a RunnerConfig with reasonable defaults
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		WorkerCount:           2,
		PollInterval:          2 * time.Second,
		StuckJobAge:           30 * time.Minute,
		StuckJobCheckInterval: 5 * time.Minute,
		JobTimeout:            DefaultJobTimeout,
	}
}

// RunnerConfigFrom builds a RunnerConfig from the worker settings.
func RunnerConfigFrom(cfg config.WorkerConfig) RunnerConfig {
	return RunnerConfig{
		WorkerCount:           cfg.Concurrency,
		PollInterval:          cfg.PollInterval,
		StuckJobAge:           cfg.StuckJobAge,
		StuckJobCheckInterval: cfg.StuckCheckInterval,
		JobTimeout:            DefaultJobTimeout,
	}
}

// Runner manages background job processing
type Runner struct {
	consumer queue.Consumer
	task     *GenerationTask
	config   RunnerConfig
	logger   *slog.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewRunner creates a new Runner
func NewRunner(consumer queue.Consumer, task *GenerationTask, cfg RunnerConfig, logger *slog.Logger) (*Runner, error) {
	if consumer == nil {
		return nil, ErrNilConsumer
	}
	if task == nil {
		return nil, errors.New("task cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.WorkerCount <= 0 {
		logger.Warn("invalid worker count specified, using default",
			"specified_count", cfg.WorkerCount,
			"default_count", 1)
		cfg.WorkerCount = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultRunnerConfig().PollInterval
	}
	if cfg.StuckJobAge <= 0 {
		cfg.StuckJobAge = DefaultRunnerConfig().StuckJobAge
	}
	if cfg.StuckJobCheckInterval <= 0 {
		cfg.StuckJobCheckInterval = 5 * time.Minute
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = DefaultJobTimeout
	}

	return &Runner{
		consumer: consumer,
		task:     task,
		config:   cfg,
		logger:   logger.With("component", "task_runner"),
	}, nil
}

// Start launches the workers and the stuck job monitor. Calling Start on
// a running Runner is a no-op.
func (r *Runner) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	for i := 0; i < r.config.WorkerCount; i++ {
		r.wg.Add(1)
		go r.worker(ctx, i)
	}

	r.wg.Add(1)
	go r.stuckJobMonitor(ctx)

	r.logger.Info("task runner started", "worker_count", r.config.WorkerCount)
}

// Stop cancels in-flight work and waits for every goroutine to exit, or
// for ctx to be done. Jobs interrupted by Stop stay started in the broker
// and are recovered by the stuck job monitor of a later runner.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("task runner stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// worker claims and processes jobs until ctx is cancelled.
func (r *Runner) worker(ctx context.Context, id int) {
	defer r.wg.Done()

	log := r.logger.With("worker_id", id)
	log.Debug("starting worker")

	for {
		if ctx.Err() != nil {
			log.Debug("stopping worker")
			return
		}

		job, err := r.consumer.Claim(ctx)
		switch {
		case err == nil:
			r.processJob(ctx, job, log)
			continue
		case errors.Is(err, queue.ErrNoJobAvailable), errors.Is(err, context.Canceled):
		default:
			log.Error("failed to claim job", "error", redact.Error(err))
		}

		if !sleep(ctx, r.config.PollInterval) {
			log.Debug("stopping worker")
			return
		}
	}
}

// processJob runs one job and reports its outcome.
func (r *Runner) processJob(ctx context.Context, job *queue.Job, log *slog.Logger) {
	log = log.With("task_id", job.ID)

	jobCtx, cancel := context.WithTimeout(ctx, r.config.JobTimeout)
	location, err := r.task.Execute(jobCtx, job)
	cancel()

	if err != nil && ctx.Err() != nil {
		log.Warn("job interrupted by shutdown, leaving it for recovery", "error", redact.Error(err))
		return
	}

	reportCtx, cancelReport := context.WithTimeout(context.WithoutCancel(ctx), reportTimeout)
	defer cancelReport()

	if err != nil {
		reason := redact.Error(err)
		log.Error("job failed", "error", reason)
		if failErr := r.consumer.Fail(reportCtx, job.ID, reason); failErr != nil {
			log.Error("failed to mark job as failed", "error", redact.Error(failErr))
		}
		return
	}

	if completeErr := r.consumer.Complete(reportCtx, job.ID, location); completeErr != nil {
		log.Error("failed to mark job as completed", "error", redact.Error(completeErr))
		return
	}
	log.Info("job completed", "location", location)
}

// stuckJobMonitor periodically returns jobs that have been started for too
// long to the queue.
func (r *Runner) stuckJobMonitor(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.StuckJobCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := r.consumer.RequeueStale(ctx, r.config.StuckJobAge)
			if err != nil {
				if ctx.Err() == nil {
					r.logger.Error("failed to requeue stuck jobs", "error", redact.Error(err))
				}
				continue
			}
			if n > 0 {
				r.logger.Info("requeued stuck jobs", "count", n)
			}
		}
	}
}

// sleep waits for d or until ctx is done. It reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
