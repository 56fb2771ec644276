package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/phrazzld/genserve/internal/api"
	"github.com/phrazzld/genserve/internal/artifact"
	"github.com/phrazzld/genserve/internal/audit"
	"github.com/phrazzld/genserve/internal/config"
	"github.com/phrazzld/genserve/internal/generation"
	"github.com/phrazzld/genserve/internal/platform/gemini"
	"github.com/phrazzld/genserve/internal/platform/postgres"
	"github.com/phrazzld/genserve/internal/queue"
	"github.com/phrazzld/genserve/internal/service"
	"github.com/phrazzld/genserve/internal/task"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	// db is nil for the memory backend.
	db *sql.DB

	broker  queue.Broker
	store   *artifact.FileStore
	auditor *audit.Logger

	generationService service.GenerationService
	router            http.Handler

	// runner is nil unless workers are embedded in this process.
	runner *task.Runner
}

// newApplication creates a new application instance with all dependencies
// initialized. On error every resource opened so far is released.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
	}
	if err := app.init(ctx); err != nil {
		app.closeResources()
		return nil, err
	}

	logger.Info("application initialized successfully")
	return app, nil
}

func (app *application) init(ctx context.Context) error {
	var err error
	cfg := app.config

	app.broker, err = app.setupBroker(ctx)
	if err != nil {
		return fmt.Errorf("failed to set up job broker: %w", err)
	}

	app.store, err = artifact.NewFileStore(cfg.Storage.ImageDir)
	if err != nil {
		return fmt.Errorf("failed to set up artifact store: %w", err)
	}
	app.logger.Info("artifact store ready", "root", app.store.Root())

	app.auditor, err = audit.Open(cfg.Audit.LogFile, cfg.Audit.BufferSize, app.logger)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}

	app.generationService, err = service.NewGenerationService(app.broker, app.store, app.auditor, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create generation service: %w", err)
	}

	app.router = api.NewRouter(api.NewGenerationHandler(app.generationService), app.logger)

	if cfg.RunsEmbeddedWorkers() {
		generator, err := gemini.NewGenerator(ctx, app.logger.With("component", "image_generator"), cfg.LLM)
		if err != nil {
			return fmt.Errorf("failed to initialize image generator: %w", err)
		}
		app.runner, err = setupTaskRunner(app, generator)
		if err != nil {
			return fmt.Errorf("failed to set up task runner: %w", err)
		}
	}

	return nil
}

// setupBroker selects the broker backend named in the configuration.
func (app *application) setupBroker(ctx context.Context) (queue.Broker, error) {
	switch app.config.Queue.Backend {
	case config.BackendMemory:
		app.logger.Info("using in-memory job broker")
		return queue.NewMemoryBroker(), nil

	case config.BackendPostgres:
		db, err := postgres.Open(ctx, app.config.Database, app.logger)
		if err != nil {
			return nil, err
		}
		app.db = db
		if err := postgres.Migrate(ctx, db, app.logger); err != nil {
			return nil, err
		}
		return postgres.NewJobBroker(db), nil

	default:
		return nil, fmt.Errorf("unsupported queue backend %q", app.config.Queue.Backend)
	}
}

// setupTaskRunner builds the embedded worker pool. It is started by Run.
func setupTaskRunner(app *application, generator generation.Generator) (*task.Runner, error) {
	genTask, err := task.NewGenerationTask(generator, app.store, app.logger)
	if err != nil {
		return nil, err
	}
	return task.NewRunner(app.broker, genTask, task.RunnerConfigFrom(app.config.Worker), app.logger)
}

// shutdown runs every step after the HTTP server has drained: the audit
// sentinel and writer, then embedded workers, then the broker and database.
func (app *application) shutdown(ctx context.Context) error {
	var errs []error

	if err := app.stopAudit(); err != nil {
		errs = append(errs, err)
	}

	if app.runner != nil {
		if err := app.runner.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("task runner shutdown: %w", err))
		}
	}

	if err := app.closeBroker(); err != nil {
		errs = append(errs, err)
	}

	app.logger.Info("application shutdown completed")
	return errors.Join(errs...)
}

// stopAudit flushes the audit log under its own deadline, so a drain that
// used up the caller's context cannot cost accepted audit records.
func (app *application) stopAudit() error {
	if app.auditor == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout)
	defer cancel()

	if err := app.auditor.Stop(ctx); err != nil {
		return fmt.Errorf("audit log shutdown: %w", err)
	}
	app.logger.Info("audit log flushed",
		"path", app.auditor.Path(),
		"written", app.auditor.Written(),
		"dropped", app.auditor.Dropped(),
		"failed", app.auditor.Failed())
	return nil
}

// closeResources releases resources after a failed initialization.
func (app *application) closeResources() {
	if app.auditor != nil {
		if err := app.auditor.Stop(context.Background()); err != nil {
			app.logger.Error("error closing audit log", "error", err)
		}
	}
	if err := app.closeBroker(); err != nil {
		app.logger.Error("error closing job broker", "error", err)
	}
}

func (app *application) closeBroker() error {
	if mem, ok := app.broker.(*queue.MemoryBroker); ok {
		if n := mem.Len(); n > 0 {
			app.logger.Warn("discarding queued jobs held in memory", "count", n)
		}
		if err := mem.Close(); err != nil {
			return fmt.Errorf("error closing job broker: %w", err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			return fmt.Errorf("error closing database connection: %w", err)
		}
		app.db = nil
	}
	return nil
}
