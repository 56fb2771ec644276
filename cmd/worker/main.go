// Package main implements genserve-worker, a standalone generation worker.
// It claims jobs from the Postgres broker, generates images and stores them
// where the gateway serves them from.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/phrazzld/genserve/internal/artifact"
	"github.com/phrazzld/genserve/internal/config"
	"github.com/phrazzld/genserve/internal/platform/gemini"
	"github.com/phrazzld/genserve/internal/platform/logger"
	"github.com/phrazzld/genserve/internal/platform/postgres"
	"github.com/phrazzld/genserve/internal/task"
	"github.com/spf13/pflag"
)

// ErrSharedBrokerRequired is returned when the configured backend cannot be
// reached from a separate process.
var ErrSharedBrokerRequired = errors.New("standalone workers require the postgres queue backend")

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		slog.Error("worker exited with error", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env file: %w", err)
	}

	flags := pflag.NewFlagSet("genserve-worker", pflag.ContinueOnError)
	flags.String(config.ConfigFlag, "", "path to a YAML configuration file")
	flags.Int("concurrency", 2, "number of jobs processed concurrently")
	flags.String("image-dir", "./generated_images", "directory generated images are written to")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(flags)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Queue.Backend != config.BackendPostgres {
		return fmt.Errorf("%w (got %q)", ErrSharedBrokerRequired, cfg.Queue.Backend)
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("error closing database connection", "error", err)
		}
	}()

	if err := postgres.Migrate(ctx, db, log); err != nil {
		return err
	}

	store, err := artifact.NewFileStore(cfg.Storage.ImageDir)
	if err != nil {
		return fmt.Errorf("failed to set up artifact store: %w", err)
	}

	generator, err := gemini.NewGenerator(ctx, log.With("component", "image_generator"), cfg.LLM)
	if err != nil {
		return fmt.Errorf("failed to initialize image generator: %w", err)
	}

	genTask, err := task.NewGenerationTask(generator, store, log)
	if err != nil {
		return err
	}
	runner, err := task.NewRunner(postgres.NewJobBroker(db), genTask, task.RunnerConfigFrom(cfg.Worker), log)
	if err != nil {
		return err
	}

	runner.Start()
	log.Info("worker started",
		"concurrency", cfg.Worker.Concurrency,
		"image_dir", store.Root())

	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return runner.Stop(shutdownCtx)
}
