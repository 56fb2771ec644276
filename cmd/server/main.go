// Package main implements the genserve gateway: it accepts image generation
// requests over HTTP, hands them to the job broker, reports job status and
// serves finished images.
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
	"github.com/phrazzld/genserve/internal/config"
	"github.com/phrazzld/genserve/internal/platform/logger"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		slog.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

// run loads configuration, builds the application and serves until the
// process receives SIGINT or SIGTERM.
func run(args []string) error {
	// A missing .env file is not an error; the environment may be set
	// directly.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env file: %w", err)
	}

	flags := newFlagSet()
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(flags)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	log.Info("server configuration loaded",
		"ipv4", cfg.Server.IPv4,
		"ipv6", cfg.Server.IPv6,
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"queue_backend", cfg.Queue.Backend,
		"embedded_workers", cfg.RunsEmbeddedWorkers())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApplication(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	return app.Run(ctx)
}

// newFlagSet declares the command line flags. Defaults are left to the
// configuration layer, so only flags actually passed override it.
func newFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("genserve-server", pflag.ContinueOnError)
	flags.String(config.ConfigFlag, "", "path to a YAML configuration file")
	flags.String("ipv4", "0.0.0.0", "IPv4 listen address, empty to disable")
	flags.String("ipv6", "::", "IPv6 listen address, empty to disable")
	flags.Int("port", 8080, "listen port shared by both address families")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("image-dir", "./generated_images", "directory holding generated images")
	flags.String("log-file", "server_log.txt", "audit log file")
	flags.String("backend", config.BackendMemory, "job broker backend (memory, postgres)")
	return flags
}
