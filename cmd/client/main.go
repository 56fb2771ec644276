// Package main implements genserve-client, a command line client that
// submits a prompt to the gateway, waits for the image and downloads it.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/phrazzld/genserve/internal/client"
	"github.com/phrazzld/genserve/internal/platform/logger"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ErrMissingPrompt is returned when no prompt was given on the command
// line or standard input.
var ErrMissingPrompt = errors.New("a prompt is required")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		slog.Error("client exited with error", "error", err)
		os.Exit(1)
	}
}

func newFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("genserve-client", pflag.ContinueOnError)
	flags.String("server", "http://localhost:8080", "gateway base URL (env SERVER_URL)")
	flags.String("download-dir", "downloaded_images", "directory images are saved to (env DOWNLOAD_PATH)")
	flags.Duration("poll-interval", client.DefaultPollInterval, "pause between status checks")
	flags.Duration("timeout", 10*time.Minute, "give up after this long")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	return flags
}

// run parses args, reads the prompt from the remaining arguments or the
// first line of stdin, and prints the saved image path to stdout.
func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env file: %w", err)
	}

	flags := newFlagSet()
	if err := flags.Parse(args); err != nil {
		return err
	}

	v := viper.New()
	if err := v.BindPFlags(flags); err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}
	_ = v.BindEnv("server", "SERVER_URL")
	_ = v.BindEnv("download-dir", "DOWNLOAD_PATH")

	log := logger.New(os.Stderr, v.GetString("log-level"))

	prompt := strings.TrimSpace(strings.Join(flags.Args(), " "))
	if prompt == "" {
		var err error
		if prompt, err = readPrompt(stdin, os.Stderr); err != nil {
			return err
		}
	}

	c, err := client.New(v.GetString("server"),
		client.WithPollInterval(v.GetDuration("poll-interval")),
		client.WithLogger(log))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, v.GetDuration("timeout"))
	defer cancel()

	path, err := c.Generate(ctx, prompt, v.GetString("download-dir"))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, path)
	return err
}

func readPrompt(in io.Reader, hint io.Writer) (string, error) {
	_, _ = fmt.Fprint(hint, "Prompt: ")
	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("failed to read prompt: %w", err)
		}
		return "", ErrMissingPrompt
	}
	prompt := strings.TrimSpace(scanner.Text())
	if prompt == "" {
		return "", ErrMissingPrompt
	}
	return prompt, nil
}
