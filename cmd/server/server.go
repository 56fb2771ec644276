package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
)

// listener is one bound address family.
type listener struct {
	network string
	ln      net.Listener
}

// listen binds the configured IPv4 and IPv6 addresses on the shared port.
// An IPv6 failure is tolerated while the IPv4 listener is up, so hosts
// without IPv6 still start with the default configuration.
func (app *application) listen() ([]listener, error) {
	cfg := app.config.Server
	port := strconv.Itoa(cfg.Port)

	var listeners []listener
	if cfg.IPv4 != "" {
		ln, err := net.Listen("tcp4", net.JoinHostPort(cfg.IPv4, port))
		if err != nil {
			return nil, fmt.Errorf("failed to listen on IPv4 %s: %w", cfg.IPv4, err)
		}
		listeners = append(listeners, listener{network: "tcp4", ln: ln})
	}

	if cfg.IPv6 != "" {
		ln, err := net.Listen("tcp6", net.JoinHostPort(cfg.IPv6, port))
		switch {
		case err == nil:
			listeners = append(listeners, listener{network: "tcp6", ln: ln})
		case len(listeners) > 0:
			app.logger.Warn("IPv6 listener unavailable, serving IPv4 only",
				"address", cfg.IPv6,
				"error", err)
		default:
			return nil, fmt.Errorf("failed to listen on IPv6 %s: %w", cfg.IPv6, err)
		}
	}

	return listeners, nil
}

// Run binds the listeners and serves until ctx is cancelled.
func (app *application) Run(ctx context.Context) error {
	listeners, err := app.listen()
	if err != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout)
		defer cancel()
		return errors.Join(err, app.shutdown(shutdownCtx))
	}
	return app.serve(ctx, listeners)
}

// serve starts embedded workers, serves HTTP on every listener and, once
// ctx is cancelled or a listener fails, shuts down in order: stop accepting
// and drain in-flight requests, then the remaining application resources.
func (app *application) serve(ctx context.Context, listeners []listener) error {
	server := &http.Server{
		Handler:           app.router,
		ReadHeaderTimeout: app.config.Server.ReadHeaderTimeout,
	}

	if app.runner != nil {
		app.runner.Start()
	}

	serveErr := make(chan error, len(listeners))
	var wg sync.WaitGroup
	for _, l := range listeners {
		wg.Add(1)
		go func(l listener) {
			defer wg.Done()
			app.logger.Info("listening", "network", l.network, "address", l.ln.Addr().String())
			if err := server.Serve(l.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- fmt.Errorf("%s listener: %w", l.network, err)
			}
		}(l)
	}

	var runErr error
	select {
	case <-ctx.Done():
		app.logger.Info("shutdown signal received")
	case runErr = <-serveErr:
		app.logger.Error("listener failed, shutting down", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		app.logger.Error("HTTP server shutdown failed", "error", err)
		runErr = errors.Join(runErr, fmt.Errorf("server shutdown failed: %w", err))
	}
	wg.Wait()
	app.logger.Info("HTTP server drained")

	// The drain may have spent the whole budget; cleanup gets a fresh one.
	cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout)
	defer cleanupCancel()

	if err := app.shutdown(cleanupCtx); err != nil {
		app.logger.Error("application shutdown failed", "error", err)
		runErr = errors.Join(runErr, err)
	}
	return runErr
}
