package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/phrazzld/genserve/internal/domain"
)

// DefaultBufferSize is used when a non-positive buffer size is given.
const DefaultBufferSize = 1024

// entry is what travels through the channel. stop marks the sentinel.
type entry struct {
	event domain.AuditEvent
	stop  bool
}

// Option configures a Logger.
type Option func(*Logger)

// WithClock replaces the clock used to stamp events.
func WithClock(now func() time.Time) Option {
	return func(l *Logger) {
		l.now = now
	}
}

// Logger is a non-blocking audit sink backed by one writer goroutine.
type Logger struct {
	path   string
	events chan entry
	done   chan struct{}
	file   *os.File
	logger *slog.Logger
	now    func() time.Time

	// mu guards closed. Log holds the read lock for the duration of its
	// send so that Stop cannot enqueue the sentinel ahead of it.
	mu     sync.RWMutex
	closed bool

	// stopMu serialises sentinel sends; stopSent records a delivered one.
	stopMu   sync.Mutex
	stopSent bool

	dropped  atomic.Uint64
	failed   atomic.Uint64
	written  atomic.Uint64
	closeErr error
}

// Open opens (creating if needed) the audit file at path for appending and
// starts the writer goroutine.
func Open(path string, bufferSize int, logger *slog.Logger, opts ...Option) (*Logger, error) {
	if path == "" {
		return nil, fmt.Errorf("audit log path cannot be empty")
	}
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if logger == nil {
		logger = slog.Default()
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create audit log directory: %w", err)
		}
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}

	l := &Logger{
		path:   path,
		events: make(chan entry, bufferSize),
		done:   make(chan struct{}),
		file:   file,
		logger: logger.With("component", "audit_logger"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}

	go l.run()

	l.logger.Info("audit logger started", "path", path, "buffer_size", bufferSize)
	return l, nil
}

// Log hands event to the writer and returns immediately. The event is
// dropped when the buffer is full or the logger has been stopped.
func (l *Logger) Log(event domain.AuditEvent) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		l.dropped.Add(1)
		return
	}

	select {
	case l.events <- entry{event: event}:
	default:
		if l.dropped.Add(1) == 1 {
			l.logger.Warn("audit buffer full, dropping events", "capacity", cap(l.events))
		}
	}
}

// Stop enqueues the sentinel and waits until every event handed off before
// it has been written and the file closed. It is safe to call more than
// once. If ctx expires first, Stop returns ctx.Err() and the writer keeps
// draining in the background; a later Stop retries an undelivered sentinel.
func (l *Logger) Stop(ctx context.Context) error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()

	if err := l.sendStop(ctx); err != nil {
		return err
	}
	return l.wait(ctx)
}

func (l *Logger) sendStop(ctx context.Context) error {
	l.stopMu.Lock()
	defer l.stopMu.Unlock()
	if l.stopSent {
		return nil
	}

	// A free slot takes the sentinel even when ctx is already done.
	select {
	case l.events <- entry{stop: true}:
	default:
		select {
		case l.events <- entry{stop: true}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	l.stopSent = true
	return nil
}

func (l *Logger) wait(ctx context.Context) error {
	select {
	case <-l.done:
		return l.closeErr
	default:
	}
	select {
	case <-l.done:
		return l.closeErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dropped returns the number of events that were not accepted.
func (l *Logger) Dropped() uint64 {
	return l.dropped.Load()
}

// Failed returns the number of accepted events that could not be written.
func (l *Logger) Failed() uint64 {
	return l.failed.Load()
}

// Written returns the number of events appended to the file.
func (l *Logger) Written() uint64 {
	return l.written.Load()
}

// Path returns the audit file location.
func (l *Logger) Path() string {
	return l.path
}

func (l *Logger) run() {
	defer close(l.done)

	w := bufio.NewWriter(l.file)
	for e := range l.events {
		if e.stop {
			l.closeErr = l.finish(w)
			l.logger.Info("audit logger stopped",
				"written", l.written.Load(),
				"dropped", l.dropped.Load(),
				"failed", l.failed.Load())
			return
		}

		l.write(w, e.event)

		// Flush whenever the backlog is empty so the file trails the
		// request stream by at most one burst.
		if len(l.events) == 0 {
			if err := w.Flush(); err != nil {
				l.logger.Error("failed to flush audit log", "error", err)
			}
		}
	}
}

func (l *Logger) write(w *bufio.Writer, event domain.AuditEvent) {
	event.Timestamp = l.now().UTC()

	line, err := json.Marshal(event)
	if err != nil {
		l.failed.Add(1)
		l.logger.Error("failed to encode audit event", "error", err, "task_id", event.JobID)
		return
	}
	line = append(line, '\n')

	if _, err := w.Write(line); err != nil {
		l.failed.Add(1)
		l.logger.Error("failed to write audit event", "error", err, "task_id", event.JobID)
		return
	}
	l.written.Add(1)
}

func (l *Logger) finish(w *bufio.Writer) error {
	var firstErr error
	if err := w.Flush(); err != nil {
		firstErr = fmt.Errorf("failed to flush audit log: %w", err)
	}
	if err := l.file.Sync(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("failed to sync audit log: %w", err)
	}
	if err := l.file.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("failed to close audit log: %w", err)
	}
	if firstErr != nil {
		l.logger.Error("audit log shutdown incomplete", "error", firstErr)
	}
	return firstErr
}
