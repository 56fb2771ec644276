package audit_test

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/phrazzld/genserve/internal/audit"
	"github.com/phrazzld/genserve/internal/domain"
	"github.com/phrazzld/genserve/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedTime = time.Date(2025, 3, 14, 9, 26, 53, 589793000, time.UTC)

func fixedClock() time.Time { return fixedTime }

func event(i int) domain.AuditEvent {
	return domain.NewGenerateRequestedEvent(domain.Job{
		JobID:      fmt.Sprintf("task-%03d", i),
		ArtifactID: fmt.Sprintf("image-%03d", i),
		Prompt:     fmt.Sprintf("prompt %d", i),
	})
}

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	var records []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var record map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &record), "line: %s", scanner.Text())
		records = append(records, record)
	}
	require.NoError(t, scanner.Err())
	return records
}

func openLogger(t *testing.T, bufferSize int, opts ...audit.Option) (*audit.Logger, string) {
	t.Helper()
	log, _ := logger.NewTestLogger(t)
	path := filepath.Join(t.TempDir(), "logs", "server_log.txt")
	l, err := audit.Open(path, bufferSize, log, opts...)
	require.NoError(t, err)
	return l, path
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := audit.Open("", 10, nil)
	assert.Error(t, err)
}

func TestOpen_UnwritablePath(t *testing.T) {
	dir := t.TempDir()
	// A directory cannot be opened for appending.
	_, err := audit.Open(dir, 10, nil)
	assert.Error(t, err)
}

func TestLogger_RecordShape(t *testing.T) {
	l, path := openLogger(t, 8, audit.WithClock(fixedClock))

	l.Log(domain.NewGenerateRequestedEvent(domain.Job{
		JobID:      "t-1",
		ArtifactID: "i-1",
		Prompt:     "a red cube",
	}))
	require.NoError(t, l.Stop(context.Background()))

	records := readLines(t, path)
	require.Len(t, records, 1)
	assert.Equal(t, map[string]any{
		"action":    "generate_requested",
		"prompt":    "a red cube",
		"image_id":  "i-1",
		"task_id":   "t-1",
		"timestamp": "2025-03-14T09:26:53.589793Z",
	}, records[0])
}

func TestLogger_PreservesHandOffOrder(t *testing.T) {
	l, path := openLogger(t, 256)

	const n = 200
	for i := 0; i < n; i++ {
		l.Log(event(i))
	}
	require.NoError(t, l.Stop(context.Background()))

	records := readLines(t, path)
	require.Len(t, records, n)
	for i, record := range records {
		assert.Equal(t, fmt.Sprintf("task-%03d", i), record["task_id"])
	}
	assert.Equal(t, uint64(n), l.Written())
	assert.Zero(t, l.Dropped())
	assert.Zero(t, l.Failed())
}

func TestLogger_StopWritesEverythingAccepted(t *testing.T) {
	l, path := openLogger(t, 64)

	var wg sync.WaitGroup
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				l.Log(event(p*50 + i))
			}
		}(p)
	}
	wg.Wait()
	require.NoError(t, l.Stop(context.Background()))

	records := readLines(t, path)
	assert.Equal(t, 400, len(records)+int(l.Dropped()),
		"every event is either written or counted as dropped")
	assert.Equal(t, uint64(len(records)), l.Written())
}

func TestLogger_AppendsToExistingFile(t *testing.T) {
	l, path := openLogger(t, 8)
	l.Log(event(1))
	require.NoError(t, l.Stop(context.Background()))

	l2, err := audit.Open(path, 8, nil)
	require.NoError(t, err)
	l2.Log(event(2))
	require.NoError(t, l2.Stop(context.Background()))

	records := readLines(t, path)
	require.Len(t, records, 2)
	assert.Equal(t, "task-001", records[0]["task_id"])
	assert.Equal(t, "task-002", records[1]["task_id"])
}

func TestLogger_DropsWhenFull(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	clock := func() time.Time {
		once.Do(func() {
			close(entered)
			<-release
		})
		return fixedTime
	}
	l, path := openLogger(t, 1, audit.WithClock(clock))

	l.Log(event(1))
	<-entered // writer now holds event 1 and is blocked

	l.Log(event(2)) // fills the single buffer slot
	l.Log(event(3)) // dropped
	l.Log(event(4)) // dropped

	assert.Equal(t, uint64(2), l.Dropped())

	close(release)
	require.NoError(t, l.Stop(context.Background()))

	records := readLines(t, path)
	require.Len(t, records, 2)
	assert.Equal(t, "task-001", records[0]["task_id"])
	assert.Equal(t, "task-002", records[1]["task_id"])
}

func TestLogger_LogAfterStopIsDropped(t *testing.T) {
	l, path := openLogger(t, 8)
	require.NoError(t, l.Stop(context.Background()))

	assert.NotPanics(t, func() { l.Log(event(1)) })
	assert.Equal(t, uint64(1), l.Dropped())

	records := readLines(t, path)
	assert.Empty(t, records)
}

func TestLogger_StopIsIdempotent(t *testing.T) {
	l, _ := openLogger(t, 8)

	require.NoError(t, l.Stop(context.Background()))
	require.NoError(t, l.Stop(context.Background()))

	// The writer has finished: a second Stop succeeds even without time left.
	expired, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, l.Stop(expired))
}

func TestLogger_StopWithExpiredContextStillFlushes(t *testing.T) {
	l, path := openLogger(t, 256)
	for i := 0; i < 100; i++ {
		l.Log(event(i))
	}

	expired, cancel := context.WithCancel(context.Background())
	cancel()
	err := l.Stop(expired)
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}

	// The sentinel went in behind the backlog, so the writer finishes it.
	require.NoError(t, l.Stop(context.Background()))
	assert.Len(t, readLines(t, path), 100)
	assert.Equal(t, uint64(100), l.Written())
}

func TestLogger_StopRetriesUndeliveredSentinel(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	var once sync.Once
	clock := func() time.Time {
		once.Do(func() {
			close(entered)
			<-release
		})
		return fixedTime
	}
	l, path := openLogger(t, 1, audit.WithClock(clock))
	l.Log(event(1))
	<-entered
	// The writer is blocked on event 1 and event 2 fills the only slot.
	l.Log(event(2))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, l.Stop(ctx), context.DeadlineExceeded)

	close(release)
	require.NoError(t, l.Stop(context.Background()))
	assert.Len(t, readLines(t, path), 2)
}

func TestLogger_StopHonoursContext(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	var once sync.Once
	clock := func() time.Time {
		once.Do(func() {
			close(entered)
			<-release
		})
		return fixedTime
	}
	l, _ := openLogger(t, 1, audit.WithClock(clock))
	l.Log(event(1))
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.Stop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, l.Stop(context.Background()))
}
