package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/phrazzld/genserve/internal/api"
	"github.com/phrazzld/genserve/internal/artifact"
	"github.com/phrazzld/genserve/internal/audit"
	"github.com/phrazzld/genserve/internal/client"
	"github.com/phrazzld/genserve/internal/generation"
	"github.com/phrazzld/genserve/internal/platform/logger"
	"github.com/phrazzld/genserve/internal/queue"
	"github.com/phrazzld/genserve/internal/service"
	"github.com/phrazzld/genserve/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newGateway serves the real router backed by an in-memory broker and a
// synthetic generator.
func newGateway(t *testing.T) string {
	t.Helper()
	log, _ := logger.NewTestLogger(t)
	dir := t.TempDir()

	broker := queue.NewMemoryBroker()
	store, err := artifact.NewFileStore(filepath.Join(dir, "generated_images"))
	require.NoError(t, err)
	auditor, err := audit.Open(filepath.Join(dir, "server_log.txt"), 16, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = auditor.Stop(context.Background()) })

	svc, err := service.NewGenerationService(broker, store, auditor, log)
	require.NoError(t, err)
	srv := httptest.NewServer(api.NewRouter(api.NewGenerationHandler(svc), log))
	t.Cleanup(srv.Close)

	genTask, err := task.NewGenerationTask(generation.Synthetic{Size: 8}, store, log)
	require.NoError(t, err)
	runner, err := task.NewRunner(broker, genTask, task.RunnerConfig{
		WorkerCount:  1,
		PollInterval: 5 * time.Millisecond,
	}, log)
	require.NoError(t, err)
	runner.Start()
	t.Cleanup(func() { _ = runner.Stop(context.Background()) })

	return srv.URL
}

func newClient(t *testing.T, baseURL string) *client.Client {
	t.Helper()
	log, _ := logger.NewTestLogger(t)
	c, err := client.New(baseURL, client.WithPollInterval(10*time.Millisecond), client.WithLogger(log))
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNew_RejectsInvalidURL(t *testing.T) {
	for _, raw := range []string{"", "localhost:8080", "ftp://example.com", "http://[::1"} {
		_, err := client.New(raw)
		assert.Error(t, err, raw)
	}
}

func TestClient_GenerateEndToEnd(t *testing.T) {
	c := newClient(t, newGateway(t))
	dir := filepath.Join(t.TempDir(), "downloaded_images")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	path, err := c.Generate(ctx, "a red cube", dir)
	require.NoError(t, err)

	assert.Equal(t, dir, filepath.Dir(path))
	assert.Equal(t, ".png", filepath.Ext(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), data[:4])
}

func TestRequestImage_EmptyPrompt(t *testing.T) {
	c := newClient(t, newGateway(t))

	_, err := c.RequestImage(context.Background(), "")

	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, api.MsgEmptyPrompt, apiErr.Message)
}

func TestDownloadImage_NotFound(t *testing.T) {
	c := newClient(t, newGateway(t))

	_, err := c.DownloadImage(context.Background(), "missing", t.TempDir())
	assert.ErrorIs(t, err, client.ErrImageNotFound)
}

func TestWaitForImage_Failed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, api.StatusResponse{Status: api.StatusLabelFailed})
	}))
	defer srv.Close()
	c := newClient(t, srv.URL)

	_, err := c.WaitForImage(context.Background(), "task-1")
	assert.ErrorIs(t, err, client.ErrGenerationFailed)
}

func TestWaitForImage_PollsThroughServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": api.MsgInternalError})
		case 2:
			writeJSON(w, http.StatusOK, api.StatusResponse{Status: api.StatusLabelQueued})
		default:
			writeJSON(w, http.StatusOK, api.StatusResponse{
				Status:    api.StatusLabelCompleted,
				ImagePath: "generated_images/img-1.png",
			})
		}
	}))
	defer srv.Close()
	c := newClient(t, srv.URL)

	path, err := c.WaitForImage(context.Background(), "task-1")
	require.NoError(t, err)
	assert.Equal(t, "generated_images/img-1.png", path)
	assert.Equal(t, int32(3), calls.Load())
}

func TestWaitForImage_HonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, api.StatusResponse{Status: api.StatusLabelQueued})
	}))
	defer srv.Close()
	c := newClient(t, srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.WaitForImage(ctx, "task-1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGenerate_RetriesImageNotYetReadable(t *testing.T) {
	var imageCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /generate", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, api.GenerateResponse{Message: api.MsgAccepted, TaskID: "task-1", ImageID: "img-1"})
	})
	mux.HandleFunc("GET /status/task-1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, api.StatusResponse{Status: api.StatusLabelCompleted, ImagePath: "x/img-1.png"})
	})
	mux.HandleFunc("GET /image/img-1", func(w http.ResponseWriter, r *http.Request) {
		if imageCalls.Add(1) < 3 {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": api.MsgImageNotFound})
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png-bytes"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	c := newClient(t, srv.URL)
	dir := t.TempDir()

	path, err := c.Generate(context.Background(), "a red cube", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "img-1.png"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
	assert.Equal(t, int32(3), imageCalls.Load())
}

func TestGenerate_GivesUpOnMissingImage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /generate", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, api.GenerateResponse{Message: api.MsgAccepted, TaskID: "task-1", ImageID: "img-1"})
	})
	mux.HandleFunc("GET /status/task-1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, api.StatusResponse{Status: api.StatusLabelCompleted})
	})
	mux.HandleFunc("GET /image/img-1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": api.MsgImageNotFound})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	c := newClient(t, srv.URL)

	_, err := c.Generate(context.Background(), "a red cube", t.TempDir())
	assert.ErrorIs(t, err, client.ErrImageNotFound)
}
