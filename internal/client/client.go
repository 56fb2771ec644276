// Package client is a typed HTTP client for the generation gateway. It
// submits prompts, polls job status and downloads finished images.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/phrazzld/genserve/internal/api"
	"github.com/phrazzld/genserve/internal/api/shared"
)

// DefaultPollInterval is the pause between status checks while waiting.
const DefaultPollInterval = 3 * time.Second

// DefaultDownloadRetries is how many extra times a completed image is
// fetched after a 404 before giving up.
const DefaultDownloadRetries = 3

var (
	// ErrGenerationFailed is returned when the gateway reports the job failed.
	ErrGenerationFailed = errors.New("image generation failed")

	// ErrImageNotFound is returned when the gateway has no image for an id.
	ErrImageNotFound = errors.New("image not found")
)

// APIError is a non-success response from the gateway.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gateway returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("gateway returned HTTP %d: %s", e.StatusCode, e.Message)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithPollInterval sets the pause between status checks and download retries.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithLogger sets the logger used for progress messages.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client talks to one gateway.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	pollInterval time.Duration
	retries      int
	logger       *slog.Logger
}

// New creates a Client for the gateway at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server URL %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		pollInterval: DefaultPollInterval,
		retries:      DefaultDownloadRetries,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// RequestImage submits prompt and returns the accepted job's ids.
func (c *Client) RequestImage(ctx context.Context, prompt string) (*api.GenerateResponse, error) {
	body, err := json.Marshal(api.GenerateRequest{Prompt: prompt})
	if err != nil {
		return nil, fmt.Errorf("request image: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request image: %w", apiError(resp))
	}

	var out api.GenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("request image: decoding response: %w", err)
	}
	return &out, nil
}

// CheckStatus returns the current status of a job.
func (c *Client) CheckStatus(ctx context.Context, taskID string) (*api.StatusResponse, error) {
	resp, err := c.do(ctx, http.MethodGet, "/status/"+url.PathEscape(taskID), nil)
	if err != nil {
		return nil, fmt.Errorf("check status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("check status: %w", apiError(resp))
	}

	var out api.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("check status: decoding response: %w", err)
	}
	return &out, nil
}

// WaitForImage polls until the job completes and returns its image path.
// Transient status errors are logged and polling continues until ctx ends.
func (c *Client) WaitForImage(ctx context.Context, taskID string) (string, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		status, err := c.CheckStatus(ctx, taskID)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			c.logger.Warn("status check failed, retrying", "task_id", taskID, "error", err)
		case status.Status == api.StatusLabelCompleted:
			return status.ImagePath, nil
		case status.Status == api.StatusLabelFailed:
			return "", fmt.Errorf("task %s: %w", taskID, ErrGenerationFailed)
		default:
			c.logger.Info("waiting for image", "task_id", taskID, "status", status.Status)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

// DownloadImage saves the image to dir as <imageID>.png and returns the
// file path.
func (c *Client) DownloadImage(ctx context.Context, imageID, dir string) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/image/"+url.PathEscape(imageID), nil)
	if err != nil {
		return "", fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return "", fmt.Errorf("download image %s: %w", imageID, ErrImageNotFound)
	default:
		return "", fmt.Errorf("download image: %w", apiError(resp))
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("download image: creating directory: %w", err)
	}
	path := filepath.Join(dir, imageID+".png")

	tmp, err := os.CreateTemp(dir, ".download-*")
	if err != nil {
		return "", fmt.Errorf("download image: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("download image: writing file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("download image: writing file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("download image: %w", err)
	}
	return path, nil
}

// Generate runs the whole flow for one prompt: submit, wait, download. A
// 404 right after completion is retried, since the status can be seen
// before the image is readable.
func (c *Client) Generate(ctx context.Context, prompt, dir string) (string, error) {
	accepted, err := c.RequestImage(ctx, prompt)
	if err != nil {
		return "", err
	}
	c.logger.Info("image requested", "task_id", accepted.TaskID, "image_id", accepted.ImageID)

	if _, err := c.WaitForImage(ctx, accepted.TaskID); err != nil {
		return "", err
	}

	for attempt := 0; ; attempt++ {
		path, err := c.DownloadImage(ctx, accepted.ImageID, dir)
		if err == nil || !errors.Is(err, ErrImageNotFound) || attempt >= c.retries {
			return path, err
		}
		c.logger.Debug("image not readable yet, retrying", "image_id", accepted.ImageID, "attempt", attempt+1)

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.httpClient.Do(req)
}

// apiError reads the gateway's {"error": ...} body into an APIError.
func apiError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var body shared.ErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err == nil {
		apiErr.Message = body.Error
	}
	return apiErr
}
