package videolingo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"lingoflow/internal/services"
)

// Task terminal statuses reported by the job service.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Artifact kinds downloadable from a completed task.
const (
	ArtifactVideoSub  = "video_sub"
	ArtifactVideoDub  = "video_dub"
	ArtifactSourceSRT = "src_srt"
	ArtifactTransSRT  = "trans_srt"
	ArtifactDubAudio  = "dub_audio"
)

const (
	defaultRequestTimeout  = 60 * time.Second
	downloadTimeout        = 10 * time.Minute
	transportRetryCeiling  = 10 * time.Second
	healthcheckTimeout     = 5 * time.Second
	healthcheckBodyMarker  = "VideoLingo"
	healthcheckBodyMarker2 = "docs"
)

// ProcessRequest carries the parameters for one translation/dubbing job.
type ProcessRequest struct {
	URL            string `json:"url"`
	TargetLanguage string `json:"target_language"`
	SourceLanguage string `json:"source_language,omitempty"`
	EnableDubbing  bool   `json:"enable_dubbing"`
	BurnSubtitles  bool   `json:"burn_subtitles"`
	Resolution     string `json:"resolution"`
}

// TaskStatus is one remote status snapshot. Progress is clamped to [0,100].
type TaskStatus struct {
	Status      string
	Progress    int
	CurrentStep string
	Message     string
}

// ProgressUpdate is emitted when the task's step label changes during Wait.
type ProgressUpdate struct {
	Percent int
	Step    string
	Message string
}

// Client talks to a VideoLingo-compatible job service.
type Client struct {
	base       string
	httpClient *http.Client
	sleeper    func(time.Duration)
	now        func() time.Time
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithSleeper overrides how polling sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// WithClock overrides the wall clock used for the wait timeout (tests).
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient constructs a job service client for the given base URL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, "videolingo", "new", "base url required", nil)
	}
	client := &Client{
		base:       baseURL,
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Submit issues the processing request and returns the remote task identifier.
func (c *Client) Submit(ctx context.Context, req ProcessRequest) (string, error) {
	if strings.TrimSpace(req.URL) == "" {
		return "", services.Wrap(services.ErrConfiguration, "videolingo", "submit", "source url required", nil)
	}
	encoded, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("videolingo submit: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/v1/process-url", bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("videolingo submit: new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "videolingo", "submit", "http error", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "videolingo", "submit", "read body", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", services.Wrap(services.ErrTransient, "videolingo", "submit",
			fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}
	var payload struct {
		TaskID string `json:"task_id"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("videolingo submit: decode response: %w", err)
	}
	if payload.TaskID == "" {
		return "", errors.New("videolingo submit: response missing task_id")
	}
	return payload.TaskID, nil
}

// Status fetches one status snapshot for the task.
func (c *Client) Status(ctx context.Context, taskID string) (TaskStatus, error) {
	var status TaskStatus
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/v1/tasks/"+taskID, nil)
	if err != nil {
		return status, fmt.Errorf("videolingo status: new request: %w", err)
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return status, services.Wrap(services.ErrTransient, "videolingo", "status", "http error", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return status, services.Wrap(services.ErrTransient, "videolingo", "status", "read body", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return status, services.Wrap(services.ErrTransient, "videolingo", "status",
			fmt.Sprintf("http %d", resp.StatusCode), nil)
	}
	// Progress may arrive as a number, a numeric string, or be absent; treat
	// anything unusable as zero rather than failing the snapshot.
	var payload struct {
		Status      string          `json:"status"`
		Progress    json.RawMessage `json:"progress"`
		CurrentStep string          `json:"current_step"`
		Message     string          `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return status, fmt.Errorf("videolingo status: decode response: %w", err)
	}
	status.Status = payload.Status
	status.CurrentStep = payload.CurrentStep
	status.Message = payload.Message
	status.Progress = clampProgress(payload.Progress)
	return status, nil
}

func clampProgress(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var numeric float64
	if err := json.Unmarshal(raw, &numeric); err != nil {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0
		}
		if _, err := fmt.Sscanf(strings.TrimSpace(text), "%f", &numeric); err != nil {
			return 0
		}
	}
	pct := int(numeric)
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// Wait polls the task until it reaches a terminal status. Transport errors
// never abort the loop; they trigger a short sleep and another poll. When the
// step label changes, onProgress (if set) receives a notification. Once
// elapsed time exceeds timeout, a failed status with a timeout message is
// synthesized instead of hanging.
func (c *Client) Wait(ctx context.Context, taskID string, interval, timeout time.Duration, onProgress func(ProgressUpdate)) (TaskStatus, error) {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	start := c.now()
	lastStep := ""
	stepSeen := false
	lastPct := 0

	for {
		if err := ctx.Err(); err != nil {
			return TaskStatus{}, err
		}

		status, err := c.Status(ctx, taskID)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return TaskStatus{}, ctxErr
			}
			if sleepErr := c.sleep(ctx, minDuration(transportRetryCeiling, interval)); sleepErr != nil {
				return TaskStatus{}, sleepErr
			}
			continue
		}

		lastPct = status.Progress
		if !stepSeen || status.CurrentStep != lastStep {
			stepSeen = true
			lastStep = status.CurrentStep
			if onProgress != nil {
				onProgress(ProgressUpdate{Percent: status.Progress, Step: status.CurrentStep, Message: status.Message})
			}
		}

		if status.Status == StatusCompleted || status.Status == StatusFailed {
			return status, nil
		}

		if c.now().Sub(start) > timeout {
			return TaskStatus{Status: StatusFailed, Message: "timeout", Progress: lastPct}, nil
		}

		if err := c.sleep(ctx, interval); err != nil {
			return TaskStatus{}, err
		}
	}
}

// Download streams one named artifact of the task to destPath, creating
// parent directories as needed.
func (c *Client) Download(ctx context.Context, taskID, kind, destPath string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/v1/download/"+taskID+"/"+kind, nil)
	if err != nil {
		return fmt.Errorf("videolingo download: new request: %w", err)
	}
	client := c.httpClient
	if client.Timeout > 0 && client.Timeout < downloadTimeout {
		clone := *client
		clone.Timeout = downloadTimeout
		client = &clone
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return services.Wrap(services.ErrTransient, "videolingo", "download", kind, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return services.Wrap(services.ErrTransient, "videolingo", "download",
			fmt.Sprintf("%s: http %d", kind, resp.StatusCode), nil)
	}

	if dir := filepath.Dir(destPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("videolingo download: create directory: %w", err)
		}
	}
	file, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("videolingo download: create file: %w", err)
	}
	if _, err := io.Copy(file, resp.Body); err != nil {
		file.Close()
		return fmt.Errorf("videolingo download: write %s: %w", kind, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("videolingo download: close file: %w", err)
	}
	return nil
}

// Delete removes the remote task. Cleanup is advisory: failures are swallowed
// and reported only through the boolean result.
func (c *Client) Delete(ctx context.Context, taskID string) bool {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.base+"/api/v1/tasks/"+taskID, nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode/100 == 2
}

// HealthCheck verifies the job service is reachable, first via /health and
// then via the root page as a fallback.
func (c *Client) HealthCheck(ctx context.Context) error {
	client := &http.Client{Timeout: healthcheckTimeout}

	if ok := c.probe(ctx, client, c.base+"/health", ""); ok {
		return nil
	}
	if ok := c.probe(ctx, client, c.base+"/", healthcheckBodyMarker); ok {
		return nil
	}
	return services.Wrap(services.ErrConfiguration, "videolingo", "health",
		fmt.Sprintf("cannot reach job service at %s", c.base), nil)
}

func (c *Client) probe(ctx context.Context, client *http.Client, url, bodyMarker string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return false
	}
	if bodyMarker == "" {
		return true
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return false
	}
	text := string(body)
	return strings.Contains(text, bodyMarker) || strings.Contains(text, healthcheckBodyMarker2)
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
