package biliup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"lingoflow/internal/services"
)

const (
	defaultAttempts  = 3
	defaultBackoff   = 20 * time.Second
	maxBackoff       = 300 * time.Second
	maxTags          = 12
	fallbackTagCount = 6
	minTagWidth      = 4 // two fullwidth characters
	maxTagWidth      = 8 // four fullwidth characters
)

// Request describes a single upload invocation.
type Request struct {
	CoverPath string
	Source    string
	Title     string
	Desc      string
	Tags      []string
	MediaPath string
}

// Result reports the outcome of an upload, including retries.
type Result struct {
	Succeeded  bool
	Attempts   int
	Diagnostic string
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) (stdout, stderr string, err error)
}

// Option configures the uploader.
type Option func(*Uploader)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(u *Uploader) {
		if exec != nil {
			u.exec = exec
		}
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(u *Uploader) {
		u.sleeper = sleeper
	}
}

// Uploader wraps the biliup CLI with retrying semantics.
type Uploader struct {
	binary   string
	attempts int
	backoff  time.Duration
	exec     Executor
	sleeper  func(time.Duration)
}

// New constructs an uploader. Attempt count and backoff fall back to
// defaults when non-positive.
func New(binary string, attempts, backoffSeconds int, opts ...Option) (*Uploader, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("biliup binary required")
	}
	uploader := &Uploader{
		binary:   binary,
		attempts: attempts,
		backoff:  time.Duration(backoffSeconds) * time.Second,
		exec:     commandExecutor{},
	}
	if uploader.attempts < 1 {
		uploader.attempts = defaultAttempts
	}
	if uploader.backoff < time.Second {
		uploader.backoff = defaultBackoff
	}
	for _, opt := range opts {
		opt(uploader)
	}
	return uploader, nil
}

// CheckAvailable reports whether the binary resolves on PATH.
func (u *Uploader) CheckAvailable() error {
	if _, err := exec.LookPath(u.binary); err != nil {
		return services.Wrap(services.ErrExternalTool, "biliup", "lookup",
			fmt.Sprintf("%s not found on PATH", u.binary), err)
	}
	return nil
}

// FilterTags keeps tags whose display width corresponds to two to four
// fullwidth characters. When filtering empties a non-empty list, the first
// six raw tags are used instead so the upload never goes out untagged.
func FilterTags(tags []string) []string {
	filtered := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if w := runewidth.StringWidth(tag); w >= minTagWidth && w <= maxTagWidth {
			filtered = append(filtered, tag)
		}
	}
	if len(filtered) == 0 && len(tags) > 0 {
		if len(tags) > fallbackTagCount {
			tags = tags[:fallbackTagCount]
		}
		filtered = append(filtered, tags...)
	}
	if len(filtered) > maxTags {
		filtered = filtered[:maxTags]
	}
	return filtered
}

// TagArg renders the final comma-joined tag string passed to biliup.
func TagArg(tags []string) string {
	return strings.Join(FilterTags(tags), ",")
}

// Upload performs a single biliup invocation.
func (u *Uploader) Upload(ctx context.Context, req Request) (string, string, error) {
	if strings.TrimSpace(req.MediaPath) == "" {
		return "", "", errors.New("media path required")
	}
	args := []string{"upload"}
	if cover := strings.TrimSpace(req.CoverPath); cover != "" {
		if _, err := os.Stat(cover); err == nil {
			args = append(args, "--cover", cover)
		}
	}
	args = append(args,
		"--source", req.Source,
		"--title", req.Title,
		"--desc", req.Desc,
		"--tag", TagArg(req.Tags),
		req.MediaPath,
	)
	stdout, stderr, err := u.exec.Run(ctx, u.binary, args)
	if err != nil {
		return stdout, stderr, services.Wrap(services.ErrExternalTool, "biliup", "upload", "command failed", err)
	}
	return stdout, stderr, nil
}

// UploadWithRetry runs Upload up to the configured attempt count, doubling
// the backoff between failures up to a five-minute ceiling. Cancellation
// stops the loop before the next attempt and interrupts a backoff in
// progress. The returned Result carries the
// last failure's diagnostic output when all attempts are exhausted.
func (u *Uploader) UploadWithRetry(ctx context.Context, req Request) (Result, error) {
	wait := u.backoff
	var lastErr error
	var diagnostic string
	for attempt := 1; attempt <= u.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Result{Succeeded: false, Attempts: attempt - 1, Diagnostic: diagnostic}, err
		}
		stdout, stderr, err := u.Upload(ctx, req)
		if err == nil {
			return Result{Succeeded: true, Attempts: attempt, Diagnostic: strings.TrimSpace(stdout)}, nil
		}
		lastErr = err
		diagnostic = composeDiagnostic(stdout, stderr, err)
		if attempt == u.attempts {
			break
		}
		if err := u.sleep(ctx, wait); err != nil {
			return Result{Succeeded: false, Attempts: attempt, Diagnostic: diagnostic}, err
		}
		wait *= 2
		if wait > maxBackoff {
			wait = maxBackoff
		}
	}
	return Result{Succeeded: false, Attempts: u.attempts, Diagnostic: diagnostic}, lastErr
}

func (u *Uploader) sleep(ctx context.Context, d time.Duration) error {
	if u.sleeper != nil {
		u.sleeper(d)
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func composeDiagnostic(stdout, stderr string, err error) string {
	parts := make([]string, 0, 3)
	if s := strings.TrimSpace(stderr); s != "" {
		parts = append(parts, s)
	}
	if s := strings.TrimSpace(stdout); s != "" {
		parts = append(parts, s)
	}
	if len(parts) == 0 && err != nil {
		parts = append(parts, err.Error())
	}
	return strings.Join(parts, "\n")
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) (string, string, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return stdout.String(), stderr.String(), fmt.Errorf("exit code %d", exitErr.ExitCode())
		}
		return stdout.String(), stderr.String(), err
	}
	return stdout.String(), stderr.String(), nil
}
