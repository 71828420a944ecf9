package ytdlp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"lingoflow/internal/services"
)

// Video is one discovery result. Duration of zero means unknown.
type Video struct {
	ID          string
	Title       string
	URL         string
	Duration    int
	Uploader    string
	UploadDate  string
	Description string
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) (stdout string, err error)
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// WithRegion sets the country code passed to yt-dlp's geo bypass so search
// results match the configured market. Empty means no geo flag.
func WithRegion(region string) Option {
	return func(c *Client) {
		c.region = strings.ToUpper(strings.TrimSpace(region))
	}
}

// Client wraps the yt-dlp CLI for keyword search and thumbnail fetching.
type Client struct {
	binary      string
	cookiesFile string
	region      string
	exec        Executor
}

// New constructs a yt-dlp client. cookiesFile may be empty; when set and the
// file exists it is passed to every invocation so age-gated and region-locked
// results stay reachable.
func New(binary, cookiesFile string, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("yt-dlp binary required")
	}
	client := &Client{
		binary:      binary,
		cookiesFile: strings.TrimSpace(cookiesFile),
		exec:        commandExecutor{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// CheckAvailable reports whether the binary resolves on PATH.
func (c *Client) CheckAvailable() error {
	if _, err := exec.LookPath(c.binary); err != nil {
		return services.Wrap(services.ErrExternalTool, "ytdlp", "lookup",
			fmt.Sprintf("%s not found on PATH", c.binary), err)
	}
	return nil
}

// Search runs a ytsearchN query and returns the parsed results. Malformed
// output lines are skipped; playlist wrappers are unwrapped.
func (c *Client) Search(ctx context.Context, keyword string, maxResults int) ([]Video, error) {
	if maxResults < 1 {
		maxResults = 1
	}
	query := fmt.Sprintf("ytsearch%d:%s", maxResults, keyword)
	args := []string{
		"--dump-json",
		"--skip-download",
		"--no-warnings",
		"--default-search", "ytsearch",
	}
	if c.region != "" {
		args = append(args, "--geo-bypass-country", c.region)
	}
	args = c.appendCookies(args)
	args = append(args, query)

	stdout, err := c.exec.Run(ctx, c.binary, args)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "ytdlp", "search", "command failed", err)
	}
	return parseResults(stdout), nil
}

func parseResults(stdout string) []Video {
	var videos []Video
	scanner := bufio.NewScanner(strings.NewReader(stdout))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry payload
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		if entry.Type == "playlist" {
			for _, raw := range entry.Entries {
				var nested payload
				if err := json.Unmarshal(raw, &nested); err != nil {
					continue
				}
				if video, ok := nested.toVideo(); ok {
					videos = append(videos, video)
				}
			}
			continue
		}
		if video, ok := entry.toVideo(); ok {
			videos = append(videos, video)
		}
	}
	return videos
}

func (c *Client) appendCookies(args []string) []string {
	if c.cookiesFile == "" {
		return args
	}
	if _, err := os.Stat(c.cookiesFile); err != nil {
		return args
	}
	return append(args, "--cookies", c.cookiesFile)
}

type payload struct {
	Type        string            `json:"_type"`
	Entries     []json.RawMessage `json:"entries"`
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	WebpageURL  string            `json:"webpage_url"`
	Duration    float64           `json:"duration"`
	Uploader    string            `json:"uploader"`
	UploadDate  string            `json:"upload_date"`
	Description string            `json:"description"`
}

func (p payload) toVideo() (Video, bool) {
	if p.ID == "" {
		return Video{}, false
	}
	url := p.WebpageURL
	if url == "" {
		url = "https://www.youtube.com/watch?v=" + p.ID
	}
	return Video{
		ID:          p.ID,
		Title:       p.Title,
		URL:         url,
		Duration:    int(p.Duration),
		Uploader:    p.Uploader,
		UploadDate:  p.UploadDate,
		Description: p.Description,
	}, true
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) (string, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	var stdout strings.Builder
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return stdout.String(), err
	}
	return stdout.String(), nil
}
