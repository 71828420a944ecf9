package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"lingoflow/internal/services"
)

const (
	defaultHTTPTimeout    = 60 * time.Second
	defaultJSONAttempts   = 3
	defaultTotalBudget    = 5 * time.Minute
	defaultBackoffBase    = 2 * time.Second
	defaultBackoffCeiling = 30 * time.Second
)

// Config captures the runtime settings required to talk to the
// text-generation service.
type Config struct {
	APIKey             string
	BaseURL            string
	Model              string
	TimeoutSeconds     int
	JSONAttempts       int
	TotalBudgetSeconds int
}

// Message is one role-tagged conversation entry.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client wraps an OpenAI-compatible chat completion API.
type Client struct {
	cfg        Config
	httpClient *http.Client

	jsonAttempts int
	totalBudget  time.Duration
	backoffBase  time.Duration
	backoffMax   time.Duration
	sleeper      func(time.Duration)
	now          func() time.Time
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

// WithBackoff overrides the retry backoff delays.
func WithBackoff(base, ceiling time.Duration) Option {
	return func(c *Client) {
		if base > 0 {
			c.backoffBase = base
		}
		if ceiling > 0 {
			c.backoffMax = ceiling
		}
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// WithClock overrides the wall clock used for the cumulative budget (tests).
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient constructs a text-generation client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	attempts := defaultJSONAttempts
	if cfg.JSONAttempts > 0 {
		attempts = cfg.JSONAttempts
	}
	budget := defaultTotalBudget
	if cfg.TotalBudgetSeconds > 0 {
		budget = time.Duration(cfg.TotalBudgetSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:             strings.TrimSpace(cfg.APIKey),
			BaseURL:            strings.TrimSpace(cfg.BaseURL),
			Model:              strings.TrimSpace(cfg.Model),
			TimeoutSeconds:     cfg.TimeoutSeconds,
			JSONAttempts:       attempts,
			TotalBudgetSeconds: cfg.TotalBudgetSeconds,
		},
		httpClient:   &http.Client{Timeout: timeout},
		jsonAttempts: attempts,
		totalBudget:  budget,
		backoffBase:  defaultBackoffBase,
		backoffMax:   defaultBackoffCeiling,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: timeout}
	}
	return client
}

type httpStatusError struct {
	StatusCode int
	Body       string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("llm request: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// Chat issues one completion request and returns the trimmed message content.
func (c *Client) Chat(ctx context.Context, messages []Message, temperature float64) (string, error) {
	if len(messages) == 0 {
		return "", services.Wrap(services.ErrConfiguration, "llm", "chat", "messages required", nil)
	}
	if c.cfg.APIKey == "" {
		return "", services.Wrap(services.ErrConfiguration, "llm", "chat", "api key required", nil)
	}
	payload := chatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: temperature,
	}
	completion, body, err := c.sendChatRequestOnce(ctx, payload)
	if err != nil {
		return "", err
	}
	content := extractCompletionContent(completion)
	if content == "" {
		return "", fmt.Errorf("llm chat: empty content (response snippet: %s)", summarizeSnippet(string(body)))
	}
	return content, nil
}

// ChatJSON asks the model to return pure JSON and parses it with retry.
// The conversation is prefixed with a system instruction mandating JSON-only
// output; each failed attempt appends a corrective reminder before the next
// try. Attempts share a cumulative wall-clock budget: once it is spent the
// last error propagates without another call.
func (c *Client) ChatJSON(ctx context.Context, messages []Message, temperature float64) (map[string]any, error) {
	msgs := make([]Message, 0, len(messages)+1)
	msgs = append(msgs, Message{Role: "system", Content: jsonOnlySystemPrompt})
	msgs = append(msgs, messages...)

	deadline := c.now().Add(c.totalBudget)
	attempts := c.jsonAttempts
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if !c.now().Before(deadline) {
			if lastErr == nil {
				lastErr = services.Wrap(services.ErrTimeout, "llm", "chat_json", "attempt budget exhausted", nil)
			}
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		text, err := c.Chat(ctx, msgs, temperature)
		if err == nil {
			var parsed any
			parsed, err = ExtractJSON(text)
			if err == nil {
				switch value := parsed.(type) {
				case map[string]any:
					return value, nil
				case []any:
					return map[string]any{"list": value}, nil
				default:
					err = &ParseError{Snippet: summarizeSnippet(text), Reason: "top-level value is not an object or array"}
				}
			}
		}
		lastErr = err
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if attempt == attempts {
			break
		}

		msgs = append(msgs, Message{Role: "system", Content: jsonReminderPrompt})
		delay := c.backoffDelay(attempt)
		if c.now().Add(delay).After(deadline) {
			break
		}
		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	if lastErr == nil {
		lastErr = errors.New("unknown retry failure")
	}
	var parseErr *ParseError
	if errors.As(lastErr, &parseErr) {
		return nil, services.Wrap(services.ErrMalformedOutput, "llm", "chat_json", fmt.Sprintf("failed after %d attempts", attempts), lastErr)
	}
	return nil, fmt.Errorf("llm chat_json: failed after %d attempts: %w", attempts, lastErr)
}

// HealthCheck issues a fast ping to verify the API key and model are usable.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.cfg.APIKey == "" {
		return services.Wrap(services.ErrConfiguration, "llm", "health", "api key required", nil)
	}
	content, err := c.Chat(ctx, []Message{
		{Role: "system", Content: "You must respond with JSON only."},
		{Role: "user", Content: `Respond with {"ok":true}`},
	}, 0)
	if err != nil {
		return err
	}
	parsed, err := ExtractJSON(content)
	if err != nil {
		return fmt.Errorf("llm health: parse payload: %w", err)
	}
	obj, ok := parsed.(map[string]any)
	if !ok {
		return errors.New("llm health: unexpected response shape")
	}
	if ok, _ := obj["ok"].(bool); !ok {
		return errors.New("llm health: unexpected response")
	}
	return nil
}

type chatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		// Some providers return the streaming schema even when stream=false.
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		Text string `json:"text"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func extractCompletionContent(completion chatCompletionResponse) string {
	for _, choice := range completion.Choices {
		for _, content := range []string{choice.Message.Content, choice.Delta.Content, choice.Text} {
			if trimmed := strings.TrimSpace(content); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

func (c *Client) sendChatRequestOnce(ctx context.Context, payload chatCompletionRequest) (chatCompletionResponse, []byte, error) {
	var completion chatCompletionResponse
	endpoint, err := url.JoinPath(c.cfg.BaseURL, "chat", "completions")
	if err != nil {
		return completion, nil, fmt.Errorf("llm request: build url: %w", err)
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return completion, nil, fmt.Errorf("llm request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return completion, nil, fmt.Errorf("llm request: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return completion, nil, services.Wrap(services.ErrTimeout, "llm", "request", "http timeout", err)
		}
		return completion, nil, services.Wrap(services.ErrTransient, "llm", "request", "http error", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return completion, nil, services.Wrap(services.ErrTransient, "llm", "request", "read body", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return completion, body, &httpStatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.Unmarshal(body, &completion); err != nil {
		return completion, body, fmt.Errorf("llm request: decode response: %w", err)
	}
	if completion.Error != nil {
		return completion, body, fmt.Errorf("llm request: api error: %s", strings.TrimSpace(completion.Error.Message))
	}
	return completion, body, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return true
	}
	return false
}

func (c *Client) backoffDelay(attempt int) time.Duration {
	delay := c.backoffBase
	for i := 1; i < attempt; i++ {
		if delay > c.backoffMax/2 {
			return c.backoffMax
		}
		delay *= 2
	}
	if delay > c.backoffMax {
		return c.backoffMax
	}
	return delay
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

func summarizeSnippet(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "<empty>"
	}
	replacer := strings.NewReplacer("\r", " ", "\n", " ", "\t", " ")
	clean := strings.Join(strings.Fields(replacer.Replace(trimmed)), " ")
	const limit = 160
	runes := []rune(clean)
	if len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	return clean
}
