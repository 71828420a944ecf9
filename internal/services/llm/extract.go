package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ParseError reports that no JSON value could be recovered from model output.
type ParseError struct {
	Snippet string
	Reason  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("llm extract: %s (payload snippet: %s)", e.Reason, e.Snippet)
}

// ExtractJSON recovers a JSON value from possibly noisy model output. The
// stages run in order: parse the whole text (after stripping a code fence),
// then the first-to-last brace span, then the first-to-last bracket span.
// Each stage is attempted only when the previous one fails.
func ExtractJSON(text string) (any, error) {
	trimmed := strings.TrimSpace(stripCodeFence(text))
	if trimmed == "" {
		return nil, &ParseError{Snippet: "<empty>", Reason: "empty payload"}
	}

	var value any
	if err := json.Unmarshal([]byte(trimmed), &value); err == nil {
		return value, nil
	}

	if span, ok := spanBetween(trimmed, '{', '}'); ok {
		if err := json.Unmarshal([]byte(span), &value); err == nil {
			return value, nil
		}
	}

	if span, ok := spanBetween(trimmed, '[', ']'); ok {
		if err := json.Unmarshal([]byte(span), &value); err == nil {
			return value, nil
		}
	}

	return nil, &ParseError{Snippet: summarizeSnippet(trimmed), Reason: "no parseable JSON value"}
}

// DecodeJSON extracts JSON from model output and unmarshals it into target.
func DecodeJSON(content string, target any) error {
	value, err := ExtractJSON(content)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("llm extract: re-encode value: %w", err)
	}
	if err := json.Unmarshal(encoded, target); err != nil {
		return fmt.Errorf("llm extract: decode into target: %w", err)
	}
	return nil
}

// IsParseError reports whether err is (or wraps) a ParseError.
func IsParseError(err error) bool {
	var parseErr *ParseError
	return errors.As(err, &parseErr)
}

func spanBetween(text string, open, close byte) (string, bool) {
	start := strings.IndexByte(text, open)
	if start < 0 {
		return "", false
	}
	end := strings.LastIndexByte(text, close)
	if end <= start {
		return "", false
	}
	return strings.TrimSpace(text[start : end+1]), true
}

func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := trimmed[3:]
	body = strings.TrimLeft(body, " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = body[4:]
		body = strings.TrimLeft(body, " \t\r\n")
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}
