package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"lingoflow/internal/services"
)

func TestConsoleHandlerComposesSubject(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, levelVar, false))

	logger.Info("publish started",
		String(FieldComponent, "uploader"),
		String(FieldCandidateID, "v1"),
		String(FieldStep, "publish"),
		Int("attempt", 2),
	)

	line := buf.String()
	for _, fragment := range []string{"[uploader]", "candidate v1 (publish)", "publish started", "attempt=2"} {
		if !strings.Contains(line, fragment) {
			t.Fatalf("expected %q in %q", fragment, line)
		}
	}
}

func TestConsoleHandlerSkipsColorForNonTerminal(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, levelVar, false))

	logger.Error("upload failed")

	line := buf.String()
	if strings.Contains(line, "\x1b[") {
		t.Fatalf("expected no escape sequences for buffered writer, got %q", line)
	}
	if shouldColorize(&buf) {
		t.Fatal("non-file writer must not colorize")
	}
}

func TestLevelColorMatchesSeverity(t *testing.T) {
	cases := []struct {
		level slog.Level
		want  string
	}{
		{slog.LevelError, ansiRed},
		{slog.LevelWarn, ansiYellow},
		{slog.LevelInfo, ansiBlue},
		{slog.LevelDebug, ""},
	}
	for _, tc := range cases {
		if got := levelColor(tc.level); got != tc.want {
			t.Fatalf("levelColor(%v) = %q, want %q", tc.level, got, tc.want)
		}
	}
}

func TestJSONHandlerLowercasesLevel(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	logger := slog.New(newJSONHandler(&buf, levelVar, false))

	logger.Warn("poll retry", String("reason", "transport"))

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if payload["level"] != "warn" {
		t.Fatalf("expected lowercase level, got %v", payload["level"])
	}
	if payload["msg"] != "poll retry" {
		t.Fatalf("unexpected message %v", payload["msg"])
	}
}

func TestWithContextAddsCandidateFields(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, levelVar, false))

	ctx := services.WithCandidateID(context.Background(), "v9")
	ctx = services.WithStep(ctx, "poll")

	WithContext(ctx, logger).Info("waiting")
	line := buf.String()
	if !strings.Contains(line, "candidate v9 (poll)") {
		t.Fatalf("expected context fields in %q", line)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewNopDiscards(t *testing.T) {
	logger := NewNop()
	logger.Info("ignored")
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("noop logger should report disabled")
	}
}
