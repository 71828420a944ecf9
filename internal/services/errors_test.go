package services_test

import (
	"errors"
	"strings"
	"testing"

	"lingoflow/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "uploader", "publish", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"uploader", "publish", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "poller", "status", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker by default, got %v", err)
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"transient", services.Wrap(services.ErrTransient, "poller", "status", "", errors.New("io")), true},
		{"timeout", services.Wrap(services.ErrTimeout, "poller", "wait", "", nil), true},
		{"malformed", services.Wrap(services.ErrMalformedOutput, "llm", "chat_json", "", nil), true},
		{"configuration", services.Wrap(services.ErrConfiguration, "config", "validate", "", nil), false},
		{"untagged", errors.New("plain"), false},
	}
	for _, tc := range cases {
		if got := services.IsRetryable(tc.err); got != tc.want {
			t.Fatalf("%s: IsRetryable = %v, want %v", tc.name, got, tc.want)
		}
	}
}
