package biliup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

type fakeExecutor struct {
	calls   [][]string
	results []fakeResult
}

type fakeResult struct {
	stdout string
	stderr string
	err    error
}

func (f *fakeExecutor) Run(_ context.Context, binary string, args []string) (string, string, error) {
	f.calls = append(f.calls, append([]string{binary}, args...))
	if len(f.results) == 0 {
		return "", "", nil
	}
	result := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return result.stdout, result.stderr, result.err
}

func TestFilterTagsKeepsTwoToFourFullwidth(t *testing.T) {
	got := FilterTags([]string{"AB", "中文标签", "X", "二字", "超长标签示例七"})
	want := []string{"中文标签", "二字"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("FilterTags = %v, want %v", got, want)
	}
}

func TestFilterTagsFallsBackToRawTags(t *testing.T) {
	input := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	got := FilterTags(input)
	want := []string{"a", "b", "c", "d", "e", "f"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("FilterTags fallback = %v, want %v", got, want)
	}
}

func TestFilterTagsCapsAtTwelve(t *testing.T) {
	input := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		input = append(input, "标签")
	}
	if got := FilterTags(input); len(got) != 12 {
		t.Fatalf("expected 12 tags, got %d", len(got))
	}
}

func TestUploadBuildsCommand(t *testing.T) {
	dir := t.TempDir()
	cover := filepath.Join(dir, "cover.jpg")
	if err := os.WriteFile(cover, []byte("jpg"), 0o644); err != nil {
		t.Fatal(err)
	}
	exec := &fakeExecutor{}
	uploader, err := New("biliup", 1, 1, WithExecutor(exec))
	if err != nil {
		t.Fatal(err)
	}
	_, _, err = uploader.Upload(context.Background(), Request{
		CoverPath: cover,
		Source:    "https://youtube.com/watch?v=v1",
		Title:     "[中字翻译] Example",
		Desc:      "desc",
		Tags:      []string{"中文标签"},
		MediaPath: "/tmp/out.mp4",
	})
	if err != nil {
		t.Fatalf("Upload returned error: %v", err)
	}
	want := []string{
		"biliup", "upload",
		"--cover", cover,
		"--source", "https://youtube.com/watch?v=v1",
		"--title", "[中字翻译] Example",
		"--desc", "desc",
		"--tag", "中文标签",
		"/tmp/out.mp4",
	}
	if len(exec.calls) != 1 || !reflect.DeepEqual(exec.calls[0], want) {
		t.Fatalf("unexpected command %v, want %v", exec.calls, want)
	}
}

func TestUploadSkipsMissingCover(t *testing.T) {
	exec := &fakeExecutor{}
	uploader, err := New("biliup", 1, 1, WithExecutor(exec))
	if err != nil {
		t.Fatal(err)
	}
	_, _, err = uploader.Upload(context.Background(), Request{
		CoverPath: "/nonexistent/cover.jpg",
		MediaPath: "/tmp/out.mp4",
	})
	if err != nil {
		t.Fatalf("Upload returned error: %v", err)
	}
	for _, arg := range exec.calls[0] {
		if arg == "--cover" {
			t.Fatal("--cover should be omitted when cover file is missing")
		}
	}
}

func TestUploadWithRetrySucceedsFirstAttempt(t *testing.T) {
	exec := &fakeExecutor{results: []fakeResult{{stdout: "ok"}}}
	uploader, err := New("biliup", 3, 20, WithExecutor(exec), WithSleeper(func(time.Duration) {
		t.Fatal("no sleep expected on first-attempt success")
	}))
	if err != nil {
		t.Fatal(err)
	}
	result, err := uploader.UploadWithRetry(context.Background(), Request{MediaPath: "/tmp/out.mp4"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Succeeded || result.Attempts != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestUploadWithRetryBackoffDoublesCapped(t *testing.T) {
	exec := &fakeExecutor{results: []fakeResult{
		{stderr: "boom", err: errors.New("exit code 1")},
	}}
	var waits []time.Duration
	uploader, err := New("biliup", 6, 20, WithExecutor(exec), WithSleeper(func(d time.Duration) {
		waits = append(waits, d)
	}))
	if err != nil {
		t.Fatal(err)
	}
	result, err := uploader.UploadWithRetry(context.Background(), Request{MediaPath: "/tmp/out.mp4"})
	if err == nil {
		t.Fatal("expected error after exhausted attempts")
	}
	if result.Succeeded {
		t.Fatal("expected failure result")
	}
	if result.Attempts != 6 {
		t.Fatalf("expected 6 attempts, got %d", result.Attempts)
	}
	want := []time.Duration{
		20 * time.Second,
		40 * time.Second,
		80 * time.Second,
		160 * time.Second,
		300 * time.Second,
	}
	if !reflect.DeepEqual(waits, want) {
		t.Fatalf("unexpected backoff schedule %v, want %v", waits, want)
	}
	if !strings.Contains(result.Diagnostic, "boom") {
		t.Fatalf("diagnostic should carry stderr, got %q", result.Diagnostic)
	}
}

func TestUploadWithRetryBackoffInterruptedByCancellation(t *testing.T) {
	exec := &fakeExecutor{results: []fakeResult{
		{stderr: "boom", err: errors.New("exit code 1")},
	}}
	uploader, err := New("biliup", 2, 3, WithExecutor(exec))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	time.AfterFunc(50*time.Millisecond, cancel)
	start := time.Now()
	result, err := uploader.UploadWithRetry(ctx, Request{MediaPath: "/tmp/out.mp4"})
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("backoff sleep not interrupted, returned after %v", elapsed)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if result.Succeeded {
		t.Fatal("expected failure result")
	}
	if len(exec.calls) != 1 {
		t.Fatalf("expected no further attempts after cancellation, got %d calls", len(exec.calls))
	}
}

func TestUploadWithRetryStopsOnCancellation(t *testing.T) {
	exec := &fakeExecutor{results: []fakeResult{
		{stderr: "boom", err: errors.New("exit code 1")},
	}}
	ctx, cancel := context.WithCancel(context.Background())
	uploader, err := New("biliup", 3, 20, WithExecutor(exec), WithSleeper(func(time.Duration) {
		cancel()
	}))
	if err != nil {
		t.Fatal(err)
	}
	result, err := uploader.UploadWithRetry(ctx, Request{MediaPath: "/tmp/out.mp4"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if result.Succeeded {
		t.Fatal("expected failure result")
	}
	if len(exec.calls) != 1 {
		t.Fatalf("expected retries to stop after cancellation, got %d calls", len(exec.calls))
	}
}
