package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lingoflow/internal/history"
)

func writeTestConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	configPath := filepath.Join(dir, "lingoflow.toml")
	doc := fmt.Sprintf(`api_base = "http://localhost:8000"
keywords = ["shark documentary"]
history_file = %q

[llm]
api_key = "sk-test"

[paths]
workspace = %q
uploads_cache = %q
covers = %q
log_dir = %q
`,
		filepath.Join(dir, "history.jsonl"),
		filepath.Join(dir, "ws"),
		filepath.Join(dir, "uploads"),
		filepath.Join(dir, "covers"),
		filepath.Join(dir, "logs"),
	)
	if err := os.WriteFile(configPath, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	return configPath, filepath.Join(dir, "history.jsonl")
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	out, err := runCommand(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	if !strings.Contains(out, target) {
		t.Fatalf("output should mention target path, got %q", out)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "api_base") {
		t.Fatal("sample config missing api_base")
	}

	if _, err := runCommand(t, "config", "init", "--path", target); err == nil {
		t.Fatal("second init without --overwrite should fail")
	}
	if _, err := runCommand(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("init with --overwrite failed: %v", err)
	}
}

func TestConfigPathPrintsResolvedPath(t *testing.T) {
	configPath, _ := writeTestConfig(t)
	out, err := runCommand(t, "--config", configPath, "config", "path")
	if err != nil {
		t.Fatalf("config path failed: %v", err)
	}
	if !strings.Contains(out, configPath) {
		t.Fatalf("expected %q in output %q", configPath, out)
	}
}

func TestHistoryCommandRendersRecords(t *testing.T) {
	configPath, historyPath := writeTestConfig(t)
	ledger, err := history.New(historyPath)
	if err != nil {
		t.Fatal(err)
	}
	records := []history.Record{
		{ID: "v1", Status: history.StatusCompleted, Title: "[中字翻译] 鲨鱼"},
		{ID: "v2", Status: history.StatusUploadFailed, Reason: "exit code 1", Attempts: 3},
	}
	for _, rec := range records {
		if err := ledger.Append(rec); err != nil {
			t.Fatal(err)
		}
	}

	out, err := runCommand(t, "--config", configPath, "history")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if !strings.Contains(out, "v1") || !strings.Contains(out, "v2") {
		t.Fatalf("history output missing records: %q", out)
	}

	out, err = runCommand(t, "--config", configPath, "history", "--failed")
	if err != nil {
		t.Fatalf("history --failed failed: %v", err)
	}
	if strings.Contains(out, "v1") || !strings.Contains(out, "v2") {
		t.Fatalf("--failed should show only upload failures: %q", out)
	}
}

func TestHistoryCommandEmptyLedger(t *testing.T) {
	configPath, _ := writeTestConfig(t)
	out, err := runCommand(t, "--config", configPath, "history")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if !strings.Contains(out, "No history records.") {
		t.Fatalf("unexpected output %q", out)
	}
}
