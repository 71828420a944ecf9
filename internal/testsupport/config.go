package testsupport

import (
	"path/filepath"
	"testing"

	"lingoflow/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.APIBase = "http://localhost:8000"
	cfg.Keywords = []string{"shark"}
	cfg.HistoryFile = filepath.Join(base, "history.jsonl")
	cfg.LLM.APIKey = "sk-test"
	cfg.Paths.Workspace = base
	cfg.Paths.UploadsCache = filepath.Join(base, "uploads")
	cfg.Paths.Covers = filepath.Join(base, "covers")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.YouTube.MinDurationSec = 10
	cfg.YouTube.MaxDurationSec = 3600
	cfg.YouTube.PublishedAfterDays = 3650
	cfg.Processing.CleanupRemote = true

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithKeywords overrides the keyword list on the test config.
func WithKeywords(keywords ...string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Keywords = keywords
	}
}

// WithBlacklist sets the blacklisted channels on the test config.
func WithBlacklist(channels ...string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.YouTube.BlacklistChannels = channels
	}
}
