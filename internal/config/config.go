package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	Workspace    string `toml:"workspace"`
	UploadsCache string `toml:"uploads_cache"`
	Covers       string `toml:"covers"`
	LogDir       string `toml:"log_dir"`
}

// LLM contains connection settings for the text-generation service.
type LLM struct {
	BaseURL            string `toml:"base_url"`
	APIKey             string `toml:"api_key"`
	Model              string `toml:"model"`
	TimeoutSeconds     int    `toml:"timeout_seconds"`
	JSONAttempts       int    `toml:"json_attempts"`
	TotalBudgetSeconds int    `toml:"total_budget_seconds"`
}

// YouTube contains discovery and filtering settings.
type YouTube struct {
	MaxResultsPerKeyword int      `toml:"max_results_per_keyword"`
	MinDurationSec       int      `toml:"min_duration_sec"`
	MaxDurationSec       int      `toml:"max_duration_sec"`
	BlacklistChannels    []string `toml:"blacklist_channels"`
	PublishedAfterDays   int      `toml:"published_after_days"`
	SearchRegion         string   `toml:"search_region"`
	CookiesFile          string   `toml:"cookies_file"`
}

// Processing contains parameters forwarded to the translation job service.
type Processing struct {
	TargetLanguage string `toml:"target_language"`
	SourceLanguage string `toml:"source_language"`
	EnableDubbing  bool   `toml:"enable_dubbing"`
	BurnSubtitles  bool   `toml:"burn_subtitles"`
	Resolution     string `toml:"resolution"`
	CleanupRemote  bool   `toml:"cleanup_remote"`
}

// Poll contains job status polling settings.
type Poll struct {
	IntervalSec int `toml:"interval_sec"`
	TimeoutSec  int `toml:"timeout_sec"`
}

// Upload contains publisher retry settings.
type Upload struct {
	RetryAttempts   int `toml:"retry_attempts"`
	RetryBackoffSec int `toml:"retry_backoff_sec"`
}

// Templates contains the publish metadata format strings. Placeholders use
// {name} syntax; recognized names are documented on each field.
type Templates struct {
	// Title must contain {title}.
	Title string `toml:"title"`
	// Desc may contain {title_zh}, {title_en}, {video_url}, and {desc}.
	Desc string `toml:"desc"`
}

// Config encapsulates all configuration values for lingoflow.
//
// Configuration sections by subsystem:
//   - Paths: workspace, cache, cover, and log directories
//   - LLM: text-generation service connection and retry budget
//   - YouTube: discovery caps and candidate filters
//   - Processing: translation/dubbing job parameters
//   - Poll: job status polling cadence and timeout
//   - Upload: publish retry attempts and backoff
//   - Templates: publish title/description format strings
type Config struct {
	APIBase     string     `toml:"api_base"`
	Keywords    []string   `toml:"keywords"`
	HistoryFile string     `toml:"history_file"`
	LogLevel    string     `toml:"log_level"`
	LogFormat   string     `toml:"log_format"`
	Paths       Paths      `toml:"paths"`
	LLM         LLM        `toml:"llm"`
	YouTube     YouTube    `toml:"youtube"`
	Processing  Processing `toml:"processing"`
	Poll        Poll       `toml:"poll"`
	Upload      Upload     `toml:"upload"`
	Templates   Templates  `toml:"templates"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/lingoflow/config.toml")
}

// SampleConfig returns the embedded sample configuration document.
func SampleConfig() string {
	return sampleConfig
}

// CreateSample writes the embedded sample configuration to path.
func CreateSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("lingoflow.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories a pipeline run writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.Workspace, c.Paths.UploadsCache, c.Paths.Covers, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// SearchBinary returns the discovery executable name.
func (c *Config) SearchBinary() string {
	return "yt-dlp"
}

// UploadBinary returns the publisher executable name.
func (c *Config) UploadBinary() string {
	return "biliup"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
