package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable. Validation failures are fatal
// at startup, before any candidate is processed.
func (c *Config) Validate() error {
	if err := c.validateAPIBase(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateKeywords(); err != nil {
		return err
	}
	if err := c.validateFilters(); err != nil {
		return err
	}
	if err := c.validatePoll(); err != nil {
		return err
	}
	if err := c.validateUpload(); err != nil {
		return err
	}
	if err := c.validateTemplates(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateAPIBase() error {
	if c.APIBase == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/lingoflow/config.toml"
		}
		return fmt.Errorf("api_base is required. Edit %s (create with 'lingoflow config init')", defaultPath)
	}
	if !strings.HasPrefix(c.APIBase, "http://") && !strings.HasPrefix(c.APIBase, "https://") {
		return fmt.Errorf("api_base must be an http(s) URL, got %q", c.APIBase)
	}
	return nil
}

func (c *Config) validateLLM() error {
	if c.LLM.APIKey == "" {
		return errors.New("llm.api_key is required")
	}
	if c.LLM.BaseURL == "" {
		return errors.New("llm.base_url must be set")
	}
	if c.LLM.Model == "" {
		return errors.New("llm.model must be set")
	}
	if c.LLM.JSONAttempts < 1 {
		return errors.New("llm.json_attempts must be at least 1")
	}
	if c.LLM.TotalBudgetSeconds < 1 {
		return errors.New("llm.total_budget_seconds must be at least 1")
	}
	return nil
}

func (c *Config) validateKeywords() error {
	if len(c.Keywords) == 0 {
		return errors.New("keywords must contain at least one entry")
	}
	return nil
}

func (c *Config) validateFilters() error {
	if c.YouTube.MaxResultsPerKeyword < 1 {
		return errors.New("youtube.max_results_per_keyword must be at least 1")
	}
	if c.YouTube.MinDurationSec < 0 {
		return errors.New("youtube.min_duration_sec must not be negative")
	}
	if c.YouTube.MaxDurationSec < c.YouTube.MinDurationSec {
		return errors.New("youtube.max_duration_sec must be >= youtube.min_duration_sec")
	}
	if c.YouTube.PublishedAfterDays < 0 {
		return errors.New("youtube.published_after_days must not be negative")
	}
	return nil
}

func (c *Config) validatePoll() error {
	if c.Poll.IntervalSec < 1 {
		return errors.New("poll.interval_sec must be at least 1")
	}
	if c.Poll.TimeoutSec < 1 {
		return errors.New("poll.timeout_sec must be at least 1")
	}
	return nil
}

func (c *Config) validateUpload() error {
	if c.Upload.RetryAttempts < 1 {
		return errors.New("upload.retry_attempts must be at least 1")
	}
	if c.Upload.RetryBackoffSec < 1 {
		return errors.New("upload.retry_backoff_sec must be at least 1")
	}
	return nil
}

func (c *Config) validateTemplates() error {
	if !strings.Contains(c.Templates.Title, "{title}") {
		return errors.New("templates.title must contain the {title} placeholder")
	}
	for _, placeholder := range []string{"{title_zh}", "{title_en}", "{video_url}", "{desc}"} {
		if !strings.Contains(c.Templates.Desc, placeholder) {
			return fmt.Errorf("templates.desc must contain the %s placeholder", placeholder)
		}
	}
	return nil
}
