package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeStrings()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.Workspace, err = expandPath(c.Paths.Workspace); err != nil {
		return fmt.Errorf("paths.workspace: %w", err)
	}
	if c.Paths.UploadsCache, err = expandPath(c.Paths.UploadsCache); err != nil {
		return fmt.Errorf("paths.uploads_cache: %w", err)
	}
	if c.Paths.Covers, err = expandPath(c.Paths.Covers); err != nil {
		return fmt.Errorf("paths.covers: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.HistoryFile) == "" {
		c.HistoryFile = filepath.Join(c.Paths.Workspace, "history.jsonl")
	} else if c.HistoryFile, err = expandPath(c.HistoryFile); err != nil {
		return fmt.Errorf("history_file: %w", err)
	}
	if strings.TrimSpace(c.YouTube.CookiesFile) != "" {
		if c.YouTube.CookiesFile, err = expandPath(c.YouTube.CookiesFile); err != nil {
			return fmt.Errorf("youtube.cookies_file: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeStrings() {
	c.APIBase = strings.TrimRight(strings.TrimSpace(c.APIBase), "/")
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	c.Processing.TargetLanguage = strings.TrimSpace(c.Processing.TargetLanguage)
	c.Processing.SourceLanguage = strings.TrimSpace(c.Processing.SourceLanguage)
	c.Processing.Resolution = strings.TrimSpace(c.Processing.Resolution)
	c.YouTube.SearchRegion = strings.TrimSpace(c.YouTube.SearchRegion)

	keywords := make([]string, 0, len(c.Keywords))
	for _, kw := range c.Keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	c.Keywords = keywords

	channels := make([]string, 0, len(c.YouTube.BlacklistChannels))
	for _, ch := range c.YouTube.BlacklistChannels {
		if ch = strings.TrimSpace(ch); ch != "" {
			channels = append(channels, ch)
		}
	}
	c.YouTube.BlacklistChannels = channels
}

func (c *Config) normalizeLogging() {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	if c.LogFormat == "" {
		c.LogFormat = defaultLogFormat
	}
}
