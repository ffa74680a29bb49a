package config

import (
	"errors"
	"fmt"

	"golang.org/x/text/language"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateScrape(); err != nil {
		return err
	}
	if err := c.validateTranscribe(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.WorkspaceRoot == "" {
		return errors.New("paths.workspace_root must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateScrape() error {
	if c.Scrape.MaxDownloads <= 0 {
		return errors.New("scrape.max_downloads must be positive")
	}
	if _, err := language.Parse(c.Scrape.SubtitleLang); err != nil {
		return fmt.Errorf("scrape.subtitle_lang: unrecognized language tag %q", c.Scrape.SubtitleLang)
	}
	return nil
}

func (c *Config) validateTranscribe() error {
	if c.Transcribe.Model == "" {
		return errors.New("transcribe.model must be set")
	}
	if _, err := language.Parse(c.Transcribe.Language); err != nil {
		return fmt.Errorf("transcribe.language: unrecognized language tag %q", c.Transcribe.Language)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
