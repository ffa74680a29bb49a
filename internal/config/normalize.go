package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeScrape(); err != nil {
		return err
	}
	c.normalizeTranscribe()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WorkspaceRoot) == "" {
		c.Paths.WorkspaceRoot = defaultWorkspaceRoot
	}
	if c.Paths.WorkspaceRoot, err = expandPath(c.Paths.WorkspaceRoot); err != nil {
		return fmt.Errorf("paths.workspace_root: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeScrape() error {
	c.Scrape.Binary = strings.TrimSpace(c.Scrape.Binary)
	if c.Scrape.Binary == "" {
		c.Scrape.Binary = defaultScrapeBinary
	}
	c.Scrape.SubtitleLang = strings.TrimSpace(c.Scrape.SubtitleLang)
	if c.Scrape.SubtitleLang == "" {
		c.Scrape.SubtitleLang = defaultSubtitleLang
	}
	if c.Scrape.SleepRequests < 0 {
		c.Scrape.SleepRequests = defaultSleepRequests
	}
	if c.Scrape.MaxDownloads <= 0 {
		c.Scrape.MaxDownloads = defaultMaxDownloads
	}
	c.Scrape.LedgerPath = strings.TrimSpace(c.Scrape.LedgerPath)
	if c.Scrape.LedgerPath != "" {
		expanded, err := expandPath(c.Scrape.LedgerPath)
		if err != nil {
			return fmt.Errorf("scrape.ledger_path: %w", err)
		}
		c.Scrape.LedgerPath = expanded
	}
	return nil
}

func (c *Config) normalizeTranscribe() {
	c.Transcribe.Binary = strings.TrimSpace(c.Transcribe.Binary)
	if c.Transcribe.Binary == "" {
		c.Transcribe.Binary = defaultTranscribeBinary
	}
	c.Transcribe.Model = strings.TrimSpace(c.Transcribe.Model)
	if c.Transcribe.Model == "" {
		c.Transcribe.Model = defaultTranscribeModel
	}
	c.Transcribe.Language = strings.TrimSpace(c.Transcribe.Language)
	if c.Transcribe.Language == "" {
		c.Transcribe.Language = defaultLanguage
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.WorkerCount <= 0 {
		c.Workflow.WorkerCount = defaultWorkerCount
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
