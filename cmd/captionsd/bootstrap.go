package main

import (
	"log/slog"

	"github.com/nickh0112/insta-captions/internal/config"
	"github.com/nickh0112/insta-captions/internal/daemon"
	"github.com/nickh0112/insta-captions/internal/jobs"
	"github.com/nickh0112/insta-captions/internal/pipeline"
	"github.com/nickh0112/insta-captions/internal/services/whisper"
	"github.com/nickh0112/insta-captions/internal/services/ytdlp"
	"github.com/nickh0112/insta-captions/internal/workspace"
)

func buildDaemon(cfg *config.Config, logger *slog.Logger) (*daemon.Daemon, error) {
	registry := jobs.NewRegistry()
	workspaces := workspace.NewManager(cfg.Paths.WorkspaceRoot)

	scraper := ytdlp.NewService(ytdlp.Config{
		Binary:        cfg.ScrapeBinary(),
		SubtitleLang:  cfg.Scrape.SubtitleLang,
		SleepRequests: cfg.Scrape.SleepRequests,
		MaxDownloads:  cfg.Scrape.MaxDownloads,
	})
	transcriber := whisper.NewService(whisper.Config{
		Binary:   cfg.TranscribeBinary(),
		Model:    cfg.Transcribe.Model,
		Language: cfg.Transcribe.Language,
	})

	scrape := pipeline.NewScrapeStage(scraper, cfg.Scrape.LedgerPath, logger)
	fallback := pipeline.NewFallbackStage(scraper, transcriber, logger)
	executor := pipeline.NewExecutor(registry, workspaces, scrape, fallback, logger)
	dispatcher := pipeline.NewDispatcher(executor, cfg.Workflow.WorkerCount, logger)

	return daemon.New(cfg, registry, dispatcher, workspaces, logger)
}
