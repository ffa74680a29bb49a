package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/nickh0112/insta-captions/internal/services"
)

// maxDownloadsExitCode is returned by yt-dlp when --max-downloads stops the
// batch early; the downloads that did happen are still on disk.
const maxDownloadsExitCode = 101

// Config holds the yt-dlp invocation settings.
type Config struct {
	Binary        string
	SubtitleLang  string
	SleepRequests int
	MaxDownloads  int
}

// BatchRequest describes one caption-scrape invocation.
type BatchRequest struct {
	URLListPath string
	OutputDir   string
	LedgerPath  string
	// LockLedger serializes the invocation against other processes and jobs
	// sharing the same ledger file.
	LockLedger bool
}

// CommandRunner abstracts process execution for testability.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (string, int, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) (string, int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	exitCode := 0
	if err != nil {
		exitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
	}
	return strings.TrimSpace(string(output)), exitCode, err
}

// Service invokes yt-dlp.
type Service struct {
	cfg    Config
	runner CommandRunner
}

// NewService creates a yt-dlp service with the given configuration.
func NewService(cfg Config) *Service {
	if cfg.Binary == "" {
		cfg.Binary = "yt-dlp"
	}
	return &Service{cfg: cfg, runner: execRunner{}}
}

// WithRunner replaces the command runner (used in tests).
func (s *Service) WithRunner(runner CommandRunner) {
	s.runner = runner
}

// ScrapeBatch runs one caption scrape over the whole URL list. URLs already
// present in the dedup ledger are skipped by yt-dlp itself. Hitting the
// configured download cap is not an error.
func (s *Service) ScrapeBatch(ctx context.Context, req BatchRequest) error {
	if req.URLListPath == "" {
		return services.Wrap(services.ErrValidation, "scrape", "batch", "url list path required", nil)
	}
	if req.OutputDir == "" {
		return services.Wrap(services.ErrValidation, "scrape", "batch", "output dir required", nil)
	}

	if req.LockLedger && req.LedgerPath != "" {
		unlock, err := lockLedger(ctx, req.LedgerPath)
		if err != nil {
			return services.Wrap(services.ErrTransient, "scrape", "lock ledger", req.LedgerPath, err)
		}
		defer unlock()
	}

	args := s.buildScrapeArgs(req)
	output, exitCode, err := s.runner.Run(ctx, s.cfg.Binary, args...)
	if err != nil {
		if exitCode == maxDownloadsExitCode {
			return nil
		}
		return services.Wrap(services.ErrExternalTool, "scrape", s.cfg.Binary,
			truncateOutput(output), err)
	}
	return nil
}

// DownloadAudio fetches the audio-only stream for one URL into dest.
func (s *Service) DownloadAudio(ctx context.Context, url, dest string) error {
	if url == "" || dest == "" {
		return services.Wrap(services.ErrValidation, "fallback", "download audio", "url and destination required", nil)
	}
	args := []string{"-f", "ba", "-o", dest, url}
	output, _, err := s.runner.Run(ctx, s.cfg.Binary, args...)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "fallback", s.cfg.Binary,
			truncateOutput(output), err)
	}
	return nil
}

// buildScrapeArgs mirrors the caption-scrape option set: no media download,
// auto-generated subtitles in the configured language converted to SRT, one
// subtitle file per video id in the output area.
func (s *Service) buildScrapeArgs(req BatchRequest) []string {
	lang := s.cfg.SubtitleLang
	if lang == "" {
		lang = "en"
	}
	args := []string{
		"--skip-download",
		"--write-auto-subs",
		"--sub-langs", lang,
		"--convert-subs", "srt",
		"--output", "subtitle:" + filepath.Join(req.OutputDir, "%(id)s.%(ext)s"),
		"--sleep-requests", strconv.Itoa(s.cfg.SleepRequests),
		"--max-downloads", strconv.Itoa(s.cfg.MaxDownloads),
	}
	if req.LedgerPath != "" {
		args = append(args, "--download-archive", req.LedgerPath)
	}
	args = append(args, "--batch-file", req.URLListPath)
	return args
}

func lockLedger(ctx context.Context, ledgerPath string) (func(), error) {
	lock := flock.New(ledgerPath + ".lock")
	locked, err := lock.TryLockContext(ctx, 250*time.Millisecond)
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, fmt.Errorf("ledger lock unavailable")
	}
	return func() { _ = lock.Unlock() }, nil
}

func truncateOutput(output string) string {
	const limit = 400
	if len(output) <= limit {
		return output
	}
	return output[len(output)-limit:]
}
