package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/nickh0112/insta-captions/internal/logging"
	"github.com/nickh0112/insta-captions/internal/services"
	"github.com/nickh0112/insta-captions/internal/services/ytdlp"
	"github.com/nickh0112/insta-captions/internal/workspace"
)

// ScrapeStage runs the per-batch caption extraction. It invokes the scrape
// tool once for the whole URL list; URLs recorded in the dedup ledger are
// skipped by the tool itself.
type ScrapeStage struct {
	svc *ytdlp.Service
	// sharedLedger, when set, replaces the workspace-scoped ledger and is
	// guarded by a file lock across concurrent jobs.
	sharedLedger string
	logger       *slog.Logger
}

// NewScrapeStage builds the scrape stage. sharedLedger may be empty to keep
// the ledger isolated per workspace.
func NewScrapeStage(svc *ytdlp.Service, sharedLedger string, logger *slog.Logger) *ScrapeStage {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &ScrapeStage{svc: svc, sharedLedger: sharedLedger, logger: logger}
}

func (s *ScrapeStage) Name() string { return "scrape" }

// Run executes one batch scrape. A tool failure partway through the batch is
// soft: whatever caption files were written stay counted and the fallback
// stage still runs. Only an unreadable URL list aborts the job.
func (s *ScrapeStage) Run(ctx context.Context, ws *workspace.Workspace, urls []string) (int, error) {
	if _, err := os.Stat(ws.URLListPath()); err != nil {
		return 0, services.Wrap(services.ErrWorkspace, "scrape", "read url list", ws.URLListPath(), err)
	}

	before, err := countFiles(ws.OutputDir())
	if err != nil {
		return 0, services.Wrap(services.ErrWorkspace, "scrape", "read output dir", ws.OutputDir(), err)
	}

	ledger := ws.LedgerPath()
	lockLedger := false
	if s.sharedLedger != "" {
		ledger = s.sharedLedger
		lockLedger = true
	}

	logger := logging.WithContext(ctx, s.logger)
	logger.Info("scraping captions",
		logging.Int("url_count", len(urls)),
		logging.String("ledger", ledger),
		logging.Bool("ledger_shared", lockLedger),
	)

	scrapeErr := s.svc.ScrapeBatch(ctx, ytdlp.BatchRequest{
		URLListPath: ws.URLListPath(),
		OutputDir:   ws.OutputDir(),
		LedgerPath:  ledger,
		LockLedger:  lockLedger,
	})
	if scrapeErr != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		if errors.Is(scrapeErr, services.ErrExternalTool) {
			logger.Warn("caption scrape ended with tool error; continuing to fallback",
				logging.Error(scrapeErr))
		} else {
			return 0, scrapeErr
		}
	}

	after, err := countFiles(ws.OutputDir())
	if err != nil {
		return 0, services.Wrap(services.ErrWorkspace, "scrape", "read output dir", ws.OutputDir(), err)
	}
	produced := after - before
	logger.Info("caption scrape finished", logging.Int("produced", produced))
	return produced, nil
}

func countFiles(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			count++
		}
	}
	return count, nil
}
