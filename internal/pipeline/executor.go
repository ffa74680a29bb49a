package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nickh0112/insta-captions/internal/jobs"
	"github.com/nickh0112/insta-captions/internal/logging"
	"github.com/nickh0112/insta-captions/internal/services"
	"github.com/nickh0112/insta-captions/internal/workspace"
)

// Progress checkpoints reported while a job moves through the pipeline.
const (
	progressSetup    = 0.1
	progressScrape   = 0.3
	progressFallback = 0.6
	progressFinalize = 0.9
)

// Executor runs one job's two stages in sequence against its workspace,
// translating stage completion into registry updates. It is the only writer
// of a job's state and progress fields while the job runs.
type Executor struct {
	registry   *jobs.Registry
	workspaces *workspace.Manager
	scrape     StageRunner
	fallback   StageRunner
	logger     *slog.Logger
}

// NewExecutor constructs an executor over the given stages.
func NewExecutor(registry *jobs.Registry, workspaces *workspace.Manager, scrape, fallback StageRunner, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Executor{
		registry:   registry,
		workspaces: workspaces,
		scrape:     scrape,
		fallback:   fallback,
		logger:     logger.With(logging.String(logging.FieldComponent, "executor")),
	}
}

// Execute drives the job to a terminal state. Every path ends in a registry
// update; nothing escapes past the dispatch boundary.
func (e *Executor) Execute(ctx context.Context, jobID string) {
	ctx = services.WithJobID(ctx, jobID)
	logger := logging.WithContext(ctx, e.logger)

	job, err := e.registry.Get(jobID)
	if err != nil {
		logger.Warn("job vanished before dispatch", logging.Error(err))
		return
	}

	if err := e.registry.SetRunning(jobID, progressSetup, "Setting up workspace..."); err != nil {
		logger.Warn("job not startable", logging.Error(err))
		return
	}

	ws, err := e.workspaces.Create(jobID)
	if err != nil {
		e.fail(logger, jobID, nil, err)
		return
	}
	if err := e.registry.SetWorkspace(jobID, ws); err != nil {
		// Deleted while we were allocating; nothing owns the tree anymore.
		_ = ws.Destroy()
		logger.Warn("job removed during setup", logging.Error(err))
		return
	}
	if err := ws.WriteURLList(job.URLs); err != nil {
		e.fail(logger, jobID, ws, err)
		return
	}

	if !e.checkpoint(logger, jobID, ws, progressScrape, "Extracting existing captions...") {
		return
	}
	if _, err := e.scrape.Run(services.WithStage(ctx, e.scrape.Name()), ws, job.URLs); err != nil {
		e.fail(logger, jobID, ws, err)
		return
	}

	if !e.checkpoint(logger, jobID, ws, progressFallback, "Processing with Whisper...") {
		return
	}
	if _, err := e.fallback.Run(services.WithStage(ctx, e.fallback.Name()), ws, job.URLs); err != nil {
		e.fail(logger, jobID, ws, err)
		return
	}

	if !e.checkpoint(logger, jobID, ws, progressFinalize, "Finalizing results...") {
		return
	}

	transcripts, err := ws.TranscriptFiles()
	if err != nil {
		e.fail(logger, jobID, ws, services.Wrap(services.ErrWorkspace, "finalize", "count transcripts", ws.OutputDir(), err))
		return
	}
	if len(transcripts) == 0 {
		// An empty-result run is a failure even when no stage errored.
		if err := e.registry.SetFailed(jobID, "No transcripts were generated"); err != nil {
			e.orphaned(logger, ws, err)
		}
		logger.Info("job failed: empty result")
		return
	}

	message := fmt.Sprintf("Successfully processed %d transcripts", len(transcripts))
	if err := e.registry.SetCompleted(jobID, message); err != nil {
		e.orphaned(logger, ws, err)
		return
	}
	logger.Info("job completed", logging.Int("transcripts", len(transcripts)))
}

// checkpoint records a progress update and reports whether the job still
// exists and may continue.
func (e *Executor) checkpoint(logger *slog.Logger, jobID string, ws *workspace.Workspace, progress float64, message string) bool {
	if err := e.registry.SetProgress(jobID, progress, message); err != nil {
		e.orphaned(logger, ws, err)
		return false
	}
	logger.Info("checkpoint", logging.Float64("progress", progress), logging.String("message", message))
	return true
}

// fail converts any pipeline error into the terminal failed state.
func (e *Executor) fail(logger *slog.Logger, jobID string, ws *workspace.Workspace, cause error) {
	message := "Error: " + cause.Error()
	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		message = "Job cancelled"
	}
	if err := e.registry.SetFailed(jobID, message); err != nil {
		e.orphaned(logger, ws, err)
		return
	}
	logger.Error("job failed", logging.Error(cause))
}

// orphaned handles a registry update racing a delete: the record is gone (or
// frozen), so the workspace has no owner and is destroyed here.
func (e *Executor) orphaned(logger *slog.Logger, ws *workspace.Workspace, cause error) {
	logger.Warn("job record unavailable mid-run", logging.Error(cause))
	if ws != nil {
		if err := ws.Destroy(); err != nil {
			logger.Warn("destroy orphaned workspace", logging.Error(err))
		}
	}
}
