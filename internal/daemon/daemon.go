package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"github.com/nickh0112/insta-captions/internal/api"
	"github.com/nickh0112/insta-captions/internal/config"
	"github.com/nickh0112/insta-captions/internal/jobs"
	"github.com/nickh0112/insta-captions/internal/logging"
	"github.com/nickh0112/insta-captions/internal/pipeline"
	"github.com/nickh0112/insta-captions/internal/workspace"
)

// Daemon owns the background processing services and enforces
// single-instance execution.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	registry   *jobs.Registry
	dispatcher *pipeline.Dispatcher
	workspaces *workspace.Manager

	lockPath string
	lock     *flock.Flock

	server *apiServer

	running atomic.Bool
	cancel  context.CancelFunc
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, registry *jobs.Registry, dispatcher *pipeline.Dispatcher, workspaces *workspace.Manager, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || registry == nil || dispatcher == nil || workspaces == nil {
		return nil, errors.New("daemon requires config, registry, dispatcher, and workspace manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "captionsd.lock")
	d := &Daemon{
		cfg:        cfg,
		logger:     logger,
		registry:   registry,
		dispatcher: dispatcher,
		workspaces: workspaces,
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
	}
	d.server = newAPIServer(cfg.Paths.APIBind, d, logger)
	return d, nil
}

// Start acquires the instance lock, starts the dispatcher, and begins
// serving the API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another captions daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.dispatcher.Start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		d.cancel = nil
		return fmt.Errorf("start dispatcher: %w", err)
	}
	if err := d.server.start(runCtx); err != nil {
		d.dispatcher.Stop()
		_ = d.lock.Unlock()
		cancel()
		d.cancel = nil
		return err
	}

	for _, dep := range d.Dependencies() {
		if dep.Available {
			continue
		}
		level := d.logger.Warn
		if dep.Optional {
			level = d.logger.Debug
		}
		level("external dependency unavailable",
			logging.String("name", dep.Name),
			logging.String("command", dep.Command),
			logging.String("detail", dep.Detail),
		)
	}

	d.running.Store(true)
	d.logger.Info("captions daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops background processing and releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.server.stop()
	d.dispatcher.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("captions daemon stopped")
}

// Running reports whether the daemon lifecycle is active.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Dependencies probes the external tools the pipeline shells out to.
// ffmpeg is optional because yt-dlp only needs it for subtitle conversion
// and audio remuxing on some sources.
func (d *Daemon) Dependencies() []api.DependencyStatus {
	checks := []struct {
		name     string
		command  string
		optional bool
	}{
		{name: "caption scraper", command: d.cfg.ScrapeBinary()},
		{name: "transcriber", command: d.cfg.TranscribeBinary()},
		{name: "ffmpeg", command: d.cfg.FFmpegBinary(), optional: true},
	}

	out := make([]api.DependencyStatus, 0, len(checks))
	for _, check := range checks {
		status := api.DependencyStatus{
			Name:     check.name,
			Command:  check.command,
			Optional: check.optional,
		}
		if path, err := exec.LookPath(check.command); err != nil {
			status.Detail = err.Error()
		} else {
			status.Available = true
			status.Detail = path
		}
		out = append(out, status)
	}
	return out
}
