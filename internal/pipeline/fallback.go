package pipeline

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/nickh0112/insta-captions/internal/logging"
	"github.com/nickh0112/insta-captions/internal/services"
	"github.com/nickh0112/insta-captions/internal/services/whisper"
	"github.com/nickh0112/insta-captions/internal/services/ytdlp"
	"github.com/nickh0112/insta-captions/internal/workspace"
)

// FallbackStage transcribes every URL that still lacks a transcript after
// the caption scrape: download the audio-only stream into scratch, run the
// transcription model, write the structured transcript, and always remove
// the scratch audio afterwards.
type FallbackStage struct {
	downloader  *ytdlp.Service
	transcriber *whisper.Service
	logger      *slog.Logger
}

// NewFallbackStage builds the ASR fallback stage.
func NewFallbackStage(downloader *ytdlp.Service, transcriber *whisper.Service, logger *slog.Logger) *FallbackStage {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &FallbackStage{downloader: downloader, transcriber: transcriber, logger: logger}
}

func (f *FallbackStage) Name() string { return "asr-fallback" }

// Run iterates the batch one URL at a time. Per-URL download or
// transcription failures are logged and skipped; only an unreadable URL
// list aborts the job.
func (f *FallbackStage) Run(ctx context.Context, ws *workspace.Workspace, _ []string) (int, error) {
	urls, err := ws.ReadURLList()
	if err != nil {
		return 0, services.Wrap(services.ErrWorkspace, "fallback", "read url list", ws.URLListPath(), err)
	}

	logger := logging.WithContext(ctx, f.logger)
	logger.Info("running fallback transcription",
		logging.Int("url_count", len(urls)),
		logging.String("model", f.transcriber.Model()),
	)

	produced := 0
	for _, url := range urls {
		if err := ctx.Err(); err != nil {
			return produced, err
		}
		if f.ensureTranscript(ctx, logger, ws, url) {
			produced++
		}
	}
	logger.Info("fallback transcription finished", logging.Int("produced", produced))
	return produced, nil
}

// ensureTranscript processes one URL and reports whether a new transcript
// file was written.
func (f *FallbackStage) ensureTranscript(ctx context.Context, logger *slog.Logger, ws *workspace.Workspace, url string) bool {
	slug := urlSlug(url)
	urlLogger := logger.With(logging.String("slug", slug))

	txtPath := filepath.Join(ws.OutputDir(), slug+".txt")
	if _, err := os.Stat(txtPath); err == nil {
		urlLogger.Debug("transcript already exists")
		return false
	}

	audioPath := filepath.Join(ws.ScratchDir(), slug+".m4a")
	// Scratch audio is removed on every exit path, including transcription
	// failure, so the scratch area stays empty at rest.
	defer func() {
		if err := os.Remove(audioPath); err != nil && !os.IsNotExist(err) {
			urlLogger.Warn("remove scratch audio", logging.Error(err))
		}
	}()

	if _, err := os.Stat(audioPath); err != nil {
		if err := f.downloader.DownloadAudio(ctx, url, audioPath); err != nil {
			urlLogger.Warn("audio download failed", logging.Error(err))
			return false
		}
	}

	transcription, err := f.transcriber.Transcribe(ctx, audioPath, ws.ScratchDir())
	// The model's JSON sidecar is scratch output too.
	defer func() {
		jsonPath := filepath.Join(ws.ScratchDir(), slug+".json")
		if err := os.Remove(jsonPath); err != nil && !os.IsNotExist(err) {
			urlLogger.Warn("remove scratch transcript", logging.Error(err))
		}
	}()
	if err != nil {
		urlLogger.Warn("transcription failed", logging.Error(err))
		return false
	}

	if err := whisper.WriteTranscript(txtPath, url, transcription); err != nil {
		urlLogger.Warn("write transcript failed", logging.Error(err))
		return false
	}
	urlLogger.Info("transcript created")
	return true
}

// urlSlug returns the URL's trailing path segment, which names the output
// transcript file.
func urlSlug(url string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(url), "/")
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	if trimmed == "" {
		return "transcript"
	}
	return trimmed
}
