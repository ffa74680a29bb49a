package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nickh0112/insta-captions/internal/pipeline"
	"github.com/nickh0112/insta-captions/internal/services/whisper"
	"github.com/nickh0112/insta-captions/internal/services/ytdlp"
	"github.com/nickh0112/insta-captions/internal/workspace"
)

// downloadRunner simulates yt-dlp audio downloads by creating the requested
// destination file. URLs listed in failFor return a tool error instead.
type downloadRunner struct {
	failFor map[string]bool
	calls   int
}

func (r *downloadRunner) Run(ctx context.Context, name string, args ...string) (string, int, error) {
	r.calls++
	// args: -f ba -o <dest> <url>
	dest, url := args[3], args[4]
	if r.failFor[url] {
		return "ERROR: login required", 1, errors.New("exit status 1")
	}
	return "", 0, os.WriteFile(dest, []byte("audio"), 0o644)
}

func newFallbackStage(t *testing.T, runner *downloadRunner, whisperText string, whisperErr error) *pipeline.FallbackStage {
	t.Helper()

	downloader := ytdlp.NewService(ytdlp.Config{Binary: "yt-dlp"})
	downloader.WithRunner(runner)

	transcriber := whisper.NewService(whisper.Config{Model: "medium"})
	transcriber.WithRunner(func(ctx context.Context, name string, args ...string) error {
		if whisperErr != nil {
			return whisperErr
		}
		audioPath := args[0]
		workDir := ""
		for i, arg := range args {
			if arg == "--output_dir" && i+1 < len(args) {
				workDir = args[i+1]
			}
		}
		base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
		payload := `{"text": "` + whisperText + `", "segments": [{"start": 0, "end": 3, "text": "` + whisperText + `"}]}`
		return os.WriteFile(filepath.Join(workDir, base+".json"), []byte(payload), 0o644)
	})

	return pipeline.NewFallbackStage(downloader, transcriber, nil)
}

func newFallbackWorkspace(t *testing.T, urls []string) *workspace.Workspace {
	t.Helper()
	manager := workspace.NewManager(t.TempDir())
	ws, err := manager.Create("job-1")
	if err != nil {
		t.Fatalf("create workspace: %v", err)
	}
	t.Cleanup(func() { _ = ws.Destroy() })
	if err := ws.WriteURLList(urls); err != nil {
		t.Fatalf("write url list: %v", err)
	}
	return ws
}

func TestFallbackTranscribesMissingURLs(t *testing.T) {
	urls := []string{"https://instagram.com/reel/abc123"}
	ws := newFallbackWorkspace(t, urls)
	stage := newFallbackStage(t, &downloadRunner{}, "hello from the reel", nil)

	produced, err := stage.Run(context.Background(), ws, urls)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if produced != 1 {
		t.Fatalf("expected 1 transcript, got %d", produced)
	}

	data, err := os.ReadFile(filepath.Join(ws.OutputDir(), "abc123.txt"))
	if err != nil {
		t.Fatalf("read transcript: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "URL: https://instagram.com/reel/abc123") {
		t.Fatalf("missing URL line:\n%s", content)
	}
	if !strings.Contains(content, "Transcribed: hello from the reel") {
		t.Fatalf("missing transcribed line:\n%s", content)
	}
	if !strings.Contains(content, "=== SEGMENTED TRANSCRIPT ===") {
		t.Fatalf("missing segment header:\n%s", content)
	}
}

func TestFallbackSkipsExistingTranscripts(t *testing.T) {
	urls := []string{"https://instagram.com/reel/abc123"}
	ws := newFallbackWorkspace(t, urls)
	existing := filepath.Join(ws.OutputDir(), "abc123.txt")
	if err := os.WriteFile(existing, []byte("already here"), 0o644); err != nil {
		t.Fatalf("write existing transcript: %v", err)
	}

	runner := &downloadRunner{}
	stage := newFallbackStage(t, runner, "new text", nil)

	produced, err := stage.Run(context.Background(), ws, urls)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if produced != 0 {
		t.Fatalf("expected no new transcripts, got %d", produced)
	}
	if runner.calls != 0 {
		t.Fatalf("expected no downloads for covered URLs, got %d", runner.calls)
	}
	data, _ := os.ReadFile(existing)
	if string(data) != "already here" {
		t.Fatal("existing transcript was overwritten")
	}
}

func TestFallbackScratchAudioAlwaysRemoved(t *testing.T) {
	urls := []string{"https://instagram.com/reel/abc123"}

	t.Run("success", func(t *testing.T) {
		ws := newFallbackWorkspace(t, urls)
		stage := newFallbackStage(t, &downloadRunner{}, "ok", nil)
		if _, err := stage.Run(context.Background(), ws, urls); err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		assertScratchEmpty(t, ws)
	})

	t.Run("transcription failure", func(t *testing.T) {
		ws := newFallbackWorkspace(t, urls)
		stage := newFallbackStage(t, &downloadRunner{}, "", errors.New("model crashed"))
		produced, err := stage.Run(context.Background(), ws, urls)
		if err != nil {
			t.Fatalf("expected per-URL failure to be soft, got %v", err)
		}
		if produced != 0 {
			t.Fatalf("expected 0 transcripts, got %d", produced)
		}
		assertScratchEmpty(t, ws)
	})
}

func TestFallbackPerURLFailuresAreSoft(t *testing.T) {
	urls := []string{
		"https://instagram.com/reel/broken",
		"https://instagram.com/reel/works",
	}
	ws := newFallbackWorkspace(t, urls)
	runner := &downloadRunner{failFor: map[string]bool{"https://instagram.com/reel/broken": true}}
	stage := newFallbackStage(t, runner, "still got one", nil)

	produced, err := stage.Run(context.Background(), ws, urls)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if produced != 1 {
		t.Fatalf("expected 1 transcript despite the failed URL, got %d", produced)
	}
	if _, err := os.Stat(filepath.Join(ws.OutputDir(), "works.txt")); err != nil {
		t.Fatalf("expected transcript for the working URL: %v", err)
	}
}

func TestFallbackStopsOnCancel(t *testing.T) {
	urls := []string{"https://instagram.com/reel/abc123"}
	ws := newFallbackWorkspace(t, urls)
	stage := newFallbackStage(t, &downloadRunner{}, "ok", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := stage.Run(ctx, ws, urls)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func assertScratchEmpty(t *testing.T, ws *workspace.Workspace) {
	t.Helper()
	entries, err := os.ReadDir(ws.ScratchDir())
	if err != nil {
		t.Fatalf("read scratch dir: %v", err)
	}
	if len(entries) != 0 {
		names := make([]string, 0, len(entries))
		for _, entry := range entries {
			names = append(names, entry.Name())
		}
		t.Fatalf("expected empty scratch dir, found %v", names)
	}
}
