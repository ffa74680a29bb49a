package whisper

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/nickh0112/insta-captions/internal/services"
)

// Config holds the whisper invocation settings.
type Config struct {
	Binary   string
	Model    string
	Language string
}

// Segment is one time-coded span of transcribed speech.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcription is the parsed result of one whisper run.
type Transcription struct {
	Text     string    `json:"text"`
	Segments []Segment `json:"segments"`
}

// CommandRunner abstracts process execution for testability.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// Service invokes the whisper CLI.
type Service struct {
	cfg    Config
	runner CommandRunner
}

// NewService creates a whisper service with the given configuration.
func NewService(cfg Config) *Service {
	if cfg.Binary == "" {
		cfg.Binary = "whisper"
	}
	if cfg.Model == "" {
		cfg.Model = "medium"
	}
	return &Service{cfg: cfg}
}

// WithRunner replaces the command runner (used in tests).
func (s *Service) WithRunner(runner CommandRunner) {
	s.runner = runner
}

// Model returns the configured model name for logging.
func (s *Service) Model() string {
	return s.cfg.Model
}

// Transcribe runs whisper over one audio file and parses the JSON output it
// writes next to the audio basename in workDir.
func (s *Service) Transcribe(ctx context.Context, audioPath, workDir string) (Transcription, error) {
	var result Transcription
	if audioPath == "" {
		return result, services.Wrap(services.ErrValidation, "transcribe", "run", "audio path required", nil)
	}
	if workDir == "" {
		workDir = filepath.Dir(audioPath)
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return result, services.Wrap(services.ErrWorkspace, "transcribe", "ensure work dir", workDir, err)
	}

	args := s.buildArgs(audioPath, workDir)
	if err := s.run(ctx, s.cfg.Binary, args...); err != nil {
		return result, services.Wrap(services.ErrExternalTool, "transcribe", s.cfg.Binary, audioPath, err)
	}

	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	jsonPath := filepath.Join(workDir, base+".json")
	parsed, err := LoadTranscription(jsonPath)
	if err != nil {
		return result, services.Wrap(services.ErrExternalTool, "transcribe", "parse output", jsonPath, err)
	}
	return parsed, nil
}

// buildArgs constructs the whisper CLI arguments for JSON output at a single
// fixed language setting.
func (s *Service) buildArgs(audioPath, workDir string) []string {
	args := []string{
		audioPath,
		"--model", s.cfg.Model,
		"--output_format", "json",
		"--output_dir", workDir,
		"--fp16", "False",
	}
	if lang := strings.TrimSpace(s.cfg.Language); lang != "" {
		args = append(args, "--language", lang)
	}
	return args
}

func (s *Service) run(ctx context.Context, name string, args ...string) error {
	if s.runner != nil {
		return s.runner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// LoadTranscription parses a whisper JSON output file.
func LoadTranscription(jsonPath string) (Transcription, error) {
	var payload Transcription
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return payload, err
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return payload, fmt.Errorf("parse whisper json: %w", err)
	}
	payload.Text = strings.TrimSpace(payload.Text)
	return payload, nil
}
