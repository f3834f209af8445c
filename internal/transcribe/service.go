package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"podigest/internal/logging"
	"podigest/internal/services"
)

// Whisper defaults.
const (
	DefaultBinary = "whisper"
	DefaultModel  = "base.en"
	OutputFormat  = "json"
)

// ErrEmptyTranscript reports that the tool produced no text.
var ErrEmptyTranscript = errors.New("empty transcript")

// Config captures runtime settings for whisper.
type Config struct {
	Binary   string
	Model    string
	Language string
	Timeout  time.Duration
}

// CommandRunner executes an external command.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// Service transcribes audio files.
type Service struct {
	cfg           Config
	commandRunner CommandRunner
	logger        *slog.Logger
}

// NewService creates a whisper service with the given configuration.
func NewService(cfg Config, logger *slog.Logger) *Service {
	if strings.TrimSpace(cfg.Binary) == "" {
		cfg.Binary = DefaultBinary
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultModel
	}
	return &Service{cfg: cfg, logger: logging.NewComponentLogger(logger, "transcribe")}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner CommandRunner) {
	s.commandRunner = runner
}

// Transcribe runs whisper on audioPath and returns the transcript text.
func (s *Service) Transcribe(ctx context.Context, audioPath string) (string, error) {
	if strings.TrimSpace(audioPath) == "" {
		return "", services.Wrap(services.ErrValidation, "transcribing", "whisper", "audio path required", nil)
	}
	if _, err := os.Stat(audioPath); err != nil {
		return "", services.Wrap(services.ErrNotFound, "transcribing", "whisper", "audio file unavailable", err)
	}

	outputDir, err := os.MkdirTemp(filepath.Dir(audioPath), ".whisper-")
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "transcribing", "whisper", "create output dir", err)
	}
	defer os.RemoveAll(outputDir)

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	logger := logging.WithContext(ctx, s.logger)
	started := time.Now()
	logger.Info("transcription started", logging.String("audio", filepath.Base(audioPath)), logging.String("model", s.cfg.Model))

	if err := s.run(ctx, s.cfg.Binary, s.buildArgs(audioPath, outputDir)...); err != nil {
		marker := services.ErrExternalTool
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			marker = services.ErrTimeout
		}
		return "", services.Wrap(marker, "transcribing", "whisper", "run", err)
	}

	baseName := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	text, err := loadTranscriptText(filepath.Join(outputDir, baseName+".json"))
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "transcribing", "whisper", "read output", err)
	}
	if text == "" {
		return "", services.Wrap(services.ErrExternalTool, "transcribing", "whisper", "", ErrEmptyTranscript)
	}

	logger.Info("transcription finished",
		logging.Int("characters", len([]rune(text))),
		logging.Duration("elapsed", time.Since(started).Round(time.Second)),
	)
	return text, nil
}

func (s *Service) run(ctx context.Context, name string, args ...string) error {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, lastLines(string(output), 5))
	}
	return nil
}

func (s *Service) buildArgs(source, outputDir string) []string {
	args := []string{
		source,
		"--model", s.cfg.Model,
		"--output_dir", outputDir,
		"--output_format", OutputFormat,
		"--verbose", "False",
		"--fp16", "False",
	}
	if lang := strings.TrimSpace(s.cfg.Language); lang != "" {
		args = append(args, "--language", lang)
	}
	return args
}

// Segment represents a transcribed segment from whisper JSON output.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type whisperPayload struct {
	Text     string    `json:"text"`
	Segments []Segment `json:"segments"`
}

func loadTranscriptText(jsonPath string) (string, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return "", err
	}
	var payload whisperPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", fmt.Errorf("parse whisper json: %w", err)
	}
	if text := strings.TrimSpace(payload.Text); text != "" {
		return text, nil
	}
	var parts []string
	for _, seg := range payload.Segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}

func lastLines(output string, n int) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}
