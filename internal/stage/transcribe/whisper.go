// Package transcribe wraps the Whisper CLI as the speech-to-text stage.
package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mediascribe/mediascribe/internal/pipeline"
	"github.com/mediascribe/mediascribe/internal/stage"
)

// Config controls the Whisper adapter. The stage deadline is proportional
// to the probed media duration: BaseTimeout + duration × SecondsPerMediaSecond.
type Config struct {
	WhisperPath           string
	Model                 string
	FFProbePath           string
	BaseTimeout           time.Duration
	SecondsPerMediaSecond float64
}

// Transcriber invokes Whisper against a media file inside a job scope.
type Transcriber struct {
	cfg    Config
	run    stage.Runner
	logger *zap.Logger
}

// New constructs a Transcriber. runner may be nil to use os/exec.
func New(cfg Config, runner stage.Runner, logger *zap.Logger) *Transcriber {
	if cfg.WhisperPath == "" {
		cfg.WhisperPath = "whisper"
	}
	if cfg.FFProbePath == "" {
		cfg.FFProbePath = "ffprobe"
	}
	if cfg.Model == "" {
		cfg.Model = "base"
	}
	if cfg.BaseTimeout <= 0 {
		cfg.BaseTimeout = 60 * time.Second
	}
	if cfg.SecondsPerMediaSecond <= 0 {
		cfg.SecondsPerMediaSecond = 2
	}
	if runner == nil {
		runner = stage.ExecRunner{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transcriber{cfg: cfg, run: runner, logger: logger}
}

// Strategies returns the single-strategy chain for a media file. Whisper
// writes its JSON output next to the media, inside workDir.
func (t *Transcriber) Strategies(mediaPath, workDir string) []pipeline.Strategy[pipeline.TranscribeResult] {
	return []pipeline.Strategy[pipeline.TranscribeResult]{{
		Name: "whisper",
		Run: func(ctx context.Context) (pipeline.TranscribeResult, error) {
			return t.transcribe(ctx, mediaPath, workDir)
		},
	}}
}

func (t *Transcriber) transcribe(ctx context.Context, mediaPath, workDir string) (pipeline.TranscribeResult, error) {
	timeout := t.deadlineFor(ctx, mediaPath)
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{
		mediaPath,
		"--model", t.cfg.Model,
		"--output_format", "json",
		"--output_dir", workDir,
		"--verbose", "False",
	}
	_, stderr, err := t.run.Run(runCtx, t.cfg.WhisperPath, args...)
	if err != nil {
		if runCtx.Err() != nil {
			return pipeline.TranscribeResult{}, runCtx.Err()
		}
		return pipeline.TranscribeResult{}, pipeline.Fatal(fmt.Errorf("whisper: %s", summarize(stderr, err)))
	}

	return parseOutput(workDir, mediaPath)
}

// deadlineFor probes the media duration via ffprobe and scales the stage
// budget with it. A failed probe falls back to a bounded default rather
// than an unbounded run.
func (t *Transcriber) deadlineFor(ctx context.Context, mediaPath string) time.Duration {
	dur, err := t.probeDuration(ctx, mediaPath)
	if err != nil {
		t.logger.Warn("media duration probe failed, using fallback budget", zap.Error(err))
		return t.cfg.BaseTimeout * 10
	}
	return t.budget(dur)
}

func (t *Transcriber) budget(mediaDuration time.Duration) time.Duration {
	scaled := time.Duration(math.Ceil(mediaDuration.Seconds()*t.cfg.SecondsPerMediaSecond)) * time.Second
	return t.cfg.BaseTimeout + scaled
}

func (t *Transcriber) probeDuration(ctx context.Context, mediaPath string) (time.Duration, error) {
	stdout, stderr, err := t.run.Run(ctx, t.cfg.FFProbePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		mediaPath,
	)
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %s", summarize(stderr, err))
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(stdout), 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe: unparseable duration %q", strings.TrimSpace(stdout))
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

// whisperOutput mirrors the fields of Whisper's JSON result we consume.
type whisperOutput struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

func parseOutput(workDir, mediaPath string) (pipeline.TranscribeResult, error) {
	base := strings.TrimSuffix(filepath.Base(mediaPath), filepath.Ext(mediaPath))
	outPath := filepath.Join(workDir, base+".json")
	data, err := os.ReadFile(outPath)
	if err != nil {
		return pipeline.TranscribeResult{}, pipeline.Fatal(fmt.Errorf("read whisper output: %w", err))
	}
	var out whisperOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return pipeline.TranscribeResult{}, pipeline.Fatal(fmt.Errorf("decode whisper output: %w", err))
	}
	text := strings.TrimSpace(out.Text)
	if text == "" {
		return pipeline.TranscribeResult{}, pipeline.Fatal(fmt.Errorf("whisper produced no text for %s", filepath.Base(mediaPath)))
	}
	return pipeline.TranscribeResult{Text: text, Language: out.Language}, nil
}

func summarize(stderr string, err error) string {
	stderr = strings.TrimSpace(stderr)
	if stderr == "" {
		return err.Error()
	}
	if i := strings.IndexByte(stderr, '\n'); i >= 0 {
		stderr = stderr[:i]
	}
	return stderr
}
