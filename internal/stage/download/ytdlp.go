// Package download acquires media through the yt-dlp tool, with a
// fallback chain over authentication methods.
package download

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/mediascribe/mediascribe/internal/pipeline"
	"github.com/mediascribe/mediascribe/internal/stage"
)

// Strategy names accepted in the configured chain order.
const (
	StrategyCookieFile    = "cookie-file"
	StrategyCookieBrowser = "browser-cookies"
	StrategyAnonymous     = "anonymous"
)

// AudioFileName is the fixed name the stage writes inside the job scope.
const AudioFileName = "audio.mp3"

// Config controls the yt-dlp adapter.
type Config struct {
	BinaryPath    string
	CookieFile    string
	CookieBrowser string
	// Strategies is the chain order; unknown names are rejected at
	// construction, names whose credential is unconfigured are skipped.
	Strategies []string
}

// Downloader builds fallback strategies around yt-dlp invocations.
type Downloader struct {
	cfg    Config
	run    stage.Runner
	logger *zap.Logger
}

// New constructs a Downloader. runner may be nil to use os/exec.
func New(cfg Config, runner stage.Runner, logger *zap.Logger) (*Downloader, error) {
	if cfg.BinaryPath == "" {
		cfg.BinaryPath = "yt-dlp"
	}
	if runner == nil {
		runner = stage.ExecRunner{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, name := range cfg.Strategies {
		switch name {
		case StrategyCookieFile, StrategyCookieBrowser, StrategyAnonymous:
		default:
			return nil, fmt.Errorf("unknown download strategy %q", name)
		}
	}
	return &Downloader{cfg: cfg, run: runner, logger: logger}, nil
}

// Strategies returns the configured chain for one URL. The chain value is
// the extracted audio file path inside destDir.
func (d *Downloader) Strategies(url, destDir string) []pipeline.Strategy[string] {
	names := d.cfg.Strategies
	if len(names) == 0 {
		names = []string{StrategyCookieFile, StrategyCookieBrowser, StrategyAnonymous}
	}
	out := make([]pipeline.Strategy[string], 0, len(names))
	for _, name := range names {
		authArgs, ok := d.authArgs(name)
		if !ok {
			d.logger.Debug("skipping unconfigured download strategy", zap.String("strategy", name))
			continue
		}
		out = append(out, pipeline.Strategy[string]{
			Name: name,
			Run: func(ctx context.Context) (string, error) {
				return d.fetch(ctx, url, destDir, authArgs)
			},
		})
	}
	return out
}

func (d *Downloader) authArgs(name string) ([]string, bool) {
	switch name {
	case StrategyCookieFile:
		if d.cfg.CookieFile == "" {
			return nil, false
		}
		return []string{"--cookies", d.cfg.CookieFile}, true
	case StrategyCookieBrowser:
		if d.cfg.CookieBrowser == "" {
			return nil, false
		}
		return []string{"--cookies-from-browser", d.cfg.CookieBrowser}, true
	default:
		return nil, true
	}
}

func (d *Downloader) fetch(ctx context.Context, url, destDir string, authArgs []string) (string, error) {
	args := []string{
		"-f", "bestaudio/best",
		"-x", "--audio-format", "mp3",
		"-o", filepath.Join(destDir, "audio.%(ext)s"),
		"--no-playlist",
		"--no-warnings",
	}
	args = append(args, authArgs...)
	args = append(args, url)

	_, stderr, err := d.run.Run(ctx, d.cfg.BinaryPath, args...)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", classify(err, stderr)
	}

	audio := filepath.Join(destDir, AudioFileName)
	if _, statErr := os.Stat(audio); statErr != nil {
		return "", pipeline.Recoverable(fmt.Errorf("yt-dlp reported success but %s is missing", AudioFileName))
	}
	return audio, nil
}

// classify maps yt-dlp failures to the chain taxonomy: conditions no
// other credential can fix are fatal, everything else lets the chain
// fall through to the next auth method.
func classify(err error, stderr string) error {
	msg := strings.ToLower(stderr)
	fatal := []string{
		"private video",
		"video unavailable",
		"this video is not available",
		"http error 404",
		"does not exist",
		"unsupported url",
	}
	for _, marker := range fatal {
		if strings.Contains(msg, marker) {
			return pipeline.Fatal(fmt.Errorf("yt-dlp: %s", firstLine(stderr)))
		}
	}
	if stderr != "" {
		return pipeline.Recoverable(fmt.Errorf("yt-dlp: %s", firstLine(stderr)))
	}
	return pipeline.Recoverable(fmt.Errorf("yt-dlp: %w", err))
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
