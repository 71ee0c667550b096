package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, 4, cfg.Jobs.MaxConcurrent)
	require.Equal(t, "yt-dlp", cfg.Download.BinaryPath)
	require.Equal(t, "whisper", cfg.Transcribe.BinaryPath)
	require.Equal(t, "base", cfg.Transcribe.Model)
	require.Equal(t, "https://api.twitter.com", cfg.Twitter.APIBase)
	require.False(t, cfg.Scrape.HeadlessEnabled)
	require.Equal(t, 5*time.Minute, cfg.Download.DownloadAttemptTimeout())
	require.Equal(t, 15*time.Minute, cfg.Download.DownloadDeadline())
	require.Equal(t, 2*time.Minute, cfg.Transcribe.BaseTimeout())
	require.Equal(t, 1.5, cfg.Transcribe.SecondsPerMediaSecond)
	require.Equal(t, 5*time.Second, cfg.Diag.SinkTimeout())
	require.Equal(t, 30*time.Minute, cfg.RequestTimeout())
}

func TestLoadFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	payload := `
server:
  port: 9090
jobs:
  max_concurrent: 8
  work_dir: /var/lib/mediascribe
twitter:
  bearer_tokens:
    - token-a
    - token-b
scrape:
  headless_enabled: true
diag:
  postgres_dsn: postgres://diag
  sentry:
    dsn: https://key@sentry.example/1
    environment: staging
`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, 8, cfg.Jobs.MaxConcurrent)
	require.Equal(t, "/var/lib/mediascribe", cfg.Jobs.WorkDir)
	require.Equal(t, []string{"token-a", "token-b"}, cfg.Twitter.BearerTokens)
	require.True(t, cfg.Scrape.HeadlessEnabled)
	require.Equal(t, "postgres://diag", cfg.Diag.PostgresDSN)
	require.Equal(t, "staging", cfg.Diag.Sentry.Environment)
}

func TestLoadMissingFileFails(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidateRejections(t *testing.T) {
	t.Parallel()

	base := func() Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	cfg := base()
	cfg.Server.Port = 0
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Jobs.MaxConcurrent = 0
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Jobs.WorkDir = ""
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Download.DeadlineSeconds = cfg.Download.AttemptTimeoutSeconds - 1
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Scrape.DeadlineSeconds = cfg.Scrape.AttemptTimeoutSeconds - 1
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Transcribe.SecondsPerMediaSecond = 0
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Auth.Enabled = true
	cfg.Auth.APIKey = ""
	require.Error(t, cfg.Validate())
}
