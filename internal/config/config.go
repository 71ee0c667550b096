// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Jobs       JobsConfig       `mapstructure:"jobs"`
	Download   DownloadConfig   `mapstructure:"download"`
	Transcribe TranscribeConfig `mapstructure:"transcribe"`
	Twitter    TwitterConfig    `mapstructure:"twitter"`
	Scrape     ScrapeConfig     `mapstructure:"scrape"`
	Diag       DiagConfig       `mapstructure:"diag"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int `mapstructure:"port"`
	ReadTimeoutSeconds    int `mapstructure:"read_timeout_seconds"`
	ShutdownGraceSeconds  int `mapstructure:"shutdown_grace_seconds"`
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// JobsConfig governs job admission and working storage.
type JobsConfig struct {
	MaxConcurrent int    `mapstructure:"max_concurrent"`
	WorkDir       string `mapstructure:"work_dir"`
}

// DownloadConfig configures the media download stage.
type DownloadConfig struct {
	BinaryPath            string   `mapstructure:"binary_path"`
	CookieFile            string   `mapstructure:"cookie_file"`
	CookieBrowser         string   `mapstructure:"cookie_browser"`
	Strategies            []string `mapstructure:"strategies"`
	AttemptTimeoutSeconds int      `mapstructure:"attempt_timeout_seconds"`
	DeadlineSeconds       int      `mapstructure:"deadline_seconds"`
}

// TranscribeConfig configures the speech-to-text stage.
type TranscribeConfig struct {
	BinaryPath            string  `mapstructure:"binary_path"`
	Model                 string  `mapstructure:"model"`
	FFProbePath           string  `mapstructure:"ffprobe_path"`
	BaseTimeoutSeconds    int     `mapstructure:"base_timeout_seconds"`
	SecondsPerMediaSecond float64 `mapstructure:"seconds_per_media_second"`
}

// TwitterConfig configures the tweet resolution stage.
type TwitterConfig struct {
	BearerTokens   []string `mapstructure:"bearer_tokens"`
	APIBase        string   `mapstructure:"api_base"`
	TimeoutSeconds int      `mapstructure:"timeout_seconds"`
}

// ScrapeConfig configures the page extraction stage.
type ScrapeConfig struct {
	UserAgent             string   `mapstructure:"user_agent"`
	Strategies            []string `mapstructure:"strategies"`
	HeadlessEnabled       bool     `mapstructure:"headless_enabled"`
	AttemptTimeoutSeconds int      `mapstructure:"attempt_timeout_seconds"`
	DeadlineSeconds       int      `mapstructure:"deadline_seconds"`
}

// DiagConfig wires the optional diagnostics sinks. The log sink is always
// active; the others activate when their connection settings are present.
type DiagConfig struct {
	SinkTimeoutSeconds int          `mapstructure:"sink_timeout_seconds"`
	PostgresDSN        string       `mapstructure:"postgres_dsn"`
	PubSub             PubSubConfig `mapstructure:"pubsub"`
	Sentry             SentryConfig `mapstructure:"sentry"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// SentryConfig holds the error tracker connection settings.
type SentryConfig struct {
	DSN         string `mapstructure:"dsn"`
	Environment string `mapstructure:"environment"`
	Release     string `mapstructure:"release"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCRIBE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout_seconds", 30)
	v.SetDefault("server.shutdown_grace_seconds", 20)
	v.SetDefault("server.request_timeout_seconds", 1800)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("jobs.max_concurrent", 4)
	v.SetDefault("jobs.work_dir", "/tmp/mediascribe")
	v.SetDefault("download.binary_path", "yt-dlp")
	v.SetDefault("download.attempt_timeout_seconds", 300)
	v.SetDefault("download.deadline_seconds", 900)
	v.SetDefault("transcribe.binary_path", "whisper")
	v.SetDefault("transcribe.model", "base")
	v.SetDefault("transcribe.ffprobe_path", "ffprobe")
	v.SetDefault("transcribe.base_timeout_seconds", 120)
	v.SetDefault("transcribe.seconds_per_media_second", 1.5)
	v.SetDefault("twitter.api_base", "https://api.twitter.com")
	v.SetDefault("twitter.timeout_seconds", 15)
	v.SetDefault("scrape.user_agent", "mediascribe/0.1")
	v.SetDefault("scrape.headless_enabled", false)
	v.SetDefault("scrape.attempt_timeout_seconds", 60)
	v.SetDefault("scrape.deadline_seconds", 180)
	v.SetDefault("diag.sink_timeout_seconds", 5)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Jobs.MaxConcurrent <= 0 {
		return fmt.Errorf("jobs.max_concurrent must be > 0")
	}
	if c.Jobs.WorkDir == "" {
		return fmt.Errorf("jobs.work_dir must be set")
	}
	if c.Download.AttemptTimeoutSeconds <= 0 {
		return fmt.Errorf("download.attempt_timeout_seconds must be > 0")
	}
	if c.Download.DeadlineSeconds < c.Download.AttemptTimeoutSeconds {
		return fmt.Errorf("download.deadline_seconds must be >= download.attempt_timeout_seconds")
	}
	if c.Transcribe.BaseTimeoutSeconds <= 0 {
		return fmt.Errorf("transcribe.base_timeout_seconds must be > 0")
	}
	if c.Transcribe.SecondsPerMediaSecond <= 0 {
		return fmt.Errorf("transcribe.seconds_per_media_second must be > 0")
	}
	if c.Scrape.AttemptTimeoutSeconds <= 0 {
		return fmt.Errorf("scrape.attempt_timeout_seconds must be > 0")
	}
	if c.Scrape.DeadlineSeconds < c.Scrape.AttemptTimeoutSeconds {
		return fmt.Errorf("scrape.deadline_seconds must be >= scrape.attempt_timeout_seconds")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	return nil
}

// RequestTimeout is the outer per-request budget applied by the HTTP layer.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// ShutdownGrace bounds graceful shutdown.
func (c Config) ShutdownGrace() time.Duration {
	return time.Duration(c.Server.ShutdownGraceSeconds) * time.Second
}

// DownloadAttemptTimeout bounds a single download strategy attempt.
func (c DownloadConfig) DownloadAttemptTimeout() time.Duration {
	return time.Duration(c.AttemptTimeoutSeconds) * time.Second
}

// DownloadDeadline bounds the whole download stage.
func (c DownloadConfig) DownloadDeadline() time.Duration {
	return time.Duration(c.DeadlineSeconds) * time.Second
}

// BaseTimeout is the fixed component of the transcription budget.
func (c TranscribeConfig) BaseTimeout() time.Duration {
	return time.Duration(c.BaseTimeoutSeconds) * time.Second
}

// HTTPTimeout bounds one tweet lookup request.
func (c TwitterConfig) HTTPTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ScrapeAttemptTimeout bounds a single scrape strategy attempt.
func (c ScrapeConfig) ScrapeAttemptTimeout() time.Duration {
	return time.Duration(c.AttemptTimeoutSeconds) * time.Second
}

// ScrapeDeadline bounds the whole scrape stage.
func (c ScrapeConfig) ScrapeDeadline() time.Duration {
	return time.Duration(c.DeadlineSeconds) * time.Second
}

// SinkTimeout bounds each diagnostics sink delivery.
func (c DiagConfig) SinkTimeout() time.Duration {
	return time.Duration(c.SinkTimeoutSeconds) * time.Second
}
