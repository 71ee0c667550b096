package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/mediascribe/mediascribe/internal/api"
	"github.com/mediascribe/mediascribe/internal/config"
	"github.com/mediascribe/mediascribe/internal/diag"
	"github.com/mediascribe/mediascribe/internal/diag/sinks"
	"github.com/mediascribe/mediascribe/internal/id/uuid"
	"github.com/mediascribe/mediascribe/internal/logging"
	"github.com/mediascribe/mediascribe/internal/metrics"
	"github.com/mediascribe/mediascribe/internal/orchestrator"
	"github.com/mediascribe/mediascribe/internal/registry"
	"github.com/mediascribe/mediascribe/internal/scope"
	"github.com/mediascribe/mediascribe/internal/stage"
	"github.com/mediascribe/mediascribe/internal/stage/download"
	"github.com/mediascribe/mediascribe/internal/stage/scrape"
	"github.com/mediascribe/mediascribe/internal/stage/transcribe"
	"github.com/mediascribe/mediascribe/internal/stage/tweet"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	envPath := flag.String("env", "", "Path to optional .env file")
	flag.Parse()

	if *envPath != "" {
		if err := godotenv.Load(*envPath); err != nil {
			fmt.Fprintf(os.Stderr, "load env file failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		_ = godotenv.Load()
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()
	zap.ReplaceGlobals(logger)

	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scopes, err := scope.NewManager(cfg.Jobs.WorkDir)
	if err != nil {
		logger.Fatal("working storage init failed", zap.Error(err))
	}

	reporter, err := buildReporter(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("diagnostics init failed", zap.Error(err))
	}

	runner := stage.ExecRunner{}
	downloader, err := download.New(download.Config{
		BinaryPath:    cfg.Download.BinaryPath,
		CookieFile:    cfg.Download.CookieFile,
		CookieBrowser: cfg.Download.CookieBrowser,
		Strategies:    cfg.Download.Strategies,
	}, runner, logger.Named("download"))
	if err != nil {
		logger.Fatal("download stage init failed", zap.Error(err))
	}
	transcriber := transcribe.New(transcribe.Config{
		WhisperPath:           cfg.Transcribe.BinaryPath,
		Model:                 cfg.Transcribe.Model,
		FFProbePath:           cfg.Transcribe.FFProbePath,
		BaseTimeout:           cfg.Transcribe.BaseTimeout(),
		SecondsPerMediaSecond: cfg.Transcribe.SecondsPerMediaSecond,
	}, runner, logger.Named("transcribe"))
	resolver := tweet.New(tweet.Config{
		BearerTokens: cfg.Twitter.BearerTokens,
		APIBase:      cfg.Twitter.APIBase,
		HTTPTimeout:  cfg.Twitter.HTTPTimeout(),
	}, nil, logger.Named("tweet"))
	scraper, err := scrape.New(scrape.Config{
		UserAgent:       cfg.Scrape.UserAgent,
		Strategies:      cfg.Scrape.Strategies,
		HeadlessEnabled: cfg.Scrape.HeadlessEnabled,
	}, logger.Named("scrape"))
	if err != nil {
		logger.Fatal("scrape stage init failed", zap.Error(err))
	}
	defer scraper.Close()

	jobs := registry.New()
	orch, err := orchestrator.New(orchestrator.Config{
		MaxConcurrent:          int64(cfg.Jobs.MaxConcurrent),
		DownloadAttemptTimeout: cfg.Download.DownloadAttemptTimeout(),
		DownloadDeadline:       cfg.Download.DownloadDeadline(),
		ScrapeAttemptTimeout:   cfg.Scrape.ScrapeAttemptTimeout(),
		ScrapeDeadline:         cfg.Scrape.ScrapeDeadline(),
	}, orchestrator.Deps{
		Scopes:     scopes,
		Registry:   jobs,
		Reporter:   reporter,
		IDs:        uuid.NewGenerator(),
		Logger:     logger.Named("orchestrator"),
		Download:   downloader,
		Transcribe: transcriber,
		Tweet:      resolver,
		Page:       scraper,
	})
	if err != nil {
		logger.Fatal("orchestrator init failed", zap.Error(err))
	}

	apiServer := api.NewServer(orch, jobs, logger.Named("api"), cfg)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	reporter.Close(shutdownCtx)
	logger.Info("shutdown complete")
}

// buildReporter assembles the diagnostics sinks: the log sink always, the
// others when their connection settings are configured.
func buildReporter(ctx context.Context, cfg config.Config, logger *zap.Logger) (*diag.Reporter, error) {
	sinkList := []diag.Sink{sinks.NewLogSink(logger.Named("diag"))}

	promSink, err := sinks.NewPrometheusSink(nil)
	if err != nil {
		return nil, fmt.Errorf("prometheus sink: %w", err)
	}
	sinkList = append(sinkList, promSink)

	if cfg.Diag.PostgresDSN != "" {
		pgSink, err := sinks.NewPostgresSink(ctx, cfg.Diag.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("postgres sink: %w", err)
		}
		sinkList = append(sinkList, pgSink)
	}
	if cfg.Diag.PubSub.ProjectID != "" && cfg.Diag.PubSub.TopicName != "" {
		psSink, err := sinks.NewPubSubSink(ctx, cfg.Diag.PubSub.ProjectID, cfg.Diag.PubSub.TopicName)
		if err != nil {
			return nil, fmt.Errorf("pubsub sink: %w", err)
		}
		sinkList = append(sinkList, psSink)
	}
	if cfg.Diag.Sentry.DSN != "" {
		sentrySink, err := sinks.NewSentrySink(sinks.SentryConfig{
			DSN:         cfg.Diag.Sentry.DSN,
			Environment: cfg.Diag.Sentry.Environment,
			Release:     cfg.Diag.Sentry.Release,
		})
		if err != nil {
			return nil, fmt.Errorf("sentry sink: %w", err)
		}
		sinkList = append(sinkList, sentrySink)
	}

	return diag.NewReporter(logger.Named("diag"), cfg.Diag.SinkTimeout(), sinkList...), nil
}
