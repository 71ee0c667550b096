// Package orchestrator runs jobs end to end: admission, working storage,
// stage composition, and failure reporting.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/mediascribe/mediascribe/internal/diag"
	"github.com/mediascribe/mediascribe/internal/metrics"
	"github.com/mediascribe/mediascribe/internal/pipeline"
	"github.com/mediascribe/mediascribe/internal/registry"
	"github.com/mediascribe/mediascribe/internal/scope"
)

// Stage names used in registry entries, metrics, and diagnostics.
const (
	StageDownload   = "download"
	StageTranscribe = "transcribe"
	StageTweet      = "scrape_tweet"
	StagePage       = "scrape_page"
)

// Config carries the per-stage chain budgets and the admission bound.
type Config struct {
	MaxConcurrent          int64
	DownloadAttemptTimeout time.Duration
	DownloadDeadline       time.Duration
	ScrapeAttemptTimeout   time.Duration
	ScrapeDeadline         time.Duration
}

// Deps are the orchestrator's collaborators. Scopes, Registry, IDs, and
// the stage implementations for the kinds being served are required;
// Reporter, Clock, and Logger default to no-ops.
type Deps struct {
	Scopes     *scope.Manager
	Registry   *registry.Registry
	Reporter   *diag.Reporter
	IDs        pipeline.IDGenerator
	Clock      pipeline.Clock
	Logger     *zap.Logger
	Download   pipeline.DownloadStage
	Transcribe pipeline.TranscribeStage
	Tweet      pipeline.TweetStage
	Page       pipeline.PageStage
}

// Orchestrator executes jobs synchronously on the caller's goroutine,
// bounded by a weighted semaphore. There is no queue; callers that cannot
// be admitted before their context expires fail with a timeout.
type Orchestrator struct {
	cfg        Config
	scopes     *scope.Manager
	registry   *registry.Registry
	reporter   *diag.Reporter
	ids        pipeline.IDGenerator
	clock      pipeline.Clock
	logger     *zap.Logger
	sem        *semaphore.Weighted
	download   pipeline.DownloadStage
	transcribe pipeline.TranscribeStage
	tweet      pipeline.TweetStage
	page       pipeline.PageStage
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// New validates deps and constructs an Orchestrator.
func New(cfg Config, deps Deps) (*Orchestrator, error) {
	if deps.Scopes == nil {
		return nil, fmt.Errorf("scope manager is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if deps.IDs == nil {
		return nil, fmt.Errorf("id generator is required")
	}
	if cfg.MaxConcurrent <= 0 {
		return nil, fmt.Errorf("max concurrent jobs must be > 0")
	}
	if deps.Clock == nil {
		deps.Clock = systemClock{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Orchestrator{
		cfg:        cfg,
		scopes:     deps.Scopes,
		registry:   deps.Registry,
		reporter:   deps.Reporter,
		ids:        deps.IDs,
		clock:      deps.Clock,
		logger:     deps.Logger,
		sem:        semaphore.NewWeighted(cfg.MaxConcurrent),
		download:   deps.Download,
		transcribe: deps.Transcribe,
		tweet:      deps.Tweet,
		page:       deps.Page,
	}, nil
}

// Transcribe downloads the media behind url and transcribes it.
func (o *Orchestrator) Transcribe(ctx context.Context, url string) (pipeline.TranscribeResult, error) {
	var zero pipeline.TranscribeResult
	if o.download == nil || o.transcribe == nil {
		return zero, fmt.Errorf("transcription stages are not configured")
	}
	job, release, err := o.admit(ctx, url, pipeline.KindTranscribe)
	if err != nil {
		return zero, err
	}
	defer release()

	sc, err := o.scopes.Acquire(job.ID)
	if err != nil {
		o.finish(job, pipeline.JobStatusFailed)
		return zero, fmt.Errorf("acquire working storage: %w", err)
	}
	defer o.releaseScope(job, sc)

	o.registry.SetStage(job.ID, StageDownload)
	mediaPath, err := runStage(ctx, o, job, pipeline.ChainConfig{
		Stage:          StageDownload,
		AttemptTimeout: o.cfg.DownloadAttemptTimeout,
		Deadline:       o.cfg.DownloadDeadline,
	}, o.download.Strategies(url, sc.Dir()))
	if err != nil {
		return zero, err
	}

	o.registry.SetStage(job.ID, StageTranscribe)
	result, err := runStage(ctx, o, job, pipeline.ChainConfig{
		Stage: StageTranscribe,
	}, o.transcribe.Strategies(mediaPath, sc.Dir()))
	if err != nil {
		return zero, err
	}

	o.finish(job, pipeline.JobStatusSucceeded)
	return result, nil
}

// ScrapeTweet resolves url to the video asset attached to the tweet.
func (o *Orchestrator) ScrapeTweet(ctx context.Context, url string) (pipeline.TweetResult, error) {
	var zero pipeline.TweetResult
	if o.tweet == nil {
		return zero, fmt.Errorf("tweet stage is not configured")
	}
	job, release, err := o.admit(ctx, url, pipeline.KindScrapeTweet)
	if err != nil {
		return zero, err
	}
	defer release()

	o.registry.SetStage(job.ID, StageTweet)
	result, err := runStage(ctx, o, job, pipeline.ChainConfig{
		Stage: StageTweet,
	}, o.tweet.Strategies(url))
	if err != nil {
		return zero, err
	}

	o.finish(job, pipeline.JobStatusSucceeded)
	return result, nil
}

// ScrapePage extracts cleaned text from the page behind url.
func (o *Orchestrator) ScrapePage(ctx context.Context, url string) (pipeline.PageResult, error) {
	var zero pipeline.PageResult
	if o.page == nil {
		return zero, fmt.Errorf("page stage is not configured")
	}
	job, release, err := o.admit(ctx, url, pipeline.KindScrapePage)
	if err != nil {
		return zero, err
	}
	defer release()

	o.registry.SetStage(job.ID, StagePage)
	result, err := runStage(ctx, o, job, pipeline.ChainConfig{
		Stage:          StagePage,
		AttemptTimeout: o.cfg.ScrapeAttemptTimeout,
		Deadline:       o.cfg.ScrapeDeadline,
	}, o.page.Strategies(url))
	if err != nil {
		return zero, err
	}

	o.finish(job, pipeline.JobStatusSucceeded)
	return result, nil
}

// admit blocks on the concurrency semaphore, registers the job, and
// returns a release func undoing both.
func (o *Orchestrator) admit(ctx context.Context, url string, kind pipeline.JobKind) (pipeline.Job, func(), error) {
	if err := o.sem.Acquire(ctx, 1); err != nil {
		return pipeline.Job{}, nil, &pipeline.ClassifiedError{
			Class: pipeline.ClassTimeout,
			Err:   fmt.Errorf("waiting for job slot: %w", err),
		}
	}
	id, err := o.ids.NewID()
	if err != nil {
		o.sem.Release(1)
		return pipeline.Job{}, nil, fmt.Errorf("generate job id: %w", err)
	}
	job := pipeline.Job{
		ID:        id,
		URL:       url,
		Kind:      kind,
		Status:    pipeline.JobStatusRunning,
		Submitted: o.clock.Now(),
	}
	o.registry.Add(job)
	metrics.IncJobsInFlight()
	o.logger.Info("job started",
		zap.String("job_id", job.ID),
		zap.String("kind", string(job.Kind)),
		zap.String("url", job.URL),
	)
	release := func() {
		o.registry.Remove(job.ID)
		metrics.DecJobsInFlight()
		o.sem.Release(1)
	}
	return job, release, nil
}

// runStage executes one fallback chain and handles the shared
// success/failure bookkeeping.
func runStage[T any](ctx context.Context, o *Orchestrator, job pipeline.Job, cfg pipeline.ChainConfig, strategies []pipeline.Strategy[T]) (T, error) {
	start := time.Now()
	res, err := pipeline.RunChain(ctx, cfg, strategies)
	metrics.ObserveStage(cfg.Stage, time.Since(start))
	if err != nil {
		o.reportFailure(job, cfg.Stage, err)
		o.finish(job, pipeline.JobStatusFailed)
		var zero T
		return zero, err
	}
	metrics.ObserveStrategyUsed(cfg.Stage, res.StrategyUsed)
	if len(res.Attempts) > 0 {
		o.logger.Info("stage recovered via fallback",
			zap.String("job_id", job.ID),
			zap.String("stage", cfg.Stage),
			zap.String("strategy", res.StrategyUsed),
			zap.Int("failed_attempts", len(res.Attempts)),
		)
		o.reportRecovery(job, cfg.Stage, res.StrategyUsed, res.Attempts)
	}
	return res.Value, nil
}

func (o *Orchestrator) finish(job pipeline.Job, status pipeline.JobStatus) {
	metrics.ObserveJob(string(job.Kind), string(status))
	o.logger.Info("job finished",
		zap.String("job_id", job.ID),
		zap.String("kind", string(job.Kind)),
		zap.String("status", string(status)),
	)
}

func (o *Orchestrator) reportFailure(job pipeline.Job, stage string, err error) {
	rec := diag.Record{
		JobID: job.ID,
		Kind:  job.Kind,
		Stage: stage,
		Class: pipeline.Classify(err),
		Error: err.Error(),
		At:    o.clock.Now(),
	}
	var se *pipeline.StageError
	if errors.As(err, &se) {
		rec.Stage = se.Stage
		rec.Class = se.Class
		rec.Attempts = se.Attempts
	}
	o.reporter.Report(rec)
}

// reportRecovery records a stage that succeeded only after failed
// attempts. The winning strategy is appended to the trail so sinks see
// the whole chain in invocation order.
func (o *Orchestrator) reportRecovery(job pipeline.Job, stage, strategy string, failed []pipeline.Attempt) {
	trail := make([]pipeline.Attempt, 0, len(failed)+1)
	trail = append(trail, failed...)
	trail = append(trail, pipeline.Attempt{Strategy: strategy, Class: pipeline.ClassRecovered})
	o.reporter.Report(diag.Record{
		JobID:    job.ID,
		Kind:     job.Kind,
		Stage:    stage,
		Class:    pipeline.ClassRecovered,
		Attempts: trail,
		At:       o.clock.Now(),
	})
}

// releaseScope removes the job's working directory. A failed removal is a
// resource leak and gets reported, never surfaced to the caller.
func (o *Orchestrator) releaseScope(job pipeline.Job, sc *scope.Scope) {
	if err := sc.Release(); err != nil {
		o.logger.Error("working storage leak",
			zap.String("job_id", job.ID),
			zap.String("dir", sc.Dir()),
			zap.Error(err),
		)
		o.reporter.Report(diag.Record{
			JobID: job.ID,
			Kind:  job.Kind,
			Stage: "cleanup",
			Class: pipeline.ClassLeak,
			Error: err.Error(),
			At:    o.clock.Now(),
		})
	}
}
