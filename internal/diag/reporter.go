// Package diag captures structured failure and recovery context for
// operational visibility. Reporting never alters pipeline control flow.
package diag

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mediascribe/mediascribe/internal/pipeline"
)

// Record is the write-once diagnostic context sent to every sink.
type Record struct {
	JobID    string                `json:"job_id"`
	Kind     pipeline.JobKind      `json:"kind"`
	Stage    string                `json:"stage"`
	Class    pipeline.FailureClass `json:"class"`
	Attempts []pipeline.Attempt    `json:"attempts,omitempty"`
	Error    string                `json:"error"`
	At       time.Time             `json:"at"`
}

// Sink consumes diagnostic records. Implementations must honor ctx
// deadlines and may be invoked concurrently.
type Sink interface {
	Consume(ctx context.Context, rec Record) error
	Close(ctx context.Context) error
}

// Reporter fans records out to the configured sinks with a per-sink
// timeout. Sink errors are logged and swallowed; a broken sink must
// never fail a job.
type Reporter struct {
	sinks       []Sink
	sinkTimeout time.Duration
	logger      *zap.Logger
}

// NewReporter constructs a Reporter over the given sinks.
func NewReporter(logger *zap.Logger, sinkTimeout time.Duration, sinks ...Sink) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sinkTimeout <= 0 {
		sinkTimeout = 10 * time.Second
	}
	return &Reporter{sinks: sinks, sinkTimeout: sinkTimeout, logger: logger}
}

// Report delivers rec to every sink. Delivery runs on the caller's
// goroutine but is bounded by the per-sink timeout, independent of any
// job deadline that may already have expired.
func (r *Reporter) Report(rec Record) {
	if r == nil {
		return
	}
	if rec.At.IsZero() {
		rec.At = time.Now().UTC()
	}
	for _, sink := range r.sinks {
		if sink == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), r.sinkTimeout)
		if err := sink.Consume(ctx, rec); err != nil {
			r.logger.Warn("diagnostics sink consume failed",
				zap.String("job_id", rec.JobID),
				zap.String("stage", rec.Stage),
				zap.Error(err),
			)
		}
		cancel()
	}
}

// Close shuts down all sinks.
func (r *Reporter) Close(ctx context.Context) {
	if r == nil {
		return
	}
	for _, sink := range r.sinks {
		if sink == nil {
			continue
		}
		if err := sink.Close(ctx); err != nil {
			r.logger.Warn("diagnostics sink close failed", zap.Error(err))
		}
	}
}
