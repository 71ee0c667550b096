// Package sinks provides the diagnostics sink implementations.
package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/mediascribe/mediascribe/internal/diag"
	"github.com/mediascribe/mediascribe/internal/pipeline"
)

// LogSink emits structured logs for diagnostic records. Always wired; it
// is the baseline sink when no external diagnostics target is configured.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs the record with the full attempted-strategy trail.
// Recovered stages log at info; everything else is a warning.
func (s *LogSink) Consume(_ context.Context, rec diag.Record) error {
	strategies := make([]string, 0, len(rec.Attempts))
	for _, a := range rec.Attempts {
		strategies = append(strategies, a.Strategy+"="+string(a.Class))
	}
	msg, level := "job failure", zap.WarnLevel
	if rec.Class == pipeline.ClassRecovered {
		msg, level = "job recovered", zap.InfoLevel
	}
	s.logger.Log(level, msg,
		zap.String("job_id", rec.JobID),
		zap.String("kind", string(rec.Kind)),
		zap.String("stage", rec.Stage),
		zap.String("class", string(rec.Class)),
		zap.Strings("attempts", strategies),
		zap.String("error", rec.Error),
	)
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
