package sinks

import (
	"context"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/mediascribe/mediascribe/internal/diag"
	"github.com/mediascribe/mediascribe/internal/pipeline"
)

// SentrySink forwards diagnostic records to Sentry as error events with
// the attempted-strategy trail attached.
type SentrySink struct {
	hub *sentry.Hub
}

// SentryConfig carries the Sentry connection settings.
type SentryConfig struct {
	DSN         string
	Environment string
	Release     string
}

// NewSentrySink builds an isolated Sentry hub; the global hub is left
// untouched.
func NewSentrySink(cfg SentryConfig) (*SentrySink, error) {
	return newSentrySink(cfg, nil)
}

func newSentrySink(cfg SentryConfig, transport sentry.Transport) (*SentrySink, error) {
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		Release:     cfg.Release,
		Transport:   transport,
	})
	if err != nil {
		return nil, fmt.Errorf("create sentry client: %w", err)
	}
	return &SentrySink{hub: sentry.NewHub(client, sentry.NewScope())}, nil
}

// Consume captures one record as a Sentry event.
func (s *SentrySink) Consume(_ context.Context, rec diag.Record) error {
	event := sentry.NewEvent()
	if rec.Class == pipeline.ClassRecovered {
		event.Level = sentry.LevelWarning
		event.Message = fmt.Sprintf("%s stage recovered after failed attempts", rec.Stage)
	} else {
		event.Level = sentry.LevelError
		event.Message = fmt.Sprintf("%s stage failed: %s", rec.Stage, rec.Error)
	}
	event.Timestamp = rec.At
	event.Tags = map[string]string{
		"job_kind": string(rec.Kind),
		"stage":    rec.Stage,
		"class":    string(rec.Class),
	}
	attempts := make([]map[string]any, 0, len(rec.Attempts))
	for _, a := range rec.Attempts {
		attempts = append(attempts, map[string]any{
			"strategy": a.Strategy,
			"class":    string(a.Class),
			"error":    a.Err,
		})
	}
	event.Extra = map[string]any{
		"job_id":   rec.JobID,
		"attempts": attempts,
	}
	if id := s.hub.CaptureEvent(event); id == nil {
		return fmt.Errorf("sentry event was not accepted")
	}
	return nil
}

// Close flushes buffered events within the ctx deadline. An expired or
// near-expired deadline still gets a short flush window; a non-positive
// timeout would fail the flush unconditionally.
func (s *SentrySink) Close(ctx context.Context) error {
	timeout := 2 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if timeout < 50*time.Millisecond {
		timeout = 50 * time.Millisecond
	}
	if !s.hub.Client().Flush(timeout) {
		return fmt.Errorf("sentry flush timed out")
	}
	return nil
}
