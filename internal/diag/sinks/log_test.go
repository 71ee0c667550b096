package sinks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mediascribe/mediascribe/internal/diag"
	"github.com/mediascribe/mediascribe/internal/pipeline"
)

func TestLogSinkEmitsAttemptTrail(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.WarnLevel)
	sink := NewLogSink(zap.New(core))

	rec := diag.Record{
		JobID: "job-1",
		Kind:  pipeline.KindScrapeTweet,
		Stage: "scrape_tweet",
		Class: pipeline.ClassExhausted,
		Attempts: []pipeline.Attempt{
			{Strategy: "bearer-token-1", Class: pipeline.ClassRecoverable},
			{Strategy: "bearer-token-2", Class: pipeline.ClassRecoverable},
		},
		Error: "all tokens rate limited",
	}
	require.NoError(t, sink.Consume(context.Background(), rec))

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "job failure", entries[0].Message)

	fields := entries[0].ContextMap()
	require.Equal(t, "job-1", fields["job_id"])
	require.Equal(t, "exhausted", fields["class"])
	require.Equal(t,
		[]any{"bearer-token-1=recoverable", "bearer-token-2=recoverable"},
		fields["attempts"],
	)
}

func TestLogSinkRecoveredLogsAtInfo(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	sink := NewLogSink(zap.New(core))

	rec := diag.Record{
		JobID: "job-2",
		Kind:  pipeline.KindTranscribe,
		Stage: "download",
		Class: pipeline.ClassRecovered,
		Attempts: []pipeline.Attempt{
			{Strategy: "cookie-file", Class: pipeline.ClassRecoverable},
			{Strategy: "anonymous", Class: pipeline.ClassRecovered},
		},
	}
	require.NoError(t, sink.Consume(context.Background(), rec))

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "job recovered", entries[0].Message)
	require.Equal(t, zap.InfoLevel, entries[0].Level)
	require.Equal(t,
		[]any{"cookie-file=recoverable", "anonymous=recovered"},
		entries[0].ContextMap()["attempts"],
	)
}

func TestLogSinkNilLogger(t *testing.T) {
	t.Parallel()

	sink := NewLogSink(nil)
	require.NoError(t, sink.Consume(context.Background(), diag.Record{JobID: "x"}))
	require.NoError(t, sink.Close(context.Background()))
}
