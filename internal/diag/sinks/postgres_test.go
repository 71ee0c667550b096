package sinks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/mediascribe/mediascribe/internal/diag"
	"github.com/mediascribe/mediascribe/internal/pipeline"
)

func TestPostgresSinkInsertsRecord(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	sink, err := NewPostgresSinkWithPool(mock)
	require.NoError(t, err)

	rec := diag.Record{
		JobID: "job-1",
		Kind:  pipeline.KindTranscribe,
		Stage: "download",
		Class: pipeline.ClassExhausted,
		Attempts: []pipeline.Attempt{
			{Strategy: "cookie-file", Class: pipeline.ClassRecoverable, Err: "denied"},
			{Strategy: "anonymous", Class: pipeline.ClassRecoverable, Err: "denied"},
		},
		Error: "stage download failed",
		At:    time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	mock.ExpectExec("INSERT INTO diagnostics").
		WithArgs(
			rec.JobID,
			string(rec.Kind),
			rec.Stage,
			string(rec.Class),
			pgxmock.AnyArg(),
			rec.Error,
			rec.At,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, sink.Consume(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSinkPropagatesExecError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	sink, err := NewPostgresSinkWithPool(mock)
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO diagnostics").
		WithArgs(
			pgxmock.AnyArg(),
			pgxmock.AnyArg(),
			pgxmock.AnyArg(),
			pgxmock.AnyArg(),
			pgxmock.AnyArg(),
			pgxmock.AnyArg(),
			pgxmock.AnyArg(),
		).
		WillReturnError(errors.New("connection refused"))

	err = sink.Consume(context.Background(), diag.Record{JobID: "job-1"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "connection refused")
}

func TestPostgresSinkRequiresPool(t *testing.T) {
	t.Parallel()

	_, err := NewPostgresSinkWithPool(nil)
	require.Error(t, err)
}
