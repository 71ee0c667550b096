package sinks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mediascribe/mediascribe/internal/diag"
)

// execCloser is the subset of pgxpool.Pool the sink needs; pgxmock
// satisfies it for tests.
type execCloser interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Close()
}

// PostgresSink appends diagnostic records to a Postgres table. Expected
// schema:
//
//	CREATE TABLE diagnostics (
//	    id BIGSERIAL PRIMARY KEY,
//	    job_id TEXT NOT NULL,
//	    kind TEXT NOT NULL,
//	    stage TEXT NOT NULL,
//	    class TEXT NOT NULL,
//	    attempts JSONB,
//	    error_text TEXT,
//	    created_at TIMESTAMPTZ NOT NULL
//	);
type PostgresSink struct {
	pool execCloser
}

// NewPostgresSink opens a connection pool for the given DSN.
func NewPostgresSink(ctx context.Context, dsn string) (*PostgresSink, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create diagnostics pool: %w", err)
	}
	return &PostgresSink{pool: pool}, nil
}

// NewPostgresSinkWithPool constructs a sink from an existing pool
// (primarily for testing).
func NewPostgresSinkWithPool(pool execCloser) (*PostgresSink, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &PostgresSink{pool: pool}, nil
}

// Consume inserts one diagnostics row.
func (s *PostgresSink) Consume(ctx context.Context, rec diag.Record) error {
	attempts, err := json.Marshal(rec.Attempts)
	if err != nil {
		return fmt.Errorf("marshal attempts: %w", err)
	}
	query := `
		INSERT INTO diagnostics (job_id, kind, stage, class, attempts, error_text, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := s.pool.Exec(ctx, query,
		rec.JobID,
		string(rec.Kind),
		rec.Stage,
		string(rec.Class),
		attempts,
		rec.Error,
		rec.At,
	); err != nil {
		return fmt.Errorf("insert diagnostics row: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *PostgresSink) Close(context.Context) error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}
