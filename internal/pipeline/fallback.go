package pipeline

import (
	"context"
	"fmt"
	"time"
)

// Strategy is one named attempt method within a stage's fallback chain.
// The descriptor is stateless; Run performs the attempt.
type Strategy[T any] struct {
	Name string
	Run  func(ctx context.Context) (T, error)
}

// Attempt records the outcome of one strategy invocation.
type Attempt struct {
	Strategy string        `json:"strategy"`
	Class    FailureClass  `json:"class"`
	Err      string        `json:"error,omitempty"`
	Dur      time.Duration `json:"duration_ns"`
}

// StageResult is the successful outcome of a fallback chain. Attempts
// includes the failed strategies that preceded the winning one.
type StageResult[T any] struct {
	Value        T
	StrategyUsed string
	Attempts     []Attempt
}

// ChainConfig controls one RunChain execution. AttemptTimeout bounds each
// strategy; Deadline bounds the whole stage. Zero disables either bound.
type ChainConfig struct {
	Stage          string
	AttemptTimeout time.Duration
	Deadline       time.Duration
}

// RunChain tries strategies strictly in order until one succeeds or the
// chain is exhausted. Recoverable failures advance to the next strategy;
// a fatal failure stops the chain immediately; an elapsed stage deadline
// stops it with a timeout. The returned StageError always carries the
// full list of attempts in invocation order.
func RunChain[T any](ctx context.Context, cfg ChainConfig, strategies []Strategy[T]) (StageResult[T], error) {
	var zero StageResult[T]
	if len(strategies) == 0 {
		return zero, &StageError{
			Stage: cfg.Stage,
			Class: ClassFatal,
			Err:   fmt.Errorf("no strategies configured for stage %s", cfg.Stage),
		}
	}

	stageCtx := ctx
	cancel := func() {}
	if cfg.Deadline > 0 {
		stageCtx, cancel = context.WithTimeout(ctx, cfg.Deadline)
	}
	defer cancel()

	attempts := make([]Attempt, 0, len(strategies))
	var lastErr error

	for _, s := range strategies {
		if err := stageCtx.Err(); err != nil {
			if lastErr == nil {
				lastErr = err
			}
			return zero, &StageError{Stage: cfg.Stage, Class: ClassTimeout, Attempts: attempts, Err: lastErr}
		}

		attemptCtx := stageCtx
		attemptCancel := func() {}
		if cfg.AttemptTimeout > 0 {
			attemptCtx, attemptCancel = context.WithTimeout(stageCtx, cfg.AttemptTimeout)
		}
		start := time.Now()
		value, err := s.Run(attemptCtx)
		attemptCancel()

		if err == nil {
			return StageResult[T]{Value: value, StrategyUsed: s.Name, Attempts: attempts}, nil
		}
		lastErr = err

		class := Classify(err)
		if class == ClassTimeout && stageCtx.Err() == nil {
			// Only this strategy's budget elapsed; the stage still has time,
			// so the chain is allowed to continue.
			class = ClassRecoverable
		}
		attempts = append(attempts, Attempt{
			Strategy: s.Name,
			Class:    class,
			Err:      err.Error(),
			Dur:      time.Since(start),
		})
		if class == ClassFatal {
			return zero, &StageError{Stage: cfg.Stage, Class: ClassFatal, Attempts: attempts, Err: err}
		}
		if stageCtx.Err() != nil {
			return zero, &StageError{Stage: cfg.Stage, Class: ClassTimeout, Attempts: attempts, Err: lastErr}
		}
	}

	return zero, &StageError{Stage: cfg.Stage, Class: ClassExhausted, Attempts: attempts, Err: lastErr}
}
