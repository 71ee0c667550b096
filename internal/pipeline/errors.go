package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// FailureClass partitions stage failures by how the fallback chain and the
// API layer should react to them.
type FailureClass string

// Failure classes. ClassExhausted and ClassLeak only appear on terminal
// results, never on individual strategy attempts. ClassRecovered marks a
// stage that succeeded after earlier recoverable attempts; it appears on
// diagnostic records only and never fails a job.
const (
	ClassRecoverable FailureClass = "recoverable"
	ClassFatal       FailureClass = "fatal"
	ClassTimeout     FailureClass = "timeout"
	ClassExhausted   FailureClass = "exhausted"
	ClassLeak        FailureClass = "resource_leak"
	ClassRecovered   FailureClass = "recovered"
)

// ClassifiedError tags an underlying error with a failure class so the
// chain executor can decide whether to continue.
type ClassifiedError struct {
	Class FailureClass
	Err   error
}

func (e *ClassifiedError) Error() string {
	return fmt.Sprintf("%s: %v", e.Class, e.Err)
}

func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

// Recoverable wraps err as a strategy-local failure; the chain moves on to
// the next strategy.
func Recoverable(err error) error {
	if err == nil {
		return nil
	}
	return &ClassifiedError{Class: ClassRecoverable, Err: err}
}

// Fatal wraps err as a chain-terminating failure; switching strategy
// cannot help (missing content, private resource, malformed input).
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &ClassifiedError{Class: ClassFatal, Err: err}
}

// Classify maps an attempt error to its failure class. Unclassified errors
// default to recoverable so the chain keeps trying.
func Classify(err error) FailureClass {
	var se *StageError
	if errors.As(err, &se) {
		return se.Class
	}
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ClassTimeout
	}
	return ClassRecoverable
}

// StageError is the terminal failure of one pipeline stage. It carries the
// full attempt trail so operators see the whole chain, not just the last
// strategy's error.
type StageError struct {
	Stage    string
	Class    FailureClass
	Attempts []Attempt
	Err      error
}

func (e *StageError) Error() string {
	names := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		names = append(names, a.Strategy)
	}
	if len(names) == 0 {
		return fmt.Sprintf("stage %s failed (%s): %v", e.Stage, e.Class, e.Err)
	}
	return fmt.Sprintf("stage %s failed (%s) after [%s]: %v", e.Stage, e.Class, strings.Join(names, ", "), e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
