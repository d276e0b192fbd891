package pipeline

import (
	"errors"
	"fmt"
)

var errEmptyText = errors.New("empty text input")

// ParseError means the content could not be fetched or extracted. The
// input is the problem: retrying the same URL or text will not help, but
// a corrected input may.
type ParseError struct {
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Input, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// AnalysisError means the mandatory credibility assessment failed (model
// error, quota, malformed response). Transient by nature; the async layer
// may retry it later.
type AnalysisError struct {
	Err error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis failed: %v", e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }

// PersistenceError means a completed analysis could not be written.
// Never raised to the caller: losing a cache fill is acceptable, losing
// the caller's answer is not. Logged by the orchestrator.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Retryable reports whether the async layer may retry the failure.
// ParseError is client-correctable and never retried; everything else is
// treated as transient.
func Retryable(err error) bool {
	var pe *ParseError
	return !errors.As(err, &pe)
}
