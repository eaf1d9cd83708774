package domain

import "fmt"

// FatalJobError means the current job cannot proceed: the pipeline aborts,
// persists a failure record naming the last stage attempted, and the
// dispatcher calls tracker.Failed before re-raising to the queue substrate.
type FatalJobError struct {
	Stage string
	Err   error
}

func (e *FatalJobError) Error() string {
	return fmt.Sprintf("fatal at stage %s: %v", e.Stage, e.Err)
}

func (e *FatalJobError) Unwrap() error { return e.Err }

// NewFatalJobError wraps err as a FatalJobError for the named stage.
func NewFatalJobError(stage string, err error) *FatalJobError {
	return &FatalJobError{Stage: stage, Err: err}
}

// StageSkippableError marks a stage failure that should NOT abort the job:
// the pipeline records the failure, appends Stage to the score record's
// DefaultedStages, and proceeds with a neutral/zero contribution for that
// stage instead of raising a FatalJobError.
type StageSkippableError struct {
	Stage string
	Err   error
}

func (e *StageSkippableError) Error() string {
	return fmt.Sprintf("skippable failure at stage %s: %v", e.Stage, e.Err)
}

func (e *StageSkippableError) Unwrap() error { return e.Err }

// NewStageSkippableError wraps err as a StageSkippableError for the named
// stage.
func NewStageSkippableError(stage string, err error) *StageSkippableError {
	return &StageSkippableError{Stage: stage, Err: err}
}

// UpstreamTransientError marks a failure the caller should retry (the queue
// substrate re-enqueues the job) rather than treat as fatal or skippable —
// e.g. a backend 503 or a network timeout reaching the LLM Gateway.
type UpstreamTransientError struct {
	Op  string
	Err error
}

func (e *UpstreamTransientError) Error() string {
	return fmt.Sprintf("upstream transient error during %s: %v", e.Op, e.Err)
}

func (e *UpstreamTransientError) Unwrap() error { return e.Err }

// ParseError means the model returned no function call, or its arguments
// JSON did not parse even after one repair attempt.
type ParseError struct {
	Kind   ParseKind
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error (%s): %s", e.Kind, e.Reason)
}

// ValidationError means a parsed object failed a schema-level check (e.g.
// a required field was missing). It is non-fatal: the caller logs it as a
// warning and continues with best-effort data.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: field %q: %s", e.Field, e.Reason)
}

// CircuitOpenError short-circuits external calls while the breaker for
// Model is open, surfacing as a FatalJobError at the caller's current
// stage.
type CircuitOpenError struct {
	Model string
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit open for model %q", e.Model)
}

// APIError is raised when the backend HTTP API responds with
// {success:false}. It propagates as FatalJobError unless the call site is
// a skippable stage.
type APIError struct {
	Endpoint string
	Status   int
	Message  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: endpoint=%s status=%d: %s", e.Endpoint, e.Status, e.Message)
}
