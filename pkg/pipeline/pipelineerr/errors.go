// Package pipelineerr defines the decision pipeline's error taxonomy: a
// closed set of Kinds, each tagged with the stage that raised it, a cause
// chain, and how long the request had run before failing. Every stage
// surfaces failures as a *Error instead of a bare error, so the
// orchestrator can make a single decision (abort, retry once, or
// continue) by switching on Kind rather than string-matching messages.
package pipelineerr

import (
	"errors"
	"fmt"
	"time"
)

// Kind is the closed taxonomy of §7.
type Kind string

const (
	// LLMUnavailable: the LLM backend could not be reached or would not
	// respond after the allowed retry. Fatal for the request.
	LLMUnavailable Kind = "llm_unavailable"
	// LLMParseError: the LLM responded but its output didn't parse into
	// the expected schema. One retry at the same temperature is allowed.
	LLMParseError Kind = "llm_parse_error"
	// EmbeddingError: the embedding backend failed. Falls back to
	// keyword-only retrieval when configured, else fatal.
	EmbeddingError Kind = "embedding_error"
	// IndexError: the tool index could not be queried. Fatal.
	IndexError Kind = "index_error"
	// CatalogLookupMiss: an LLM-selected tool ID doesn't exist in the
	// catalog. Not fatal — the tool is dropped and a warning logged.
	CatalogLookupMiss Kind = "catalog_lookup_miss"
	// SchemaError: a record failed its own structural invariants. This
	// indicates a programming error upstream, not bad input.
	SchemaError Kind = "schema_error"
	// DependencyError: the step dependency graph has a cycle or an
	// unresolvable reference. One repair-and-retry pass is allowed.
	DependencyError Kind = "dependency_error"
	// ValidationError: a plan failed final validation after generation
	// and repair. Fatal.
	ValidationError Kind = "validation_error"
	// Cancelled: the request's context was cancelled or its deadline
	// elapsed. Fatal, never retried.
	Cancelled Kind = "cancelled"
)

// Retryable reports whether a single retry is ever appropriate for this
// kind, per §7 ("LLMParseError: one retry allowed", "DependencyError: one
// repair attempt").
func (k Kind) Retryable() bool {
	return k == LLMParseError || k == DependencyError
}

// Error is the structured error surfaced by every pipeline stage.
type Error struct {
	Kind      Kind
	Stage     string
	Message   string
	Cause     error
	ElapsedMS int64
}

// New builds an Error with no cause.
func New(kind Kind, stage, message string) *Error {
	return &Error{Kind: kind, Stage: stage, Message: message}
}

// Wrap builds an Error wrapping cause.
func Wrap(kind Kind, stage, message string, cause error) *Error {
	return &Error{Kind: kind, Stage: stage, Message: message, Cause: cause}
}

// WithElapsed sets ElapsedMS from d and returns the same error.
func (e *Error) WithElapsed(d time.Duration) *Error {
	e.ElapsedMS = d.Milliseconds()
	return e
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s/%s] %s: %s", e.Stage, e.Kind, e.Message, e.Cause.Error())
	}
	return fmt.Sprintf("[%s/%s] %s", e.Stage, e.Kind, e.Message)
}

// Unwrap exposes Cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a *Error with the same Kind, so callers
// can write errors.Is(err, pipelineerr.New(pipelineerr.LLMUnavailable, "", "")).
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Kind == other.Kind
}

// KindOf extracts the Kind from err, or returns "" if err is not a
// *Error.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}
