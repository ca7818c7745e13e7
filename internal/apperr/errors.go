// Package apperr defines the pipeline's error taxonomy. Every failure
// path maps to exactly one of these so callers can route on errors.As.
package apperr

import (
	"fmt"
)

// ValidationError rejects malformed intake input before any persistent
// state is created.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Msg
}

// NotFoundError reports a missing batch, book, or taxonomy entity. It
// aborts the current unit of work.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// ParseError means the generative service returned content that does
// not match the expected shape. It carries the prompt and raw response
// so the audit record can be written even though the book update rolls
// back.
type ParseError struct {
	Msg    string
	Prompt string
	Raw    string
}

func (e *ParseError) Error() string {
	return "parse: " + e.Msg
}

// ServiceError is a transport or auth failure calling an external
// service. Book-level bookkeeping treats it like a ParseError, but it
// carries no usable raw response.
type ServiceError struct {
	Op  string
	Err error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("service %s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// CriticalBatchError is a failure outside the per-book loop. The whole
// batch is marked failed and the error propagates to the job runner so
// alerting can fire.
type CriticalBatchError struct {
	BatchID string
	Err     error
}

func (e *CriticalBatchError) Error() string {
	return fmt.Sprintf("batch %s: %v", e.BatchID, e.Err)
}

func (e *CriticalBatchError) Unwrap() error {
	return e.Err
}
