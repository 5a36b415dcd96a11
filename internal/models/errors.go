package models

import (
	"errors"
	"fmt"
)

// ErrorCode classifies pipeline failures. Component-local failures (one task,
// one competitor) are caught and isolated; pipeline-level failures are
// surfaced as the top-level result's error.
type ErrorCode string

const (
	ErrValidation            ErrorCode = "VALIDATION_ERROR"        // Bad input, not retried, surfaced immediately
	ErrNotFound              ErrorCode = "NOT_FOUND"               // Missing entity, not retried
	ErrProjectNotFound       ErrorCode = "PROJECT_NOT_FOUND"       // Missing project, not retried
	ErrNoProductAssigned     ErrorCode = "NO_PRODUCT_ASSIGNED"     // Project has no tracked product
	ErrNoCompetitorsAssigned ErrorCode = "NO_COMPETITORS_ASSIGNED" // Project has no competitors configured
	ErrNoCompetitorData      ErrorCode = "NO_COMPETITOR_DATA"      // No competitor has a usable snapshot
	ErrCollection            ErrorCode = "COLLECTION_ERROR"        // External fetch failed, isolated per task
	ErrInference             ErrorCode = "INFERENCE_ERROR"         // AI call failed or returned unusable content
	ErrPersistence           ErrorCode = "PERSISTENCE_ERROR"       // Store write failed, result still returned
	ErrConcurrencyRejected   ErrorCode = "CONCURRENCY_REJECTED"    // Schedule fire skipped, informational
)

// PipelineError is a typed error carrying the error code, the operation name
// and the correlation id of the run it belongs to.
type PipelineError struct {
	Code          ErrorCode `json:"code"`
	Operation     string    `json:"operation"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Message       string    `json:"message"`
	Cause         error     `json:"-"`
}

func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// NewPipelineError creates a typed pipeline error
func NewPipelineError(code ErrorCode, operation, correlationID, message string) *PipelineError {
	return &PipelineError{
		Code:          code,
		Operation:     operation,
		CorrelationID: correlationID,
		Message:       message,
	}
}

// WrapPipelineError creates a typed pipeline error wrapping a cause
func WrapPipelineError(code ErrorCode, operation, correlationID string, cause error) *PipelineError {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return &PipelineError{
		Code:          code,
		Operation:     operation,
		CorrelationID: correlationID,
		Message:       msg,
		Cause:         cause,
	}
}

// CodeOf extracts the error code from an error chain, or empty when the
// error carries no code.
func CodeOf(err error) ErrorCode {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// IsCode reports whether the error chain carries the given code
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
