package filler

import (
	"errors"
	"fmt"

	"github.com/kweiss/applyflow/internal/domain"
)

// AppError is a classified application error. It carries the terminal status
// the failure maps to, so the orchestrator and the manual intervention
// protocol can act on it without string matching.
type AppError struct {
	Message string
	Status  domain.JobStatus
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// NewAppError creates a classified error with a terminal status hint.
func NewAppError(message string, status domain.JobStatus) *AppError {
	return &AppError{Message: message, Status: status}
}

// WrapAppError wraps an underlying error with a classification.
func WrapAppError(message string, status domain.JobStatus, err error) *AppError {
	return &AppError{Message: message, Status: status, Err: err}
}

// ClassifiedStatus extracts the terminal status hint from err. Unclassified
// errors map to application_failed_unexpected.
func ClassifiedStatus(err error) domain.JobStatus {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return domain.StatusFailedUnexpected
}

// ParseError marks a malformed or schema-invalid model response. It is
// distinct from timeouts so callers can apply different retry policies.
type ParseError struct {
	CacheKey string
	Chunk    int
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid analysis response for %q (chunk %d): %v", e.CacheKey, e.Chunk, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
