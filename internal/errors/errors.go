// Package errors defines the structured error taxonomy used across the
// tablekit engine. Every failure that crosses a component boundary is a
// *GridError carrying a type, a stable code, and a recoverability flag so
// that the adapter retry policy and the edit controller can classify
// failures without string matching.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	// ErrorTypeTransient covers timeouts, connection resets and 5xx
	// responses. Retried with exponential backoff.
	ErrorTypeTransient ErrorType = "transient"
	// ErrorTypeRateLimited covers explicit rate-limit signals (429, local
	// window exhaustion). Queued rather than immediately retried.
	ErrorTypeRateLimited ErrorType = "rate_limited"
	// ErrorTypeValidation covers local input validation. Never retried,
	// never touches the network.
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeConflict means remote state changed since it was read.
	// Requires explicit user reconciliation.
	ErrorTypeConflict ErrorType = "conflict"
	// ErrorTypeUnsupported marks operations a source declares it cannot
	// perform, e.g. delete on a read-only feed.
	ErrorTypeUnsupported ErrorType = "unsupported"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeInternal    ErrorType = "internal"
)

// GridError is a structured error type with context.
type GridError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	Entity      string
	Operation   string
	Recoverable bool
	Stale       bool // set when a stale cache value was served alongside the error
}

// Error implements the error interface.
func (e *GridError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Entity != "" {
		parts = append(parts, "entity:"+e.Entity)
	}

	if e.Operation != "" {
		parts = append(parts, "op:"+e.Operation)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *GridError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *GridError) Is(target error) bool {
	var t *GridError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *GridError) WithContext(key string, value interface{}) *GridError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithEntity adds entity context.
func (e *GridError) WithEntity(entity string) *GridError {
	e.Entity = entity

	return e
}

// WithOperation adds the failing operation name.
func (e *GridError) WithOperation(op string) *GridError {
	e.Operation = op

	return e
}

// Error creation functions

// NewTransientError creates a retryable network/timeout error.
func NewTransientError(code, message string, cause error) *GridError {
	return &GridError{
		Type:        ErrorTypeTransient,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewRateLimitError creates a rate-limit error.
func NewRateLimitError(code, message string) *GridError {
	return &GridError{
		Type:        ErrorTypeRateLimited,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *GridError {
	return &GridError{
		Type:        ErrorTypeValidation,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewConflictError creates a remote-state conflict error.
func NewConflictError(code, message string) *GridError {
	return &GridError{
		Type:        ErrorTypeConflict,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewUnsupportedError creates an unsupported-operation error.
func NewUnsupportedError(code, message string) *GridError {
	return &GridError{
		Type:        ErrorTypeUnsupported,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewNotFoundError creates a missing-record error.
func NewNotFoundError(code, message string) *GridError {
	return &GridError{
		Type:        ErrorTypeNotFound,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *GridError {
	return &GridError{
		Type:        ErrorTypeInternal,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// Classification helpers used by the retry policy and the edit controller.

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var ge *GridError
	if errors.As(err, &ge) {
		return ge.Recoverable
	}

	return false
}

// IsTransient checks if an error should be retried with backoff.
func IsTransient(err error) bool {
	var ge *GridError
	if errors.As(err, &ge) {
		return ge.Type == ErrorTypeTransient
	}

	return false
}

// IsRateLimited checks if an error is a rate-limit signal.
func IsRateLimited(err error) bool {
	var ge *GridError
	if errors.As(err, &ge) {
		return ge.Type == ErrorTypeRateLimited
	}

	return false
}

// IsRetryable reports whether the adapter retry loop may attempt the
// operation again. Validation, conflict, unsupported and not-found errors
// propagate immediately.
func IsRetryable(err error) bool {
	return IsTransient(err) || IsRateLimited(err)
}

// IsValidation checks if an error is a local validation failure.
func IsValidation(err error) bool {
	var ge *GridError
	if errors.As(err, &ge) {
		return ge.Type == ErrorTypeValidation
	}

	return false
}

// IsConflict checks if an error is a remote-state conflict.
func IsConflict(err error) bool {
	var ge *GridError
	if errors.As(err, &ge) {
		return ge.Type == ErrorTypeConflict
	}

	return false
}

// IsNotFound checks if an error is a missing-record error.
func IsNotFound(err error) bool {
	var ge *GridError
	if errors.As(err, &ge) {
		return ge.Type == ErrorTypeNotFound
	}

	return false
}

// Common error codes.
const (
	ErrCodeNetwork         = "ERR_NETWORK"
	ErrCodeTimeout         = "ERR_TIMEOUT"
	ErrCodeRateLimited     = "ERR_RATE_LIMITED"
	ErrCodeQueueWait       = "ERR_QUEUE_WAIT_EXCEEDED"
	ErrCodeRetryExhausted  = "ERR_RETRY_EXHAUSTED"
	ErrCodeValidation      = "ERR_VALIDATION_FAILED"
	ErrCodeConflict        = "ERR_CONFLICT"
	ErrCodeUnsupported     = "ERR_UNSUPPORTED_OPERATION"
	ErrCodeRecordNotFound  = "ERR_RECORD_NOT_FOUND"
	ErrCodeMalformedRecord = "ERR_MALFORMED_RECORD"
	ErrCodeConfigInvalid   = "ERR_CONFIG_INVALID"
	ErrCodeInternal        = "ERR_INTERNAL"
)

// Helper constructors for common failures.

// ErrRecordNotFound creates a record not found error.
func ErrRecordNotFound(entity, id string) *GridError {
	return NewNotFoundError(
		ErrCodeRecordNotFound,
		fmt.Sprintf("record not found: %s/%s", entity, id),
	).WithEntity(entity)
}

// ErrUnsupportedOperation creates an unsupported-operation error for a source.
func ErrUnsupportedOperation(entity, op string) *GridError {
	return NewUnsupportedError(
		ErrCodeUnsupported,
		fmt.Sprintf("operation %q not supported by source for %s", op, entity),
	).WithEntity(entity).WithOperation(op)
}

// ErrQueueWaitExceeded creates the "try later" error surfaced when the rate
// limiter queue wait cap is exceeded.
func ErrQueueWaitExceeded(entity string, waited string) *GridError {
	return NewRateLimitError(
		ErrCodeQueueWait,
		"rate limit queue wait exceeded after "+waited+", try later",
	).WithEntity(entity)
}
