package indexer

import (
	"errors"
	"fmt"
	"time"
)

// Error codes for categorizing indexer errors.
const (
	ErrCodeTransport  = "TRANSPORT_ERROR"
	ErrCodeParse      = "PARSE_ERROR"
	ErrCodeValidation = "VALIDATION_ERROR"
	ErrCodeCapability = "CAPABILITY_ERROR"
	ErrCodeDisabled   = "PROVIDER_DISABLED"
	ErrCodeAuth       = "AUTH_ERROR"
	ErrCodeConfig     = "CONFIG_ERROR"
	ErrCodeTimeout    = "TIMEOUT_ERROR"
)

// Error represents a categorized error from an indexer operation.
type Error struct {
	Code        string // Error category code
	Message     string // Human-readable message
	IndexerID   int64  // ID of the affected indexer (0 if not applicable)
	IndexerName string // Name of the affected indexer
	Retryable   bool   // Whether the operation can be retried
	Cause       error  // Underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.IndexerName != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.IndexerName, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements error matching for errors.Is().
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Sentinel instances for errors.Is comparisons.
var (
	ErrTransport  = &Error{Code: ErrCodeTransport, Message: "request failed"}
	ErrParse      = &Error{Code: ErrCodeParse, Message: "unexpected response"}
	ErrValidation = &Error{Code: ErrCodeValidation, Message: "invalid payload"}
	ErrCapability = &Error{Code: ErrCodeCapability, Message: "capabilities insufficient"}
	ErrDisabled   = &Error{Code: ErrCodeDisabled, Message: "provider disabled"}
	ErrAuth       = &Error{Code: ErrCodeAuth, Message: "authentication failed"}
	ErrConfig     = &Error{Code: ErrCodeConfig, Message: "configuration error"}
	ErrTimeout    = &Error{Code: ErrCodeTimeout, Message: "deadline exceeded"}
)

// NewTransportError creates a transport-level failure (network, timeout,
// non-2xx status). Retried only via the next request tier.
func NewTransportError(def *Definition, cause error) *Error {
	return &Error{
		Code:        ErrCodeTransport,
		Message:     "request failed",
		IndexerID:   def.ID,
		IndexerName: def.Name,
		Retryable:   true,
		Cause:       cause,
	}
}

// NewParseError creates a response-shape failure. Includes enough of the
// offending response in the message to diagnose without re-fetching.
func NewParseError(def *Definition, message string, cause error) *Error {
	return &Error{
		Code:        ErrCodeParse,
		Message:     message,
		IndexerID:   def.ID,
		IndexerName: def.Name,
		Retryable:   false,
		Cause:       cause,
	}
}

// NewValidationError creates a malformed-payload failure, fatal for the
// download attempt.
func NewValidationError(def *Definition, message string, cause error) *Error {
	return &Error{
		Code:        ErrCodeValidation,
		Message:     message,
		IndexerID:   def.ID,
		IndexerName: def.Name,
		Retryable:   false,
		Cause:       cause,
	}
}

// NewCapabilityError is raised at configuration-test time when a provider
// cannot satisfy a minimally useful search surface.
func NewCapabilityError(def *Definition, message string) *Error {
	return &Error{
		Code:        ErrCodeCapability,
		Message:     message,
		IndexerID:   def.ID,
		IndexerName: def.Name,
		Retryable:   false,
	}
}

// NewDisabledError short-circuits work against a provider in backoff.
// Callers can skip it silently in aggregate views.
func NewDisabledError(def *Definition, until time.Time) *Error {
	return &Error{
		Code:        ErrCodeDisabled,
		Message:     fmt.Sprintf("disabled until %s", until.UTC().Format(time.RFC3339)),
		IndexerID:   def.ID,
		IndexerName: def.Name,
		Retryable:   false,
	}
}

// NewAuthError creates an authentication failure. Not retryable since auth
// errors usually need credential fixes.
func NewAuthError(def *Definition, cause error) *Error {
	return &Error{
		Code:        ErrCodeAuth,
		Message:     "authentication failed",
		IndexerID:   def.ID,
		IndexerName: def.Name,
		Retryable:   false,
		Cause:       cause,
	}
}

// NewConfigError creates a missing/invalid settings failure.
func NewConfigError(def *Definition, message string) *Error {
	return &Error{
		Code:        ErrCodeConfig,
		Message:     message,
		IndexerID:   def.ID,
		IndexerName: def.Name,
		Retryable:   false,
	}
}

// NewTimeoutError classifies a deadline expiry against one provider. Kept
// distinct from transport failures so aggregate views can report it as a
// soft outcome.
func NewTimeoutError(def *Definition, cause error) *Error {
	return &Error{
		Code:        ErrCodeTimeout,
		Message:     "deadline exceeded",
		IndexerID:   def.ID,
		IndexerName: def.Name,
		Retryable:   true,
		Cause:       cause,
	}
}

// IsRetryable returns whether the error is retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// ErrorCode extracts the error code from an error, or "" for untyped errors.
func ErrorCode(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
