// internal/common/errors/errors.go
// Package errors provides standardized error handling for the notification pipeline.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Transport channel errors
	ErrCodeConnectionFailed   ErrorCode = "CONNECTION_FAILED"
	ErrCodeConnectionDropped  ErrorCode = "CONNECTION_DROPPED"
	ErrCodeAuthRejected       ErrorCode = "AUTH_REJECTED"
	ErrCodeReconnectExhausted ErrorCode = "RECONNECT_EXHAUSTED"

	// Normalization errors
	ErrCodePayloadInvalid ErrorCode = "PAYLOAD_INVALID"

	// Persistence sync errors
	ErrCodeFetchFailed    ErrorCode = "NOTIFICATION_FETCH_FAILED"
	ErrCodeMarkReadFailed ErrorCode = "NOTIFICATION_MARK_READ_FAILED"
	ErrCodeDeleteFailed   ErrorCode = "NOTIFICATION_DELETE_FAILED"

	// Routing errors
	ErrCodeRouteUnresolved ErrorCode = "ROUTE_UNRESOLVED"

	// Presentation sink errors
	ErrCodeSinkDeliveryFailed ErrorCode = "SINK_DELIVERY_FAILED"

	// Snapshot cache errors
	ErrCodeCacheUnavailable ErrorCode = "CACHE_UNAVAILABLE"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewConnectionFailedError creates a retryable transport dial error.
func NewConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeConnectionFailed,
		Message:   "Push channel connection failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewConnectionDroppedError creates a retryable error for a dropped session.
func NewConnectionDroppedError(reason string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConnectionDropped,
		Message:   "Push channel connection dropped",
		Details:   reason,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewAuthRejectedError creates a non-retryable credential rejection error.
// Rejected credentials must never trigger the transport retry loop.
func NewAuthRejectedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAuthRejected,
		Message:   "Push channel authentication rejected",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewReconnectExhaustedError creates a non-retryable error after the retry budget ran out.
func NewReconnectExhaustedError(attempts int, lastErr error) *StandardError {
	details := fmt.Sprintf("gave up after %d attempts", attempts)
	if lastErr != nil {
		details = fmt.Sprintf("%s, last error: %s", details, lastErr.Error())
	}
	return &StandardError{
		Code:      ErrCodeReconnectExhausted,
		Message:   "Automatic reconnection exhausted",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPayloadInvalidError creates a non-retryable payload validation error.
// The event is still admitted with defaults; this error is log-only.
func NewPayloadInvalidError(eventName, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodePayloadInvalid,
		Message:   "Push event payload failed validation",
		Details:   fmt.Sprintf("event: %s, %s", eventName, details),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewFetchFailedError creates a retryable history fetch error.
func NewFetchFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeFetchFailed,
		Message:   "Notification history fetch failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewMarkReadFailedError creates a retryable read-state persistence error.
// The optimistic local flag stands regardless.
func NewMarkReadFailedError(id string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeMarkReadFailed,
		Message:   "Failed to persist read state",
		Details:   fmt.Sprintf("id: %s, error: %s", id, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDeleteFailedError creates a retryable deletion persistence error.
func NewDeleteFailedError(id string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDeleteFailed,
		Message:   "Failed to persist notification deletion",
		Details:   fmt.Sprintf("id: %s, error: %s", id, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewRouteUnresolvedError creates a non-retryable routing gap error.
func NewRouteUnresolvedError(notificationType, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRouteUnresolved,
		Message:   "No navigation target for notification",
		Details:   fmt.Sprintf("type: %s, %s", notificationType, details),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSinkDeliveryFailedError creates a non-retryable sink failure error.
func NewSinkDeliveryFailedError(sink string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSinkDeliveryFailed,
		Message:   "Presentation sink delivery failed",
		Details:   fmt.Sprintf("sink: %s, error: %s", sink, err.Error()),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewCacheUnavailableError creates a retryable snapshot cache error.
func NewCacheUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCacheUnavailable,
		Message:   "Notification snapshot cache unavailable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// IsRetryable reports whether an error carries a retryable code.
func IsRetryable(err error) bool {
	if stdErr, ok := err.(*StandardError); ok {
		return stdErr.Retryable
	}
	return false
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "CONNECTION") || strings.Contains(codeStr, "RECONNECT"):
		return "TRANSPORT"
	case strings.Contains(codeStr, "AUTH"):
		return "AUTH"
	case strings.Contains(codeStr, "PAYLOAD"):
		return "NORMALIZATION"
	case strings.Contains(codeStr, "FETCH") || strings.Contains(codeStr, "MARK_READ") || strings.Contains(codeStr, "DELETE"):
		return "PERSISTENCE"
	case strings.Contains(codeStr, "ROUTE"):
		return "ROUTING"
	case strings.Contains(codeStr, "SINK"):
		return "PRESENTATION"
	case strings.Contains(codeStr, "CACHE"):
		return "CACHE"
	default:
		return "OTHER"
	}
}
