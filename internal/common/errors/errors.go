// Package errors provides standardized error handling for the call
// hand-off coordination components.
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
	ErrCodeStoreReadFailed  ErrorCode = "STORE_READ_FAILED"
	ErrCodeStoreWriteFailed ErrorCode = "STORE_WRITE_FAILED"
	ErrCodeSessionNotFound  ErrorCode = "SESSION_NOT_FOUND"
	ErrCodeItemNotFound     ErrorCode = "ITEM_NOT_FOUND"

	ErrCodeInvalidStatusTransition       ErrorCode = "INVALID_STATUS_TRANSITION"
	ErrCodeInvalidNotificationTransition ErrorCode = "INVALID_NOTIFICATION_TRANSITION"
	ErrCodeNotificationNotFound          ErrorCode = "NOTIFICATION_NOT_FOUND"

	ErrCodeChangeFeedDisconnected ErrorCode = "CHANGE_FEED_DISCONNECTED"
	ErrCodeChangeFeedPublish      ErrorCode = "CHANGE_FEED_PUBLISH_FAILED"

	ErrCodeVendorMappingMissing ErrorCode = "VENDOR_MAPPING_MISSING"
	ErrCodeChannelNotFound      ErrorCode = "CHANNEL_NOT_FOUND"
	ErrCodeChannelUnreachable   ErrorCode = "CHANNEL_UNREACHABLE"
	ErrCodeChannelAPIError      ErrorCode = "CHANNEL_API_ERROR"

	ErrCodeProfileNotFound   ErrorCode = "PROFILE_NOT_FOUND"
	ErrCodeLogWriteFailed    ErrorCode = "LOG_WRITE_FAILED"
	ErrCodeSearchIndexFailed ErrorCode = "SEARCH_INDEX_FAILED"
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

// NewStoreReadFailedError creates a retryable store read error.
func NewStoreReadFailedError(table string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStoreReadFailed,
		Message:   "Store read failed",
		Details:   fmt.Sprintf("table: %s, error: %s", table, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewStoreWriteFailedError creates a retryable store write error.
func NewStoreWriteFailedError(table string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStoreWriteFailed,
		Message:   "Store write failed",
		Details:   fmt.Sprintf("table: %s, error: %s", table, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSessionNotFoundError creates a non-retryable missing session error.
func NewSessionNotFoundError(sessionID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionNotFound,
		Message:   "Verification session not found",
		Details:   fmt.Sprintf("sessionId: %s", sessionID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewItemNotFoundError creates a non-retryable missing item error.
func NewItemNotFoundError(itemID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeItemNotFound,
		Message:   "Verification item not found",
		Details:   fmt.Sprintf("itemId: %s", itemID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidStatusTransitionError creates a non-retryable transition error.
// Session statuses only move forward; a backward write is rejected, never applied.
func NewInvalidStatusTransitionError(from, to string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidStatusTransition,
		Message:   "Session status may only move forward",
		Details:   fmt.Sprintf("from: %s, to: %s", from, to),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidNotificationTransitionError creates a non-retryable transition error.
func NewInvalidNotificationTransitionError(from, to string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidNotificationTransition,
		Message:   "Notification status may only move forward",
		Details:   fmt.Sprintf("from: %s, to: %s", from, to),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationNotFoundError creates a non-retryable missing notification error.
func NewNotificationNotFoundError(notificationID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationNotFound,
		Message:   "Notification not found",
		Details:   fmt.Sprintf("notificationId: %s", notificationID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewChangeFeedDisconnectedError creates a retryable change feed error.
func NewChangeFeedDisconnectedError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeChangeFeedDisconnected,
		Message:   "Change feed subscription lost",
		Details:   fmt.Sprintf("channel: %s, error: %s", channel, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewChangeFeedPublishError creates a retryable change feed publish error.
func NewChangeFeedPublishError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeChangeFeedPublish,
		Message:   "Change event publish failed",
		Details:   fmt.Sprintf("channel: %s, error: %s", channel, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewVendorMappingMissingError marks a vendor with no channel mapping.
// Callers treat this as a defined branch, not a failure of the workflow step.
func NewVendorMappingMissingError(vendor string) *StandardError {
	return &StandardError{
		Code:      ErrCodeVendorMappingMissing,
		Message:   "No channel mapping for lead vendor",
		Details:   fmt.Sprintf("vendor: %s", vendor),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewChannelNotFoundError creates a non-retryable missing channel error.
func NewChannelNotFoundError(channel string) *StandardError {
	return &StandardError{
		Code:      ErrCodeChannelNotFound,
		Message:   "External channel does not exist",
		Details:   fmt.Sprintf("channel: %s", channel),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewChannelUnreachableError creates a retryable delivery error.
func NewChannelUnreachableError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeChannelUnreachable,
		Message:   "External channel service unreachable",
		Details:   fmt.Sprintf("channel: %s, error: %s", channel, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewChannelAPIError creates a non-retryable chat API error.
func NewChannelAPIError(channel, apiError string) *StandardError {
	return &StandardError{
		Code:      ErrCodeChannelAPIError,
		Message:   "External channel API rejected the message",
		Details:   fmt.Sprintf("channel: %s, error: %s", channel, apiError),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewProfileNotFoundError creates a non-retryable directory lookup error.
func NewProfileNotFoundError(agentID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeProfileNotFound,
		Message:   "Agent profile not found",
		Details:   fmt.Sprintf("agentId: %s", agentID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewLogWriteFailedError creates a retryable call log write error.
func NewLogWriteFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeLogWriteFailed,
		Message:   "Call update log write failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSearchIndexFailedError creates a retryable search index error.
func NewSearchIndexFailedError(index string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchIndexFailed,
		Message:   "Search index write failed",
		Details:   fmt.Sprintf("index: %s, error: %s", index, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// GetRetryCount returns the recommended retry count per error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeStoreReadFailed,
		ErrCodeStoreWriteFailed,
		ErrCodeLogWriteFailed,
		ErrCodeSearchIndexFailed,
		ErrCodeChangeFeedPublish:
		return 3

	case ErrCodeChangeFeedDisconnected:
		return 2

	// External-channel delivery is single-attempt: failures are logged
	// and reported, never queued for retry.
	case ErrCodeChannelUnreachable:
		return 0

	default:
		return 0
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "STORE") || strings.Contains(codeStr, "LOG_WRITE"):
		return "STORE"
	case strings.Contains(codeStr, "CHANGE_FEED"):
		return "REALTIME"
	case strings.Contains(codeStr, "CHANNEL") || strings.Contains(codeStr, "VENDOR"):
		return "DISPATCH"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "TRANSITION"):
		return "STATE"
	case strings.Contains(codeStr, "SEARCH"):
		return "SEARCH"
	default:
		return "OTHER"
	}
}
