// Package errors provides standardized error handling for the
// decision pipeline and its external collaborators.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeIntakeValidationFailed ErrorCode = "INTAKE_VALIDATION_FAILED"
	ErrCodeUnknownDocumentKind    ErrorCode = "UNKNOWN_DOCUMENT_KIND"
	ErrCodeApplicationNotFound    ErrorCode = "APPLICATION_NOT_FOUND"

	ErrCodeModelNotLoaded        ErrorCode = "MODEL_NOT_LOADED"
	ErrCodeClassifierUnavailable ErrorCode = "CLASSIFIER_UNAVAILABLE"
	ErrCodeClassifierTimeout     ErrorCode = "CLASSIFIER_TIMEOUT"

	ErrCodeGenerationFailed  ErrorCode = "TEXT_GENERATION_FAILED"
	ErrCodeGenerationTimeout ErrorCode = "TEXT_GENERATION_TIMEOUT"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeDatabaseInsertFailed     ErrorCode = "DATABASE_INSERT_FAILED"
	ErrCodeAuditWriteFailed         ErrorCode = "AUDIT_WRITE_FAILED"
	ErrCodeDecisionIndexFailed      ErrorCode = "DECISION_INDEX_FAILED"

	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"

	ErrCodeStagePanic ErrorCode = "STAGE_PANIC"
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

// NewIntakeValidationFailedError creates a non-retryable intake error.
func NewIntakeValidationFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeIntakeValidationFailed,
		Message:   "Application intake payload failed validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUnknownDocumentKindError creates a non-retryable document kind error.
func NewUnknownDocumentKindError(kind string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnknownDocumentKind,
		Message:   "Unsupported document kind",
		Details:   fmt.Sprintf("kind: %s", kind),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewApplicationNotFoundError creates a non-retryable lookup error.
func NewApplicationNotFoundError(applicationID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeApplicationNotFound,
		Message:   "Application not found",
		Details:   fmt.Sprintf("applicationId: %s", applicationID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewModelNotLoadedError marks a classifier that answered but has no
// model loaded. Retrying within the same call will not help.
func NewModelNotLoadedError() *StandardError {
	return &StandardError{
		Code:      ErrCodeModelNotLoaded,
		Message:   "Eligibility model not loaded on the scoring service",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewClassifierUnavailableError marks a degraded classifier call. The
// pipeline continues with the fail-safe prediction; this error only
// feeds the audit trail and logs.
func NewClassifierUnavailableError(err error) *StandardError {
	details := "classifier not loaded"
	if err != nil {
		details = err.Error()
	}
	return &StandardError{
		Code:      ErrCodeClassifierUnavailable,
		Message:   "Eligibility classifier unavailable, fail-safe prediction used",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewClassifierTimeoutError creates a retryable classifier timeout error.
func NewClassifierTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodeClassifierTimeout,
		Message:   "Eligibility classifier timeout",
		Details:   "prediction call exceeded timeout threshold",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewGenerationFailedError creates a retryable text-generation error.
func NewGenerationFailedError(purpose string, err error) *StandardError {
	details := fmt.Sprintf("purpose: %s", purpose)
	if err != nil {
		details = fmt.Sprintf("purpose: %s, error: %s", purpose, err.Error())
	}
	return &StandardError{
		Code:      ErrCodeGenerationFailed,
		Message:   "Text generation API error",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewGenerationTimeoutError creates a retryable text-generation timeout error.
func NewGenerationTimeoutError(purpose string) *StandardError {
	return &StandardError{
		Code:      ErrCodeGenerationTimeout,
		Message:   "Text generation timeout",
		Details:   fmt.Sprintf("purpose: %s", purpose),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	var details string
	if err != nil {
		details = err.Error()
	}
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseInsertFailedError creates a retryable database insert error.
func NewDatabaseInsertFailedError(err error) *StandardError {
	var details string
	if err != nil {
		details = err.Error()
	}
	return &StandardError{
		Code:      ErrCodeDatabaseInsertFailed,
		Message:   "Database insert operation failed",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewAuditWriteFailedError marks a degraded-audit event. Never fatal
// to the in-memory decision.
func NewAuditWriteFailedError(stage string, err error) *StandardError {
	details := fmt.Sprintf("stage: %s", stage)
	if err != nil {
		details = fmt.Sprintf("stage: %s, error: %s", stage, err.Error())
	}
	return &StandardError{
		Code:      ErrCodeAuditWriteFailed,
		Message:   "Audit trail write failed",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDecisionIndexFailedError marks a degraded decision-index write.
func NewDecisionIndexFailedError(err error) *StandardError {
	var details string
	if err != nil {
		details = err.Error()
	}
	return &StandardError{
		Code:      ErrCodeDecisionIndexFailed,
		Message:   "Decision index write failed",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError creates a retryable notification error.
func NewNotificationSendFailedError(channel string, err error) *StandardError {
	details := fmt.Sprintf("channel: %s", channel)
	if err != nil {
		details = fmt.Sprintf("channel: %s, error: %s", channel, err.Error())
	}
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification delivery failed",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewStagePanicError wraps a recovered stage panic. It transitions the
// pipeline to its Error terminal state.
func NewStagePanicError(stage string, recovered interface{}) *StandardError {
	return &StandardError{
		Code:      ErrCodeStagePanic,
		Message:   fmt.Sprintf("Stage '%s' failed with an unexpected error", stage),
		Details:   fmt.Sprintf("%v", recovered),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// GetRetryCount returns the recommended retry count per error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeDatabaseInsertFailed,
		ErrCodeAuditWriteFailed,
		ErrCodeDecisionIndexFailed,
		ErrCodeNotificationSendFailed,
		ErrCodeGenerationFailed:
		return 3 // Retryable technical errors

	case ErrCodeClassifierTimeout,
		ErrCodeGenerationTimeout:
		return 2 // Partial retry for timeouts

	case ErrCodeClassifierUnavailable:
		return 1

	default:
		return 0 // Business errors: no retry
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
	case strings.Contains(codeStr, "INTAKE") || strings.Contains(codeStr, "DOCUMENT") || strings.Contains(codeStr, "APPLICATION"):
		return "INTAKE"
	case strings.Contains(codeStr, "CLASSIFIER") || strings.Contains(codeStr, "MODEL"):
		return "CLASSIFIER"
	case strings.Contains(codeStr, "GENERATION"):
		return "AI"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "AUDIT") || strings.Contains(codeStr, "INDEX"):
		return "PERSISTENCE"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "PANIC"):
		return "PIPELINE"
	default:
		return "OTHER"
	}
}
