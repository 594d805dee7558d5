// Package errors provides the standardized error taxonomy shared by flows, actions and the HTTP API.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeValidationFailed   ErrorCode = "VALIDATION_FAILED"
	ErrCodeModelUnavailable   ErrorCode = "MODEL_UNAVAILABLE"
	ErrCodeOutputShapeInvalid ErrorCode = "OUTPUT_SHAPE_INVALID"

	ErrCodeResourceNotFound     ErrorCode = "RESOURCE_NOT_FOUND"
	ErrCodeDatabaseQueryFailed  ErrorCode = "DATABASE_QUERY_FAILED"
	ErrCodeDatabaseInsertFailed ErrorCode = "DATABASE_INSERT_FAILED"

	ErrCodeTemplateNotFound       ErrorCode = "TEMPLATE_NOT_FOUND"
	ErrCodeTemplateRenderFailed   ErrorCode = "TEMPLATE_RENDER_FAILED"
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// Sentinels for errors.Is checks. A StandardError unwraps to the sentinel of its code.
var (
	ErrValidationFailed   = stderrors.New(string(ErrCodeValidationFailed))
	ErrModelUnavailable   = stderrors.New(string(ErrCodeModelUnavailable))
	ErrOutputShapeInvalid = stderrors.New(string(ErrCodeOutputShapeInvalid))
	ErrResourceNotFound   = stderrors.New(string(ErrCodeResourceNotFound))
	ErrInternal           = stderrors.New(string(ErrCodeInternal))
)

var sentinels = map[ErrorCode]error{
	ErrCodeValidationFailed:   ErrValidationFailed,
	ErrCodeModelUnavailable:   ErrModelUnavailable,
	ErrCodeOutputShapeInvalid: ErrOutputShapeInvalid,
	ErrCodeResourceNotFound:   ErrResourceNotFound,
	ErrCodeInternal:           ErrInternal,
}

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Retryable bool      `json:"retryable"`
	Fields    []string  `json:"fields,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes both the code sentinel and the underlying cause.
func (e *StandardError) Unwrap() []error {
	out := make([]error, 0, 2)
	if s, ok := sentinels[e.Code]; ok {
		out = append(out, s)
	}
	if e.cause != nil {
		out = append(out, e.cause)
	}
	return out
}

// Cause returns the wrapped error, if any.
func (e *StandardError) Cause() error {
	return e.cause
}

// WithCause attaches the original error for logging and errors.Is/As.
func (e *StandardError) WithCause(err error) *StandardError {
	e.cause = err
	if err != nil && e.Details == "" {
		e.Details = err.Error()
	}
	return e
}

// ==========================
// 2. Error Constructors
// ==========================

// NewValidationError reports every violated field. The message enumerates them in order.
func NewValidationError(subject string, violations []string) *StandardError {
	msg := fmt.Sprintf("Invalid input for %s", subject)
	if len(violations) > 0 {
		msg = fmt.Sprintf("%s: %s", msg, strings.Join(violations, "; "))
	}
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   msg,
		Details:   strings.Join(violations, "\n"),
		Retryable: false,
		Fields:    violations,
		Timestamp: time.Now().UTC(),
	}
}

// NewModelUnavailableError wraps a provider or network fault. Never retried by the flows.
func NewModelUnavailableError(message string, err error) *StandardError {
	e := &StandardError{
		Code:      ErrCodeModelUnavailable,
		Message:   message,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
	return e.WithCause(err)
}

// NewOutputShapeError reports an empty or schema-violating model payload.
func NewOutputShapeError(message string, violations []string) *StandardError {
	details := "empty model response"
	if len(violations) > 0 {
		details = strings.Join(violations, "; ")
	}
	return &StandardError{
		Code:      ErrCodeOutputShapeInvalid,
		Message:   message,
		Details:   details,
		Retryable: false,
		Fields:    violations,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotFoundError creates a non-retryable lookup error.
func NewNotFoundError(resource, id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeResourceNotFound,
		Message:   fmt.Sprintf("%s not found", resource),
		Details:   fmt.Sprintf("%s: %s", strings.ToLower(resource)+"Id", id),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseQueryFailedError creates a retryable query error.
func NewDatabaseQueryFailedError(queryType string, err error) *StandardError {
	e := &StandardError{
		Code:      ErrCodeDatabaseQueryFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("queryType: %s, error: %v", queryType, err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
	e.cause = err
	return e
}

// NewDatabaseInsertFailedError creates a retryable database insert error.
func NewDatabaseInsertFailedError(err error) *StandardError {
	e := &StandardError{
		Code:      ErrCodeDatabaseInsertFailed,
		Message:   "Database insert operation failed",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
	return e.WithCause(err)
}

// NewTemplateNotFoundError creates a non-retryable template error.
func NewTemplateNotFoundError(name string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTemplateNotFound,
		Message:   "Prompt template not found",
		Details:   fmt.Sprintf("template: %s", name),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTemplateRenderFailedError creates a non-retryable render error.
func NewTemplateRenderFailedError(name string, err error) *StandardError {
	e := &StandardError{
		Code:      ErrCodeTemplateRenderFailed,
		Message:   "Prompt template could not be rendered",
		Details:   fmt.Sprintf("template: %s, error: %v", name, err),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
	e.cause = err
	return e
}

// NewNotificationSendFailedError creates a retryable notification send error.
func NewNotificationSendFailedError(channel string, err error) *StandardError {
	e := &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("channel: %s, error: %v", channel, err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
	e.cause = err
	return e
}

// NewInternalError wraps anything that has no better classification.
func NewInternalError(err error) *StandardError {
	e := &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
	return e.WithCause(err)
}

// ==========================
// 3. Utility Functions
// ==========================

// AsStandard returns the first StandardError in err's chain, or nil.
func AsStandard(err error) *StandardError {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return nil
}

// CodeOf returns the error code of err, INTERNAL_ERROR for foreign errors.
func CodeOf(err error) ErrorCode {
	if stdErr := AsStandard(err); stdErr != nil {
		return stdErr.Code
	}
	return ErrCodeInternal
}

// HTTPStatus maps an error to the status the API responds with.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case ErrCodeValidationFailed:
		return http.StatusBadRequest
	case ErrCodeResourceNotFound:
		return http.StatusNotFound
	case ErrCodeModelUnavailable, ErrCodeOutputShapeInvalid:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "MODEL") || strings.Contains(codeStr, "OUTPUT"):
		return "AI"
	case strings.Contains(codeStr, "TEMPLATE"):
		return "TEMPLATE"
	case strings.Contains(codeStr, "DATABASE"):
		return "DATABASE"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "NOT_FOUND"):
		return "LOOKUP"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
