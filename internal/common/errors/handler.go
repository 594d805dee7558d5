// internal/common/errors/handler.go
package errors

import (
	"time"
)

// ErrorHandler logs failures at a boundary and normalizes them into user-safe errors.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle logs err and returns the error the caller is allowed to see.
// Validation and not-found errors pass through as-is; every other failure is replaced
// by a StandardError carrying userMessage, keeping the original code and cause.
func (h *ErrorHandler) Handle(operation string, err error, userMessage string) *StandardError {
	stdErr := h.normalizeError(err)
	h.logError(operation, stdErr)

	if stdErr.Code == ErrCodeValidationFailed || stdErr.Code == ErrCodeResourceNotFound {
		return stdErr
	}

	public := &StandardError{
		Code:      stdErr.Code,
		Message:   userMessage,
		Retryable: stdErr.Retryable,
		Timestamp: time.Now().UTC(),
	}
	public.cause = err
	return public
}

// normalizeError ensures we always have a StandardError
func (h *ErrorHandler) normalizeError(err error) *StandardError {
	if stdErr := AsStandard(err); stdErr != nil {
		return stdErr
	}
	return NewInternalError(err)
}

func (h *ErrorHandler) logError(operation string, stdErr *StandardError) {
	fields := map[string]interface{}{
		"operation":     operation,
		"errorCode":     string(stdErr.Code),
		"message":       stdErr.Message,
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
		"errorCategory": GetErrorCategory(stdErr.Code),
	}
	if len(stdErr.Fields) > 0 {
		fields["fields"] = stdErr.Fields
	}
	if stdErr.cause != nil {
		fields["cause"] = stdErr.cause.Error()
	}

	if stdErr.Code == ErrCodeValidationFailed || stdErr.Code == ErrCodeResourceNotFound {
		h.logger.Warn("Request rejected", fields)
		return
	}
	h.logger.Error("Operation failed", fields)
}
