package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// Execution error codes.
const (
	CodeNoModels      = "NO_MODELS"
	CodeTimeout       = "TIMEOUT"
	CodeQuotaExceeded = "QUOTA_EXCEEDED"
	CodeAllFailed     = "ALL_FAILED"
	CodeCanceled      = "CANCELED"
	CodeNetwork       = "NETWORK"
	CodeInvalid       = "INVALID_REQUEST"
)

// ErrRequestTimeout is wrapped by transport errors when a single call exceeds its timeout.
var ErrRequestTimeout = errors.New("request timeout")

// APIError is a non-2xx reply from the aggregator.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// NewAPIError builds an APIError, falling back to "HTTP <status>" when the
// upstream message is empty.
func NewAPIError(status int, message string) *APIError {
	if message == "" {
		message = fmt.Sprintf("HTTP %d: %s", status, http.StatusText(status))
	}
	return &APIError{StatusCode: status, Message: message}
}

// IsRetriable reports whether err is worth another attempt on the same model.
// Only 429 and 5xx qualify.
func IsRetriable(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusTooManyRequests ||
		(apiErr.StatusCode >= 500 && apiErr.StatusCode < 600)
}

// IsInvalidModel reports whether err says the requested model id no longer exists.
func IsInvalidModel(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "model not found") ||
		strings.Contains(msg, "invalid model") ||
		strings.Contains(msg, "model does not exist")
}

// StatusCode extracts the HTTP status from err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// ErrorCode maps err onto the code recorded in telemetry and results.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case StatusCode(err) != 0:
		return strconv.Itoa(StatusCode(err))
	case errors.Is(err, ErrRequestTimeout), errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	case errors.Is(err, context.Canceled):
		return CodeCanceled
	default:
		return CodeNetwork
	}
}

// ExecutionError is the typed failure of an execution.
type ExecutionError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retriable bool   `json:"retriable"`
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsCode reports whether err is an ExecutionError with the given code.
func IsCode(err error, code string) bool {
	var execErr *ExecutionError
	return errors.As(err, &execErr) && execErr.Code == code
}
