package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorCode identifies a class of failure across API and runtime boundaries.
type ErrorCode string

const (
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeTimeout      ErrorCode = "TIMEOUT"
	ErrCodeRateLimit    ErrorCode = "RATE_LIMIT"

	ErrCodeConfigInvalid       ErrorCode = "CONFIG_INVALID"
	ErrCodeRegistryUnavailable ErrorCode = "REGISTRY_UNAVAILABLE"
	ErrCodeUpdateCheckFailed   ErrorCode = "UPDATE_CHECK_FAILED"
)

type ErrorSeverity string

const (
	SeverityLow      ErrorSeverity = "low"
	SeverityMedium   ErrorSeverity = "medium"
	SeverityHigh     ErrorSeverity = "high"
	SeverityCritical ErrorSeverity = "critical"
)

// AppError is the error shape returned by the HTTP API.
type AppError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Severity  ErrorSeverity          `json:"severity"`
	Timestamp time.Time              `json:"timestamp"`
	RequestID string                 `json:"request_id,omitempty"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Cause     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// HTTPStatus maps the error code to a response status.
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeInvalidInput, ErrCodeConfigInvalid:
		return http.StatusBadRequest
	case ErrCodeTimeout:
		return http.StatusRequestTimeout
	case ErrCodeRateLimit:
		return http.StatusTooManyRequests
	case ErrCodeRegistryUnavailable:
		return http.StatusServiceUnavailable
	case ErrCodeUpdateCheckFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func NewAppError(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Severity:  getSeverityByCode(code),
		Timestamp: time.Now(),
		Cause:     cause,
		Context:   make(map[string]interface{}),
	}
}

func NewAppErrorWithDetails(code ErrorCode, message, details string, cause error) *AppError {
	err := NewAppError(code, message, cause)
	err.Details = details
	return err
}

func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func (e *AppError) WithRequestID(requestID string) *AppError {
	e.RequestID = requestID
	return e
}

func getSeverityByCode(code ErrorCode) ErrorSeverity {
	switch code {
	case ErrCodeInternal, ErrCodeConfigInvalid:
		return SeverityCritical
	case ErrCodeRegistryUnavailable:
		return SeverityHigh
	case ErrCodeTimeout, ErrCodeUpdateCheckFailed:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// IsRetryable reports whether the same call may succeed later.
func (e *AppError) IsRetryable() bool {
	switch e.Code {
	case ErrCodeTimeout, ErrCodeRateLimit, ErrCodeRegistryUnavailable, ErrCodeUpdateCheckFailed:
		return true
	default:
		return false
	}
}

// ErrorResponse is the JSON envelope for failed API calls.
type ErrorResponse struct {
	Error     *AppError `json:"error"`
	Success   bool      `json:"success"`
	Timestamp time.Time `json:"timestamp"`
	Path      string    `json:"path,omitempty"`
}

func NewErrorResponse(err *AppError, path string) *ErrorResponse {
	return &ErrorResponse{
		Error:     err,
		Success:   false,
		Timestamp: time.Now(),
		Path:      path,
	}
}

// WrapError converts err to an AppError. An AppError anywhere in the chain is
// returned unchanged.
func WrapError(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	if appErr := GetAppError(err); appErr != nil {
		return appErr
	}
	return NewAppError(code, message, err)
}

func IsAppError(err error) bool {
	return GetAppError(err) != nil
}

func GetAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return nil
}
