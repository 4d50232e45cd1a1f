package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across assetflow.
type ErrorCode string

// Request / configuration error codes
const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrConfiguration  ErrorCode = "CONFIGURATION"
	ErrNotFound       ErrorCode = "NOT_FOUND"
	ErrCancelled      ErrorCode = "CANCELLED"
)

// Vendor error codes
const (
	ErrUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrForbidden          ErrorCode = "FORBIDDEN"
	ErrRateLimited        ErrorCode = "RATE_LIMITED"
	ErrQuotaExceeded      ErrorCode = "QUOTA_EXCEEDED"
	ErrModelOverloaded    ErrorCode = "MODEL_OVERLOADED"
	ErrUpstreamTimeout    ErrorCode = "UPSTREAM_TIMEOUT"
	ErrUpstreamError      ErrorCode = "UPSTREAM_ERROR"
	ErrMalformedResponse  ErrorCode = "MALFORMED_RESPONSE"
	ErrEmptyResult        ErrorCode = "EMPTY_RESULT"
	ErrServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
)

// Archive / runtime error codes
const (
	ErrArchiveIO     ErrorCode = "ARCHIVE_IO"
	ErrRenderFailed  ErrorCode = "RENDER_FAILED"
	ErrInternalError ErrorCode = "INTERNAL_ERROR"
)

var vendorCodes = map[ErrorCode]bool{
	ErrUnauthorized:       true,
	ErrForbidden:          true,
	ErrRateLimited:        true,
	ErrQuotaExceeded:      true,
	ErrModelOverloaded:    true,
	ErrUpstreamTimeout:    true,
	ErrUpstreamError:      true,
	ErrMalformedResponse:  true,
	ErrEmptyResult:        true,
	ErrServiceUnavailable: true,
}

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Provider   string    `json:"provider,omitempty"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf creates a new Error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithProvider sets the provider name.
func (e *Error) WithProvider(provider string) *Error {
	e.Provider = provider
	return e
}

// AsError 沿错误链查找 *Error
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := AsError(err); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// IsErrorCode reports whether err carries the given code anywhere in its chain.
func IsErrorCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}

// IsConfigurationError 配置类错误对整次运行是致命的
func IsConfigurationError(err error) bool {
	return IsErrorCode(err, ErrConfiguration)
}

// IsVendorError reports whether err originated from a generative vendor call.
func IsVendorError(err error) bool {
	return vendorCodes[GetErrorCode(err)]
}

// NewConfigurationError is a shortcut for ErrConfiguration errors.
func NewConfigurationError(format string, args ...any) *Error {
	return Errorf(ErrConfiguration, format, args...)
}

// NewInvalidRequestError is a shortcut for ErrInvalidRequest errors.
func NewInvalidRequestError(format string, args ...any) *Error {
	return Errorf(ErrInvalidRequest, format, args...).WithHTTPStatus(400)
}
