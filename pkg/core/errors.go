package core

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorType represents the category of an API error.
type ErrorType int

// Error type constants categorize errors for proper handling.
const (
	// ErrorTypeUnknown indicates an unclassified error.
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeRateLimit indicates rate limit was exceeded.
	ErrorTypeRateLimit
	// ErrorTypeAuthentication indicates invalid or expired credentials.
	ErrorTypeAuthentication
	// ErrorTypeBadRequest indicates invalid request parameters.
	ErrorTypeBadRequest
	// ErrorTypeNotFound indicates the requested resource does not exist.
	ErrorTypeNotFound
	// ErrorTypeServerError indicates a server-side error.
	ErrorTypeServerError
)

// String returns the string representation of the error type.
func (t ErrorType) String() string {
	return [...]string{
		"UNKNOWN",
		"RATE_LIMIT",
		"AUTHENTICATION",
		"BAD_REQUEST",
		"NOT_FOUND",
		"SERVER_ERROR",
	}[t]
}

// ErrorTypeFromStatus maps an HTTP status code to an ErrorType.
func ErrorTypeFromStatus(statusCode int) ErrorType {
	switch {
	case statusCode >= 500:
		return ErrorTypeServerError
	case statusCode == http.StatusTooManyRequests:
		return ErrorTypeRateLimit
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return ErrorTypeAuthentication
	case statusCode == http.StatusBadRequest:
		return ErrorTypeBadRequest
	case statusCode == http.StatusNotFound:
		return ErrorTypeNotFound
	default:
		return ErrorTypeUnknown
	}
}

// Sentinel errors for common error conditions.
var (
	// ErrClientClosed is returned when attempting to use a closed client.
	ErrClientClosed = errors.New("client is closed")
	// ErrNotConnected is returned when a message is sent while the websocket is not open.
	ErrNotConnected = errors.New("websocket not connected")
	// ErrAlreadyStarted is returned when a connection or manager is started twice.
	ErrAlreadyStarted = errors.New("already started")
	// ErrCircuitOpen is returned when the circuit breaker rejects a REST call.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrInvalidDepthLevel is returned for partial depth levels other than 5, 10 and 20.
	ErrInvalidDepthLevel = errors.New("invalid depth level")
	// ErrInvalidInterval is returned for unknown kline interval codes.
	ErrInvalidInterval = errors.New("invalid kline interval")
	// ErrNoListenKey is returned when the listen key response carries no key.
	ErrNoListenKey = errors.New("no listen key in response")
)

// APIError is returned when the exchange rejects a REST call.
type APIError struct {
	// Type categorizes the error for programmatic handling.
	Type ErrorType `json:"type"`
	// StatusCode is the HTTP status code from the response.
	StatusCode int `json:"status_code"`
	// Code is the exchange error code from the body, zero when absent.
	Code int `json:"code,omitempty"`
	// Message is the body's msg field, empty when absent.
	Message string `json:"message,omitempty"`
	// Timestamp is when the error was observed.
	Timestamp time.Time `json:"timestamp"`
}

// Error implements the error interface for APIError.
func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("mexc api: %s (%d/%d): %s", e.Type, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("mexc api: %s (%d): %s", e.Type, e.StatusCode, e.Message)
}

// NewAPIError creates an APIError for the given status and message.
// The timestamp is automatically set to the current time.
func NewAPIError(statusCode, code int, message string) *APIError {
	return &APIError{
		Type:       ErrorTypeFromStatus(statusCode),
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
		Timestamp:  time.Now(),
	}
}

// TransportError wraps a socket-level failure. It is reported through error callbacks and
// triggers a reconnect; it is never returned from unrelated calls.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// TokenRefreshError wraps a failed listen key keepalive. The refresh schedule continues.
type TokenRefreshError struct {
	Err error
}

func (e *TokenRefreshError) Error() string {
	return fmt.Sprintf("listen key refresh: %v", e.Err)
}

func (e *TokenRefreshError) Unwrap() error { return e.Err }

// IsAPIError reports whether err wraps an APIError.
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}

// IsRateLimitError returns true if the error is a rate limit rejection.
func IsRateLimitError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Type == ErrorTypeRateLimit
	}
	return false
}

// IsAuthenticationError returns true if the error is an authentication failure.
// Authentication errors require credential validation and are not retryable.
func IsAuthenticationError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Type == ErrorTypeAuthentication
	}
	return false
}

// IsTransportError reports whether err wraps a TransportError.
func IsTransportError(err error) bool {
	var tErr *TransportError
	return errors.As(err, &tErr)
}
