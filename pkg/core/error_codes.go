package core

import "errors"

// ErrorCode is a stable, machine-readable classification of an error.
type ErrorCode string

const (
	ErrCodeAPI          ErrorCode = "API_ERROR"
	ErrCodeRateLimit    ErrorCode = "RATE_LIMIT"
	ErrCodeAuth         ErrorCode = "AUTH_ERROR"
	ErrCodeTransport    ErrorCode = "TRANSPORT_ERROR"
	ErrCodeNotConnected ErrorCode = "NOT_CONNECTED"
	ErrCodeTokenRefresh ErrorCode = "TOKEN_REFRESH"
	ErrCodeClientClosed ErrorCode = "CLIENT_CLOSED"

	ErrCodeCircuitBreaker ErrorCode = "CIRCUIT_BREAKER_OPEN"

	// ErrCodeInvalidParam covers rejected topic parameters such as depth levels and intervals.
	ErrCodeInvalidParam ErrorCode = "INVALID_PARAM"

	ErrCodeUnknown ErrorCode = "UNKNOWN"
)

// CodeOf classifies err. Wrapped errors are unwrapped.
func CodeOf(err error) ErrorCode {
	var (
		apiErr     *APIError
		transErr   *TransportError
		refreshErr *TokenRefreshError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &refreshErr):
		return ErrCodeTokenRefresh
	case errors.As(err, &apiErr):
		switch apiErr.Type {
		case ErrorTypeRateLimit:
			return ErrCodeRateLimit
		case ErrorTypeAuthentication:
			return ErrCodeAuth
		}
		return ErrCodeAPI
	case errors.Is(err, ErrNotConnected):
		return ErrCodeNotConnected
	case errors.As(err, &transErr):
		return ErrCodeTransport
	case errors.Is(err, ErrClientClosed):
		return ErrCodeClientClosed
	case errors.Is(err, ErrCircuitOpen):
		return ErrCodeCircuitBreaker
	case errors.Is(err, ErrInvalidDepthLevel), errors.Is(err, ErrInvalidInterval):
		return ErrCodeInvalidParam
	default:
		return ErrCodeUnknown
	}
}

// IsErrorCode checks if the error classifies as the specified error code.
func IsErrorCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
