package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorType_String(t *testing.T) {
	tests := []struct {
		name      string
		errorType ErrorType
		want      string
	}{
		{"unknown", ErrorTypeUnknown, "UNKNOWN"},
		{"rate_limit", ErrorTypeRateLimit, "RATE_LIMIT"},
		{"authentication", ErrorTypeAuthentication, "AUTHENTICATION"},
		{"bad_request", ErrorTypeBadRequest, "BAD_REQUEST"},
		{"not_found", ErrorTypeNotFound, "NOT_FOUND"},
		{"server_error", ErrorTypeServerError, "SERVER_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.errorType.String())
		})
	}
}

func TestErrorTypeFromStatus(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorType
	}{
		{400, ErrorTypeBadRequest},
		{401, ErrorTypeAuthentication},
		{403, ErrorTypeAuthentication},
		{404, ErrorTypeNotFound},
		{429, ErrorTypeRateLimit},
		{500, ErrorTypeServerError},
		{503, ErrorTypeServerError},
		{418, ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorTypeFromStatus(tt.status))
		})
	}
}

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *APIError
		want string
	}{
		{
			name: "without_code",
			err: &APIError{
				Type:       ErrorTypeRateLimit,
				StatusCode: 429,
				Message:    "too many requests",
			},
			want: "mexc api: RATE_LIMIT (429): too many requests",
		},
		{
			name: "with_code",
			err: &APIError{
				Type:       ErrorTypeBadRequest,
				StatusCode: 400,
				Code:       700002,
				Message:    "Signature for this request is not valid.",
			},
			want: "mexc api: BAD_REQUEST (400/700002): Signature for this request is not valid.",
		},
		{
			name: "missing_message",
			err: &APIError{
				Type:       ErrorTypeServerError,
				StatusCode: 502,
			},
			want: "mexc api: SERVER_ERROR (502): ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestNewAPIError(t *testing.T) {
	err := NewAPIError(401, 10072, "Api key info invalid")

	assert.Equal(t, ErrorTypeAuthentication, err.Type)
	assert.Equal(t, 401, err.StatusCode)
	assert.Equal(t, 10072, err.Code)
	assert.Equal(t, "Api key info invalid", err.Message)
	assert.False(t, err.Timestamp.IsZero())
}

func TestErrorHelpers(t *testing.T) {
	rateLimited := fmt.Errorf("request: %w", NewAPIError(429, 0, "slow down"))
	auth := NewAPIError(403, 0, "forbidden")
	transport := &TransportError{Op: "read", Err: errors.New("connection reset")}

	assert.True(t, IsAPIError(rateLimited))
	assert.True(t, IsRateLimitError(rateLimited))
	assert.False(t, IsAuthenticationError(rateLimited))
	assert.True(t, IsAuthenticationError(auth))
	assert.False(t, IsRateLimitError(errors.New("plain")))
	assert.True(t, IsTransportError(fmt.Errorf("wrapped: %w", transport)))
	assert.False(t, IsTransportError(auth))
}

func TestTransportError_Unwrap(t *testing.T) {
	cause := errors.New("broken pipe")
	err := &TransportError{Op: "write", Err: cause}

	assert.Equal(t, "transport write: broken pipe", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestTokenRefreshError_Unwrap(t *testing.T) {
	cause := NewAPIError(401, 0, "expired")
	err := &TokenRefreshError{Err: cause}

	assert.Contains(t, err.Error(), "listen key refresh")
	assert.True(t, IsAPIError(err))
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"nil", nil, ""},
		{"api", NewAPIError(400, 0, "bad"), ErrCodeAPI},
		{"rate_limit", NewAPIError(429, 0, "slow"), ErrCodeRateLimit},
		{"auth", NewAPIError(401, 0, "auth"), ErrCodeAuth},
		{"not_connected", fmt.Errorf("send: %w", ErrNotConnected), ErrCodeNotConnected},
		{"transport", &TransportError{Op: "dial", Err: errors.New("refused")}, ErrCodeTransport},
		{"token_refresh", &TokenRefreshError{Err: NewAPIError(500, 0, "down")}, ErrCodeTokenRefresh},
		{"client_closed", ErrClientClosed, ErrCodeClientClosed},
		{"circuit_open", ErrCircuitOpen, ErrCodeCircuitBreaker},
		{"invalid_depth", fmt.Errorf("level 7: %w", ErrInvalidDepthLevel), ErrCodeInvalidParam},
		{"unknown", errors.New("something"), ErrCodeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeOf(tt.err))
			if tt.err != nil {
				assert.True(t, IsErrorCode(tt.err, tt.want))
			}
		})
	}
}
