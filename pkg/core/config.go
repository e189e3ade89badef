package core

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

const (
	// ProductionURL is the MEXC spot REST endpoint.
	ProductionURL = "https://api.mexc.com"
	// StreamURL is the MEXC spot websocket endpoint. The listen key is appended as a query parameter.
	StreamURL = "wss://wbs.mexc.com/ws"
)

// CircuitBreakerConfig controls the breaker placed in front of REST calls.
type CircuitBreakerConfig struct {
	Enabled          bool          `json:"enabled"`
	FailThreshold    int           `json:"fail_threshold"`
	SuccessThreshold int           `json:"success_threshold"`
	Timeout          time.Duration `json:"timeout"`
}

// ReconnectConfig controls the exponential backoff used between websocket reconnect attempts.
type ReconnectConfig struct {
	// BaseWait is the wait before the first reconnect attempt.
	BaseWait time.Duration `json:"base_wait" validate:"min=1ms"`
	// MaxWait caps the wait between attempts.
	MaxWait time.Duration `json:"max_wait" validate:"min=1ms"`
	// Multiplier grows the wait after each failed attempt.
	Multiplier float64 `json:"multiplier" validate:"min=1"`
	// Jitter is the randomization factor applied to every wait, in [0, 1).
	Jitter float64 `json:"jitter" validate:"min=0,max=1"`
}

// Config contains all configuration options for the REST gateway and the stream client.
type Config struct {
	APIKey    string `json:"api_key" validate:"required"`
	SecretKey string `json:"-" validate:"required"`

	BaseURL   string `json:"base_url" validate:"required,url"`
	StreamURL string `json:"stream_url" validate:"required,url"`

	// RecvWindow bounds how stale a signed request's timestamp may be, in milliseconds.
	RecvWindow int64 `json:"recv_window" validate:"min=1,max=60000"`

	// Timeout is the maximum duration for HTTP requests.
	Timeout time.Duration `json:"timeout" validate:"min=1ms"`

	RateLimitRequests int           `json:"rate_limit_requests" validate:"min=1"`
	RateLimitPeriod   time.Duration `json:"rate_limit_period" validate:"min=1ms"`

	CircuitBreaker CircuitBreakerConfig `json:"circuit_breaker"`

	// ListenKeyRefresh is the keepalive period of the listen key. MEXC expires keys after 60
	// minutes without a keepalive.
	ListenKeyRefresh time.Duration `json:"listen_key_refresh" validate:"min=1s"`

	PingInterval time.Duration   `json:"ping_interval" validate:"min=1ms"`
	PongWait     time.Duration   `json:"pong_wait" validate:"min=1ms"`
	DialTimeout  time.Duration   `json:"dial_timeout" validate:"min=1ms"`
	Reconnect    ReconnectConfig `json:"reconnect"`

	LogLevel string `json:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// DefaultConfig returns a Config for the production endpoints with the given credentials.
// Defaults: 5000ms recvWindow, 10s timeout, 20 req/s, 30m listen key refresh, 20s ping,
// 10s pong wait, 1s-30s reconnect backoff with 0.5 jitter.
func DefaultConfig(apiKey, secretKey string) *Config {
	return &Config{
		APIKey:     apiKey,
		SecretKey:  secretKey,
		BaseURL:    ProductionURL,
		StreamURL:  StreamURL,
		RecvWindow: 5000,
		Timeout:    10 * time.Second,

		RateLimitRequests: 20,
		RateLimitPeriod:   time.Second,

		CircuitBreaker: CircuitBreakerConfig{
			Enabled:          true,
			FailThreshold:    5,
			SuccessThreshold: 2,
			Timeout:          30 * time.Second,
		},

		ListenKeyRefresh: 30 * time.Minute,
		PingInterval:     20 * time.Second,
		PongWait:         10 * time.Second,
		DialTimeout:      10 * time.Second,
		Reconnect: ReconnectConfig{
			BaseWait:   1 * time.Second,
			MaxWait:    30 * time.Second,
			Multiplier: 2.0,
			Jitter:     0.5,
		},

		LogLevel: "info",
	}
}

var validate = validator.New()

// Validate checks struct constraints and the cross-field rules validator tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Reconnect.MaxWait < c.Reconnect.BaseWait {
		return errors.New("Reconnect.MaxWait must not be smaller than Reconnect.BaseWait")
	}
	if c.CircuitBreaker.Enabled {
		if c.CircuitBreaker.FailThreshold <= 0 {
			return errors.New("CircuitBreaker.FailThreshold must be positive when enabled")
		}
		if c.CircuitBreaker.SuccessThreshold <= 0 {
			return errors.New("CircuitBreaker.SuccessThreshold must be positive when enabled")
		}
		if c.CircuitBreaker.Timeout <= 0 {
			return errors.New("CircuitBreaker.Timeout must be positive when enabled")
		}
	}
	return nil
}

// WithBaseURL overrides the REST endpoint and returns the config for chaining.
func (c *Config) WithBaseURL(url string) *Config {
	c.BaseURL = url
	return c
}

// WithStreamURL overrides the websocket endpoint and returns the config for chaining.
func (c *Config) WithStreamURL(url string) *Config {
	c.StreamURL = url
	return c
}

// WithRecvWindow sets the signed request tolerance in milliseconds.
func (c *Config) WithRecvWindow(ms int64) *Config {
	c.RecvWindow = ms
	return c
}

// WithTimeout sets the request timeout and returns the config for chaining.
func (c *Config) WithTimeout(timeout time.Duration) *Config {
	c.Timeout = timeout
	return c
}

// WithRateLimit sets the rate limiting parameters and returns the config for chaining.
func (c *Config) WithRateLimit(requests int, period time.Duration) *Config {
	c.RateLimitRequests = requests
	c.RateLimitPeriod = period
	return c
}

// WithCircuitBreaker replaces the circuit breaker settings.
func (c *Config) WithCircuitBreaker(cb CircuitBreakerConfig) *Config {
	c.CircuitBreaker = cb
	return c
}

// WithListenKeyRefresh sets the listen key keepalive period.
func (c *Config) WithListenKeyRefresh(interval time.Duration) *Config {
	c.ListenKeyRefresh = interval
	return c
}

// WithKeepalive sets the websocket ping interval and the pong deadline.
func (c *Config) WithKeepalive(ping, pongWait time.Duration) *Config {
	c.PingInterval = ping
	c.PongWait = pongWait
	return c
}

// WithReconnect replaces the reconnect backoff settings.
func (c *Config) WithReconnect(rc ReconnectConfig) *Config {
	c.Reconnect = rc
	return c
}

// WithLogLevel sets the log level and returns the config for chaining.
func (c *Config) WithLogLevel(level string) *Config {
	c.LogLevel = level
	return c
}

// Logger returns base filtered to LogLevel. An empty or unknown level leaves base unchanged.
func (c *Config) Logger(base zerolog.Logger) zerolog.Logger {
	if c.LogLevel == "" {
		return base
	}
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return base
	}
	return base.Level(level)
}
