// Package rest sends signed and unsigned requests to the MEXC spot REST API.
//
// The Gateway sends every request exactly once. Failed calls are returned to the caller as
// *core.APIError (the server answered with a 4xx or 5xx status) or a wrapped transport error;
// nothing is retried. A rate limiter and an optional circuit breaker sit in front of the HTTP
// client.
package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/cryptowatch/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"mexc/internal/circuitbreaker"
	mhttp "mexc/internal/http"
	"mexc/internal/metrics"
	"mexc/internal/ratelimit"
	"mexc/internal/signer"
	"mexc/pkg/core"
)

// APIKeyHeader carries the API key on every request.
const APIKeyHeader = "X-MEXC-APIKEY"

// Response is a successful REST response.
type Response struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

// Decode unmarshals the body into v.
func (r *Response) Decode(v any) error {
	if err := sonic.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type errorBody struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// Gateway issues REST calls. It is safe for concurrent use.
type Gateway struct {
	http    *mhttp.Client
	signer  *signer.Signer
	limiter *ratelimit.RateLimiter
	breaker *circuitbreaker.Breaker
	metrics *metrics.Metrics
	clock   clock.Clock
	logger  zerolog.Logger
}

type options struct {
	logger     zerolog.Logger
	clock      clock.Clock
	metrics    *metrics.Metrics
	registerer prometheus.Registerer
}

// Option configures a Gateway.
type Option func(*options)

func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithClock sets the clock used for request timestamps and the circuit breaker.
func WithClock(clk clock.Clock) Option {
	return func(o *options) {
		o.clock = clk
	}
}

// WithRegisterer registers the gateway metrics on r.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = r
	}
}

// WithMetrics shares an existing set of collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// New validates config and creates a Gateway.
func New(config *core.Config, opts ...Option) (*Gateway, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	o := options{
		logger: zerolog.Nop(),
		clock:  clock.New(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.metrics == nil && o.registerer != nil {
		o.metrics = metrics.New(o.registerer)
	}
	logger := config.Logger(o.logger).With().Str("component", "rest").Logger()

	client, err := mhttp.NewClient(&mhttp.Config{
		BaseURL: config.BaseURL,
		Timeout: config.Timeout,
		Headers: map[string]string{
			"Content-Type": "application/json",
			APIKeyHeader:   config.APIKey,
		},
	}, mhttp.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("http client: %w", err)
	}

	g := &Gateway{
		http:    client,
		signer:  signer.New(config.APIKey, config.SecretKey, config.RecvWindow, signer.WithClock(o.clock)),
		limiter: ratelimit.New(config.RateLimitRequests, config.RateLimitPeriod),
		metrics: o.metrics,
		clock:   o.clock,
		logger:  logger,
	}

	if config.CircuitBreaker.Enabled {
		g.breaker = circuitbreaker.New(circuitbreaker.Config{
			FailThreshold:    config.CircuitBreaker.FailThreshold,
			SuccessThreshold: config.CircuitBreaker.SuccessThreshold,
			Timeout:          config.CircuitBreaker.Timeout,
			Clock:            o.clock,
			OnStateChange: func(from, to circuitbreaker.State) {
				g.metrics.SetBreakerState(int(to))
				g.logger.Warn().
					Str("from", from.String()).
					Str("to", to.String()).
					Msg("circuit breaker state changed")
			},
		})
	}

	return g, nil
}

// Request is shorthand for Do with a request built from its arguments.
func (g *Gateway) Request(ctx context.Context, method, path string, params *core.Params, signed bool) (*Response, error) {
	return g.Do(ctx, core.NewRequest(method, path).SetParams(params).SetSigned(signed))
}

// Do sends req once. Parameters with absent values are dropped and the order of the remaining
// ones is kept. Signed requests get recvWindow, timestamp and signature appended. req.Params is
// never modified.
func (g *Gateway) Do(ctx context.Context, req *core.Request) (*Response, error) {
	if g.breaker != nil && !g.breaker.Allow() {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.Path, core.ErrCircuitOpen)
	}

	weight := max(req.Weight, 1)
	if err := g.limiter.WaitBucket(ctx, req.Path, weight); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	params := req.Params.Compact()
	if req.Signed {
		params = g.signer.Sign(params)
	}

	url := req.Path
	if query := params.EncodeEscaped(); query != "" {
		url += "?" + query
	}

	start := g.clock.Now()
	resp, err := g.http.Do(ctx, req.Method, url)
	elapsed := g.clock.Now().Sub(start)

	if err != nil {
		g.record(false)
		g.metrics.ObserveREST(req.Method, 0, elapsed)
		if errors.Is(err, core.ErrClientClosed) {
			return nil, err
		}
		return nil, &core.TransportError{Op: req.Method + " " + req.Path, Err: err}
	}

	status := resp.StatusCode()
	g.record(status < http.StatusInternalServerError)
	g.metrics.ObserveREST(req.Method, status, elapsed)

	body := resp.Bytes()
	if status >= http.StatusBadRequest {
		apiErr := parseError(status, body)
		g.logger.Warn().
			Str("method", req.Method).
			Str("path", req.Path).
			Int("status", status).
			Int("code", apiErr.Code).
			Str("msg", apiErr.Message).
			Msg("api error")
		return nil, apiErr
	}

	return &Response{
		StatusCode: status,
		Body:       body,
		Header:     resp.Header(),
	}, nil
}

func (g *Gateway) record(success bool) {
	if g.breaker != nil {
		g.breaker.Record(success)
	}
}

func parseError(status int, body []byte) *core.APIError {
	var eb errorBody
	if err := sonic.Unmarshal(body, &eb); err != nil {
		return core.NewAPIError(status, 0, "")
	}
	return core.NewAPIError(status, eb.Code, eb.Msg)
}

// Limiter exposes the rate limiter, for example to tune per-endpoint buckets.
func (g *Gateway) Limiter() *ratelimit.RateLimiter {
	return g.limiter
}

// Breaker returns the circuit breaker or nil when it is disabled.
func (g *Gateway) Breaker() *circuitbreaker.Breaker {
	return g.breaker
}

// APIKey returns the key sent in APIKeyHeader.
func (g *Gateway) APIKey() string {
	return g.signer.APIKey()
}

// Close releases the HTTP client. Later calls fail with core.ErrClientClosed.
func (g *Gateway) Close() error {
	return g.http.Close()
}
