package spot

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"mexc/pkg/core"
	"mexc/pkg/rest"
)

// Client wraps a rest.Gateway with typed MEXC spot endpoints.
type Client struct {
	gateway    *rest.Gateway
	normalizer *Normalizer
	// owned is set when New created the gateway, so Close releases it.
	owned bool
}

// New creates a Client with its own gateway.
func New(config *core.Config, opts ...rest.Option) (*Client, error) {
	g, err := rest.New(config, opts...)
	if err != nil {
		return nil, err
	}
	c := NewWithGateway(g)
	c.owned = true
	return c, nil
}

// NewWithGateway creates a Client over an existing gateway. Close leaves the gateway open.
func NewWithGateway(g *rest.Gateway) *Client {
	return &Client{gateway: g, normalizer: NewNormalizer()}
}

// Gateway returns the underlying gateway for endpoints without a typed wrapper.
func (c *Client) Gateway() *rest.Gateway {
	return c.gateway
}

// Close releases the gateway if the client owns it.
func (c *Client) Close() error {
	if c.owned {
		return c.gateway.Close()
	}
	return nil
}

// Option configures optional endpoint parameters.
type Option func(*Options)

// Options holds the optional parameters shared by list endpoints.
type Options struct {
	Limit     int
	Page      int
	StartTime time.Time
	EndTime   time.Time
	// Status filters deposit and withdrawal histories.
	Status *int
}

func WithLimit(limit int) Option {
	return func(o *Options) {
		o.Limit = limit
	}
}

// WithPage selects a page of paginated wallet, sub-account and rebate endpoints.
func WithPage(page int) Option {
	return func(o *Options) {
		o.Page = page
	}
}

func WithStatus(status int) Option {
	return func(o *Options) {
		o.Status = &status
	}
}

// WithTimeRange bounds the result by time. A zero bound is omitted.
func WithTimeRange(start, end time.Time) Option {
	return func(o *Options) {
		o.StartTime = start
		o.EndTime = end
	}
}

func ApplyOptions(opts ...Option) *Options {
	o := &Options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// apply sets limit, startTime and endTime in that order. Unset values stay absent so the
// gateway drops them.
func (o *Options) apply(params *core.Params) *core.Params {
	params.Set("limit", positive(o.Limit))
	params.Set("startTime", millis(o.StartTime))
	params.Set("endTime", millis(o.EndTime))
	return params
}

// paged sets startTime, endTime, page and then limitKey, the page size parameter of the
// endpoint. An empty limitKey leaves the page size out.
func (o *Options) paged(params *core.Params, limitKey string) *core.Params {
	params.Set("startTime", millis(o.StartTime))
	params.Set("endTime", millis(o.EndTime))
	params.Set("page", positive(o.Page))
	if limitKey != "" {
		params.Set(limitKey, positive(o.Limit))
	}
	return params
}

func positive(n int) any {
	if n <= 0 {
		return nil
	}
	return n
}

func millis(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UnixMilli()
}

func optional(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// formatSymbol uppercases a symbol or an asset name.
func formatSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// call sends one request and decodes the body into out when out is not nil.
func (c *Client) call(ctx context.Context, req *core.Request, out any) error {
	resp, err := c.gateway.Do(ctx, req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := resp.Decode(out); err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.Path, err)
	}
	return nil
}

// callList decodes a response that is a single object when a symbol is given and an array
// otherwise, always returning a slice.
func callList[T any](ctx context.Context, c *Client, req *core.Request) ([]T, error) {
	resp, err := c.gateway.Do(ctx, req)
	if err != nil {
		return nil, err
	}

	body := bytes.TrimSpace(resp.Body)
	if len(body) > 0 && body[0] == '{' {
		var one T
		if err := sonic.Unmarshal(body, &one); err != nil {
			return nil, fmt.Errorf("%s %s: decode: %w", req.Method, req.Path, err)
		}
		return []T{one}, nil
	}

	var many []T
	if err := sonic.Unmarshal(body, &many); err != nil {
		return nil, fmt.Errorf("%s %s: decode: %w", req.Method, req.Path, err)
	}
	return many, nil
}
