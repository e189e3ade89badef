package stream

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/cryptowatch/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"mexc/internal/metrics"
	"mexc/internal/transport"
	"mexc/internal/ws"
	"mexc/pkg/core"
	"mexc/pkg/listenkey"
	"mexc/pkg/rest"
	"mexc/pkg/spot"
)

// Client is the websocket stream client. Create it with New; it is safe for concurrent use.
type Client struct {
	config   *core.Config
	handlers Handlers
	registry *Registry
	keys     *listenkey.Manager
	conn     *ws.Conn
	logger   zerolog.Logger

	// owned is closed with the client when New created the REST service itself.
	owned     io.Closer
	closed    atomic.Bool
	closeOnce sync.Once
}

type options struct {
	logger     zerolog.Logger
	clock      clock.Clock
	dialer     ws.Dialer
	service    listenkey.Service
	registerer prometheus.Registerer
}

// Option configures a Client.
type Option func(*options)

func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithClock sets the clock driving keepalive pings, reconnect waits and listen key refreshes.
func WithClock(clk clock.Clock) Option {
	return func(o *options) {
		o.clock = clk
	}
}

// WithDialer replaces the gws dialer.
func WithDialer(d ws.Dialer) Option {
	return func(o *options) {
		o.dialer = d
	}
}

// WithListenKeyService replaces the REST client used to create and refresh listen keys.
func WithListenKeyService(s listenkey.Service) Option {
	return func(o *options) {
		o.service = s
	}
}

// WithRegisterer registers stream, listen key and REST metrics on r.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = r
	}
}

// New obtains a listen key, starts refreshing it and starts connecting to
// StreamURL?listenKey=<key>. It blocks only for the listen key request; use WaitOpen to wait
// for the connection.
func New(ctx context.Context, config *core.Config, handlers Handlers, opts ...Option) (*Client, error) {
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

	logger := config.Logger(o.logger)
	var m *metrics.Metrics
	if o.registerer != nil {
		m = metrics.New(o.registerer)
	}

	c := &Client{
		config:   config,
		handlers: handlers,
		registry: NewRegistry(),
		logger:   logger.With().Str("component", "stream").Logger(),
	}

	if o.service == nil {
		sc, err := spot.New(config,
			rest.WithLogger(logger),
			rest.WithClock(o.clock),
			rest.WithMetrics(m),
		)
		if err != nil {
			return nil, err
		}
		o.service = sc
		c.owned = sc
	}
	if o.dialer == nil {
		o.dialer = transport.NewDialer(transport.WithLogger(logger))
	}

	c.keys = listenkey.New(o.service,
		listenkey.WithInterval(config.ListenKeyRefresh),
		listenkey.WithCallTimeout(config.Timeout),
		listenkey.WithClock(o.clock),
		listenkey.WithLogger(logger.With().Str("component", "listenkey").Logger()),
		listenkey.WithMetrics(m),
		listenkey.WithErrorHandler(c.reportError),
	)
	if _, err := c.keys.Start(ctx); err != nil {
		c.closeOwned()
		return nil, err
	}

	c.conn = ws.NewConn(ws.Config{
		PingInterval: config.PingInterval,
		PongWait:     config.PongWait,
		DialTimeout:  config.DialTimeout,
		BaseWait:     config.Reconnect.BaseWait,
		MaxWait:      config.Reconnect.MaxWait,
		Multiplier:   config.Reconnect.Multiplier,
		Jitter:       config.Reconnect.Jitter,
	}, o.dialer, c.streamURL, ws.Handlers{
		Replay:    c.replay,
		OnOpen:    handlers.OnOpen,
		OnMessage: handlers.OnMessage,
		OnError:   c.reportError,
		OnClose:   handlers.OnClose,
	},
		ws.WithLogger(c.logger),
		ws.WithClock(o.clock),
		ws.WithMetrics(m),
	)
	if err := c.conn.Start(); err != nil {
		c.keys.Stop()
		c.closeOwned()
		return nil, err
	}
	return c, nil
}

// streamURL is evaluated before every dial so a reconnect always uses the current key.
func (c *Client) streamURL() string {
	return c.config.StreamURL + "?listenKey=" + url.QueryEscape(c.keys.Token())
}

// replay sends every tracked topic on a fresh connection ahead of any other subscription change.
func (c *Client) replay(w ws.Writer) {
	topics := c.registry.All()
	for _, topic := range topics {
		if err := w.Send(newRequest(Subscribe, topic)); err != nil {
			c.logger.Warn().Err(err).Str("topic", string(topic)).Msg("replay failed")
			break
		}
	}
	c.logger.Info().Int("topics", len(topics)).Msg("subscriptions replayed")
}

func (c *Client) reportError(err error) {
	if c.closed.Load() {
		return
	}
	if c.handlers.OnError != nil {
		c.handlers.OnError(err)
	}
}

// changeSubscription updates the registry and always sends the request, even when the topic
// already had the requested state. When the connection is not open the registry is still
// updated, core.ErrNotConnected is returned and the topic is sent on the next open.
func (c *Client) changeSubscription(topic Topic, action Action) error {
	switch action {
	case Subscribe:
		c.registry.Add(topic)
	case Unsubscribe:
		c.registry.Remove(topic)
	default:
		return fmt.Errorf("unknown action %q", action)
	}

	c.logger.Debug().Str("topic", string(topic)).Str("action", string(action)).Msg("subscription change")
	return c.conn.Send(newRequest(action, topic))
}

// Subscribe subscribes to an arbitrary topic.
func (c *Client) Subscribe(topic Topic) error {
	return c.changeSubscription(topic, Subscribe)
}

func (c *Client) Unsubscribe(topic Topic) error {
	return c.changeSubscription(topic, Unsubscribe)
}

func (c *Client) SubscribeTrades(symbol string) error {
	return c.Subscribe(TradesTopic(symbol))
}

func (c *Client) UnsubscribeTrades(symbol string) error {
	return c.Unsubscribe(TradesTopic(symbol))
}

func (c *Client) SubscribeKlines(symbol string, interval KlineInterval) error {
	topic, err := KlineTopic(symbol, interval)
	if err != nil {
		return err
	}
	return c.Subscribe(topic)
}

func (c *Client) UnsubscribeKlines(symbol string, interval KlineInterval) error {
	topic, err := KlineTopic(symbol, interval)
	if err != nil {
		return err
	}
	return c.Unsubscribe(topic)
}

func (c *Client) SubscribeDiffDepth(symbol string) error {
	return c.Subscribe(DiffDepthTopic(symbol))
}

func (c *Client) UnsubscribeDiffDepth(symbol string) error {
	return c.Unsubscribe(DiffDepthTopic(symbol))
}

// SubscribePartialDepth subscribes to the top level bids and asks. level must be 5, 10 or 20.
func (c *Client) SubscribePartialDepth(symbol string, level int) error {
	topic, err := PartialDepthTopic(symbol, level)
	if err != nil {
		return err
	}
	return c.Subscribe(topic)
}

func (c *Client) UnsubscribePartialDepth(symbol string, level int) error {
	topic, err := PartialDepthTopic(symbol, level)
	if err != nil {
		return err
	}
	return c.Unsubscribe(topic)
}

func (c *Client) SubscribeBookTicker(symbol string) error {
	return c.Subscribe(BookTickerTopic(symbol))
}

func (c *Client) UnsubscribeBookTicker(symbol string) error {
	return c.Unsubscribe(BookTickerTopic(symbol))
}

func (c *Client) SubscribeAccount() error {
	return c.Subscribe(AccountTopic)
}

func (c *Client) UnsubscribeAccount() error {
	return c.Unsubscribe(AccountTopic)
}

func (c *Client) SubscribeAccountDeals() error {
	return c.Subscribe(AccountDealsTopic)
}

func (c *Client) UnsubscribeAccountDeals() error {
	return c.Unsubscribe(AccountDealsTopic)
}

func (c *Client) SubscribeAccountOrders() error {
	return c.Subscribe(AccountOrdersTopic)
}

func (c *Client) UnsubscribeAccountOrders() error {
	return c.Unsubscribe(AccountOrdersTopic)
}

// Subscriptions returns the tracked topics in lexical order.
func (c *Client) Subscriptions() []Topic {
	return c.registry.All()
}

func (c *Client) State() ConnState {
	return c.conn.State()
}

// WaitOpen blocks until the connection is open, ctx is done or the client is closed.
func (c *Client) WaitOpen(ctx context.Context) error {
	return c.conn.WaitOpen(ctx)
}

// ListenKey returns the listen key used for the next connection attempt.
func (c *Client) ListenKey() string {
	return c.keys.Token()
}

// RevokeListenKey stops refreshing the listen key and deletes it server side. The current
// connection stays up until the server drops it.
func (c *Client) RevokeListenKey(ctx context.Context) error {
	return c.keys.Revoke(ctx)
}

// Close closes the connection, disables reconnects and stops the listen key refresh. The key
// is not deleted; call RevokeListenKey first for that. Close is safe to call more than once,
// also from a handler. When a handler is running Close does not wait for it, but no handler
// runs after it returns.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		err = c.conn.Close()
		c.keys.Stop()
		if cerr := c.closeOwned(); err == nil {
			err = cerr
		}
	})
	return err
}

func (c *Client) closeOwned() error {
	if c.owned == nil {
		return nil
	}
	return c.owned.Close()
}
