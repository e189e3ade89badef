package ws

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cenkalti/backoff/v4"
	"github.com/cryptowatch/clock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"mexc/internal/metrics"
	"mexc/pkg/core"
)

var (
	errPongTimeout  = errors.New("pong not received before deadline")
	errRemoteClosed = errors.New("connection closed by remote")
)

// Socket is one established websocket connection.
type Socket interface {
	WriteText(data []byte) error
	WritePing() error
	Close() error
}

// EventSink receives the inbound events of one Socket. Implementations of Dialer call it from
// their read goroutine.
type EventSink interface {
	OnMessage(data []byte)
	OnPong()
	OnClose(err error)
}

// Dialer opens sockets. The returned Socket must deliver its events to sink until it is closed.
type Dialer interface {
	Dial(ctx context.Context, url string, sink EventSink) (Socket, error)
}

// Writer sends a message on the connection that is being opened.
type Writer interface {
	Send(v any) error
}

// Handlers are the connection lifecycle hooks. All of them run on the connection loop goroutine.
type Handlers struct {
	// Replay runs every time a connection is established, before any other Send on that
	// connection is written. It holds the write lock, so it must write through w.
	Replay func(w Writer)
	// OnOpen runs once Replay has returned. Conn.Send may be called from it.
	OnOpen func()
	// OnMessage receives every inbound text frame verbatim.
	OnMessage func(data []byte)
	// OnError receives transport failures. A reconnect is always scheduled afterwards.
	OnError func(err error)
	// OnClose runs when an open connection ends; err is nil for an explicit Close.
	OnClose func(err error)
}

// Config holds the keepalive and reconnect settings of a Conn.
type Config struct {
	// PingInterval is the duration between ping frames while open.
	PingInterval time.Duration
	// PongWait is how long after a ping a pong must arrive before the connection is considered dead.
	PongWait time.Duration
	// DialTimeout bounds a single connection attempt.
	DialTimeout time.Duration
	// BaseWait is the initial duration to wait before the first reconnection attempt.
	BaseWait time.Duration
	// MaxWait is the maximum duration to wait between reconnection attempts.
	MaxWait time.Duration
	// Multiplier grows the wait after each failed attempt.
	Multiplier float64
	// Jitter randomizes each wait by up to this fraction.
	Jitter float64
}

func (c *Config) applyDefaults() {
	if c.PingInterval == 0 {
		c.PingInterval = 20 * time.Second
	}
	if c.PongWait == 0 {
		c.PongWait = 10 * time.Second
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 10 * time.Second
	}
	if c.BaseWait == 0 {
		c.BaseWait = 1 * time.Second
	}
	if c.MaxWait == 0 {
		c.MaxWait = 30 * time.Second
	}
	if c.Multiplier < 1 {
		c.Multiplier = 2.0
	}
}

// Option configures a Conn.
type Option func(*Conn)

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Conn) {
		c.logger = logger
	}
}

func WithClock(clk clock.Clock) Option {
	return func(c *Conn) {
		c.clock = clk
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Conn) {
		c.metrics = m
	}
}

type eventKind int

const (
	eventMessage eventKind = iota
	eventPong
	eventClosed
)

type event struct {
	kind  eventKind
	epoch string
	data  []byte
	err   error
}

// Conn is a self-healing websocket connection. After Start it keeps a connection open to the
// URL returned by urlFn, redialing with exponential backoff whenever the connection fails,
// until Close is called. urlFn is evaluated before every dial.
type Conn struct {
	config   Config
	dialer   Dialer
	urlFn    func() string
	handlers Handlers
	clock    clock.Clock
	logger   zerolog.Logger
	metrics  *metrics.Metrics
	state    State

	// writeMu serializes socket writes and guards sock and epoch.
	writeMu sync.Mutex
	sock    Socket
	epoch   string

	openMu sync.Mutex
	openCh chan struct{}

	// handlerMu guards inHandler and detached. Once detached is set no handler runs again.
	handlerMu sync.Mutex
	inHandler bool
	detached  bool

	events   chan event
	started  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewConn creates a connection in the Disconnected state. Nothing is dialed until Start.
func NewConn(config Config, dialer Dialer, urlFn func() string, handlers Handlers, opts ...Option) *Conn {
	config.applyDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		config:   config,
		dialer:   dialer,
		urlFn:    urlFn,
		handlers: handlers,
		clock:    clock.New(),
		logger:   zerolog.Nop(),
		openCh:   make(chan struct{}),
		events:   make(chan event, 256),
		stopCh:   make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.state.Store(StateDisconnected)
	return c
}

// Start launches the connection loop and returns immediately. Use WaitOpen to block until the
// first connection is established.
func (c *Conn) Start() error {
	select {
	case <-c.stopCh:
		return core.ErrClientClosed
	default:
	}
	if !c.started.CompareAndSwap(false, true) {
		return core.ErrAlreadyStarted
	}
	c.setState(StateConnecting)
	go c.loop()
	return nil
}

// State returns the current connection state.
func (c *Conn) State() ConnState {
	return c.state.Load()
}

// IsOpen returns true if the websocket has an active connection.
func (c *Conn) IsOpen() bool {
	return c.state.Load() == StateOpen
}

// WaitOpen blocks until the connection is open, ctx is done or the connection is closed.
func (c *Conn) WaitOpen(ctx context.Context) error {
	c.openMu.Lock()
	ch := c.openCh
	c.openMu.Unlock()

	select {
	case <-ch:
		return nil
	case <-c.stopCh:
		return core.ErrClientClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Send marshals v to JSON and writes it as a text frame. It fails with core.ErrNotConnected
// unless the connection is open; nothing is queued. A failed write closes the socket, which
// schedules a reconnect, and returns a *core.TransportError.
func (c *Conn) Send(v any) error {
	data, err := sonic.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.writeLocked(data)
}

func (c *Conn) writeLocked(data []byte) error {
	if c.sock == nil || c.state.Load() != StateOpen {
		return core.ErrNotConnected
	}
	if err := c.sock.WriteText(data); err != nil {
		_ = c.sock.Close()
		return &core.TransportError{Op: "write", Err: err}
	}
	c.metrics.IncSent()
	c.logger.Debug().Str("data", string(data)).Msg("sent websocket message")
	return nil
}

type openWriter struct {
	c *Conn
}

func (w openWriter) Send(v any) error {
	data, err := sonic.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return w.c.writeLocked(data)
}

// Close stops the connection loop, closes the socket and disables reconnects. It is safe to
// call from any state and more than once.
//
// Close waits for the loop to exit. When a handler is running at that moment, which is always
// the case when Close is called from a handler, Close returns at once instead: the running
// handler completes and no handler is invoked after it. Done reports the loop exit.
func (c *Conn) Close() error {
	c.stopOnce.Do(func() {
		close(c.stopCh)
		c.cancel()
	})
	if !c.started.Load() {
		return nil
	}

	c.handlerMu.Lock()
	busy := c.inHandler
	if busy {
		c.detached = true
	}
	c.handlerMu.Unlock()

	if !busy {
		<-c.done
	}
	return nil
}

// Done is closed once the connection loop has exited after Close.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

func (c *Conn) stopped() bool {
	select {
	case <-c.stopCh:
		return true
	default:
		return false
	}
}

func (c *Conn) setState(s ConnState) {
	if prev := c.state.Swap(s); prev != s {
		c.metrics.SetStreamState(int(s))
		c.logger.Debug().Str("from", prev.String()).Str("to", s.String()).Msg("websocket state")
	}
}

func (c *Conn) loop() {
	defer close(c.done)
	defer c.setState(StateDisconnected)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.config.BaseWait
	bo.MaxInterval = c.config.MaxWait
	bo.Multiplier = c.config.Multiplier
	bo.RandomizationFactor = c.config.Jitter
	bo.MaxElapsedTime = 0
	bo.Clock = c.clock
	bo.Reset()

	failures := 0
	for {
		sock, epoch, err := c.dial()
		if err == nil {
			bo.Reset()
			failures = 0
			err = c.serve(sock, epoch)
		}
		failures++
		if c.stopped() {
			return
		}

		c.setState(StateReconnecting)
		c.callback(func() {
			if c.handlers.OnError != nil {
				c.handlers.OnError(err)
			}
		})

		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			wait = c.config.MaxWait
		}
		c.metrics.IncReconnect()
		c.logger.Warn().Err(err).
			Dur("wait", wait).
			Int("failures", failures).
			Msg("websocket reconnect scheduled")

		if !c.sleep(wait) {
			return
		}
	}
}

func (c *Conn) dial() (Socket, string, error) {
	rawURL := c.urlFn()
	epoch := uuid.NewString()

	ctx, cancel := context.WithTimeout(c.ctx, c.config.DialTimeout)
	defer cancel()

	sock, err := c.dialer.Dial(ctx, rawURL, &socketSink{conn: c, epoch: epoch})
	if err != nil {
		return nil, "", &core.TransportError{Op: "dial", Err: err}
	}

	c.logger.Info().
		Str("url", redactURL(rawURL)).
		Str("epoch", epoch).
		Msg("websocket connected")
	return sock, epoch, nil
}

// serve runs one connection until it fails or Close is called.
func (c *Conn) serve(sock Socket, epoch string) error {
	ticker := c.clock.Ticker(c.config.PingInterval)

	c.writeMu.Lock()
	if c.stopped() {
		c.writeMu.Unlock()
		ticker.Stop()
		_ = sock.Close()
		return nil
	}
	c.sock = sock
	c.epoch = epoch
	c.setState(StateOpen)
	c.callback(func() {
		if c.handlers.Replay != nil {
			c.handlers.Replay(openWriter{c: c})
		}
	})
	c.writeMu.Unlock()

	c.openMu.Lock()
	close(c.openCh)
	c.openMu.Unlock()

	c.callback(func() {
		if c.handlers.OnOpen != nil {
			c.handlers.OnOpen()
		}
	})

	// the ticker is released before the state leaves Open
	err := c.readEvents(epoch, ticker)
	ticker.Stop()

	next := StateReconnecting
	if c.stopped() {
		next = StateClosing
		err = nil
	}
	c.detach(sock, next)

	c.callback(func() {
		if c.handlers.OnClose != nil {
			c.handlers.OnClose(err)
		}
	})
	return err
}

func (c *Conn) readEvents(epoch string, ticker *clock.Ticker) error {
	var (
		pongTimer *clock.Timer
		pongC     <-chan time.Time
	)
	defer func() {
		if pongTimer != nil {
			pongTimer.Stop()
		}
	}()

	for {
		select {
		case <-c.stopCh:
			return nil

		case ev := <-c.events:
			if ev.epoch != epoch {
				continue
			}
			switch ev.kind {
			case eventMessage:
				c.metrics.IncMessage()
				c.callback(func() {
					if c.handlers.OnMessage != nil {
						c.handlers.OnMessage(ev.data)
					}
				})
			case eventPong:
				if pongTimer != nil {
					pongTimer.Stop()
					pongTimer, pongC = nil, nil
				}
			case eventClosed:
				if ev.err == nil {
					ev.err = errRemoteClosed
				}
				return &core.TransportError{Op: "read", Err: ev.err}
			}

		case <-ticker.C:
			if pongTimer == nil {
				pongTimer = c.clock.Timer(c.config.PongWait)
				pongC = pongTimer.C
			}
			if err := c.ping(); err != nil {
				return &core.TransportError{Op: "ping", Err: err}
			}

		case <-pongC:
			pongTimer = nil
			return &core.TransportError{Op: "keepalive", Err: errPongTimeout}
		}
	}
}

func (c *Conn) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.sock == nil {
		return core.ErrNotConnected
	}
	return c.sock.WritePing()
}

func (c *Conn) detach(sock Socket, next ConnState) {
	c.writeMu.Lock()
	if c.sock == sock {
		c.sock = nil
		c.epoch = ""
	}
	c.setState(next)
	c.writeMu.Unlock()

	c.openMu.Lock()
	c.openCh = make(chan struct{})
	c.openMu.Unlock()

	_ = sock.Close()
}

// sleep waits for d on the connection clock. It returns false if Close was called.
func (c *Conn) sleep(d time.Duration) bool {
	timer := c.clock.Timer(d)

	for {
		select {
		case <-timer.C:
			return true
		case <-c.stopCh:
			timer.Stop()
			return false
		case <-c.events:
			// stale events of the dropped socket
		}
	}
}

// callback runs fn as a handler unless a non-waiting Close has detached the handlers.
func (c *Conn) callback(fn func()) {
	c.handlerMu.Lock()
	if c.detached {
		c.handlerMu.Unlock()
		return
	}
	c.inHandler = true
	c.handlerMu.Unlock()

	defer func() {
		c.handlerMu.Lock()
		c.inHandler = false
		c.handlerMu.Unlock()
	}()
	fn()
}

type socketSink struct {
	conn  *Conn
	epoch string
}

func (s *socketSink) push(ev event) {
	ev.epoch = s.epoch
	select {
	case s.conn.events <- ev:
	case <-s.conn.stopCh:
	}
}

func (s *socketSink) OnMessage(data []byte) {
	s.push(event{kind: eventMessage, data: data})
}

func (s *socketSink) OnPong() {
	s.push(event{kind: eventPong})
}

func (s *socketSink) OnClose(err error) {
	s.push(event{kind: eventClosed, err: err})
}

// redactURL drops the query string, which carries the listen key.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	u.RawQuery = ""
	return u.String()
}
