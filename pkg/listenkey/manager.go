// Package listenkey keeps a MEXC user data stream listen key alive.
//
// A Manager creates a key, then calls the keepalive endpoint on a fixed interval until it is
// stopped. Keepalive failures are reported to an error handler and the schedule continues, so
// a transient outage never ends the refresh loop.
package listenkey

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cryptowatch/clock"
	"github.com/rs/zerolog"

	"mexc/internal/metrics"
	"mexc/pkg/core"
)

// DefaultInterval is the keepalive period. Keys expire after 60 minutes without a keepalive.
const DefaultInterval = 30 * time.Minute

// Service is the subset of the REST API the manager needs.
type Service interface {
	CreateListenKey(ctx context.Context) (string, error)
	KeepAliveListenKey(ctx context.Context, listenKey string) error
	DeleteListenKey(ctx context.Context, listenKey string) error
}

// Manager owns the current listen key and its refresh loop.
type Manager struct {
	service     Service
	interval    time.Duration
	callTimeout time.Duration
	clock       clock.Clock
	logger      zerolog.Logger
	metrics     *metrics.Metrics
	onError     func(error)

	mu      sync.RWMutex
	token   string
	running bool
	cancel  context.CancelFunc
}

// Option configures a Manager.
type Option func(*Manager)

// WithInterval sets the keepalive period.
func WithInterval(d time.Duration) Option {
	return func(m *Manager) {
		m.interval = d
	}
}

// WithCallTimeout bounds each keepalive call.
func WithCallTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.callTimeout = d
	}
}

func WithClock(clk clock.Clock) Option {
	return func(m *Manager) {
		m.clock = clk
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = mt
	}
}

// WithErrorHandler receives every failed keepalive as a *core.TokenRefreshError. It runs on the
// refresh goroutine.
func WithErrorHandler(fn func(error)) Option {
	return func(m *Manager) {
		m.onError = fn
	}
}

func New(service Service, opts ...Option) *Manager {
	m := &Manager{
		service:     service,
		interval:    DefaultInterval,
		callTimeout: 10 * time.Second,
		clock:       clock.New(),
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start creates a new listen key and starts refreshing it every interval. On a running manager
// the previous refresh loop is stopped and the previous key is no longer tracked; it is not
// deleted server side.
func (m *Manager) Start(ctx context.Context) (string, error) {
	token, err := m.service.CreateListenKey(ctx)
	if err != nil {
		return "", fmt.Errorf("create listen key: %w", err)
	}
	if token == "" {
		return "", core.ErrNoListenKey
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	ticker := m.clock.Ticker(m.interval)

	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
	}
	m.token = token
	m.running = true
	m.cancel = cancel
	m.mu.Unlock()

	m.logger.Info().Dur("interval", m.interval).Msg("listen key created")

	go m.loop(loopCtx, ticker)
	return token, nil
}

// Token returns the current listen key, or "" before Start and after Revoke.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// Running reports whether the refresh loop is active.
func (m *Manager) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// Stop ends the refresh loop and cancels an in-flight keepalive. The key is kept and is not
// deleted server side. Stop is safe to call more than once and from the error handler.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

// Revoke stops the refresh loop and deletes the current key server side.
func (m *Manager) Revoke(ctx context.Context) error {
	m.Stop()

	m.mu.Lock()
	token := m.token
	m.token = ""
	m.mu.Unlock()

	if token == "" {
		return core.ErrNoListenKey
	}
	if err := m.service.DeleteListenKey(ctx, token); err != nil {
		return fmt.Errorf("delete listen key: %w", err)
	}
	m.logger.Info().Msg("listen key deleted")
	return nil
}

func (m *Manager) loop(ctx context.Context, ticker *clock.Ticker) {
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil || !m.Running() {
				return
			}
			m.refresh(ctx)
		}
	}
}

func (m *Manager) refresh(ctx context.Context) {
	token := m.Token()

	callCtx, cancel := context.WithTimeout(ctx, m.callTimeout)
	defer cancel()

	err := m.service.KeepAliveListenKey(callCtx, token)
	m.metrics.ObserveListenKeyRefresh(err)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		m.logger.Error().Err(err).Msg("listen key keepalive failed")
		if m.onError != nil {
			m.onError(&core.TokenRefreshError{Err: err})
		}
		return
	}
	m.logger.Debug().Msg("listen key kept alive")
}
