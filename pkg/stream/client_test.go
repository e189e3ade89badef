package stream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cryptowatch/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mexc/internal/ws/wstest"
	"mexc/pkg/core"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type fakeKeys struct {
	mu         sync.Mutex
	next       int
	createErr  error
	keepAlives []string
	keepErr    error
	deleted    []string
}

func (f *fakeKeys) CreateListenKey(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.next++
	return "key-" + string(rune('0'+f.next)), nil
}

func (f *fakeKeys) KeepAliveListenKey(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keepAlives = append(f.keepAlives, key)
	return f.keepErr
}

func (f *fakeKeys) DeleteListenKey(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeKeys) KeepAlives() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.keepAlives)
}

type harness struct {
	client *Client
	dialer *wstest.Dialer
	keys   *fakeKeys
	clock  *clock.Mock

	mu     sync.Mutex
	opens  int
	errs   []error
	closes []error
}

func newHarness(t *testing.T, dialer *wstest.Dialer, keys *fakeKeys) (*harness, error) {
	t.Helper()

	mock := clock.NewMockOpt(clock.MockOpt{Gosched: func() {}})
	mock.Set(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	h := &harness{dialer: dialer, keys: keys, clock: mock}
	handlers := Handlers{
		OnOpen: func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.opens++
		},
		OnError: func(err error) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.errs = append(h.errs, err)
		},
		OnClose: func(err error) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.closes = append(h.closes, err)
		},
	}

	// pings stay out of the way of the mock clock
	config := core.DefaultConfig("test-key", "test-secret").WithKeepalive(24*time.Hour, 10*time.Second)
	client, err := New(context.Background(), config, handlers,
		WithDialer(dialer),
		WithListenKeyService(keys),
		WithClock(mock),
	)
	if err != nil {
		return nil, err
	}
	h.client = client
	t.Cleanup(func() { _ = client.Close() })
	return h, nil
}

func startHarness(t *testing.T) *harness {
	t.Helper()

	h, err := newHarness(t, wstest.NewDialer(true), &fakeKeys{})
	require.NoError(t, err)
	h.waitOpen(t)
	return h
}

func (h *harness) waitOpen(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, h.client.WaitOpen(ctx))
	require.Eventually(t, func() bool { return h.Opens() >= 1 }, waitFor, tick)
}

// reconnect drops the current socket and advances the clock until the replacement has run
// OnOpen, which happens after the replay. The clock only moves once the loop has left the
// dropped connection.
func (h *harness) reconnect(t *testing.T) *wstest.Socket {
	t.Helper()
	opens := h.Opens()
	h.dialer.Last().Drop(errors.New("connection reset"))

	require.Eventually(t, func() bool { return h.client.State() == StateReconnecting }, waitFor, tick)
	require.Eventually(t, func() bool {
		h.clock.Add(time.Second)
		return h.Opens() > opens
	}, waitFor, tick)
	return h.dialer.Last()
}

func (h *harness) Opens() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.opens
}

func (h *harness) Errors() []error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]error(nil), h.errs...)
}

func subscription(topic string) string {
	return `{"method":"SUBSCRIPTION","params":["` + topic + `"]}`
}

func unsubscription(topic string) string {
	return `{"method":"UNSUBSCRIPTION","params":["` + topic + `"]}`
}

func TestClient_PartialDepthEndToEnd(t *testing.T) {
	h := startHarness(t)

	assert.Equal(t, "key-1", h.client.ListenKey())
	assert.Equal(t, StateOpen, h.client.State())
	assert.Equal(t, []string{"wss://wbs.mexc.com/ws?listenKey=key-1"}, h.dialer.URLs())

	require.NoError(t, h.client.SubscribePartialDepth("ethusdt", 10))

	written := h.dialer.Last().Written()
	require.Len(t, written, 1)
	assert.JSONEq(t,
		`{"method":"SUBSCRIPTION","params":["spot@public.limit.depth.v3.api@ETHUSDT@10"]}`,
		written[0])
}

func TestClient_SubscribeMethods(t *testing.T) {
	h := startHarness(t)
	c := h.client

	require.NoError(t, c.SubscribeTrades("btcusdt"))
	require.NoError(t, c.SubscribeKlines("btcusdt", Min5))
	require.NoError(t, c.SubscribeDiffDepth("btcusdt"))
	require.NoError(t, c.SubscribePartialDepth("btcusdt", 20))
	require.NoError(t, c.SubscribeBookTicker("btcusdt"))
	require.NoError(t, c.SubscribeAccount())
	require.NoError(t, c.SubscribeAccountDeals())
	require.NoError(t, c.SubscribeAccountOrders())

	assert.Len(t, c.Subscriptions(), 8)
	assert.Len(t, h.dialer.Last().Written(), 8)

	require.NoError(t, c.UnsubscribeTrades("BTCUSDT"))
	require.NoError(t, c.UnsubscribeKlines("BTCUSDT", Min5))
	require.NoError(t, c.UnsubscribeDiffDepth("BTCUSDT"))
	require.NoError(t, c.UnsubscribePartialDepth("BTCUSDT", 20))
	require.NoError(t, c.UnsubscribeBookTicker("BTCUSDT"))
	require.NoError(t, c.UnsubscribeAccount())
	require.NoError(t, c.UnsubscribeAccountDeals())
	require.NoError(t, c.UnsubscribeAccountOrders())

	assert.Empty(t, c.Subscriptions())
	written := h.dialer.Last().Written()
	require.Len(t, written, 16)
	assert.JSONEq(t, unsubscription("spot@private.orders.v3.api"), written[15])
}

func TestClient_InvalidParametersSendNothing(t *testing.T) {
	h := startHarness(t)

	assert.ErrorIs(t, h.client.SubscribePartialDepth("BTCUSDT", 7), core.ErrInvalidDepthLevel)
	assert.ErrorIs(t, h.client.SubscribeKlines("BTCUSDT", "Min3"), core.ErrInvalidInterval)
	assert.Empty(t, h.client.Subscriptions())
	assert.Empty(t, h.dialer.Last().Written())
}

func TestClient_DuplicateSubscribeStillSends(t *testing.T) {
	h := startHarness(t)

	require.NoError(t, h.client.SubscribeTrades("BTCUSDT"))
	require.NoError(t, h.client.SubscribeTrades("btcusdt"))

	assert.Len(t, h.dialer.Last().Written(), 2)
	assert.Equal(t, []Topic{TradesTopic("BTCUSDT")}, h.client.Subscriptions())
}

func TestClient_ReplayAfterReconnect(t *testing.T) {
	h := startHarness(t)
	a := TradesTopic("BTCUSDT")
	b := BookTickerTopic("ETHUSDT")

	require.NoError(t, h.client.Subscribe(a))
	require.NoError(t, h.client.Subscribe(b))
	require.NoError(t, h.client.Subscribe(a))

	for i := 0; i < 3; i++ {
		sock := h.reconnect(t)
		assert.Equal(t, []string{subscription(string(b)), subscription(string(a))}, sock.Written(),
			"reconnect %d", i+1)
	}

	require.Eventually(t, func() bool { return h.Opens() == 4 }, waitFor, tick)
	assert.Equal(t, 4, h.dialer.Dials())
	for _, url := range h.dialer.URLs() {
		assert.Equal(t, "wss://wbs.mexc.com/ws?listenKey=key-1", url)
	}
}

func TestClient_UnsubscribeRemovesReplay(t *testing.T) {
	h := startHarness(t)
	a := TradesTopic("BTCUSDT")
	b := DiffDepthTopic("BTCUSDT")

	require.NoError(t, h.client.Subscribe(a))
	require.NoError(t, h.client.Subscribe(b))
	require.NoError(t, h.client.Unsubscribe(a))

	sock := h.reconnect(t)

	assert.Equal(t, []string{subscription(string(b))}, sock.Written())
	for _, msg := range sock.Written() {
		assert.NotContains(t, msg, string(a))
	}
}

func TestClient_SubscribeWhileReconnecting(t *testing.T) {
	dialer := wstest.NewDialer(true)
	dialer.FailNext(errors.New("connection refused"))
	h, err := newHarness(t, dialer, &fakeKeys{})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return h.client.State() == StateReconnecting }, waitFor, tick)

	err = h.client.SubscribeBookTicker("btcusdt")
	assert.ErrorIs(t, err, core.ErrNotConnected)
	assert.Equal(t, []Topic{BookTickerTopic("BTCUSDT")}, h.client.Subscriptions())

	require.Eventually(t, func() bool {
		h.clock.Add(time.Second)
		return h.Opens() == 1
	}, waitFor, tick)

	assert.Equal(t, []string{subscription("spot@public.bookTicker.v3.api@BTCUSDT")}, dialer.Last().Written())

	errs := h.Errors()
	require.NotEmpty(t, errs)
	assert.True(t, core.IsTransportError(errs[0]))
}

func TestClient_CloseDisablesReconnect(t *testing.T) {
	h := startHarness(t)
	require.NoError(t, h.client.SubscribeTrades("BTCUSDT"))
	sock := h.dialer.Last()

	require.NoError(t, h.client.Close())
	require.NoError(t, h.client.Close())
	sock.Drop(errors.New("late drop"))
	h.clock.Add(time.Hour)
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, StateDisconnected, h.client.State())
	assert.Equal(t, 1, h.dialer.Dials())
	assert.Zero(t, h.keys.KeepAlives(), "refresh loop stopped")
	assert.Empty(t, h.keys.deleted, "close does not revoke the key")
	assert.ErrorIs(t, h.client.SubscribeTrades("ETHUSDT"), core.ErrNotConnected)

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	assert.ErrorIs(t, h.client.WaitOpen(ctx), core.ErrClientClosed)
}

func TestClient_ListenKeyRefresh(t *testing.T) {
	keys := &fakeKeys{keepErr: errors.New("listen key expired")}
	h, err := newHarness(t, wstest.NewDialer(true), keys)
	require.NoError(t, err)
	h.waitOpen(t)

	refreshErrors := func() int {
		n := 0
		for _, err := range h.Errors() {
			var refreshErr *core.TokenRefreshError
			if errors.As(err, &refreshErr) {
				n++
			}
		}
		return n
	}

	h.clock.Add(30 * time.Minute)
	require.Eventually(t, func() bool { return keys.KeepAlives() == 1 }, waitFor, tick)
	require.Eventually(t, func() bool { return refreshErrors() == 1 }, waitFor, tick)

	h.clock.Add(30 * time.Minute)
	require.Eventually(t, func() bool { return keys.KeepAlives() == 2 }, waitFor, tick)
	require.Eventually(t, func() bool { return refreshErrors() == 2 }, waitFor, tick)
	assert.Equal(t, "key-1", h.client.ListenKey(), "refresh failures keep the key")
}

func TestClient_RevokeListenKey(t *testing.T) {
	h := startHarness(t)

	require.NoError(t, h.client.RevokeListenKey(context.Background()))
	assert.Equal(t, []string{"key-1"}, h.keys.deleted)
	assert.Empty(t, h.client.ListenKey())
}

func TestNew_ListenKeyFailure(t *testing.T) {
	dialer := wstest.NewDialer(true)
	_, err := newHarness(t, dialer, &fakeKeys{createErr: errors.New("api key invalid")})

	assert.ErrorContains(t, err, "api key invalid")
	assert.Zero(t, dialer.Dials())
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(context.Background(), nil, Handlers{})
	assert.Error(t, err)

	_, err = New(context.Background(), core.DefaultConfig("", ""), Handlers{})
	assert.Error(t, err)
}

func TestClient_SubscribeFromOnOpen(t *testing.T) {
	dialer := wstest.NewDialer(true)
	clientCh := make(chan *Client, 1)
	result := make(chan error, 1)
	var once sync.Once

	handlers := Handlers{
		OnOpen: func() {
			once.Do(func() {
				client := <-clientCh
				result <- client.SubscribeTrades("btcusdt")
			})
		},
	}
	config := core.DefaultConfig("test-key", "test-secret")
	client, err := New(context.Background(), config, handlers,
		WithDialer(dialer),
		WithListenKeyService(&fakeKeys{}),
		WithClock(clock.NewMock()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	clientCh <- client

	select {
	case err := <-result:
		require.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatalf("subscribe from OnOpen blocked: state=%s", client.State())
	}

	assert.Equal(t, []string{subscription("spot@public.deals.v3.api@BTCUSDT")}, dialer.Last().Written())
	assert.Equal(t, []Topic{TradesTopic("BTCUSDT")}, client.Subscriptions())

	closed := make(chan error, 1)
	go func() { closed <- client.Close() }()
	select {
	case err := <-closed:
		assert.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("Close blocked after subscribing from OnOpen")
	}
}
