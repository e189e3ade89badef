package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mexc/pkg/core"
)

type seen struct {
	method   string
	rawQuery string
	header   http.Header
}

func newTestClient(t *testing.T) (*Client, chan seen) {
	t.Helper()

	calls := make(chan seen, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls <- seen{method: r.Method, rawQuery: r.URL.RawQuery, header: r.Header.Clone()}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(&Config{
		BaseURL: srv.URL,
		Timeout: time.Second,
		Headers: map[string]string{"X-Default": "yes"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, calls
}

func TestNewClient_InvalidConfig(t *testing.T) {
	_, err := NewClient(&Config{BaseURL: "not a url", Timeout: time.Second})
	assert.Error(t, err)

	_, err = NewClient(&Config{BaseURL: "http://localhost", Timeout: 0})
	assert.Error(t, err)
}

func TestClient_KeepsQueryOrder(t *testing.T) {
	c, calls := newTestClient(t)

	resp, err := c.Get(context.Background(), "/api/v3/klines?symbol=BTCUSDT&interval=1m&limit=5")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.JSONEq(t, `{"ok":true}`, string(resp.Bytes()))

	call := <-calls
	assert.Equal(t, http.MethodGet, call.method)
	assert.Equal(t, "symbol=BTCUSDT&interval=1m&limit=5", call.rawQuery)
	assert.Equal(t, "yes", call.header.Get("X-Default"))
}

func TestClient_Methods(t *testing.T) {
	c, calls := newTestClient(t)
	ctx := context.Background()

	_, err := c.Post(ctx, "/a", WithHeader("X-One", "1"))
	require.NoError(t, err)
	_, err = c.Put(ctx, "/a", WithHeaders(map[string]string{"X-Two": "2"}))
	require.NoError(t, err)
	_, err = c.Delete(ctx, "/a")
	require.NoError(t, err)

	post, put, del := <-calls, <-calls, <-calls
	assert.Equal(t, http.MethodPost, post.method)
	assert.Equal(t, "1", post.header.Get("X-One"))
	assert.Equal(t, http.MethodPut, put.method)
	assert.Equal(t, "2", put.header.Get("X-Two"))
	assert.Empty(t, put.header.Get("X-One"))
	assert.Equal(t, http.MethodDelete, del.method)
}

func TestClient_Closed(t *testing.T) {
	c, _ := newTestClient(t)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err := c.Get(context.Background(), "/api/v3/ping")
	assert.ErrorIs(t, err, core.ErrClientClosed)
}
