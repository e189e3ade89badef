package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lxzan/gws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoHandler struct {
	gws.BuiltinEventHandler
	headers chan http.Header
	closes  chan error
}

func (h *echoHandler) OnClose(_ *gws.Conn, err error) {
	select {
	case h.closes <- err:
	default:
	}
}

func (h *echoHandler) OnPing(socket *gws.Conn, payload []byte) {
	_ = socket.WritePong(payload)
}

func (h *echoHandler) OnMessage(socket *gws.Conn, message *gws.Message) {
	defer message.Close()
	if string(message.Bytes()) == "hangup" {
		_ = socket.NetConn().Close()
		return
	}
	_ = socket.WriteMessage(message.Opcode, message.Bytes())
}

func newEchoServer(t *testing.T) (string, *echoHandler) {
	t.Helper()

	handler := &echoHandler{headers: make(chan http.Header, 1), closes: make(chan error, 1)}
	upgrader := gws.NewUpgrader(handler, &gws.ServerOption{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case handler.headers <- r.Header.Clone():
		default:
		}
		socket, err := upgrader.Upgrade(w, r)
		if err != nil {
			return
		}
		go socket.ReadLoop()
	}))
	t.Cleanup(srv.Close)

	return "ws://" + strings.TrimPrefix(srv.URL, "http://") + "/ws?listenKey=abc", handler
}

type chanSink struct {
	messages chan []byte
	pongs    chan struct{}
	closed   chan error
}

func newChanSink() *chanSink {
	return &chanSink{
		messages: make(chan []byte, 16),
		pongs:    make(chan struct{}, 16),
		closed:   make(chan error, 1),
	}
}

func (s *chanSink) OnMessage(data []byte) { s.messages <- data }
func (s *chanSink) OnPong()               { s.pongs <- struct{}{} }
func (s *chanSink) OnClose(err error)     { s.closed <- err }

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for event")
		var zero T
		return zero
	}
}

func TestDialer_EchoAndPong(t *testing.T) {
	url, server := newEchoServer(t)
	sink := newChanSink()

	dialer := NewDialer(WithHeader("User-Agent", "mexc-go"))
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	sock, err := dialer.Dial(ctx, url, sink)
	require.NoError(t, err)
	defer sock.Close()

	assert.Equal(t, "mexc-go", receive(t, server.headers).Get("User-Agent"))

	require.NoError(t, sock.WriteText([]byte(`{"method":"SUBSCRIPTION","params":["spot@public.deals.v3.api@BTCUSDT"]}`)))
	assert.JSONEq(t,
		`{"method":"SUBSCRIPTION","params":["spot@public.deals.v3.api@BTCUSDT"]}`,
		string(receive(t, sink.messages)))

	require.NoError(t, sock.WritePing())
	receive(t, sink.pongs)
}

func TestDialer_RemoteCloseReported(t *testing.T) {
	url, _ := newEchoServer(t)
	sink := newChanSink()

	sock, err := NewDialer().Dial(context.Background(), url, sink)
	require.NoError(t, err)

	require.NoError(t, sock.WriteText([]byte("hangup")))
	assert.Error(t, receive(t, sink.closed))
}

func TestDialer_LocalCloseReported(t *testing.T) {
	url, server := newEchoServer(t)
	sink := newChanSink()

	sock, err := NewDialer().Dial(context.Background(), url, sink)
	require.NoError(t, err)

	require.NoError(t, sock.Close())
	receive(t, sink.closed)
	assert.Error(t, sock.WriteText([]byte("late")))
	assert.NoError(t, sock.Close(), "second close")

	var closeErr *gws.CloseError
	require.ErrorAs(t, receive(t, server.closes), &closeErr)
	assert.Equal(t, uint16(1000), closeErr.Code, "server saw a normal closure frame")
}

func TestDialer_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := "ws://" + strings.TrimPrefix(srv.URL, "http://") + "/ws"
	srv.Close()

	_, err := NewDialer().Dial(context.Background(), url, newChanSink())
	assert.Error(t, err)
}

func TestDialer_CanceledContext(t *testing.T) {
	url, _ := newEchoServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewDialer().Dial(ctx, url, newChanSink())
	assert.ErrorIs(t, err, context.Canceled)
}
