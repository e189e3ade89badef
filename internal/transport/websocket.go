// Package transport provides the gws backed websocket dialer used by internal/ws.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/lxzan/gws"
	"github.com/rs/zerolog"

	"mexc/internal/ws"
)

// closeNormal is the websocket status code of a clean shutdown.
const closeNormal uint16 = 1000

// Dialer opens gws client connections.
type Dialer struct {
	header http.Header
	logger zerolog.Logger
}

// DialerOption configures a Dialer.
type DialerOption func(*Dialer)

// WithHeader adds a header to every handshake request.
func WithHeader(key, value string) DialerOption {
	return func(d *Dialer) {
		d.header.Add(key, value)
	}
}

func WithLogger(logger zerolog.Logger) DialerOption {
	return func(d *Dialer) {
		d.logger = logger
	}
}

func NewDialer(opts ...DialerOption) *Dialer {
	d := &Dialer{
		header: http.Header{},
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type handshake struct {
	conn *gws.Conn
	err  error
}

// Dial performs the websocket handshake and starts the read loop. The handshake is abandoned
// when ctx is done; a connection that completes afterwards is closed.
func (d *Dialer) Dial(ctx context.Context, url string, sink ws.EventSink) (ws.Socket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opt := &gws.ClientOption{
		Addr:             url,
		RequestHeader:    d.header.Clone(),
		HandshakeTimeout: 10 * time.Second,
	}
	if deadline, ok := ctx.Deadline(); ok {
		opt.HandshakeTimeout = time.Until(deadline)
	}

	done := make(chan handshake, 1)
	go func() {
		conn, _, err := gws.NewClient(&eventHandler{sink: sink}, opt)
		done <- handshake{conn: conn, err: err}
	}()

	select {
	case hs := <-done:
		if hs.err != nil {
			return nil, fmt.Errorf("websocket handshake: %w", hs.err)
		}
		go hs.conn.ReadLoop()
		return &socket{conn: hs.conn}, nil
	case <-ctx.Done():
		go func() {
			if hs := <-done; hs.conn != nil {
				_ = hs.conn.NetConn().Close()
			}
		}()
		d.logger.Debug().Err(ctx.Err()).Msg("websocket handshake abandoned")
		return nil, ctx.Err()
	}
}

type socket struct {
	conn *gws.Conn
}

func (s *socket) WriteText(data []byte) error {
	return s.conn.WriteMessage(gws.OpcodeText, data)
}

func (s *socket) WritePing() error {
	return s.conn.WritePing(nil)
}

// Close sends a normal closure frame and closes the connection. Closing a connection the
// remote already closed is not an error.
func (s *socket) Close() error {
	err := s.conn.WriteClose(closeNormal, nil)
	if err == nil || errors.Is(err, gws.ErrConnClosed) {
		return nil
	}
	_ = s.conn.NetConn().Close()
	return err
}

type eventHandler struct {
	sink ws.EventSink
}

func (h *eventHandler) OnOpen(*gws.Conn) {}

func (h *eventHandler) OnClose(_ *gws.Conn, err error) {
	h.sink.OnClose(err)
}

func (h *eventHandler) OnPing(socket *gws.Conn, payload []byte) {
	_ = socket.WritePong(payload)
}

func (h *eventHandler) OnPong(*gws.Conn, []byte) {
	h.sink.OnPong()
}

func (h *eventHandler) OnMessage(_ *gws.Conn, message *gws.Message) {
	defer message.Close()

	payload := message.Bytes()
	if len(payload) == 0 {
		return
	}
	// the message buffer is pooled and reused after Close
	data := make([]byte, len(payload))
	copy(data, payload)
	h.sink.OnMessage(data)
}
