// Package wstest provides an in-memory ws.Dialer for tests.
package wstest

import (
	"context"
	"errors"
	"net"
	"sync"

	"mexc/internal/ws"
)

// Dialer records every dial and hands out in-memory sockets.
type Dialer struct {
	mu       sync.Mutex
	urls     []string
	sockets  []*Socket
	failures []error
	autoPong bool
	dialed   chan *Socket
}

// NewDialer creates a Dialer. When autoPong is set every ping is answered immediately.
func NewDialer(autoPong bool) *Dialer {
	return &Dialer{
		autoPong: autoPong,
		dialed:   make(chan *Socket, 64),
	}
}

// FailNext makes the next dial return err. Calls queue up.
func (d *Dialer) FailNext(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures = append(d.failures, err)
}

func (d *Dialer) Dial(ctx context.Context, url string, sink ws.EventSink) (ws.Socket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.urls = append(d.urls, url)
	if len(d.failures) > 0 {
		err := d.failures[0]
		d.failures = d.failures[1:]
		d.mu.Unlock()
		return nil, err
	}
	s := &Socket{sink: sink, autoPong: d.autoPong}
	d.sockets = append(d.sockets, s)
	d.mu.Unlock()

	select {
	case d.dialed <- s:
	default:
	}
	return s, nil
}

// Dials returns the number of dial attempts, failed ones included.
func (d *Dialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.urls)
}

// URLs returns the URL of every dial attempt in order.
func (d *Dialer) URLs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.urls))
	copy(out, d.urls)
	return out
}

// Sockets returns every socket handed out so far.
func (d *Dialer) Sockets() []*Socket {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Socket, len(d.sockets))
	copy(out, d.sockets)
	return out
}

// Last returns the most recent socket or nil.
func (d *Dialer) Last() *Socket {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.sockets) == 0 {
		return nil
	}
	return d.sockets[len(d.sockets)-1]
}

// Dialed delivers each socket as it is handed out.
func (d *Dialer) Dialed() <-chan *Socket {
	return d.dialed
}

// ErrWriteFailed is returned by writes after FailWrites.
var ErrWriteFailed = errors.New("wstest: write failed")

// Socket is an in-memory ws.Socket.
type Socket struct {
	sink     ws.EventSink
	autoPong bool

	mu         sync.Mutex
	written    []string
	pings      int
	closed     bool
	failWrites bool
}

func (s *Socket) WriteText(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return net.ErrClosed
	}
	if s.failWrites {
		return ErrWriteFailed
	}
	s.written = append(s.written, string(data))
	return nil
}

func (s *Socket) WritePing() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return net.ErrClosed
	}
	s.pings++
	if s.autoPong {
		go s.sink.OnPong()
	}
	return nil
}

// Close marks the socket closed and reports the close to the sink like a real read loop would.
func (s *Socket) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	go s.sink.OnClose(net.ErrClosed)
	return nil
}

// Drop simulates the remote end going away with err.
func (s *Socket) Drop(err error) {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.sink.OnClose(err)
}

// Deliver simulates an inbound text frame.
func (s *Socket) Deliver(data string) {
	s.sink.OnMessage([]byte(data))
}

// Pong simulates an inbound pong frame.
func (s *Socket) Pong() {
	s.sink.OnPong()
}

// FailWrites makes every subsequent text write fail.
func (s *Socket) FailWrites() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWrites = true
}

// Written returns the text frames written so far.
func (s *Socket) Written() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.written))
	copy(out, s.written)
	return out
}

func (s *Socket) Pings() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pings
}

func (s *Socket) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
