// Package stream is the MEXC spot websocket client.
//
// A Client keeps one auto-reconnecting connection to the user data stream endpoint, tracks the
// topics it is subscribed to and sends them again every time the connection opens. The listen
// key in the connection URL is refreshed in the background for the lifetime of the client.
//
// Inbound frames are forwarded verbatim to Handlers.OnMessage. Router decodes them into pkg/core
// types for callers that want typed updates.
package stream

import (
	"mexc/internal/ws"
)

type ConnState = ws.ConnState

const (
	StateDisconnected = ws.StateDisconnected
	StateConnecting   = ws.StateConnecting
	StateOpen         = ws.StateOpen
	StateClosing      = ws.StateClosing
	StateReconnecting = ws.StateReconnecting
)

// Action is the method of a subscription request.
type Action string

const (
	Subscribe   Action = "SUBSCRIPTION"
	Unsubscribe Action = "UNSUBSCRIPTION"
)

// Request is the client to server wire message.
type Request struct {
	Method Action  `json:"method"`
	Params []Topic `json:"params"`
}

func newRequest(action Action, topic Topic) Request {
	return Request{Method: action, Params: []Topic{topic}}
}

// Handlers are the client event hooks. OnOpen, OnMessage and OnClose run on the connection loop
// goroutine, as does OnError for transport failures. Listen key refresh failures reach OnError
// from the refresh goroutine as *core.TokenRefreshError.
type Handlers struct {
	// OnOpen runs after every successful connect, once all tracked topics have been sent again.
	// It may subscribe or unsubscribe.
	OnOpen func()
	// OnMessage receives every inbound text frame verbatim.
	OnMessage func(data []byte)
	OnError   func(err error)
	// OnClose runs when an open connection ends; err is nil after Close.
	OnClose func(err error)
}
