package ws

import "sync/atomic"

// ConnState represents the current connection state of a websocket.
type ConnState int32

// Connection states for websocket lifecycle management.
const (
	// StateDisconnected indicates the websocket is not connected and no attempt is scheduled.
	StateDisconnected ConnState = iota
	// StateConnecting indicates the first connection attempt is in progress.
	StateConnecting
	// StateOpen indicates the websocket has an active connection.
	StateOpen
	// StateClosing indicates an explicit close is shutting the connection down.
	StateClosing
	// StateReconnecting indicates the connection failed and a new attempt is scheduled or running.
	StateReconnecting
)

// String returns the string representation of the connection state.
func (s ConnState) String() string {
	return [...]string{
		"disconnected",
		"connecting",
		"open",
		"closing",
		"reconnecting",
	}[s]
}

// State provides thread-safe atomic access to a ConnState value.
type State struct {
	state atomic.Int32
}

// Load returns the current connection state.
func (s *State) Load() ConnState {
	return ConnState(s.state.Load())
}

// Store sets the connection state to the given value.
func (s *State) Store(state ConnState) {
	s.state.Store(int32(state))
}

// Swap stores state and returns the previous value.
func (s *State) Swap(state ConnState) ConnState {
	return ConnState(s.state.Swap(int32(state)))
}
