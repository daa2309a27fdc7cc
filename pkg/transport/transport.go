// Package transport defines the bidirectional realtime event transport the
// change and presence channels are built on: a Message envelope, an
// Emit/On/state-change interface, a gorilla/websocket client implementation,
// and an auto-reconnecting wrapper with an explicit state machine.
//
// The reference system used an ambient module-level socket; here the
// connection is an explicit object owned by the process with
// Connect/Close lifecycle and reconnection modeled as state transitions
// observers can subscribe to.
package transport

import (
	"context"

	"github.com/SheaGuev/collabsync/internal/rand"
)

// NewClientID returns a fresh client identifier. Every channel sharing a
// transport must share one client id, since self-echo suppression keys on
// it, so generate it once per process and pass it to each channel.
func NewClientID() string {
	return "client_" + rand.String(20)
}

// Handler consumes one inbound message. Handlers for the same event run in
// delivery order on the connection's read goroutine.
type Handler func(msg *Message)

// StateHandler observes connection state transitions. The Connected
// transition doubles as the reconnect signal: channels re-announce room
// membership when they see it.
type StateHandler func(state State)

// Transport is the realtime boundary between clients and the hub.
type Transport interface {
	Connect(ctx context.Context) error
	Close(ctx context.Context) error
	// Emit sends one message. Emit on a disconnected transport returns an
	// error and the message is dropped, not buffered: delivery is
	// at-most-once and there is no retry queue.
	Emit(ctx context.Context, msg *Message) error
	On(event string, handler Handler)
	OnStateChange(handler StateHandler)
	IsClosed() bool
}

// State represents the connection state.
//
// Assumed transitions:
//
//	StatePending
//	  -> StateConnecting (initial connection attempt)
//
//	StateConnecting
//	  -> StateConnected (successful connection)
//	  -> StateDisconnected (failed connection attempt)
//
//	StateConnected
//	  -> StateDisconnecting (manual disconnect)
//	  -> StateDisconnected (dropped by an error)
//
//	StateDisconnecting
//	  -> StateDisconnected (graceful disconnect completed)
//
//	StateDisconnected
//	  -> StateConnecting (reconnection attempt)
type State int

const (
	// StateUnknown is intentionally the zero value so an uninitialized
	// connection is distinguishable from a pending one.
	StateUnknown State = iota
	StatePending
	StateConnecting
	StateConnected
	StateDisconnecting
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateUnknown:
		return "Unknown"
	case StatePending:
		return "Pending"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateDisconnecting:
		return "Disconnecting"
	case StateDisconnected:
		return "Disconnected"
	default:
		return "InvalidState"
	}
}
