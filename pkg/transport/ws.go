package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	gorilla "github.com/gorilla/websocket"

	"github.com/SheaGuev/collabsync/internal/codec"
	"github.com/SheaGuev/collabsync/pkg/logger"
)

// DefaultDialer is the gorilla dialer used by WSConnection, with compression
// enabled and the cbor subprotocol announced.
var DefaultDialer = &gorilla.Dialer{
	Proxy:             gorilla.DefaultDialer.Proxy,
	HandshakeTimeout:  gorilla.DefaultDialer.HandshakeTimeout,
	EnableCompression: true,
	Subprotocols:      []string{"cbor"},
}

const defaultWriteTimeout = 10 * time.Second

// Config carries everything a WSConnection needs.
type Config struct {
	// URL of the hub's realtime endpoint, e.g. "ws://host:8080/realtime".
	URL string
	// ClientID identifies this client session in every emitted envelope.
	ClientID string
	Marshaler   codec.Marshaler
	Unmarshaler codec.Unmarshaler
	Logger      logger.Logger
}

// NewConfig fills in the CBOR codec and a default logger.
func NewConfig(url, clientID string) *Config {
	c := &codec.CBOR{}
	return &Config{
		URL:         url,
		ClientID:    clientID,
		Marshaler:   c,
		Unmarshaler: c,
		Logger:      logger.Default(),
	}
}

// WSConnection is the gorilla/websocket implementation of Transport.
//
// One read goroutine owns the connection's inbound side and dispatches
// messages to registered handlers in delivery order, which preserves
// per-publisher ordering for the channels built on top.
type WSConnection struct {
	config *Config

	conn *gorilla.Conn
	// connLock guards reads/writes against a nil or mid-close conn. It is
	// deliberately not held across the whole (re)connection process so that
	// Emit fails fast on a dead connection instead of blocking.
	connLock sync.Mutex

	// stateLock serializes state transitions; a separate lock from connLock
	// so state checks never wait on in-flight I/O.
	stateLock sync.RWMutex
	state     State

	handlersLock  sync.RWMutex
	handlers      map[string][]Handler
	stateHandlers []StateHandler

	// connCloseCh signals the read loop to stop and Emit to stop writing.
	connCloseCh    chan int
	connCloseError error
}

var _ Transport = (*WSConnection)(nil)

func NewWS(config *Config) *WSConnection {
	if config.Logger == nil {
		config.Logger = logger.Default()
	}
	return &WSConnection{
		config:   config,
		state:    StatePending,
		handlers: make(map[string][]Handler),
	}
}

// IsClosed reports whether the connection is disconnected, letting the
// reconnecting wrapper decide when to attempt reconnection.
func (ws *WSConnection) IsClosed() bool {
	ws.stateLock.RLock()
	defer ws.stateLock.RUnlock()
	return ws.state == StateDisconnected
}

func (ws *WSConnection) transitionToConnecting() error {
	ws.stateLock.Lock()
	defer ws.stateLock.Unlock()

	switch ws.state {
	case StateConnected:
		return errors.New("transport: already connected")
	case StateConnecting:
		return errors.New("transport: already connecting")
	case StatePending, StateDisconnected:
	default:
		ws.config.Logger.Warn("BUG: WSConnection in unknown state, connecting anyway", "state", ws.state)
	}

	ws.state = StateConnecting
	return nil
}

func (ws *WSConnection) transitionToDisconnecting() error {
	ws.stateLock.Lock()
	defer ws.stateLock.Unlock()

	switch ws.state {
	case StateConnected:
	case StateConnecting:
		return errors.New("transport: connecting, cannot disconnect yet")
	case StateDisconnected, StatePending:
		return errors.New("transport: not connected")
	default:
		return errors.New("transport: unknown state")
	}

	ws.state = StateDisconnecting
	return nil
}

func (ws *WSConnection) setState(state State) {
	ws.stateLock.Lock()
	ws.state = state
	ws.stateLock.Unlock()

	ws.handlersLock.RLock()
	handlers := make([]StateHandler, len(ws.stateHandlers))
	copy(handlers, ws.stateHandlers)
	ws.handlersLock.RUnlock()

	for _, h := range handlers {
		h(state)
	}
}

// Connect dials the hub and starts the read loop. A failed dial leaves the
// connection Disconnected; retrying is the caller's (or the reconnecting
// wrapper's) decision.
func (ws *WSConnection) Connect(ctx context.Context) error {
	if err := ws.transitionToConnecting(); err != nil {
		return err
	}

	conn, res, err := DefaultDialer.DialContext(ctx, ws.config.URL, nil)
	if err != nil {
		ws.setState(StateDisconnected)
		return fmt.Errorf("transport: failed to dial %s: %w", ws.config.URL, err)
	}
	defer res.Body.Close()

	ws.connLock.Lock()
	ws.conn = conn
	ws.connCloseCh = make(chan int)
	ws.connCloseError = nil
	ws.connLock.Unlock()

	go ws.readLoop(conn, ws.connCloseCh)

	ws.setState(StateConnected)
	return nil
}

// Emit marshals and writes one message. Messages emitted while disconnected
// are dropped with an error, never queued.
func (ws *WSConnection) Emit(ctx context.Context, msg *Message) error {
	select {
	case <-ws.connCloseCh:
		if ws.connCloseError != nil {
			return ws.connCloseError
		}
		return errors.New("transport: connection closed")
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if msg.ClientID == "" {
		msg.ClientID = ws.config.ClientID
	}

	data, err := ws.config.Marshaler.Marshal(msg)
	if err != nil {
		return fmt.Errorf("transport: failed to encode message: %w", err)
	}

	ws.connLock.Lock()
	defer ws.connLock.Unlock()
	if ws.conn == nil {
		return errors.New("transport: not connected")
	}

	deadline := time.Now().Add(defaultWriteTimeout)
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	if err := ws.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return ws.conn.WriteMessage(gorilla.BinaryMessage, data)
}

// On registers a handler for an event. Registration is not tied to the
// underlying socket, so handlers survive reconnects.
func (ws *WSConnection) On(event string, handler Handler) {
	ws.handlersLock.Lock()
	defer ws.handlersLock.Unlock()
	ws.handlers[event] = append(ws.handlers[event], handler)
}

func (ws *WSConnection) OnStateChange(handler StateHandler) {
	ws.handlersLock.Lock()
	defer ws.handlersLock.Unlock()
	ws.stateHandlers = append(ws.stateHandlers, handler)
}

// Close writes a close frame on a best-effort basis and tears the
// connection down. The connection always ends Disconnected, even when the
// close handshake fails, so local resources are reclaimed regardless.
func (ws *WSConnection) Close(ctx context.Context) error {
	if err := ws.transitionToDisconnecting(); err != nil {
		return err
	}
	defer ws.setState(StateDisconnected)

	ws.connLock.Lock()
	defer ws.connLock.Unlock()

	conn := ws.conn
	ws.conn = nil
	if conn == nil {
		return nil
	}

	close(ws.connCloseCh)

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	}
	if err := conn.WriteMessage(gorilla.CloseMessage, gorilla.FormatCloseMessage(gorilla.CloseNormalClosure, "")); err != nil {
		ws.config.Logger.Error("failed to write close message", "error", err)
	}

	return conn.Close()
}

func (ws *WSConnection) readLoop(conn *gorilla.Conn, closeCh chan int) {
	for {
		select {
		case <-closeCh:
			return
		default:
			_, data, err := conn.ReadMessage()
			if err != nil {
				if ws.handleReadError(err) {
					ws.setState(StateDisconnected)
					ws.config.Logger.Error("WSConnection readLoop: connection closed", "error", err)
					return
				}
				continue
			}
			ws.dispatch(data)
		}
	}
}

// handleReadError returns true when the error means the connection is gone
// and the read loop should exit.
func (ws *WSConnection) handleReadError(err error) bool {
	if errors.Is(err, net.ErrClosed) {
		ws.connCloseError = net.ErrClosed
		return true
	}
	if gorilla.IsUnexpectedCloseError(err) || gorilla.IsCloseError(err, gorilla.CloseNormalClosure, gorilla.CloseGoingAway) {
		ws.connCloseError = io.ErrClosedPipe
		return true
	}

	ws.config.Logger.Error(err.Error())
	return false
}

// dispatch decodes an envelope and runs its handlers inline on the read
// goroutine, preserving delivery order.
func (ws *WSConnection) dispatch(data []byte) {
	var msg Message
	if err := ws.config.Unmarshaler.Unmarshal(data, &msg); err != nil {
		ws.config.Logger.Error("failed to decode inbound message", "error", err)
		return
	}

	ws.handlersLock.RLock()
	handlers := make([]Handler, len(ws.handlers[msg.Event]))
	copy(handlers, ws.handlers[msg.Event])
	ws.handlersLock.RUnlock()

	for _, h := range handlers {
		h(&msg)
	}
}
