// Package rews provides an auto-reconnecting wrapper around a Transport.
//
// The wrapper owns the connection lifecycle as an explicit state machine and
// runs a reconnection loop that re-establishes the underlying connection
// when it drops. Event handlers registered on the wrapper are re-applied to
// every fresh connection, and the Connected state transition is surfaced to
// observers so the channels built on top can re-announce room membership
// after a reconnect.
package rews

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/SheaGuev/collabsync/pkg/logger"
	"github.com/SheaGuev/collabsync/pkg/transport"
)

type State int

const (
	StateUnknown State = iota
	StateDisconnected
	StateConnecting
	StateConnected
	StateClosing
	StateClosed
)

func (state State) String() string {
	switch state {
	case StateUnknown:
		return "Unknown"
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateClosing:
		return "Closing"
	case StateClosed:
		return "Closed"
	default:
		return "InvalidState"
	}
}

func (s State) validateTransitionTo(newState State) error {
	switch s {
	case StateDisconnected:
		switch newState {
		case StateConnecting, StateDisconnected:
			return nil
		}
	case StateConnecting:
		switch newState {
		case StateConnected, StateDisconnected:
			return nil
		}
	case StateConnected:
		switch newState {
		// Connected to Connecting happens when the connection is lost
		// after it was established.
		case StateConnecting, StateClosing, StateDisconnected:
			return nil
		}
	case StateClosing:
		if newState == StateClosed {
			return nil
		}
	}

	return fmt.Errorf("invalid state transition from %v to %v", s, newState)
}

// Connection is an auto-reconnecting Transport.
type Connection struct {
	// NewFunc creates the underlying transport connection, both for the
	// initial connection and for every reconnection attempt.
	NewFunc func(ctx context.Context) (transport.Transport, error)

	// CheckInterval is the interval at which the reconnection loop checks
	// the underlying connection. Defaults to 5 seconds.
	CheckInterval time.Duration

	inner transport.Transport

	// connCloseCh signals that the connection is being closed.
	connCloseCh chan int

	// reconnLoopCloseCh is closed by the reconnection loop on exit, so
	// Close can wait for it to stop.
	reconnLoopCloseCh chan int

	logger logger.Logger

	// once ensures the reconnection loop starts only once across repeated
	// Connect calls.
	once sync.Once

	state   State
	stateMu sync.Mutex

	// handlers and stateHandlers are the registry re-applied to every
	// fresh underlying connection.
	handlersMu    sync.Mutex
	handlers      map[string][]transport.Handler
	stateHandlers []transport.StateHandler
}

var _ transport.Transport = (*Connection)(nil)

// New creates an auto-reconnecting transport from a connection factory.
func New(newConn func(ctx context.Context) (transport.Transport, error), checkInterval time.Duration, log logger.Logger) *Connection {
	if log == nil {
		log = logger.Default()
	}
	return &Connection{
		NewFunc:       newConn,
		CheckInterval: checkInterval,
		state:         StateDisconnected,
		logger:        log,
		handlers:      make(map[string][]transport.Handler),
	}
}

func (c *Connection) transitionTo(newState State) error {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	if err := c.state.validateTransitionTo(newState); err != nil {
		return err
	}

	c.state = newState
	c.logger.Debug("rews.Connection state transitioned", "new_state", newState)
	return nil
}

// IsClosed reports whether this reconnecting connection has been closed.
// Once closed it cannot be reused.
func (c *Connection) IsClosed() bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state == StateClosed
}

// Connect establishes the underlying connection and starts the reconnection
// loop. An initial connection failure is returned to the caller rather than
// retried, because it is usually a misconfiguration (wrong URL) that no
// amount of retrying fixes.
func (c *Connection) Connect(ctx context.Context) error {
	if err := c.transitionTo(StateConnecting); err != nil {
		return err
	}

	if err := c.establish(ctx); err != nil {
		if stateErr := c.transitionTo(StateDisconnected); stateErr != nil {
			c.logger.Error("BUG: rews.Connection failed to transition to disconnected state", "error", stateErr)
		}
		return err
	}

	c.once.Do(func() {
		c.logger.Debug("rews.Connection is starting reconnection loop")
		c.connCloseCh = make(chan int, 1)
		c.reconnLoopCloseCh = make(chan int, 1)
		go c.reconnectionLoop()
	})

	if err := c.transitionTo(StateConnected); err != nil {
		panic(fmt.Sprintf("BUG: rews.Connection failed to transition to connected state: %v", err))
	}
	return nil
}

// establish creates a fresh underlying connection, re-applies the handler
// registry to it, and connects it.
func (c *Connection) establish(ctx context.Context) error {
	inner, err := c.NewFunc(ctx)
	if err != nil {
		return fmt.Errorf("rews.Connection failed to create a new connection: %w", err)
	}

	c.handlersMu.Lock()
	for event, handlers := range c.handlers {
		for _, h := range handlers {
			inner.On(event, h)
		}
	}
	for _, h := range c.stateHandlers {
		inner.OnStateChange(h)
	}
	// The swap must happen before Connect: the Connected transition fires
	// from inside Connect, and handlers reacting to it (room rejoin,
	// presence resubscribe) emit through this wrapper. Those emits have to
	// reach the fresh connection, not the dead one.
	prev := c.inner
	c.inner = inner
	c.handlersMu.Unlock()

	if err := inner.Connect(ctx); err != nil {
		c.handlersMu.Lock()
		c.inner = prev
		c.handlersMu.Unlock()
		return fmt.Errorf("rews.Connection failed to connect: %w", err)
	}
	return nil
}

// Emit delegates to the current underlying connection. While disconnected
// there is nothing to delegate to and the message is dropped with an error;
// there is no buffering or retry queue.
func (c *Connection) Emit(ctx context.Context, msg *transport.Message) error {
	c.handlersMu.Lock()
	inner := c.inner
	c.handlersMu.Unlock()

	if inner == nil {
		return fmt.Errorf("rews.Connection is not connected, %s message dropped", msg.Event)
	}
	return inner.Emit(ctx, msg)
}

// On registers a handler for an event. The registration survives
// reconnection: it is replayed onto every fresh underlying connection.
func (c *Connection) On(event string, handler transport.Handler) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()

	c.handlers[event] = append(c.handlers[event], handler)
	if c.inner != nil {
		c.inner.On(event, handler)
	}
}

func (c *Connection) OnStateChange(handler transport.StateHandler) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()

	c.stateHandlers = append(c.stateHandlers, handler)
	if c.inner != nil {
		c.inner.OnStateChange(handler)
	}
}

// Close stops the reconnection loop and closes the underlying connection.
// Once this returns, the reconnection loop is guaranteed to have stopped.
func (c *Connection) Close(ctx context.Context) error {
	if err := c.transitionTo(StateClosing); err != nil {
		return fmt.Errorf("rews.Connection is already closing or closed: %w", err)
	}

	defer func() {
		if err := c.transitionTo(StateClosed); err != nil {
			c.logger.Error("BUG: rews.Connection failed to transition to closed state", "error", err)
		}
	}()

	// Stop the loop first so it cannot reconnect a connection we are about
	// to close.
	close(c.connCloseCh)
	<-c.reconnLoopCloseCh

	c.handlersMu.Lock()
	inner := c.inner
	c.handlersMu.Unlock()

	if inner == nil {
		return nil
	}
	return inner.Close(ctx)
}

func (c *Connection) reconnect(ctx context.Context) error {
	if err := c.transitionTo(StateConnecting); err != nil {
		return err
	}

	if err := c.establish(ctx); err != nil {
		if stateErr := c.transitionTo(StateDisconnected); stateErr != nil {
			c.logger.Error("BUG: rews.Connection failed to transition to disconnected state", "error", stateErr)
		}
		return err
	}

	if err := c.transitionTo(StateConnected); err != nil {
		return err
	}

	// Room membership replay is the channels' job: they observe the
	// Connected transition forwarded from the fresh connection and
	// re-announce themselves.
	return nil
}

func (c *Connection) reconnectionLoop() {
	checkInterval := 5 * time.Second
	if c.CheckInterval > 0 {
		checkInterval = c.CheckInterval
	}

	defer func() {
		close(c.reconnLoopCloseCh)
	}()

	for {
		select {
		case <-c.connCloseCh:
			return
		case <-time.After(checkInterval):
		}

		c.handlersMu.Lock()
		inner := c.inner
		c.handlersMu.Unlock()

		if inner != nil && inner.IsClosed() {
			c.logger.Info("rews.Connection is attempting to reconnect")

			if err := c.reconnect(context.Background()); err != nil {
				c.logger.Error("rews.Connection failed to reconnect", "error", err)
				continue
			}
		}
	}
}
