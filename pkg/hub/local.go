package hub

import (
	"context"
	"errors"
	"sync"

	"github.com/SheaGuev/collabsync/pkg/transport"
)

// LocalClient is an in-process transport.Transport wired straight into a
// Hub, with no socket in between. It gives channel and coordinator tests the
// full realtime contract (rooms, rosters, echo exclusion, ordering) without
// network flakiness, and doubles as the transport for single-process
// embeddings.
type LocalClient struct {
	hub      *Hub
	clientID string

	mu            sync.Mutex
	sess          *Session
	state         transport.State
	handlers      map[string][]transport.Handler
	stateHandlers []transport.StateHandler
}

var _ transport.Transport = (*LocalClient)(nil)

func NewLocalClient(h *Hub, clientID string) *LocalClient {
	if clientID == "" {
		clientID = transport.NewClientID()
	}
	return &LocalClient{
		hub:      h,
		clientID: clientID,
		state:    transport.StatePending,
		handlers: make(map[string][]transport.Handler),
	}
}

// Connect registers a session with the hub and starts the delivery loop
// that plays queued hub messages into the registered handlers.
func (c *LocalClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.sess != nil {
		c.mu.Unlock()
		return errors.New("hub: local client already connected")
	}
	sess := c.hub.Register(c.clientID)
	c.sess = sess
	c.mu.Unlock()

	go c.deliveryLoop(sess)

	c.setState(transport.StateConnected)
	return nil
}

func (c *LocalClient) Close(ctx context.Context) error {
	c.mu.Lock()
	sess := c.sess
	c.sess = nil
	c.mu.Unlock()

	if sess == nil {
		return errors.New("hub: local client not connected")
	}
	c.hub.Unregister(ctx, sess)
	c.setState(transport.StateDisconnected)
	return nil
}

// Emit hands the message to the hub synchronously, on the caller's
// goroutine. Like the socket transport, emitting while disconnected drops
// the message with an error.
func (c *LocalClient) Emit(ctx context.Context, msg *transport.Message) error {
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()

	if sess == nil {
		return errors.New("hub: local client not connected, message dropped")
	}
	if msg.ClientID == "" {
		msg.ClientID = c.clientID
	}
	c.hub.Handle(ctx, sess, msg)
	return nil
}

func (c *LocalClient) On(event string, handler transport.Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = append(c.handlers[event], handler)
}

func (c *LocalClient) OnStateChange(handler transport.StateHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stateHandlers = append(c.stateHandlers, handler)
}

func (c *LocalClient) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == transport.StateDisconnected
}

func (c *LocalClient) setState(state transport.State) {
	c.mu.Lock()
	c.state = state
	handlers := make([]transport.StateHandler, len(c.stateHandlers))
	copy(handlers, c.stateHandlers)
	c.mu.Unlock()

	for _, h := range handlers {
		h(state)
	}
}

// deliveryLoop dispatches hub messages to handlers in delivery order, the
// same contract the socket transport's read loop provides.
func (c *LocalClient) deliveryLoop(sess *Session) {
	for {
		select {
		case <-sess.Closed():
			return
		case msg := <-sess.Receive():
			c.mu.Lock()
			handlers := make([]transport.Handler, len(c.handlers[msg.Event]))
			copy(handlers, c.handlers[msg.Event])
			c.mu.Unlock()

			for _, h := range handlers {
				h(msg)
			}
		}
	}
}
