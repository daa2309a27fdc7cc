package realtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/SheaGuev/collabsync/pkg/logger"
	"github.com/SheaGuev/collabsync/pkg/oplog"
	"github.com/SheaGuev/collabsync/pkg/transport"
)

// DeltaHandler consumes a remote collaborator's delta for the active
// document.
type DeltaHandler func(documentID string, delta oplog.Delta)

// ChangeChannel is the per-document edit broadcast channel.
//
// Join is idempotent, membership survives reconnects (the channel re-announces
// every joined room when it observes the Connected transition), and inbound
// deltas are filtered twice: the client's own echo is dropped by client id,
// and deltas for any document other than the active one are discarded so a
// late broadcast cannot corrupt a document opened after navigation.
type ChangeChannel struct {
	transport transport.Transport
	clientID  string
	logger    logger.Logger

	mu     sync.Mutex
	joined map[string]struct{}
	// active is the document currently open locally. At most one document
	// is active; deltas for any other document are stale and dropped.
	active   string
	handlers []DeltaHandler
}

func NewChangeChannel(t transport.Transport, clientID string, log logger.Logger) *ChangeChannel {
	if log == nil {
		log = logger.Default()
	}
	c := &ChangeChannel{
		transport: t,
		clientID:  clientID,
		logger:    log,
		joined:    make(map[string]struct{}),
	}

	t.On(transport.EventDelta, c.onDelta)
	t.OnStateChange(func(state transport.State) {
		if state == transport.StateConnected {
			c.rejoin()
		}
	})
	return c
}

// Join enters the document's room and makes it the active document. Joining
// a room the channel is already in only switches the active document; no
// duplicate membership and no duplicate delta delivery results.
func (c *ChangeChannel) Join(ctx context.Context, documentID string) error {
	c.mu.Lock()
	_, already := c.joined[documentID]
	c.joined[documentID] = struct{}{}
	c.active = documentID
	c.mu.Unlock()

	if already {
		return nil
	}

	msg, err := transport.NewMessage(transport.EventJoin, documentID, c.clientID, nil)
	if err != nil {
		return err
	}
	if err := c.transport.Emit(ctx, msg); err != nil {
		return fmt.Errorf("realtime: failed to join %s: %w", documentID, err)
	}
	return nil
}

// Leave exits the document's room. The active document is cleared when it is
// the one being left.
func (c *ChangeChannel) Leave(ctx context.Context, documentID string) error {
	c.mu.Lock()
	_, member := c.joined[documentID]
	delete(c.joined, documentID)
	if c.active == documentID {
		c.active = ""
	}
	c.mu.Unlock()

	if !member {
		return nil
	}

	msg, err := transport.NewMessage(transport.EventLeave, documentID, c.clientID, nil)
	if err != nil {
		return err
	}
	return c.transport.Emit(ctx, msg)
}

// Publish broadcasts a local delta to the document's room. Only user-sourced
// deltas go out; programmatic changes return immediately. While disconnected
// the delta is dropped with an error and never queued, so a reconnecting
// client does not replay a burst of stale edits.
func (c *ChangeChannel) Publish(ctx context.Context, documentID string, delta oplog.Delta, source Source) error {
	if source != SourceUser {
		return nil
	}

	msg, err := transport.NewMessage(transport.EventDelta, documentID, c.clientID, &transport.DeltaPayload{Delta: delta})
	if err != nil {
		return err
	}
	if err := c.transport.Emit(ctx, msg); err != nil {
		return fmt.Errorf("realtime: delta for %s dropped: %w", documentID, err)
	}
	return nil
}

// OnRemoteDelta registers a handler for collaborator deltas on the active
// document. Handlers run in delivery order on the transport's read
// goroutine, which is what makes last-applied-wins replay deterministic per
// publisher.
func (c *ChangeChannel) OnRemoteDelta(handler DeltaHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, handler)
}

func (c *ChangeChannel) onDelta(msg *transport.Message) {
	// Own echo: the hub already excludes the publishing session, but a
	// brokered multi-instance deployment can still reflect the message.
	if msg.ClientID == c.clientID {
		return
	}

	c.mu.Lock()
	active := c.active
	handlers := make([]DeltaHandler, len(c.handlers))
	copy(handlers, c.handlers)
	c.mu.Unlock()

	if msg.DocumentID != active {
		c.logger.Debug("dropping stale delta", "document_id", msg.DocumentID, "active", active)
		return
	}

	var payload transport.DeltaPayload
	if err := msg.DecodePayload(&payload); err != nil {
		c.logger.Error("failed to decode remote delta", "document_id", msg.DocumentID, "error", err)
		return
	}

	for _, h := range handlers {
		h(msg.DocumentID, payload.Delta)
	}
}

// rejoin re-announces every joined room after a reconnect.
func (c *ChangeChannel) rejoin() {
	c.mu.Lock()
	documents := make([]string, 0, len(c.joined))
	for documentID := range c.joined {
		documents = append(documents, documentID)
	}
	c.mu.Unlock()

	for _, documentID := range documents {
		msg, err := transport.NewMessage(transport.EventJoin, documentID, c.clientID, nil)
		if err != nil {
			c.logger.Error("BUG: failed to build rejoin message", "document_id", documentID, "error", err)
			continue
		}
		if err := c.transport.Emit(context.Background(), msg); err != nil {
			c.logger.Warn("failed to rejoin document room", "document_id", documentID, "error", err)
		}
	}
}
