package realtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/SheaGuev/collabsync/pkg/logger"
	"github.com/SheaGuev/collabsync/pkg/models"
	"github.com/SheaGuev/collabsync/pkg/transport"
)

// PresenceHandler observes a collaborator joining or leaving a document.
type PresenceHandler func(documentID string, collaborator models.Collaborator)

// CursorHandler observes a remote collaborator's cursor move.
type CursorHandler func(documentID string, collaborator models.Collaborator, r models.CursorRange)

// presenceSub is one document's subscription state.
type presenceSub struct {
	// roster is the last synced set of collaborators, keyed by identity.
	roster map[models.UserID]models.Collaborator
	// tracked flips after the first sync ack, when the channel announces
	// its own identity. Tracking before the ack would race the
	// subscription on the hub.
	tracked bool
}

// PresenceChannel maintains live collaborator rosters per document.
//
// The hub's roster sync is authoritative: every membership change arrives as
// a full roster, and the channel diffs it against the previous one to fire
// join/leave notifications. Membership has no timeout; a collaborator leaves
// the roster only when the hub drops their sessions.
type PresenceChannel struct {
	transport transport.Transport
	clientID  string
	self      models.Collaborator
	logger    logger.Logger

	mu            sync.Mutex
	subs          map[string]*presenceSub
	joinHandlers  []PresenceHandler
	leaveHandlers []PresenceHandler
	syncHandlers  []func(documentID string, roster []models.Collaborator)
	cursorHandler []CursorHandler
}

func NewPresenceChannel(t transport.Transport, clientID string, self models.Collaborator, log logger.Logger) *PresenceChannel {
	if log == nil {
		log = logger.Default()
	}
	p := &PresenceChannel{
		transport: t,
		clientID:  clientID,
		self:      self,
		logger:    log,
		subs:      make(map[string]*presenceSub),
	}

	t.On(transport.EventPresenceSync, p.onSync)
	t.On(transport.EventCursor, p.onCursor)
	t.OnStateChange(func(state transport.State) {
		if state == transport.StateConnected {
			p.resubscribe()
		}
	})
	return p
}

// Subscribe opens the document's presence channel. The channel tracks its
// own identity only after the hub acknowledges the subscription with the
// first roster sync. Subscribing twice is a no-op.
func (p *PresenceChannel) Subscribe(ctx context.Context, documentID string) error {
	p.mu.Lock()
	if _, ok := p.subs[documentID]; ok {
		p.mu.Unlock()
		return nil
	}
	p.subs[documentID] = &presenceSub{roster: make(map[models.UserID]models.Collaborator)}
	p.mu.Unlock()

	msg, err := transport.NewMessage(transport.EventPresenceSubscribe, documentID, p.clientID, nil)
	if err != nil {
		return err
	}
	if err := p.transport.Emit(ctx, msg); err != nil {
		return fmt.Errorf("realtime: failed to subscribe presence for %s: %w", documentID, err)
	}
	return nil
}

// Leave closes the document's presence channel.
func (p *PresenceChannel) Leave(ctx context.Context, documentID string) error {
	p.mu.Lock()
	_, ok := p.subs[documentID]
	delete(p.subs, documentID)
	p.mu.Unlock()

	if !ok {
		return nil
	}

	msg, err := transport.NewMessage(transport.EventPresenceLeave, documentID, p.clientID, nil)
	if err != nil {
		return err
	}
	return p.transport.Emit(ctx, msg)
}

// BroadcastCursor relays the local selection to the document's presence
// subscribers. Only user-driven moves go out.
func (p *PresenceChannel) BroadcastCursor(ctx context.Context, documentID string, r models.CursorRange, source Source) error {
	if source != SourceUser {
		return nil
	}

	msg, err := transport.NewMessage(transport.EventCursor, documentID, p.clientID, &transport.CursorPayload{
		Collaborator: p.self,
		Range:        r,
	})
	if err != nil {
		return err
	}
	if err := p.transport.Emit(ctx, msg); err != nil {
		return fmt.Errorf("realtime: cursor for %s dropped: %w", documentID, err)
	}
	return nil
}

// OnJoin fires when a collaborator appears on a subscribed roster. The local
// identity never triggers it.
func (p *PresenceChannel) OnJoin(handler PresenceHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.joinHandlers = append(p.joinHandlers, handler)
}

// OnLeave fires when a collaborator disappears from a subscribed roster.
func (p *PresenceChannel) OnLeave(handler PresenceHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.leaveHandlers = append(p.leaveHandlers, handler)
}

// OnSync fires with the full deduplicated roster after every sync.
func (p *PresenceChannel) OnSync(handler func(documentID string, roster []models.Collaborator)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.syncHandlers = append(p.syncHandlers, handler)
}

// OnCursor fires for remote collaborators' cursor moves. The local
// identity's own moves are ignored.
func (p *PresenceChannel) OnCursor(handler CursorHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cursorHandler = append(p.cursorHandler, handler)
}

// AttachProjector keeps a CursorProjector in lockstep with the rosters this
// channel observes: every non-self collaborator on a synced roster gets a
// marker, departed collaborators lose theirs, and remote cursor moves update
// the corresponding marker.
func (p *PresenceChannel) AttachProjector(proj *CursorProjector) {
	p.OnSync(func(documentID string, roster []models.Collaborator) {
		for _, collab := range roster {
			if collab.ID != p.self.ID {
				proj.Ensure(collab)
			}
		}
	})
	p.OnLeave(func(documentID string, collab models.Collaborator) {
		proj.Remove(collab.ID)
	})
	p.OnCursor(func(documentID string, collab models.Collaborator, r models.CursorRange) {
		proj.Upsert(collab, r)
	})
}

func (p *PresenceChannel) onSync(msg *transport.Message) {
	var payload transport.SyncPayload
	if err := msg.DecodePayload(&payload); err != nil {
		p.logger.Error("failed to decode roster sync", "document_id", msg.DocumentID, "error", err)
		return
	}

	p.mu.Lock()
	sub, ok := p.subs[msg.DocumentID]
	if !ok {
		p.mu.Unlock()
		return
	}

	// Diff against the previous roster. The hub dedupes identities, so the
	// incoming list is already one entry per collaborator.
	incoming := make(map[models.UserID]models.Collaborator, len(payload.Collaborators))
	var joins, leaves []models.Collaborator
	for _, collab := range payload.Collaborators {
		incoming[collab.ID] = collab
		if _, known := sub.roster[collab.ID]; !known && collab.ID != p.self.ID {
			joins = append(joins, collab)
		}
	}
	for id, collab := range sub.roster {
		if _, still := incoming[id]; !still && id != p.self.ID {
			leaves = append(leaves, collab)
		}
	}
	sub.roster = incoming

	needsTrack := !sub.tracked
	sub.tracked = true

	joinHandlers := make([]PresenceHandler, len(p.joinHandlers))
	copy(joinHandlers, p.joinHandlers)
	leaveHandlers := make([]PresenceHandler, len(p.leaveHandlers))
	copy(leaveHandlers, p.leaveHandlers)
	syncHandlers := make([]func(string, []models.Collaborator), len(p.syncHandlers))
	copy(syncHandlers, p.syncHandlers)
	p.mu.Unlock()

	if needsTrack {
		p.track(msg.DocumentID)
	}

	for _, collab := range joins {
		for _, h := range joinHandlers {
			h(msg.DocumentID, collab)
		}
	}
	for _, collab := range leaves {
		for _, h := range leaveHandlers {
			h(msg.DocumentID, collab)
		}
	}
	for _, h := range syncHandlers {
		h(msg.DocumentID, payload.Collaborators)
	}
}

// track announces the local identity on the document's presence channel.
func (p *PresenceChannel) track(documentID string) {
	msg, err := transport.NewMessage(transport.EventPresenceTrack, documentID, p.clientID, &transport.TrackPayload{
		Collaborator: p.self,
	})
	if err != nil {
		p.logger.Error("BUG: failed to build track message", "document_id", documentID, "error", err)
		return
	}
	if err := p.transport.Emit(context.Background(), msg); err != nil {
		p.logger.Warn("failed to track presence", "document_id", documentID, "error", err)
	}
}

func (p *PresenceChannel) onCursor(msg *transport.Message) {
	var payload transport.CursorPayload
	if err := msg.DecodePayload(&payload); err != nil {
		p.logger.Error("failed to decode cursor payload", "document_id", msg.DocumentID, "error", err)
		return
	}
	// Own cursor, reflected by a brokered deployment or another tab of the
	// same identity.
	if payload.Collaborator.ID == p.self.ID {
		return
	}

	p.mu.Lock()
	if _, ok := p.subs[msg.DocumentID]; !ok {
		p.mu.Unlock()
		return
	}
	handlers := make([]CursorHandler, len(p.cursorHandler))
	copy(handlers, p.cursorHandler)
	p.mu.Unlock()

	for _, h := range handlers {
		h(msg.DocumentID, payload.Collaborator, payload.Range)
	}
}

// resubscribe re-opens every presence channel after a reconnect. Tracking
// state resets so the identity is re-announced after the fresh sync ack.
func (p *PresenceChannel) resubscribe() {
	p.mu.Lock()
	documents := make([]string, 0, len(p.subs))
	for documentID, sub := range p.subs {
		sub.tracked = false
		documents = append(documents, documentID)
	}
	p.mu.Unlock()

	for _, documentID := range documents {
		msg, err := transport.NewMessage(transport.EventPresenceSubscribe, documentID, p.clientID, nil)
		if err != nil {
			p.logger.Error("BUG: failed to build resubscribe message", "document_id", documentID, "error", err)
			continue
		}
		if err := p.transport.Emit(context.Background(), msg); err != nil {
			p.logger.Warn("failed to resubscribe presence", "document_id", documentID, "error", err)
		}
	}
}
