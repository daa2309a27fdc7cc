// Package hub is the server side of the realtime layer: rooms keyed by
// document id, presence rosters, and cursor relays. The reference system
// delegated this fan-out to an external realtime service; here it is an
// explicit component with testable contracts.
//
// Delivery guarantees: fan-out for a document excludes the publishing
// session, and one subscriber sees a single publisher's messages in publish
// order. There is no ordering across publishers; concurrent editors converge
// by last-applied-wins replay.
package hub

import (
	"context"
	"sort"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/SheaGuev/collabsync/internal/codec"
	"github.com/SheaGuev/collabsync/pkg/logger"
	"github.com/SheaGuev/collabsync/pkg/models"
	"github.com/SheaGuev/collabsync/pkg/transport"
)

// sendQueueSize bounds each session's outbound queue. A session that cannot
// drain this many messages is a slow consumer and starts losing messages
// rather than stalling the room.
const sendQueueSize = 64

// Session is one connected client on the hub. Messages queued by deliver are
// drained through Receive by the session's write pump.
type Session struct {
	ID       string
	ClientID string

	sendCh    chan *transport.Message
	closedCh  chan struct{}
	closeOnce sync.Once
}

func newSession(clientID string) *Session {
	return &Session{
		ID:       ulid.Make().String(),
		ClientID: clientID,
		sendCh:   make(chan *transport.Message, sendQueueSize),
		closedCh: make(chan struct{}),
	}
}

// Receive exposes the session's outbound queue to its write pump.
func (s *Session) Receive() <-chan *transport.Message {
	return s.sendCh
}

// Closed is closed when the session is unregistered.
func (s *Session) Closed() <-chan struct{} {
	return s.closedCh
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.closedCh)
	})
}

// brokerEnvelope wraps a message published through the Broker with the
// originating hub instance, so an instance skips its own publishes.
type brokerEnvelope struct {
	Origin  string            `cbor:"origin"`
	Message transport.Message `cbor:"message"`
}

// Hub owns rooms and presence rosters for all connected sessions.
type Hub struct {
	instanceID string
	broker     Broker
	codec      *codec.CBOR
	logger     logger.Logger

	mu        sync.Mutex
	rooms     map[string]map[*Session]struct{}
	roomUnsub map[string]func()
	// presence maps a document to its subscribed sessions; a session with a
	// zero-valued collaborator is subscribed but has not tracked an
	// identity yet.
	presence map[string]map[*Session]models.Collaborator
}

// New creates a Hub. broker may be nil for a single-process deployment.
func New(broker Broker, log logger.Logger) *Hub {
	if log == nil {
		log = logger.Default()
	}
	return &Hub{
		instanceID: ulid.Make().String(),
		broker:     broker,
		codec:      &codec.CBOR{},
		logger:     log,
		rooms:      make(map[string]map[*Session]struct{}),
		roomUnsub:  make(map[string]func()),
		presence:   make(map[string]map[*Session]models.Collaborator),
	}
}

// Register creates a session for a connected client. The session belongs to
// no room until it sends a join.
func (h *Hub) Register(clientID string) *Session {
	sess := newSession(clientID)
	h.logger.Debug("session registered", "session_id", sess.ID, "client_id", clientID)
	return sess
}

// Unregister removes the session from every room and presence roster and
// closes it. Rosters the session appeared on are re-broadcast so remaining
// collaborators observe the departure.
func (h *Hub) Unregister(ctx context.Context, sess *Session) {
	h.mu.Lock()
	for documentID, members := range h.rooms {
		if _, ok := members[sess]; ok {
			delete(members, sess)
			h.dropRoomIfEmptyLocked(documentID)
		}
	}
	var affected []string
	for documentID, members := range h.presence {
		if _, ok := members[sess]; ok {
			delete(members, sess)
			if len(members) == 0 {
				delete(h.presence, documentID)
			} else {
				affected = append(affected, documentID)
			}
		}
	}
	h.mu.Unlock()

	for _, documentID := range affected {
		h.broadcastRoster(documentID)
	}
	sess.close()
	h.logger.Debug("session unregistered", "session_id", sess.ID)
}

// Handle processes one inbound message from a session. It is called from the
// session's read goroutine, so a single publisher's messages are handled in
// publish order.
func (h *Hub) Handle(ctx context.Context, sess *Session, msg *transport.Message) {
	if msg.ClientID == "" {
		msg.ClientID = sess.ClientID
	}

	switch msg.Event {
	case transport.EventJoin:
		h.join(ctx, sess, msg.DocumentID)
	case transport.EventLeave:
		h.leave(sess, msg.DocumentID)
	case transport.EventDelta:
		h.broadcastRoom(msg.DocumentID, msg, sess)
		h.publishBroker(ctx, msg)
	case transport.EventPresenceSubscribe:
		h.presenceSubscribe(sess, msg.DocumentID)
	case transport.EventPresenceTrack:
		h.presenceTrack(sess, msg)
	case transport.EventPresenceLeave:
		h.presenceLeave(sess, msg.DocumentID)
	case transport.EventCursor:
		h.relayCursor(sess, msg)
		h.publishBroker(ctx, msg)
	default:
		h.logger.Warn("unknown event", "event", msg.Event, "session_id", sess.ID)
	}
}

// join is idempotent: a session already in the room stays a single member.
func (h *Hub) join(ctx context.Context, sess *Session, documentID string) {
	h.mu.Lock()
	members, ok := h.rooms[documentID]
	if !ok {
		members = make(map[*Session]struct{})
		h.rooms[documentID] = members
	}
	members[sess] = struct{}{}
	firstMember := !ok
	h.mu.Unlock()

	if firstMember && h.broker != nil {
		unsub, err := h.broker.Subscribe(ctx, brokerChannel(documentID), func(data []byte) {
			h.handleBrokerMessage(data)
		})
		if err != nil {
			h.logger.Error("failed to subscribe broker channel", "document_id", documentID, "error", err)
			return
		}
		h.mu.Lock()
		h.roomUnsub[documentID] = unsub
		h.mu.Unlock()
	}
}

func (h *Hub) leave(sess *Session, documentID string) {
	h.mu.Lock()
	if members, ok := h.rooms[documentID]; ok {
		delete(members, sess)
		h.dropRoomIfEmptyLocked(documentID)
	}
	h.mu.Unlock()
}

// dropRoomIfEmptyLocked releases the room and its broker subscription once
// the last member leaves. Caller holds h.mu.
func (h *Hub) dropRoomIfEmptyLocked(documentID string) {
	if len(h.rooms[documentID]) > 0 {
		return
	}
	delete(h.rooms, documentID)
	if unsub, ok := h.roomUnsub[documentID]; ok {
		delete(h.roomUnsub, documentID)
		go unsub()
	}
}

// broadcastRoom fans msg out to every room member except the originating
// session. A nil except delivers to the whole room.
func (h *Hub) broadcastRoom(documentID string, msg *transport.Message, except *Session) {
	h.mu.Lock()
	targets := make([]*Session, 0, len(h.rooms[documentID]))
	for member := range h.rooms[documentID] {
		if member == except {
			continue
		}
		targets = append(targets, member)
	}
	h.mu.Unlock()

	for _, member := range targets {
		h.deliver(member, msg)
	}
}

func (h *Hub) presenceSubscribe(sess *Session, documentID string) {
	h.mu.Lock()
	members, ok := h.presence[documentID]
	if !ok {
		members = make(map[*Session]models.Collaborator)
		h.presence[documentID] = members
	}
	if _, ok := members[sess]; !ok {
		members[sess] = models.Collaborator{}
	}
	h.mu.Unlock()

	// Acknowledge the subscription with the current roster. The client
	// tracks its own identity only after this first sync arrives.
	h.deliver(sess, h.rosterMessage(documentID))
}

func (h *Hub) presenceTrack(sess *Session, msg *transport.Message) {
	var payload transport.TrackPayload
	if err := msg.DecodePayload(&payload); err != nil {
		h.logger.Error("failed to decode track payload", "session_id", sess.ID, "error", err)
		return
	}

	h.mu.Lock()
	members, ok := h.presence[msg.DocumentID]
	if !ok {
		members = make(map[*Session]models.Collaborator)
		h.presence[msg.DocumentID] = members
	}
	members[sess] = payload.Collaborator
	h.mu.Unlock()

	h.broadcastRoster(msg.DocumentID)
}

func (h *Hub) presenceLeave(sess *Session, documentID string) {
	h.mu.Lock()
	members, ok := h.presence[documentID]
	if ok {
		delete(members, sess)
		if len(members) == 0 {
			delete(h.presence, documentID)
			ok = false
		}
	}
	h.mu.Unlock()

	if ok {
		h.broadcastRoster(documentID)
	}
}

// relayCursor forwards a cursor move to every presence subscriber except the
// sender.
func (h *Hub) relayCursor(sess *Session, msg *transport.Message) {
	h.mu.Lock()
	targets := make([]*Session, 0, len(h.presence[msg.DocumentID]))
	for member := range h.presence[msg.DocumentID] {
		if member == sess {
			continue
		}
		targets = append(targets, member)
	}
	h.mu.Unlock()

	for _, member := range targets {
		h.deliver(member, msg)
	}
}

// roster returns the document's tracked collaborators, deduplicated by
// identity and in a stable order. Two sessions tracking the same user
// contribute one roster entry.
func (h *Hub) roster(documentID string) []models.Collaborator {
	h.mu.Lock()
	defer h.mu.Unlock()

	seen := make(map[models.UserID]struct{})
	roster := make([]models.Collaborator, 0, len(h.presence[documentID]))
	for _, collab := range h.presence[documentID] {
		if collab.ID.IsZero() {
			continue
		}
		if _, ok := seen[collab.ID]; ok {
			continue
		}
		seen[collab.ID] = struct{}{}
		roster = append(roster, collab)
	}
	sort.Slice(roster, func(i, j int) bool {
		return roster[i].ID.String() < roster[j].ID.String()
	})
	return roster
}

func (h *Hub) rosterMessage(documentID string) *transport.Message {
	msg, err := transport.NewMessage(transport.EventPresenceSync, documentID, "", &transport.SyncPayload{
		Collaborators: h.roster(documentID),
	})
	if err != nil {
		h.logger.Error("BUG: failed to encode roster sync", "document_id", documentID, "error", err)
		return &transport.Message{Event: transport.EventPresenceSync, DocumentID: documentID}
	}
	return msg
}

// broadcastRoster sends the full roster to every presence subscriber,
// including untracked ones.
func (h *Hub) broadcastRoster(documentID string) {
	msg := h.rosterMessage(documentID)

	h.mu.Lock()
	targets := make([]*Session, 0, len(h.presence[documentID]))
	for member := range h.presence[documentID] {
		targets = append(targets, member)
	}
	h.mu.Unlock()

	for _, member := range targets {
		h.deliver(member, msg)
	}
}

// deliver queues msg on the session's outbound queue. A full queue drops the
// message: delivery is at-most-once and a slow consumer must not stall the
// room.
func (h *Hub) deliver(sess *Session, msg *transport.Message) {
	select {
	case <-sess.closedCh:
	case sess.sendCh <- msg:
	default:
		h.logger.Warn("slow consumer, message dropped",
			"session_id", sess.ID, "event", msg.Event, "document_id", msg.DocumentID)
	}
}

func brokerChannel(documentID string) string {
	return "collabsync:doc:" + documentID
}

// publishBroker forwards a delta or cursor event to other hub instances.
func (h *Hub) publishBroker(ctx context.Context, msg *transport.Message) {
	if h.broker == nil {
		return
	}

	data, err := h.codec.Marshal(&brokerEnvelope{Origin: h.instanceID, Message: *msg})
	if err != nil {
		h.logger.Error("failed to encode broker envelope", "event", msg.Event, "error", err)
		return
	}
	if err := h.broker.Publish(ctx, brokerChannel(msg.DocumentID), data); err != nil {
		h.logger.Error("failed to publish to broker", "document_id", msg.DocumentID, "error", err)
	}
}

// handleBrokerMessage fans a remote instance's publish out to the local room.
// The publishing session lives on the other instance, so nothing local is
// excluded; self-echo suppression falls to the client id check in the
// channels.
func (h *Hub) handleBrokerMessage(data []byte) {
	var env brokerEnvelope
	if err := h.codec.Unmarshal(data, &env); err != nil {
		h.logger.Error("failed to decode broker envelope", "error", err)
		return
	}
	if env.Origin == h.instanceID {
		return
	}

	switch env.Message.Event {
	case transport.EventDelta:
		h.broadcastRoom(env.Message.DocumentID, &env.Message, nil)
	case transport.EventCursor:
		h.relayCursor(nil, &env.Message)
	}
}
