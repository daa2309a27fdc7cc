package transport

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/SheaGuev/collabsync/pkg/models"
	"github.com/SheaGuev/collabsync/pkg/oplog"
)

// Event names carried in the Message envelope. Room events scope to one
// document; presence events ride the same transport but form a logically
// separate membership channel.
const (
	EventJoin              = "room:join"
	EventLeave             = "room:leave"
	EventDelta             = "doc:delta"
	EventPresenceSubscribe = "presence:subscribe"
	EventPresenceLeave     = "presence:leave"
	EventPresenceTrack     = "presence:track"
	EventPresenceSync      = "presence:sync"
	EventCursor            = "cursor:move"
)

// Message is the wire envelope for every realtime event. Payload holds the
// event-specific body as raw CBOR; the typed payload helpers below encode
// and decode it.
type Message struct {
	Event      string          `cbor:"event"`
	DocumentID string          `cbor:"documentId"`
	// ClientID identifies the originating client session so that
	// subscribers can suppress their own echo.
	ClientID string          `cbor:"clientId,omitempty"`
	Payload  cbor.RawMessage `cbor:"payload,omitempty"`
}

// DeltaPayload carries one op-log fragment from a genuine user edit.
type DeltaPayload struct {
	Delta oplog.Delta `cbor:"delta"`
}

// TrackPayload announces the sender's identity on a presence channel.
type TrackPayload struct {
	Collaborator models.Collaborator `cbor:"collaborator"`
}

// SyncPayload is the hub's full roster broadcast for one document.
type SyncPayload struct {
	Collaborators []models.Collaborator `cbor:"collaborators"`
}

// CursorPayload relays one collaborator's selection change.
type CursorPayload struct {
	Collaborator models.Collaborator `cbor:"collaborator"`
	Range        models.CursorRange  `cbor:"range"`
}

// NewMessage builds an envelope with an encoded payload. A nil payload
// produces an envelope-only message (join/leave/subscribe).
func NewMessage(event, documentID, clientID string, payload any) (*Message, error) {
	msg := &Message{Event: event, DocumentID: documentID, ClientID: clientID}
	if payload != nil {
		raw, err := cbor.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("transport: failed to encode %s payload: %w", event, err)
		}
		msg.Payload = raw
	}
	return msg, nil
}

// DecodePayload decodes the envelope body into dst.
func (m *Message) DecodePayload(dst any) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("transport: %s message has no payload", m.Event)
	}
	if err := cbor.Unmarshal(m.Payload, dst); err != nil {
		return fmt.Errorf("transport: failed to decode %s payload: %w", m.Event, err)
	}
	return nil
}
