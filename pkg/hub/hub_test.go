package hub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SheaGuev/collabsync/pkg/models"
	"github.com/SheaGuev/collabsync/pkg/oplog"
	"github.com/SheaGuev/collabsync/pkg/transport"
)

func recvMessage(t *testing.T, sess *Session) *transport.Message {
	t.Helper()
	select {
	case msg := <-sess.Receive():
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a message")
		return nil
	}
}

func assertNoMessage(t *testing.T, sess *Session) {
	t.Helper()
	select {
	case msg := <-sess.Receive():
		t.Fatalf("unexpected %s message", msg.Event)
	default:
	}
}

func deltaMessage(t *testing.T, documentID, clientID string) *transport.Message {
	t.Helper()
	msg, err := transport.NewMessage(transport.EventDelta, documentID, clientID, &transport.DeltaPayload{
		Delta: oplog.New().Insert("x", nil),
	})
	require.NoError(t, err)
	return msg
}

func TestDeltaExcludesPublisher(t *testing.T) {
	ctx := context.Background()
	h := New(nil, nil)

	alice := h.Register("alice")
	bob := h.Register("bob")
	h.Handle(ctx, alice, &transport.Message{Event: transport.EventJoin, DocumentID: "doc-1"})
	h.Handle(ctx, bob, &transport.Message{Event: transport.EventJoin, DocumentID: "doc-1"})

	h.Handle(ctx, alice, deltaMessage(t, "doc-1", "alice"))

	got := recvMessage(t, bob)
	assert.Equal(t, transport.EventDelta, got.Event)
	assert.Equal(t, "alice", got.ClientID)
	assertNoMessage(t, alice)
}

func TestJoinIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := New(nil, nil)

	alice := h.Register("alice")
	bob := h.Register("bob")
	h.Handle(ctx, alice, &transport.Message{Event: transport.EventJoin, DocumentID: "doc-1"})
	h.Handle(ctx, bob, &transport.Message{Event: transport.EventJoin, DocumentID: "doc-1"})
	h.Handle(ctx, bob, &transport.Message{Event: transport.EventJoin, DocumentID: "doc-1"})

	h.Handle(ctx, alice, deltaMessage(t, "doc-1", "alice"))

	recvMessage(t, bob)
	assertNoMessage(t, bob)
}

func TestRoomsAreScopedByDocument(t *testing.T) {
	ctx := context.Background()
	h := New(nil, nil)

	alice := h.Register("alice")
	bob := h.Register("bob")
	h.Handle(ctx, alice, &transport.Message{Event: transport.EventJoin, DocumentID: "doc-1"})
	h.Handle(ctx, bob, &transport.Message{Event: transport.EventJoin, DocumentID: "doc-2"})

	h.Handle(ctx, alice, deltaMessage(t, "doc-1", "alice"))

	assertNoMessage(t, bob)
}

func TestPerPublisherOrdering(t *testing.T) {
	ctx := context.Background()
	h := New(nil, nil)

	alice := h.Register("alice")
	bob := h.Register("bob")
	h.Handle(ctx, alice, &transport.Message{Event: transport.EventJoin, DocumentID: "doc-1"})
	h.Handle(ctx, bob, &transport.Message{Event: transport.EventJoin, DocumentID: "doc-1"})

	for i := 1; i <= 10; i++ {
		msg, err := transport.NewMessage(transport.EventDelta, "doc-1", "alice", &transport.DeltaPayload{
			Delta: oplog.New().Retain(i, nil).Insert("x", nil),
		})
		require.NoError(t, err)
		h.Handle(ctx, alice, msg)
	}

	for i := 1; i <= 10; i++ {
		got := recvMessage(t, bob)
		var payload transport.DeltaPayload
		require.NoError(t, got.DecodePayload(&payload))
		assert.Equal(t, i, payload.Delta.Ops[0].Retain, "messages must arrive in publish order")
	}
}

func TestLeaveStopsDelivery(t *testing.T) {
	ctx := context.Background()
	h := New(nil, nil)

	alice := h.Register("alice")
	bob := h.Register("bob")
	h.Handle(ctx, alice, &transport.Message{Event: transport.EventJoin, DocumentID: "doc-1"})
	h.Handle(ctx, bob, &transport.Message{Event: transport.EventJoin, DocumentID: "doc-1"})
	h.Handle(ctx, bob, &transport.Message{Event: transport.EventLeave, DocumentID: "doc-1"})

	h.Handle(ctx, alice, deltaMessage(t, "doc-1", "alice"))

	assertNoMessage(t, bob)
}

func trackMessage(t *testing.T, documentID string, collab models.Collaborator) *transport.Message {
	t.Helper()
	msg, err := transport.NewMessage(transport.EventPresenceTrack, documentID, "", &transport.TrackPayload{
		Collaborator: collab,
	})
	require.NoError(t, err)
	return msg
}

func decodeRoster(t *testing.T, msg *transport.Message) []models.Collaborator {
	t.Helper()
	require.Equal(t, transport.EventPresenceSync, msg.Event)
	var payload transport.SyncPayload
	require.NoError(t, msg.DecodePayload(&payload))
	return payload.Collaborators
}

func TestPresenceSubscribeAcksWithRoster(t *testing.T) {
	ctx := context.Background()
	h := New(nil, nil)

	alice := h.Register("alice")
	h.Handle(ctx, alice, &transport.Message{Event: transport.EventPresenceSubscribe, DocumentID: "doc-1"})

	roster := decodeRoster(t, recvMessage(t, alice))
	assert.Empty(t, roster, "nobody has tracked yet")
}

func TestPresenceTrackBroadcastsDedupedRoster(t *testing.T) {
	ctx := context.Background()
	h := New(nil, nil)
	user := models.Collaborator{ID: models.NewUserID(), Email: "alice@example.com"}

	// Two sessions for the same identity, e.g. two browser tabs.
	tab1 := h.Register("tab1")
	tab2 := h.Register("tab2")
	observer := h.Register("observer")
	for _, sess := range []*Session{tab1, tab2, observer} {
		h.Handle(ctx, sess, &transport.Message{Event: transport.EventPresenceSubscribe, DocumentID: "doc-1"})
		recvMessage(t, sess) // subscribe ack
	}

	h.Handle(ctx, tab1, trackMessage(t, "doc-1", user))
	for _, sess := range []*Session{tab1, tab2, observer} {
		recvMessage(t, sess)
	}

	h.Handle(ctx, tab2, trackMessage(t, "doc-1", user))

	roster := decodeRoster(t, recvMessage(t, observer))
	require.Len(t, roster, 1, "same identity must appear once")
	assert.Equal(t, user.ID, roster[0].ID)
	assert.Equal(t, "alice@example.com", roster[0].Email)
}

func TestUnregisterBroadcastsDeparture(t *testing.T) {
	ctx := context.Background()
	h := New(nil, nil)
	alice := models.Collaborator{ID: models.NewUserID(), Email: "alice@example.com"}
	bob := models.Collaborator{ID: models.NewUserID(), Email: "bob@example.com"}

	aliceSess := h.Register("alice")
	bobSess := h.Register("bob")
	for _, sess := range []*Session{aliceSess, bobSess} {
		h.Handle(ctx, sess, &transport.Message{Event: transport.EventPresenceSubscribe, DocumentID: "doc-1"})
		recvMessage(t, sess)
	}
	h.Handle(ctx, aliceSess, trackMessage(t, "doc-1", alice))
	recvMessage(t, aliceSess)
	recvMessage(t, bobSess)
	h.Handle(ctx, bobSess, trackMessage(t, "doc-1", bob))
	recvMessage(t, aliceSess)
	recvMessage(t, bobSess)

	h.Unregister(ctx, bobSess)

	roster := decodeRoster(t, recvMessage(t, aliceSess))
	require.Len(t, roster, 1)
	assert.Equal(t, alice.ID, roster[0].ID)
}

func TestCursorRelayExcludesSender(t *testing.T) {
	ctx := context.Background()
	h := New(nil, nil)

	alice := h.Register("alice")
	bob := h.Register("bob")
	for _, sess := range []*Session{alice, bob} {
		h.Handle(ctx, sess, &transport.Message{Event: transport.EventPresenceSubscribe, DocumentID: "doc-1"})
		recvMessage(t, sess)
	}

	msg, err := transport.NewMessage(transport.EventCursor, "doc-1", "alice", &transport.CursorPayload{
		Collaborator: models.Collaborator{ID: models.NewUserID()},
		Range:        models.CursorRange{Index: 3, Length: 2},
	})
	require.NoError(t, err)
	h.Handle(ctx, alice, msg)

	got := recvMessage(t, bob)
	assert.Equal(t, transport.EventCursor, got.Event)
	assertNoMessage(t, alice)
}

func TestBrokerBridgesHubInstances(t *testing.T) {
	ctx := context.Background()
	broker := NewMemoryBroker()
	hubA := New(broker, nil)
	hubB := New(broker, nil)

	alice := hubA.Register("alice")
	bob := hubB.Register("bob")
	hubA.Handle(ctx, alice, &transport.Message{Event: transport.EventJoin, DocumentID: "doc-1"})
	hubB.Handle(ctx, bob, &transport.Message{Event: transport.EventJoin, DocumentID: "doc-1"})

	hubA.Handle(ctx, alice, deltaMessage(t, "doc-1", "alice"))

	got := recvMessage(t, bob)
	assert.Equal(t, transport.EventDelta, got.Event)
	assert.Equal(t, "alice", got.ClientID)

	// The publishing instance skips its own broker echo.
	assertNoMessage(t, alice)
}

func TestMemoryBrokerUnsubscribe(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBroker()

	var got [][]byte
	unsub, err := b.Subscribe(ctx, "ch", func(data []byte) {
		got = append(got, data)
	})
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, "ch", []byte("one")))
	unsub()
	require.NoError(t, b.Publish(ctx, "ch", []byte("two")))

	require.Len(t, got, 1)
	assert.Equal(t, []byte("one"), got[0])
}

func TestLocalClientRoundTrip(t *testing.T) {
	ctx := context.Background()
	h := New(nil, nil)

	alice := NewLocalClient(h, "alice")
	bob := NewLocalClient(h, "bob")
	require.NoError(t, alice.Connect(ctx))
	require.NoError(t, bob.Connect(ctx))
	defer alice.Close(ctx)
	defer bob.Close(ctx)

	received := make(chan *transport.Message, 1)
	bob.On(transport.EventDelta, func(msg *transport.Message) {
		received <- msg
	})

	require.NoError(t, alice.Emit(ctx, &transport.Message{Event: transport.EventJoin, DocumentID: "doc-1"}))
	require.NoError(t, bob.Emit(ctx, &transport.Message{Event: transport.EventJoin, DocumentID: "doc-1"}))
	require.NoError(t, alice.Emit(ctx, deltaMessage(t, "doc-1", "")))

	select {
	case msg := <-received:
		assert.Equal(t, "alice", msg.ClientID)
	case <-time.After(time.Second):
		t.Fatal("delta never reached the other client")
	}
}

func TestLocalClientGeneratesClientID(t *testing.T) {
	h := New(nil, nil)

	a := NewLocalClient(h, "")
	b := NewLocalClient(h, "")

	assert.NotEmpty(t, a.clientID, "a client without an id cannot suppress its own echo")
	assert.NotEqual(t, a.clientID, b.clientID)
}
