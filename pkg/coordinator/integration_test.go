package coordinator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SheaGuev/collabsync/pkg/hub"
	"github.com/SheaGuev/collabsync/pkg/oplog"
	"github.com/SheaGuev/collabsync/pkg/realtime"
)

// TestBroadcastPrecedesPersistence runs the whole client stack against an
// in-process hub: a user edit must reach collaborators synchronously even
// when the durable write later fails.
func TestBroadcastPrecedesPersistence(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 10*time.Millisecond)
	f.store.commitErr = errors.New("database is on fire")

	h := hub.New(nil, nil)
	aliceT := hub.NewLocalClient(h, "alice")
	bobT := hub.NewLocalClient(h, "bob")
	aliceCh := realtime.NewChangeChannel(aliceT, "alice", nil)
	bobCh := realtime.NewChangeChannel(bobT, "bob", nil)
	require.NoError(t, aliceT.Connect(ctx))
	require.NoError(t, bobT.Connect(ctx))
	defer aliceT.Close(ctx)
	defer bobT.Close(ctx)

	coord := New(f.store, f.docs, aliceCh, 10*time.Millisecond, nil)
	failures := make(chan *PersistenceError, 1)
	coord.OnError(func(err *PersistenceError) { failures <- err })

	documentID := f.ref.DocumentID()
	require.NoError(t, aliceCh.Join(ctx, documentID))
	require.NoError(t, bobCh.Join(ctx, documentID))

	received := make(chan oplog.Delta, 1)
	bobCh.OnRemoteDelta(func(documentID string, delta oplog.Delta) {
		received <- delta
	})

	require.NoError(t, coord.OnLocalChange(ctx, f.ref, oplog.New().Retain(5, nil).Insert("!", nil), realtime.SourceUser))

	select {
	case delta := <-received:
		assert.Equal(t, "!", delta.PlainText())
	case <-time.After(time.Second):
		t.Fatal("collaborator never received the delta")
	}

	select {
	case err := <-failures:
		assert.ErrorContains(t, err, "database is on fire")
	case <-time.After(2 * time.Second):
		t.Fatal("persistence failure never surfaced")
	}
}
