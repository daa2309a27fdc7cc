package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SheaGuev/collabsync/pkg/models"
)

func TestUpsertKeepsColorStable(t *testing.T) {
	p := NewCursorProjector()
	bob := collaborator("bob@example.com")

	first := p.Upsert(bob, models.CursorRange{Index: 1})
	require.NotEmpty(t, first.Collaborator.Color, "a colorless collaborator gets a palette color")

	// Re-creating the marker, even with a different incoming color, keeps
	// the one assigned for this session.
	bob.Color = "#000000"
	second := p.Upsert(bob, models.CursorRange{Index: 5})
	assert.Equal(t, first.Collaborator.Color, second.Collaborator.Color)
	assert.Equal(t, 5, second.Range.Index)
}

func TestUpsertHonorsOwnColor(t *testing.T) {
	p := NewCursorProjector()
	bob := collaborator("bob@example.com")
	bob.Color = "#123456"

	marker := p.Upsert(bob, models.CursorRange{})
	assert.Equal(t, "#123456", marker.Collaborator.Color)
}

func TestMoveUnknownCursor(t *testing.T) {
	p := NewCursorProjector()

	_, ok := p.Move(models.NewUserID(), models.CursorRange{Index: 2})
	assert.False(t, ok)
}

func TestMoveUpdatesRange(t *testing.T) {
	p := NewCursorProjector()
	bob := collaborator("bob@example.com")
	p.Upsert(bob, models.CursorRange{Index: 1})

	marker, ok := p.Move(bob.ID, models.CursorRange{Index: 9, Length: 3})
	require.True(t, ok)
	assert.Equal(t, models.CursorRange{Index: 9, Length: 3}, marker.Range)
}

func TestMarkersSnapshot(t *testing.T) {
	p := NewCursorProjector()
	bob := collaborator("bob@example.com")
	carol := collaborator("carol@example.com")
	p.Upsert(bob, models.CursorRange{})
	p.Upsert(carol, models.CursorRange{})

	require.Len(t, p.Markers(), 2)

	p.Remove(bob.ID)
	markers := p.Markers()
	require.Len(t, markers, 1)
	assert.Equal(t, carol.ID, markers[0].Collaborator.ID)

	p.Clear()
	assert.Empty(t, p.Markers())
}
