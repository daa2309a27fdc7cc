package realtime

import (
	"sort"
	"sync"

	"github.com/SheaGuev/collabsync/internal/rand"
	"github.com/SheaGuev/collabsync/pkg/models"
)

// Marker is one remote collaborator's projected cursor.
type Marker struct {
	Collaborator models.Collaborator
	Range        models.CursorRange
}

// defaultPalette colors collaborators that did not bring their own color.
var defaultPalette = []string{
	"#F87171", "#FB923C", "#FBBF24", "#4ADE80",
	"#2DD4BF", "#60A5FA", "#A78BFA", "#F472B6",
}

// CursorProjector maintains the visual cursor markers for remote
// collaborators on the open document.
//
// Creation is idempotent per identity and the assigned color is stable for
// the whole session: re-creating a marker for a known collaborator keeps the
// color it already has, so cursors do not flicker through colors as events
// arrive.
type CursorProjector struct {
	mu      sync.Mutex
	markers map[models.UserID]Marker
}

func NewCursorProjector() *CursorProjector {
	return &CursorProjector{markers: make(map[models.UserID]Marker)}
}

// Upsert creates or refreshes the collaborator's marker and returns it. A
// new marker gets the collaborator's own color, or a palette color when they
// have none; an existing marker keeps its color.
func (p *CursorProjector) Upsert(collab models.Collaborator, r models.CursorRange) Marker {
	p.mu.Lock()
	defer p.mu.Unlock()

	existing, ok := p.markers[collab.ID]
	if ok {
		collab.Color = existing.Collaborator.Color
	} else if collab.Color == "" {
		collab.Color = defaultPalette[rand.IntN(len(defaultPalette))]
	}

	marker := Marker{Collaborator: collab, Range: r}
	p.markers[collab.ID] = marker
	return marker
}

// Ensure creates a marker for the collaborator if none exists, leaving an
// existing marker (including its range) untouched.
func (p *CursorProjector) Ensure(collab models.Collaborator) Marker {
	p.mu.Lock()
	if existing, ok := p.markers[collab.ID]; ok {
		p.mu.Unlock()
		return existing
	}
	p.mu.Unlock()
	return p.Upsert(collab, models.CursorRange{})
}

// Move updates a known collaborator's cursor range. Moving an unknown cursor
// reports false and changes nothing; the caller decides whether to Upsert.
func (p *CursorProjector) Move(id models.UserID, r models.CursorRange) (Marker, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	marker, ok := p.markers[id]
	if !ok {
		return Marker{}, false
	}
	marker.Range = r
	p.markers[id] = marker
	return marker, true
}

// Remove drops the collaborator's marker, typically when they leave the
// roster.
func (p *CursorProjector) Remove(id models.UserID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.markers, id)
}

// Markers returns all current markers in a stable order.
func (p *CursorProjector) Markers() []Marker {
	p.mu.Lock()
	defer p.mu.Unlock()

	markers := make([]Marker, 0, len(p.markers))
	for _, marker := range p.markers {
		markers = append(markers, marker)
	}
	sort.Slice(markers, func(i, j int) bool {
		return markers[i].Collaborator.ID.String() < markers[j].Collaborator.ID.String()
	})
	return markers
}

// Clear drops every marker, for navigation away from the document.
func (p *CursorProjector) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.markers = make(map[models.UserID]Marker)
}
