// Package realtime implements the client-side channels of the
// synchronization layer: ChangeChannel broadcasts and receives edit deltas
// for the open document, PresenceChannel maintains the live collaborator
// roster and relays cursor positions, and CursorProjector turns remote
// cursor events into stable visual markers.
//
// All channels share one Transport and suppress their own echo by client id.
// Publishing is at-most-once: a message emitted while the transport is
// disconnected is dropped, and the debounced persistence path is what keeps
// durable state converged.
package realtime

// Source classifies where a local change came from. Only genuine user edits
// are broadcast; programmatic changes (applying a received remote delta,
// replaying loaded content) stay local, which is what prevents echo storms.
type Source int

const (
	SourceUser Source = iota
	SourceAPI
)

func (s Source) String() string {
	switch s {
	case SourceUser:
		return "user"
	case SourceAPI:
		return "api"
	default:
		return "unknown"
	}
}
