// Package collabsync is the real-time synchronization core of a hierarchical
// document workspace: workspaces contain folders, folders contain files, and
// each node's rich text content is an op-log edited concurrently by multiple
// clients.
//
// The module is organized as a set of composable packages:
//
//   - [github.com/SheaGuev/collabsync/pkg/oplog]: the op-log content model
//     and its order-preserving Compose operation.
//   - [github.com/SheaGuev/collabsync/pkg/models]: domain types, typed ids,
//     node references and content parsing.
//   - [github.com/SheaGuev/collabsync/pkg/docstore]: the client-side source
//     of truth for the tree and each node's current content.
//   - [github.com/SheaGuev/collabsync/pkg/store]: the durable storage
//     boundary, with PostgreSQL and in-memory backends.
//   - [github.com/SheaGuev/collabsync/pkg/transport]: the realtime transport
//     boundary, a gorilla/websocket client and an auto-reconnecting wrapper.
//   - [github.com/SheaGuev/collabsync/pkg/hub]: the server side, with rooms,
//     presence rosters and a pluggable cross-process broker.
//   - [github.com/SheaGuev/collabsync/pkg/realtime]: the client channels for
//     edit broadcast, presence and cursor projection.
//   - [github.com/SheaGuev/collabsync/pkg/coordinator]: debounced optimistic
//     persistence.
//
// Concurrent edits converge by replaying deltas in arrival order; there is
// no operational transform or CRDT merge. Delivery is at-most-once, and the
// debounced persistence path is what keeps durable state caught up.
package collabsync
