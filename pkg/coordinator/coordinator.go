// Package coordinator schedules durable persistence for locally edited
// documents: optimistic in-memory projection first, a debounced content
// commit second.
//
// Every user edit restarts the edited node's debounce window, so a typing
// burst coalesces into one storage write carrying the latest full snapshot.
// The projection is never rolled back when a commit fails; the next edit's
// debounce cycle retries with newer content, and the failure is surfaced
// through the error callback instead.
package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/SheaGuev/collabsync/pkg/docstore"
	"github.com/SheaGuev/collabsync/pkg/logger"
	"github.com/SheaGuev/collabsync/pkg/models"
	"github.com/SheaGuev/collabsync/pkg/oplog"
	"github.com/SheaGuev/collabsync/pkg/realtime"
	"github.com/SheaGuev/collabsync/pkg/store"
)

// DefaultDebounce is the quiet period after the last edit before the content
// commit fires.
const DefaultDebounce = 500 * time.Millisecond

// PersistenceError reports a failed or refused durable write. The local
// projection keeps the user's content either way.
type PersistenceError struct {
	Ref models.NodeRef
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("coordinator: failed to persist %s %s: %v", e.Ref.Kind, e.Ref.DocumentID(), e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// SavingHandler observes the saving indicator for a node: true while a
// commit is pending or in flight, false once it settles.
type SavingHandler func(ref models.NodeRef, saving bool)

// ErrorHandler observes persistence failures.
type ErrorHandler func(err *PersistenceError)

// PersistenceCoordinator owns the debounce timers and the durable write
// path. One coordinator serves all documents of a client.
type PersistenceCoordinator struct {
	store    store.Store
	docs     *docstore.DocumentStore
	changes  *realtime.ChangeChannel
	logger   logger.Logger
	debounce time.Duration

	onSaving SavingHandler
	onError  ErrorHandler

	mu sync.Mutex
	// timers holds the pending debounce handle per node, keyed by document
	// id. An edit cancels and restarts its node's handle; distinct nodes
	// debounce independently.
	timers map[string]*time.Timer
	// pending remembers the ref for each scheduled commit so Flush can
	// replay them.
	pending map[string]models.NodeRef
}

// New creates a coordinator. changes may be nil for a client that persists
// without broadcasting (offline tooling); debounce <= 0 selects
// DefaultDebounce.
func New(st store.Store, docs *docstore.DocumentStore, changes *realtime.ChangeChannel, debounce time.Duration, log logger.Logger) *PersistenceCoordinator {
	if log == nil {
		log = logger.Default()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &PersistenceCoordinator{
		store:    st,
		docs:     docs,
		changes:  changes,
		logger:   log,
		debounce: debounce,
		timers:   make(map[string]*time.Timer),
		pending:  make(map[string]models.NodeRef),
	}
}

// OnSaving registers the saving indicator callback.
func (c *PersistenceCoordinator) OnSaving(handler SavingHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSaving = handler
}

// OnError registers the persistence failure callback.
func (c *PersistenceCoordinator) OnError(handler ErrorHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = handler
}

// OnLocalChange is the single entry point for edits landing on a document.
//
// A user-sourced delta is broadcast synchronously before anything else, so
// collaborators converge even if persistence later fails, then projected
// onto the document store, then scheduled for a debounced commit. A
// programmatic delta (an applied remote edit, replayed content) is projected
// only: the publishing collaborator persists it on their side.
func (c *PersistenceCoordinator) OnLocalChange(ctx context.Context, ref models.NodeRef, delta oplog.Delta, source realtime.Source) error {
	if source != realtime.SourceUser {
		_, err := c.docs.ApplyLocal(ref, delta)
		return err
	}

	c.setSaving(ref, true)

	if c.changes != nil {
		if err := c.changes.Publish(ctx, ref.DocumentID(), delta, source); err != nil {
			// Dropped while disconnected. The projection and the commit
			// still proceed; durable state carries the edit.
			c.logger.Warn("delta broadcast dropped", "document_id", ref.DocumentID(), "error", err)
		}
	}

	if _, err := c.docs.ApplyLocal(ref, delta); err != nil {
		c.setSaving(ref, false)
		return err
	}

	c.schedule(ref)
	return nil
}

// schedule cancels and restarts the node's debounce handle.
func (c *PersistenceCoordinator) schedule(ref models.NodeRef) {
	key := ref.DocumentID()

	c.mu.Lock()
	defer c.mu.Unlock()

	if timer, ok := c.timers[key]; ok {
		timer.Stop()
	}
	c.pending[key] = ref

	var timer *time.Timer
	timer = time.AfterFunc(c.debounce, func() {
		c.mu.Lock()
		// A reschedule or Detach raced this fire and won; the commit now
		// belongs to the newer handle (or to nobody).
		live := c.timers[key] == timer
		if live {
			delete(c.timers, key)
			delete(c.pending, key)
		}
		c.mu.Unlock()

		if !live {
			return
		}
		c.commit(context.Background(), ref)
	})
	c.timers[key] = timer
}

// Detach cancels the node's pending commit, for navigation away from the
// document. Content already projected stays in the document store; only the
// durable write is discarded.
func (c *PersistenceCoordinator) Detach(ref models.NodeRef) {
	key := ref.DocumentID()

	c.mu.Lock()
	timer, ok := c.timers[key]
	delete(c.timers, key)
	delete(c.pending, key)
	c.mu.Unlock()

	if ok {
		timer.Stop()
		c.setSaving(ref, false)
	}
}

// Flush commits every pending node immediately, for shutdown.
func (c *PersistenceCoordinator) Flush(ctx context.Context) {
	c.mu.Lock()
	refs := make([]models.NodeRef, 0, len(c.pending))
	for key, ref := range c.pending {
		if timer, ok := c.timers[key]; ok {
			timer.Stop()
		}
		delete(c.timers, key)
		delete(c.pending, key)
		refs = append(refs, ref)
	}
	c.mu.Unlock()

	for _, ref := range refs {
		c.commit(ctx, ref)
	}
}

// commit writes the node's latest snapshot. It reads the content fresh from
// the document store at fire time; edits that landed during the debounce
// window are included, never a stale captured copy.
func (c *PersistenceCoordinator) commit(ctx context.Context, ref models.NodeRef) {
	defer c.setSaving(ref, false)

	// A ref with missing ancestor ids must never reach storage: the write
	// would orphan the row under a parent that cannot be resolved.
	if !ref.Valid() {
		c.fail(ref, fmt.Errorf("incomplete node reference, missing ancestor ids"))
		return
	}

	content, err := c.docs.Load(ref)
	if err != nil {
		// The node was trashed or removed after the edit. Nothing durable
		// to do; the commit result is discarded.
		c.logger.Debug("discarding commit for vanished node", "document_id", ref.DocumentID())
		return
	}

	// An op-log collapsed to nothing (or a single trailing newline) is a
	// degenerate snapshot. Writing it would wipe the durable copy, so the
	// refusal is surfaced instead of silently dropping the edit.
	if !content.IsMarkdown && content.Log.Length() <= 1 {
		c.fail(ref, fmt.Errorf("degenerate content snapshot, refusing to overwrite durable copy"))
		return
	}

	data, err := content.Serialize()
	if err != nil {
		c.fail(ref, err)
		return
	}

	patch := store.DataPatch(data)
	switch ref.Kind {
	case models.KindWorkspace:
		err = c.store.CommitWorkspace(ctx, ref.Workspace, patch)
	case models.KindFolder:
		err = c.store.CommitFolder(ctx, ref.Folder, patch)
	case models.KindFile:
		err = c.store.CommitFile(ctx, ref.File, patch)
	default:
		err = fmt.Errorf("unknown node kind %d", ref.Kind)
	}
	if err != nil {
		// No projection rollback: the user keeps what they typed and the
		// next debounce cycle retries with newer content.
		c.fail(ref, err)
	}
}

func (c *PersistenceCoordinator) fail(ref models.NodeRef, err error) {
	perr := &PersistenceError{Ref: ref, Err: err}
	c.logger.Error("persistence failed", "document_id", ref.DocumentID(), "error", err)

	c.mu.Lock()
	handler := c.onError
	c.mu.Unlock()
	if handler != nil {
		handler(perr)
	}
}

func (c *PersistenceCoordinator) setSaving(ref models.NodeRef, saving bool) {
	c.mu.Lock()
	handler := c.onSaving
	c.mu.Unlock()
	if handler != nil {
		handler(ref, saving)
	}
}
