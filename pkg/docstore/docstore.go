// Package docstore holds the client-side source of truth for the document
// tree and each node's current content.
//
// The store is the shared substrate the realtime channels and the
// persistence coordinator read and mutate: local edits and inbound remote
// deltas both land here through ApplyLocal, which composes operations onto
// existing content strictly in the order received. Nodes are independent, so
// there is no cross-node locking; one mutex serializes tree bookkeeping.
//
// Tree mutations are optimistic: create flows insert the node before durable
// persistence and roll it back if persistence fails.
package docstore

import (
	"errors"

	"sync"

	"github.com/SheaGuev/collabsync/pkg/models"
	"github.com/SheaGuev/collabsync/pkg/oplog"
)

// ErrNotFound is returned by Load and ApplyLocal for nodes that are missing
// or trashed. Callers turn it into a redirect to the nearest existing
// ancestor (see Redirect), never a generic error page.
var ErrNotFound = errors.New("docstore: node not found")

// DocumentStore is the in-memory tree plus per-node content cache.
type DocumentStore struct {
	mu         sync.RWMutex
	workspaces map[models.WorkspaceID]*models.Workspace
	folders    map[models.FolderID]*models.Folder
	files      map[models.FileID]*models.File

	// content caches the parsed form of each node's Data, keyed by
	// NodeRef.DocumentID. Parsed lazily on first Load/ApplyLocal.
	content map[string]models.Content
}

func New() *DocumentStore {
	return &DocumentStore{
		workspaces: make(map[models.WorkspaceID]*models.Workspace),
		folders:    make(map[models.FolderID]*models.Folder),
		files:      make(map[models.FileID]*models.File),
		content:    make(map[string]models.Content),
	}
}

// PutWorkspace inserts or replaces a workspace node.
func (s *DocumentStore) PutWorkspace(w *models.Workspace) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *w
	s.workspaces[w.ID] = &cp
	delete(s.content, w.ID.String())
}

// RemoveWorkspace drops the workspace from local state. Used both for
// deletes and for rolling back a failed optimistic create.
func (s *DocumentStore) RemoveWorkspace(id models.WorkspaceID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.workspaces, id)
	delete(s.content, id.String())
}

func (s *DocumentStore) PutFolder(f *models.Folder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *f
	s.folders[f.ID] = &cp
	delete(s.content, f.ID.String())
}

func (s *DocumentStore) RemoveFolder(id models.FolderID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.folders, id)
	delete(s.content, id.String())
}

func (s *DocumentStore) PutFile(f *models.File) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *f
	s.files[f.ID] = &cp
	delete(s.content, f.ID.String())
}

func (s *DocumentStore) RemoveFile(id models.FileID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, id)
	delete(s.content, id.String())
}

// SetSubtree (re)populates a folder's full file list from storage, replacing
// any files previously held for that folder.
func (s *DocumentStore) SetSubtree(folderID models.FolderID, files []*models.File) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, f := range s.files {
		if f.FolderID == folderID {
			delete(s.files, id)
			delete(s.content, id.String())
		}
	}
	for _, f := range files {
		cp := *f
		s.files[f.ID] = &cp
	}
}

// Workspace returns a copy of the workspace node.
func (s *DocumentStore) Workspace(id models.WorkspaceID) (*models.Workspace, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.workspaces[id]
	if !ok {
		return nil, false
	}
	cp := *w
	return &cp, true
}

// Folder returns a copy of the folder node.
func (s *DocumentStore) Folder(id models.FolderID) (*models.Folder, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.folders[id]
	if !ok {
		return nil, false
	}
	cp := *f
	return &cp, true
}

// File returns a copy of the file node.
func (s *DocumentStore) File(id models.FileID) (*models.File, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[id]
	if !ok {
		return nil, false
	}
	cp := *f
	return &cp, true
}

// Load returns the parsed content of the referenced node, or ErrNotFound for
// nodes that are missing or trashed.
func (s *DocumentStore) Load(ref models.NodeRef) (models.Content, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ref)
}

func (s *DocumentStore) loadLocked(ref models.NodeRef) (models.Content, error) {
	data, trash, ok := s.nodeData(ref)
	if !ok || trash != "" {
		return models.Content{}, ErrNotFound
	}

	key := ref.DocumentID()
	if c, ok := s.content[key]; ok {
		return c, nil
	}
	c := models.ParseContent(data)
	s.content[key] = c
	return c, nil
}

// ApplyLocal composes the delta onto the node's current content, in order,
// and returns the new full content snapshot. Both local edits and inbound
// remote deltas use this path. Markdown-shaped content is converted to a
// plain-text op-log before the first edit lands on it.
func (s *DocumentStore) ApplyLocal(ref models.NodeRef, delta oplog.Delta) (models.Content, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.loadLocked(ref)
	if err != nil {
		return models.Content{}, err
	}

	if current.IsMarkdown {
		current = models.Content{Log: oplog.FromPlainText(current.Markdown)}
	}

	next := models.Content{Log: current.Log.Compose(delta)}
	s.content[ref.DocumentID()] = next
	return next, nil
}

// Redirect resolves the nearest existing, untrashed ancestor of a ref whose
// Load failed: file → folder → workspace → root. The second return is false
// when no ancestor exists and the caller should land at the root.
func (s *DocumentStore) Redirect(ref models.NodeRef) (models.NodeRef, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for {
		parent, ok := ref.Parent()
		if !ok {
			return models.NodeRef{}, false
		}
		if _, trash, ok := s.nodeData(parent); ok && trash == "" {
			return parent, true
		}
		ref = parent
	}
}

// TrashFolder applies the trash marker to the folder and each file it owns,
// mirroring the durable cascade optimistically.
func (s *DocumentStore) TrashFolder(id models.FolderID, marker string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f, ok := s.folders[id]; ok {
		f.InTrash = marker
	}
	for _, file := range s.files {
		if file.FolderID == id {
			file.InTrash = marker
		}
	}
}

// RestoreFolder clears the folder's marker. Files remain individually
// restorable via RestoreFile.
func (s *DocumentStore) RestoreFolder(id models.FolderID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.folders[id]; ok {
		f.InTrash = ""
	}
}

func (s *DocumentStore) TrashFile(id models.FileID, marker string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.files[id]; ok {
		f.InTrash = marker
	}
}

func (s *DocumentStore) RestoreFile(id models.FileID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.files[id]; ok {
		f.InTrash = ""
	}
}

// nodeData returns the raw data and trash marker of the referenced node.
// Caller must hold at least a read lock.
func (s *DocumentStore) nodeData(ref models.NodeRef) (data, trash string, ok bool) {
	switch ref.Kind {
	case models.KindWorkspace:
		if w, found := s.workspaces[ref.Workspace]; found {
			return w.Data, w.InTrash, true
		}
	case models.KindFolder:
		if f, found := s.folders[ref.Folder]; found {
			return f.Data, f.InTrash, true
		}
	case models.KindFile:
		if f, found := s.files[ref.File]; found {
			return f.Data, f.InTrash, true
		}
	}
	return "", "", false
}
