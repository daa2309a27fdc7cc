// Package memory provides an in-memory implementation of the
// [github.com/SheaGuev/collabsync/pkg/store.Store] interface. It backs the
// test suites and works as a standalone backend for single-process use.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/SheaGuev/collabsync/pkg/models"
	"github.com/SheaGuev/collabsync/pkg/store"
)

// Store keeps all nodes in maps guarded by one mutex. Copies go in and out
// so callers never alias internal state.
type Store struct {
	mu         sync.Mutex
	workspaces map[models.WorkspaceID]*models.Workspace
	folders    map[models.FolderID]*models.Folder
	files      map[models.FileID]*models.File
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		workspaces: make(map[models.WorkspaceID]*models.Workspace),
		folders:    make(map[models.FolderID]*models.Folder),
		files:      make(map[models.FileID]*models.File),
	}
}

func (s *Store) CreateWorkspace(ctx context.Context, workspace *models.Workspace) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if workspace.ID.IsZero() {
		workspace.ID = models.NewWorkspaceID()
	}
	if workspace.CreatedAt.IsZero() {
		workspace.CreatedAt = time.Now()
	}
	cp := *workspace
	cp.Folders = nil
	s.workspaces[workspace.ID] = &cp
	return nil
}

func (s *Store) FetchWorkspace(ctx context.Context, id models.WorkspaceID) (*models.Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.workspaces[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *w
	return &cp, nil
}

func (s *Store) CommitWorkspace(ctx context.Context, id models.WorkspaceID, patch store.NodePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.workspaces[id]
	if !ok {
		return store.ErrNotFound
	}
	applyPatch(patch, &w.Title, &w.IconID, &w.Data, &w.InTrash, &w.BannerURL)
	return nil
}

func (s *Store) DeleteWorkspace(ctx context.Context, id models.WorkspaceID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.workspaces[id]; !ok {
		return store.ErrNotFound
	}
	for fid, folder := range s.folders {
		if folder.WorkspaceID == id {
			delete(s.folders, fid)
		}
	}
	for fid, file := range s.files {
		if file.WorkspaceID == id {
			delete(s.files, fid)
		}
	}
	delete(s.workspaces, id)
	return nil
}

func (s *Store) ListWorkspaces(ctx context.Context, ownerID models.UserID) ([]*models.Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []*models.Workspace{}
	for _, w := range s.workspaces {
		if w.OwnerID == ownerID {
			cp := *w
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Store) CreateFolder(ctx context.Context, folder *models.Folder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.workspaces[folder.WorkspaceID]; !ok {
		return store.ErrNotFound
	}
	if folder.ID.IsZero() {
		folder.ID = models.NewFolderID()
	}
	if folder.CreatedAt.IsZero() {
		folder.CreatedAt = time.Now()
	}
	cp := *folder
	cp.Files = nil
	s.folders[folder.ID] = &cp
	return nil
}

func (s *Store) FetchFolder(ctx context.Context, id models.FolderID) (*models.Folder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.folders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (s *Store) CommitFolder(ctx context.Context, id models.FolderID, patch store.NodePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.folders[id]
	if !ok {
		return store.ErrNotFound
	}
	applyPatch(patch, &f.Title, &f.IconID, &f.Data, &f.InTrash, &f.BannerURL)
	return nil
}

func (s *Store) TrashFolder(ctx context.Context, id models.FolderID, marker string) error {
	if err := s.CommitFolder(ctx, id, store.NodePatch{InTrash: &marker}); err != nil {
		return err
	}

	// Cascade via independent per-file writes, mirroring the behavior of the
	// per-file commit path.
	files, err := s.ListFiles(ctx, id)
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := s.TrashFile(ctx, f.ID, marker); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) RestoreFolder(ctx context.Context, id models.FolderID) error {
	empty := ""
	return s.CommitFolder(ctx, id, store.NodePatch{InTrash: &empty})
}

func (s *Store) DeleteFolder(ctx context.Context, id models.FolderID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.folders[id]; !ok {
		return store.ErrNotFound
	}
	for fid, file := range s.files {
		if file.FolderID == id {
			delete(s.files, fid)
		}
	}
	delete(s.folders, id)
	return nil
}

func (s *Store) ListFolders(ctx context.Context, workspaceID models.WorkspaceID) ([]*models.Folder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []*models.Folder{}
	for _, f := range s.folders {
		if f.WorkspaceID == workspaceID {
			cp := *f
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Store) CreateFile(ctx context.Context, file *models.File) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.folders[file.FolderID]; !ok {
		return store.ErrNotFound
	}
	if file.ID.IsZero() {
		file.ID = models.NewFileID()
	}
	if file.CreatedAt.IsZero() {
		file.CreatedAt = time.Now()
	}
	cp := *file
	s.files[file.ID] = &cp
	return nil
}

func (s *Store) FetchFile(ctx context.Context, id models.FileID) (*models.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.files[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (s *Store) CommitFile(ctx context.Context, id models.FileID, patch store.NodePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.files[id]
	if !ok {
		return store.ErrNotFound
	}
	applyPatch(patch, &f.Title, &f.IconID, &f.Data, &f.InTrash, &f.BannerURL)
	return nil
}

func (s *Store) TrashFile(ctx context.Context, id models.FileID, marker string) error {
	return s.CommitFile(ctx, id, store.NodePatch{InTrash: &marker})
}

func (s *Store) RestoreFile(ctx context.Context, id models.FileID) error {
	empty := ""
	return s.CommitFile(ctx, id, store.NodePatch{InTrash: &empty})
}

func (s *Store) DeleteFile(ctx context.Context, id models.FileID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.files, id)
	return nil
}

func (s *Store) ListFiles(ctx context.Context, folderID models.FolderID) ([]*models.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []*models.File{}
	for _, f := range s.files {
		if f.FolderID == folderID {
			cp := *f
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Store) Migrate(ctx context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func applyPatch(patch store.NodePatch, title, iconID, data, inTrash, bannerURL *string) {
	if patch.Title != nil {
		*title = *patch.Title
	}
	if patch.IconID != nil {
		*iconID = *patch.IconID
	}
	if patch.Data != nil {
		*data = *patch.Data
	}
	if patch.InTrash != nil {
		*inTrash = *patch.InTrash
	}
	if patch.BannerURL != nil {
		*bannerURL = *patch.BannerURL
	}
}
