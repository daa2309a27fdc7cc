// Package store defines the durable storage boundary of the synchronization
// core: the write and read operations the persistence coordinator and the
// tree loaders call, abstracted over concrete backends.
//
// Two implementations are provided:
//   - [github.com/SheaGuev/collabsync/pkg/store/postgres.Store]: GORM-backed
//     PostgreSQL storage with schema auto-migration.
//   - [github.com/SheaGuev/collabsync/pkg/store/memory.Store]: an in-memory
//     backend for tests and single-process deployments.
//
// Commit operations accept a partial-field patch so that the high-frequency
// path (content snapshots from the debounced coordinator) only touches the
// data column. Fetch operations return [ErrNotFound] for missing rows;
// callers translate that into a redirect to the nearest existing ancestor,
// never a generic failure.
//
// Trash semantics: a node with a non-empty trash marker is logically deleted
// but physically retained. Trashing a folder cascades the marker to every
// file it owns through independent per-file writes, so children never
// outlive a trashed parent in the visible tree. Restoring clears the marker
// to the empty string; Delete removes rows permanently.
package store

import (
	"context"
	"errors"

	"github.com/SheaGuev/collabsync/pkg/models"
)

// ErrNotFound is returned by Fetch and Commit operations when the addressed
// node does not exist.
var ErrNotFound = errors.New("store: node not found")

// NodePatch is a partial-field update. Nil fields are left untouched. The
// debounced content commit path sets only Data.
type NodePatch struct {
	Title     *string
	IconID    *string
	Data      *string
	InTrash   *string
	BannerURL *string
}

// DataPatch builds the minimal patch written by content commits.
func DataPatch(data string) NodePatch {
	return NodePatch{Data: &data}
}

// Fields renders the patch as a column → value map, the shape both backends
// consume. Empty patches return an empty map.
func (p NodePatch) Fields() map[string]any {
	fields := map[string]any{}
	if p.Title != nil {
		fields["title"] = *p.Title
	}
	if p.IconID != nil {
		fields["icon_id"] = *p.IconID
	}
	if p.Data != nil {
		fields["data"] = *p.Data
	}
	if p.InTrash != nil {
		fields["in_trash"] = *p.InTrash
	}
	if p.BannerURL != nil {
		fields["banner_url"] = *p.BannerURL
	}
	return fields
}

// Store is the durable storage boundary.
type Store interface {
	// Workspace operations.

	CreateWorkspace(ctx context.Context, workspace *models.Workspace) error
	// FetchWorkspace returns ErrNotFound for missing workspaces.
	FetchWorkspace(ctx context.Context, id models.WorkspaceID) (*models.Workspace, error)
	CommitWorkspace(ctx context.Context, id models.WorkspaceID, patch NodePatch) error
	// DeleteWorkspace permanently removes the workspace and everything it owns.
	DeleteWorkspace(ctx context.Context, id models.WorkspaceID) error
	ListWorkspaces(ctx context.Context, ownerID models.UserID) ([]*models.Workspace, error)

	// Folder operations.

	CreateFolder(ctx context.Context, folder *models.Folder) error
	FetchFolder(ctx context.Context, id models.FolderID) (*models.Folder, error)
	CommitFolder(ctx context.Context, id models.FolderID, patch NodePatch) error
	// TrashFolder sets the trash marker on the folder and cascades it to
	// every file the folder owns.
	TrashFolder(ctx context.Context, id models.FolderID, marker string) error
	// RestoreFolder clears the folder's trash marker. Trashed files inside
	// remain individually restorable via RestoreFile.
	RestoreFolder(ctx context.Context, id models.FolderID) error
	// DeleteFolder permanently removes the folder and its files.
	DeleteFolder(ctx context.Context, id models.FolderID) error
	ListFolders(ctx context.Context, workspaceID models.WorkspaceID) ([]*models.Folder, error)

	// File operations.

	CreateFile(ctx context.Context, file *models.File) error
	FetchFile(ctx context.Context, id models.FileID) (*models.File, error)
	CommitFile(ctx context.Context, id models.FileID, patch NodePatch) error
	TrashFile(ctx context.Context, id models.FileID, marker string) error
	RestoreFile(ctx context.Context, id models.FileID) error
	DeleteFile(ctx context.Context, id models.FileID) error
	ListFiles(ctx context.Context, folderID models.FolderID) ([]*models.File, error)

	// Migrate initializes or updates backend schema. Safe to run repeatedly.
	Migrate(ctx context.Context) error
	// Close releases backend resources.
	Close() error
}
