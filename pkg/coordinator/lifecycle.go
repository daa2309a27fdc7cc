package coordinator

import (
	"context"
	"fmt"

	"github.com/SheaGuev/collabsync/pkg/models"
)

// Lifecycle operations mutate the tree optimistically: the local projection
// is updated first so the UI reflects the change immediately, then the
// durable write runs. Creates roll the projection back on failure, because
// an unsaved node would dangle with nothing behind it. Trash and restore do
// not roll back; like content commits, the marker stays applied locally and
// the failure is surfaced.

// CreateWorkspace inserts the workspace locally and persists it. A failed
// persist removes the local node again.
func (c *PersistenceCoordinator) CreateWorkspace(ctx context.Context, workspace *models.Workspace) error {
	c.docs.PutWorkspace(workspace)
	if err := c.store.CreateWorkspace(ctx, workspace); err != nil {
		c.docs.RemoveWorkspace(workspace.ID)
		return fmt.Errorf("coordinator: failed to create workspace: %w", err)
	}
	return nil
}

func (c *PersistenceCoordinator) CreateFolder(ctx context.Context, folder *models.Folder) error {
	c.docs.PutFolder(folder)
	if err := c.store.CreateFolder(ctx, folder); err != nil {
		c.docs.RemoveFolder(folder.ID)
		return fmt.Errorf("coordinator: failed to create folder: %w", err)
	}
	return nil
}

func (c *PersistenceCoordinator) CreateFile(ctx context.Context, file *models.File) error {
	c.docs.PutFile(file)
	if err := c.store.CreateFile(ctx, file); err != nil {
		c.docs.RemoveFile(file.ID)
		return fmt.Errorf("coordinator: failed to create file: %w", err)
	}
	return nil
}

// TrashFolder applies the marker locally (cascading to owned files) and
// durably. The durable cascade runs as independent per-file writes inside
// the store.
func (c *PersistenceCoordinator) TrashFolder(ctx context.Context, id models.FolderID, marker string) error {
	c.docs.TrashFolder(id, marker)
	if err := c.store.TrashFolder(ctx, id, marker); err != nil {
		c.fail(models.NodeRef{Kind: models.KindFolder, Folder: id}, err)
		return fmt.Errorf("coordinator: failed to trash folder: %w", err)
	}
	return nil
}

// RestoreFolder clears the folder's marker. Files trashed with it stay
// trashed until individually restored.
func (c *PersistenceCoordinator) RestoreFolder(ctx context.Context, id models.FolderID) error {
	c.docs.RestoreFolder(id)
	if err := c.store.RestoreFolder(ctx, id); err != nil {
		c.fail(models.NodeRef{Kind: models.KindFolder, Folder: id}, err)
		return fmt.Errorf("coordinator: failed to restore folder: %w", err)
	}
	return nil
}

func (c *PersistenceCoordinator) TrashFile(ctx context.Context, id models.FileID, marker string) error {
	c.docs.TrashFile(id, marker)
	if err := c.store.TrashFile(ctx, id, marker); err != nil {
		c.fail(models.NodeRef{Kind: models.KindFile, File: id}, err)
		return fmt.Errorf("coordinator: failed to trash file: %w", err)
	}
	return nil
}

func (c *PersistenceCoordinator) RestoreFile(ctx context.Context, id models.FileID) error {
	c.docs.RestoreFile(id)
	if err := c.store.RestoreFile(ctx, id); err != nil {
		c.fail(models.NodeRef{Kind: models.KindFile, File: id}, err)
		return fmt.Errorf("coordinator: failed to restore file: %w", err)
	}
	return nil
}
