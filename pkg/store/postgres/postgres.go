// Package postgres implements the [github.com/SheaGuev/collabsync/pkg/store.Store]
// interface on PostgreSQL using GORM.
//
// The content commit path runs at debounce frequency, so commits translate to
// single-row partial UPDATEs on the data column rather than full entity
// replacement. Trash and restore are marker updates; the folder trash cascade
// issues one independent UPDATE per owned file.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/SheaGuev/collabsync/pkg/models"
	"github.com/SheaGuev/collabsync/pkg/store"
)

// Store implements store.Store using PostgreSQL with GORM.
type Store struct {
	db *gorm.DB
}

var _ store.Store = (*Store)(nil)

// New opens a connection for the given DSN.
func New(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &Store{db: db}, nil
}

// NewFromDB wraps an existing gorm handle. Used by tests that provide their
// own dialector.
func NewFromDB(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the workspaces, folders and files tables using
// GORM auto-migration. Safe to run repeatedly; it only adds missing schema
// elements.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(
		&models.Workspace{},
		&models.Folder{},
		&models.File{},
	)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) CreateWorkspace(ctx context.Context, workspace *models.Workspace) error {
	if err := s.db.WithContext(ctx).Create(workspace).Error; err != nil {
		return fmt.Errorf("failed to create workspace: %w", err)
	}
	return nil
}

func (s *Store) FetchWorkspace(ctx context.Context, id models.WorkspaceID) (*models.Workspace, error) {
	var workspace models.Workspace
	err := s.db.WithContext(ctx).First(&workspace, "id = ?", id.String()).Error
	if err != nil {
		return nil, translateErr(err, "workspace")
	}
	return &workspace, nil
}

func (s *Store) CommitWorkspace(ctx context.Context, id models.WorkspaceID, patch store.NodePatch) error {
	return s.commit(ctx, &models.Workspace{}, id.String(), patch, "workspace")
}

func (s *Store) DeleteWorkspace(ctx context.Context, id models.WorkspaceID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("workspace_id = ?", id.String()).Delete(&models.File{}).Error; err != nil {
			return err
		}
		if err := tx.Where("workspace_id = ?", id.String()).Delete(&models.Folder{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Workspace{}, "id = ?", id.String())
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return store.ErrNotFound
		}
		return nil
	})
}

func (s *Store) ListWorkspaces(ctx context.Context, ownerID models.UserID) ([]*models.Workspace, error) {
	workspaces := []*models.Workspace{}
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID.String()).
		Order("created_at").
		Find(&workspaces).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}
	return workspaces, nil
}

func (s *Store) CreateFolder(ctx context.Context, folder *models.Folder) error {
	if err := s.db.WithContext(ctx).Create(folder).Error; err != nil {
		return fmt.Errorf("failed to create folder: %w", err)
	}
	return nil
}

func (s *Store) FetchFolder(ctx context.Context, id models.FolderID) (*models.Folder, error) {
	var folder models.Folder
	err := s.db.WithContext(ctx).First(&folder, "id = ?", id.String()).Error
	if err != nil {
		return nil, translateErr(err, "folder")
	}
	return &folder, nil
}

func (s *Store) CommitFolder(ctx context.Context, id models.FolderID, patch store.NodePatch) error {
	return s.commit(ctx, &models.Folder{}, id.String(), patch, "folder")
}

// TrashFolder marks the folder and every file it owns. Files are updated by
// independent statements, matching the per-file trash path, so a child can
// later be restored on its own.
func (s *Store) TrashFolder(ctx context.Context, id models.FolderID, marker string) error {
	if err := s.CommitFolder(ctx, id, store.NodePatch{InTrash: &marker}); err != nil {
		return err
	}

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
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("folder_id = ?", id.String()).Delete(&models.File{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Folder{}, "id = ?", id.String())
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return store.ErrNotFound
		}
		return nil
	})
}

func (s *Store) ListFolders(ctx context.Context, workspaceID models.WorkspaceID) ([]*models.Folder, error) {
	folders := []*models.Folder{}
	err := s.db.WithContext(ctx).
		Where("workspace_id = ?", workspaceID.String()).
		Order("created_at").
		Find(&folders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	return folders, nil
}

func (s *Store) CreateFile(ctx context.Context, file *models.File) error {
	if err := s.db.WithContext(ctx).Create(file).Error; err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	return nil
}

func (s *Store) FetchFile(ctx context.Context, id models.FileID) (*models.File, error) {
	var file models.File
	err := s.db.WithContext(ctx).First(&file, "id = ?", id.String()).Error
	if err != nil {
		return nil, translateErr(err, "file")
	}
	return &file, nil
}

func (s *Store) CommitFile(ctx context.Context, id models.FileID, patch store.NodePatch) error {
	return s.commit(ctx, &models.File{}, id.String(), patch, "file")
}

func (s *Store) TrashFile(ctx context.Context, id models.FileID, marker string) error {
	return s.CommitFile(ctx, id, store.NodePatch{InTrash: &marker})
}

func (s *Store) RestoreFile(ctx context.Context, id models.FileID) error {
	empty := ""
	return s.CommitFile(ctx, id, store.NodePatch{InTrash: &empty})
}

func (s *Store) DeleteFile(ctx context.Context, id models.FileID) error {
	res := s.db.WithContext(ctx).Delete(&models.File{}, "id = ?", id.String())
	if res.Error != nil {
		return fmt.Errorf("failed to delete file: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListFiles(ctx context.Context, folderID models.FolderID) ([]*models.File, error) {
	files := []*models.File{}
	err := s.db.WithContext(ctx).
		Where("folder_id = ?", folderID.String()).
		Order("created_at").
		Find(&files).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	return files, nil
}

func (s *Store) commit(ctx context.Context, model any, id string, patch store.NodePatch, kind string) error {
	fields := patch.Fields()
	if len(fields) == 0 {
		return nil
	}

	res := s.db.WithContext(ctx).Model(model).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("failed to commit %s: %w", kind, res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func translateErr(err error, kind string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.ErrNotFound
	}
	return fmt.Errorf("failed to fetch %s: %w", kind, err)
}
