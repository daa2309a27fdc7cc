package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SheaGuev/collabsync/pkg/models"
	"github.com/SheaGuev/collabsync/pkg/store"
)

func seedTree(t *testing.T, s *Store) (*models.Workspace, *models.Folder, []*models.File) {
	t.Helper()
	ctx := context.Background()

	ws := &models.Workspace{Title: "Notes", OwnerID: models.NewUserID()}
	require.NoError(t, s.CreateWorkspace(ctx, ws))

	folder := &models.Folder{WorkspaceID: ws.ID, Title: "Projects"}
	require.NoError(t, s.CreateFolder(ctx, folder))

	var files []*models.File
	for _, title := range []string{"alpha", "beta"} {
		f := &models.File{WorkspaceID: ws.ID, FolderID: folder.ID, Title: title}
		require.NoError(t, s.CreateFile(ctx, f))
		files = append(files, f)
	}
	return ws, folder, files
}

func TestCommitPatchesOnlyGivenFields(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, _, files := seedTree(t, s)

	require.NoError(t, s.CommitFile(ctx, files[0].ID, store.DataPatch(`{"ops":[{"insert":"x"}]}`)))

	got, err := s.FetchFile(ctx, files[0].ID)
	require.NoError(t, err)
	assert.Equal(t, `{"ops":[{"insert":"x"}]}`, got.Data)
	assert.Equal(t, "alpha", got.Title, "untouched fields must survive a commit")
}

func TestFetchMissingReturnsNotFound(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.FetchFile(ctx, models.NewFileID())
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = s.CommitFolder(ctx, models.NewFolderID(), store.DataPatch("{}"))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestTrashFolderCascadesToFiles(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, folder, files := seedTree(t, s)

	require.NoError(t, s.TrashFolder(ctx, folder.ID, "Deleted by alice@example.com"))

	got, err := s.FetchFolder(ctx, folder.ID)
	require.NoError(t, err)
	assert.Equal(t, "Deleted by alice@example.com", got.InTrash)

	for _, f := range files {
		child, err := s.FetchFile(ctx, f.ID)
		require.NoError(t, err)
		assert.Equal(t, "Deleted by alice@example.com", child.InTrash,
			"children must not outlive a trashed parent in the visible tree")
	}
}

func TestRestoreRoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, folder, files := seedTree(t, s)

	require.NoError(t, s.TrashFolder(ctx, folder.ID, "Deleted by bob@example.com"))
	require.NoError(t, s.RestoreFolder(ctx, folder.ID))

	got, err := s.FetchFolder(ctx, folder.ID)
	require.NoError(t, err)
	assert.Equal(t, "", got.InTrash)

	// Children stay trashed but remain individually restorable.
	for _, f := range files {
		child, err := s.FetchFile(ctx, f.ID)
		require.NoError(t, err)
		assert.NotEmpty(t, child.InTrash)

		require.NoError(t, s.RestoreFile(ctx, f.ID))
		child, err = s.FetchFile(ctx, f.ID)
		require.NoError(t, err)
		assert.Equal(t, "", child.InTrash)
	}
}

func TestDeleteFolderRemovesFiles(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, folder, files := seedTree(t, s)

	require.NoError(t, s.DeleteFolder(ctx, folder.ID))

	_, err := s.FetchFolder(ctx, folder.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	for _, f := range files {
		_, err := s.FetchFile(ctx, f.ID)
		assert.ErrorIs(t, err, store.ErrNotFound)
	}
}
