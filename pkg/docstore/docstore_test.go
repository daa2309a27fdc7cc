package docstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SheaGuev/collabsync/pkg/models"
	"github.com/SheaGuev/collabsync/pkg/oplog"
)

func seed(t *testing.T) (*DocumentStore, models.NodeRef) {
	t.Helper()
	s := New()

	ws := &models.Workspace{ID: models.NewWorkspaceID(), Title: "ws"}
	folder := &models.Folder{ID: models.NewFolderID(), WorkspaceID: ws.ID, Title: "f"}
	file := &models.File{
		ID:          models.NewFileID(),
		FolderID:    folder.ID,
		WorkspaceID: ws.ID,
		Title:       "doc",
		Data:        `{"ops":[{"insert":"hello"}]}`,
	}

	s.PutWorkspace(ws)
	s.PutFolder(folder)
	s.PutFile(file)

	return s, models.FileRef(ws.ID, folder.ID, file.ID)
}

func TestLoadParsesStoredShape(t *testing.T) {
	s, ref := seed(t)

	c, err := s.Load(ref)
	require.NoError(t, err)
	assert.Equal(t, "hello", c.Log.PlainText())
}

func TestLoadMissingNode(t *testing.T) {
	s, _ := seed(t)

	missing := models.FileRef(models.NewWorkspaceID(), models.NewFolderID(), models.NewFileID())
	_, err := s.Load(missing)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadTrashedNodeIsNotFound(t *testing.T) {
	s, ref := seed(t)

	s.TrashFile(ref.File, "Deleted by alice@example.com")
	_, err := s.Load(ref)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApplyLocalIsOrderPreserving(t *testing.T) {
	s, ref := seed(t)

	_, err := s.ApplyLocal(ref, oplog.New().Retain(5, nil).Insert(",", nil))
	require.NoError(t, err)
	snapshot, err := s.ApplyLocal(ref, oplog.New().Retain(6, nil).Insert(" world", nil))
	require.NoError(t, err)

	assert.Equal(t, "hello, world", snapshot.Log.PlainText())
}

func TestApplyLocalConvertsMarkdownOnFirstEdit(t *testing.T) {
	s, ref := seed(t)
	file, ok := s.File(ref.File)
	require.True(t, ok)
	file.Data = `{"markdown":true,"content":"plain"}`
	s.PutFile(file)

	snapshot, err := s.ApplyLocal(ref, oplog.New().Retain(5, nil).Insert("!", nil))
	require.NoError(t, err)
	assert.Equal(t, "plain!", snapshot.Log.PlainText())
}

func TestRedirectWalksToNearestLiveAncestor(t *testing.T) {
	s, ref := seed(t)

	target, ok := s.Redirect(ref)
	require.True(t, ok)
	assert.Equal(t, models.KindFolder, target.Kind)

	// Trash the folder too: redirect should skip it and land on the workspace.
	s.TrashFolder(ref.Folder, "Deleted by bob@example.com")
	target, ok = s.Redirect(ref)
	require.True(t, ok)
	assert.Equal(t, models.KindWorkspace, target.Kind)
}

func TestRedirectFallsBackToRoot(t *testing.T) {
	s := New()
	ref := models.FileRef(models.NewWorkspaceID(), models.NewFolderID(), models.NewFileID())

	_, ok := s.Redirect(ref)
	assert.False(t, ok)
}

func TestSetSubtreeReplacesFolderFiles(t *testing.T) {
	s, ref := seed(t)

	replacement := &models.File{
		ID:          models.NewFileID(),
		FolderID:    ref.Folder,
		WorkspaceID: ref.Workspace,
		Title:       "fresh",
	}
	s.SetSubtree(ref.Folder, []*models.File{replacement})

	_, ok := s.File(ref.File)
	assert.False(t, ok, "stale file should be dropped")
	_, ok = s.File(replacement.ID)
	assert.True(t, ok)
}

func TestRollbackOptimisticInsert(t *testing.T) {
	s, ref := seed(t)

	optimistic := &models.File{
		ID:          models.NewFileID(),
		FolderID:    ref.Folder,
		WorkspaceID: ref.Workspace,
		Title:       "unsaved",
	}
	s.PutFile(optimistic)
	_, ok := s.File(optimistic.ID)
	require.True(t, ok)

	// Persistence failed: the local insertion is rolled back.
	s.RemoveFile(optimistic.ID)
	_, ok = s.File(optimistic.ID)
	assert.False(t, ok)
}
