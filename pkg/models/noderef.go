package models

// NodeKind discriminates the NodeRef variant.
type NodeKind int

const (
	KindWorkspace NodeKind = iota
	KindFolder
	KindFile
)

func (k NodeKind) String() string {
	switch k {
	case KindWorkspace:
		return "workspace"
	case KindFolder:
		return "folder"
	case KindFile:
		return "file"
	default:
		return "invalid"
	}
}

// NodeRef addresses one node in the hierarchy as a tagged variant:
// Workspace(id) | Folder(id, ws) | File(id, folder, ws). Callers switch
// exhaustively on Kind instead of dispatching on a type string.
type NodeRef struct {
	Kind      NodeKind    `json:"kind" cbor:"kind"`
	Workspace WorkspaceID `json:"workspaceId" cbor:"workspaceId"`
	Folder    FolderID    `json:"folderId,omitempty" cbor:"folderId,omitempty"`
	File      FileID      `json:"fileId,omitempty" cbor:"fileId,omitempty"`
}

func WorkspaceRef(id WorkspaceID) NodeRef {
	return NodeRef{Kind: KindWorkspace, Workspace: id}
}

func FolderRef(ws WorkspaceID, folder FolderID) NodeRef {
	return NodeRef{Kind: KindFolder, Workspace: ws, Folder: folder}
}

func FileRef(ws WorkspaceID, folder FolderID, file FileID) NodeRef {
	return NodeRef{Kind: KindFile, Workspace: ws, Folder: folder, File: file}
}

// Valid reports whether the ref carries every identifier its kind requires.
// A file ref without a folder ID, for example, is invalid and must never
// reach durable storage.
func (r NodeRef) Valid() bool {
	switch r.Kind {
	case KindWorkspace:
		return !r.Workspace.IsZero()
	case KindFolder:
		return !r.Workspace.IsZero() && !r.Folder.IsZero()
	case KindFile:
		return !r.Workspace.IsZero() && !r.Folder.IsZero() && !r.File.IsZero()
	default:
		return false
	}
}

// DocumentID returns the identifier of the referenced node itself. It keys
// realtime rooms and presence channels.
func (r NodeRef) DocumentID() string {
	switch r.Kind {
	case KindFolder:
		return r.Folder.String()
	case KindFile:
		return r.File.String()
	default:
		return r.Workspace.String()
	}
}

// Parent returns the ref of the nearest ancestor (file → folder → workspace)
// and false when the ref is already a workspace. Navigation failures redirect
// here rather than rendering an error page.
func (r NodeRef) Parent() (NodeRef, bool) {
	switch r.Kind {
	case KindFile:
		return FolderRef(r.Workspace, r.Folder), true
	case KindFolder:
		return WorkspaceRef(r.Workspace), true
	default:
		return NodeRef{}, false
	}
}
