// Package models defines the document workspace domain model: the
// workspace → folder → file hierarchy, the typed identifiers that address it,
// the content payloads each node carries, and the ephemeral collaborator
// identity used by the presence layer.
package models

import (
	"time"

	"gorm.io/gorm"
)

// Workspace is the top-level container of the hierarchy. It owns its folders
// exclusively; deleting a workspace deletes everything beneath it.
//
// InTrash is the trash marker: empty for live nodes, a human-readable
// "Deleted by <email>" string for logically deleted ones. Trashed nodes are
// physically retained until permanently deleted.
type Workspace struct {
	ID        WorkspaceID `gorm:"type:uuid;primary_key" json:"id"`
	Title     string      `gorm:"not null" json:"title"`
	IconID    string      `json:"iconId"`
	CreatedAt time.Time   `json:"createdAt"`
	InTrash   string      `json:"inTrash"`
	BannerURL string      `json:"bannerUrl"`
	OwnerID   UserID      `gorm:"type:uuid;not null" json:"workspaceOwner"`

	// Data holds the node's document content: a serialized op-log or a
	// tagged markdown payload. See ParseContent.
	Data string `gorm:"type:text" json:"data"`

	Folders []*Folder `gorm:"foreignKey:WorkspaceID" json:"folders,omitempty"`
}

// BeforeCreate hook to generate ID if not set
func (w *Workspace) BeforeCreate(tx *gorm.DB) error {
	if w.ID.IsZero() {
		w.ID = NewWorkspaceID()
	}
	return nil
}

// Folder belongs to exactly one workspace and owns its files.
type Folder struct {
	ID          FolderID    `gorm:"type:uuid;primary_key" json:"id"`
	WorkspaceID WorkspaceID `gorm:"type:uuid;not null;index" json:"workspaceId"`
	Title       string      `gorm:"not null" json:"title"`
	IconID      string      `json:"iconId"`
	CreatedAt   time.Time   `json:"createdAt"`
	InTrash     string      `json:"inTrash"`
	BannerURL   string      `json:"bannerUrl"`
	OwnerID     UserID      `gorm:"type:uuid" json:"folderOwner"`
	Data        string      `gorm:"type:text" json:"data"`

	Files []*File `gorm:"foreignKey:FolderID" json:"files,omitempty"`
}

// BeforeCreate hook to generate ID if not set
func (f *Folder) BeforeCreate(tx *gorm.DB) error {
	if f.ID.IsZero() {
		f.ID = NewFolderID()
	}
	return nil
}

// File belongs to exactly one folder and, transitively, one workspace. It is
// the node most frequently co-edited, so it carries both ancestor IDs to make
// every file addressable without tree walks.
type File struct {
	ID          FileID      `gorm:"type:uuid;primary_key" json:"id"`
	FolderID    FolderID    `gorm:"type:uuid;not null;index" json:"folderId"`
	WorkspaceID WorkspaceID `gorm:"type:uuid;not null;index" json:"workspaceId"`
	Title       string      `gorm:"not null" json:"title"`
	IconID      string      `json:"iconId"`
	CreatedAt   time.Time   `json:"createdAt"`
	InTrash     string      `json:"inTrash"`
	BannerURL   string      `json:"bannerUrl"`
	OwnerID     UserID      `gorm:"type:uuid" json:"fileOwner"`
	Data        string      `gorm:"type:text" json:"data"`
}

// BeforeCreate hook to generate ID if not set
func (f *File) BeforeCreate(tx *gorm.DB) error {
	if f.ID.IsZero() {
		f.ID = NewFileID()
	}
	return nil
}

// Collaborator is the ephemeral identity of a user present on one document's
// channel. It is never persisted; its lifetime is bounded by presence-channel
// membership.
type Collaborator struct {
	ID        UserID `json:"id" cbor:"id"`
	Email     string `json:"email" cbor:"email"`
	AvatarURL string `json:"avatarUrl" cbor:"avatarUrl"`
	Color     string `json:"color,omitempty" cbor:"color,omitempty"`
}

// CursorRange is a selection within a document: index plus selected length
// (zero for a bare caret), in op-log positions.
type CursorRange struct {
	Index  int `json:"index" cbor:"index"`
	Length int `json:"length" cbor:"length"`
}
