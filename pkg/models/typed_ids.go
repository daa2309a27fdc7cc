package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// scanUUID parses a database value into a uuid.UUID.
func scanUUID(value any, dst *uuid.UUID) error {
	if value == nil {
		*dst = uuid.Nil
		return nil
	}
	switch v := value.(type) {
	case string:
		id, err := uuid.Parse(v)
		if err != nil {
			return err
		}
		*dst = id
	case []byte:
		id, err := uuid.Parse(string(v))
		if err != nil {
			return err
		}
		*dst = id
	default:
		return fmt.Errorf("cannot scan %T into UUID", value)
	}
	return nil
}

func marshalIDJSON(id uuid.UUID) ([]byte, error) {
	return json.Marshal(id.String())
}

func unmarshalIDJSON(data []byte, dst *uuid.UUID) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return err
	}
	*dst = id
	return nil
}

// IDs travel over the realtime wire inside CBOR message envelopes as plain
// strings; a zero ID encodes as the empty string.
func marshalIDCBOR(id uuid.UUID) ([]byte, error) {
	if id == uuid.Nil {
		return cbor.Marshal("")
	}
	return cbor.Marshal(id.String())
}

func unmarshalIDCBOR(data []byte, dst *uuid.UUID) error {
	var s string
	if err := cbor.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*dst = uuid.Nil
		return nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return err
	}
	*dst = id
	return nil
}

// WorkspaceID is a typed ID for workspaces
type WorkspaceID struct {
	uuid uuid.UUID
}

func NewWorkspaceID() WorkspaceID {
	return WorkspaceID{uuid: uuid.New()}
}

func ParseWorkspaceID(s string) (WorkspaceID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return WorkspaceID{}, fmt.Errorf("invalid workspace ID: %w", err)
	}
	return WorkspaceID{uuid: id}, nil
}

func (w WorkspaceID) UUID() uuid.UUID { return w.uuid }
func (w WorkspaceID) String() string  { return w.uuid.String() }
func (w WorkspaceID) IsZero() bool    { return w.uuid == uuid.Nil }

func (w WorkspaceID) MarshalJSON() ([]byte, error)  { return marshalIDJSON(w.uuid) }
func (w *WorkspaceID) UnmarshalJSON(d []byte) error { return unmarshalIDJSON(d, &w.uuid) }
func (w WorkspaceID) MarshalCBOR() ([]byte, error)  { return marshalIDCBOR(w.uuid) }
func (w *WorkspaceID) UnmarshalCBOR(d []byte) error { return unmarshalIDCBOR(d, &w.uuid) }

func (w WorkspaceID) Value() (driver.Value, error) {
	if w.IsZero() {
		return nil, nil
	}
	return w.uuid.String(), nil
}

func (w *WorkspaceID) Scan(value any) error { return scanUUID(value, &w.uuid) }

func (WorkspaceID) GormDataType() string { return "uuid" }

// FolderID is a typed ID for folders
type FolderID struct {
	uuid uuid.UUID
}

func NewFolderID() FolderID {
	return FolderID{uuid: uuid.New()}
}

func ParseFolderID(s string) (FolderID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return FolderID{}, fmt.Errorf("invalid folder ID: %w", err)
	}
	return FolderID{uuid: id}, nil
}

func (f FolderID) UUID() uuid.UUID { return f.uuid }
func (f FolderID) String() string  { return f.uuid.String() }
func (f FolderID) IsZero() bool    { return f.uuid == uuid.Nil }

func (f FolderID) MarshalJSON() ([]byte, error)  { return marshalIDJSON(f.uuid) }
func (f *FolderID) UnmarshalJSON(d []byte) error { return unmarshalIDJSON(d, &f.uuid) }
func (f FolderID) MarshalCBOR() ([]byte, error)  { return marshalIDCBOR(f.uuid) }
func (f *FolderID) UnmarshalCBOR(d []byte) error { return unmarshalIDCBOR(d, &f.uuid) }

func (f FolderID) Value() (driver.Value, error) {
	if f.IsZero() {
		return nil, nil
	}
	return f.uuid.String(), nil
}

func (f *FolderID) Scan(value any) error { return scanUUID(value, &f.uuid) }

func (FolderID) GormDataType() string { return "uuid" }

// FileID is a typed ID for files
type FileID struct {
	uuid uuid.UUID
}

func NewFileID() FileID {
	return FileID{uuid: uuid.New()}
}

func ParseFileID(s string) (FileID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return FileID{}, fmt.Errorf("invalid file ID: %w", err)
	}
	return FileID{uuid: id}, nil
}

func (f FileID) UUID() uuid.UUID { return f.uuid }
func (f FileID) String() string  { return f.uuid.String() }
func (f FileID) IsZero() bool    { return f.uuid == uuid.Nil }

func (f FileID) MarshalJSON() ([]byte, error)  { return marshalIDJSON(f.uuid) }
func (f *FileID) UnmarshalJSON(d []byte) error { return unmarshalIDJSON(d, &f.uuid) }
func (f FileID) MarshalCBOR() ([]byte, error)  { return marshalIDCBOR(f.uuid) }
func (f *FileID) UnmarshalCBOR(d []byte) error { return unmarshalIDCBOR(d, &f.uuid) }

func (f FileID) Value() (driver.Value, error) {
	if f.IsZero() {
		return nil, nil
	}
	return f.uuid.String(), nil
}

func (f *FileID) Scan(value any) error { return scanUUID(value, &f.uuid) }

func (FileID) GormDataType() string { return "uuid" }

// UserID is a typed ID for users. Users themselves are external to this
// module; the ID identifies node owners and presence-channel collaborators.
type UserID struct {
	uuid uuid.UUID
}

func NewUserID() UserID {
	return UserID{uuid: uuid.New()}
}

func ParseUserID(s string) (UserID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return UserID{}, fmt.Errorf("invalid user ID: %w", err)
	}
	return UserID{uuid: id}, nil
}

func (u UserID) UUID() uuid.UUID { return u.uuid }
func (u UserID) String() string  { return u.uuid.String() }
func (u UserID) IsZero() bool    { return u.uuid == uuid.Nil }

func (u UserID) MarshalJSON() ([]byte, error)  { return marshalIDJSON(u.uuid) }
func (u *UserID) UnmarshalJSON(d []byte) error { return unmarshalIDJSON(d, &u.uuid) }
func (u UserID) MarshalCBOR() ([]byte, error)  { return marshalIDCBOR(u.uuid) }
func (u *UserID) UnmarshalCBOR(d []byte) error { return unmarshalIDCBOR(d, &u.uuid) }

func (u UserID) Value() (driver.Value, error) {
	if u.IsZero() {
		return nil, nil
	}
	return u.uuid.String(), nil
}

func (u *UserID) Scan(value any) error { return scanUUID(value, &u.uuid) }

func (UserID) GormDataType() string { return "uuid" }
