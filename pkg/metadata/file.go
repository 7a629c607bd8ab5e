package metadata

import (
	"time"

	"github.com/google/uuid"
)

// FileStatus is the lifecycle state of a File record.
//
// The numeric values are persisted and must not change.
type FileStatus int

const (
	// StatusNotUploaded marks a file whose hash is known but whose blob has not landed yet.
	StatusNotUploaded FileStatus = 0

	// StatusDefault marks a file whose blob is present in the blob store.
	StatusDefault FileStatus = 1

	// StatusFolder marks a folder. Folders never carry a hash.
	StatusFolder FileStatus = 2
)

func (s FileStatus) String() string {
	switch s {
	case StatusNotUploaded:
		return "NOT_UPLOADED"
	case StatusDefault:
		return "DEFAULT"
	case StatusFolder:
		return "FOLDER"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether s is one of the known statuses.
func (s FileStatus) Valid() bool {
	return s == StatusNotUploaded || s == StatusDefault || s == StatusFolder
}

// File is the metadata record for a file or folder in a user's tree.
//
// Path holds the ancestor folder names joined by "/" with a leading "/"
// ("" for the root, "/docs" for a child of the root folder "docs").
// Children of a folder therefore live at folder.ChildPath().
type File struct {
	ID      string     `json:"id"`
	OwnerID string     `json:"ownerId"`
	Size    int64      `json:"size"`
	Path    string     `json:"path"`
	Name    string     `json:"name"`
	Hash    string     `json:"hash,omitempty"`
	Status  FileStatus `json:"status"`
	Created time.Time  `json:"created"`
	Updated time.Time  `json:"updated"`
}

// NewFile returns a record with a fresh ID and creation timestamps.
func NewFile(ownerID, path, name string) *File {
	now := time.Now().UTC()
	return &File{
		ID:      uuid.NewString(),
		OwnerID: ownerID,
		Path:    path,
		Name:    name,
		Created: now,
		Updated: now,
	}
}

// IsFolder reports whether the record is a folder.
func (f *File) IsFolder() bool {
	return f.Status == StatusFolder
}

// ChildPath is the Path value shared by every direct child of this record.
func (f *File) ChildPath() string {
	return f.Path + "/" + f.Name
}

// FullPath is the slash-joined location of the record itself.
func (f *File) FullPath() string {
	if f.Path == "" {
		return "/" + f.Name
	}
	return f.ChildPath()
}

// Clone returns a copy that shares no memory with f.
func (f *File) Clone() *File {
	if f == nil {
		return nil
	}
	c := *f
	return &c
}
