package metadata

import "time"

// Patch is a partial update of a File. Nil fields are left unchanged.
//
// ID and Created are immutable and cannot be patched.
type Patch struct {
	OwnerID *string
	Size    *int64
	Path    *string
	Name    *string
	Hash    *string
	Status  *FileStatus
	Updated *time.Time
}

// Ptr returns a pointer to v, for building patches inline.
func Ptr[T any](v T) *T {
	return &v
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.OwnerID == nil && p.Size == nil && p.Path == nil && p.Name == nil &&
		p.Hash == nil && p.Status == nil && p.Updated == nil
}

// Apply writes the set fields of p onto f.
func (p Patch) Apply(f *File) {
	if p.OwnerID != nil {
		f.OwnerID = *p.OwnerID
	}
	if p.Size != nil {
		f.Size = *p.Size
	}
	if p.Path != nil {
		f.Path = *p.Path
	}
	if p.Name != nil {
		f.Name = *p.Name
	}
	if p.Hash != nil {
		f.Hash = *p.Hash
	}
	if p.Status != nil {
		f.Status = *p.Status
	}
	if p.Updated != nil {
		f.Updated = *p.Updated
	}
}

// Touch returns a copy of p with Updated set to now.
func (p Patch) Touch() Patch {
	now := time.Now().UTC()
	p.Updated = &now
	return p
}
