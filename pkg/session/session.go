// Package session carries the caller identity and capabilities checked by
// the file controller. Decoding sessions from tokens happens upstream.
package session

import (
	"errors"
	"fmt"
	"slices"
)

// Permission is a named capability.
type Permission string

const (
	// PermissionFiles allows managing one's own files.
	PermissionFiles Permission = "FILES"

	// PermissionAdmin allows acting on any user's files.
	PermissionAdmin Permission = "ADMIN"
)

// ErrForbidden is returned when a caller lacks a required permission.
var ErrForbidden = errors.New("forbidden")

// Session identifies the caller of an operation.
type Session struct {
	UserID      string
	Permissions []Permission
}

// New returns a session for userID holding perms.
func New(userID string, perms ...Permission) *Session {
	return &Session{UserID: userID, Permissions: perms}
}

// Has reports whether the session holds p. A nil session holds nothing.
func (s *Session) Has(p Permission) bool {
	if s == nil {
		return false
	}
	return slices.Contains(s.Permissions, p)
}

// IsAdmin is shorthand for Has(PermissionAdmin).
func (s *Session) IsAdmin() bool {
	return s.Has(PermissionAdmin)
}

// CanActFor reports whether the session may act on records owned by ownerID.
func (s *Session) CanActFor(ownerID string) bool {
	return s != nil && (s.UserID == ownerID || s.IsAdmin())
}

// AssertPermissions fails with ErrForbidden unless s holds every permission in perms.
func AssertPermissions(s *Session, perms ...Permission) error {
	if s == nil {
		return fmt.Errorf("no session: %w", ErrForbidden)
	}
	for _, p := range perms {
		if !s.Has(p) {
			return fmt.Errorf("missing permission %s: %w", p, ErrForbidden)
		}
	}
	return nil
}
