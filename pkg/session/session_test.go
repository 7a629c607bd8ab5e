package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssertPermissions(t *testing.T) {
	tests := []struct {
		name    string
		session *Session
		perms   []Permission
		wantErr bool
	}{
		{"nil session", nil, []Permission{PermissionFiles}, true},
		{"nil session no perms", nil, nil, true},
		{"holds all", New("u", PermissionFiles, PermissionAdmin), []Permission{PermissionFiles, PermissionAdmin}, false},
		{"missing one", New("u", PermissionFiles), []Permission{PermissionFiles, PermissionAdmin}, true},
		{"nothing required", New("u"), nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := AssertPermissions(tt.session, tt.perms...)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrForbidden)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCanActFor(t *testing.T) {
	var none *Session
	assert.False(t, none.CanActFor("alice"))
	assert.False(t, none.Has(PermissionFiles))

	alice := New("alice", PermissionFiles)
	assert.True(t, alice.CanActFor("alice"))
	assert.False(t, alice.CanActFor("bob"))

	admin := New("root", PermissionFiles, PermissionAdmin)
	assert.True(t, admin.IsAdmin())
	assert.True(t, admin.CanActFor("bob"))
}
