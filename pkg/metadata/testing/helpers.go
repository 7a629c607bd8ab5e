package testing

import (
	"testing"

	"github.com/marmos91/dittofiles/pkg/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewFileRecord returns an uploaded file record for owner at path/name.
func NewFileRecord(owner, path, name, hash string, size int64) *metadata.File {
	f := metadata.NewFile(owner, path, name)
	f.Hash = hash
	f.Size = size
	f.Status = metadata.StatusDefault
	return f
}

// NewFolderRecord returns a folder record for owner at path/name.
func NewFolderRecord(owner, path, name string) *metadata.File {
	f := metadata.NewFile(owner, path, name)
	f.Status = metadata.StatusFolder
	return f
}

// AssertErrorCode checks that err is a *metadata.StoreError with the expected code.
func AssertErrorCode(test *testing.T, expected metadata.ErrorCode, err error, msgAndArgs ...any) {
	test.Helper()
	require.Error(test, err, msgAndArgs...)

	code, ok := metadata.CodeOf(err)
	require.True(test, ok, "expected *metadata.StoreError, got %T: %v", err, err)
	assert.Equal(test, expected, code, msgAndArgs...)
}

// ids returns the record ids in order.
func ids(files []*metadata.File) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.ID
	}
	return out
}
