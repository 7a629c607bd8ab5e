package fs

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/marmos91/dittofiles/pkg/content"
	contenttesting "github.com/marmos91/dittofiles/pkg/content/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSContentStore(t *testing.T) {
	suite := &contenttesting.StoreTestSuite{
		NewStore: func(t *testing.T) content.Store {
			store, err := NewFSContentStore(context.Background(), t.TempDir())
			require.NoError(t, err)
			return store
		},
	}

	suite.Run(t)
}

func TestFSContentStore_ShardLayout(t *testing.T) {
	base := t.TempDir()
	store, err := NewFSContentStore(context.Background(), base)
	require.NoError(t, err)

	_, err = store.Write(context.Background(), "abcdef", strings.NewReader("payload"))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(base, "ab", "abcdef"))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("stream broken")
}

func TestFSContentStore_FailedWriteLeavesNothing(t *testing.T) {
	base := t.TempDir()
	store, err := NewFSContentStore(context.Background(), base)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Write(ctx, "abcdef", failingReader{})
	require.Error(t, err)

	exists, err := store.Exists(ctx, "abcdef")
	require.NoError(t, err)
	assert.False(t, exists)

	entries, err := os.ReadDir(filepath.Join(base, "ab"))
	require.NoError(t, err)
	assert.Empty(t, entries, "staging file must be removed")
}

func TestFSContentStore_ListSkipsStagingFiles(t *testing.T) {
	base := t.TempDir()
	store, err := NewFSContentStore(context.Background(), base)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Write(ctx, "abc", bytes.NewReader([]byte("x")))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(base, "ab", stagingPrefix+"123"), []byte("partial"), 0644))

	keys, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"abc"}, keys)
}

func TestNewFSContentStore_RequiresPath(t *testing.T) {
	_, err := NewFSContentStore(context.Background(), "")
	assert.Error(t, err)
}
