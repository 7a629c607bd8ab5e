package files

import (
	"context"
	"testing"

	"github.com/marmos91/dittofiles/pkg/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitJoinPath(t *testing.T) {
	tests := []struct {
		in        string
		segments  []string
		canonical string
	}{
		{"", nil, ""},
		{"/", nil, ""},
		{"docs", []string{"docs"}, "/docs"},
		{"/docs", []string{"docs"}, "/docs"},
		{"/docs/2024/", []string{"docs", "2024"}, "/docs/2024"},
		{"//docs///2024", []string{"docs", "2024"}, "/docs/2024"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			segs := SplitPath(tt.in)
			assert.Equal(t, tt.segments, segs)
			assert.Equal(t, tt.canonical, JoinPath(segs))
		})
	}
}

func TestEnsureFolders_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	segs := []string{"a", "b", "c"}

	require.NoError(t, f.ctrl.EnsureFolders(ctx, "alice", segs))
	once := f.meta.Len()
	first := f.folders(t, "alice")

	require.NoError(t, f.ctrl.EnsureFolders(ctx, "alice", segs))
	assert.Equal(t, once, f.meta.Len(), "no redundant writes")
	assert.ElementsMatch(t, first, f.folders(t, "alice"))
	assert.ElementsMatch(t, []string{"/a", "/a/b", "/a/b/c"}, first)
}

func TestEnsureFolders_ExtendsExistingPrefix(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.ctrl.EnsureFolders(ctx, "alice", []string{"a"}))
	require.NoError(t, f.ctrl.EnsureFolders(ctx, "alice", []string{"a", "b"}))
	assert.ElementsMatch(t, []string{"/a", "/a/b"}, f.folders(t, "alice"))
}

func TestEnsureFolders_PerOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.ctrl.EnsureFolders(ctx, "alice", []string{"shared"}))
	require.NoError(t, f.ctrl.EnsureFolders(ctx, "bob", []string{"shared"}))
	assert.Equal(t, []string{"/shared"}, f.folders(t, "alice"))
	assert.Equal(t, []string{"/shared"}, f.folders(t, "bob"))
}

func TestEnsureFolders_Concurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	errs := make(chan error, 16)
	for i := 0; i < cap(errs); i++ {
		go func() { errs <- f.ctrl.EnsureFolders(ctx, "alice", []string{"x", "y"}) }()
	}
	for i := 0; i < cap(errs); i++ {
		require.NoError(t, <-errs)
	}
	assert.ElementsMatch(t, []string{"/x", "/x/y"}, f.folders(t, "alice"))
}

func TestEnsureFolders_FileInTheWay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	blocker := metadata.NewFile("alice", "", "a")
	blocker.Hash = f.digest(t, "a")
	require.NoError(t, f.meta.Create(ctx, blocker))

	err := f.ctrl.EnsureFolders(ctx, "alice", []string{"a", "b"})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Empty(t, f.folders(t, "alice"))
}
