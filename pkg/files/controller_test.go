package files

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/marmos91/dittofiles/pkg/metadata"
	"github.com/marmos91/dittofiles/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewController_RequiresStores(t *testing.T) {
	_, err := NewController(Config{})
	assert.Error(t, err)

	_, err = NewController(Config{Metadata: newFixture(t).meta})
	assert.Error(t, err)

	f := newFixture(t)
	_, err = NewController(Config{Metadata: f.meta, Content: f.blobs, QuotaBytes: -1})
	assert.Error(t, err)
}

func TestCreate_Status(t *testing.T) {
	f := newFixture(t)
	h := f.digest(t, "payload")

	folder := f.create(t, alice, FileInput{OwnerID: "alice", Name: "docs"})
	assert.Equal(t, metadata.StatusFolder, folder.Status)
	assert.Zero(t, folder.Size)

	pending := f.create(t, alice, FileInput{OwnerID: "alice", Path: "/docs", Name: "a.txt", Hash: h, Size: 7})
	assert.Equal(t, metadata.StatusNotUploaded, pending.Status)

	f.upload(t, alice, "payload")

	// Joining an uploaded blob needs no upload
	joined := f.create(t, bob, FileInput{OwnerID: "bob", Name: "copy.txt", Hash: h, Size: 7})
	assert.Equal(t, metadata.StatusDefault, joined.Status)
}

func TestCreate_MaterializesAncestors(t *testing.T) {
	f := newFixture(t)

	rec := f.create(t, alice, FileInput{OwnerID: "alice", Path: "a/b//c/", Name: "x", Hash: f.digest(t, "x")})
	assert.Equal(t, "/a/b/c", rec.Path)
	assert.ElementsMatch(t, []string{"/a", "/a/b", "/a/b/c"}, f.folders(t, "alice"))
	assert.Empty(t, f.folders(t, "bob"))
}

func TestCreate_FolderIsIdempotent(t *testing.T) {
	f := newFixture(t)

	first := f.create(t, alice, FileInput{OwnerID: "alice", Path: "/docs", Name: "2024"})
	second := f.create(t, alice, FileInput{OwnerID: "alice", Path: "/docs", Name: "2024"})
	assert.Equal(t, first.ID, second.ID)
	assert.ElementsMatch(t, []string{"/docs", "/docs/2024"}, f.folders(t, "alice"))
}

func TestCreate_Permissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	body := FileInput{OwnerID: "alice", Name: "docs"}

	_, err := f.ctrl.Create(ctx, Request{Body: body})
	assert.ErrorIs(t, err, ErrForbidden, "nil session")

	_, err = f.ctrl.Create(ctx, Request{Session: session.New("alice"), Body: body})
	assert.ErrorIs(t, err, ErrForbidden, "missing FILES")

	_, err = f.ctrl.Create(ctx, Request{Session: bob, Body: body})
	assert.ErrorIs(t, err, ErrForbidden, "other owner")

	rec, err := f.ctrl.Create(ctx, Request{Session: admin, Body: body})
	require.NoError(t, err)
	assert.Equal(t, "alice", rec.OwnerID)
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)
	good := f.digest(t, "x")

	tests := []struct {
		name string
		body any
	}{
		{"nil body", nil},
		{"nil pointer", (*FileInput)(nil)},
		{"unsupported type", "alice"},
		{"missing owner", FileInput{Name: "a"}},
		{"missing name", FileInput{OwnerID: "alice"}},
		{"slash in name", FileInput{OwnerID: "alice", Name: "a/b"}},
		{"negative size", FileInput{OwnerID: "alice", Name: "a", Hash: good, Size: -1}},
		{"uppercase hash", FileInput{OwnerID: "alice", Name: "a", Hash: "AB" + good[2:]}},
		{"short hash", FileInput{OwnerID: "alice", Name: "a", Hash: good[:10]}},
		{"dot segment", FileInput{OwnerID: "alice", Path: "/a/../b", Name: "a"}},
		{"wrong type in map", map[string]any{"ownerId": "alice", "name": 42}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ctrl.Create(context.Background(), Request{Session: alice, Body: tt.body})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)

			var verr *ValidationError
			assert.True(t, errors.As(err, &verr))
		})
	}
}

func TestCreate_DecodesJSONObjects(t *testing.T) {
	f := newFixture(t)
	h := f.digest(t, "x")

	rec, err := f.ctrl.Create(context.Background(), Request{
		Session: alice,
		Body: map[string]any{
			"ownerId": "alice",
			"path":    "/docs",
			"name":    "x.txt",
			"hash":    h,
			"size":    float64(1),
			"status":  float64(metadata.StatusDefault),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.Size)
	assert.Equal(t, metadata.StatusNotUploaded, rec.Status, "status is never taken from the body")
}

func TestCreate_PathConflict(t *testing.T) {
	f := newFixture(t)
	f.create(t, alice, FileInput{OwnerID: "alice", Name: "docs", Hash: f.digest(t, "d")})

	_, err := f.ctrl.Create(context.Background(), Request{
		Session: alice,
		Body:    FileInput{OwnerID: "alice", Path: "/docs", Name: "a", Hash: f.digest(t, "a")},
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpdate_NotFoundAndForbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec := f.create(t, alice, FileInput{OwnerID: "alice", Name: "a", Hash: f.digest(t, "a")})
	body := FileInput{OwnerID: "alice", Name: "b", Hash: rec.Hash}

	_, err := f.ctrl.Update(ctx, Request{Session: alice, Body: body})
	assert.ErrorIs(t, err, ErrNotFound, "missing parameter")

	_, err = f.ctrl.Update(ctx, Request{Session: alice, Parameters: params("nope"), Body: body})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.ctrl.Update(ctx, Request{Session: bob, Parameters: params(rec.ID), Body: body})
	assert.ErrorIs(t, err, ErrForbidden)

	// Giving a record away requires ADMIN
	_, err = f.ctrl.Update(ctx, Request{Session: alice, Parameters: params(rec.ID), Body: FileInput{OwnerID: "bob", Name: "a", Hash: rec.Hash}})
	assert.ErrorIs(t, err, ErrForbidden)

	updated, err := f.ctrl.Update(ctx, Request{Session: admin, Parameters: params(rec.ID), Body: body})
	require.NoError(t, err)
	assert.Equal(t, "b", updated.Name)
	assert.Equal(t, rec.Created, updated.Created)
}

func TestUpdate_HashChangeReleasesLastReference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	old := f.digest(t, "old bytes")
	next := f.digest(t, "new bytes")

	a := f.create(t, alice, FileInput{OwnerID: "alice", Name: "a", Hash: old})
	f.upload(t, alice, "old bytes")
	b := f.create(t, alice, FileInput{OwnerID: "alice", Name: "b", Hash: old})
	require.Equal(t, metadata.StatusDefault, f.get(t, a.ID).Status)
	require.Equal(t, metadata.StatusDefault, b.Status)

	// Another record still references the old blob
	updated, err := f.ctrl.Update(ctx, Request{Session: alice, Parameters: params(a.ID), Body: FileInput{OwnerID: "alice", Name: "a", Hash: next}})
	require.NoError(t, err)
	assert.Equal(t, metadata.StatusNotUploaded, updated.Status)
	assert.True(t, f.blobs.exists(t, old))
	assert.Equal(t, metadata.StatusDefault, f.get(t, b.ID).Status)

	// Last reference
	updated, err = f.ctrl.Update(ctx, Request{Session: alice, Parameters: params(b.ID), Body: FileInput{OwnerID: "alice", Name: "b", Hash: next}})
	require.NoError(t, err)
	assert.Equal(t, metadata.StatusNotUploaded, updated.Status)
	assert.False(t, f.blobs.exists(t, old))
	assert.Equal(t, 1, f.blobs.deleteCount(old))
	assert.Equal(t, next, f.get(t, b.ID).Hash)
	assert.False(t, f.blobs.exists(t, next))
}

func TestUpdate_SoleReferenceHashChangeNeedsUpload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.digest(t, "first")
	second := f.digest(t, "second")

	rec := f.create(t, alice, FileInput{OwnerID: "alice", Name: "a", Hash: first})
	f.upload(t, alice, "first")
	require.Equal(t, metadata.StatusDefault, f.get(t, rec.ID).Status)

	updated, err := f.ctrl.Update(ctx, Request{Session: alice, Parameters: params(rec.ID), Body: FileInput{OwnerID: "alice", Name: "a", Hash: second}})
	require.NoError(t, err)
	assert.Equal(t, metadata.StatusNotUploaded, updated.Status)
	assert.False(t, f.blobs.exists(t, first))
	assert.False(t, f.blobs.exists(t, second))

	// Nobody holds the new bytes yet, so a second record must upload too
	other := f.create(t, bob, FileInput{OwnerID: "bob", Name: "b", Hash: second})
	assert.Equal(t, metadata.StatusNotUploaded, other.Status)

	f.upload(t, bob, "second")
	assert.Equal(t, metadata.StatusDefault, f.get(t, rec.ID).Status)
	assert.Equal(t, metadata.StatusDefault, f.get(t, other.ID).Status)
	assert.True(t, f.blobs.exists(t, second))
}

func TestUpdate_JoiningUploadedHash(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pending := f.create(t, alice, FileInput{OwnerID: "alice", Name: "a", Hash: f.digest(t, "never uploaded")})
	uploaded := f.upload(t, alice, "uploaded")

	updated, err := f.ctrl.Update(ctx, Request{Session: alice, Parameters: params(pending.ID), Body: FileInput{OwnerID: "alice", Name: "a", Hash: uploaded}})
	require.NoError(t, err)
	assert.Equal(t, metadata.StatusDefault, updated.Status)
	assert.True(t, f.blobs.exists(t, uploaded))
	assert.Zero(t, f.blobs.deleteCount(pending.Hash))
}

func TestUpdate_SameHashKeepsStatusAndBlob(t *testing.T) {
	f := newFixture(t)
	rec := f.create(t, alice, FileInput{OwnerID: "alice", Name: "a", Hash: f.digest(t, "bytes"), Size: 5})
	h := f.upload(t, alice, "bytes")

	updated, err := f.ctrl.Update(context.Background(), Request{Session: alice, Parameters: params(rec.ID), Body: FileInput{OwnerID: "alice", Name: "renamed", Hash: h, Size: 5}})
	require.NoError(t, err)
	assert.Equal(t, metadata.StatusDefault, updated.Status)
	assert.Equal(t, "renamed", updated.Name)
	assert.Zero(t, f.blobs.deleteCount(h))
}

func TestUpdate_PathChangeMaterializesNewPath(t *testing.T) {
	f := newFixture(t)
	rec := f.create(t, alice, FileInput{OwnerID: "alice", Path: "/old", Name: "a", Hash: f.digest(t, "a")})

	updated, err := f.ctrl.Update(context.Background(), Request{
		Session:    alice,
		Parameters: params(rec.ID),
		Body:       FileInput{OwnerID: "alice", Path: "/new/deeper", Name: "a", Hash: rec.Hash},
	})
	require.NoError(t, err)
	assert.Equal(t, "/new/deeper", updated.Path)
	assert.ElementsMatch(t, []string{"/old", "/new", "/new/deeper"}, f.folders(t, "alice"))
}

func TestUpdate_MovedFolderCarriesSubtree(t *testing.T) {
	f := newFixture(t)
	leaf := f.create(t, alice, FileInput{OwnerID: "alice", Path: "/docs/2024", Name: "report", Hash: f.digest(t, "r")})

	docs, err := f.meta.GetAll(context.Background(), metadata.Query{
		metadata.Eq(metadata.FieldPath, ""),
		metadata.Eq(metadata.FieldName, "docs"),
	})
	require.NoError(t, err)
	require.Len(t, docs, 1)

	_, err = f.ctrl.Update(context.Background(), Request{
		Session:    alice,
		Parameters: params(docs[0].ID),
		Body:       FileInput{OwnerID: "alice", Path: "/archive", Name: "papers"},
	})
	require.NoError(t, err)

	assert.Equal(t, "/archive/papers/2024", f.get(t, leaf.ID).Path)
	assert.ElementsMatch(t, []string{"/archive", "/archive/papers", "/archive/papers/2024"}, f.folders(t, "alice"))
}

func TestUpdate_FolderCannotMoveIntoItsSubtree(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.create(t, alice, FileInput{OwnerID: "alice", Name: "a"})
	b := f.create(t, alice, FileInput{OwnerID: "alice", Path: "/a", Name: "b"})

	for _, path := range []string{"/a", "/a/b", "/a/b/c"} {
		done := make(chan error, 1)
		go func() {
			_, err := f.ctrl.Update(ctx, Request{Session: alice, Parameters: params(a.ID), Body: FileInput{OwnerID: "alice", Path: path, Name: "a"}})
			done <- err
		}()

		select {
		case err := <-done:
			assert.ErrorIs(t, err, ErrValidation, path)
		case <-time.After(3 * time.Second):
			t.Fatalf("moving /a into %s did not return", path)
		}
	}

	assert.Equal(t, "", f.get(t, a.ID).Path)
	assert.Equal(t, "/a", f.get(t, b.ID).Path)

	// A sibling whose name shares the prefix is not a descendant
	moved, err := f.ctrl.Update(ctx, Request{Session: alice, Parameters: params(a.ID), Body: FileInput{OwnerID: "alice", Path: "/ab", Name: "a"}})
	require.NoError(t, err)
	assert.Equal(t, "/ab", moved.Path)
	assert.Equal(t, "/ab/a", f.get(t, b.ID).Path)
}

func TestUpdate_RelocationStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	f.create(t, alice, FileInput{OwnerID: "alice", Path: "/a", Name: "b"})
	folders, err := f.meta.GetAll(context.Background(), metadata.Query{metadata.Eq(metadata.FieldPath, ""), metadata.Eq(metadata.FieldName, "a")})
	require.NoError(t, err)
	require.Len(t, folders, 1)

	moved := folders[0].Clone()
	moved.Name = "z"
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, f.ctrl.relocateSubtree(ctx, folders[0], moved), context.Canceled)
}

func TestUpdate_FileAndFolderDoNotConvert(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	folder := f.create(t, alice, FileInput{OwnerID: "alice", Name: "docs"})
	file := f.create(t, alice, FileInput{OwnerID: "alice", Name: "a", Hash: f.digest(t, "a")})

	_, err := f.ctrl.Update(ctx, Request{Session: alice, Parameters: params(folder.ID), Body: FileInput{OwnerID: "alice", Name: "docs", Hash: file.Hash}})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.ctrl.Update(ctx, Request{Session: alice, Parameters: params(file.ID), Body: FileInput{OwnerID: "alice", Name: "a"}})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec := f.create(t, alice, FileInput{OwnerID: "alice", Name: "docs"})

	got, err := f.ctrl.Get(ctx, Request{Session: alice, Parameters: params(rec.ID)})
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)

	_, err = f.ctrl.Get(ctx, Request{Session: alice})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.ctrl.Get(ctx, Request{Session: alice, Parameters: params("nope")})
	assert.ErrorIs(t, err, ErrNotFound)

	// Foreign records are hidden, not forbidden
	_, err = f.ctrl.Get(ctx, Request{Session: bob, Parameters: params(rec.ID)})
	assert.ErrorIs(t, err, ErrNotFound)

	got, err = f.ctrl.Get(ctx, Request{Session: admin, Parameters: params(rec.ID)})
	require.NoError(t, err)
	assert.Equal(t, "alice", got.OwnerID)
}

func TestGetAll_ScopesToCaller(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, alice, FileInput{OwnerID: "alice", Name: "a"})
	f.create(t, bob, FileInput{OwnerID: "bob", Name: "b"})

	mine, err := f.ctrl.GetAll(ctx, Request{Session: alice})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "a", mine[0].Name)

	// An owner predicate from a regular user is replaced, not honoured
	spoofed, err := f.ctrl.GetAll(ctx, Request{Session: alice, Query: metadata.Query{metadata.Eq(metadata.FieldOwnerID, "bob")}})
	require.NoError(t, err)
	require.Len(t, spoofed, 1)
	assert.Equal(t, "alice", spoofed[0].OwnerID)

	all, err := f.ctrl.GetAll(ctx, Request{Session: admin})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	onlyBob, err := f.ctrl.GetAll(ctx, Request{Session: admin, Query: metadata.Query{metadata.Eq(metadata.FieldOwnerID, "bob")}})
	require.NoError(t, err)
	require.Len(t, onlyBob, 1)
	assert.Equal(t, "b", onlyBob[0].Name)
}

func TestGetAll_MalformedQuery(t *testing.T) {
	f := newFixture(t)

	_, err := f.ctrl.GetAll(context.Background(), Request{
		Session: alice,
		Query:   metadata.Query{metadata.Eq(metadata.Field("colour"), "red")},
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.ctrl.GetAll(context.Background(), Request{Session: session.New("alice")})
	assert.ErrorIs(t, err, ErrForbidden)
}
