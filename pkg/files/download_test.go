package files

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadBinary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec := f.create(t, alice, FileInput{OwnerID: "alice", Path: "/docs", Name: "a", Hash: f.digest(t, "hello")})

	_, _, err := f.ctrl.DownloadBinary(ctx, Request{Session: alice, Parameters: params(rec.ID)})
	assert.ErrorIs(t, err, ErrNotFound, "not uploaded yet")

	f.upload(t, alice, "hello")

	rc, got, err := f.ctrl.DownloadBinary(ctx, Request{Session: alice, Parameters: params(rec.ID)})
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, rec.ID, got.ID)

	_, _, err = f.ctrl.DownloadBinary(ctx, Request{Session: bob, Parameters: params(rec.ID)})
	assert.ErrorIs(t, err, ErrNotFound, "foreign record")

	rc, _, err = f.ctrl.DownloadBinary(ctx, Request{Session: admin, Parameters: params(rec.ID)})
	require.NoError(t, err)
	_ = rc.Close()
}

func TestDownloadBinary_Folder(t *testing.T) {
	f := newFixture(t)
	folder := f.create(t, alice, FileInput{OwnerID: "alice", Name: "docs"})

	_, _, err := f.ctrl.DownloadBinary(context.Background(), Request{Session: alice, Parameters: params(folder.ID)})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDownloadBinary_MissingBlob(t *testing.T) {
	f := newFixture(t)
	rec := f.create(t, alice, FileInput{OwnerID: "alice", Name: "a", Hash: f.digest(t, "gone")})
	f.upload(t, alice, "gone")
	require.NoError(t, f.blobs.MemoryContentStore.Delete(context.Background(), rec.Hash))

	_, _, err := f.ctrl.DownloadBinary(context.Background(), Request{Session: alice, Parameters: params(rec.ID)})
	assert.ErrorIs(t, err, ErrNotFound)
}
