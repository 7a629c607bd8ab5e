package testing

import (
	"context"
	"testing"

	"github.com/marmos91/dittofiles/pkg/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (suite *StoreTestSuite) RunBulkTests(test *testing.T) {
	test.Run("CreateMany_Success", suite.TestCreateMany_Success)
	test.Run("CreateMany_AllOrNothing", suite.TestCreateMany_AllOrNothing)
	test.Run("UpdateMany_FlipsStatus", suite.TestUpdateMany_FlipsStatus)
	test.Run("DeleteMany_Success", suite.TestDeleteMany_Success)
}

func (suite *StoreTestSuite) TestCreateMany_Success(test *testing.T) {
	store := suite.newStore(test)
	ctx := context.Background()

	batch := []*metadata.File{
		NewFolderRecord("alice", "", "a"),
		NewFolderRecord("alice", "/a", "b"),
		NewFolderRecord("alice", "/a/b", "c"),
	}
	require.NoError(test, store.CreateMany(ctx, batch))

	got, err := store.GetAll(ctx, metadata.Query{metadata.Eq(metadata.FieldOwnerID, "alice")})
	require.NoError(test, err)
	assert.ElementsMatch(test, ids(batch), ids(got))
}

func (suite *StoreTestSuite) TestCreateMany_AllOrNothing(test *testing.T) {
	store := suite.newStore(test)
	ctx := context.Background()

	existing := NewFolderRecord("alice", "", "a")
	require.NoError(test, store.Create(ctx, existing))

	fresh := NewFolderRecord("alice", "", "b")
	err := store.CreateMany(ctx, []*metadata.File{fresh, existing})
	AssertErrorCode(test, metadata.ErrAlreadyExists, err)

	_, err = store.Get(ctx, fresh.ID)
	AssertErrorCode(test, metadata.ErrNotFound, err, "failed batch must not leave partial records")
}

// TestUpdateMany_FlipsStatus exercises the upload completion update.
func (suite *StoreTestSuite) TestUpdateMany_FlipsStatus(test *testing.T) {
	store := suite.newStore(test)
	ctx := context.Background()

	a := NewFileRecord("alice", "", "a", "h1", 1)
	a.Status = metadata.StatusNotUploaded
	b := NewFileRecord("bob", "", "b", "h1", 1)
	b.Status = metadata.StatusNotUploaded
	other := NewFileRecord("bob", "", "c", "h2", 1)
	other.Status = metadata.StatusNotUploaded
	require.NoError(test, store.CreateMany(ctx, []*metadata.File{a, b, other}))

	n, err := store.UpdateMany(ctx,
		metadata.Query{metadata.Eq(metadata.FieldHash, "h1")},
		metadata.Patch{Status: metadata.Ptr(metadata.StatusDefault)},
	)
	require.NoError(test, err)
	assert.Equal(test, 2, n)

	for _, id := range []string{a.ID, b.ID} {
		got, err := store.Get(ctx, id)
		require.NoError(test, err)
		assert.Equal(test, metadata.StatusDefault, got.Status)
	}

	got, err := store.Get(ctx, other.ID)
	require.NoError(test, err)
	assert.Equal(test, metadata.StatusNotUploaded, got.Status)
}

func (suite *StoreTestSuite) TestDeleteMany_Success(test *testing.T) {
	store := suite.newStore(test)
	records := seed(test, store)
	ctx := context.Background()

	n, err := store.DeleteMany(ctx, metadata.Query{metadata.Eq(metadata.FieldOwnerID, "bob")})
	require.NoError(test, err)
	assert.Equal(test, 2, n)

	_, err = store.Get(ctx, records["bob/docs"].ID)
	AssertErrorCode(test, metadata.ErrNotFound, err)

	rest, err := store.GetAll(ctx, nil)
	require.NoError(test, err)
	assert.Len(test, rest, len(records)-2)
}
